package ircache

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/cwbudde/algo-reverb/dsp/conv"
)

// FileExt is the extension of cache files.
const FileExt = ".irspec"

// FormatVersion is the only .irspec version this package reads and writes.
const FormatVersion = 1

// maxPartitionSize bounds partition sizes accepted from disk.
const maxPartitionSize = 1 << 20

var fileMagic = [4]byte{'I', 'R', 'S', 'P'}

// Errors returned by the codec. A source-hash mismatch is not an error; the
// cache reports it as a miss.
var (
	ErrInvalidMagic       = errors.New("ircache: invalid magic")
	ErrUnsupportedVersion = errors.New("ircache: unsupported version")
	ErrTruncated          = errors.New("ircache: truncated file")
	ErrCorrupt            = errors.New("ircache: corrupt file")
)

// CachedSpectrum is the precomputed frequency-domain form of one impulse
// response channel: every partition spectrum plus the metadata needed to
// rebuild a convolver and to detect stale entries.
type CachedSpectrum struct {
	Partitions []conv.PartitionSpectrum
	IRLength   int
	SampleRate float64
	Channels   int
	SourceHash Hash
}

// NewCachedSpectrum snapshots the spectra of c.
func NewCachedSpectrum(c *conv.NonUniformConvolver, sampleRate float64, channels int, source Hash) *CachedSpectrum {
	return &CachedSpectrum{
		Partitions: c.Spectra(),
		IRLength:   c.IRLength(),
		SampleRate: sampleRate,
		Channels:   channels,
		SourceHash: source,
	}
}

// Clone returns a deep copy of s.
func (s *CachedSpectrum) Clone() *CachedSpectrum {
	out := *s
	out.Partitions = make([]conv.PartitionSpectrum, len(s.Partitions))

	for i, p := range s.Partitions {
		out.Partitions[i] = p.Clone()
	}

	return &out
}

// Convolver rebuilds a ready-to-run convolver from the cached spectra.
func (s *CachedSpectrum) Convolver() (*conv.NonUniformConvolver, error) {
	return conv.NewNonUniformFromSpectra(s.Partitions, s.IRLength)
}

// Sizes returns the partition sizes in order.
func (s *CachedSpectrum) Sizes() []int {
	sizes := make([]int, len(s.Partitions))
	for i, p := range s.Partitions {
		sizes[i] = p.Size
	}

	return sizes
}

// fileHeader is the fixed-size .irspec header, little-endian and unpadded.
type fileHeader struct {
	Magic         [4]byte
	Version       uint32
	SourceHash    Hash
	IRLength      uint64
	SampleRate    float64
	Channels      uint8
	NumPartitions uint32
}

type partitionHeader struct {
	Size       uint32
	NumComplex uint32
}

// Encode writes s in the .irspec format.
func Encode(w io.Writer, s *CachedSpectrum) error {
	if s.Channels < 0 || s.Channels > math.MaxUint8 {
		return fmt.Errorf("%w: %d channels do not fit the header", ErrCorrupt, s.Channels)
	}

	if len(s.Partitions) > conv.MaxPartitions {
		return fmt.Errorf("%w: %d partitions exceed %d", ErrCorrupt, len(s.Partitions), conv.MaxPartitions)
	}

	bw := bufio.NewWriter(w)

	hdr := fileHeader{
		Magic:         fileMagic,
		Version:       FormatVersion,
		SourceHash:    s.SourceHash,
		IRLength:      uint64(s.IRLength),
		SampleRate:    s.SampleRate,
		Channels:      uint8(s.Channels),
		NumPartitions: uint32(len(s.Partitions)),
	}

	err := binary.Write(bw, binary.LittleEndian, &hdr)
	if err != nil {
		return fmt.Errorf("ircache: writing header: %w", err)
	}

	coeffs := make([]float64, 0)

	for i, p := range s.Partitions {
		ph := partitionHeader{Size: uint32(p.Size), NumComplex: uint32(len(p.Coeffs))}

		err = binary.Write(bw, binary.LittleEndian, &ph)
		if err != nil {
			return fmt.Errorf("ircache: writing partition %d header: %w", i, err)
		}

		coeffs = coeffs[:0]
		for _, c := range p.Coeffs {
			coeffs = append(coeffs, real(c), imag(c))
		}

		err = binary.Write(bw, binary.LittleEndian, coeffs)
		if err != nil {
			return fmt.Errorf("ircache: writing partition %d coefficients: %w", i, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("ircache: flushing: %w", err)
	}

	return nil
}

// Decode reads one .irspec stream.
func Decode(r io.Reader) (*CachedSpectrum, error) {
	br := bufio.NewReader(r)

	var hdr fileHeader

	err := binary.Read(br, binary.LittleEndian, &hdr)
	if err != nil {
		return nil, readErr("header", err)
	}

	if hdr.Magic != fileMagic {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMagic, hdr.Magic)
	}

	if hdr.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, hdr.Version)
	}

	if hdr.NumPartitions > conv.MaxPartitions {
		return nil, fmt.Errorf("%w: %d partitions", ErrCorrupt, hdr.NumPartitions)
	}

	if hdr.IRLength > math.MaxInt32 {
		return nil, fmt.Errorf("%w: IR length %d", ErrCorrupt, hdr.IRLength)
	}

	s := &CachedSpectrum{
		Partitions: make([]conv.PartitionSpectrum, hdr.NumPartitions),
		IRLength:   int(hdr.IRLength),
		SampleRate: hdr.SampleRate,
		Channels:   int(hdr.Channels),
		SourceHash: hdr.SourceHash,
	}

	for i := range s.Partitions {
		var ph partitionHeader

		err = binary.Read(br, binary.LittleEndian, &ph)
		if err != nil {
			return nil, readErr(fmt.Sprintf("partition %d header", i), err)
		}

		if ph.Size == 0 || ph.Size > maxPartitionSize ||
			int(ph.NumComplex) != conv.FFTSize(int(ph.Size)) {
			return nil, fmt.Errorf("%w: partition %d has size %d with %d coefficients",
				ErrCorrupt, i, ph.Size, ph.NumComplex)
		}

		raw := make([]float64, 2*ph.NumComplex)

		err = binary.Read(br, binary.LittleEndian, raw)
		if err != nil {
			return nil, readErr(fmt.Sprintf("partition %d coefficients", i), err)
		}

		coeffs := make([]complex128, ph.NumComplex)
		for k := range coeffs {
			coeffs[k] = complex(raw[2*k], raw[2*k+1])
		}

		s.Partitions[i] = conv.PartitionSpectrum{Size: int(ph.Size), Coeffs: coeffs}
	}

	return s, nil
}

func readErr(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: reading %s", ErrTruncated, what)
	}

	return fmt.Errorf("ircache: reading %s: %w", what, err)
}

// WriteFile encodes s to path. The data is written to a temporary file in the
// same directory and renamed into place, so readers never observe a partial
// file.
func WriteFile(path string, s *CachedSpectrum) error {
	dir := filepath.Dir(path)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("ircache: creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".irspec-*")
	if err != nil {
		return fmt.Errorf("ircache: creating temp file: %w", err)
	}

	tmpName := tmp.Name()

	err = Encode(tmp, s)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("ircache: closing %s: %w", tmpName, closeErr)
	}

	if err == nil {
		err = os.Rename(tmpName, path)
	}

	if err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	return nil
}

// ReadFile decodes the .irspec file at path.
func ReadFile(path string) (*CachedSpectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ircache: opening %s: %w", path, err)
	}
	defer f.Close()

	s, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return s, nil
}
