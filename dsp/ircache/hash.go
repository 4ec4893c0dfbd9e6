package ircache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
)

// HashSize is the length of a content hash in bytes.
const HashSize = sha256.Size

// Hash identifies an impulse response by content (SHA-256).
type Hash [HashSize]byte

// String returns the full lower-case hex encoding.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Prefix returns the hex encoding of the first 8 bytes, used for cache file
// names.
func (h Hash) Prefix() string {
	return hex.EncodeToString(h[:8])
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// ComputeHash returns the SHA-256 of the raw bytes of the file at path.
func ComputeHash(path string) (Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return Hash{}, fmt.Errorf("ircache: hashing %s: %w", path, err)
	}
	defer f.Close()

	return HashReader(f)
}

// HashReader returns the SHA-256 of everything read from r.
func HashReader(r io.Reader) (Hash, error) {
	d := sha256.New()

	if _, err := io.Copy(d, r); err != nil {
		return Hash{}, fmt.Errorf("ircache: hashing: %w", err)
	}

	var h Hash
	d.Sum(h[:0])

	return h, nil
}

// samplesHashChunk is the number of samples encoded per digest write.
const samplesHashChunk = 1024

// ComputeSamplesHash hashes an in-memory impulse response: the sample rate
// as float64 bits, the channel count as uint32, then every sample as float64
// bits, all little-endian. Identical inputs always give identical hashes.
func ComputeSamplesHash(samples []float64, sampleRate float64, channels int) Hash {
	d := sha256.New()

	var header [12]byte
	binary.LittleEndian.PutUint64(header[0:8], math.Float64bits(sampleRate))
	binary.LittleEndian.PutUint32(header[8:12], uint32(channels))
	d.Write(header[:])

	buf := make([]byte, 8*min(len(samples), samplesHashChunk))

	for start := 0; start < len(samples); start += samplesHashChunk {
		chunk := samples[start:min(start+samplesHashChunk, len(samples))]
		for i, v := range chunk {
			binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
		}

		d.Write(buf[:8*len(chunk)])
	}

	var h Hash
	d.Sum(h[:0])

	return h
}
