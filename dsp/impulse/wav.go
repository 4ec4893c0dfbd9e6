package impulse

import (
	"fmt"
	"io"
	"os"

	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// Load reads a WAV impulse response from path.
func Load(path string) (*Response, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("impulse: opening %s: %w", path, err)
	}
	defer f.Close()

	r, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return r, nil
}

// Decode reads a WAV stream and splits it into channels.
func Decode(rs io.ReadSeeker) (*Response, error) {
	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, ErrInvalidFile
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("impulse: decoding PCM: %w", err)
	}

	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("%w: missing format", ErrInvalidFile)
	}

	if buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRate, buf.Format.SampleRate)
	}

	numCh := buf.Format.NumChannels

	frames := len(buf.Data) / numCh
	if frames == 0 {
		return nil, ErrEmpty
	}

	samples := make([][]float64, numCh)
	for ch := range samples {
		samples[ch] = make([]float64, frames)
		for i := range frames {
			samples[ch][i] = float64(buf.Data[i*numCh+ch])
		}
	}

	return New(samples, float64(buf.Format.SampleRate))
}

// WriteWAV encodes channels as 16-bit PCM. All channels must have the same
// length; samples are expected in [-1, 1].
func WriteWAV(ws io.WriteSeeker, channels [][]float64, sampleRate int) error {
	r, err := New(channels, float64(sampleRate))
	if err != nil {
		return err
	}

	interleaved := r.Interleaved()

	data := make([]float32, len(interleaved))
	for i, v := range interleaved {
		data[i] = float32(v)
	}

	enc := wav.NewEncoder(ws, sampleRate, 16, r.Channels(), 1)

	err = enc.Write(&audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: r.Channels(),
		},
		Data:           data,
		SourceBitDepth: 16,
	})
	if err != nil {
		_ = enc.Close()
		return fmt.Errorf("impulse: encoding WAV: %w", err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("impulse: finishing WAV: %w", err)
	}

	return nil
}

// SaveWAV writes channels to a new WAV file at path.
func SaveWAV(path string, channels [][]float64, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("impulse: creating %s: %w", path, err)
	}

	err = WriteWAV(f, channels, sampleRate)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("impulse: closing %s: %w", path, closeErr)
	}

	return err
}
