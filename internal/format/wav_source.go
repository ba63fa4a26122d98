package format

import (
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/soundflow-go/soundflow/internal/errors"
)

// divisorForBitDepth returns the integer-to-float32 scale factor for a WAV
// bit depth, mirroring the handful of depths PCM files actually use.
func divisorForBitDepth(bitDepth int) (float32, error) {
	switch bitDepth {
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, errors.Newf("unsupported wav bit depth %d", bitDepth).
			Component(ComponentFormat).
			Category(errors.CategoryValidation).
			Build()
	}
}

func sampleFormatForBitDepth(bitDepth int) SampleFormat {
	switch bitDepth {
	case 16:
		return FormatS16
	case 24:
		return FormatS24
	case 32:
		return FormatS32
	default:
		return FormatUnknown
	}
}

// LoadWAV decodes a PCM WAV file in full into an in-memory Source. Large
// files should instead be streamed by a future disk-backed Source; this is
// the convenience path for sample libraries and project-embedded clips.
func LoadWAV(path string) (*MemorySource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err).
			Component(ComponentFormat).
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.Newf("not a valid wav file: %s", path).
			Component(ComponentFormat).
			Category(errors.CategoryFileIO).
			Build()
	}

	channels := int(decoder.NumChans)
	sampleRate := int(decoder.SampleRate)
	divisor, err := divisorForBitDepth(int(decoder.BitDepth))
	if err != nil {
		return nil, err
	}

	const chunkFrames = 8192
	buf := &audio.IntBuffer{
		Data:   make([]int, chunkFrames*channels),
		Format: &audio.Format{SampleRate: sampleRate, NumChannels: channels},
	}

	var samples []float32
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, errors.Wrap(err).
				Component(ComponentFormat).
				Category(errors.CategoryFileIO).
				Context("path", path).
				Build()
		}
		if n == 0 {
			break
		}
		for _, s := range buf.Data[:n] {
			samples = append(samples, float32(s)/divisor)
		}
	}

	src := NewMemorySource(samples, channels, sampleRate)
	src.native = sampleFormatForBitDepth(int(decoder.BitDepth))
	return src, nil
}

// SaveWAV renders src to a 16-bit PCM WAV file at path, reading it to
// exhaustion from its current position.
func SaveWAV(path string, src Source) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err).
			Component(ComponentFormat).
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer file.Close()

	channels := src.Channels()
	encoder := wav.NewEncoder(file, src.SampleRate(), 16, channels, 1)

	const chunkFrames = 8192
	chunk := make([]float32, chunkFrames*channels)
	intBuf := &audio.IntBuffer{
		Format: &audio.Format{SampleRate: src.SampleRate(), NumChannels: channels},
		Data:   make([]int, chunkFrames*channels),
	}

	for {
		n, err := src.Read(chunk)
		if err != nil && err != io.EOF {
			return errors.Wrap(err).Component(ComponentFormat).Category(errors.CategoryFileIO).Build()
		}
		if n == 0 {
			break
		}
		intBuf.Data = intBuf.Data[:n]
		for i := 0; i < n; i++ {
			v := chunk[i]
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			intBuf.Data[i] = int(v * 32767)
		}
		if err := encoder.Write(intBuf); err != nil {
			return errors.Wrap(err).Component(ComponentFormat).Category(errors.CategoryFileIO).Build()
		}
		if n < len(chunk) {
			break
		}
	}

	return encoder.Close()
}
