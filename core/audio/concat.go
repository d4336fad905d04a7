package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/FocuswithJustin/eafmerge/core/errors"
)

// pcmFormat is the WAVE_FORMAT_PCM format tag.
const pcmFormat = 1

// samplesPerRead bounds memory while streaming sample data.
const samplesPerRead = 64 * 1024

// Segment describes one concatenated input.
type Segment struct {
	Path       string
	DurationMs int64
}

// Concat writes the PCM data of inputs, in order, to out. All inputs must share
// sample rate, bit depth and channel count. The output is written to a
// temporary file and renamed into place, so a failed call leaves no output.
func Concat(ctx context.Context, inputs []string, out string) ([]Segment, error) {
	if len(inputs) == 0 {
		return nil, errors.NewNotFound("audio input", "")
	}

	infos := make([]Info, len(inputs))
	for i, in := range inputs {
		f, err := osOpen(in)
		if err != nil {
			return nil, errors.NewIO("open", in, err)
		}
		info, err := readInfo(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", in, err)
		}
		if info.AudioFormat != pcmFormat {
			return nil, errors.NewUnsupported("audio format", fmt.Sprintf("%s is not PCM (format tag %d)", in, info.AudioFormat))
		}
		if i > 0 && !info.sameFormat(infos[0]) {
			return nil, errors.NewUnsupported("audio format", fmt.Sprintf(
				"%s is %d Hz/%d bit/%d ch, expected %d Hz/%d bit/%d ch", in,
				info.SampleRate, info.BitDepth, info.NumChannels,
				infos[0].SampleRate, infos[0].BitDepth, infos[0].NumChannels))
		}
		infos[i] = info
	}

	tmp, err := os.CreateTemp(filepath.Dir(out), ".concat-*.wav")
	if err != nil {
		return nil, errors.NewIO("create", out, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	first := infos[0]
	enc := wav.NewEncoder(tmp, first.SampleRate, first.BitDepth, first.NumChannels, pcmFormat)
	segments := make([]Segment, len(inputs))
	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			cleanup()
			return nil, err
		}
		if err := copyPCM(enc, in, first); err != nil {
			cleanup()
			return nil, fmt.Errorf("%s: %w", in, err)
		}
		segments[i] = Segment{Path: in, DurationMs: infos[i].DurationMs()}
	}

	if err := enc.Close(); err != nil {
		cleanup()
		return nil, errors.NewIO("finalize", out, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, errors.NewIO("close", out, err)
	}
	if err := os.Rename(tmpPath, out); err != nil {
		os.Remove(tmpPath)
		return nil, errors.NewIO("rename", out, err)
	}
	return segments, nil
}

func copyPCM(enc *wav.Encoder, path string, format Info) error {
	f, err := osOpen(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if err := dec.FwdToPCM(); err != nil {
		return err
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: format.NumChannels, SampleRate: format.SampleRate},
		SourceBitDepth: format.BitDepth,
	}
	data := make([]int, samplesPerRead)
	for {
		buf.Data = data
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		buf.Data = data[:n]
		if err := enc.Write(buf); err != nil {
			return err
		}
	}
}
