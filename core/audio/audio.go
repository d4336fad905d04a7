// Package audio resolves durations of the recordings paired with annotation
// documents and concatenates PCM WAV segments.
package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-audio/wav"
)

// DefaultExtension is the audio extension paired with a document.
const DefaultExtension = ".wav"

// Prober returns the duration of an audio file in whole milliseconds.
type Prober interface {
	Duration(ctx context.Context, path string) (int64, error)
}

// PairedAudio returns the audio path sharing docPath's base name.
func PairedAudio(docPath, ext string) string {
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.TrimSuffix(docPath, filepath.Ext(docPath)) + ext
}

// Injectable functions for testing.
var (
	osOpen             = os.Open
	execCommandContext = exec.CommandContext
)

// WAVProber reads durations from RIFF/WAVE headers.
type WAVProber struct{}

// Duration returns the length of the data chunk in milliseconds, truncated.
func (WAVProber) Duration(ctx context.Context, path string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, err := osOpen(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := readInfo(f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return info.DurationMs(), nil
}

// Info describes the format of a WAV file.
type Info struct {
	SampleRate  int
	BitDepth    int
	NumChannels int
	AudioFormat int
	PCMBytes    int64
}

// Frames returns the number of sample frames in the data chunk.
func (i Info) Frames() int64 {
	blockAlign := int64(i.NumChannels * i.BitDepth / 8)
	if blockAlign == 0 {
		return 0
	}
	return i.PCMBytes / blockAlign
}

// DurationMs returns the data chunk length in whole milliseconds.
func (i Info) DurationMs() int64 {
	if i.SampleRate == 0 {
		return 0
	}
	return i.Frames() * 1000 / int64(i.SampleRate)
}

func (i Info) sameFormat(o Info) bool {
	return i.SampleRate == o.SampleRate && i.BitDepth == o.BitDepth &&
		i.NumChannels == o.NumChannels && i.AudioFormat == o.AudioFormat
}

func readInfo(f *os.File) (Info, error) {
	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return Info{}, fmt.Errorf("not a valid WAV file")
	}
	if err := d.FwdToPCM(); err != nil {
		return Info{}, fmt.Errorf("locating data chunk: %w", err)
	}
	return Info{
		SampleRate:  int(d.SampleRate),
		BitDepth:    int(d.BitDepth),
		NumChannels: int(d.NumChans),
		AudioFormat: int(d.WavAudioFormat),
		PCMBytes:    d.PCMLen(),
	}, nil
}

// FFProbe shells out to ffprobe, so any container ffmpeg understands works.
type FFProbe struct {
	Path string // ffprobe binary; "ffprobe" when empty
}

// Duration asks ffprobe for the container duration.
func (p FFProbe) Duration(ctx context.Context, path string) (int64, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, err
	}
	bin := p.Path
	if bin == "" {
		bin = "ffprobe"
	}

	// ffprobe -v error -show_entries format=duration -of default=noprint_wrappers=1:nokey=1 input
	cmd := execCommandContext(ctx, bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: unexpected output %q", strings.TrimSpace(string(out)))
	}
	return int64(secs * 1000), nil
}

// NewProber returns the prober registered under name ("wav" or "ffprobe").
func NewProber(name, ffprobePath string) (Prober, error) {
	switch name {
	case "", "wav":
		return WAVProber{}, nil
	case "ffprobe":
		return FFProbe{Path: ffprobePath}, nil
	}
	return nil, fmt.Errorf("unknown prober %q", name)
}
