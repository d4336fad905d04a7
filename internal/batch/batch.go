// Package batch merges every annotation document in a directory and writes
// the combined outputs next to them.
package batch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/FocuswithJustin/eafmerge/core/audio"
	"github.com/FocuswithJustin/eafmerge/core/cas"
	"github.com/FocuswithJustin/eafmerge/core/eaf"
	"github.com/FocuswithJustin/eafmerge/core/errors"
	"github.com/FocuswithJustin/eafmerge/core/merge"
	"github.com/FocuswithJustin/eafmerge/internal/bundle"
	"github.com/FocuswithJustin/eafmerge/internal/config"
	"github.com/FocuswithJustin/eafmerge/internal/fileutil"
	"github.com/FocuswithJustin/eafmerge/internal/logging"
	"github.com/FocuswithJustin/eafmerge/internal/validation"
)

// DocumentExtension is the extension of annotation documents.
const DocumentExtension = ".eaf"

// ManifestSuffix is appended to the output name for the manifest file.
const ManifestSuffix = ".manifest.json"

// Injectable for tests.
var newProber = audio.NewProber

// Options configures a run.
type Options struct {
	Config *config.Config // config.Default() when nil
	OutDir string         // directory for outputs; the input directory when empty
	Tool   bundle.ToolInfo
}

// Report lists what a run wrote.
type Report struct {
	Inputs   []string
	Output   string
	Sidecar  string
	Audio    string
	Manifest string
	Bundle   string
	Result   *merge.Result
}

// Discover returns the annotation documents in dir sorted by name. A file
// named like the merge output is left out so reruns do not fold it in.
func Discover(dir, outputName string) ([]string, error) {
	paths, err := discover(dir, DocumentExtension, outputName+DocumentExtension)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.NewNotFound("annotation document", dir)
	}
	return paths, nil
}

// DiscoverAudio returns the WAV recordings in dir sorted by name, leaving
// out a previous combined recording.
func DiscoverAudio(dir, outputName string) ([]string, error) {
	paths, err := discover(dir, audio.DefaultExtension, outputName+audio.DefaultExtension)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.NewNotFound("audio file", dir)
	}
	return paths, nil
}

func discover(dir, ext, skip string) ([]string, error) {
	if err := validation.ValidateDir(dir); err != nil {
		return nil, errors.NewIO("read directory", dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewIO("read directory", dir, err)
	}

	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ext) || name == skip {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}

// ConcatDir joins the recordings found by DiscoverAudio into the combined
// audio file and returns its path.
func ConcatDir(ctx context.Context, dir string, opts Options) (string, []audio.Segment, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	outDir := opts.OutDir
	if outDir == "" {
		outDir = dir
	}
	paths, err := DiscoverAudio(dir, cfg.OutputName)
	if err != nil {
		return "", nil, err
	}
	out := cfg.AudioFile(outDir)
	segments, err := audio.Concat(ctx, paths, out)
	if err != nil {
		return "", nil, err
	}
	var total int64
	for _, s := range segments {
		total += s.DurationMs
	}
	logging.Info("audio_concat_complete", "files", len(segments), "total_ms", total, "output", out)
	return out, segments, nil
}

// input is a loaded document and the digest of its bytes.
type input struct {
	merge.Input
	digest cas.Digest
}

// Load reads, checks and parses the document at path.
func Load(path string) (*eaf.Document, cas.Digest, error) {
	data, err := validation.ReadFileLimited(path, validation.MaxFileSize)
	if err != nil {
		return nil, cas.Digest{}, errors.NewIO("read", path, err)
	}
	if _, err := validation.ValidateFileType(bytes.NewReader(data), path); err != nil {
		return nil, cas.Digest{}, errors.NewMalformed(path, "", err.Error())
	}
	doc, err := eaf.Parse(data, path)
	if err != nil {
		return nil, cas.Digest{}, err
	}
	return doc, cas.Sum(data), nil
}

// Run merges the documents in dir and writes the outputs. Nothing is written
// when the merge fails.
func Run(ctx context.Context, dir string, opts Options) (*Report, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	outDir := opts.OutDir
	if outDir == "" {
		outDir = dir
	}

	paths, err := Discover(dir, cfg.OutputName)
	if err != nil {
		return nil, err
	}
	inputs := make([]input, 0, len(paths))
	for _, p := range paths {
		doc, digest, err := Load(p)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, input{Input: merge.Input{Path: p, Doc: doc}, digest: digest})
	}

	prober, err := newProber(cfg.Prober, cfg.FFProbePath)
	if err != nil {
		return nil, err
	}
	mergeInputs := make([]merge.Input, len(inputs))
	for i, in := range inputs {
		mergeInputs[i] = in.Input
	}
	res, err := merge.New(cfg.MergeOptions(), prober).Merge(ctx, mergeInputs)
	if err != nil {
		return nil, err
	}
	for _, w := range res.Warnings {
		logging.Warn("merge_warning", "error", w.Error())
	}

	rep := &Report{Inputs: paths, Result: res}

	if cfg.ConcatAudio {
		rep.Audio = cfg.AudioFile(outDir)
		sources := make([]string, len(res.Steps))
		for i, s := range res.Steps {
			sources[i] = s.AudioPath
		}
		if _, err := audio.Concat(ctx, sources, rep.Audio); err != nil {
			return nil, err
		}
	}

	rep.Output = cfg.OutputFile(outDir)
	indent := cfg.IndentString()
	err = fileutil.WriteAtomic(rep.Output, 0644, func(w io.Writer) error {
		return res.Document.Encode(w, indent)
	})
	if err != nil {
		return nil, errors.NewIO("write", rep.Output, err)
	}

	sidecar := sidecarPath(paths[0], cfg.SidecarExtension)
	if _, err := os.Stat(sidecar); err == nil {
		rep.Sidecar = filepath.Join(outDir, cfg.OutputName+cfg.SidecarExtension)
		if err := fileutil.CopyFile(sidecar, rep.Sidecar); err != nil {
			return nil, errors.NewIO("copy", sidecar, err)
		}
	}

	if cfg.Manifest || cfg.Bundle {
		if err := writeProvenance(rep, inputs, cfg, opts.Tool, outDir); err != nil {
			return nil, err
		}
	}

	logging.MergeComplete(len(paths), res.TotalMs, rep.Output,
		"warnings", len(res.Warnings),
		"audio", rep.Audio,
		"bundle", rep.Bundle,
	)
	return rep, nil
}

// writeProvenance writes the manifest and, when configured, the bundle.
func writeProvenance(rep *Report, inputs []input, cfg *config.Config, tool bundle.ToolInfo, outDir string) error {
	m := bundle.NewManifest(tool, bundle.Settings{
		TierPolicy:     cfg.TierPolicy,
		AudioExtension: cfg.AudioExtension,
		Prober:         cfg.Prober,
	})
	entries := make([]bundle.Entry, 0, len(inputs)+3)
	for i, in := range inputs {
		m.AddStep(rep.Result.Steps[i], in.digest)
		entries = append(entries, bundle.Entry{Name: bundle.InputName(in.Path), Path: in.Path})
	}
	m.AddResult(rep.Result)

	var err error
	if m.Output, err = record(rep.Output); err != nil {
		return err
	}
	entries = append(entries, bundle.Entry{Name: m.Output.Name, Path: rep.Output})
	if rep.Audio != "" {
		if m.Audio, err = record(rep.Audio); err != nil {
			return err
		}
		entries = append(entries, bundle.Entry{Name: m.Audio.Name, Path: rep.Audio})
	}
	if rep.Sidecar != "" {
		if m.Sidecar, err = record(rep.Sidecar); err != nil {
			return err
		}
		entries = append(entries, bundle.Entry{Name: m.Sidecar.Name, Path: rep.Sidecar})
	}

	if cfg.Manifest {
		rep.Manifest = filepath.Join(outDir, cfg.OutputName+ManifestSuffix)
		data, err := m.JSON()
		if err != nil {
			return fmt.Errorf("failed to serialize manifest: %w", err)
		}
		if err := fileutil.WriteFileAtomic(rep.Manifest, data, 0644); err != nil {
			return errors.NewIO("write", rep.Manifest, err)
		}
	}
	if cfg.Bundle {
		rep.Bundle = filepath.Join(outDir, cfg.OutputName+bundle.Extension)
		if err := bundle.Write(rep.Bundle, m, entries); err != nil {
			return errors.NewIO("write", rep.Bundle, err)
		}
	}
	return nil
}

func record(path string) (*bundle.FileRecord, error) {
	d, err := cas.SumFile(path)
	if err != nil {
		return nil, errors.NewIO("hash", path, err)
	}
	return &bundle.FileRecord{Name: filepath.Base(path), Digest: d}, nil
}

// sidecarPath returns the preferences file paired with docPath.
func sidecarPath(docPath, ext string) string {
	return strings.TrimSuffix(docPath, filepath.Ext(docPath)) + ext
}
