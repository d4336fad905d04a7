// Command eafmerge merges the ELAN annotation documents of a segmented
// recording into one document aligned with the combined audio.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/eafmerge/core/arpabet"
	"github.com/FocuswithJustin/eafmerge/core/eaf"
	"github.com/FocuswithJustin/eafmerge/core/errors"
	"github.com/FocuswithJustin/eafmerge/core/review"
	"github.com/FocuswithJustin/eafmerge/internal/batch"
	"github.com/FocuswithJustin/eafmerge/internal/bundle"
	"github.com/FocuswithJustin/eafmerge/internal/config"
	"github.com/FocuswithJustin/eafmerge/internal/fileutil"
	"github.com/FocuswithJustin/eafmerge/internal/logging"
	"github.com/FocuswithJustin/eafmerge/internal/tui"
)

const version = "0.1.0"

// Terminal streams, replaced in tests.
var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
)

// CLI defines the command-line interface for eafmerge.
var CLI struct {
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" help:"Log format (text, json)"`

	Merge      MergeCmd      `cmd:"" help:"Merge the .eaf files of a directory into one"`
	Audio      AudioGroup    `cmd:"" help:"Audio operations"`
	Spellcheck SpellcheckCmd `cmd:"" help:"Normalize and spell-check the annotation values of a document"`
	Arpabet    ArpabetCmd    `cmd:"" help:"Format a FAVE unknown-word list as a pronunciation dictionary"`
	Config     ConfigGroup   `cmd:"" help:"Configuration file operations"`
	Bundle     BundleGroup   `cmd:"" help:"Merge bundle operations"`
	Version    VersionCmd    `cmd:"" help:"Print version information"`
}

// AudioGroup contains audio operations.
type AudioGroup struct {
	Concat AudioConcatCmd `cmd:"" help:"Concatenate the .wav files of a directory"`
}

// ConfigGroup contains configuration operations.
type ConfigGroup struct {
	Init ConfigInitCmd `cmd:"" help:"Write a commented eafmerge.yaml"`
	Show ConfigShowCmd `cmd:"" help:"Print the effective configuration"`
}

// BundleGroup contains bundle operations.
type BundleGroup struct {
	Verify BundleVerifyCmd `cmd:"" help:"Check every file of a bundle against its manifest"`
}

// loadConfig reads path when given, otherwise eafmerge.yaml in dir, and
// applies the configured logging unless a flag set it.
func loadConfig(path, dir string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadDir(dir)
	}
	if err != nil {
		return nil, err
	}
	if err := setupLogging(first(CLI.LogLevel, cfg.Log.Level), first(CLI.LogFormat, cfg.Log.Format)); err != nil {
		return nil, err
	}
	if cfg.Source != "" {
		logging.Debug("config_loaded", "path", cfg.Source)
	}
	return cfg, nil
}

func setupLogging(level, format string) error {
	l, err := logging.ParseLevel(level)
	if err != nil {
		return err
	}
	f, err := logging.ParseFormat(format)
	if err != nil {
		return err
	}
	logging.InitLogger(l, f)
	return nil
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// MergeCmd merges a directory of annotation documents.
type MergeCmd struct {
	Dir         string `arg:"" help:"Directory holding the .eaf and audio files" type:"existingdir"`
	Out         string `help:"Directory for the merged outputs (default: the input directory)" type:"path"`
	Config      string `help:"Config file (default: eafmerge.yaml in the directory)" type:"existingfile"`
	Name        string `help:"Base name of the outputs"`
	TierPolicy  string `name:"tier-policy" help:"Tiers missing from the first document: create, skip or strict"`
	Prober      string `help:"Audio duration source: wav or ffprobe"`
	ConcatAudio bool   `name:"concat-audio" help:"Also write the concatenated audio"`
	Manifest    bool   `help:"Write a provenance manifest"`
	Bundle      bool   `help:"Pack inputs and outputs into a .tar.xz bundle"`
}

func (c *MergeCmd) Run(ctx context.Context) error {
	cfg, err := loadConfig(c.Config, c.Dir)
	if err != nil {
		return err
	}
	if c.Name != "" {
		cfg.OutputName = c.Name
	}
	if c.TierPolicy != "" {
		cfg.TierPolicy = strings.ToLower(c.TierPolicy)
	}
	if c.Prober != "" {
		cfg.Prober = strings.ToLower(c.Prober)
	}
	cfg.ConcatAudio = cfg.ConcatAudio || c.ConcatAudio
	cfg.Manifest = cfg.Manifest || c.Manifest
	cfg.Bundle = cfg.Bundle || c.Bundle
	if err := cfg.Validate(); err != nil {
		return err
	}

	rep, err := batch.Run(ctx, c.Dir, batch.Options{
		Config: cfg,
		OutDir: c.Out,
		Tool:   bundle.ToolInfo{Name: "eafmerge", Version: version},
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Merged %d documents (%d ms of audio)\n", len(rep.Inputs), rep.Result.TotalMs)
	for _, w := range rep.Result.Warnings {
		fmt.Fprintf(stdout, "  warning: %v\n", w)
	}
	for _, out := range []struct{ label, path string }{
		{"document", rep.Output},
		{"sidecar", rep.Sidecar},
		{"audio", rep.Audio},
		{"manifest", rep.Manifest},
		{"bundle", rep.Bundle},
	} {
		if out.path != "" {
			fmt.Fprintf(stdout, "  %-8s %s\n", out.label, out.path)
		}
	}
	return nil
}

// AudioConcatCmd concatenates the recordings of a directory.
type AudioConcatCmd struct {
	Dir    string `arg:"" help:"Directory holding the .wav files" type:"existingdir"`
	Out    string `help:"Directory for the combined audio (default: the input directory)" type:"path"`
	Config string `help:"Config file (default: eafmerge.yaml in the directory)" type:"existingfile"`
}

func (c *AudioConcatCmd) Run(ctx context.Context) error {
	cfg, err := loadConfig(c.Config, c.Dir)
	if err != nil {
		return err
	}
	out, segments, err := batch.ConcatDir(ctx, c.Dir, batch.Options{Config: cfg, OutDir: c.Out})
	if err != nil {
		return err
	}
	var total int64
	for _, s := range segments {
		fmt.Fprintf(stdout, "  %6d ms  %s\n", s.DurationMs, filepath.Base(s.Path))
		total += s.DurationMs
	}
	fmt.Fprintf(stdout, "Wrote %s (%d ms)\n", out, total)
	return nil
}

// SpellcheckCmd reviews the annotation values of one document.
type SpellcheckCmd struct {
	File         string `arg:"" help:"Annotation document to check" type:"existingfile"`
	Dict         string `help:"Word list, one word per line (default: dictionary from the config)" type:"path"`
	Out          string `help:"Output document (default: <name>_mod.eaf next to the input)" type:"path"`
	Config       string `help:"Config file (default: eafmerge.yaml next to the document)" type:"existingfile"`
	NoTUI        bool   `name:"no-tui" help:"Ask on plain standard input instead of the full-screen review"`
	NoPreprocess bool   `name:"no-preprocess" help:"Skip transcription convention rewrites"`
}

// runTUI is replaced in tests.
var runTUI = tui.Run

func (c *SpellcheckCmd) Run() error {
	cfg, err := loadConfig(c.Config, filepath.Dir(c.File))
	if err != nil {
		return err
	}
	dictPath := first(c.Dict, cfg.Dictionary)
	if dictPath == "" {
		return errors.NewValidation("dict", "no word list given; pass --dict or set dictionary in "+config.FileName)
	}
	dict, err := review.LoadWordList(dictPath)
	if err != nil {
		return err
	}
	doc, err := eaf.ParseFile(c.File)
	if err != nil {
		return err
	}

	preprocessed := 0
	if !c.NoPreprocess {
		preprocessed = review.PreprocessDocument(doc)
	}
	session := review.NewSession(dict, review.Values(doc))
	if c.NoTUI {
		err = review.Review(session, tui.Prompt(stdin, stdout))
		if errors.Is(err, tui.ErrQuit) {
			err = nil
			logging.Info("spellcheck_stopped", "document", c.File)
		}
	} else {
		var aborted bool
		aborted, err = runTUI(session, stdin, stdout)
		if aborted {
			logging.Info("spellcheck_stopped", "document", c.File)
		}
	}
	if err != nil {
		return err
	}

	corrected := review.Apply(doc, session.Corrections())
	out := c.Out
	if out == "" {
		out = strings.TrimSuffix(c.File, filepath.Ext(c.File)) + "_mod.eaf"
	}
	indent := cfg.IndentString()
	err = fileutil.WriteAtomic(out, 0644, func(w io.Writer) error {
		return doc.Encode(w, indent)
	})
	if err != nil {
		return errors.NewIO("write", out, err)
	}
	logging.Info("spellcheck_complete", "document", c.File, "preprocessed", preprocessed, "corrected", corrected, "output", out)
	fmt.Fprintf(stdout, "Rewrote %d values, corrected %d annotations: %s\n", preprocessed, corrected, out)
	return nil
}

// ArpabetCmd formats an aligner unknown-word list.
type ArpabetCmd struct {
	Input  string `short:"i" required:"" help:"Unknown-word list from the aligner" type:"existingfile"`
	Output string `short:"o" required:"" help:"Output dictionary" type:"path"`
}

func (c *ArpabetCmd) Run() error {
	n, err := arpabet.FormatFile(c.Input, c.Output)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Formatted %d entries into %s\n", n, c.Output)
	return nil
}

// ConfigInitCmd writes the config template.
type ConfigInitCmd struct {
	Dir   string `arg:"" optional:"" default:"." help:"Directory to write eafmerge.yaml in" type:"existingdir"`
	Force bool   `help:"Overwrite an existing file"`
}

func (c *ConfigInitCmd) Run() error {
	path := filepath.Join(c.Dir, config.FileName)
	if _, err := os.Stat(path); err == nil && !c.Force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := fileutil.WriteFileAtomic(path, []byte(config.Template), 0644); err != nil {
		return errors.NewIO("write", path, err)
	}
	fmt.Fprintf(stdout, "Wrote %s\n", path)
	return nil
}

// ConfigShowCmd prints the configuration a merge of a directory would use.
type ConfigShowCmd struct {
	Dir    string `arg:"" optional:"" default:"." help:"Directory whose eafmerge.yaml is shown" type:"existingdir"`
	Config string `help:"Config file" type:"existingfile"`
}

func (c *ConfigShowCmd) Run() error {
	cfg, err := loadConfig(c.Config, c.Dir)
	if err != nil {
		return err
	}
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	if cfg.Source != "" {
		fmt.Fprintf(stdout, "# %s\n", cfg.Source)
	} else {
		fmt.Fprintln(stdout, "# defaults")
	}
	_, err = stdout.Write(data)
	return err
}

// BundleVerifyCmd checks a bundle.
type BundleVerifyCmd struct {
	Path string `arg:"" help:"Bundle to verify" type:"existingfile"`
}

func (c *BundleVerifyCmd) Run() error {
	m, err := bundle.Verify(c.Path)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Bundle OK: run %s, %d inputs, %d ms (%s %s)\n",
		m.RunID, len(m.Inputs), m.TotalMs, m.Tool.Name, m.Tool.Version)
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Fprintf(stdout, "eafmerge version %s\n", version)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	kctx := kong.Parse(&CLI,
		kong.Name("eafmerge"),
		kong.Description("Merge segmented ELAN annotation documents"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	kctx.FatalIfErrorf(setupLogging(CLI.LogLevel, CLI.LogFormat))
	err := kctx.Run()
	kctx.FatalIfErrorf(err)
}
