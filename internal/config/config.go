// Package config loads merge settings from an eafmerge.yaml file.
//
// The file is optional. When present in the target directory (or named with
// --config) its values replace the defaults below, and command-line flags
// replace both.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/eafmerge/core/merge"
	"github.com/FocuswithJustin/eafmerge/internal/validation"
)

// FileName is the config file looked up in a target directory.
const FileName = "eafmerge.yaml"

const (
	defaultOutputName       = "combined"
	defaultAudioExtension   = ".wav"
	defaultSidecarExtension = ".pfsx"
	defaultIndent           = 4
	maxIndent               = 16
)

// Template is written by `eafmerge config init`.
const Template = `# eafmerge configuration
# Base name of the merged outputs (combined.eaf, combined.wav, ...).
output_name: combined

# Extension of the audio paired with each .eaf file.
audio_extension: .wav

# What the merged document's media descriptor points at.
media_placeholder: ASK_on_OPEN.wav
# relative_media_url defaults to ./<output_name>.wav
# relative_media_url: ./combined.wav

# Tiers present in a later document but not the first: create, skip or strict.
tier_policy: create

# Spaces per indentation level in the written document.
indent: 4

# Audio duration source: wav (header read) or ffprobe.
prober: wav
# ffprobe_path: /usr/bin/ffprobe

sidecar_extension: .pfsx

concat_audio: false
manifest: false
bundle: false

# Word list for spellcheck, one word per line.
# dictionary: ./words.txt

log:
  level: info
  format: text
`

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config models eafmerge.yaml.
type Config struct {
	OutputName       string    `yaml:"output_name"`
	AudioExtension   string    `yaml:"audio_extension"`
	MediaPlaceholder string    `yaml:"media_placeholder"`
	RelativeMediaURL string    `yaml:"relative_media_url,omitempty"`
	TierPolicy       string    `yaml:"tier_policy"`
	Indent           int       `yaml:"indent"`
	Prober           string    `yaml:"prober"`
	FFProbePath      string    `yaml:"ffprobe_path,omitempty"`
	SidecarExtension string    `yaml:"sidecar_extension"`
	ConcatAudio      bool      `yaml:"concat_audio"`
	Manifest         bool      `yaml:"manifest"`
	Bundle           bool      `yaml:"bundle"`
	Dictionary       string    `yaml:"dictionary,omitempty"`
	Log              LogConfig `yaml:"log"`

	// Source is the file the config was read from, empty for defaults.
	Source string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads and validates the config at path. Relative paths inside the file
// resolve against its directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.Source = path
	c.applyDefaults()
	c.normalize(filepath.Dir(path))
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &c, nil
}

// LoadDir loads FileName from dir, or returns Default when it does not exist.
func LoadDir(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}
	return Load(path)
}

func (c *Config) applyDefaults() {
	if c.OutputName == "" {
		c.OutputName = defaultOutputName
	}
	if c.AudioExtension == "" {
		c.AudioExtension = defaultAudioExtension
	}
	if c.MediaPlaceholder == "" {
		c.MediaPlaceholder = merge.DefaultMediaURL
	}
	if c.TierPolicy == "" {
		c.TierPolicy = string(merge.TierCreate)
	}
	if c.Indent == 0 {
		c.Indent = defaultIndent
	}
	if c.Prober == "" {
		c.Prober = "wav"
	}
	if c.SidecarExtension == "" {
		c.SidecarExtension = defaultSidecarExtension
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) normalize(base string) {
	c.OutputName = strings.TrimSpace(c.OutputName)
	c.AudioExtension = dotted(c.AudioExtension)
	c.SidecarExtension = dotted(c.SidecarExtension)
	c.TierPolicy = strings.ToLower(strings.TrimSpace(c.TierPolicy))
	c.Prober = strings.ToLower(strings.TrimSpace(c.Prober))
	c.Dictionary = resolvePath(base, c.Dictionary)
}

// Validate checks field values.
func (c *Config) Validate() error {
	if err := validation.ValidateFilename(c.OutputName); err != nil {
		return fmt.Errorf("output_name: %w", err)
	}
	if _, err := merge.ParseTierPolicy(c.TierPolicy); err != nil {
		return err
	}
	switch c.Prober {
	case "wav", "ffprobe":
	default:
		return fmt.Errorf("prober must be 'wav' or 'ffprobe'")
	}
	if c.Indent < 0 || c.Indent > maxIndent {
		return fmt.Errorf("indent must be between 0 and %d", maxIndent)
	}
	if c.AudioExtension == "." || strings.ContainsAny(c.AudioExtension, `/\`) {
		return fmt.Errorf("invalid audio_extension %q", c.AudioExtension)
	}
	return nil
}

// OutputFile returns the path of the merged document inside dir.
func (c *Config) OutputFile(dir string) string {
	return filepath.Join(dir, c.OutputName+".eaf")
}

// AudioFile returns the path of the concatenated audio inside dir.
func (c *Config) AudioFile(dir string) string {
	return filepath.Join(dir, c.OutputName+defaultAudioExtension)
}

// RelativeMedia returns the RELATIVE_MEDIA_URL written to the merged document.
func (c *Config) RelativeMedia() string {
	if c.RelativeMediaURL != "" {
		return c.RelativeMediaURL
	}
	return "./" + c.OutputName + defaultAudioExtension
}

// IndentString returns the indentation unit.
func (c *Config) IndentString() string {
	return strings.Repeat(" ", c.Indent)
}

// MergeOptions maps the config onto merge options.
func (c *Config) MergeOptions() merge.Options {
	policy, _ := merge.ParseTierPolicy(c.TierPolicy)
	return merge.Options{
		TierPolicy:       policy,
		MediaURL:         c.MediaPlaceholder,
		RelativeMediaURL: c.RelativeMedia(),
		AudioExtension:   c.AudioExtension,
	}
}

// Marshal renders c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func dotted(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}
