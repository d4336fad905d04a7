// Package bundle records the provenance of a merge run and packs the inputs
// and outputs into a .tar.xz archive.
package bundle

import (
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/eafmerge/core/cas"
	"github.com/FocuswithJustin/eafmerge/core/merge"
)

// ManifestVersion is the current manifest format version.
const ManifestVersion = "1.0.0"

// ManifestName is the file name of the manifest inside a bundle.
const ManifestName = "manifest.json"

// inputsDir prefixes input documents inside a bundle.
const inputsDir = "inputs"

var (
	newUUID = uuid.New
	timeNow = time.Now
)

// Manifest describes one merge run (manifest.json).
type Manifest struct {
	ManifestVersion string         `json:"manifest_version"`
	RunID           string         `json:"run_id"`
	CreatedAt       string         `json:"created_at"`
	Tool            ToolInfo       `json:"tool"`
	Settings        Settings       `json:"settings"`
	Inputs          []*InputRecord `json:"inputs"`
	Output          *FileRecord    `json:"output,omitempty"`
	Audio           *FileRecord    `json:"audio,omitempty"`
	Sidecar         *FileRecord    `json:"sidecar,omitempty"`
	TotalMs         int64          `json:"total_ms"`
	Warnings        []string       `json:"warnings,omitempty"`
}

// ToolInfo describes the tool that produced the run.
type ToolInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Settings records the merge options in effect.
type Settings struct {
	TierPolicy     string `json:"tier_policy"`
	AudioExtension string `json:"audio_extension"`
	Prober         string `json:"prober"`
}

// FileRecord names a file in the bundle and its digest.
type FileRecord struct {
	Name   string     `json:"name"`
	Digest cas.Digest `json:"hashes"`
}

// InputRecord describes one folded document.
type InputRecord struct {
	FileRecord
	Audio          string   `json:"audio"`
	DurationMs     int64    `json:"duration_ms"`
	OffsetMs       int64    `json:"offset_ms"`
	TimeSlotBase   int      `json:"ts_base"`
	AnnotationBase int      `json:"a_base"`
	TiersCreated   []string `json:"tiers_created,omitempty"`
	TiersSkipped   []string `json:"tiers_skipped,omitempty"`
}

// NewManifest starts a manifest with a fresh run id.
func NewManifest(tool ToolInfo, settings Settings) *Manifest {
	return &Manifest{
		ManifestVersion: ManifestVersion,
		RunID:           newUUID().String(),
		CreatedAt:       timeNow().UTC().Format(time.RFC3339),
		Tool:            tool,
		Settings:        settings,
	}
}

// InputName returns the bundle path of an input document.
func InputName(docPath string) string {
	return path.Join(inputsDir, baseName(docPath))
}

// AddStep records a fold step and the digest of its input document.
func (m *Manifest) AddStep(step merge.Step, digest cas.Digest) {
	m.Inputs = append(m.Inputs, &InputRecord{
		FileRecord:     FileRecord{Name: InputName(step.Path), Digest: digest},
		Audio:          baseName(step.AudioPath),
		DurationMs:     step.DurationMs,
		OffsetMs:       step.OffsetMs,
		TimeSlotBase:   step.TimeSlotBase,
		AnnotationBase: step.AnnotationBase,
		TiersCreated:   step.TiersCreated,
		TiersSkipped:   step.TiersSkipped,
	})
}

// AddResult records the totals and warnings of a merge.
func (m *Manifest) AddResult(res *merge.Result) {
	m.TotalMs = res.TotalMs
	for _, w := range res.Warnings {
		m.Warnings = append(m.Warnings, w.Error())
	}
}

// Records returns every file record keyed by bundle path.
func (m *Manifest) Records() map[string]cas.Digest {
	out := make(map[string]cas.Digest, len(m.Inputs)+3)
	for _, in := range m.Inputs {
		out[in.Name] = in.Digest
	}
	for _, r := range []*FileRecord{m.Output, m.Audio, m.Sidecar} {
		if r != nil {
			out[r.Name] = r.Digest
		}
	}
	return out
}

// JSON serializes the manifest with indentation.
func (m *Manifest) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// ParseManifest parses manifest.json.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.ManifestVersion == "" {
		return nil, fmt.Errorf("failed to parse manifest: missing manifest_version")
	}
	if _, err := uuid.Parse(m.RunID); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: run_id: %w", err)
	}
	return &m, nil
}

func baseName(p string) string {
	if p == "" {
		return ""
	}
	return filepath.Base(p)
}
