package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/FocuswithJustin/eafmerge/core/eaf"
	"github.com/FocuswithJustin/eafmerge/core/errors"
	"github.com/FocuswithJustin/eafmerge/core/review"
	"github.com/FocuswithJustin/eafmerge/internal/config"
)

// Test helper functions

func createTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

func createTestWAV(t *testing.T, dir, name string, ms int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	enc := wav.NewEncoder(f, 8000, 16, 1, 1)
	buf := &audio.IntBuffer{
		Data:           make([]int, 8*ms),
		Format:         &audio.Format{NumChannels: 1, SampleRate: 8000},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func testDocument(tierID, value string, endMs int) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<ANNOTATION_DOCUMENT AUTHOR="" FORMAT="3.0" VERSION="3.0">
    <HEADER MEDIA_FILE="" TIME_UNITS="milliseconds">
        <MEDIA_DESCRIPTOR MEDIA_URL="file:///rec/x.wav" MIME_TYPE="audio/x-wav" RELATIVE_MEDIA_URL="./x.wav"/>
        <PROPERTY NAME="lastUsedAnnotationId">1</PROPERTY>
    </HEADER>
    <TIME_ORDER>
        <TIME_SLOT TIME_SLOT_ID="ts1" TIME_VALUE="0"/>
        <TIME_SLOT TIME_SLOT_ID="ts2" TIME_VALUE="%d"/>
    </TIME_ORDER>
    <TIER LINGUISTIC_TYPE_REF="default-lt" TIER_ID="%s">
        <ANNOTATION><ALIGNABLE_ANNOTATION ANNOTATION_ID="a1" TIME_SLOT_REF1="ts1" TIME_SLOT_REF2="ts2"><ANNOTATION_VALUE>%s</ANNOTATION_VALUE></ALIGNABLE_ANNOTATION></ANNOTATION>
    </TIER>
    <LINGUISTIC_TYPE GRAPHIC_REFERENCES="false" LINGUISTIC_TYPE_ID="default-lt" TIME_ALIGNABLE="true"/>
</ANNOTATION_DOCUMENT>
`, endMs, tierID, value)
}

// captureOutput redirects the command streams for one test.
func captureOutput(t *testing.T, input string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	origIn, origOut := stdin, stdout
	stdin, stdout = strings.NewReader(input), &buf
	t.Cleanup(func() { stdin, stdout = origIn, origOut })
	return &buf
}

func createSession(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	createTestFile(t, dir, "seg01.eaf", testDocument("spk1", "hello", 900))
	createTestFile(t, dir, "seg02.eaf", testDocument("spk2", "world", 400))
	createTestWAV(t, dir, "seg01.wav", 1000)
	createTestWAV(t, dir, "seg02.wav", 500)
	return dir
}

// Tests for MergeCmd

func TestMergeCmd_Run(t *testing.T) {
	tests := []struct {
		name      string
		cmd       MergeCmd
		wantFiles []string
		wantOut   []string
	}{
		{
			name:      "defaults",
			wantFiles: []string{"combined.eaf"},
			wantOut:   []string{"Merged 2 documents (1500 ms of audio)", "document"},
		},
		{
			name:      "all outputs",
			cmd:       MergeCmd{Name: "session", ConcatAudio: true, Manifest: true, Bundle: true},
			wantFiles: []string{"session.eaf", "session.wav", "session.manifest.json", "session.tar.xz"},
			wantOut:   []string{"audio", "manifest", "bundle"},
		},
		{
			name:      "skip policy",
			cmd:       MergeCmd{TierPolicy: "SKIP"},
			wantFiles: []string{"combined.eaf"},
			wantOut:   []string{"warning:", "spk2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureOutput(t, "")
			dir := createSession(t)
			cmd := tt.cmd
			cmd.Dir = dir
			if err := cmd.Run(context.Background()); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			for _, f := range tt.wantFiles {
				if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
					t.Errorf("missing output %s", f)
				}
			}
			for _, want := range tt.wantOut {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q:\n%s", want, out.String())
				}
			}
		})
	}
}

func TestMergeCmd_Run_ConfigFile(t *testing.T) {
	captureOutput(t, "")
	dir := createSession(t)
	createTestFile(t, dir, config.FileName, "output_name: fromconfig\ntier_policy: strict\n")

	cmd := MergeCmd{Dir: dir}
	err := cmd.Run(context.Background())
	if !errors.Is(err, errors.ErrTierMismatch) {
		t.Fatalf("Run() error = %v, want ErrTierMismatch under strict policy", err)
	}

	cmd = MergeCmd{Dir: dir, TierPolicy: "create"}
	if err := cmd.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	doc, err := eaf.ParseFile(filepath.Join(dir, "fromconfig.eaf"))
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Tiers()) != 2 {
		t.Errorf("tiers = %d, want 2", len(doc.Tiers()))
	}
}

func TestMergeCmd_Run_Errors(t *testing.T) {
	captureOutput(t, "")
	empty := t.TempDir()
	if err := (&MergeCmd{Dir: empty}).Run(context.Background()); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("empty dir: %v, want ErrNotFound", err)
	}

	dir := createSession(t)
	os.Remove(filepath.Join(dir, "seg02.wav"))
	if err := (&MergeCmd{Dir: dir}).Run(context.Background()); !errors.Is(err, errors.ErrMissingAudioFile) {
		t.Errorf("missing audio: %v, want ErrMissingAudioFile", err)
	}

	if err := (&MergeCmd{Dir: dir, TierPolicy: "merge"}).Run(context.Background()); err == nil {
		t.Error("expected error for unknown tier policy")
	}
}

// Tests for AudioConcatCmd

func TestAudioConcatCmd_Run(t *testing.T) {
	out := captureOutput(t, "")
	dir := createSession(t)
	if err := (&AudioConcatCmd{Dir: dir}).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "(1500 ms)") {
		t.Errorf("output = %s", out.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "combined.wav")); err != nil {
		t.Error("combined.wav not written")
	}
}

// Tests for SpellcheckCmd

func TestSpellcheckCmd_Run_NoTUI(t *testing.T) {
	out := captureOutput(t, "1\n")
	dir := t.TempDir()
	doc := createTestFile(t, dir, "seg01.eaf", testDocument("spk1", "(laugh) teh end", 900))
	dict := createTestFile(t, dir, "words.txt", "the\nend\n")

	cmd := SpellcheckCmd{File: doc, Dict: dict, NoTUI: true}
	if err := cmd.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	fixed, err := eaf.ParseFile(filepath.Join(dir, "seg01_mod.eaf"))
	if err != nil {
		t.Fatal(err)
	}
	if got := fixed.Annotations()[0].Value(); got != "{LG} the end" {
		t.Errorf("value = %q", got)
	}
	if !strings.Contains(out.String(), "corrected 1 annotations") {
		t.Errorf("output = %s", out.String())
	}
}

func TestSpellcheckCmd_Run_TUI(t *testing.T) {
	captureOutput(t, "")
	dir := t.TempDir()
	doc := createTestFile(t, dir, "seg01.eaf", testDocument("spk1", "teh end", 900))
	createTestFile(t, dir, "words.txt", "the\nend\n")
	createTestFile(t, dir, config.FileName, "dictionary: words.txt\n")
	out := filepath.Join(dir, "checked.eaf")

	orig := runTUI
	defer func() { runTUI = orig }()
	runTUI = func(s *review.Session, in io.Reader, w io.Writer) (bool, error) {
		if _, ok := s.Next(); !ok {
			t.Error("expected a flagged word")
		}
		return true, s.Decide(review.Decision{Action: review.AcceptAll, Replacement: "the"})
	}

	if err := (&SpellcheckCmd{File: doc, Out: out, NoPreprocess: true}).Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	fixed, err := eaf.ParseFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := fixed.Annotations()[0].Value(); got != "the end" {
		t.Errorf("value = %q", got)
	}
}

func TestSpellcheckCmd_Run_NoDictionary(t *testing.T) {
	captureOutput(t, "")
	dir := t.TempDir()
	doc := createTestFile(t, dir, "seg01.eaf", testDocument("spk1", "teh", 900))
	if err := (&SpellcheckCmd{File: doc, NoTUI: true}).Run(); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Run() error = %v, want ErrInvalidInput", err)
	}
}

// Tests for ArpabetCmd

func TestArpabetCmd_Run(t *testing.T) {
	out := captureOutput(t, "")
	dir := t.TempDir()
	in := createTestFile(t, dir, "unknown.txt", "GONNA\tG AA1 N AH0\tguess\t12\r\nBLAH\t\t\tx\r\n")
	dst := filepath.Join(dir, "dict.txt")

	if err := (&ArpabetCmd{Input: in, Output: dst}).Run(); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "GONNA\tG AA1 N AH0\nBLAH\t\t\tx\n" {
		t.Errorf("dictionary = %q", got)
	}
	if !strings.Contains(out.String(), "Formatted 1 entries") {
		t.Errorf("output = %s", out.String())
	}
}

// Tests for config commands

func TestConfigInitAndShow(t *testing.T) {
	out := captureOutput(t, "")
	dir := t.TempDir()

	if err := (&ConfigShowCmd{Dir: dir}).Run(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "# defaults") {
		t.Errorf("show without file = %s", out.String())
	}

	if err := (&ConfigInitCmd{Dir: dir}).Run(); err != nil {
		t.Fatal(err)
	}
	if err := (&ConfigInitCmd{Dir: dir}).Run(); err == nil {
		t.Error("second init should refuse to overwrite")
	}
	if err := (&ConfigInitCmd{Dir: dir, Force: true}).Run(); err != nil {
		t.Errorf("init --force: %v", err)
	}

	out.Reset()
	if err := (&ConfigShowCmd{Dir: dir}).Run(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), config.FileName) || !strings.Contains(out.String(), "tier_policy: create") {
		t.Errorf("show = %s", out.String())
	}
}

// Tests for BundleVerifyCmd

func TestBundleVerifyCmd_Run(t *testing.T) {
	out := captureOutput(t, "")
	dir := createSession(t)
	if err := (&MergeCmd{Dir: dir, Bundle: true}).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	if err := (&BundleVerifyCmd{Path: filepath.Join(dir, "combined.tar.xz")}).Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "Bundle OK") || !strings.Contains(out.String(), "2 inputs") {
		t.Errorf("output = %s", out.String())
	}
}

func TestVersionCmd_Run(t *testing.T) {
	out := captureOutput(t, "")
	if err := (&VersionCmd{}).Run(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), version) {
		t.Errorf("output = %s", out.String())
	}
}

func TestSetupLogging(t *testing.T) {
	if err := setupLogging("", ""); err != nil {
		t.Errorf("defaults: %v", err)
	}
	if err := setupLogging("loud", "text"); err == nil {
		t.Error("expected error for unknown level")
	}
	if err := setupLogging("info", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
