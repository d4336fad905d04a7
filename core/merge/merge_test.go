package merge

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/FocuswithJustin/eafmerge/core/eaf"
	"github.com/FocuswithJustin/eafmerge/core/errors"
)

type slot struct {
	id string
	ms int64
}

type ann struct {
	id, ts1, ts2, value string
}

type tier struct {
	id, lt string
	anns   []ann
}

// buildEAF renders a minimal ELAN document.
func buildEAF(media string, slots []slot, tiers ...tier) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<ANNOTATION_DOCUMENT AUTHOR="" FORMAT="3.0" VERSION="3.0">` + "\n")
	b.WriteString(`    <HEADER MEDIA_FILE="" TIME_UNITS="milliseconds">` + "\n")
	fmt.Fprintf(&b, `        <MEDIA_DESCRIPTOR MEDIA_URL="file:///rec/%s" MIME_TYPE="audio/x-wav" RELATIVE_MEDIA_URL="./%s"/>`+"\n", media, media)
	b.WriteString(`        <PROPERTY NAME="lastUsedAnnotationId">0</PROPERTY>` + "\n")
	b.WriteString("    </HEADER>\n    <TIME_ORDER>\n")
	for _, s := range slots {
		fmt.Fprintf(&b, `        <TIME_SLOT TIME_SLOT_ID="%s" TIME_VALUE="%d"/>`+"\n", s.id, s.ms)
	}
	b.WriteString("    </TIME_ORDER>\n")
	for _, t := range tiers {
		lt := t.lt
		if lt == "" {
			lt = "default-lt"
		}
		fmt.Fprintf(&b, `    <TIER LINGUISTIC_TYPE_REF="%s" TIER_ID="%s">`+"\n", lt, t.id)
		for _, a := range t.anns {
			fmt.Fprintf(&b, `        <ANNOTATION><ALIGNABLE_ANNOTATION ANNOTATION_ID="%s" TIME_SLOT_REF1="%s" TIME_SLOT_REF2="%s"><ANNOTATION_VALUE>%s</ANNOTATION_VALUE></ALIGNABLE_ANNOTATION></ANNOTATION>`+"\n",
				a.id, a.ts1, a.ts2, a.value)
		}
		b.WriteString("    </TIER>\n")
	}
	b.WriteString(`    <LINGUISTIC_TYPE GRAPHIC_REFERENCES="false" LINGUISTIC_TYPE_ID="default-lt" TIME_ALIGNABLE="true"/>` + "\n")
	for _, t := range tiers {
		if t.lt != "" && t.lt != "default-lt" {
			fmt.Fprintf(&b, `    <LINGUISTIC_TYPE GRAPHIC_REFERENCES="false" LINGUISTIC_TYPE_ID="%s" TIME_ALIGNABLE="true"/>`+"\n", t.lt)
		}
	}
	b.WriteString("</ANNOTATION_DOCUMENT>\n")
	return b.String()
}

func mustParse(t *testing.T, path, src string) *eaf.Document {
	t.Helper()
	doc, err := eaf.Parse([]byte(src), path)
	if err != nil {
		t.Fatalf("Parse(%s) error = %v", path, err)
	}
	return doc
}

// fakeProber returns fixed durations keyed by audio path.
type fakeProber map[string]int64

func (p fakeProber) Duration(ctx context.Context, path string) (int64, error) {
	d, ok := p[path]
	if !ok {
		return 0, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}
	return d, nil
}

func slotsOf(doc *eaf.Document) []string {
	var out []string
	for _, s := range doc.TimeOrder() {
		v, _ := s.Value()
		out = append(out, fmt.Sprintf("%s:%d", s.ID(), v))
	}
	return out
}

func annotationIDs(tr *eaf.Tier) []string {
	var out []string
	for _, a := range tr.Annotations() {
		out = append(out, a.ID())
	}
	return out
}

func equal(a, b []string) bool {
	return strings.Join(a, ",") == strings.Join(b, ",")
}

func exampleInputs(t *testing.T) []Input {
	x := mustParse(t, "/rec/x.eaf", buildEAF("x.wav",
		[]slot{{"ts1", 0}, {"ts2", 500}},
		tier{id: "spk1", anns: []ann{{"a1", "ts1", "ts2", "hello"}}}))
	y := mustParse(t, "/rec/y.eaf", buildEAF("y.wav",
		[]slot{{"ts1", 0}, {"ts2", 300}},
		tier{id: "spk1", anns: []ann{{"a1", "ts1", "ts2", "world"}}}))
	return []Input{{Path: "/rec/x.eaf", Doc: x}, {Path: "/rec/y.eaf", Doc: y}}
}

func TestMergeExample(t *testing.T) {
	inputs := exampleInputs(t)
	m := New(Options{}, fakeProber{"/rec/x.wav": 1000, "/rec/y.wav": 400})

	res, err := m.Merge(context.Background(), inputs)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	doc := res.Document

	if got, want := slotsOf(doc), []string{"ts1:0", "ts2:500", "ts3:1000", "ts4:1300"}; !equal(got, want) {
		t.Errorf("time order = %v, want %v", got, want)
	}
	spk1 := doc.Tier("spk1")
	if got := annotationIDs(spk1); !equal(got, []string{"a1", "a2"}) {
		t.Fatalf("spk1 annotations = %v", got)
	}
	a2 := spk1.Annotations()[1]
	if refs := a2.TimeSlotRefs(); !equal(refs, []string{"ts3", "ts4"}) {
		t.Errorf("a2 refs = %v", refs)
	}
	if a2.Value() != "world" {
		t.Errorf("a2 value = %q", a2.Value())
	}

	if res.TotalMs != 1400 {
		t.Errorf("TotalMs = %d, want 1400", res.TotalMs)
	}
	if len(res.Steps) != 2 || res.Steps[1].OffsetMs != 1000 || res.Steps[0].DurationMs != 1000 {
		t.Errorf("steps = %+v", res.Steps)
	}
	if res.Steps[1].TimeSlotBase != 2 || res.Steps[1].AnnotationBase != 1 {
		t.Errorf("rename bases = %d/%d", res.Steps[1].TimeSlotBase, res.Steps[1].AnnotationBase)
	}

	md := doc.MediaDescriptors()[0]
	if md.MediaURL() != DefaultMediaURL || md.RelativeMediaURL() != DefaultRelativeMediaURL {
		t.Errorf("media = %q / %q", md.MediaURL(), md.RelativeMediaURL())
	}
	if v, _ := doc.Property(eaf.PropertyLastUsedAnnotationID); v != "2" {
		t.Errorf("lastUsedAnnotationId = %q, want 2", v)
	}

	// The merged document survives a serialize/parse cycle.
	out, err := doc.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eaf.Parse(out, "combined.eaf"); err != nil {
		t.Errorf("merged document does not reparse: %v", err)
	}
}

func TestMergeDoesNotModifyInputs(t *testing.T) {
	inputs := exampleInputs(t)
	before := make([][]byte, len(inputs))
	for i, in := range inputs {
		b, err := in.Doc.Serialize()
		if err != nil {
			t.Fatal(err)
		}
		before[i] = b
	}

	m := New(Options{}, fakeProber{"/rec/x.wav": 1000, "/rec/y.wav": 400})
	if _, err := m.Merge(context.Background(), inputs); err != nil {
		t.Fatal(err)
	}
	for i, in := range inputs {
		after, _ := in.Doc.Serialize()
		if !bytes.Equal(before[i], after) {
			t.Errorf("input %d was modified", i)
		}
	}
}

func TestMergeOffsetsAndOrder(t *testing.T) {
	durations := []int64{1200, 800, 950}
	prober := fakeProber{}
	var inputs []Input
	for i, d := range durations {
		path := fmt.Sprintf("/rec/seg%02d.eaf", i+1)
		prober[fmt.Sprintf("/rec/seg%02d.wav", i+1)] = d
		doc := mustParse(t, path, buildEAF("seg.wav",
			[]slot{{"ts1", 100}, {"ts2", 400}, {"ts3", 700}},
			tier{id: "spk1", anns: []ann{
				{"a1", "ts1", "ts2", fmt.Sprintf("seg%d first", i+1)},
				{"a2", "ts2", "ts3", fmt.Sprintf("seg%d second", i+1)},
			}},
			tier{id: "spk2", anns: []ann{{"a3", "ts1", "ts3", fmt.Sprintf("seg%d other", i+1)}}},
		))
		inputs = append(inputs, Input{Path: path, Doc: doc})
	}

	res, err := New(Options{}, prober).Merge(context.Background(), inputs)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	doc := res.Document

	var sum int64
	for k, step := range res.Steps {
		if step.OffsetMs != sum {
			t.Errorf("step %d offset = %d, want %d", k, step.OffsetMs, sum)
		}
		sum += durations[k]
	}
	if res.TotalMs != sum {
		t.Errorf("TotalMs = %d, want %d", res.TotalMs, sum)
	}
	if got, want := doc.MaxTimeValue(), int64(1200+800+700); got != want {
		t.Errorf("span = %d, want %d", got, want)
	}

	// Injective in both namespaces.
	for _, ns := range eaf.Namespaces {
		seen := map[string]bool{}
		for _, id := range ids(doc, ns) {
			if seen[id] {
				t.Errorf("duplicate %s id %s", ns, id)
			}
			seen[id] = true
		}
	}
	if err := doc.Validate(); err != nil {
		t.Errorf("merged document invalid: %v", err)
	}

	// Concatenation in fold order, no reordering.
	var values []string
	for _, a := range doc.Tier("spk1").Annotations() {
		values = append(values, a.Value())
	}
	want := []string{"seg1 first", "seg1 second", "seg2 first", "seg2 second", "seg3 first", "seg3 second"}
	if !equal(values, want) {
		t.Errorf("spk1 values = %v", values)
	}
	if got := len(doc.TimeOrder()); got != 9 {
		t.Errorf("time slots = %d, want 9", got)
	}
	if got := annotationIDs(doc.Tier("spk2")); !equal(got, []string{"a3", "a6", "a9"}) {
		t.Errorf("spk2 ids = %v", got)
	}
}

func TestMergeSingleton(t *testing.T) {
	src := buildEAF("only.wav", []slot{{"ts1", 0}, {"ts2", 10}},
		tier{id: "spk1", anns: []ann{{"a1", "ts1", "ts2", "solo"}}})
	doc := mustParse(t, "/rec/only.eaf", src)

	res, err := New(Options{}, fakeProber{"/rec/only.wav": 10}).Merge(context.Background(),
		[]Input{{Path: "/rec/only.eaf", Doc: doc}})
	if err != nil {
		t.Fatal(err)
	}

	want, err := doc.Clone()
	if err != nil {
		t.Fatal(err)
	}
	RewriteMedia(want, "", "")
	UpdateLastUsedAnnotationID(want)
	wantBytes, _ := want.Serialize()
	gotBytes, _ := res.Document.Serialize()
	if !bytes.Equal(wantBytes, gotBytes) {
		t.Errorf("singleton merge changed the document:\n%s\nwant:\n%s", gotBytes, wantBytes)
	}
	if res.TotalMs != 10 {
		t.Errorf("TotalMs = %d", res.TotalMs)
	}
}

func TestMergeErrors(t *testing.T) {
	ctx := context.Background()

	if _, err := New(Options{}, fakeProber{}).Merge(ctx, nil); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("empty batch: got %v", err)
	}

	_, err := New(Options{}, fakeProber{"/rec/y.wav": 1}).Merge(ctx, exampleInputs(t))
	if !errors.Is(err, errors.ErrMissingAudioFile) {
		t.Fatalf("missing audio: got %v", err)
	}
	var missing *errors.MissingAudioFileError
	if !errors.As(err, &missing) || missing.Document != "/rec/x.eaf" || missing.AudioPath != "/rec/x.wav" {
		t.Errorf("missing audio context = %+v", missing)
	}

	// The last document's audio is required too.
	_, err = New(Options{}, fakeProber{"/rec/x.wav": 1}).Merge(ctx, exampleInputs(t))
	if !errors.Is(err, errors.ErrMissingAudioFile) {
		t.Errorf("missing last audio: got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = New(Options{}, fakeProber{"/rec/x.wav": 1, "/rec/y.wav": 1}).Merge(cancelled, exampleInputs(t))
	if err != context.Canceled {
		t.Errorf("cancelled: got %v", err)
	}
}

func TestMergeExplicitAudioPath(t *testing.T) {
	inputs := exampleInputs(t)
	inputs[0].AudioPath = "/audio/first.flac"
	inputs[1].AudioPath = "/audio/second.flac"
	res, err := New(Options{}, fakeProber{"/audio/first.flac": 700, "/audio/second.flac": 1}).
		Merge(context.Background(), inputs)
	if err != nil {
		t.Fatal(err)
	}
	if res.Steps[1].OffsetMs != 700 || res.Steps[1].AudioPath != "/audio/second.flac" {
		t.Errorf("steps = %+v", res.Steps)
	}
}

func TestMergeAudioExtension(t *testing.T) {
	res, err := New(Options{AudioExtension: ".mp3"}, fakeProber{"/rec/x.mp3": 250, "/rec/y.mp3": 1}).
		Merge(context.Background(), exampleInputs(t))
	if err != nil {
		t.Fatal(err)
	}
	if res.Steps[1].OffsetMs != 250 {
		t.Errorf("offset = %d, want 250", res.Steps[1].OffsetMs)
	}
}

func TestMergeTierPolicies(t *testing.T) {
	newInputs := func() []Input {
		a := mustParse(t, "/rec/a.eaf", buildEAF("a.wav", []slot{{"ts1", 0}, {"ts2", 100}},
			tier{id: "spk1", anns: []ann{{"a1", "ts1", "ts2", "one"}}}))
		b := mustParse(t, "/rec/b.eaf", buildEAF("b.wav", []slot{{"ts1", 0}, {"ts2", 100}},
			tier{id: "spk1", anns: []ann{{"a1", "ts1", "ts2", "two"}}},
			tier{id: "spk3", lt: "interviewer-lt", anns: []ann{{"a2", "ts1", "ts2", "three"}}},
			tier{id: "empty"},
		))
		return []Input{{Path: "/rec/a.eaf", Doc: a}, {Path: "/rec/b.eaf", Doc: b}}
	}
	prober := fakeProber{"/rec/a.wav": 100, "/rec/b.wav": 100}

	t.Run("create", func(t *testing.T) {
		res, err := New(Options{TierPolicy: TierCreate}, prober).Merge(context.Background(), newInputs())
		if err != nil {
			t.Fatal(err)
		}
		spk3 := res.Document.Tier("spk3")
		if spk3 == nil {
			t.Fatal("spk3 not created")
		}
		if got := annotationIDs(spk3); !equal(got, []string{"a3"}) {
			t.Errorf("spk3 ids = %v", got)
		}
		if !res.Document.HasLinguisticType("interviewer-lt") {
			t.Error("linguistic type of created tier not adopted")
		}
		if res.Document.Tier("empty") != nil {
			t.Error("empty incoming tier should not be created")
		}
		if !equal(res.Steps[1].TiersCreated, []string{"spk3"}) || len(res.Warnings) != 0 {
			t.Errorf("step = %+v, warnings = %v", res.Steps[1], res.Warnings)
		}
		if err := res.Document.Validate(); err != nil {
			t.Error(err)
		}
	})

	t.Run("skip", func(t *testing.T) {
		res, err := New(Options{TierPolicy: TierSkip}, prober).Merge(context.Background(), newInputs())
		if err != nil {
			t.Fatal(err)
		}
		if res.Document.Tier("spk3") != nil {
			t.Error("spk3 should be skipped")
		}
		if len(res.Warnings) != 1 || !errors.Is(res.Warnings[0], errors.ErrTierMismatch) {
			t.Errorf("warnings = %v", res.Warnings)
		}
		if got := annotationIDs(res.Document.Tier("spk1")); !equal(got, []string{"a1", "a2"}) {
			t.Errorf("spk1 ids = %v", got)
		}
	})

	t.Run("strict", func(t *testing.T) {
		_, err := New(Options{TierPolicy: TierStrict}, prober).Merge(context.Background(), newInputs())
		var mismatch *errors.TierMismatchError
		if !errors.As(err, &mismatch) || mismatch.TierID != "spk3" || mismatch.Document != "/rec/b.eaf" {
			t.Errorf("strict: got %v", err)
		}
	})
}

func TestParseTierPolicy(t *testing.T) {
	tests := map[string]TierPolicy{"": TierCreate, "create": TierCreate, " Skip ": TierSkip, "STRICT": TierStrict}
	for in, want := range tests {
		got, err := ParseTierPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseTierPolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseTierPolicy("drop"); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("ParseTierPolicy(drop) error = %v", err)
	}
}
