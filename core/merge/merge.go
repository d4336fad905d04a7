// Package merge folds an ordered batch of annotation documents into one.
//
// Each fold step renumbers the incoming document's identifiers above the
// accumulator's (Renumber), shifts its time slots by the summed duration of
// the audio before it (Shift), and moves its annotations and time slots into
// the accumulator (Splice). After the last step the media references are
// pointed at the combined audio (RewriteMedia).
package merge

import (
	"context"

	"github.com/FocuswithJustin/eafmerge/core/audio"
	"github.com/FocuswithJustin/eafmerge/core/eaf"
	"github.com/FocuswithJustin/eafmerge/core/errors"
	"github.com/FocuswithJustin/eafmerge/internal/logging"
)

// Options configures a Merger.
type Options struct {
	TierPolicy       TierPolicy
	MediaURL         string // MEDIA_URL of the result; DefaultMediaURL when empty
	RelativeMediaURL string // RELATIVE_MEDIA_URL of the result; DefaultRelativeMediaURL when empty
	AudioExtension   string // used when an Input has no AudioPath
}

// Input is one document of the batch. AudioPath defaults to the file next to
// Path with the configured audio extension.
type Input struct {
	Path      string
	Doc       *eaf.Document
	AudioPath string
}

// Step records one fold step.
type Step struct {
	Path           string
	AudioPath      string
	OffsetMs       int64
	DurationMs     int64
	TimeSlotBase   int
	AnnotationBase int
	TiersCreated   []string
	TiersSkipped   []string
}

// Result is the outcome of a merge.
type Result struct {
	Document *eaf.Document
	Steps    []Step
	TotalMs  int64   // summed duration of every input's audio
	Warnings []error // non-fatal problems, such as tiers skipped by policy
}

// Merger folds documents left to right.
type Merger struct {
	Options Options
	Prober  audio.Prober
}

// New returns a Merger. A nil prober reads WAV headers.
func New(opts Options, prober audio.Prober) *Merger {
	if prober == nil {
		prober = audio.WAVProber{}
	}
	return &Merger{Options: opts, Prober: prober}
}

// Merge folds inputs in the order given. The input documents are not
// modified. Any error aborts the whole batch and no partial result is
// returned.
func (m *Merger) Merge(ctx context.Context, inputs []Input) (*Result, error) {
	if len(inputs) == 0 {
		return nil, errors.NewNotFound("annotation document", "")
	}
	policy := m.Options.TierPolicy
	if policy == "" {
		policy = TierCreate
	}

	acc, err := inputs[0].Doc.Clone()
	if err != nil {
		return nil, errors.Wrapf(err, "cloning %s", inputs[0].Path)
	}

	res := &Result{Steps: make([]Step, len(inputs))}
	res.Steps[0] = Step{Path: inputs[0].Path, AudioPath: m.audioPath(inputs[0])}
	logging.FoldStep(inputs[0].Path, 0, 0)

	var offset int64
	for i := 1; i < len(inputs); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		prev := &res.Steps[i-1]
		d, err := m.duration(ctx, inputs[i-1].Path, prev.AudioPath)
		if err != nil {
			return nil, err
		}
		prev.DurationMs = d
		offset += d

		step, err := m.fold(acc, inputs[i], offset, policy)
		if err != nil {
			return nil, err
		}
		for _, tier := range step.TiersSkipped {
			res.Warnings = append(res.Warnings, errors.NewTierMismatch(inputs[i].Path, tier))
		}
		res.Steps[i] = step
		logging.FoldStep(inputs[i].Path, i, offset,
			"ts_base", step.TimeSlotBase,
			"a_base", step.AnnotationBase,
			"tiers_created", len(step.TiersCreated),
			"tiers_skipped", len(step.TiersSkipped),
		)
	}

	last := &res.Steps[len(inputs)-1]
	d, err := m.duration(ctx, inputs[len(inputs)-1].Path, last.AudioPath)
	if err != nil {
		return nil, err
	}
	last.DurationMs = d
	res.TotalMs = offset + d

	RewriteMedia(acc, m.Options.MediaURL, m.Options.RelativeMediaURL)
	UpdateLastUsedAnnotationID(acc)
	res.Document = acc
	return res, nil
}

// fold merges a copy of in into acc at offsetMs.
func (m *Merger) fold(acc *eaf.Document, in Input, offsetMs int64, policy TierPolicy) (Step, error) {
	doc, err := in.Doc.Clone()
	if err != nil {
		return Step{}, errors.Wrapf(err, "cloning %s", in.Path)
	}

	rename, err := Renumber(acc, doc)
	if err != nil {
		return Step{}, err
	}
	if err := Shift(doc, offsetMs); err != nil {
		return Step{}, err
	}
	report, err := Splice(acc, doc, policy)
	if err != nil {
		return Step{}, err
	}

	return Step{
		Path:           in.Path,
		AudioPath:      m.audioPath(in),
		OffsetMs:       offsetMs,
		TimeSlotBase:   rename.TimeSlotBase,
		AnnotationBase: rename.AnnotationBase,
		TiersCreated:   report.Created,
		TiersSkipped:   report.Skipped,
	}, nil
}

func (m *Merger) audioPath(in Input) string {
	if in.AudioPath != "" {
		return in.AudioPath
	}
	return audio.PairedAudio(in.Path, m.Options.AudioExtension)
}

func (m *Merger) duration(ctx context.Context, docPath, audioPath string) (int64, error) {
	d, err := m.Prober.Duration(ctx, audioPath)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, errors.NewMissingAudio(docPath, audioPath, err)
	}
	logging.AudioProbed(audioPath, d)
	return d, nil
}
