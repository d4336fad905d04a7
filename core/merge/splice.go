package merge

import (
	"fmt"
	"strings"

	"github.com/FocuswithJustin/eafmerge/core/eaf"
	"github.com/FocuswithJustin/eafmerge/core/errors"
	"github.com/FocuswithJustin/eafmerge/internal/logging"
)

// TierPolicy decides what happens to an incoming tier the accumulator lacks.
type TierPolicy string

const (
	// TierCreate adds the tier, and its linguistic type, to the accumulator.
	TierCreate TierPolicy = "create"
	// TierSkip drops the tier with a warning.
	TierSkip TierPolicy = "skip"
	// TierStrict fails the merge.
	TierStrict TierPolicy = "strict"
)

// TierPolicies lists the accepted policy names.
var TierPolicies = []TierPolicy{TierCreate, TierSkip, TierStrict}

// ParseTierPolicy converts a policy name. The empty string selects TierCreate.
func ParseTierPolicy(s string) (TierPolicy, error) {
	switch p := TierPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return TierCreate, nil
	case TierCreate, TierSkip, TierStrict:
		return p, nil
	}
	return "", errors.NewValidation("tier_policy", fmt.Sprintf("unknown tier policy %q (want create, skip or strict)", s))
}

// SpliceReport lists what Splice did with tiers absent from the accumulator.
type SpliceReport struct {
	Created []string
	Skipped []string
}

// Splice moves the annotations and time slots of in into acc. Annotations are
// appended to the tier with the same TIER_ID, preserving order; empty incoming
// tiers are ignored. in's TIME_ORDER is appended to acc's without
// deduplication. in must not be used afterwards.
//
// Under TierStrict the check runs before anything is moved, so a failed call
// leaves acc unchanged.
func Splice(acc, in *eaf.Document, policy TierPolicy) (SpliceReport, error) {
	var report SpliceReport

	if policy == TierStrict {
		for _, t := range in.Tiers() {
			if len(t.Annotations()) > 0 && acc.Tier(t.ID()) == nil {
				return report, errors.NewTierMismatch(in.Path(), t.ID())
			}
		}
	}

	for _, t := range in.Tiers() {
		anns := t.Annotations()
		if len(anns) == 0 {
			continue
		}
		if host := acc.Tier(t.ID()); host != nil {
			for _, a := range anns {
				acc.AppendAnnotation(host, a)
			}
			continue
		}

		if policy == TierSkip {
			report.Skipped = append(report.Skipped, t.ID())
			logging.TierSkipped(in.Path(), t.ID(), "annotations", len(anns))
			continue
		}

		acc.AdoptLinguisticType(in, t.LinguisticTypeRef())
		acc.AddTier(t)
		report.Created = append(report.Created, t.ID())
		logging.TierCreated(in.Path(), t.ID(), "annotations", len(anns))
	}

	for _, s := range in.TimeOrder() {
		acc.AppendTimeSlot(s)
	}
	return report, nil
}
