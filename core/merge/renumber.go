package merge

import (
	"github.com/FocuswithJustin/eafmerge/core/eaf"
	"github.com/FocuswithJustin/eafmerge/core/errors"
)

// RenameMap records how one incoming document's identifiers were renumbered.
type RenameMap struct {
	TimeSlotBase   int
	AnnotationBase int
	TimeSlots      map[string]string
	Annotations    map[string]string
}

// TimeSlot returns the new id of a time slot, or id when it was not renamed.
func (m RenameMap) TimeSlot(id string) string {
	if to, ok := m.TimeSlots[id]; ok {
		return to
	}
	return id
}

// Annotation returns the new id of an annotation, or id when it was not renamed.
func (m RenameMap) Annotation(id string) string {
	if to, ok := m.Annotations[id]; ok {
		return to
	}
	return id
}

// MaxID returns the largest numeric suffix used in namespace ns, or 0.
func MaxID(doc *eaf.Document, ns string) int {
	max := 0
	for _, id := range ids(doc, ns) {
		if n, err := eaf.ParseID(ns, id); err == nil && n > max {
			max = n
		}
	}
	return max
}

func ids(doc *eaf.Document, ns string) []string {
	var out []string
	switch ns {
	case eaf.NamespaceTimeSlot:
		for _, s := range doc.TimeOrder() {
			out = append(out, s.ID())
		}
	case eaf.NamespaceAnnotation:
		for _, a := range doc.Annotations() {
			out = append(out, a.ID())
		}
	}
	return out
}

// Renumber renames every identifier of in so that none collides with acc.
// Each id N<k> becomes N<k+max(acc, N)>. Definitions and references
// (time slot refs, ANNOTATION_REF, PREVIOUS_ANNOTATION) are rewritten from
// one map in a single pass. acc is not modified. On error in is left
// untouched.
func Renumber(acc, in *eaf.Document) (RenameMap, error) {
	m := RenameMap{
		TimeSlotBase:   MaxID(acc, eaf.NamespaceTimeSlot),
		AnnotationBase: MaxID(acc, eaf.NamespaceAnnotation),
		TimeSlots:      make(map[string]string),
		Annotations:    make(map[string]string),
	}

	if err := buildMap(acc, in, eaf.NamespaceTimeSlot, m.TimeSlotBase, m.TimeSlots); err != nil {
		return RenameMap{}, err
	}
	if err := buildMap(acc, in, eaf.NamespaceAnnotation, m.AnnotationBase, m.Annotations); err != nil {
		return RenameMap{}, err
	}

	for _, s := range in.TimeOrder() {
		s.SetID(m.TimeSlot(s.ID()))
	}
	for _, a := range in.Annotations() {
		a.SetID(m.Annotation(a.ID()))
		if refs := a.TimeSlotRefs(); len(refs) > 0 {
			for i, r := range refs {
				refs[i] = m.TimeSlot(r)
			}
			a.SetTimeSlotRefs(refs)
		}
		if ref, ok := a.AnnotationRef(); ok {
			a.SetAnnotationRef(m.Annotation(ref))
		}
		if prev, ok := a.PreviousAnnotation(); ok {
			a.SetPreviousAnnotation(m.Annotation(prev))
		}
	}
	return m, nil
}

// buildMap fills rename for namespace ns and fails if any target id is taken,
// either by acc or by another id of in.
func buildMap(acc, in *eaf.Document, ns string, base int, rename map[string]string) error {
	taken := make(map[string]bool)
	for _, id := range ids(acc, ns) {
		taken[id] = true
	}
	for _, id := range ids(in, ns) {
		n, err := eaf.ParseID(ns, id)
		if err != nil {
			return errors.NewMalformed(in.Path(), "", err.Error())
		}
		to := eaf.FormatID(ns, n+base)
		if taken[to] {
			return errors.NewIDCollision(in.Path(), ns, to)
		}
		taken[to] = true
		rename[id] = to
	}
	return nil
}
