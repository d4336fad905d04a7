package eaf

import (
	"fmt"
	"os"
	"strconv"

	"github.com/FocuswithJustin/eafmerge/core/errors"
	"github.com/FocuswithJustin/eafmerge/core/xml"
)

// Element and attribute names of the EAF format.
const (
	ElemHeader         = "HEADER"
	ElemMedia          = "MEDIA_DESCRIPTOR"
	ElemProperty       = "PROPERTY"
	ElemTimeOrder      = "TIME_ORDER"
	ElemTimeSlot       = "TIME_SLOT"
	ElemTier           = "TIER"
	ElemAnnotation     = "ANNOTATION"
	ElemAlignable      = "ALIGNABLE_ANNOTATION"
	ElemRefAnnotation  = "REF_ANNOTATION"
	ElemValue          = "ANNOTATION_VALUE"
	ElemLinguisticType = "LINGUISTIC_TYPE"

	AttrTimeSlotID         = "TIME_SLOT_ID"
	AttrTimeValue          = "TIME_VALUE"
	AttrTimeUnits          = "TIME_UNITS"
	AttrTierID             = "TIER_ID"
	AttrParentRef          = "PARENT_REF"
	AttrLinguisticTypeRef  = "LINGUISTIC_TYPE_REF"
	AttrLinguisticTypeID   = "LINGUISTIC_TYPE_ID"
	AttrAnnotationID       = "ANNOTATION_ID"
	AttrTimeSlotRef1       = "TIME_SLOT_REF1"
	AttrTimeSlotRef2       = "TIME_SLOT_REF2"
	AttrAnnotationRef      = "ANNOTATION_REF"
	AttrPreviousAnnotation = "PREVIOUS_ANNOTATION"
	AttrMediaURL           = "MEDIA_URL"
	AttrRelativeMediaURL   = "RELATIVE_MEDIA_URL"
	AttrMIMEType           = "MIME_TYPE"
	AttrName               = "NAME"

	// PropertyLastUsedAnnotationID is the HEADER property ELAN reads to
	// allocate new annotation ids.
	PropertyLastUsedAnnotationID = "lastUsedAnnotationId"
)

var timeSlotRefAttrs = []string{AttrTimeSlotRef1, AttrTimeSlotRef2}

// Document is one parsed annotation document.
type Document struct {
	path      string
	tree      *xml.Document
	root      *xml.Node
	header    *xml.Node
	timeOrder *xml.Node
	slots     []*TimeSlot
	tiers     []*Tier
	media     []*MediaDescriptor
}

// TimeSlot is a named point in time.
type TimeSlot struct {
	node    *xml.Node
	id      string
	value   int64
	aligned bool
}

// ID returns the TIME_SLOT_ID.
func (s *TimeSlot) ID() string { return s.id }

// Value returns the time in milliseconds and whether the slot carries one.
func (s *TimeSlot) Value() (int64, bool) { return s.value, s.aligned }

// SetID renames the slot. References to it are not updated.
func (s *TimeSlot) SetID(id string) {
	s.id = id
	s.node.SetAttr(AttrTimeSlotID, id)
}

// SetValue sets the time in milliseconds.
func (s *TimeSlot) SetValue(ms int64) {
	s.value = ms
	s.aligned = true
	s.node.SetAttr(AttrTimeValue, strconv.FormatInt(ms, 10))
}

// AnnotationKind distinguishes time-aligned from referring annotations.
type AnnotationKind int

const (
	// Alignable annotations anchor to one or two time slots.
	Alignable AnnotationKind = iota
	// Reference annotations anchor to another annotation.
	Reference
)

func (k AnnotationKind) String() string {
	if k == Reference {
		return ElemRefAnnotation
	}
	return ElemAlignable
}

// Annotation is a single transcribed unit.
type Annotation struct {
	node  *xml.Node // ANNOTATION
	inner *xml.Node // ALIGNABLE_ANNOTATION or REF_ANNOTATION
	kind  AnnotationKind
}

// ID returns the ANNOTATION_ID.
func (a *Annotation) ID() string { return a.inner.Attr(AttrAnnotationID) }

// SetID renames the annotation. References to it are not updated.
func (a *Annotation) SetID(id string) { a.inner.SetAttr(AttrAnnotationID, id) }

// Kind reports whether the annotation is alignable or a reference.
func (a *Annotation) Kind() AnnotationKind { return a.kind }

// TimeSlotRefs returns the referenced time slot ids in attribute order.
func (a *Annotation) TimeSlotRefs() []string {
	var refs []string
	for _, name := range timeSlotRefAttrs {
		if v, ok := a.inner.LookupAttr(name); ok {
			refs = append(refs, v)
		}
	}
	return refs
}

// SetTimeSlotRefs overwrites the time slot references present on the
// annotation, in order. Extra values are ignored.
func (a *Annotation) SetTimeSlotRefs(refs []string) {
	i := 0
	for _, name := range timeSlotRefAttrs {
		if i >= len(refs) {
			return
		}
		if _, ok := a.inner.LookupAttr(name); ok {
			a.inner.SetAttr(name, refs[i])
			i++
		}
	}
}

// AnnotationRef returns the id of the annotation a reference annotation
// points to.
func (a *Annotation) AnnotationRef() (string, bool) {
	return a.inner.LookupAttr(AttrAnnotationRef)
}

// SetAnnotationRef sets ANNOTATION_REF.
func (a *Annotation) SetAnnotationRef(id string) { a.inner.SetAttr(AttrAnnotationRef, id) }

// PreviousAnnotation returns PREVIOUS_ANNOTATION, used by symbolic
// subdivision tiers.
func (a *Annotation) PreviousAnnotation() (string, bool) {
	return a.inner.LookupAttr(AttrPreviousAnnotation)
}

// SetPreviousAnnotation sets PREVIOUS_ANNOTATION.
func (a *Annotation) SetPreviousAnnotation(id string) {
	a.inner.SetAttr(AttrPreviousAnnotation, id)
}

// Value returns the ANNOTATION_VALUE text.
func (a *Annotation) Value() string {
	return a.inner.FirstChildNamed(ElemValue).Text()
}

// SetValue replaces the ANNOTATION_VALUE text.
func (a *Annotation) SetValue(s string) {
	v := a.inner.FirstChildNamed(ElemValue)
	if v == nil {
		v = xml.NewElement(ElemValue)
		a.inner.AppendChild(v)
	}
	v.SetText(s)
}

// Tier is a named channel of annotations.
type Tier struct {
	node        *xml.Node
	id          string
	annotations []*Annotation
}

// ID returns the TIER_ID.
func (t *Tier) ID() string { return t.id }

// Annotations returns the tier's annotations in document order.
func (t *Tier) Annotations() []*Annotation { return t.annotations }

// LinguisticTypeRef returns LINGUISTIC_TYPE_REF.
func (t *Tier) LinguisticTypeRef() string { return t.node.Attr(AttrLinguisticTypeRef) }

// ParentRef returns PARENT_REF for dependent tiers.
func (t *Tier) ParentRef() string { return t.node.Attr(AttrParentRef) }

// MediaDescriptor is a linked media file.
type MediaDescriptor struct {
	node *xml.Node
}

// MediaURL returns MEDIA_URL.
func (m *MediaDescriptor) MediaURL() string { return m.node.Attr(AttrMediaURL) }

// RelativeMediaURL returns RELATIVE_MEDIA_URL.
func (m *MediaDescriptor) RelativeMediaURL() string { return m.node.Attr(AttrRelativeMediaURL) }

// MIMEType returns MIME_TYPE.
func (m *MediaDescriptor) MIMEType() string { return m.node.Attr(AttrMIMEType) }

// SetMediaURL sets MEDIA_URL.
func (m *MediaDescriptor) SetMediaURL(url string) { m.node.SetAttr(AttrMediaURL, url) }

// SetRelativeMediaURL sets RELATIVE_MEDIA_URL.
func (m *MediaDescriptor) SetRelativeMediaURL(url string) {
	m.node.SetAttr(AttrRelativeMediaURL, url)
}

// ParseFile reads and parses the document at path.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	return Parse(data, path)
}

// Parse parses a serialized document. path is used in error messages only.
func Parse(data []byte, path string) (*Document, error) {
	tree, err := xml.Parse(data)
	if err != nil {
		return nil, &errors.MalformedDocumentError{Path: path, Message: "invalid XML", Err: err}
	}
	return fromTree(tree, path)
}

func fromTree(tree *xml.Document, path string) (*Document, error) {
	d := &Document{path: path, tree: tree, root: tree.Root()}
	if d.root == nil {
		return nil, errors.NewMalformed(path, "", "no root element")
	}

	var err error
	d.timeOrder, err = tree.XPathFirst("/*/" + ElemTimeOrder)
	if err != nil {
		return nil, &errors.MalformedDocumentError{Path: path, Section: ElemTimeOrder, Message: "lookup failed", Err: err}
	}
	if d.timeOrder == nil {
		return nil, errors.NewMalformed(path, ElemTimeOrder, "section not found")
	}
	tierNodes, err := tree.XPath("/*/" + ElemTier)
	if err != nil {
		return nil, &errors.MalformedDocumentError{Path: path, Section: ElemTier, Message: "lookup failed", Err: err}
	}
	if len(tierNodes) == 0 {
		return nil, errors.NewMalformed(path, ElemTier, "no tier found")
	}

	d.header = d.root.FirstChildNamed(ElemHeader)
	if d.header != nil {
		if units, ok := d.header.LookupAttr(AttrTimeUnits); ok && units != "milliseconds" {
			return nil, errors.NewMalformed(path, ElemHeader, fmt.Sprintf("unsupported TIME_UNITS %q", units))
		}
		for _, n := range d.header.ChildrenNamed(ElemMedia) {
			d.media = append(d.media, &MediaDescriptor{node: n})
		}
	}

	for _, n := range d.timeOrder.ChildrenNamed(ElemTimeSlot) {
		slot := &TimeSlot{node: n, id: n.Attr(AttrTimeSlotID)}
		if raw, ok := n.LookupAttr(AttrTimeValue); ok {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || v < 0 {
				return nil, errors.NewMalformed(path, ElemTimeOrder,
					fmt.Sprintf("time slot %s has invalid TIME_VALUE %q", slot.id, raw))
			}
			slot.value, slot.aligned = v, true
		}
		d.slots = append(d.slots, slot)
	}

	for _, tn := range tierNodes {
		tier := &Tier{node: tn, id: tn.Attr(AttrTierID)}
		for _, an := range tn.ChildrenNamed(ElemAnnotation) {
			a, err := newAnnotation(an)
			if err != nil {
				return nil, errors.NewMalformed(path, ElemTier, fmt.Sprintf("tier %q: %v", tier.id, err))
			}
			tier.annotations = append(tier.annotations, a)
		}
		d.tiers = append(d.tiers, tier)
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func newAnnotation(n *xml.Node) (*Annotation, error) {
	if inner := n.FirstChildNamed(ElemAlignable); inner != nil {
		return &Annotation{node: n, inner: inner, kind: Alignable}, nil
	}
	if inner := n.FirstChildNamed(ElemRefAnnotation); inner != nil {
		return &Annotation{node: n, inner: inner, kind: Reference}, nil
	}
	return nil, fmt.Errorf("ANNOTATION without %s or %s", ElemAlignable, ElemRefAnnotation)
}

// Validate checks the document invariants: well-formed unique identifiers,
// unique tier ids, and references that resolve within the document.
func (d *Document) Validate() error {
	slotIDs := make(map[string]bool, len(d.slots))
	for _, s := range d.slots {
		if _, err := ParseID(NamespaceTimeSlot, s.id); err != nil {
			return errors.NewMalformed(d.path, ElemTimeOrder, err.Error())
		}
		if slotIDs[s.id] {
			return errors.NewMalformed(d.path, ElemTimeOrder, "duplicate time slot id "+s.id)
		}
		slotIDs[s.id] = true
	}

	tierIDs := make(map[string]bool, len(d.tiers))
	annIDs := make(map[string]bool)
	for _, t := range d.tiers {
		if t.id == "" {
			return errors.NewMalformed(d.path, ElemTier, "tier without TIER_ID")
		}
		if tierIDs[t.id] {
			return errors.NewMalformed(d.path, ElemTier, fmt.Sprintf("duplicate tier id %q", t.id))
		}
		tierIDs[t.id] = true
		for _, a := range t.annotations {
			id := a.ID()
			if _, err := ParseID(NamespaceAnnotation, id); err != nil {
				return errors.NewMalformed(d.path, ElemTier, fmt.Sprintf("tier %q: %v", t.id, err))
			}
			if annIDs[id] {
				return errors.NewMalformed(d.path, ElemTier, "duplicate annotation id "+id)
			}
			annIDs[id] = true
			for _, ref := range a.TimeSlotRefs() {
				if !slotIDs[ref] {
					return errors.NewMalformed(d.path, ElemTier,
						fmt.Sprintf("annotation %s references unknown time slot %s", id, ref))
				}
			}
		}
	}

	for _, t := range d.tiers {
		for _, a := range t.annotations {
			if ref, ok := a.AnnotationRef(); ok && !annIDs[ref] {
				return errors.NewMalformed(d.path, ElemTier,
					fmt.Sprintf("annotation %s references unknown annotation %s", a.ID(), ref))
			}
			if prev, ok := a.PreviousAnnotation(); ok && !annIDs[prev] {
				return errors.NewMalformed(d.path, ElemTier,
					fmt.Sprintf("annotation %s follows unknown annotation %s", a.ID(), prev))
			}
		}
	}
	return nil
}

// Path returns the path the document was parsed from.
func (d *Document) Path() string { return d.path }

// TimeOrder returns the time slots in definition order.
func (d *Document) TimeOrder() []*TimeSlot { return d.slots }

// TimeSlot returns the slot with the given id, or nil.
func (d *Document) TimeSlot(id string) *TimeSlot {
	for _, s := range d.slots {
		if s.id == id {
			return s
		}
	}
	return nil
}

// Tiers returns the tiers in document order.
func (d *Document) Tiers() []*Tier { return d.tiers }

// Tier returns the tier with the given id, or nil.
func (d *Document) Tier(id string) *Tier {
	for _, t := range d.tiers {
		if t.id == id {
			return t
		}
	}
	return nil
}

// Annotations returns every annotation, tier by tier.
func (d *Document) Annotations() []*Annotation {
	var out []*Annotation
	for _, t := range d.tiers {
		out = append(out, t.annotations...)
	}
	return out
}

// MediaDescriptors returns the HEADER media descriptors.
func (d *Document) MediaDescriptors() []*MediaDescriptor { return d.media }

// MediaPath returns the MEDIA_URL of the first media descriptor.
func (d *Document) MediaPath() string {
	if len(d.media) == 0 {
		return ""
	}
	return d.media[0].MediaURL()
}

// MaxTimeValue returns the largest TIME_VALUE, or 0.
func (d *Document) MaxTimeValue() int64 {
	var max int64
	for _, s := range d.slots {
		if s.aligned && s.value > max {
			max = s.value
		}
	}
	return max
}

// Property returns the value of a HEADER PROPERTY.
func (d *Document) Property(name string) (string, bool) {
	if d.header == nil {
		return "", false
	}
	for _, p := range d.header.ChildrenNamed(ElemProperty) {
		if p.Attr(AttrName) == name {
			return p.Text(), true
		}
	}
	return "", false
}

// SetProperty sets a HEADER PROPERTY, adding it when absent. It is a no-op
// for documents without HEADER.
func (d *Document) SetProperty(name, value string) {
	if d.header == nil {
		return
	}
	for _, p := range d.header.ChildrenNamed(ElemProperty) {
		if p.Attr(AttrName) == name {
			p.SetText(value)
			return
		}
	}
	p := xml.NewElement(ElemProperty, AttrName, name)
	p.SetText(value)
	d.header.AppendChild(p)
}

// AppendTimeSlot moves s to the end of this document's TIME_ORDER.
func (d *Document) AppendTimeSlot(s *TimeSlot) {
	d.timeOrder.AppendChild(s.node)
	d.slots = append(d.slots, s)
}

// AppendAnnotation moves a to the end of t, which must belong to d.
func (d *Document) AppendAnnotation(t *Tier, a *Annotation) {
	t.node.AppendChild(a.node)
	t.annotations = append(t.annotations, a)
}

// AddTier moves t, with its annotations, after the last tier of d.
func (d *Document) AddTier(t *Tier) {
	d.tiers[len(d.tiers)-1].node.InsertAfter(t.node)
	d.tiers = append(d.tiers, t)
}

// HasLinguisticType reports whether a LINGUISTIC_TYPE with the id exists.
func (d *Document) HasLinguisticType(id string) bool {
	return d.linguisticType(id) != nil
}

func (d *Document) linguisticType(id string) *xml.Node {
	for _, n := range d.root.ChildrenNamed(ElemLinguisticType) {
		if n.Attr(AttrLinguisticTypeID) == id {
			return n
		}
	}
	return nil
}

// AdoptLinguisticType copies the LINGUISTIC_TYPE id from src into d, after
// d's last linguistic type (or last tier). It reports whether a copy was made.
func (d *Document) AdoptLinguisticType(src *Document, id string) bool {
	if id == "" || d.HasLinguisticType(id) {
		return false
	}
	lt := src.linguisticType(id)
	if lt == nil {
		return false
	}
	anchor := d.tiers[len(d.tiers)-1].node
	if types := d.root.ChildrenNamed(ElemLinguisticType); len(types) > 0 {
		anchor = types[len(types)-1]
	}
	anchor.InsertAfter(lt.Clone())
	return true
}

// Clone returns a deep copy that shares nothing with d. The copy is
// re-indexed, so it fails if d was left invalid by partial edits.
func (d *Document) Clone() (*Document, error) {
	return fromTree(d.tree.Clone(), d.path)
}
