// Package eaf models ELAN annotation documents (.eaf).
//
// A Document keeps the parsed XML tree and a typed index over the parts the
// merge engine mutates:
//
//   - TimeSlot: a TIME_SLOT in TIME_ORDER (TIME_SLOT_ID, TIME_VALUE)
//   - Tier: a TIER with its ANNOTATION children, keyed by TIER_ID
//   - Annotation: an ALIGNABLE_ANNOTATION or REF_ANNOTATION with its value
//   - MediaDescriptor: a MEDIA_DESCRIPTOR in HEADER
//
// Everything else (HEADER properties, linguistic types, locales, constraints,
// controlled vocabularies, external references) is carried in the tree and
// written back unchanged.
//
// # Identifiers
//
// Time slot ids have the form ts<N> and annotation ids the form a<N>. ParseID
// and FormatID convert between the string form and the numeric suffix.
//
// # Mutation
//
// Setters write through to the XML tree, so the index and the serialized form
// never disagree. Append/Add methods move nodes out of another Document; the
// source Document must not be used afterwards.
package eaf
