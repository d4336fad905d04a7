package merge

import (
	"strconv"

	"github.com/FocuswithJustin/eafmerge/core/eaf"
	"github.com/FocuswithJustin/eafmerge/internal/logging"
)

// Media names written into the merged document.
const (
	// DefaultMediaURL makes ELAN ask for the media file when the document is
	// opened.
	DefaultMediaURL         = "ASK_on_OPEN.wav"
	DefaultRelativeMediaURL = "./combined.wav"
)

// RewriteMedia points every media descriptor of doc at the combined audio.
// Empty arguments select the defaults. It returns the number of descriptors
// rewritten.
func RewriteMedia(doc *eaf.Document, mediaURL, relativeURL string) int {
	if mediaURL == "" {
		mediaURL = DefaultMediaURL
	}
	if relativeURL == "" {
		relativeURL = DefaultRelativeMediaURL
	}
	descriptors := doc.MediaDescriptors()
	if len(descriptors) == 0 {
		logging.Debug("no media descriptor to rewrite", "document", doc.Path())
		return 0
	}
	for _, m := range descriptors {
		m.SetMediaURL(mediaURL)
		m.SetRelativeMediaURL(relativeURL)
	}
	return len(descriptors)
}

// UpdateLastUsedAnnotationID raises the lastUsedAnnotationId header property
// to the largest annotation id suffix, so ELAN allocates fresh ids after the
// merge. The property never decreases. Documents without it are left alone.
func UpdateLastUsedAnnotationID(doc *eaf.Document) {
	raw, ok := doc.Property(eaf.PropertyLastUsedAnnotationID)
	if !ok {
		return
	}
	max := MaxID(doc, eaf.NamespaceAnnotation)
	if cur, err := strconv.Atoi(raw); err == nil && cur >= max {
		return
	}
	doc.SetProperty(eaf.PropertyLastUsedAnnotationID, strconv.Itoa(max))
}
