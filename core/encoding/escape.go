// Package encoding provides shared text escaping utilities for XML output.
package encoding

import (
	"strings"
)

// EscapeXMLText escapes only the basic XML entities for text content.
func EscapeXMLText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// attrReplacer is applied after EscapeXMLText. Whitespace characters other
// than space are written as character references so attribute value
// normalization on re-parse leaves them intact.
var attrReplacer = strings.NewReplacer(
	"\"", "&quot;",
	"\n", "&#10;",
	"\r", "&#13;",
	"\t", "&#9;",
)

// EscapeXMLAttr escapes text for use in double-quoted XML attributes.
func EscapeXMLAttr(s string) string {
	return attrReplacer.Replace(EscapeXMLText(s))
}
