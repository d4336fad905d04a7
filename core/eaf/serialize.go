package eaf

import (
	"bytes"
	"io"

	"github.com/FocuswithJustin/eafmerge/core/xml"
)

// DefaultIndent matches the indentation ELAN writes.
const DefaultIndent = "    "

// textElements are written with explicit open and close tags even when empty,
// as ELAN does for annotation values.
var textElements = []string{ElemValue, ElemProperty, "CVE_VALUE", "DESCRIPTION"}

// Encode writes d to w using indent (DefaultIndent when empty).
func (d *Document) Encode(w io.Writer, indent string) error {
	if indent == "" {
		indent = DefaultIndent
	}
	return d.tree.Write(w, xml.FormatOptions{Indent: indent, TextElements: textElements})
}

// Serialize returns d in its serialized form with the default indent.
func (d *Document) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Encode(&buf, DefaultIndent); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
