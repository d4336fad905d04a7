// Package xml provides a pure Go XML tree with XPath lookup, in-place editing
// and deterministic indented output.
//
// Security Notes:
//   - XXE (External Entity) attacks are mitigated by using Go's xml.Decoder
//     (through xmlquery) which doesn't fetch external entities.
package xml

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/FocuswithJustin/eafmerge/core/encoding"
	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// DefaultDeclaration is written when the parsed input had no XML declaration.
const DefaultDeclaration = `<?xml version="1.0" encoding="UTF-8"?>`

// Document represents a parsed XML document.
type Document struct {
	root *xmlquery.Node
}

// Node represents an XML element.
type Node struct {
	node *xmlquery.Node
}

// FormatOptions controls XML output.
type FormatOptions struct {
	Indent string // Indentation string (e.g., "    " or "\t")

	// TextElements lists element names whose text content is written
	// verbatim even when empty or whitespace-only. Empty ones are written as
	// an open/close pair instead of a self-closing tag.
	TextElements []string
}

// Parse parses XML data and returns a Document.
func Parse(data []byte) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	return &Document{root: root}, nil
}

// Root returns the root element of the document.
func (d *Document) Root() *Node {
	if d.root == nil {
		return nil
	}
	for child := d.root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return &Node{node: child}
		}
	}
	return nil
}

// XPath executes an XPath query and returns matching element nodes.
func (d *Document) XPath(expr string) ([]*Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}

	nodes, err := xmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}

	result := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Type == xmlquery.ElementNode {
			result = append(result, &Node{node: n})
		}
	}
	return result, nil
}

// XPathFirst executes an XPath query and returns the first matching node, or
// nil when nothing matches.
func (d *Document) XPathFirst(expr string) (*Node, error) {
	nodes, err := d.XPath(expr)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodes[0], nil
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d.root == nil {
		return &Document{}
	}
	return &Document{root: cloneNode(d.root)}
}

func cloneNode(n *xmlquery.Node) *xmlquery.Node {
	c := &xmlquery.Node{
		Type:         n.Type,
		Data:         n.Data,
		Prefix:       n.Prefix,
		NamespaceURI: n.NamespaceURI,
	}
	if len(n.Attr) > 0 {
		c.Attr = make([]xmlquery.Attr, len(n.Attr))
		copy(c.Attr, n.Attr)
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		appendChild(c, cloneNode(child))
	}
	return c
}

// Write writes the document with an XML declaration and indented elements.
func (d *Document) Write(w io.Writer, opts FormatOptions) error {
	if opts.Indent == "" {
		opts.Indent = "    "
	}
	text := make(map[string]bool, len(opts.TextElements))
	for _, name := range opts.TextElements {
		text[name] = true
	}

	bw := bufio.NewWriter(w)
	wroteDecl := false
	if d.root != nil {
		for child := d.root.FirstChild; child != nil; child = child.NextSibling {
			switch child.Type {
			case xmlquery.DeclarationNode:
				writeDeclaration(bw, child)
				wroteDecl = wroteDecl || child.Data == "xml"
			case xmlquery.ElementNode, xmlquery.CommentNode:
				if !wroteDecl {
					bw.WriteString(DefaultDeclaration)
					bw.WriteString("\n")
					wroteDecl = true
				}
				writeNode(bw, child, 0, opts.Indent, text)
			}
		}
	}
	return bw.Flush()
}

// Serialize converts the document to XML bytes.
func (d *Document) Serialize(opts FormatOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Write(&buf, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeDeclaration(w *bufio.Writer, n *xmlquery.Node) {
	if n.Data == "xml" && len(n.Attr) == 0 {
		w.WriteString(DefaultDeclaration)
		w.WriteString("\n")
		return
	}
	w.WriteString("<?")
	w.WriteString(n.Data)
	for _, attr := range n.Attr {
		w.WriteString(" ")
		w.WriteString(attr.Name.Local)
		w.WriteString("=\"")
		w.WriteString(encoding.EscapeXMLAttr(attr.Value))
		w.WriteString("\"")
	}
	w.WriteString("?>\n")
}

// writeNode recursively writes an element or comment.
func writeNode(w *bufio.Writer, n *xmlquery.Node, depth int, indent string, text map[string]bool) {
	if n.Type == xmlquery.CommentNode {
		writeIndent(w, depth, indent)
		w.WriteString("<!--")
		w.WriteString(n.Data)
		w.WriteString("-->\n")
		return
	}

	writeIndent(w, depth, indent)
	w.WriteString("<")
	name := qualifiedName(n)
	w.WriteString(name)
	for _, attr := range n.Attr {
		w.WriteString(" ")
		if attr.Name.Space != "" {
			w.WriteString(attr.Name.Space)
			w.WriteString(":")
		}
		w.WriteString(attr.Name.Local)
		w.WriteString("=\"")
		w.WriteString(encoding.EscapeXMLAttr(attr.Value))
		w.WriteString("\"")
	}

	hasElementChildren := false
	var content strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case xmlquery.ElementNode, xmlquery.CommentNode:
			hasElementChildren = true
		case xmlquery.TextNode:
			content.WriteString(encoding.EscapeXMLText(child.Data))
		case xmlquery.CharDataNode:
			content.WriteString("<![CDATA[")
			content.WriteString(child.Data)
			content.WriteString("]]>")
		}
	}

	if !hasElementChildren {
		body := content.String()
		if strings.TrimSpace(body) == "" && !text[n.Data] {
			w.WriteString("/>\n")
			return
		}
		w.WriteString(">")
		w.WriteString(body)
		w.WriteString("</")
		w.WriteString(name)
		w.WriteString(">\n")
		return
	}

	w.WriteString(">\n")
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case xmlquery.ElementNode, xmlquery.CommentNode:
			writeNode(w, child, depth+1, indent, text)
		case xmlquery.TextNode:
			if t := strings.TrimSpace(child.Data); t != "" {
				writeIndent(w, depth+1, indent)
				w.WriteString(encoding.EscapeXMLText(t))
				w.WriteString("\n")
			}
		}
	}
	writeIndent(w, depth, indent)
	w.WriteString("</")
	w.WriteString(name)
	w.WriteString(">\n")
}

func qualifiedName(n *xmlquery.Node) string {
	if n.Prefix != "" {
		return n.Prefix + ":" + n.Data
	}
	return n.Data
}

func writeIndent(w *bufio.Writer, depth int, indent string) {
	for i := 0; i < depth; i++ {
		w.WriteString(indent)
	}
}

// NewElement creates a detached element with the given attributes, in order.
// attrs alternates names and values.
func NewElement(name string, attrs ...string) *Node {
	n := &xmlquery.Node{Type: xmlquery.ElementNode, Data: name}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, xmlquery.Attr{Name: xml.Name{Local: attrs[i]}, Value: attrs[i+1]})
	}
	return &Node{node: n}
}

// Name returns the element name.
func (n *Node) Name() string {
	if n == nil || n.node == nil {
		return ""
	}
	return n.node.Data
}

// Same reports whether n and other wrap the same underlying element.
func (n *Node) Same(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	return n.node == other.node
}

// Text returns all text content of the node and its descendants.
func (n *Node) Text() string {
	if n == nil || n.node == nil {
		return ""
	}
	return n.node.InnerText()
}

// SetText replaces the node's children with a single text node.
func (n *Node) SetText(s string) {
	for child := n.node.FirstChild; child != nil; {
		next := child.NextSibling
		detach(child)
		child = next
	}
	if s != "" {
		appendChild(n.node, &xmlquery.Node{Type: xmlquery.TextNode, Data: s})
	}
}

// Children returns the child element nodes.
func (n *Node) Children() []*Node {
	if n == nil || n.node == nil {
		return nil
	}
	var children []*Node
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			children = append(children, &Node{node: child})
		}
	}
	return children
}

// ChildrenNamed returns the child elements with the given name.
func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node
	for _, c := range n.Children() {
		if c.node.Data == name {
			out = append(out, c)
		}
	}
	return out
}

// FirstChildNamed returns the first child element with the given name.
func (n *Node) FirstChildNamed(name string) *Node {
	if n == nil || n.node == nil {
		return nil
	}
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode && child.Data == name {
			return &Node{node: child}
		}
	}
	return nil
}

// Parent returns the parent element, or nil at the document root.
func (n *Node) Parent() *Node {
	if n == nil || n.node == nil || n.node.Parent == nil || n.node.Parent.Type != xmlquery.ElementNode {
		return nil
	}
	return &Node{node: n.node.Parent}
}

// Attributes returns the attributes of the node as name/value pairs, in
// document order. Prefixed names are returned as "prefix:local".
func (n *Node) Attributes() [][2]string {
	if n == nil || n.node == nil {
		return nil
	}
	out := make([][2]string, 0, len(n.node.Attr))
	for _, attr := range n.node.Attr {
		name := attr.Name.Local
		if attr.Name.Space != "" {
			name = attr.Name.Space + ":" + name
		}
		out = append(out, [2]string{name, attr.Value})
	}
	return out
}

// Attr returns the value of an unprefixed attribute.
func (n *Node) Attr(name string) string {
	v, _ := n.LookupAttr(name)
	return v
}

// LookupAttr returns the value of an unprefixed attribute and whether it is
// present.
func (n *Node) LookupAttr(name string) (string, bool) {
	if n == nil || n.node == nil {
		return "", false
	}
	for _, attr := range n.node.Attr {
		if attr.Name.Space == "" && attr.Name.Local == name {
			return attr.Value, true
		}
	}
	return "", false
}

// SetAttr sets an unprefixed attribute, keeping its position if present and
// appending it otherwise.
func (n *Node) SetAttr(name, value string) {
	for i := range n.node.Attr {
		if n.node.Attr[i].Name.Space == "" && n.node.Attr[i].Name.Local == name {
			n.node.Attr[i].Value = value
			return
		}
	}
	n.node.Attr = append(n.node.Attr, xmlquery.Attr{Name: xml.Name{Local: name}, Value: value})
}

// AppendChild detaches child from its current parent and appends it as the
// last child of n.
func (n *Node) AppendChild(child *Node) {
	detach(child.node)
	appendChild(n.node, child.node)
}

// InsertAfter detaches child and inserts it as the next sibling of n.
func (n *Node) InsertAfter(child *Node) {
	detach(child.node)
	parent := n.node.Parent
	next := n.node.NextSibling
	child.node.Parent = parent
	child.node.PrevSibling = n.node
	child.node.NextSibling = next
	n.node.NextSibling = child.node
	if next != nil {
		next.PrevSibling = child.node
	} else if parent != nil {
		parent.LastChild = child.node
	}
}

// Detach removes n from its parent.
func (n *Node) Detach() {
	detach(n.node)
}

// Clone returns a detached deep copy of n.
func (n *Node) Clone() *Node {
	return &Node{node: cloneNode(n.node)}
}

func appendChild(parent, child *xmlquery.Node) {
	child.Parent = parent
	child.NextSibling = nil
	child.PrevSibling = parent.LastChild
	if parent.LastChild != nil {
		parent.LastChild.NextSibling = child
	} else {
		parent.FirstChild = child
	}
	parent.LastChild = child
}

func detach(n *xmlquery.Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	if n.PrevSibling != nil {
		n.PrevSibling.NextSibling = n.NextSibling
	} else {
		parent.FirstChild = n.NextSibling
	}
	if n.NextSibling != nil {
		n.NextSibling.PrevSibling = n.PrevSibling
	} else {
		parent.LastChild = n.PrevSibling
	}
	n.Parent = nil
	n.PrevSibling = nil
	n.NextSibling = nil
}
