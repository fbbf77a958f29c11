package xlsxstream

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mohae/deepcopy"
	"golang.org/x/net/html/charset"
)

const (
	// NamespaceMain is the spreadsheet main namespace, emitted on the worksheet root.
	NamespaceMain = "http://schemas.openxmlformats.org/spreadsheetml/2006/main"
	// NamespaceRelationships is emitted with the r prefix.
	NamespaceRelationships = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

	namespaceXML = "http://www.w3.org/XML/1998/namespace"
)

// Attr is one element attribute. Space is empty for unqualified attributes
// and holds the namespace URI for r: and xml: attributes.
type Attr struct {
	Space string
	Local string
	Value string
}

// Node is a namespace-agnostic XML element. Element names are stored without
// their namespace; only relationship and xml attributes keep theirs.
type Node struct {
	Name     string
	Attrs    []Attr
	Children []*Node
	Text     string
}

// ParseNode parses a whole XML document and returns its root element.
// Namespace declarations and attributes in foreign namespaces are dropped.
func ParseNode(r io.Reader) (*Node, error) {
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel

	var (
		root  *Node
		stack []*Node
	)
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name.Local}
			for _, a := range t.Attr {
				if keepAttr(a.Name) {
					n.Attrs = append(n.Attrs, Attr{Space: a.Name.Space, Local: a.Name.Local, Value: a.Value})
				}
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			} else if root == nil {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			n := stack[len(stack)-1]
			if len(n.Children) > 0 && strings.TrimSpace(n.Text) == "" {
				n.Text = ""
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, errors.New("decoding xml: no root element")
	}
	return root, nil
}

func keepAttr(name xml.Name) bool {
	switch name.Space {
	case "":
		return name.Local != "xmlns"
	case NamespaceRelationships, namespaceXML:
		return true
	}
	return false
}

// Child returns the first direct child named name.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns the direct children named name in document order.
func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Attr returns the value of the unqualified attribute local.
func (n *Node) Attr(local string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Space == "" && a.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr sets an unqualified attribute in place, or appends it.
func (n *Node) SetAttr(local, value string) {
	for i := range n.Attrs {
		if n.Attrs[i].Space == "" && n.Attrs[i].Local == local {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Local: local, Value: value})
}

// RemoveAttr removes an attribute in the given namespace.
func (n *Node) RemoveAttr(space, local string) {
	for i := range n.Attrs {
		if n.Attrs[i].Space == space && n.Attrs[i].Local == local {
			n.Attrs = append(n.Attrs[:i], n.Attrs[i+1:]...)
			return
		}
	}
}

// Clone returns a deep copy of the node and its subtree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	return deepcopy.Copy(n).(*Node)
}

// Bytes serializes the node as UTF-8 XML.
func (n *Node) Bytes() []byte {
	var b bytes.Buffer
	n.writeXML(&b)
	return b.Bytes()
}

func (n *Node) writeXML(b *bytes.Buffer) {
	b.WriteByte('<')
	b.WriteString(n.Name)
	for _, a := range n.Attrs {
		b.WriteByte(' ')
		switch a.Space {
		case NamespaceRelationships:
			b.WriteString("r:")
		case namespaceXML:
			b.WriteString("xml:")
		}
		b.WriteString(a.Local)
		b.WriteString(`="`)
		attrEscaper.WriteString(b, a.Value)
		b.WriteByte('"')
	}
	if len(n.Children) == 0 && n.Text == "" {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	textEscaper.WriteString(b, n.Text)
	for _, c := range n.Children {
		c.writeXML(b)
	}
	b.WriteString("</")
	b.WriteString(n.Name)
	b.WriteByte('>')
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\r", "&#xD;")
	attrEscaper = strings.NewReplacer(
		"&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;",
		"\t", "&#x9;", "\n", "&#xA;", "\r", "&#xD;",
	)
)
