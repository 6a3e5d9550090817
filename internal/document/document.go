package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/beevik/etree"
)

const (
	sodipodiNS = "http://sodipodi.sourceforge.net/DTD/sodipodi-0.dtd"
	inkscapeNS = "http://www.inkscape.org/namespaces/inkscape"
	rdfNS      = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	ccNS       = "http://creativecommons.org/ns#"
	dcNS       = "http://purl.org/dc/elements/1.1/"
)

// ErrClosed is returned by operations on a closed Document.
var ErrClosed = errors.New("document is closed")

// Document is a loaded SVG tree plus the serialization it had at load
// time, which HasChanged compares against.
type Document struct {
	tree     *etree.Document
	snapshot []byte
	nextID   int
}

// Parse builds a Document from SVG bytes.
func Parse(data []byte) (*Document, error) {
	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parsing SVG: %w", err)
	}
	root := tree.Root()
	if root == nil || root.Tag != "svg" {
		return nil, fmt.Errorf("parsing SVG: root element is not <svg>")
	}

	snapshot, err := tree.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serializing SVG: %w", err)
	}
	return &Document{tree: tree, snapshot: snapshot}, nil
}

// HasChanged reports whether the document serializes differently from
// when it was loaded.
func (d *Document) HasChanged() (bool, error) {
	if d.tree == nil {
		return false, ErrClosed
	}
	current, err := d.tree.WriteToBytes()
	if err != nil {
		return false, fmt.Errorf("serializing SVG: %w", err)
	}
	return !bytes.Equal(current, d.snapshot), nil
}

// Save writes the full document to w.
func (d *Document) Save(w io.Writer) error {
	if d.tree == nil {
		return ErrClosed
	}
	if _, err := d.tree.WriteTo(w); err != nil {
		return fmt.Errorf("writing SVG: %w", err)
	}
	return nil
}

// Close releases the tree. Further calls fail with ErrClosed.
func (d *Document) Close() {
	d.tree = nil
	d.snapshot = nil
}

// Closed reports whether Close has been called.
func (d *Document) Closed() bool {
	return d.tree == nil
}

func (d *Document) root() *etree.Element {
	if d.tree == nil {
		panic(ErrClosed)
	}
	return d.tree.Root()
}

// The methods below are what user code sees as svg_root.

// Attr returns an attribute of the <svg> element, or "" if unset.
func (d *Document) Attr(name string) string {
	return d.root().SelectAttrValue(name, "")
}

// SetAttr sets an attribute of the <svg> element.
func (d *Document) SetAttr(name, value string) {
	d.root().CreateAttr(name, value)
}

// AddElement appends a child of the <svg> element and returns its id,
// generating one when attrs has none.
func (d *Document) AddElement(tag string, attrs map[string]string) string {
	el := d.root().CreateElement(tag)
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		el.CreateAttr(k, attrs[k])
	}
	id := el.SelectAttrValue("id", "")
	if id == "" {
		id = d.freshID(tag)
		el.CreateAttr("id", id)
	}
	return id
}

// RemoveElement removes the element with the given id anywhere in the
// tree. Returns false if there is none.
func (d *Document) RemoveElement(id string) bool {
	el := d.findByID(id)
	if el == nil || el.Parent() == nil {
		return false
	}
	el.Parent().RemoveChild(el)
	return true
}

// ElementAttr returns an attribute of the element with the given id.
func (d *Document) ElementAttr(id, name string) string {
	el := d.findByID(id)
	if el == nil {
		return ""
	}
	return el.SelectAttrValue(name, "")
}

// SetElementAttr sets an attribute on the element with the given id.
// Returns false if there is no such element.
func (d *Document) SetElementAttr(id, name, value string) bool {
	el := d.findByID(id)
	if el == nil {
		return false
	}
	el.CreateAttr(name, value)
	return true
}

// ElementIDs lists the ids of all elements in document order.
func (d *Document) ElementIDs() []string {
	var ids []string
	walk(d.root(), func(el *etree.Element) bool {
		if id := el.SelectAttrValue("id", ""); id != "" {
			ids = append(ids, id)
		}
		return true
	})
	return ids
}

func (d *Document) String() string {
	if d.tree == nil {
		return "<closed svg document>"
	}
	return fmt.Sprintf("<svg document: %d elements with ids>", len(d.ElementIDs()))
}

func (d *Document) findByID(id string) *etree.Element {
	if id == "" {
		return nil
	}
	var found *etree.Element
	walk(d.root(), func(el *etree.Element) bool {
		if el.SelectAttrValue("id", "") == id {
			found = el
			return false
		}
		return true
	})
	return found
}

func (d *Document) freshID(tag string) string {
	for {
		d.nextID++
		id := tag + strconv.Itoa(d.nextID)
		if d.findByID(id) == nil {
			return id
		}
	}
}

// walk visits el and its descendants depth-first until visit returns false.
func walk(el *etree.Element, visit func(*etree.Element) bool) bool {
	if !visit(el) {
		return false
	}
	for _, child := range el.ChildElements() {
		if !walk(child, visit) {
			return false
		}
	}
	return true
}

// childNS returns the first child of parent in namespace ns with the
// given local name.
func childNS(parent *etree.Element, ns, local string) *etree.Element {
	for _, child := range parent.ChildElements() {
		if child.Tag == local && child.NamespaceURI() == ns {
			return child
		}
	}
	return nil
}

// ensureNamespace declares prefix on the root element if it is missing.
func (d *Document) ensureNamespace(prefix, uri string) {
	root := d.root()
	if root.SelectAttr("xmlns:"+prefix) == nil {
		root.CreateAttr("xmlns:"+prefix, uri)
	}
}
