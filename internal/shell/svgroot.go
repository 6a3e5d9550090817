package shell

import (
	"fmt"

	"github.com/itsmostafa/inkbridge/internal/document"
)

// svgRoot is what user code sees as svg_root. A script can keep the
// reference after its session is finalized, so every method checks that
// the document is still open and returns an error, which goja throws as a
// JavaScript exception, instead of touching a released tree.
type svgRoot struct {
	doc *document.Document
}

func (r *svgRoot) check() error {
	if r.doc == nil || r.doc.Closed() {
		return fmt.Errorf("svg_root belongs to a finished command: %w", document.ErrClosed)
	}
	return nil
}

func (r *svgRoot) Attr(name string) (string, error) {
	if err := r.check(); err != nil {
		return "", err
	}
	return r.doc.Attr(name), nil
}

func (r *svgRoot) SetAttr(name, value string) error {
	if err := r.check(); err != nil {
		return err
	}
	r.doc.SetAttr(name, value)
	return nil
}

func (r *svgRoot) AddElement(tag string, attrs map[string]string) (string, error) {
	if err := r.check(); err != nil {
		return "", err
	}
	return r.doc.AddElement(tag, attrs), nil
}

func (r *svgRoot) RemoveElement(id string) (bool, error) {
	if err := r.check(); err != nil {
		return false, err
	}
	return r.doc.RemoveElement(id), nil
}

func (r *svgRoot) ElementAttr(id, name string) (string, error) {
	if err := r.check(); err != nil {
		return "", err
	}
	return r.doc.ElementAttr(id, name), nil
}

func (r *svgRoot) SetElementAttr(id, name, value string) (bool, error) {
	if err := r.check(); err != nil {
		return false, err
	}
	return r.doc.SetElementAttr(id, name, value), nil
}

func (r *svgRoot) ElementIDs() ([]string, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	return r.doc.ElementIDs(), nil
}

func (r *svgRoot) String() string {
	if r.doc == nil {
		return "<closed svg document>"
	}
	return r.doc.String()
}
