package document

import (
	"strconv"
	"strings"
	"unicode"
)

// pixelsPerUnit follows CSS at 96 dpi, as Inkscape does.
var pixelsPerUnit = map[string]float64{
	"":   1,
	"px": 1,
	"pt": 96.0 / 72.0,
	"pc": 16,
	"mm": 96.0 / 25.4,
	"cm": 96.0 / 2.54,
	"in": 96,
	"q":  96.0 / 25.4 / 4,
}

// Page is one inkscape:page from the named view.
type Page struct {
	ID            string
	Label         string
	X, Y          float64
	Width, Height float64
}

// Canvas describes the document's viewport.
type Canvas struct {
	// Width and Height are the raw attribute values, units included.
	Width  string
	Height string
	// ViewBox is min-x, min-y, width, height in user units. Zero when the
	// document has no viewBox.
	ViewBox [4]float64
	// Scale is user units per pixel.
	Scale float64
	Pages []Page
}

// Canvas returns the viewport description.
func (d *Document) Canvas() Canvas {
	root := d.root()
	c := Canvas{
		Width:  root.SelectAttrValue("width", ""),
		Height: root.SelectAttrValue("height", ""),
		Scale:  1,
	}
	if vb, ok := parseViewBox(root.SelectAttrValue("viewBox", "")); ok {
		c.ViewBox = vb
		if widthPx, ok := lengthToPixels(c.Width); ok && widthPx > 0 && vb[2] > 0 {
			c.Scale = vb[2] / widthPx
		}
	}
	c.Pages = d.pages()
	return c
}

// UnitToUser converts one unit ("mm", "cm", "pt", "px", "in", ...) into
// user units, so that 10*mm is ten millimetres in document coordinates.
// Unknown units convert as pixels.
func (d *Document) UnitToUser(unit string) float64 {
	perUnit, ok := pixelsPerUnit[strings.ToLower(unit)]
	if !ok {
		perUnit = 1
	}
	return perUnit * d.Canvas().Scale
}

func (d *Document) pages() []Page {
	nv := childNS(d.root(), sodipodiNS, "namedview")
	if nv == nil {
		return nil
	}
	var pages []Page
	for _, el := range nv.ChildElements() {
		if el.Tag != "page" || el.NamespaceURI() != inkscapeNS {
			continue
		}
		p := Page{
			ID:    el.SelectAttrValue("id", ""),
			Label: attrNS(el, inkscapeNS, "label"),
		}
		p.X, _ = strconv.ParseFloat(el.SelectAttrValue("x", "0"), 64)
		p.Y, _ = strconv.ParseFloat(el.SelectAttrValue("y", "0"), 64)
		p.Width, _ = strconv.ParseFloat(el.SelectAttrValue("width", "0"), 64)
		p.Height, _ = strconv.ParseFloat(el.SelectAttrValue("height", "0"), 64)
		pages = append(pages, p)
	}
	return pages
}

func parseViewBox(s string) ([4]float64, bool) {
	var vb [4]float64
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if len(fields) != 4 {
		return vb, false
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return vb, false
		}
		vb[i] = v
	}
	return vb, true
}

// lengthToPixels parses an SVG length such as "210mm" or "800". Percentages
// have no absolute size and are rejected.
func lengthToPixels(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasSuffix(s, "%") {
		return 0, false
	}
	i := len(s)
	for i > 0 && unicode.IsLetter(rune(s[i-1])) {
		i--
	}
	value, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return 0, false
	}
	perUnit, ok := pixelsPerUnit[strings.ToLower(s[i:])]
	if !ok {
		return 0, false
	}
	return value * perUnit, true
}
