package document

import "github.com/beevik/etree"

// Metadata is the Dublin Core work description Inkscape stores under
// <metadata><rdf:RDF><cc:Work>.
type Metadata struct {
	Title       string
	Description string
}

// Metadata reads the document metadata. Missing entries are empty.
func (d *Document) Metadata() Metadata {
	work := d.work(false)
	if work == nil {
		return Metadata{}
	}
	return Metadata{
		Title:       dcText(work, "title"),
		Description: dcText(work, "description"),
	}
}

// SetMetadata writes m into the document. Fields equal to the current
// values are not touched.
func (d *Document) SetMetadata(m Metadata) {
	current := d.Metadata()
	if current == m {
		return
	}
	work := d.work(true)
	if m.Title != current.Title {
		d.setDCText(work, "title", m.Title)
	}
	if m.Description != current.Description {
		d.setDCText(work, "description", m.Description)
	}
}

// work finds <metadata>/<rdf:RDF>/<cc:Work>, creating the chain when
// create is set.
func (d *Document) work(create bool) *etree.Element {
	root := d.root()
	metadata := root.SelectElement("metadata")
	if metadata == nil {
		if !create {
			return nil
		}
		metadata = root.CreateElement("metadata")
		metadata.CreateAttr("id", d.freshID("metadata"))
	}
	rdf := childNS(metadata, rdfNS, "RDF")
	if rdf == nil {
		if !create {
			return nil
		}
		d.ensureNamespace("rdf", rdfNS)
		rdf = metadata.CreateElement("rdf:RDF")
	}
	work := childNS(rdf, ccNS, "Work")
	if work == nil {
		if !create {
			return nil
		}
		d.ensureNamespace("cc", ccNS)
		work = rdf.CreateElement("cc:Work")
		work.CreateAttr("rdf:about", "")
	}
	return work
}

func dcText(work *etree.Element, local string) string {
	if el := childNS(work, dcNS, local); el != nil {
		return el.Text()
	}
	return ""
}

func (d *Document) setDCText(work *etree.Element, local, value string) {
	el := childNS(work, dcNS, local)
	if value == "" {
		if el != nil {
			work.RemoveChild(el)
		}
		return
	}
	if el == nil {
		d.ensureNamespace("dc", dcNS)
		el = work.CreateElement("dc:" + local)
	}
	el.SetText(value)
}
