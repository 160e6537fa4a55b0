package xmlnav

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// Element is a generic XML element tree node: every attribute is kept,
// character data is kept verbatim, and children are recursively generic.
// This is deliberately untyped — the vCloud-style response schema this
// controller navigates has dozens of element shapes and only a handful of
// attributes ever matter (type, deployed, href).
type Element struct {
	Name     xml.Name
	Attrs    []xml.Attr
	CharData string
	Children []*Element
}

// UnmarshalXML builds the generic tree, recursing into every child
// element and accumulating consecutive character data between them.
func (e *Element) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	e.Name = start.Name
	e.Attrs = start.Attr
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child := &Element{}
			if err := child.UnmarshalXML(d, t); err != nil {
				return err
			}
			e.Children = append(e.Children, child)
		case xml.CharData:
			e.CharData += string(t)
		case xml.EndElement:
			return nil
		}
	}
}

// Parse decodes one XML document into its root Element.
func Parse(r io.Reader) (*Element, error) {
	dec := xml.NewDecoder(r)
	var root Element
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("xmlnav: decode: %w", err)
	}
	return &root, nil
}

// ParseBytes is a convenience wrapper around Parse for already-buffered
// response bodies.
func ParseBytes(b []byte) (*Element, error) {
	return Parse(bytes.NewReader(b))
}

// Attr returns the value of the named attribute and whether it was
// present.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// Filter narrows a FindByType search beyond the type attribute, e.g.
// matching on a child's tag name or an additional attribute.
type Filter func(*Element) bool

// WithChild returns a Filter matching elements that have at least one
// direct child named tag.
func WithChild(tag string) Filter {
	return func(e *Element) bool {
		_, ok := e.Child(tag)
		return ok
	}
}

// Child returns the first direct child named tag.
func (e *Element) Child(tag string) (*Element, bool) {
	for _, c := range e.Children {
		if c.Name.Local == tag {
			return c, true
		}
	}
	return nil, false
}

// FindByType walks tree depth-first and returns every element whose
// "type" attribute equals mime and which satisfies every filter. This is
// the single navigation primitive every agent uses instead of
// hand-rolling its own walk over the response tree.
func FindByType(tree *Element, mime string, filters ...Filter) []*Element {
	var out []*Element
	var walk func(*Element)
	walk = func(e *Element) {
		if t, ok := e.Attr("type"); ok && t == mime {
			matched := true
			for _, f := range filters {
				if !f(e) {
					matched = false
					break
				}
			}
			if matched {
				out = append(out, e)
			}
		}
		for _, c := range e.Children {
			walk(c)
		}
	}
	walk(tree)
	return out
}

// MIME types the controller's agents search for, matching the fixed set
// named in the provider gateway interface.
const (
	MIMEVApp                         = "application/vnd.vmware.vcloud.vApp+xml"
	MIMECatalogItem                  = "application/vnd.vmware.vcloud.catalogItem+xml"
	MIMEVAppTemplate                 = "application/vnd.vmware.vcloud.vAppTemplate+xml"
	MIMEOrg                          = "application/vnd.vmware.vcloud.org+xml"
	MIMEVdc                          = "application/vnd.vmware.vcloud.vdc+xml"
	MIMEQueryRecords                 = "application/vnd.vmware.vcloud.query.records+xml"
	MIMEGuestCustomizationSection    = "application/vnd.vmware.vcloud.guestCustomizationSection+xml"
	MIMENetworkConnectionSection     = "application/vnd.vmware.vcloud.networkConnectionSection+xml"
	MIMEEdgeGatewayServiceConfig     = "application/vnd.vmware.vcloud.edgeGatewayServiceConfiguration+xml"
	MIMEAdminNetwork                 = "application/vnd.vmware.admin.network+xml"
	MIMEAdminUser                    = "application/vnd.vmware.admin.user+xml"
	MIMEAdminRole                    = "application/vnd.vmware.admin.role+xml"
	MIMEAdminOrganization            = "application/vnd.vmware.admin.organization+xml"
)
