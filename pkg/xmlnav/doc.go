// Package xmlnav centralises the MIME-type-attribute element search that
// the source threaded, ad hoc, through every agent. A provider XML
// response is parsed once into a generic Element tree; callers then
// locate the elements they care about with FindByType, instead of each
// agent hand-rolling its own XPath-like walk.
package xmlnav
