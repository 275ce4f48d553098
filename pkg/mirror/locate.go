package mirror

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RefKind identifies which syntactic position a resource reference
// occupies in the document.
type RefKind int

const (
	RefHref RefKind = iota
	RefSrc
	RefSrcset
	RefStyleAttr
	RefStyleText
)

// attr returns the attribute name a kind rewrites, or "" for style
// element text.
func (k RefKind) attr() string {
	switch k {
	case RefHref:
		return "href"
	case RefSrc:
		return "src"
	case RefSrcset:
		return "srcset"
	case RefStyleAttr:
		return "style"
	}
	return ""
}

// AssetRef is one reference site discovered in a document: the element
// plus the kind of region holding the raw path. A single srcset or
// style region expands into multiple rewrites downstream.
type AssetRef struct {
	Node *goquery.Selection
	Kind RefKind
}

// locateAssets enumerates every reference site in a fixed category
// order: href, src, srcset, style attributes containing url(, style
// elements containing url(. Attributes are matched by presence only;
// an href on a non-link element is still a reference site.
func locateAssets(doc *goquery.Document) []AssetRef {
	var refs []AssetRef
	collect := func(kind RefKind) func(int, *goquery.Selection) {
		return func(_ int, s *goquery.Selection) {
			refs = append(refs, AssetRef{Node: s, Kind: kind})
		}
	}
	doc.Find("[href]").Each(collect(RefHref))
	doc.Find("[src]").Each(collect(RefSrc))
	doc.Find("[srcset]").Each(collect(RefSrcset))
	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		if v, _ := s.Attr("style"); strings.Contains(v, "url(") {
			refs = append(refs, AssetRef{Node: s, Kind: RefStyleAttr})
		}
	})
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		if strings.Contains(s.Text(), "url(") {
			refs = append(refs, AssetRef{Node: s, Kind: RefStyleText})
		}
	})
	return refs
}
