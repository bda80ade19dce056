package dataset

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var allowedLinkSchemes = []string{"http:", "https:", "mailto:", "tel:"}

// HardenLinks scrubs anchor tags in artifact HTML: unsafe schemes lose their
// href, and every remaining link opens in a new tab with
// rel="noopener noreferrer". On failure the original HTML is returned.
func (c *Codec) HardenLinks(htmlText string) string {
	if strings.TrimSpace(htmlText) == "" {
		return htmlText
	}
	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		c.logInfo("link hardening parse failed", "error", err)
		return htmlText
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			hardenAnchor(n)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	out, err := renderDocument(doc)
	if err != nil {
		c.logInfo("link hardening render failed", "error", err)
		return htmlText
	}
	return out
}

func hardenAnchor(n *html.Node) {
	href := strings.TrimSpace(attrValue(n, "href"))
	if href != "" && !allowedLinkScheme(href) {
		removeAttr(n, "href")
		href = ""
	}
	if href == "" {
		return
	}
	setAttr(n, "target", "_blank")
	rel := strings.Fields(attrValue(n, "rel"))
	for _, required := range []string{"noopener", "noreferrer"} {
		found := false
		for _, token := range rel {
			if strings.EqualFold(token, required) {
				found = true
				break
			}
		}
		if !found {
			rel = append(rel, required)
		}
	}
	setAttr(n, "rel", strings.Join(rel, " "))
}

func allowedLinkScheme(href string) bool {
	lower := strings.ToLower(href)
	colon := strings.Index(lower, ":")
	if colon < 0 {
		// Relative URL, nothing to check.
		return true
	}
	for _, scheme := range allowedLinkSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, attr := range n.Attr {
		if attr.Key != key {
			out = append(out, attr)
		}
	}
	n.Attr = out
}
