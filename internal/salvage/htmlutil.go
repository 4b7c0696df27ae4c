package salvage

import (
	"strings"

	"golang.org/x/net/html"
)

// Small traversal helpers over x/net/html parse trees. The archive sites
// serve plain server-rendered HTML, so class/id lookups and text
// extraction cover everything the adapters need.

func attrVal(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrVal(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// walk visits every element node under root, stopping early if visit
// returns false.
func walk(root *html.Node, visit func(*html.Node) bool) {
	var rec func(*html.Node) bool
	rec = func(n *html.Node) bool {
		if n.Type == html.ElementNode && !visit(n) {
			return false
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !rec(c) {
				return false
			}
		}
		return true
	}
	rec(root)
}

func elementsByClass(root *html.Node, class string) []*html.Node {
	var out []*html.Node
	walk(root, func(n *html.Node) bool {
		if hasClass(n, class) {
			out = append(out, n)
		}
		return true
	})
	return out
}

func elementsByTag(root *html.Node, tag string) []*html.Node {
	var out []*html.Node
	walk(root, func(n *html.Node) bool {
		if n.Data == tag {
			out = append(out, n)
		}
		return true
	})
	return out
}

func elementByID(root *html.Node, id string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if attrVal(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// innerText collects the concatenated text content under n.
func innerText(n *html.Node) string {
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return b.String()
}

// firstAnchorHref returns the href of the first <a> under n, or "".
func firstAnchorHref(n *html.Node) string {
	anchors := elementsByTag(n, "a")
	if len(anchors) == 0 {
		return ""
	}
	return attrVal(anchors[0], "href")
}
