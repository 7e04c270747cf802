package browser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// DOMSnapshot is a condensed copy of a page's DOM, written next to a failed
// test's report so the failing state can be inspected without a browser.
type DOMSnapshot struct {
	HTML  string
	Title string

	// Active lists the ids of elements carrying the "active" class, which is
	// how the shop marks the page currently shown
	Active []string

	Truncated bool
}

// CaptureDOM reads the page content and condenses it.
func CaptureDOM(p Page, maxLength int) (*DOMSnapshot, error) {
	raw, err := p.Content()
	if err != nil {
		return nil, err
	}
	return CondenseDOM(raw, maxLength)
}

// CondenseDOM strips scripts, styles and noise from rawHTML while keeping
// the structure and the attributes selectors rely on. Password values are
// never kept.
func CondenseDOM(rawHTML string, maxLength int) (*DOMSnapshot, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	snap := &DOMSnapshot{
		Title:  extractTitle(doc),
		Active: activeIDs(doc),
	}

	w := &domWriter{maxLength: maxLength}
	snap.Truncated = w.node(doc, 0)
	snap.HTML = w.b.String()
	return snap, nil
}

type domWriter struct {
	b         strings.Builder
	length    int
	maxLength int
}

// node writes n and its children; it reports whether output was truncated.
func (w *domWriter) node(n *html.Node, depth int) bool {
	if w.length >= w.maxLength {
		return true
	}

	switch n.Type {
	case html.CommentNode:
		return false
	case html.TextNode:
		return w.text(n)
	case html.ElementNode:
		if isSkippedElement(strings.ToLower(n.Data)) {
			return false
		}
		return w.element(n, depth)
	}
	return w.children(n, depth)
}

func (w *domWriter) text(n *html.Node) bool {
	text := strings.TrimSpace(n.Data)
	if text == "" {
		return false
	}

	if w.length+len(text) > w.maxLength {
		remaining := w.maxLength - w.length
		w.b.WriteString(text[:remaining] + "...")
		w.length = w.maxLength
		return true
	}

	w.b.WriteString(text)
	w.length += len(text)
	return false
}

func (w *domWriter) element(n *html.Node, depth int) bool {
	tag := strings.ToLower(n.Data)

	if depth > 0 && isBlockElement(tag) {
		w.b.WriteString("\n")
		w.b.WriteString(strings.Repeat("  ", depth))
	}

	w.b.WriteString("<")
	w.b.WriteString(tag)
	password := tag == "input" && attr(n, "type") == "password"
	for _, a := range n.Attr {
		if password && a.Key == "value" {
			continue
		}
		if shouldPreserveAttribute(tag, a.Key) {
			fmt.Fprintf(&w.b, ` %s="%s"`, a.Key, html.EscapeString(a.Val))
		}
	}
	w.b.WriteString(">")
	w.length += len(tag) + 2

	truncated := w.children(n, depth+1)

	if !isVoidElement(tag) {
		if isBlockElement(tag) {
			w.b.WriteString("\n")
			w.b.WriteString(strings.Repeat("  ", depth))
		}
		w.b.WriteString("</" + tag + ">")
		w.length += len(tag) + 3
	}

	return truncated
}

func (w *domWriter) children(n *html.Node, depth int) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if w.node(c, depth) {
			return true
		}
	}
	return false
}

var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"iframe":   true,
	"svg":      true,
	"link":     true,
	"meta":     true,
}

func isSkippedElement(tag string) bool {
	return skippedElements[tag]
}

var blockElements = map[string]bool{
	"div": true, "p": true, "section": true, "article": true, "header": true,
	"footer": true, "nav": true, "main": true, "aside": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true,
	"table": true, "thead": true, "tbody": true, "tr": true, "td": true, "th": true,
	"form": true, "fieldset": true,
}

func isBlockElement(tag string) bool {
	return blockElements[tag]
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "link": true, "meta": true, "source": true, "wbr": true,
}

func isVoidElement(tag string) bool {
	return voidElements[tag]
}

// shouldPreserveAttribute keeps attributes that selectors in this harness
// target.
func shouldPreserveAttribute(tag, name string) bool {
	name = strings.ToLower(name)

	switch name {
	case "id", "class", "role", "aria-label", "aria-hidden", "hidden":
		return true
	}
	if strings.HasPrefix(name, "data-") {
		return true
	}

	switch tag {
	case "a":
		return name == "href" || name == "target"
	case "input", "textarea", "select":
		return name == "name" || name == "type" || name == "placeholder" || name == "value"
	case "button":
		return name == "type" || name == "name"
	case "form":
		return name == "action" || name == "method"
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// extractTitle extracts the page title from the document
func extractTitle(doc *html.Node) string {
	var title string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		}
		for c := n.FirstChild; c != nil && title == ""; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return title
}

func activeIDs(doc *html.Node) []string {
	var ids []string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if id := attr(n, "id"); id != "" {
				for _, class := range strings.Fields(attr(n, "class")) {
					if class == "active" {
						ids = append(ids, id)
						break
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return ids
}
