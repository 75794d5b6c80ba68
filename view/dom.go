// Package view keeps a retained HTML node tree in step with notebook models.
// Widgets own one element each; containers reconcile their children against
// observable model lists instead of rebuilding on every change.
package view

import (
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Class names applied to widget elements.
const (
	ClassNotebook         = "jp-Notebook"
	ClassCell             = "jp-Cell"
	ClassCodeCell         = "jp-CodeCell"
	ClassMarkdownCell     = "jp-MarkdownCell"
	ClassRawCell          = "jp-RawCell"
	ClassInputArea        = "jp-InputArea"
	ClassInputPrompt      = "jp-InputPrompt"
	ClassEditor           = "jp-Editor"
	ClassOutputArea       = "jp-OutputArea"
	ClassOutput           = "jp-OutputArea-output"
	ClassRenderedText     = "jp-RenderedText"
	ClassRenderedHTML     = "jp-RenderedHTMLCommon"
	ClassRenderedMarkdown = "jp-RenderedMarkdown"
	ClassRenderedImage    = "jp-RenderedImage"

	ClassActive      = "jp-mod-active"
	ClassSelected    = "jp-mod-selected"
	ClassReadOnly    = "jp-mod-readOnly"
	ClassHidden      = "jp-mod-hidden"
	ClassCollapsed   = "jp-mod-collapsed"
	ClassFixedHeight = "jp-mod-fixedHeight"
	ClassTrusted     = "jp-mod-trusted"
	ClassEditMode    = "jp-mod-editMode"
	ClassError       = "jp-mod-error"
)

func newElement(a atom.Atom, classes ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	if len(classes) > 0 {
		setAttr(n, "class", strings.Join(classes, " "))
	}
	return n
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
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
	n.Attr = slices.DeleteFunc(n.Attr, func(a html.Attribute) bool { return a.Key == key })
}

func classes(n *html.Node) []string {
	v, _ := attr(n, "class")
	return strings.Fields(v)
}

// HasClass reports whether n carries class.
func HasClass(n *html.Node, class string) bool {
	return slices.Contains(classes(n), class)
}

func toggleClass(n *html.Node, class string, on bool) {
	current := classes(n)
	has := slices.Contains(current, class)
	switch {
	case on && !has:
		current = append(current, class)
	case !on && has:
		current = slices.DeleteFunc(current, func(c string) bool { return c == class })
	default:
		return
	}
	if len(current) == 0 {
		removeAttr(n, "class")
		return
	}
	setAttr(n, "class", strings.Join(current, " "))
}

func toggleAttr(n *html.Node, key string, on bool) {
	if on {
		setAttr(n, key, "")
		return
	}
	removeAttr(n, key)
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

func setText(n *html.Node, text string) {
	removeChildren(n)
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

func appendChildren(n *html.Node, children []*html.Node) {
	for _, c := range children {
		if c.Parent != nil {
			c.Parent.RemoveChild(c)
		}
		n.AppendChild(c)
	}
}

// TextContent returns the concatenated text of n and its descendants.
func TextContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// FindAll returns the descendants of n, in document order, carrying class.
func FindAll(n *html.Node, class string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && HasClass(c, class) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}
