package view

import (
	"bytes"
	"errors"
	"net/url"
	"slices"
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"pkt.systems/cellpad/schema"
)

var errNoRootElement = errors.New("no root element after parsing")

// MimeOrder lists display mimetypes from most to least preferred.
var MimeOrder = []string{
	"text/html",
	"image/svg+xml",
	"image/png",
	"image/jpeg",
	"image/gif",
	"text/markdown",
	"text/latex",
	"text/plain",
}

// Renderer turns markdown and output payloads into HTML nodes. Untrusted
// HTML is sanitized before it reaches the tree.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewRenderer returns a renderer with GitHub-flavoured markdown and a user
// content sanitization policy.
func NewRenderer() *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowDataURIImages()
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
		policy: policy,
	}
}

// Markdown renders markdown source. Blank source renders to nothing.
func (r *Renderer) Markdown(source string, trusted bool) ([]*html.Node, error) {
	if strings.TrimSpace(source) == "" {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return nil, &RenderError{Mime: "text/markdown", Err: err}
	}
	return r.parse("text/markdown", buf.String(), trusted, false)
}

// HTML parses an HTML fragment, sanitizing it unless trusted. Markup
// without any element is a render error. Markup that is well formed but
// loses every element to the sanitizer renders to nothing.
func (r *Renderer) HTML(mime, source string, trusted bool) ([]*html.Node, error) {
	return r.parse(mime, source, trusted, true)
}

func (r *Renderer) parse(mime, source string, trusted, requireElement bool) ([]*html.Node, error) {
	nodes, err := parseFragment(source)
	if err != nil {
		return nil, &RenderError{Mime: mime, Err: err}
	}
	if requireElement && !hasElement(nodes) {
		return nil, &RenderError{Mime: mime, Err: errNoRootElement}
	}
	if trusted {
		return nodes, nil
	}
	nodes, err = parseFragment(r.policy.Sanitize(source))
	if err != nil {
		return nil, &RenderError{Mime: mime, Err: err}
	}
	if !hasElement(nodes) {
		return nil, nil
	}
	return nodes, nil
}

func parseFragment(source string) ([]*html.Node, error) {
	context := &html.Node{Type: html.ElementNode, DataAtom: atom.Div, Data: "div"}
	return html.ParseFragment(strings.NewReader(source), context)
}

func hasElement(nodes []*html.Node) bool {
	return slices.ContainsFunc(nodes, func(n *html.Node) bool { return n.Type == html.ElementNode })
}

// Output renders one output entry.
func (r *Renderer) Output(o schema.Output, trusted bool) ([]*html.Node, error) {
	switch o.OutputType {
	case schema.OutputStream:
		pre := newElement(atom.Pre, ClassRenderedText)
		setAttr(pre, "data-mime-type", "application/vnd.jupyter."+o.Name)
		setText(pre, resolveCarriageReturns(o.Text))
		return []*html.Node{pre}, nil
	case schema.OutputError:
		pre := newElement(atom.Pre, ClassRenderedText, ClassError)
		setAttr(pre, "data-mime-type", "application/vnd.jupyter.stderr")
		text := o.EName + ": " + o.EValue
		if len(o.Traceback) > 0 {
			text = strings.Join(o.Traceback, "\n")
		}
		setText(pre, xansi.Strip(text))
		return []*html.Node{pre}, nil
	case schema.OutputExecuteResult, schema.OutputDisplayData:
		return r.Bundle(o.Data, trusted)
	default:
		return nil, nil
	}
}

// Bundle renders the richest representation of a mime bundle that renders
// to something, walking the mimetypes in preference order.
func (r *Renderer) Bundle(bundle schema.MimeBundle, trusted bool) ([]*html.Node, error) {
	for _, mime := range bundleMimes(bundle) {
		text, _ := bundle.Text(mime)
		nodes, err := r.mime(mime, text, trusted)
		if err != nil {
			return nil, err
		}
		if len(nodes) > 0 {
			return nodes, nil
		}
	}
	return nil, nil
}

func (r *Renderer) mime(mime, text string, trusted bool) ([]*html.Node, error) {
	switch mime {
	case "text/html":
		nodes, err := r.HTML(mime, text, trusted)
		if err != nil || len(nodes) == 0 {
			return nil, err
		}
		return []*html.Node{wrap(ClassRenderedHTML, mime, nodes)}, nil
	case "text/markdown":
		nodes, err := r.Markdown(text, trusted)
		if err != nil || len(nodes) == 0 {
			return nil, err
		}
		return []*html.Node{wrap(ClassRenderedMarkdown, mime, nodes)}, nil
	case "image/svg+xml":
		if trusted {
			nodes, err := r.HTML(mime, text, true)
			if err != nil {
				return nil, err
			}
			return []*html.Node{wrap(ClassRenderedImage, mime, nodes)}, nil
		}
		return []*html.Node{image(mime, dataURI(mime, text))}, nil
	case "image/png", "image/jpeg", "image/gif":
		return []*html.Node{image(mime, "data:"+mime+";base64,"+strings.Join(strings.Fields(text), ""))}, nil
	default:
		pre := newElement(atom.Pre, ClassRenderedText)
		setAttr(pre, "data-mime-type", mime)
		setText(pre, text)
		return []*html.Node{pre}, nil
	}
}

// PreferredMime picks the richest mimetype of bundle by MimeOrder, falling
// back to the alphabetically first key.
func PreferredMime(bundle schema.MimeBundle) string {
	mimes := bundleMimes(bundle)
	if len(mimes) == 0 {
		return ""
	}
	return mimes[0]
}

// bundleMimes lists the mimetypes of bundle in MimeOrder, followed by the
// remaining keys sorted.
func bundleMimes(bundle schema.MimeBundle) []string {
	out := make([]string, 0, len(bundle))
	for _, mime := range MimeOrder {
		if _, ok := bundle[mime]; ok {
			out = append(out, mime)
		}
	}
	var rest []string
	for k := range bundle {
		if !slices.Contains(MimeOrder, k) {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

func wrap(class, mime string, nodes []*html.Node) *html.Node {
	div := newElement(atom.Div, class)
	setAttr(div, "data-mime-type", mime)
	appendChildren(div, nodes)
	return div
}

func image(mime, src string) *html.Node {
	img := newElement(atom.Img, ClassRenderedImage)
	setAttr(img, "data-mime-type", mime)
	setAttr(img, "src", src)
	return img
}

func dataURI(mime, text string) string {
	return "data:" + mime + ";charset=utf-8," + url.PathEscape(text)
}

// resolveCarriageReturns keeps, per line, only the text after the last
// carriage return, the way a terminal overwrites progress output.
func resolveCarriageReturns(text string) string {
	if !strings.Contains(text, "\r") {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimRight(line, "\r")
		if idx := strings.LastIndexByte(trimmed, '\r'); idx >= 0 {
			trimmed = trimmed[idx+1:]
		}
		lines[i] = trimmed
	}
	return strings.Join(lines, "\n")
}
