package view

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"pkt.systems/cellpad/schema"
)

func renderString(t *testing.T, nodes []*html.Node) string {
	t.Helper()
	var b strings.Builder
	for _, n := range nodes {
		if err := html.Render(&b, n); err != nil {
			t.Fatalf("render: %v", err)
		}
	}
	return b.String()
}

func TestMarkdownRendersGFM(t *testing.T) {
	r := NewRenderer()
	nodes, err := r.Markdown("# Title\n\n| a | b |\n|---|---|\n| 1 | 2 |\n", true)
	if err != nil {
		t.Fatalf("markdown: %v", err)
	}
	out := renderString(t, nodes)
	if !strings.Contains(out, "<h1") || !strings.Contains(out, "<table>") {
		t.Fatalf("expected heading and table, got %s", out)
	}
}

func TestMarkdownBlankRendersNothing(t *testing.T) {
	nodes, err := NewRenderer().Markdown("  \n", false)
	if err != nil || len(nodes) != 0 {
		t.Fatalf("expected no nodes, got %d %v", len(nodes), err)
	}
}

func TestUntrustedHTMLIsSanitized(t *testing.T) {
	r := NewRenderer()
	src := `<div onclick="steal()">hi<script>alert(1)</script></div>`
	nodes, err := r.HTML("text/html", src, false)
	if err != nil {
		t.Fatalf("html: %v", err)
	}
	out := renderString(t, nodes)
	if strings.Contains(out, "script") || strings.Contains(out, "onclick") {
		t.Fatalf("expected sanitized output, got %s", out)
	}
	trusted, err := r.HTML("text/html", src, true)
	if err != nil {
		t.Fatalf("trusted html: %v", err)
	}
	if !strings.Contains(renderString(t, trusted), "onclick") {
		t.Fatalf("expected trusted html untouched")
	}
}

func TestHTMLWithoutElementIsRenderError(t *testing.T) {
	_, err := NewRenderer().HTML("text/html", "just text", true)
	if !errors.Is(err, ErrRender) {
		t.Fatalf("expected ErrRender, got %v", err)
	}
	var re *RenderError
	if !errors.As(err, &re) || re.Mime != "text/html" {
		t.Fatalf("expected RenderError for text/html, got %v", err)
	}
}

func TestPreferredMime(t *testing.T) {
	cases := []struct {
		bundle map[string]string
		want   string
	}{
		{map[string]string{"text/plain": "x", "text/html": "<b>x</b>"}, "text/html"},
		{map[string]string{"text/plain": "x", "image/png": "AAAA"}, "image/png"},
		{map[string]string{"application/x-b": "1", "application/x-a": "2"}, "application/x-a"},
		{map[string]string{}, ""},
	}
	for _, tc := range cases {
		if got := PreferredMime(schema.TextBundle(tc.bundle)); got != tc.want {
			t.Fatalf("bundle %v: got %q want %q", tc.bundle, got, tc.want)
		}
	}
}

func TestStreamOutputOverwritesCarriageReturns(t *testing.T) {
	nodes, err := NewRenderer().Output(schema.Stream(schema.StreamStdout, "10%\r50%\r100%\ndone\n"), false)
	if err != nil {
		t.Fatalf("output: %v", err)
	}
	if got := TextContent(nodes[0]); got != "100%\ndone\n" {
		t.Fatalf("unexpected stream text %q", got)
	}
}

func TestErrorOutputStripsANSI(t *testing.T) {
	o := schema.ErrorOutput("ValueError", "bad", []string{"\x1b[0;31mValueError\x1b[0m: bad"})
	nodes, err := NewRenderer().Output(o, false)
	if err != nil {
		t.Fatalf("output: %v", err)
	}
	if got := TextContent(nodes[0]); got != "ValueError: bad" {
		t.Fatalf("unexpected traceback text %q", got)
	}
	if !HasClass(nodes[0], ClassError) {
		t.Fatalf("expected error class")
	}
}

func TestImageOutputUsesDataURI(t *testing.T) {
	o := schema.DisplayData(schema.TextBundle(map[string]string{"image/png": "iVBO\nRw0K\n"}))
	nodes, err := NewRenderer().Output(o, false)
	if err != nil {
		t.Fatalf("output: %v", err)
	}
	src, _ := attr(nodes[0], "src")
	if src != "data:image/png;base64,iVBORw0K" {
		t.Fatalf("unexpected src %q", src)
	}
}

func TestUntrustedSVGIsImage(t *testing.T) {
	o := schema.DisplayData(schema.TextBundle(map[string]string{"image/svg+xml": "<svg><script/></svg>"}))
	nodes, err := NewRenderer().Output(o, false)
	if err != nil {
		t.Fatalf("output: %v", err)
	}
	if nodes[0].Data != "img" {
		t.Fatalf("expected img element, got %s", nodes[0].Data)
	}
	src, _ := attr(nodes[0], "src")
	if !strings.HasPrefix(src, "data:image/svg+xml;charset=utf-8,%3Csvg%3E") {
		t.Fatalf("unexpected src %q", src)
	}
}

func TestErrorOutputStripsOSCAndPrivateModes(t *testing.T) {
	tb := "\x1b[?25lValueError\x1b[?25h: \x1b]8;;file:///x.py\x07x.py\x1b]8;;\x07 bad"
	nodes, err := NewRenderer().Output(schema.ErrorOutput("ValueError", "bad", []string{tb}), false)
	if err != nil {
		t.Fatalf("output: %v", err)
	}
	if got := TextContent(nodes[0]); got != "ValueError: x.py bad" {
		t.Fatalf("unexpected traceback text %q", got)
	}
}

func TestSanitizedAwayHTMLRendersNothing(t *testing.T) {
	r := NewRenderer()
	nodes, err := r.HTML("text/html", "<script>window.x=1;</script>", false)
	if err != nil || len(nodes) != 0 {
		t.Fatalf("expected no nodes and no error, got %d %v", len(nodes), err)
	}
	nodes, err = r.Markdown("<!-- note -->", false)
	if err != nil || len(nodes) != 0 {
		t.Fatalf("expected comment-only markdown to render nothing, got %d %v", len(nodes), err)
	}
	if _, err := r.Markdown("<!-- note -->", true); err != nil {
		t.Fatalf("trusted comment-only markdown: %v", err)
	}
}

func TestBundleFallsBackWhenSanitizedAway(t *testing.T) {
	bundle := schema.TextBundle(map[string]string{
		"text/html":  "<script>window.x=1;</script>",
		"text/plain": "<Figure>",
	})
	r := NewRenderer()
	nodes, err := r.Bundle(bundle, false)
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}
	if len(nodes) != 1 || TextContent(nodes[0]) != "<Figure>" {
		t.Fatalf("expected text/plain fallback, got %s", renderString(t, nodes))
	}
	if mime, _ := attr(nodes[0], "data-mime-type"); mime != "text/plain" {
		t.Fatalf("unexpected mime %q", mime)
	}
	trusted, err := r.Bundle(bundle, true)
	if err != nil {
		t.Fatalf("trusted bundle: %v", err)
	}
	if !HasClass(trusted[0], ClassRenderedHTML) {
		t.Fatalf("expected trusted html kept")
	}
}

func TestDataURIPathEscapes(t *testing.T) {
	got := dataURI("image/svg+xml", `<svg a="1 2"/>`)
	want := "data:image/svg+xml;charset=utf-8,%3Csvg%20a=%221%202%22%2F%3E"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
