package folder

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Footnote, extension.Typographer),
)

// disallowedTags are stripped from rendered Markdown output (and their
// entire subtree discarded) rather than left as escaped text, since a
// _folder.md or <image>.md sidecar can be authored by anyone with write
// access to the source tree, not just the gallery operator.
var disallowedTags = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
	atom.Iframe: true,
	atom.Object: true,
	atom.Embed:  true,
	atom.Form:   true,
	atom.Link:   true,
	atom.Meta:   true,
	atom.Base:   true,
	atom.Applet: true,
}

// unsafeURLSchemes blocks script-executing URL schemes on href/src attributes.
var unsafeURLSchemes = []string{"javascript:", "vbscript:", "data:text/html"}

// RenderMarkdown converts src (the Markdown body of a `_folder.md` or a
// sidecar `.md` description file) to HTML, then sanitizes the result: CommonMark
// permits raw inline HTML, and goldmark renders it verbatim, so a sanitation
// pass strips script-executing elements and attributes before the HTML is
// ever sent to a browser. A render failure yields an empty string rather
// than an error, since a broken description must never block serving the
// folder or image it describes.
func RenderMarkdown(src string) string {
	if src == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := markdownRenderer.Convert([]byte(src), &buf); err != nil {
		return ""
	}
	return sanitizeHTML(buf.String())
}

// sanitizeHTML parses raw as an HTML fragment, removes disallowed elements
// and attributes in place, and re-serializes it. A parse failure yields the
// empty string; goldmark's output is well-formed, so this only triggers on
// pathological input.
func sanitizeHTML(raw string) string {
	nodes, err := html.ParseFragment(strings.NewReader(raw), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return ""
	}

	var out bytes.Buffer
	for _, n := range nodes {
		sanitizeNode(n)
		if n.Type != html.ErrorNode {
			_ = html.Render(&out, n)
		}
	}
	return out.String()
}

// sanitizeNode walks n's children, removing disallowed elements and
// scrubbing event-handler and script-scheme attributes from the rest.
func sanitizeNode(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.ElementNode && disallowedTags[c.DataAtom] {
			n.RemoveChild(c)
			continue
		}
		if c.Type == html.ElementNode {
			c.Attr = sanitizeAttrs(c.Attr)
		}
		sanitizeNode(c)
	}
}

func sanitizeAttrs(attrs []html.Attribute) []html.Attribute {
	kept := attrs[:0]
	for _, a := range attrs {
		if strings.HasPrefix(strings.ToLower(a.Key), "on") {
			continue
		}
		if (a.Key == "href" || a.Key == "src") && hasUnsafeScheme(a.Val) {
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

func hasUnsafeScheme(val string) bool {
	v := strings.ToLower(strings.TrimSpace(val))
	for _, scheme := range unsafeURLSchemes {
		if strings.HasPrefix(v, scheme) {
			return true
		}
	}
	return false
}
