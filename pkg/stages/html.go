package stages

import (
	"strings"

	"golang.org/x/net/html"
)

// inlineScripts returns the bodies of all inline <script> elements. External
// scripts are not fetched; the inline ones are where obfuscated redirects and
// credential skimmers live.
func inlineScripts(htmlText string) []string {
	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return nil
	}
	var scripts []string
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "script" || attrValue(n, "src") != "" {
			return
		}
		var b strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
		if body := strings.TrimSpace(b.String()); body != "" {
			scripts = append(scripts, body)
		}
	})
	return scripts
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textContent flattens all text nodes, skipping script and style bodies.
func textContent(doc *html.Node) string {
	var b strings.Builder
	walk(doc, func(n *html.Node) {
		if n.Type == html.TextNode && n.Parent != nil &&
			n.Parent.Data != "script" && n.Parent.Data != "style" {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
	})
	return strings.Join(strings.Fields(b.String()), " ")
}
