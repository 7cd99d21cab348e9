// Package htmlmap reduces an HTML page to a compact map of its interactive
// elements keyed by absolute XPath.
package htmlmap

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

var interactive = map[string]bool{
	"a":        true,
	"button":   true,
	"input":    true,
	"textarea": true,
	"select":   true,
}

var keptAttributes = []string{"placeholder", "id", "href"}

// Element describes one interactive element. Empty parts are omitted.
type Element struct {
	Attributes map[string]string `json:"attributes,omitempty"`
	Text       string            `json:"text,omitempty"`
}

// Entry pairs an element with its XPath.
type Entry struct {
	XPath   string
	Element Element
}

// Collect walks the document and returns interactive elements in document
// order. Elements without kept attributes and without text are skipped.
func Collect(src string) ([]Entry, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, err
	}
	var out []Entry
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && interactive[n.Data] {
			el := describe(n)
			if len(el.Attributes) > 0 || el.Text != "" {
				out = append(out, Entry{XPath: xpath(n), Element: el})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out, nil
}

// XPathMap renders Collect as a JSON object in document order. A repeated
// XPath keeps its last element.
func XPathMap(src string) (string, error) {
	entries, err := Collect(src)
	if err != nil {
		return "", err
	}
	index := map[string]int{}
	var uniq []Entry
	for _, e := range entries {
		if i, ok := index[e.XPath]; ok {
			uniq[i] = e
			continue
		}
		index[e.XPath] = len(uniq)
		uniq = append(uniq, e)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range uniq {
		if i > 0 {
			buf.WriteString(", ")
		}
		key, err := json.Marshal(e.XPath)
		if err != nil {
			return "", err
		}
		val, err := json.Marshal(e.Element)
		if err != nil {
			return "", err
		}
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.String(), nil
}

func describe(n *html.Node) Element {
	var el Element
	for _, name := range keptAttributes {
		for _, a := range n.Attr {
			if a.Namespace == "" && a.Key == name && a.Val != "" {
				if el.Attributes == nil {
					el.Attributes = map[string]string{}
				}
				el.Attributes[name] = a.Val
			}
		}
	}
	el.Text = strings.ReplaceAll(text(n), "\\n", "")
	return el
}

// text concatenates the trimmed text of every descendant.
func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(strings.TrimSpace(n.Data))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func xpath(n *html.Node) string {
	var steps []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		steps = append(steps, step(cur))
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return "/" + strings.Join(steps, "/")
}

// step names n, with a 1-based position when its parent has several
// children of the same tag.
func step(n *html.Node) string {
	if n.Parent == nil {
		return n.Data
	}
	pos, total := 0, 0
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != n.Data {
			continue
		}
		total++
		if c == n {
			pos = total
		}
	}
	if total > 1 {
		return n.Data + "[" + strconv.Itoa(pos) + "]"
	}
	return n.Data
}
