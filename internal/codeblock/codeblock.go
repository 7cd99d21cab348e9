// Package codeblock parses fenced code blocks out of oracle replies and owns the
// "# <path>" header convention every generated file carries on its first line.
package codeblock

import (
	"regexp"
	"strings"
)

const (
	// Fence opens and closes a block when it starts a line.
	Fence = "```"
	// CommentMarker is the header comment marker of generated files.
	CommentMarker = "#"
	// NoLanguage tags a block whose opening fence carries no language.
	NoLanguage = "none"
)

// Block is one complete fenced fragment.
type Block struct {
	Content  string
	Language string
	// Path is empty when the first content line is not a "# <path>" header.
	Path string
}

// HasPath reports whether the block declared its own path.
func (b Block) HasPath() bool { return b.Path != "" }

// Extract returns every complete fenced block of text in source order.
// An unterminated trailing fence yields nothing.
func Extract(text string) []Block {
	var (
		out    []Block
		inside bool
		lang   string
		buf    strings.Builder
	)
	for _, line := range strings.Split(text, "\n") {
		if !inside {
			if strings.HasPrefix(line, Fence) {
				inside = true
				lang = strings.TrimSpace(strings.TrimPrefix(line, Fence))
				if lang == "" {
					lang = NoLanguage
				}
				buf.Reset()
			}
			continue
		}
		if strings.HasPrefix(line, Fence) {
			inside = false
			content := strings.TrimRight(buf.String(), "\n")
			path, _ := PathFromHeader(firstLine(content))
			out = append(out, Block{Content: content, Language: lang, Path: path})
			buf.Reset()
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return out
}

// PathFromHeader derives a relative path from a "# path" header line.
// Leading "./" or "/" is dropped. ok is false when line is not a header.
func PathFromHeader(line string) (path string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, CommentMarker) {
		return "", false
	}
	p := strings.TrimSpace(strings.TrimPrefix(line, CommentMarker))
	if strings.HasPrefix(p, "./") {
		p = p[2:]
	} else if strings.HasPrefix(p, "/") {
		p = p[1:]
	}
	p = strings.TrimSpace(p)
	if p == "" {
		return "", false
	}
	return p, true
}

var leadingComments = regexp.MustCompile(`^(\s*#[^\n]*(\n|$))+`)

// StripHeader removes the leading run of comment lines from content.
func StripHeader(content string) string {
	return leadingComments.ReplaceAllString(content, "")
}

// WithHeader returns content with its leading comments replaced by exactly one
// canonical "# <path>" line.
func WithHeader(path, content string) string {
	return Header(path) + "\n" + StripHeader(content)
}

// Header is the canonical first line for path.
func Header(path string) string {
	return CommentMarker + " " + path
}

var htmlBlock = regexp.MustCompile("(?s)```html.*?```")

// StripHTMLBlocks removes every ```html ... ``` span from text.
func StripHTMLBlocks(text string) string {
	return htmlBlock.ReplaceAllString(text, "")
}

// Fenced renders content inside a fence tagged with language.
func Fenced(language, content string) string {
	return Fence + language + "\n" + content + "\n" + Fence
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
