package codegen

import (
	"strings"

	"workeragent/internal/codeblock"
	"workeragent/internal/htmlmap"
)

// TestFeedback describes a failed test run: the run info with HTML blocks
// removed, followed by every fenced block the run printed.
func TestFeedback(path, runInfo string) string {
	var b strings.Builder
	b.WriteString("Test errors in " + path + ":\n" + codeblock.StripHTMLBlocks(runInfo) + "\n")
	blocks := codeblock.Extract(runInfo)
	rendered := make([]string, 0, len(blocks))
	for _, blk := range blocks {
		rendered = append(rendered, codeblock.Fenced(blk.Language, blk.Content))
	}
	b.WriteString(strings.Join(rendered, "\n"))
	return b.String()
}

// ScriptFeedback describes a failed script run. The last fenced block the
// script printed is attached; an HTML page is replaced by its XPath map.
func ScriptFeedback(path, runInfo string) string {
	var b strings.Builder
	b.WriteString("Script errors in " + path + ":\n" + codeblock.StripHTMLBlocks(runInfo) + "\n")
	blocks := codeblock.Extract(runInfo)
	if len(blocks) == 0 {
		return b.String()
	}
	last := blocks[len(blocks)-1]
	content := last.Content
	if last.Language == "html" {
		if m, err := htmlmap.XPathMap(last.Content); err == nil {
			content = m
		}
	}
	b.WriteString("use the path map to resolve find_element problems:\n")
	b.WriteString(codeblock.Fenced("xpath map", content))
	return b.String()
}
