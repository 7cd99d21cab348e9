package workspace

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ContextBudget is the character ceiling for project files included in a prompt.
const ContextBudget = 30000

// File is a path and its content as shown to the oracle.
type File struct {
	Path    string
	Content string
}

// RenderContext renders files in order as "File: <path>\n<content>\n\n"
// entries. The first entry that would push the total past the ceiling ends
// the listing; files are never cut partway. Returns "" when nothing fits.
func RenderContext(files []File, ceiling int) string {
	var (
		b     strings.Builder
		total int
	)
	for _, f := range files {
		entry := fmt.Sprintf("File: %s\n%s\n\n", f.Path, f.Content)
		n := utf8.RuneCountInString(entry)
		if total+n > ceiling {
			break
		}
		b.WriteString(entry)
		total += n
	}
	if b.Len() == 0 {
		return ""
	}
	return "Relevant project files:\n" + b.String()
}
