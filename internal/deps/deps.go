// Package deps cleans oracle-written requirements lists by dropping modules
// that ship with the Python standard library.
package deps

import (
	"bufio"
	"embed"
	"strconv"
	"strings"
)

//go:embed stdlib/*.txt
var stdlibFiles embed.FS

// AlwaysExcluded names test helpers the oracle lists as packages.
var AlwaysExcluded = []string{"unittest", "mock"}

// Resolver filters requirements text against a standard-library name set.
type Resolver struct {
	stdlib map[string]struct{}
}

// NewResolver builds a resolver for a "major.minor" Python version using the
// embedded module lists. An unparseable version uses the newest list.
func NewResolver(pythonVersion string) *Resolver {
	names := readList("stdlib/python3.txt")
	if legacyVersion(pythonVersion) {
		names = append(names, readList("stdlib/python3_legacy.txt")...)
	}
	return NewResolverFromModules(names)
}

// NewResolverFromModules builds a resolver from an explicit module list, such
// as the one reported by the sandbox interpreter.
func NewResolverFromModules(modules []string) *Resolver {
	set := make(map[string]struct{}, len(modules)+len(AlwaysExcluded))
	for _, m := range modules {
		if m = strings.TrimSpace(m); m != "" {
			set[m] = struct{}{}
		}
	}
	for _, m := range AlwaysExcluded {
		set[m] = struct{}{}
	}
	return &Resolver{stdlib: set}
}

// IsStdlib reports whether name is filtered out.
func (r *Resolver) IsStdlib(name string) bool {
	_, ok := r.stdlib[name]
	return ok
}

// Filter removes fence markers, then keeps the bare name (text before "==")
// of every line that is not a standard-library module. Order and duplicates
// are preserved and lines are joined with "\n".
func (r *Resolver) Filter(raw string) string {
	text := strings.ReplaceAll(raw, "```", "")
	var kept []string
	for _, line := range splitLines(text) {
		name, _, _ := strings.Cut(line, "==")
		if r.IsStdlib(name) {
			continue
		}
		kept = append(kept, name)
	}
	return strings.Join(kept, "\n")
}

// splitLines splits like a line iterator: no trailing empty element, and
// "\r\n" counts as one break.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func readList(name string) []string {
	f, err := stdlibFiles.Open(name)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// legacyVersion is true for 3.x releases before 3.12, which still ship the
// modules removed in 3.12 and 3.13.
func legacyVersion(v string) bool {
	major, minor, ok := strings.Cut(strings.TrimSpace(v), ".")
	if !ok || major != "3" {
		return false
	}
	if i := strings.IndexByte(minor, '.'); i >= 0 {
		minor = minor[:i]
	}
	n, err := strconv.Atoi(minor)
	if err != nil {
		return false
	}
	return n < 12
}
