package codeblock

import (
	"strings"
	"testing"
)

func TestExtractNoFences(t *testing.T) {
	if got := Extract("no fences here"); len(got) != 0 {
		t.Fatalf("expected no blocks, got %+v", got)
	}
}

func TestExtractBlocksInOrder(t *testing.T) {
	text := strings.Join([]string{
		"intro text",
		"```python",
		"# app/main.py",
		"print('hi')",
		"```",
		"between",
		"```",
		"plain",
		"```",
		"```sh",
		"# ./run.sh",
		"echo ok",
		"```",
	}, "\n")
	got := Extract(text)
	if len(got) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(got))
	}
	if got[0].Language != "python" || got[0].Path != "app/main.py" {
		t.Fatalf("unexpected first block: %+v", got[0])
	}
	if got[0].Content != "# app/main.py\nprint('hi')" {
		t.Fatalf("unexpected first content: %q", got[0].Content)
	}
	if got[1].Language != NoLanguage || got[1].HasPath() {
		t.Fatalf("unexpected second block: %+v", got[1])
	}
	if got[2].Path != "run.sh" {
		t.Fatalf("expected run.sh, got %q", got[2].Path)
	}
}

func TestExtractUnterminatedTrailingFence(t *testing.T) {
	text := "```python\n# a.py\nx = 1\n```\n```python\n# b.py\ny = 2\n"
	got := Extract(text)
	if len(got) != 1 {
		t.Fatalf("expected 1 block, got %d", len(got))
	}
	if got[0].Path != "a.py" {
		t.Fatalf("unexpected path %q", got[0].Path)
	}
}

func TestExtractTrimsTrailingNewlines(t *testing.T) {
	got := Extract("```\nline\n\n\n```")
	if len(got) != 1 || got[0].Content != "line" {
		t.Fatalf("unexpected blocks: %+v", got)
	}
}

func TestPathFromHeader(t *testing.T) {
	cases := []struct {
		line string
		want string
		ok   bool
	}{
		{"# foo/bar.py", "foo/bar.py", true},
		{"#./foo.py", "foo.py", true},
		{"# /abs/x.py", "abs/x.py", true},
		{"  #   spaced.py  ", "spaced.py", true},
		{"// not a hash comment", "", false},
		{"print('x')", "", false},
		{"#", "", false},
	}
	for _, c := range cases {
		got, ok := PathFromHeader(c.line)
		if got != c.want || ok != c.ok {
			t.Fatalf("PathFromHeader(%q) = %q,%v want %q,%v", c.line, got, ok, c.want, c.ok)
		}
	}
}

func TestWithHeaderReplacesLeadingComments(t *testing.T) {
	in := "# old/path.py\n# another comment\nimport os\n# trailing comment stays\n"
	got := WithHeader("new/path.py", in)
	want := "# new/path.py\nimport os\n# trailing comment stays\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}

	for _, only := range []string{"# a.py", "# a.py\n# note", "# a.py\n"} {
		if got := WithHeader("a.py", only); got != "# a.py\n" {
			t.Fatalf("WithHeader(%q) = %q, want a single header line", only, got)
		}
	}
}

func TestWithHeaderIsIdempotent(t *testing.T) {
	in := "# a.py\nprint(1)\n"
	once := WithHeader("a.py", in)
	twice := WithHeader("a.py", once)
	if once != twice {
		t.Fatalf("not idempotent: %q vs %q", once, twice)
	}
}

func TestStripHTMLBlocks(t *testing.T) {
	in := "Result:\npage source:\n```html\n<html><body>x</body></html>\n```\nErrors:\nboom"
	got := StripHTMLBlocks(in)
	if strings.Contains(got, "<html>") {
		t.Fatalf("html not stripped: %q", got)
	}
	if !strings.Contains(got, "Errors:\nboom") {
		t.Fatalf("rest of text lost: %q", got)
	}
}
