package prompt

import (
	"errors"
	"strings"
	"testing"
)

func TestParseRole(t *testing.T) {
	for tag, want := range map[string]Role{
		"programmer":   RoleProgrammer,
		" Tester ":     RoleTester,
		"requirements": RoleRequirements,
	} {
		got, err := ParseRole(tag)
		if err != nil || got != want {
			t.Fatalf("ParseRole(%q) = %v,%v want %v", tag, got, err, want)
		}
	}
	if _, err := ParseRole("reviewer"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestSystemPromptPerRole(t *testing.T) {
	for _, r := range []Role{RoleProgrammer, RoleTester, RoleRequirements} {
		p, err := r.SystemPrompt()
		if err != nil || p == "" {
			t.Fatalf("%s: empty prompt or error %v", r, err)
		}
	}
	prog, _ := RoleProgrammer.SystemPrompt()
	if !strings.Contains(prog, "# YOUR_SCRIPT_NAME.py") {
		t.Fatalf("programmer prompt must require path headers: %q", prog)
	}
	if _, err := Role(42).SystemPrompt(); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole for out-of-range role, got %v", err)
	}
}

func TestIsTrue(t *testing.T) {
	cases := map[string]bool{
		"True":               true,
		"  True, it works":   true,
		"False":              false,
		"The answer is True": false,
		"true":               false,
	}
	for reply, want := range cases {
		if got := IsTrue(reply); got != want {
			t.Fatalf("IsTrue(%q) = %v want %v", reply, got, want)
		}
	}
}

func TestGoalRendering(t *testing.T) {
	got := Goal("print hi", []string{GoalFile("a.py", "# a.py\nprint('hi')"), GoalFile("b.py", "x")})
	want := "User prompt: print hi\n\nBelow is the code that was generated:\n\nFile: a.py\n# a.py\nprint('hi')\n\nFile: b.py\nx\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestClarifyMentionsSentinel(t *testing.T) {
	p := Clarify("linux", "chrome")
	if !strings.Contains(p, `"Nothing to clarify"`) || !strings.Contains(p, "linux") {
		t.Fatalf("unexpected clarify prompt %q", p)
	}
}
