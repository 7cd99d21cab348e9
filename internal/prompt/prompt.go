// Package prompt owns the fixed prompt text sent to the oracle.
package prompt

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownRole = errors.New("prompt: unknown role")

// Role selects the system prompt of a code-generation request.
type Role int

const (
	RoleProgrammer Role = iota
	RoleTester
	RoleRequirements
)

func (r Role) String() string {
	switch r {
	case RoleProgrammer:
		return "programmer"
	case RoleTester:
		return "tester"
	case RoleRequirements:
		return "requirements"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// ParseRole maps a tag to its Role. Unknown tags are an error.
func ParseRole(tag string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "programmer":
		return RoleProgrammer, nil
	case "tester":
		return RoleTester, nil
	case "requirements":
		return RoleRequirements, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, tag)
}

// SystemPrompt returns the fixed system prompt of r.
func (r Role) SystemPrompt() (string, error) {
	switch r {
	case RoleProgrammer:
		return Compose(
			PresetCrossPlatform(),
			Preset{Rules: []string{
				"You are a Python programmer that writes code blocks (```python\\ncontent\\n```) to solve specific tasks.",
				"Return only the code blocks, without any explanations or additional comments.",
				"For new code blocks, replace 'YOUR_SCRIPT_NAME' with a name that describes what the script does.",
			}},
			PresetCodeBlocksOnly("YOUR_SCRIPT_NAME.py"),
			PresetPageSourceOnError(),
		).Render(), nil
	case RoleTester:
		return Compose(
			PresetCrossPlatform(),
			Preset{Rules: []string{
				"You are a Python tester that writes unit tests for given code.",
				"Return only the unit test code, without any explanations or additional comments.",
				"Do not remove the existing comments.",
				"The generated unit tests should cover various test cases and facilitate dependency mocking.",
				"If all tests succeed do not write to stderr.",
				"If you don't find any problems in the script that gave an error in the feedback, try another approach to solve it.",
			}},
			PresetCodeBlocksOnly("test_YOUR_SCRIPT_NAME.py"),
		).Render(), nil
	case RoleRequirements:
		return Compose(
			PresetCrossPlatform(),
			Preset{Rules: []string{
				"You are a requirements.txt creator that lists the required packages for a Python project.",
				"Use the provided code and test files to determine the required packages.",
				"Return only the contents of the requirements.txt file, without any explanations or additional comments.",
				"Output must be strictly limited to the contents of the requirements.txt file.",
				"Do not wrap the packages in code blocks.",
			}},
		).Render(), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownRole, r)
}

// NothingToClarify is the exact reply that ends the interview.
const NothingToClarify = "Nothing to clarify"

// Clarify is the interview system prompt for a host OS and browser.
func Clarify(operatingSystem, browser string) string {
	return Preset{Rules: []string{
		"Given some instructions that will be executed by another programming AI, determine if anything needs to be clarified, do not carry them out.",
		"Include potential issues, obstacles, and considerations,",
		"ask a single clarification question.",
		"Respond in the same language as the prompt was made.",
		"Ask short questions.",
		"My operating system: " + operatingSystem + ".",
		"My default browser: " + browser + ".",
		`Otherwise state: "` + NothingToClarify + `"`,
	}}.Render()
}

var Roadmap = Preset{Rules: []string{
	"Given a problem description, create a step-by-step roadmap to be executed by another programming AI.",
	"Include potential issues, obstacles, and considerations for each step.",
	"The roadmap should focus on clarity and practicality.",
	"Return only the roadmap, without any explanations or additional comments.",
}}.Render()

var GoalAchieved = Preset{Rules: []string{
	"You review generated code against the task it was written for.",
	"Answer True if the code fully accomplishes the user prompt, otherwise answer False.",
	"Start your answer with the single word True or False.",
}}.Render()

var FileRelevance = Preset{Rules: []string{
	"Decide whether the given file is relevant context for the user prompt.",
	"Start your answer with the single word True or False.",
}}.Render()

var DirectoryRelevance = Preset{Rules: []string{
	"Decide whether the given directory may contain files relevant to the user prompt, judging by its listing.",
	"Start your answer with the single word True or False.",
}}.Render()

const (
	// TestRequest asks the tester for unit tests of the current code.
	TestRequest = "Write unit tests for the generated code."
	// RequirementsRequest asks for the dependency manifest.
	RequirementsRequest = "Create a requirements.txt file based on the dependencies in the code and test files provided."
	// RetryDirective leads the task prompt on rounds that carry error feedback.
	RetryDirective = "Resolve the errors reported in the feedback and return the corrected files."
	// RefineFeedback is the feedback of a round whose code ran but missed the goal.
	RefineFeedback = "The generated code does not fully accomplish the user prompt yet.\nPlease refine it."
	// DefaultAnswer replaces an empty operator answer.
	DefaultAnswer = "make reasonable assumption."
)

// Task is the programmer prompt of the first round.
func Task(userPrompt, roadmap string) string {
	return "prompt: " + userPrompt + "\nroadmap:\n" + roadmap
}

// Retry prefixes the task prompt with RetryDirective.
func Retry(task string) string {
	return RetryDirective + "\n\n" + task
}

// ErrorFeedback wraps accumulated feedback as the last programmer message.
func ErrorFeedback(feedback string) string {
	return "Resolve the error:\n" + feedback
}

// Goal renders the goal check request.
func Goal(userPrompt string, files []string) string {
	return "User prompt: " + userPrompt + "\n\nBelow is the code that was generated:\n\n" + strings.Join(files, "\n")
}

// GoalFile renders one file of Goal.
func GoalFile(path, content string) string {
	return "File: " + path + "\n" + content + "\n"
}

// IsTrue reports whether a yes/no reply counts as yes.
func IsTrue(reply string) bool {
	return strings.HasPrefix(strings.TrimSpace(reply), "True")
}

// FileRelevanceRequest renders the per-file relevance question.
func FileRelevanceRequest(userPrompt, path, content string) string {
	return "User prompt: " + userPrompt + "\nFile path: " + path + "\nFile content:\n" + content
}

// DirectoryRelevanceRequest renders the per-directory relevance question.
func DirectoryRelevanceRequest(userPrompt, dir string, listing []string) string {
	return "User prompt: " + userPrompt + "\nDirectory: " + dir + "\nContents:\n" + strings.Join(listing, "\n")
}
