package notify

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Messages are the templates of the user-visible progress lines. "{iteration}"
// is replaced with the iteration number.
type Messages struct {
	StartingIteration     string `yaml:"starting_iteration"`
	TestsFailed           string `yaml:"tests_failed"`
	ScriptExecutionFailed string `yaml:"script_execution_failed"`
	TaskCompleted         string `yaml:"task_completed"`
	TaskFailed            string `yaml:"task_failed"`
}

func DefaultMessages() Messages {
	return Messages{
		StartingIteration:     "Starting iteration {iteration}...",
		TestsFailed:           "Tests failed. The model will try to adjust the code based on the feedback.",
		ScriptExecutionFailed: "Script execution failed. The model will try to adjust the code based on the feedback.",
		TaskCompleted:         "Task completed successfully! The code and tests work correctly.",
		TaskFailed:            "Could not complete the task after several attempts. Consider providing more details or revising your description.",
	}
}

// LoadMessages reads YAML templates from path. Keys missing from the file
// keep their defaults.
func LoadMessages(path string) (Messages, error) {
	m := DefaultMessages()
	raw, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("read messages: %w", err)
	}
	var override Messages
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return m, fmt.Errorf("parse messages %s: %w", path, err)
	}
	m.merge(override)
	return m, nil
}

func (m *Messages) merge(o Messages) {
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	set(&m.StartingIteration, o.StartingIteration)
	set(&m.TestsFailed, o.TestsFailed)
	set(&m.ScriptExecutionFailed, o.ScriptExecutionFailed)
	set(&m.TaskCompleted, o.TaskCompleted)
	set(&m.TaskFailed, o.TaskFailed)
}

func (m Messages) template(k Kind) string {
	switch k {
	case KindStartingIteration:
		return m.StartingIteration
	case KindTestsFailed:
		return m.TestsFailed
	case KindScriptExecutionFailed:
		return m.ScriptExecutionFailed
	case KindTaskCompleted:
		return m.TaskCompleted
	case KindTaskFailed:
		return m.TaskFailed
	}
	return string(k)
}

// Event renders the template of k into an Event.
func (m Messages) Event(k Kind, iteration int) Event {
	msg := strings.ReplaceAll(m.template(k), "{iteration}", strconv.Itoa(iteration))
	return Event{Kind: k, Iteration: iteration, Message: msg}
}
