package prompt

import "strings"

// Preset holds reusable rules of a system prompt.
type Preset struct {
	Rules []string
}

// Compose concatenates preset rules in order.
func Compose(presets ...Preset) Preset {
	var out Preset
	for _, p := range presets {
		out.Rules = append(out.Rules, p.Rules...)
	}
	return out
}

// Render joins the rules into one system prompt.
func (p Preset) Render() string {
	return strings.Join(p.Rules, " ")
}

// PresetCrossPlatform asks for scripts that run on every desktop OS.
func PresetCrossPlatform() Preset {
	return Preset{Rules: []string{
		"The scripts should be designed to work on macOS, Windows, and Linux.",
	}}
}

// PresetCodeBlocksOnly restricts output to path-headed code blocks.
func PresetCodeBlocksOnly(example string) Preset {
	return Preset{Rules: []string{
		"Always generate Python code in English.",
		"Every code block represents one single file.",
		"Every code block must start with a comment indicating the path of the file, e.g., '# " + example + "'.",
		"Output must be strictly limited to code blocks.",
		"Do not return text outside of code blocks or additional explanations.",
	}}
}

// PresetPageSourceOnError makes browser automation scripts dump the page
// on failure so the structure can be summarized for the next attempt.
func PresetPageSourceOnError() Preset {
	return Preset{Rules: []string{
		"When automating a browser, after every exception write the page content for debugging:",
		"sys.stdout.write(f\"page source:\\n```html\\n{driver.page_source}\\n```\\n\").",
		"Do not use `print`, use `sys.stdout.write()` or `sys.stderr.write()` instead.",
	}}
}
