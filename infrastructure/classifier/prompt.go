package classifier

import (
	"strconv"
	"strings"
	"text/template"
)

// defaultFewShotPrompt is the prompt used when FewShotConfig.Prompt is
// empty. It is executed with a promptData value.
const defaultFewShotPrompt = `Classify the expression into exactly one of these intents: {{join .Intents ", "}}.

Examples:
{{range .Examples}}- {{quote .Text}} => {{.Intent}}
{{end}}
{{- if .EntityExamples}}
Entities to extract, with examples per intent:
{{range .EntityExamples}}- [{{.Intent}}] {{quote .Text}}:{{range .Entities}} {{.Role}} ({{.Type}}) = {{quote .Value}};{{end}}
{{end}}
{{- end}}
Expression: {{quote .Text}}

Answer with a JSON object of the form {"intent": "<intent>", "probability": <number between 0 and 1>, "entities": [{"role": "<role>", "type": "<type>", "value": "<exact substring of the expression>"}]}.`

// fewShotSystemPrompt is sent as the system message of every request.
const fewShotSystemPrompt = "You are a natural language understanding engine. You only answer with JSON."

// promptData is the data the prompt template is executed with.
type promptData struct {
	Intents        []string
	Examples       []Example
	EntityExamples []EntityExample
	Text           string
}

// promptFuncs returns the functions available to prompt templates.
func promptFuncs() template.FuncMap {
	return template.FuncMap{
		// join concatenates elements with sep between them.
		"join": func(elems []string, sep string) string {
			return strings.Join(elems, sep)
		},

		// quote renders s as a double-quoted Go string literal so newlines
		// and quotes in expressions cannot break the prompt layout.
		"quote": strconv.Quote,

		// truncate limits s to length bytes, adding "..." when cut.
		"truncate": func(s string, length int) string {
			if length <= 0 {
				return ""
			}
			if len(s) <= length {
				return s
			}
			if length > 3 {
				return s[:length-3] + "..."
			}
			return s[:length]
		},
	}
}

// extractJSON returns the first JSON object in response, looking inside
// markdown code fences first. It returns "" when there is none.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if start := strings.Index(response, "```"); start != -1 {
		start += 3
		if nl := strings.Index(response[start:], "\n"); nl != -1 {
			start += nl + 1
		}
		if end := strings.Index(response[start:], "```"); end != -1 {
			if candidate := strings.TrimSpace(response[start : start+end]); strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		c := response[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}
