package planner

import (
	"bytes"
	"text/template"

	"github.com/deepnoodle-ai/undertow"
)

const plannerSystemPrompt = `You are a planning assistant. You decompose a user's goal into an ordered sequence of steps and respond with a single JSON object. Respond with JSON only, no prose.`

var promptTemplate = template.Must(template.New("plan").Parse(`Decompose the following goal into an ordered sequence of steps.

Goal: {{.Intent}}

Available tools:
{{- range .Tools}}
- {{.Name}}: {{.Description}}
{{- range $name, $hint := .Parameters}}
    - {{$name}}: {{$hint}}
{{- end}}
{{- end}}

Respond with a JSON object of this shape:

{
  "steps": [
    {
      "type": "tool_call | analysis | decision | notification",
      "description": "what this step does",
      "tool": "tool name, required for tool_call steps",
      "parameters": {"key": "value"},
      "requires_confirmation": false,
      "expected_output_format": {"fields": {"field_name": "string"}}
    }
  ]
}

Rules:
- Use only the tools listed above.
- Steps run strictly in order. A later step may reference an earlier step's
  output with the placeholder syntax {{"{{"}}step_N.result.field{{"}}"}}.
- analysis and decision steps should declare expected_output_format listing
  the fields they produce.
- Set requires_confirmation to true for any step that sends a message or
  takes an irreversible action.`))

type promptData struct {
	Intent string
	Tools  []*undertow.ToolDefinition
}

func (p *Planner) buildPrompt(intent string) (string, error) {
	var buffer bytes.Buffer
	err := promptTemplate.Execute(&buffer, promptData{
		Intent: intent,
		Tools:  p.tools.Definitions(),
	})
	if err != nil {
		return "", err
	}
	return buffer.String(), nil
}
