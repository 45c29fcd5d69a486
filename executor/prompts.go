package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/deepnoodle-ai/undertow"
	"github.com/deepnoodle-ai/undertow/extract"
	"github.com/deepnoodle-ai/undertow/llm"
)

const analysisSystemPrompt = `You are the reasoning engine inside a workflow executor. You are given the results of earlier workflow steps and one task to perform on them. Respond with a single JSON object and nothing else. No prose, no markdown fences.`

// complete runs an analysis or decision step through the completion provider
// and parses the structured result.
func (e *Executor) complete(ctx context.Context, workflow *undertow.Workflow, step *undertow.Step, description string, results map[string]any) (any, error) {
	prompt, err := analysisPrompt(workflow, step, description, results)
	if err != nil {
		return nil, err
	}
	opts := []llm.Option{
		llm.WithSystemPrompt(analysisSystemPrompt),
		llm.WithUserTextMessage(prompt),
	}
	if e.model != "" {
		opts = append(opts, llm.WithModel(e.model))
	}
	response, err := e.provider.Generate(ctx, opts...)
	if err != nil {
		return nil, err
	}
	text := response.Text()
	parsed, err := extract.ParseObject(text)
	if err != nil {
		// A provider that answers in prose still produced an answer; keep it
		// under a predictable key so later steps can reference it.
		return map[string]any{"result": text}, nil
	}
	return parsed, nil
}

func analysisPrompt(workflow *undertow.Workflow, step *undertow.Step, description string, results map[string]any) (string, error) {
	var sb strings.Builder
	sb.WriteString("User goal: ")
	sb.WriteString(workflow.UserIntent)
	sb.WriteString("\n\n")

	if len(results) > 0 {
		sb.WriteString("Results from earlier steps:\n")
		keys := make([]string, 0, len(results))
		for key := range results {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			data, err := json.Marshal(results[key])
			if err != nil {
				return "", fmt.Errorf("error serializing %s result: %w", key, err)
			}
			fmt.Fprintf(&sb, "%s: %s\n", key, data)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Task: ")
	sb.WriteString(description)
	sb.WriteString("\n\n")

	if step.ExpectedOutput != nil && len(step.ExpectedOutput.Fields) > 0 {
		sb.WriteString("Respond with a JSON object containing exactly these fields:\n")
		fields := make([]string, 0, len(step.ExpectedOutput.Fields))
		for field := range step.ExpectedOutput.Fields {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			fmt.Fprintf(&sb, "- %s (%s)\n", field, step.ExpectedOutput.Fields[field])
		}
	} else {
		sb.WriteString("Respond with a JSON object.\n")
	}
	return sb.String(), nil
}
