package planner

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/deepnoodle-ai/undertow"
)

// stepsFromPlan converts the extracted plan object into validated steps.
// Any invalid step fails the whole plan: partial workflows are never built.
func (p *Planner) stepsFromPlan(plan map[string]any) ([]*undertow.Step, error) {
	raw, ok := plan["steps"].([]any)
	if !ok || len(raw) == 0 {
		return nil, undertow.NewInvalidPlanError("plan contains no steps")
	}
	if len(raw) > p.maxSteps {
		return nil, undertow.NewInvalidPlanError("plan has %d steps, maximum is %d", len(raw), p.maxSteps)
	}

	steps := make([]*undertow.Step, 0, len(raw))
	for i, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, undertow.NewInvalidPlanError("step %d is not an object", i+1)
		}
		step, err := p.stepFromEntry(i+1, entry)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	inferOutputFormats(steps)
	return steps, nil
}

func (p *Planner) stepFromEntry(number int, entry map[string]any) (*undertow.Step, error) {
	stepType := undertow.StepType(stringField(entry, "type", "step_type"))
	if !stepType.Valid() {
		return nil, undertow.NewInvalidPlanError("step %d has unknown type %q", number, stringField(entry, "type", "step_type"))
	}

	step := &undertow.Step{
		StepNumber:  number,
		Type:        stepType,
		Description: stringField(entry, "description"),
		Status:      undertow.StepStatusPending,
	}

	if value, ok := entry["requires_confirmation"].(bool); ok {
		step.RequiresConfirmation = value
	}

	if params, ok := mapField(entry, "parameters", "tool_parameters"); ok {
		normalized, err := normalizeParameters(number, params)
		if err != nil {
			return nil, err
		}
		step.ToolParameters = normalized
	}

	if stepType == undertow.StepTypeToolCall {
		step.ToolName = stringField(entry, "tool", "tool_name")
		if step.ToolName == "" {
			return nil, undertow.NewInvalidPlanError("step %d is a tool call without a tool name", number)
		}
		tool, registered := p.tools.Get(step.ToolName)
		if !registered {
			return nil, undertow.NewInvalidPlanError("step %d uses unknown tool %q", number, step.ToolName)
		}
		// Irreversible tools always pause for sign-off, whatever the plan says.
		if _, deferred := tool.(undertow.DeferredTool); deferred {
			step.RequiresConfirmation = true
		}
	}

	if format, ok := outputFormatField(entry); ok {
		step.ExpectedOutput = format
	}
	return step, nil
}

func stringField(entry map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := entry[key].(string); ok {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func mapField(entry map[string]any, keys ...string) (map[string]any, bool) {
	for _, key := range keys {
		if value, ok := entry[key].(map[string]any); ok {
			return value, true
		}
	}
	return nil, false
}

func outputFormatField(entry map[string]any) (*undertow.OutputFormat, bool) {
	value, ok := mapField(entry, "expected_output_format", "expected_output")
	if !ok {
		return nil, false
	}
	fieldsValue, ok := value["fields"].(map[string]any)
	if !ok {
		// Tolerate a flat {field: type} object without the fields wrapper.
		fieldsValue = value
	}
	fields := map[string]string{}
	for name, hint := range fieldsValue {
		if s, ok := hint.(string); ok {
			fields[name] = s
		} else {
			fields[name] = "string"
		}
	}
	if len(fields) == 0 {
		return nil, false
	}
	return &undertow.OutputFormat{Fields: fields}, true
}

var stepRefRe = regexp.MustCompile(`\{\{\s*step_(\d+)\.result\.([A-Za-z0-9_]+)`)

// inferOutputFormats gives every analysis and decision step a deterministic,
// addressable result shape. If the plan omitted a format, the fields are
// inferred from later steps' placeholder references back to this step, or
// default to a single generic "result" field.
func inferOutputFormats(steps []*undertow.Step) {
	referenced := map[int]map[string]string{}
	for _, step := range steps {
		for _, value := range step.ToolParameters {
			collectStepRefs(value, step.StepNumber, referenced)
		}
		collectStepRefs(step.Description, step.StepNumber, referenced)
	}
	for _, step := range steps {
		if step.Type != undertow.StepTypeAnalysis && step.Type != undertow.StepTypeDecision {
			continue
		}
		if step.ExpectedOutput != nil && len(step.ExpectedOutput.Fields) > 0 {
			continue
		}
		if fields, ok := referenced[step.StepNumber]; ok && len(fields) > 0 {
			step.ExpectedOutput = &undertow.OutputFormat{Fields: fields}
			continue
		}
		step.ExpectedOutput = &undertow.OutputFormat{
			Fields: map[string]string{"result": "string"},
		}
	}
}

// collectStepRefs records {{step_N.result.X}} references found in value.
// Only references from later steps count: a step cannot depend on itself or
// on steps after it.
func collectStepRefs(value any, fromStep int, into map[int]map[string]string) {
	switch v := value.(type) {
	case string:
		for _, match := range stepRefRe.FindAllStringSubmatch(v, -1) {
			target, err := strconv.Atoi(match[1])
			if err != nil || target >= fromStep {
				continue
			}
			if into[target] == nil {
				into[target] = map[string]string{}
			}
			into[target][match[2]] = "string"
		}
	case map[string]any:
		for _, item := range v {
			collectStepRefs(item, fromStep, into)
		}
	case []any:
		for _, item := range v {
			collectStepRefs(item, fromStep, into)
		}
	}
}

// normalizeParameters coerces ambiguous parameter shapes into canonical
// forms. Currently that means attachments, which providers emit variously as
// a scalar, a JSON-encoded string, or a list.
func normalizeParameters(stepNumber int, params map[string]any) (map[string]any, error) {
	normalized := make(map[string]any, len(params))
	for key, value := range params {
		if key == "attachments" {
			attachments, err := normalizeAttachments(value)
			if err != nil {
				return nil, undertow.NewInvalidPlanError("step %d has invalid attachments: %s", stepNumber, err.Error())
			}
			if len(attachments) > 0 {
				normalized[key] = attachments
			}
			continue
		}
		normalized[key] = value
	}
	return normalized, nil
}

func normalizeAttachments(value any) ([]any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil, nil
		}
		// A JSON-encoded list arrives as a string often enough to deserve a
		// decode attempt.
		if strings.HasPrefix(trimmed, "[") {
			var items []any
			if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
				return normalizeAttachments(items)
			}
		}
		return []any{attachmentValue(trimmed)}, nil
	case map[string]any:
		return []any{normalizeAttachmentMap(v)}, nil
	case []any:
		var out []any
		for _, item := range v {
			switch entry := item.(type) {
			case string:
				out = append(out, attachmentValue(entry))
			case map[string]any:
				out = append(out, normalizeAttachmentMap(entry))
			default:
				return nil, errInvalidAttachment
			}
		}
		return out, nil
	default:
		return nil, errInvalidAttachment
	}
}

var errInvalidAttachment = errors.New("attachment must be a string, object, or list")

func attachmentValue(s string) map[string]any {
	kind := undertow.AttachmentTypeReference
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		kind = undertow.AttachmentTypeURL
	}
	return map[string]any{"type": kind, "value": s}
}

func normalizeAttachmentMap(m map[string]any) map[string]any {
	value, _ := m["value"].(string)
	if value == "" {
		if alt, ok := m["url"].(string); ok {
			value = alt
		} else if alt, ok := m["id"].(string); ok {
			value = alt
		}
	}
	kind, _ := m["type"].(string)
	if kind == "" {
		return attachmentValue(value)
	}
	return map[string]any{"type": kind, "value": value}
}
