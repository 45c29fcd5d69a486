package toolkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/undertow"
)

var _ undertow.DeferredTool = &EmailTool{}

// EmailTool sends email through a Mailer. Sending is irreversible, so the
// tool implements DeferredTool: Prepare validates and stages the message and
// Call delivers it only after the workflow's confirmation gate approves.
type EmailTool struct {
	mailer undertow.Mailer
}

func NewEmailTool(mailer undertow.Mailer) *EmailTool {
	return &EmailTool{mailer: mailer}
}

func (t *EmailTool) Definition() *undertow.ToolDefinition {
	return &undertow.ToolDefinition{
		Name:        "send_email",
		Description: "Sends an email. Always requires user confirmation before sending.",
		Parameters: map[string]string{
			"to":          "Recipient address, or a list of addresses",
			"subject":     "Subject line",
			"body":        "Plain text message body",
			"attachments": "Optional list of {type, value} attachments, where type is 'url' or 'reference'",
		},
	}
}

// Prepare validates the parameters and returns the exact payload that Call
// will deliver once approved.
func (t *EmailTool) Prepare(ctx context.Context, params map[string]any) (map[string]any, error) {
	message, err := messageFromParams(params)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"to":      message.To,
		"subject": message.Subject,
		"body":    message.Body,
	}
	if len(message.Attachments) > 0 {
		attachments := make([]any, 0, len(message.Attachments))
		for _, a := range message.Attachments {
			attachments = append(attachments, map[string]any{
				"type":  a.Type,
				"value": a.Value,
			})
		}
		payload["attachments"] = attachments
	}
	return payload, nil
}

func (t *EmailTool) Call(ctx context.Context, params map[string]any) (any, error) {
	if t.mailer == nil {
		return nil, fmt.Errorf("no mailer configured")
	}
	message, err := messageFromParams(params)
	if err != nil {
		return nil, err
	}
	if err := t.mailer.Send(ctx, message); err != nil {
		return nil, fmt.Errorf("error sending email: %w", err)
	}
	return map[string]any{"sent": true, "to": message.To}, nil
}

func messageFromParams(params map[string]any) (*undertow.EmailMessage, error) {
	recipients, err := recipientList(params["to"])
	if err != nil {
		return nil, err
	}
	subject, _ := params["subject"].(string)
	body, _ := params["body"].(string)
	if subject == "" {
		return nil, fmt.Errorf("subject parameter is required")
	}
	message := &undertow.EmailMessage{
		To:      recipients,
		Subject: subject,
		Body:    body,
	}
	if raw, ok := params["attachments"]; ok {
		attachments, err := attachmentList(raw)
		if err != nil {
			return nil, err
		}
		message.Attachments = attachments
	}
	return message, nil
}

func recipientList(value any) ([]string, error) {
	switch v := value.(type) {
	case string:
		if !strings.Contains(v, "@") {
			return nil, fmt.Errorf("invalid recipient address %q", v)
		}
		return []string{v}, nil
	case []string:
		if len(v) == 0 {
			return nil, fmt.Errorf("at least one recipient is required")
		}
		return v, nil
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("at least one recipient is required")
		}
		recipients := make([]string, 0, len(v))
		for _, item := range v {
			address, ok := item.(string)
			if !ok || !strings.Contains(address, "@") {
				return nil, fmt.Errorf("invalid recipient address %v", item)
			}
			recipients = append(recipients, address)
		}
		return recipients, nil
	case nil:
		return nil, fmt.Errorf("to parameter is required")
	default:
		return nil, fmt.Errorf("to parameter must be a string or list of strings")
	}
}

func attachmentList(value any) ([]undertow.Attachment, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("attachments must be a list")
	}
	var attachments []undertow.Attachment
	for _, item := range items {
		switch v := item.(type) {
		case string:
			attachments = append(attachments, attachmentFromValue(v))
		case map[string]any:
			raw, _ := v["value"].(string)
			if raw == "" {
				raw, _ = v["url"].(string)
			}
			if raw == "" {
				return nil, fmt.Errorf("attachment is missing a value")
			}
			kind, _ := v["type"].(string)
			if kind == "" {
				attachments = append(attachments, attachmentFromValue(raw))
			} else {
				attachments = append(attachments, undertow.Attachment{Type: kind, Value: raw})
			}
		default:
			return nil, fmt.Errorf("invalid attachment %v", item)
		}
	}
	return attachments, nil
}

func attachmentFromValue(value string) undertow.Attachment {
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return undertow.Attachment{Type: undertow.AttachmentTypeURL, Value: value}
	}
	return undertow.Attachment{Type: undertow.AttachmentTypeReference, Value: value}
}
