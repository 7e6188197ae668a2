package webhook

import (
	"encoding/json"
	"strings"

	"github.com/taskmirror/taskmirror/internal/models"
)

type notionTextFragment struct {
	PlainText string `json:"plain_text"`
}

type notionProperty struct {
	Type     string               `json:"type"`
	Title    []notionTextFragment `json:"title"`
	RichText []notionTextFragment `json:"rich_text"`
	Select   *struct {
		Name string `json:"name"`
	} `json:"select"`
}

type notionPagePayload struct {
	Action string `json:"action"`
	Page   struct {
		ID         string                    `json:"id"`
		URL        string                    `json:"url"`
		Properties map[string]notionProperty `json:"properties"`
	} `json:"page"`
}

func notionPlainText(fragments []notionTextFragment) string {
	var b strings.Builder
	for _, f := range fragments {
		b.WriteString(f.PlainText)
	}
	return b.String()
}

// notionPropertyText reads a property by name, trying each of the given keys
// case-insensitively. Missing or differently typed properties yield "".
func notionPropertyText(props map[string]notionProperty, keys ...string) string {
	for name, prop := range props {
		for _, key := range keys {
			if !strings.EqualFold(name, key) {
				continue
			}
			switch prop.Type {
			case "title":
				return notionPlainText(prop.Title)
			case "rich_text":
				return notionPlainText(prop.RichText)
			case "select":
				if prop.Select != nil {
					return prop.Select.Name
				}
			}
		}
	}
	return ""
}

// NormalizeNotionPage maps a page created/updated delivery to one task event.
// Pages are user-shaped data; every property is read defensively and absent
// ones fall back to defaults rather than failing the delivery.
func NormalizeNotionPage(body []byte) ([]ExternalEvent, error) {
	var payload notionPagePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ValidationError{Provider: models.ProviderNotion, Reason: "malformed page payload"}
	}
	if payload.Page.ID == "" {
		return nil, &ValidationError{Provider: models.ProviderNotion, Reason: "page payload missing page id"}
	}

	action := payload.Action
	if action != ActionCreated {
		action = ActionUpdated
	}

	title := strings.TrimSpace(notionPropertyText(payload.Page.Properties, "Name", "Title"))
	if title == "" {
		title = "Untitled Task"
	}
	description := notionPropertyText(payload.Page.Properties, "Description")
	status := MapStatus(notionPropertyText(payload.Page.Properties, "Status"))
	priority := MapPriority(notionPropertyText(payload.Page.Properties, "Priority"))

	event := ExternalEvent{
		Provider:    models.ProviderNotion,
		EventType:   "page",
		Action:      action,
		Entity:      EntityTask,
		RemoteID:    payload.Page.ID,
		Title:       stringRef(title),
		Description: stringRef(description),
		Status:      stringRef(status),
		Priority:    stringRef(priority),
	}
	if payload.Page.URL != "" {
		event.ExternalURL = stringRef(payload.Page.URL)
	}
	return []ExternalEvent{event}, nil
}
