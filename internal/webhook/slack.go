package webhook

import (
	"encoding/json"

	"github.com/taskmirror/taskmirror/internal/models"
)

type slackEventPayload struct {
	Type   string `json:"type"`
	TeamID string `json:"team_id"`
	Event  struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		TS       string `json:"ts"`
		Channel  string `json:"channel"`
		BotID    string `json:"bot_id"`
		Reaction string `json:"reaction"`
		Item     struct {
			Type    string `json:"type"`
			Channel string `json:"channel"`
			TS      string `json:"ts"`
		} `json:"item"`
	} `json:"event"`
}

// NormalizeSlackMessage turns a `!task` command message into a task creation
// event. Messages without the command, and messages posted by bots, carry no
// instruction.
func NormalizeSlackMessage(body []byte) ([]ExternalEvent, error) {
	var payload slackEventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ValidationError{Provider: models.ProviderSlack, Reason: "malformed event payload"}
	}
	if payload.Event.BotID != "" {
		return nil, nil
	}

	cmd, ok := ParseTaskCommand(payload.Event.Text)
	if !ok {
		return nil, nil
	}
	if payload.Event.TS == "" {
		return nil, &ValidationError{Provider: models.ProviderSlack, Reason: "message payload missing ts"}
	}

	event := ExternalEvent{
		Provider:    models.ProviderSlack,
		EventType:   "event_callback",
		Action:      ActionCommand,
		Entity:      EntityTask,
		RemoteID:    payload.Event.TS,
		Title:       stringRef(cmd.Title),
		Description: stringRef(cmd.Description),
		Status:      stringRef(models.TaskStatusTodo),
		ProjectHint: cmd.Project,
	}
	return []ExternalEvent{event}, nil
}

// NormalizeSlackReaction maps a reaction_added event to a status transition
// on the task mirroring the reacted-to message. Emoji outside the fixed
// vocabulary carry no instruction.
func NormalizeSlackReaction(body []byte) ([]ExternalEvent, error) {
	var payload slackEventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ValidationError{Provider: models.ProviderSlack, Reason: "malformed event payload"}
	}

	status, ok := ReactionStatus(payload.Event.Reaction)
	if !ok {
		return nil, nil
	}
	if payload.Event.Item.TS == "" {
		return nil, &ValidationError{Provider: models.ProviderSlack, Reason: "reaction payload missing item ts"}
	}

	event := ExternalEvent{
		Provider:  models.ProviderSlack,
		EventType: "event_callback",
		Action:    ActionReaction,
		Entity:    EntityTask,
		RemoteID:  payload.Event.Item.TS,
		Status:    stringRef(status),
	}
	return []ExternalEvent{event}, nil
}
