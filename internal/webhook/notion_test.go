package webhook

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskmirror/taskmirror/internal/models"
)

func TestNormalizeNotionPageCreated(t *testing.T) {
	body := []byte(`{
		"type": "page",
		"action": "created",
		"database_id": "db-1",
		"page": {
			"id": "page-abc",
			"url": "https://notion.so/page-abc",
			"properties": {
				"Name": {"type": "title", "title": [{"plain_text": "Write launch "}, {"plain_text": "post"}]},
				"Description": {"type": "rich_text", "rich_text": [{"plain_text": "Draft for review"}]},
				"Status": {"type": "select", "select": {"name": "In Progress"}},
				"Priority": {"type": "select", "select": {"name": "High"}}
			}
		}
	}`)

	events, err := NormalizeNotionPage(body)
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	require.Equal(t, models.ProviderNotion, event.Provider)
	require.Equal(t, ActionCreated, event.Action)
	require.Equal(t, "page-abc", event.RemoteID)
	require.Equal(t, "notion-page-abc", event.ExternalID())
	require.Equal(t, "Write launch post", *event.Title)
	require.Equal(t, "Draft for review", *event.Description)
	require.Equal(t, models.TaskStatusInProgress, *event.Status)
	require.Equal(t, models.TaskPriorityHigh, *event.Priority)
	require.Equal(t, "https://notion.so/page-abc", *event.ExternalURL)
	require.True(t, event.CreationWorthy())
}

func TestNormalizeNotionPageDefaultsForAbsentProperties(t *testing.T) {
	body := []byte(`{
		"action": "created",
		"database_id": "db-1",
		"page": {"id": "page-bare", "properties": {}}
	}`)

	events, err := NormalizeNotionPage(body)
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	require.Equal(t, "Untitled Task", *event.Title)
	require.Equal(t, "", *event.Description)
	require.Equal(t, models.TaskStatusTodo, *event.Status)
	require.Equal(t, models.TaskPriorityMedium, *event.Priority)
	require.Nil(t, event.ExternalURL)
}

func TestNormalizeNotionPageToleratesMistypedProperties(t *testing.T) {
	// A select where a title is expected, and a select with no value.
	body := []byte(`{
		"action": "updated",
		"database_id": "db-1",
		"page": {
			"id": "page-odd",
			"properties": {
				"Name": {"type": "select", "select": {"name": "Oddly shaped"}},
				"Status": {"type": "select"}
			}
		}
	}`)

	events, err := NormalizeNotionPage(body)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "Oddly shaped", *events[0].Title)
	require.Equal(t, models.TaskStatusTodo, *events[0].Status)
	require.Equal(t, ActionUpdated, events[0].Action)
	require.False(t, events[0].CreationWorthy())
}

func TestNormalizeNotionPageRejectsBadPayloads(t *testing.T) {
	var validationErr *ValidationError

	_, err := NormalizeNotionPage([]byte(`not json`))
	require.ErrorAs(t, err, &validationErr)

	_, err = NormalizeNotionPage([]byte(`{"action":"created","page":{}}`))
	require.ErrorAs(t, err, &validationErr)
}
