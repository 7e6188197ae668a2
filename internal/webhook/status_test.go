package webhook

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskmirror/taskmirror/internal/models"
)

func TestMapStatus(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"Done", models.TaskStatusDone},
		{"Completed", models.TaskStatusDone},
		{"closed", models.TaskStatusDone},
		{"In Progress", models.TaskStatusInProgress},
		{"doing", models.TaskStatusInProgress},
		{"Started yesterday", models.TaskStatusInProgress},
		{"In Review", models.TaskStatusReview},
		{"Needs review", models.TaskStatusReview},
		{"Backlog", models.TaskStatusTodo},
		{"", models.TaskStatusTodo},
		{"  DONE  ", models.TaskStatusDone},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, MapStatus(tt.remote), "remote=%q", tt.remote)
	}
}

func TestMapPriority(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"Urgent", models.TaskPriorityHigh},
		{"high", models.TaskPriorityHigh},
		{"Critical bug", models.TaskPriorityHigh},
		{"P0", models.TaskPriorityHigh},
		{"p1", models.TaskPriorityHigh},
		{"Low", models.TaskPriorityLow},
		{"minor", models.TaskPriorityLow},
		{"p3", models.TaskPriorityLow},
		{"Medium", models.TaskPriorityMedium},
		{"whatever", models.TaskPriorityMedium},
		{"", models.TaskPriorityMedium},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, MapPriority(tt.remote), "remote=%q", tt.remote)
	}
}

func TestReactionStatus(t *testing.T) {
	status, ok := ReactionStatus("white_check_mark")
	require.True(t, ok)
	require.Equal(t, models.TaskStatusDone, status)

	status, ok = ReactionStatus("heavy_check_mark")
	require.True(t, ok)
	require.Equal(t, models.TaskStatusDone, status)

	status, ok = ReactionStatus("eyes")
	require.True(t, ok)
	require.Equal(t, models.TaskStatusReview, status)

	status, ok = ReactionStatus("rocket")
	require.True(t, ok)
	require.Equal(t, models.TaskStatusInProgress, status)

	// Unmapped emoji are ignored, not coerced to a default.
	_, ok = ReactionStatus("thumbsup")
	require.False(t, ok)
	_, ok = ReactionStatus("")
	require.False(t, ok)
}
