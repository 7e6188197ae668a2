package webhook

import (
	"strings"

	"github.com/taskmirror/taskmirror/internal/models"
)

// statusKeywords maps remote status vocabulary fragments to canonical
// statuses. Matching is case-insensitive substring matching, checked in
// declaration order; anything unmatched maps to To Do.
var statusKeywords = []struct {
	keyword string
	status  string
}{
	{"done", models.TaskStatusDone},
	{"complete", models.TaskStatusDone},
	{"closed", models.TaskStatusDone},
	{"progress", models.TaskStatusInProgress},
	{"doing", models.TaskStatusInProgress},
	{"started", models.TaskStatusInProgress},
	{"review", models.TaskStatusReview},
}

// priorityKeywords maps remote priority vocabulary fragments to canonical
// priorities; anything unmatched (including absence) maps to Medium.
var priorityKeywords = []struct {
	keyword  string
	priority string
}{
	{"urgent", models.TaskPriorityHigh},
	{"high", models.TaskPriorityHigh},
	{"critical", models.TaskPriorityHigh},
	{"p0", models.TaskPriorityHigh},
	{"p1", models.TaskPriorityHigh},
	{"low", models.TaskPriorityLow},
	{"minor", models.TaskPriorityLow},
	{"p3", models.TaskPriorityLow},
}

// MapStatus translates a provider status value to the canonical vocabulary.
// The mapping is one-directional; canonical statuses are never pushed back to
// the provider.
func MapStatus(remote string) string {
	normalized := strings.ToLower(strings.TrimSpace(remote))
	for _, entry := range statusKeywords {
		if strings.Contains(normalized, entry.keyword) {
			return entry.status
		}
	}
	return models.TaskStatusTodo
}

// MapPriority translates a provider priority value to the canonical
// vocabulary, defaulting to Medium.
func MapPriority(remote string) string {
	normalized := strings.ToLower(strings.TrimSpace(remote))
	for _, entry := range priorityKeywords {
		if strings.Contains(normalized, entry.keyword) {
			return entry.priority
		}
	}
	return models.TaskPriorityMedium
}

// reactionStatuses is the fixed emoji vocabulary for reaction-driven status
// transitions.
var reactionStatuses = map[string]string{
	"white_check_mark": models.TaskStatusDone,
	"heavy_check_mark": models.TaskStatusDone,
	"eyes":             models.TaskStatusReview,
	"mag":              models.TaskStatusReview,
	"rocket":           models.TaskStatusInProgress,
	"arrow_forward":    models.TaskStatusInProgress,
}

// ReactionStatus returns the canonical status for a reaction emoji. Unmapped
// emoji return false: the reaction is ignored, not treated as To Do.
func ReactionStatus(emoji string) (string, bool) {
	status, ok := reactionStatuses[strings.TrimSpace(emoji)]
	return status, ok
}
