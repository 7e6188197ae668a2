package webhook

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/taskmirror/taskmirror/internal/models"
)

// issueRefPattern matches closing-keyword issue references such as
// "fixes #42" or "Closes #7".
var issueRefPattern = regexp.MustCompile(`(?i)\b(?:close[sd]?|fix(?:e[sd])?|resolve[sd]?)\s+#(\d+)`)

// taskCommandPattern matches the chat task command:
// "!task <project>: <title> | <description>".
var taskCommandPattern = regexp.MustCompile(`^!task\s+([^:]+):\s*(.+)$`)

// ParseIssueRefs extracts every issue number referenced with a closing
// keyword, in order of appearance, deduplicated.
func ParseIssueRefs(text string) []int64 {
	matches := issueRefPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := map[int64]struct{}{}
	refs := make([]int64, 0, len(matches))
	for _, match := range matches {
		number, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil || number <= 0 {
			continue
		}
		if _, ok := seen[number]; ok {
			continue
		}
		seen[number] = struct{}{}
		refs = append(refs, number)
	}

	return refs
}

// TaskCommand is the parsed form of a chat "!task" command.
type TaskCommand struct {
	Project     string
	Title       string
	Description string
}

// ParseTaskCommand parses "!task <project>: <title> | <description>". The
// description is optional. Returns false for any text that is not a task
// command so ordinary chat messages flow through as no-ops.
func ParseTaskCommand(text string) (TaskCommand, bool) {
	match := taskCommandPattern.FindStringSubmatch(strings.TrimSpace(text))
	if match == nil {
		return TaskCommand{}, false
	}

	command := TaskCommand{Project: strings.TrimSpace(match[1])}

	title, description, _ := strings.Cut(match[2], "|")
	command.Title = strings.TrimSpace(title)
	command.Description = strings.TrimSpace(description)

	if command.Project == "" || command.Title == "" {
		return TaskCommand{}, false
	}

	return command, true
}

// MatchProjectName fuzzy-matches a requested project name against candidate
// names and returns the index of the best match, or -1. Exact (case
// insensitive) beats prefix, prefix beats substring, substring beats shared
// leading characters; ties keep the earliest candidate.
func MatchProjectName(want string, names []string) int {
	want = strings.ToLower(strings.TrimSpace(want))
	if want == "" {
		return -1
	}

	best := -1
	bestScore := 0

	for i, name := range names {
		candidate := strings.ToLower(strings.TrimSpace(name))
		if candidate == "" {
			continue
		}

		score := 0
		switch {
		case candidate == want:
			score = 400
		case strings.HasPrefix(candidate, want) || strings.HasPrefix(want, candidate):
			score = 300
		case strings.Contains(candidate, want) || strings.Contains(want, candidate):
			score = 200
		default:
			if overlap := commonPrefixLen(candidate, want); overlap >= 3 {
				score = 100 + overlap
			}
		}

		if score > bestScore {
			best = i
			bestScore = score
		}
	}

	return best
}

func commonPrefixLen(a, b string) int {
	max := len(a)
	if len(b) < max {
		max = len(b)
	}
	for i := 0; i < max; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return max
}

// calendarTypeKeywords classifies a calendar event title; first match in
// declaration order wins.
var calendarTypeKeywords = []struct {
	keyword   string
	eventType string
}{
	{"meeting", models.CalendarTypeMeeting},
	{"standup", models.CalendarTypeMeeting},
	{"sync", models.CalendarTypeMeeting},
	{"call", models.CalendarTypeMeeting},
	{"1:1", models.CalendarTypeMeeting},
	{"deadline", models.CalendarTypeDeadline},
	{"due", models.CalendarTypeDeadline},
	{"release", models.CalendarTypeDeadline},
	{"ship", models.CalendarTypeDeadline},
	{"reminder", models.CalendarTypeReminder},
	{"remind", models.CalendarTypeReminder},
	{"follow up", models.CalendarTypeReminder},
	{"follow-up", models.CalendarTypeReminder},
}

// ClassifyEventTitle derives a calendar event type from its title.
func ClassifyEventTitle(title string) string {
	normalized := strings.ToLower(title)
	for _, entry := range calendarTypeKeywords {
		if strings.Contains(normalized, entry.keyword) {
			return entry.eventType
		}
	}
	return models.CalendarTypeOther
}
