package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/taskmirror/taskmirror/internal/models"
)

type githubIssuePayload struct {
	Action string `json:"action"`
	Issue  struct {
		Number  int64  `json:"number"`
		Title   string `json:"title"`
		Body    string `json:"body"`
		HTMLURL string `json:"html_url"`
	} `json:"issue"`
}

type githubPullRequestPayload struct {
	Action      string `json:"action"`
	PullRequest struct {
		Number  int64  `json:"number"`
		Title   string `json:"title"`
		Body    string `json:"body"`
		HTMLURL string `json:"html_url"`
		Merged  bool   `json:"merged"`
	} `json:"pull_request"`
}

type githubPushPayload struct {
	Ref        string `json:"ref"`
	Repository struct {
		DefaultBranch string `json:"default_branch"`
	} `json:"repository"`
	Commits []struct {
		Message string `json:"message"`
	} `json:"commits"`
}

// NormalizeGitHubIssue maps an issue opened/closed/reopened delivery to one
// task event. Titles are tagged with the provider so mirrored tasks are
// distinguishable on a board; the remote URL is appended to the description.
func NormalizeGitHubIssue(body []byte) ([]ExternalEvent, error) {
	var payload githubIssuePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ValidationError{Provider: models.ProviderGitHub, Reason: "malformed issue payload"}
	}
	if payload.Issue.Number == 0 {
		return nil, &ValidationError{Provider: models.ProviderGitHub, Reason: "issue payload missing issue number"}
	}

	event := ExternalEvent{
		Provider:    models.ProviderGitHub,
		EventType:   "issues",
		Action:      payload.Action,
		Entity:      EntityTask,
		RemoteID:    strconv.FormatInt(payload.Issue.Number, 10),
		IssueNumber: int64Ref(payload.Issue.Number),
	}

	switch payload.Action {
	case ActionOpened:
		title := fmt.Sprintf("[GitHub] %s", payload.Issue.Title)
		description := strings.TrimSpace(payload.Issue.Body + "\n\n" + payload.Issue.HTMLURL)
		event.Title = stringRef(title)
		event.Description = stringRef(description)
		event.Status = stringRef(models.TaskStatusTodo)
		event.ExternalURL = stringRef(payload.Issue.HTMLURL)
	case ActionClosed:
		event.Status = stringRef(models.TaskStatusDone)
	case ActionReopened:
		event.Status = stringRef(models.TaskStatusTodo)
	default:
		return nil, nil
	}

	return []ExternalEvent{event}, nil
}

// NormalizeGitHubPullRequest extracts closing-keyword issue references from
// the PR title and body and emits one status instruction per referenced
// issue. A merged close resolves the issues; an open or reopen moves them to
// review with the PR linked. A close without a merge carries no instruction.
func NormalizeGitHubPullRequest(body []byte) ([]ExternalEvent, error) {
	var payload githubPullRequestPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ValidationError{Provider: models.ProviderGitHub, Reason: "malformed pull_request payload"}
	}

	refs := ParseIssueRefs(payload.PullRequest.Title + "\n" + payload.PullRequest.Body)
	if len(refs) == 0 {
		return nil, nil
	}

	var action, status string
	switch payload.Action {
	case ActionClosed:
		if !payload.PullRequest.Merged {
			return nil, nil
		}
		action = ActionResolved
		status = models.TaskStatusDone
	case ActionOpened, ActionReopened:
		action = ActionUpdated
		status = models.TaskStatusReview
	default:
		return nil, nil
	}

	events := make([]ExternalEvent, 0, len(refs))
	for _, ref := range refs {
		events = append(events, ExternalEvent{
			Provider:    models.ProviderGitHub,
			EventType:   "pull_request",
			Action:      action,
			Entity:      EntityTask,
			RemoteID:    strconv.FormatInt(ref, 10),
			IssueNumber: int64Ref(ref),
			Status:      stringRef(status),
			RemotePRURL: stringRef(payload.PullRequest.HTMLURL),
		})
	}
	return events, nil
}

// NormalizeGitHubPush resolves issues referenced by closing keywords in
// commit messages. Pushes to branches other than the repository default carry
// no instructions; work is not considered landed until it reaches the
// default branch.
func NormalizeGitHubPush(body []byte) ([]ExternalEvent, error) {
	var payload githubPushPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ValidationError{Provider: models.ProviderGitHub, Reason: "malformed push payload"}
	}

	defaultBranch := payload.Repository.DefaultBranch
	if defaultBranch == "" {
		defaultBranch = "main"
	}
	if payload.Ref != "refs/heads/"+defaultBranch {
		return nil, nil
	}

	var events []ExternalEvent
	seen := make(map[int64]bool)
	for _, commit := range payload.Commits {
		for _, ref := range ParseIssueRefs(commit.Message) {
			if seen[ref] {
				continue
			}
			seen[ref] = true
			events = append(events, ExternalEvent{
				Provider:    models.ProviderGitHub,
				EventType:   "push",
				Action:      ActionResolved,
				Entity:      EntityTask,
				RemoteID:    strconv.FormatInt(ref, 10),
				IssueNumber: int64Ref(ref),
				Status:      stringRef(models.TaskStatusDone),
			})
		}
	}
	return events, nil
}
