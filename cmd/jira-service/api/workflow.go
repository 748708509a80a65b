package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/providentiaww/dashboard-tracker/internal/models"
)

// StatusMap maps the dashboard's status vocabulary (keys, matched without
// regard to case) onto target status names of the remote workflow. Names
// without an entry are used as given.
type StatusMap map[string]string

// DefaultStatusMap matches the workflow of the dashboard's own Jira project
var DefaultStatusMap = StatusMap{
	"todo":        "To Do",
	"to do":       "To Do",
	"in progress": "Discovery",
	"in-progress": "Discovery",
	"in_progress": "Discovery",
	"done":        "Done",
}

// Normalize returns the remote status name for a logical status
func (m StatusMap) Normalize(status string) string {
	status = strings.TrimSpace(status)
	if target, ok := lookupFold(m, status); ok {
		return target
	}
	return status
}

// UpdateIssueInput lists the changes to apply to an issue. Nil fields are
// left untouched.
type UpdateIssueInput struct {
	Summary     *string `json:"summary,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	// Assignee is an email address; an empty string unassigns and any
	// other non-email value is dropped.
	Assignee *string `json:"assignee,omitempty"`
	// Status is a logical status name resolved through the StatusMap
	Status *string `json:"status,omitempty"`
}

// ListTransitions returns the transitions currently legal for an issue
func (c *Client) ListTransitions(ctx context.Context, issueKey string) ([]models.Transition, error) {
	var resp transitionsResponse
	if err := c.doJSON(ctx, http.MethodGet, issuePath(issueKey)+"/transitions", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get transitions for %s: %w", issueKey, err)
	}

	transitions := make([]models.Transition, 0, len(resp.Transitions))
	for _, t := range resp.Transitions {
		transitions = append(transitions, toTransition(t))
	}
	return transitions, nil
}

// UpdateIssue applies field changes with one edit call and a status change
// with a separate transition, then returns the issue as it now is. Jira
// rejects edits and transitions combined in a single request.
func (c *Client) UpdateIssue(ctx context.Context, issueKey string, in UpdateIssueInput) (*models.Issue, error) {
	if fields := updateFields(in); len(fields) > 0 {
		payload := map[string]interface{}{"fields": fields}
		if err := c.doJSON(ctx, http.MethodPut, issuePath(issueKey), payload, nil); err != nil {
			return nil, fmt.Errorf("failed to update issue %s: %w", issueKey, err)
		}
	}

	if in.Status != nil && strings.TrimSpace(*in.Status) != "" {
		if err := c.transitionTo(ctx, issueKey, *in.Status); err != nil {
			return nil, err
		}
	}

	return c.GetIssue(ctx, issueKey)
}

// TransitionIssue moves an issue to a logical status
func (c *Client) TransitionIssue(ctx context.Context, issueKey, status string) (*models.Issue, error) {
	return c.UpdateIssue(ctx, issueKey, UpdateIssueInput{Status: &status})
}

func updateFields(in UpdateIssueInput) map[string]interface{} {
	fields := map[string]interface{}{}
	if in.Summary != nil {
		fields["summary"] = strings.TrimSpace(*in.Summary)
	}
	if in.Description != nil {
		fields["description"] = PlainTextDocument(*in.Description)
	}
	if in.Priority != nil && strings.TrimSpace(*in.Priority) != "" {
		fields["priority"] = map[string]string{"name": strings.TrimSpace(*in.Priority)}
	}
	if in.Assignee != nil {
		switch assignee := strings.TrimSpace(*in.Assignee); {
		case assignee == "":
			fields["assignee"] = nil
		case isEmail(assignee):
			fields["assignee"] = map[string]string{"emailAddress": assignee}
		}
	}
	return fields
}

// transitionTo discovers the transition leading to the desired status and
// executes it. The transition list is read immediately before use; a
// concurrent workflow change surfaces as a WorkflowError.
func (c *Client) transitionTo(ctx context.Context, issueKey, desired string) error {
	transitions, err := c.ListTransitions(ctx, issueKey)
	if err != nil {
		return err
	}

	target := c.statusMap.Normalize(desired)
	transition, ok := findTransition(transitions, target)
	if !ok {
		available := targetNames(transitions)
		c.log.Error("no transition reaches requested status",
			zap.String("issue_key", issueKey),
			zap.String("desired_status", desired),
			zap.String("target_status", target),
			zap.Strings("available_statuses", available),
		)
		return &WorkflowError{
			IssueKey:  issueKey,
			Desired:   desired,
			Target:    target,
			Available: available,
		}
	}

	payload := map[string]interface{}{
		"transition": map[string]string{
			"id": transition.ID,
		},
	}
	if err := c.doJSON(ctx, http.MethodPost, issuePath(issueKey)+"/transitions", payload, nil); err != nil {
		return fmt.Errorf("failed to transition issue %s: %w", issueKey, err)
	}

	c.log.Info("issue transitioned",
		zap.String("issue_key", issueKey),
		zap.String("transition_id", transition.ID),
		zap.String("target_status", transition.To.Name),
	)
	return nil
}

// findTransition returns the first transition whose target status is named
// target.
func findTransition(transitions []models.Transition, target string) (models.Transition, bool) {
	for _, t := range transitions {
		if strings.EqualFold(t.To.Name, target) {
			return t, true
		}
	}
	return models.Transition{}, false
}

func targetNames(transitions []models.Transition) []string {
	names := make([]string, 0, len(transitions))
	for _, t := range transitions {
		names = append(names, t.To.Name)
	}
	return names
}
