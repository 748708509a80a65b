package api

import (
	"errors"
	"fmt"
	"strings"
)

// TransportError is returned for every non-2xx response from Jira. It is
// never retried by the client.
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("jira %s %s failed with status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// WorkflowError means the requested status is not reachable from the issue's
// current state through any transition Jira offered.
type WorkflowError struct {
	IssueKey string
	// Desired is the status as the caller asked for it, Target the name it
	// was normalised to before matching.
	Desired   string
	Target    string
	Available []string
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("no transition to %q (requested %q) available for issue %s; reachable statuses: [%s]",
		e.Target, e.Desired, e.IssueKey, strings.Join(e.Available, ", "))
}

// IsTransportError reports whether err wraps a *TransportError
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsWorkflowError reports whether err wraps a *WorkflowError
func IsWorkflowError(err error) bool {
	var we *WorkflowError
	return errors.As(err, &we)
}

// StatusCode returns the HTTP status carried by a wrapped *TransportError, or 0.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}
