package models

import "time"

// JiraRequest represents a request to the Jira service
type JiraRequest struct {
	Action      string         `json:"action"`       // list_issues, get_issue, create_issue, update_issue, ...
	WorkspaceID string         `json:"workspace_id"` // User's workspace label, empty for the default workspace
	UserID      string         `json:"user_id"`      // Dashboard user ID
	Params      map[string]any `json:"params"`       // Action-specific parameters
	RequestID   string         `json:"request_id"`   // Correlation ID
}

// JiraResponse represents a response from the Jira service
type JiraResponse struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	RequestID string     `json:"request_id"`
}

// ErrorInfo describes a failed request
type ErrorInfo struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	StatusCode int      `json:"status_code,omitempty"`
	Available  []string `json:"available,omitempty"`
}

// Error codes carried in ErrorInfo.Code
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeAuthFailed     = "AUTH_FAILED"
	ErrCodeAPIError       = "API_ERROR"
	ErrCodeWorkflowError  = "WORKFLOW_ERROR"
)

// SuccessResponse wraps data in a successful response envelope
func SuccessResponse(data any, requestID string) JiraResponse {
	return JiraResponse{
		Success:   true,
		Data:      data,
		RequestID: requestID,
	}
}

// ErrorResponse builds a failed response envelope
func ErrorResponse(code, message, requestID string) JiraResponse {
	return JiraResponse{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
		RequestID: requestID,
	}
}

// Issue is the dashboard's view of one remote issue
type Issue struct {
	ID          string      `json:"id"`
	Key         string      `json:"key"`
	Summary     string      `json:"summary"`
	Description string      `json:"description"`
	Status      IssueStatus `json:"status"`
	Priority    string      `json:"priority"`
	Assignee    *Person     `json:"assignee,omitempty"`
	Reporter    Person      `json:"reporter"`
	Created     time.Time   `json:"created"`
	Updated     time.Time   `json:"updated"`
	DueDate     string      `json:"dueDate,omitempty"`
	Project     ProjectRef  `json:"project"`
	IssueType   string      `json:"issueType"`
}

// IssueStatus pairs a workflow status name with its coarse category
// ("To Do", "In Progress", "Done").
type IssueStatus struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Person is a display name plus contact address
type Person struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
}

// ProjectRef references the project that owns an issue
type ProjectRef struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Project is a named workspace grouping issues
type Project struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Lead        string `json:"lead"`
	ProjectType string `json:"projectType"`
}

// User represents a Jira user
type User struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	Active      bool   `json:"active"`
}

// Priority represents a Jira priority
type Priority struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// IssueType represents an issue type
type IssueType struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Subtask     bool   `json:"subtask"`
}

// Transition is a legal status change for one issue at one point in time.
// IDs are only meaningful for the issue they were fetched for.
type Transition struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	To   IssueStatus `json:"to"`
}
