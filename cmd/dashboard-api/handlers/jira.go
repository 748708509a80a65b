package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/providentiaww/dashboard-tracker/internal/models"
)

// JiraCaller sends one request to the Jira worker and returns its reply
type JiraCaller func(ctx context.Context, req models.JiraRequest) (*models.JiraResponse, error)

// JiraHandler maps dashboard HTTP routes onto Jira worker actions
type JiraHandler struct {
	call JiraCaller
}

// NewJiraHandler creates a new Jira handler
func NewJiraHandler(call JiraCaller) *JiraHandler {
	return &JiraHandler{call: call}
}

// CreateIssueRequest is the body of POST /api/jira/issues
type CreateIssueRequest struct {
	ProjectKey  string `json:"projectKey" binding:"required"`
	Summary     string `json:"summary" binding:"required"`
	Description string `json:"description"`
	IssueType   string `json:"issueType"`
	Priority    string `json:"priority"`
	Assignee    string `json:"assignee"`
	DueDate     string `json:"dueDate" binding:"omitempty,datetime=2006-01-02"`
}

// UpdateIssueRequest is the body of PATCH /api/jira/issues/:key
type UpdateIssueRequest struct {
	Summary     *string `json:"summary"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	Assignee    *string `json:"assignee"`
	Status      *string `json:"status"`
}

// TransitionRequest is the body of POST /api/jira/issues/:key/transitions
type TransitionRequest struct {
	Status string `json:"status" binding:"required"`
}

// forward runs action for the request's workspace and writes the reply
func (h *JiraHandler) forward(c *gin.Context, action string, params map[string]any) {
	req := models.JiraRequest{
		Action:      action,
		WorkspaceID: c.Query("workspace"),
		UserID:      userID(c),
		Params:      params,
		RequestID:   requestID(c),
	}

	resp, err := h.call(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "jira service unavailable"})
		return
	}
	if !resp.Success {
		c.JSON(httpStatus(resp.Error), gin.H{"error": resp.Error})
		return
	}
	c.JSON(http.StatusOK, resp.Data)
}

// httpStatus picks the HTTP status that best describes a worker error
func httpStatus(e *models.ErrorInfo) int {
	if e == nil {
		return http.StatusBadGateway
	}
	switch e.Code {
	case models.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case models.ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case models.ErrCodeWorkflowError:
		return http.StatusConflict
	}
	if e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusBadRequest {
		return e.StatusCode
	}
	return http.StatusBadGateway
}

func setIfPresent(params map[string]any, key string, value *string) {
	if value != nil {
		params[key] = *value
	}
}

func (h *JiraHandler) ListProjects(c *gin.Context) {
	h.forward(c, "list_projects", map[string]any{"query": c.Query("query")})
}

func (h *JiraHandler) ListIssues(c *gin.Context) {
	params := map[string]any{
		"project_key": c.Query("project"),
		"text":        c.Query("text"),
		"jql":         c.Query("jql"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		params["limit"] = limit
	}
	h.forward(c, "list_issues", params)
}

func (h *JiraHandler) GetIssue(c *gin.Context) {
	h.forward(c, "get_issue", map[string]any{"issue_key": c.Param("key")})
}

func (h *JiraHandler) CreateIssue(c *gin.Context) {
	var body CreateIssueRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.forward(c, "create_issue", map[string]any{
		"project_key": strings.TrimSpace(body.ProjectKey),
		"summary":     body.Summary,
		"description": body.Description,
		"issue_type":  body.IssueType,
		"priority":    body.Priority,
		"assignee":    body.Assignee,
		"due_date":    body.DueDate,
	})
}

func (h *JiraHandler) UpdateIssue(c *gin.Context) {
	var body UpdateIssueRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params := map[string]any{"issue_key": c.Param("key")}
	setIfPresent(params, "summary", body.Summary)
	setIfPresent(params, "description", body.Description)
	setIfPresent(params, "priority", body.Priority)
	setIfPresent(params, "assignee", body.Assignee)
	setIfPresent(params, "status", body.Status)
	h.forward(c, "update_issue", params)
}

func (h *JiraHandler) ListTransitions(c *gin.Context) {
	h.forward(c, "list_transitions", map[string]any{"issue_key": c.Param("key")})
}

func (h *JiraHandler) TransitionIssue(c *gin.Context) {
	var body TransitionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.forward(c, "transition_issue", map[string]any{
		"issue_key": c.Param("key"),
		"status":    body.Status,
	})
}

func (h *JiraHandler) ListUsers(c *gin.Context) {
	h.forward(c, "list_users", map[string]any{"query": c.Query("query")})
}

func (h *JiraHandler) ListPriorities(c *gin.Context) {
	h.forward(c, "list_priorities", nil)
}

func (h *JiraHandler) ListIssueTypes(c *gin.Context) {
	h.forward(c, "list_issue_types", map[string]any{"project_key": c.Query("project")})
}

func (h *JiraHandler) TestConnection(c *gin.Context) {
	h.forward(c, "test_connection", nil)
}
