package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/providentiaww/dashboard-tracker/cmd/jira-service/api"
	"github.com/providentiaww/dashboard-tracker/internal/models"
	"github.com/providentiaww/dashboard-tracker/internal/storage"
)

// Service handles Jira service requests
type Service struct {
	credStore  storage.CredentialStoreInterface
	apiTimeout time.Duration
	clientOpts []api.Option
	log        *zap.Logger
}

// NewService creates a new Jira service. clientOpts are applied to every
// per-request API client.
func NewService(credStore storage.CredentialStoreInterface, timeout time.Duration, log *zap.Logger, clientOpts ...api.Option) *Service {
	return &Service{
		credStore:  credStore,
		apiTimeout: timeout,
		clientOpts: append([]api.Option{api.WithLogger(log)}, clientOpts...),
		log:        log,
	}
}

// HandleRequest processes one RabbitMQ delivery and returns the JSON reply
func (s *Service) HandleRequest(ctx context.Context, d amqp.Delivery) []byte {
	var response models.JiraResponse

	var req models.JiraRequest
	if err := json.Unmarshal(d.Body, &req); err != nil {
		response = models.ErrorResponse(models.ErrCodeInvalidRequest, fmt.Sprintf("invalid request body: %v", err), "")
	} else {
		if req.RequestID == "" {
			req.RequestID = d.CorrelationId
		}
		response = s.Handle(ctx, req)
	}

	responseBytes, err := json.Marshal(response)
	if err != nil {
		s.log.Error("failed to marshal response", zap.String("request_id", req.RequestID), zap.Error(err))
		responseBytes, _ = json.Marshal(models.ErrorResponse(models.ErrCodeAPIError, "failed to encode response", req.RequestID))
	}
	return responseBytes
}

// Handle resolves the workspace credentials and dispatches the action
func (s *Service) Handle(ctx context.Context, req models.JiraRequest) models.JiraResponse {
	start := time.Now()
	log := s.log.With(
		zap.String("request_id", req.RequestID),
		zap.String("action", req.Action),
		zap.String("workspace_id", req.WorkspaceID),
	)

	handler, ok := actions[req.Action]
	if !ok {
		log.Warn("unknown action")
		return models.ErrorResponse(models.ErrCodeInvalidRequest, fmt.Sprintf("unknown action: %s", req.Action), req.RequestID)
	}

	creds, err := s.credStore.GetCredentials(ctx, req.UserID, req.WorkspaceID)
	if err != nil {
		log.Warn("workspace credentials unavailable", zap.Error(err))
		return models.ErrorResponse(models.ErrCodeAuthFailed,
			fmt.Sprintf("workspace not found: %s", req.WorkspaceID), req.RequestID)
	}

	client := api.NewClient(api.WorkspaceCredentials{
		Site:  creds.Site,
		Email: creds.Email,
		Token: creds.Token,
	}, s.apiTimeout, s.clientOpts...)

	data, err := handler(ctx, client, req.Params)
	if err != nil {
		log.Warn("request failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return errorResponse(err, req.RequestID)
	}

	log.Info("request handled", zap.Duration("duration", time.Since(start)))
	return models.SuccessResponse(data, req.RequestID)
}

// errorResponse maps client errors onto the response error codes
func errorResponse(err error, requestID string) models.JiraResponse {
	var (
		we *api.WorkflowError
		te *api.TransportError
	)
	switch {
	case errors.Is(err, api.ErrInvalidInput):
		return models.ErrorResponse(models.ErrCodeInvalidRequest, err.Error(), requestID)
	case errors.As(err, &we):
		resp := models.ErrorResponse(models.ErrCodeWorkflowError, err.Error(), requestID)
		resp.Error.Available = we.Available
		return resp
	case errors.As(err, &te):
		code := models.ErrCodeAPIError
		if te.StatusCode == http.StatusUnauthorized || te.StatusCode == http.StatusForbidden {
			code = models.ErrCodeAuthFailed
		}
		resp := models.ErrorResponse(code, err.Error(), requestID)
		resp.Error.StatusCode = te.StatusCode
		return resp
	default:
		return models.ErrorResponse(models.ErrCodeAPIError, err.Error(), requestID)
	}
}

type actionFunc func(ctx context.Context, client *api.Client, params map[string]any) (any, error)

var actions = map[string]actionFunc{
	"list_projects":    handleListProjects,
	"list_issues":      handleListIssues,
	"get_issue":        handleGetIssue,
	"create_issue":     handleCreateIssue,
	"update_issue":     handleUpdateIssue,
	"transition_issue": handleTransitionIssue,
	"list_transitions": handleListTransitions,
	"list_users":       handleListUsers,
	"list_priorities":  handleListPriorities,
	"list_issue_types": handleListIssueTypes,
	"test_connection":  handleTestConnection,
}

// Actions returns the names of all supported actions
func Actions() []string {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	return names
}

// decodeParams converts the loosely typed params map into a typed struct
func decodeParams(params map[string]any, out any) error {
	if len(params) == 0 {
		return nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%w: %v", api.ErrInvalidInput, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: bad params: %v", api.ErrInvalidInput, err)
	}
	return nil
}

type issueKeyParams struct {
	IssueKey string `json:"issue_key"`
}

func (p issueKeyParams) key() (string, error) {
	key := strings.TrimSpace(p.IssueKey)
	if key == "" {
		return "", fmt.Errorf("%w: missing issue_key", api.ErrInvalidInput)
	}
	return key, nil
}

func handleListProjects(ctx context.Context, client *api.Client, params map[string]any) (any, error) {
	var p struct {
		Query string `json:"query"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return client.ListProjects(ctx, p.Query)
}

func handleListIssues(ctx context.Context, client *api.Client, params map[string]any) (any, error) {
	var p struct {
		ProjectKey string `json:"project_key"`
		Text       string `json:"text"`
		JQL        string `json:"jql"`
		Limit      int    `json:"limit"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return client.ListIssues(ctx, api.IssueFilter{
		ProjectKey: p.ProjectKey,
		Text:       p.Text,
		JQL:        p.JQL,
		MaxResults: p.Limit,
	})
}

func handleGetIssue(ctx context.Context, client *api.Client, params map[string]any) (any, error) {
	var p issueKeyParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	key, err := p.key()
	if err != nil {
		return nil, err
	}
	return client.GetIssue(ctx, key)
}

func handleCreateIssue(ctx context.Context, client *api.Client, params map[string]any) (any, error) {
	var p struct {
		ProjectKey  string `json:"project_key"`
		Summary     string `json:"summary"`
		Description string `json:"description"`
		IssueType   string `json:"issue_type"`
		Priority    string `json:"priority"`
		Assignee    string `json:"assignee"`
		DueDate     string `json:"due_date"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return client.CreateIssue(ctx, api.CreateIssueInput{
		ProjectKey:  p.ProjectKey,
		Summary:     p.Summary,
		Description: p.Description,
		IssueType:   p.IssueType,
		Priority:    p.Priority,
		Assignee:    p.Assignee,
		DueDate:     p.DueDate,
	})
}

func handleUpdateIssue(ctx context.Context, client *api.Client, params map[string]any) (any, error) {
	var p struct {
		issueKeyParams
		api.UpdateIssueInput
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	key, err := p.key()
	if err != nil {
		return nil, err
	}
	return client.UpdateIssue(ctx, key, p.UpdateIssueInput)
}

func handleTransitionIssue(ctx context.Context, client *api.Client, params map[string]any) (any, error) {
	var p struct {
		issueKeyParams
		Status string `json:"status"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	key, err := p.key()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Status) == "" {
		return nil, fmt.Errorf("%w: missing status", api.ErrInvalidInput)
	}
	return client.TransitionIssue(ctx, key, p.Status)
}

func handleListTransitions(ctx context.Context, client *api.Client, params map[string]any) (any, error) {
	var p issueKeyParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	key, err := p.key()
	if err != nil {
		return nil, err
	}
	return client.ListTransitions(ctx, key)
}

func handleListUsers(ctx context.Context, client *api.Client, params map[string]any) (any, error) {
	var p struct {
		Query string `json:"query"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return client.ListUsers(ctx, p.Query)
}

func handleListPriorities(ctx context.Context, client *api.Client, _ map[string]any) (any, error) {
	return client.ListPriorities(ctx)
}

func handleListIssueTypes(ctx context.Context, client *api.Client, params map[string]any) (any, error) {
	var p struct {
		ProjectKey string `json:"project_key"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return client.ListIssueTypes(ctx, p.ProjectKey)
}

func handleTestConnection(ctx context.Context, client *api.Client, _ map[string]any) (any, error) {
	return map[string]bool{"connected": client.TestConnection(ctx)}, nil
}
