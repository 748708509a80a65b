package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/providentiaww/dashboard-tracker/internal/models"
	"github.com/providentiaww/dashboard-tracker/internal/storage"
)

func newTestService(t *testing.T, routes map[string]string, status map[string]int) *Service {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path
		body, ok := routes[route]
		if !ok {
			http.NotFound(w, r)
			return
		}
		code := http.StatusOK
		if c, ok := status[route]; ok {
			code = c
		}
		w.WriteHeader(code)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	store := storage.WithDefaultWorkspace(nil, models.WorkspaceCredentials{
		Site:  srv.URL,
		Email: "svc@example.com",
		Token: "tok",
	})
	return NewService(store, 5*time.Second, zaptest.NewLogger(t))
}

func call(t *testing.T, s *Service, req models.JiraRequest) models.JiraResponse {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	var resp models.JiraResponse
	require.NoError(t, json.Unmarshal(s.HandleRequest(context.Background(), amqp.Delivery{Body: body}), &resp))
	return resp
}

func TestHandleRequestRejectsBadBody(t *testing.T) {
	s := newTestService(t, nil, nil)

	var resp models.JiraResponse
	require.NoError(t, json.Unmarshal(s.HandleRequest(context.Background(), amqp.Delivery{Body: []byte("{oops")}), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, models.ErrCodeInvalidRequest, resp.Error.Code)
}

func TestHandleRequestUsesCorrelationIDWhenRequestIDMissing(t *testing.T) {
	s := newTestService(t, nil, nil)

	var resp models.JiraResponse
	raw := s.HandleRequest(context.Background(), amqp.Delivery{
		CorrelationId: "corr-9",
		Body:          []byte(`{"action":"nope"}`),
	})
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, "corr-9", resp.RequestID)
	assert.Equal(t, models.ErrCodeInvalidRequest, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "unknown action")
}

func TestHandleListProjects(t *testing.T) {
	s := newTestService(t, map[string]string{
		"GET /rest/api/3/project/search": `{"values":[{"id":"1","key":"MDP","name":"Dashboard"}]}`,
	}, nil)

	resp := call(t, s, models.JiraRequest{Action: "list_projects", RequestID: "r1"})
	require.True(t, resp.Success, "%+v", resp.Error)
	assert.Equal(t, "r1", resp.RequestID)

	projects, ok := resp.Data.([]any)
	require.True(t, ok)
	require.Len(t, projects, 1)
	assert.Equal(t, "MDP", projects[0].(map[string]any)["key"])
}

func TestHandleUnknownWorkspace(t *testing.T) {
	s := newTestService(t, nil, nil)

	resp := call(t, s, models.JiraRequest{Action: "list_projects", WorkspaceID: "ghost"})
	require.False(t, resp.Success)
	assert.Equal(t, models.ErrCodeAuthFailed, resp.Error.Code)
}

func TestHandleMissingParams(t *testing.T) {
	s := newTestService(t, nil, nil)

	tests := []models.JiraRequest{
		{Action: "get_issue"},
		{Action: "list_transitions", Params: map[string]any{"issue_key": " "}},
		{Action: "transition_issue", Params: map[string]any{"issue_key": "MDP-1"}},
		{Action: "create_issue", Params: map[string]any{"project_key": "MDP"}},
		{Action: "list_issues", Params: map[string]any{"limit": "lots"}},
	}
	for _, req := range tests {
		t.Run(req.Action, func(t *testing.T) {
			resp := call(t, s, req)
			require.False(t, resp.Success)
			assert.Equal(t, models.ErrCodeInvalidRequest, resp.Error.Code)
		})
	}
}

func TestHandleTransitionToUnreachableStatus(t *testing.T) {
	s := newTestService(t, map[string]string{
		"GET /rest/api/3/issue/MDP-7/transitions": `{"transitions":[
			{"id":"31","to":{"name":"Discovery"}},
			{"id":"41","to":{"name":"Done"}}
		]}`,
	}, nil)

	resp := call(t, s, models.JiraRequest{
		Action: "transition_issue",
		Params: map[string]any{"issue_key": "MDP-7", "status": "Blocked"},
	})
	require.False(t, resp.Success)
	assert.Equal(t, models.ErrCodeWorkflowError, resp.Error.Code)
	assert.Equal(t, []string{"Discovery", "Done"}, resp.Error.Available)
}

func TestHandleRemoteFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   string
	}{
		{"unauthorized", http.StatusUnauthorized, models.ErrCodeAuthFailed},
		{"forbidden", http.StatusForbidden, models.ErrCodeAuthFailed},
		{"not found", http.StatusNotFound, models.ErrCodeAPIError},
		{"server error", http.StatusBadGateway, models.ErrCodeAPIError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route := "GET /rest/api/3/issue/MDP-1"
			s := newTestService(t, map[string]string{route: `{"errorMessages":["x"]}`}, map[string]int{route: tt.status})

			resp := call(t, s, models.JiraRequest{Action: "get_issue", Params: map[string]any{"issue_key": "MDP-1"}})
			require.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.status, resp.Error.StatusCode)
		})
	}
}

func TestHandleUpdateIssue(t *testing.T) {
	s := newTestService(t, map[string]string{
		"PUT /rest/api/3/issue/MDP-3": ``,
		"GET /rest/api/3/issue/MDP-3": `{"id":"3","key":"MDP-3","fields":{"summary":"Renamed","status":{"name":"To Do"}}}`,
	}, map[string]int{"PUT /rest/api/3/issue/MDP-3": http.StatusNoContent})

	resp := call(t, s, models.JiraRequest{
		Action: "update_issue",
		Params: map[string]any{"issue_key": "MDP-3", "summary": "Renamed"},
	})
	require.True(t, resp.Success, "%+v", resp.Error)
	issue := resp.Data.(map[string]any)
	assert.Equal(t, "Renamed", issue["summary"])
	assert.Equal(t, "Medium", issue["priority"])
}

func TestHandleTestConnection(t *testing.T) {
	s := newTestService(t, map[string]string{
		"GET /rest/api/3/myself": `{"accountId":"me"}`,
	}, nil)

	resp := call(t, s, models.JiraRequest{Action: "test_connection"})
	require.True(t, resp.Success)
	assert.Equal(t, map[string]any{"connected": true}, resp.Data)
}

func TestActionsAreListed(t *testing.T) {
	assert.ElementsMatch(t, []string{
		"list_projects", "list_issues", "get_issue", "create_issue", "update_issue",
		"transition_issue", "list_transitions", "list_users", "list_priorities",
		"list_issue_types", "test_connection",
	}, Actions())
}
