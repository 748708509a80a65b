package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dashboardTransitions = `{"transitions": [
	{"id": "31", "name": "Start discovery", "to": {"name": "Discovery", "statusCategory": {"name": "In Progress"}}},
	{"id": "41", "name": "Finish", "to": {"name": "Done", "statusCategory": {"name": "Done"}}}
]}`

// workflowIssue serves MDP-7 with a status that follows executed transitions
type workflowIssue struct {
	mu     sync.Mutex
	status string
}

func (w *workflowIssue) install(fake *fakeJira) {
	fake.handleJSON("GET /rest/api/3/issue/MDP-7/transitions", http.StatusOK, dashboardTransitions)
	fake.handle("GET /rest/api/3/issue/MDP-7", func(rw http.ResponseWriter, r *http.Request) {
		w.mu.Lock()
		status := w.status
		w.mu.Unlock()
		_, _ = io.WriteString(rw, issueWithStatus(status))
	})
	fake.handle("POST /rest/api/3/issue/MDP-7/transitions", func(rw http.ResponseWriter, r *http.Request) {
		w.mu.Lock()
		w.status = "Discovery"
		w.mu.Unlock()
		rw.WriteHeader(http.StatusNoContent)
	})
	fake.handle("PUT /rest/api/3/issue/MDP-7", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusNoContent)
	})
}

func ptr(s string) *string { return &s }

func TestStatusMapNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"todo", "To Do"},
		{"To Do", "To Do"},
		{"in progress", "Discovery"},
		{"In Progress", "Discovery"},
		{"in-progress", "Discovery"},
		{"in_progress", "Discovery"},
		{" done ", "Done"},
		{"Blocked", "Blocked"},
		{"Discovery", "Discovery"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultStatusMap.Normalize(tt.in))
		})
	}
}

func TestUpdateIssueTransitionsToMappedStatus(t *testing.T) {
	fake, client := newFakeJira(t)
	(&workflowIssue{status: "To Do"}).install(fake)

	issue, err := client.UpdateIssue(context.Background(), "MDP-7", UpdateIssueInput{Status: ptr("in progress")})
	require.NoError(t, err)
	assert.Equal(t, "Discovery", issue.Status.Name)

	posts := fake.callsTo(http.MethodPost, "/rest/api/3/issue/MDP-7/transitions")
	require.Len(t, posts, 1)
	assert.Equal(t, map[string]any{"transition": map[string]any{"id": "31"}}, posts[0].Body)

	assert.Empty(t, fake.callsTo(http.MethodPut, "/rest/api/3/issue/MDP-7"))
	assert.Len(t, fake.callsTo(http.MethodGet, "/rest/api/3/issue/MDP-7/transitions"), 1)
}

func TestUpdateIssueUnreachableStatus(t *testing.T) {
	fake, client := newFakeJira(t)
	(&workflowIssue{status: "To Do"}).install(fake)

	issue, err := client.UpdateIssue(context.Background(), "MDP-7", UpdateIssueInput{Status: ptr("Blocked")})
	require.Error(t, err)
	require.Nil(t, issue)

	var we *WorkflowError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, "MDP-7", we.IssueKey)
	assert.Equal(t, "Blocked", we.Desired)
	assert.Equal(t, "Blocked", we.Target)
	assert.Equal(t, []string{"Discovery", "Done"}, we.Available)
	assert.Contains(t, err.Error(), "Discovery, Done")
	assert.False(t, IsTransportError(err))

	assert.Empty(t, fake.callsTo(http.MethodPost, "/rest/api/3/issue/MDP-7/transitions"))
	assert.Empty(t, fake.callsTo(http.MethodGet, "/rest/api/3/issue/MDP-7"))
}

func TestUpdateIssueEditsFieldsBeforeTransition(t *testing.T) {
	fake, client := newFakeJira(t)
	(&workflowIssue{status: "To Do"}).install(fake)

	_, err := client.UpdateIssue(context.Background(), "MDP-7", UpdateIssueInput{
		Summary: ptr("  New title "),
		Status:  ptr("done"),
	})
	require.NoError(t, err)

	puts := fake.callsTo(http.MethodPut, "/rest/api/3/issue/MDP-7")
	require.Len(t, puts, 1)
	assert.Equal(t, map[string]any{"fields": map[string]any{"summary": "New title"}}, puts[0].Body)

	posts := fake.callsTo(http.MethodPost, "/rest/api/3/issue/MDP-7/transitions")
	require.Len(t, posts, 1)
	assert.Equal(t, map[string]any{"transition": map[string]any{"id": "41"}}, posts[0].Body)

	fake.mu.Lock()
	order := []string{}
	for _, c := range fake.calls {
		order = append(order, c.Method+" "+c.Path)
	}
	fake.mu.Unlock()
	assert.Equal(t, []string{
		"PUT /rest/api/3/issue/MDP-7",
		"GET /rest/api/3/issue/MDP-7/transitions",
		"POST /rest/api/3/issue/MDP-7/transitions",
		"GET /rest/api/3/issue/MDP-7",
	}, order)
}

func TestUpdateIssueFieldsStayAppliedWhenTransitionFails(t *testing.T) {
	fake, client := newFakeJira(t)
	(&workflowIssue{status: "To Do"}).install(fake)

	_, err := client.UpdateIssue(context.Background(), "MDP-7", UpdateIssueInput{
		Priority: ptr("High"),
		Status:   ptr("Blocked"),
	})
	require.True(t, IsWorkflowError(err))
	assert.Len(t, fake.callsTo(http.MethodPut, "/rest/api/3/issue/MDP-7"), 1)
}

func TestUpdateIssueFieldsOnly(t *testing.T) {
	fake, client := newFakeJira(t)
	(&workflowIssue{status: "To Do"}).install(fake)

	issue, err := client.UpdateIssue(context.Background(), "MDP-7", UpdateIssueInput{Description: ptr("a\nb")})
	require.NoError(t, err)
	assert.Equal(t, "To Do", issue.Status.Name)

	assert.Len(t, fake.callsTo(http.MethodPut, "/rest/api/3/issue/MDP-7"), 1)
	assert.Empty(t, fake.callsTo(http.MethodGet, "/rest/api/3/issue/MDP-7/transitions"))
	assert.Empty(t, fake.callsTo(http.MethodPost, "/rest/api/3/issue/MDP-7/transitions"))
}

func TestUpdateIssueWithCustomStatusMap(t *testing.T) {
	fake, client := newFakeJira(t, WithStatusMap(StatusMap{"in progress": "Done"}))
	(&workflowIssue{status: "To Do"}).install(fake)

	_, err := client.TransitionIssue(context.Background(), "MDP-7", "In Progress")
	require.NoError(t, err)

	posts := fake.callsTo(http.MethodPost, "/rest/api/3/issue/MDP-7/transitions")
	require.Len(t, posts, 1)
	assert.Equal(t, map[string]any{"transition": map[string]any{"id": "41"}}, posts[0].Body)
}

func TestUpdateIssueTransitionListFailure(t *testing.T) {
	fake, client := newFakeJira(t)
	fake.handleJSON("GET /rest/api/3/issue/MDP-9/transitions", http.StatusNotFound, `{"errorMessages":["gone"]}`)

	_, err := client.TransitionIssue(context.Background(), "MDP-9", "done")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
	assert.False(t, IsWorkflowError(err))
}

func TestUpdateFields(t *testing.T) {
	tests := []struct {
		name string
		in   UpdateIssueInput
		want map[string]interface{}
	}{
		{
			name: "nothing set",
			in:   UpdateIssueInput{Status: ptr("done")},
			want: map[string]interface{}{},
		},
		{
			name: "email assignee",
			in:   UpdateIssueInput{Assignee: ptr("ada@example.com")},
			want: map[string]interface{}{"assignee": map[string]string{"emailAddress": "ada@example.com"}},
		},
		{
			name: "empty assignee unassigns",
			in:   UpdateIssueInput{Assignee: ptr("")},
			want: map[string]interface{}{"assignee": nil},
		},
		{
			name: "non-email assignee dropped",
			in:   UpdateIssueInput{Assignee: ptr("Ada")},
			want: map[string]interface{}{},
		},
		{
			name: "blank priority dropped",
			in:   UpdateIssueInput{Priority: ptr(" ")},
			want: map[string]interface{}{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, updateFields(tt.in))
		})
	}
}

func TestListTransitions(t *testing.T) {
	fake, client := newFakeJira(t)
	fake.handleJSON("GET /rest/api/3/issue/MDP-7/transitions", http.StatusOK, dashboardTransitions)

	transitions, err := client.ListTransitions(context.Background(), "MDP-7")
	require.NoError(t, err)
	require.Len(t, transitions, 2)
	assert.Equal(t, "31", transitions[0].ID)
	assert.Equal(t, "Discovery", transitions[0].To.Name)
	assert.Equal(t, "In Progress", transitions[0].To.Category)
}
