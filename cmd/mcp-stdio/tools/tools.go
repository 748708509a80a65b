// Package tools exposes the Jira service actions as MCP tools. Every call is
// forwarded to the Jira worker; nothing talks to Jira directly.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/providentiaww/dashboard-tracker/internal/models"
)

// JiraCaller sends one request to the Jira worker and returns its reply
type JiraCaller func(ctx context.Context, req models.JiraRequest) (*models.JiraResponse, error)

type toolSpec struct {
	name    string
	action  string
	options []mcp.ToolOption
}

var workspaceOption = mcp.WithString("workspace_id",
	mcp.Description("Workspace to act on; omit for the default workspace"),
)

var specs = []toolSpec{
	{
		name:   "jira_list_projects",
		action: "list_projects",
		options: []mcp.ToolOption{
			mcp.WithDescription("List Jira projects visible to the workspace"),
			mcp.WithString("query", mcp.Description("Filter projects by name or key")),
		},
	},
	{
		name:   "jira_list_issues",
		action: "list_issues",
		options: []mcp.ToolOption{
			mcp.WithDescription("List issues, newest first, optionally filtered by project and text or by raw JQL"),
			mcp.WithString("project_key", mcp.Description("Project key, e.g. 'MDP'")),
			mcp.WithString("text", mcp.Description("Full-text search term")),
			mcp.WithString("jql", mcp.Description("Raw JQL; overrides project_key and text")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of issues (default 50)")),
		},
	},
	{
		name:   "jira_get_issue",
		action: "get_issue",
		options: []mcp.ToolOption{
			mcp.WithDescription("Get one issue with its description as plain text"),
			mcp.WithString("issue_key", mcp.Required(), mcp.Description("Issue key, e.g. 'MDP-7'")),
		},
	},
	{
		name:   "jira_create_issue",
		action: "create_issue",
		options: []mcp.ToolOption{
			mcp.WithDescription("Create an issue and return it as stored"),
			mcp.WithString("project_key", mcp.Required(), mcp.Description("Project key")),
			mcp.WithString("summary", mcp.Required(), mcp.Description("Issue title")),
			mcp.WithString("description", mcp.Description("Plain-text description")),
			mcp.WithString("issue_type", mcp.Description("Issue type name or id (default Task)")),
			mcp.WithString("priority", mcp.Description("Priority name")),
			mcp.WithString("assignee", mcp.Description("Assignee email address")),
			mcp.WithString("due_date", mcp.Description("Due date, YYYY-MM-DD")),
		},
	},
	{
		name:   "jira_update_issue",
		action: "update_issue",
		options: []mcp.ToolOption{
			mcp.WithDescription("Update issue fields and optionally move it to a new status"),
			mcp.WithString("issue_key", mcp.Required(), mcp.Description("Issue key")),
			mcp.WithString("summary", mcp.Description("New title")),
			mcp.WithString("description", mcp.Description("New plain-text description")),
			mcp.WithString("priority", mcp.Description("New priority name")),
			mcp.WithString("assignee", mcp.Description("Assignee email address; empty string unassigns")),
			mcp.WithString("status", mcp.Description("Target status, e.g. 'todo', 'in progress', 'done'")),
		},
	},
	{
		name:   "jira_transition_issue",
		action: "transition_issue",
		options: []mcp.ToolOption{
			mcp.WithDescription("Move an issue to a status through its workflow"),
			mcp.WithString("issue_key", mcp.Required(), mcp.Description("Issue key")),
			mcp.WithString("status", mcp.Required(), mcp.Description("Target status")),
		},
	},
	{
		name:   "jira_list_transitions",
		action: "list_transitions",
		options: []mcp.ToolOption{
			mcp.WithDescription("List the statuses an issue can move to right now"),
			mcp.WithString("issue_key", mcp.Required(), mcp.Description("Issue key")),
		},
	},
	{
		name:   "jira_list_users",
		action: "list_users",
		options: []mcp.ToolOption{
			mcp.WithDescription("Search users by name or email"),
			mcp.WithString("query", mcp.Description("Search term; omit to list all users")),
		},
	},
	{
		name:   "jira_list_priorities",
		action: "list_priorities",
		options: []mcp.ToolOption{
			mcp.WithDescription("List issue priorities"),
		},
	},
	{
		name:   "jira_list_issue_types",
		action: "list_issue_types",
		options: []mcp.ToolOption{
			mcp.WithDescription("List issue types, optionally for one project"),
			mcp.WithString("project_key", mcp.Description("Project key")),
		},
	},
	{
		name:   "jira_test_connection",
		action: "test_connection",
		options: []mcp.ToolOption{
			mcp.WithDescription("Check that the workspace credentials work"),
		},
	},
}

// Register adds every Jira tool to s
func Register(s *server.MCPServer, call JiraCaller, log *zap.Logger) {
	for _, spec := range specs {
		opts := append(append([]mcp.ToolOption{}, spec.options...), workspaceOption)
		s.AddTool(mcp.NewTool(spec.name, opts...), handler(spec.action, call, log))
	}
}

// handler builds the MCP handler forwarding one tool to action
func handler(action string, call JiraCaller, log *zap.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		params, err := arguments(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		workspaceID, _ := params["workspace_id"].(string)
		delete(params, "workspace_id")

		req := models.JiraRequest{
			Action:      action,
			WorkspaceID: strings.TrimSpace(workspaceID),
			Params:      params,
			RequestID:   uuid.New().String(),
		}

		resp, err := call(ctx, req)
		if err != nil {
			log.Error("jira service call failed", zap.String("action", action), zap.String("request_id", req.RequestID), zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("jira service unavailable: %v", err)), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(describeError(resp.Error)), nil
		}

		out, err := json.MarshalIndent(resp.Data, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}

func arguments(request mcp.CallToolRequest) (map[string]any, error) {
	raw, err := json.Marshal(request.Params.Arguments)
	if err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	params := map[string]any{}
	if string(raw) == "null" {
		return params, nil
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return params, nil
}

func describeError(e *models.ErrorInfo) string {
	if e == nil {
		return "request failed"
	}
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if len(e.Available) > 0 {
		msg += fmt.Sprintf(" (reachable statuses: %s)", strings.Join(e.Available, ", "))
	}
	return msg
}
