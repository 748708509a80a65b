package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/providentiaww/dashboard-tracker/internal/logger"
)

// UserIDHeader identifies the dashboard user. Authentication happens in
// front of this gateway.
const UserIDHeader = "X-User-ID"

// Deps are the collaborators the router wires into its handlers
type Deps struct {
	Jira        *JiraHandler
	Workspaces  *WorkspaceHandler
	Invitations *InvitationHandler
	// Ready reports backend health for /healthz; nil means always ready
	Ready func() error
}

// NewRouter builds the gateway's gin engine
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(logger.GinLogMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		if deps.Ready != nil {
			if err := deps.Ready(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := r.Group("/api", userMiddleware())

	if deps.Jira != nil {
		jira := apiGroup.Group("/jira")
		jira.GET("/projects", deps.Jira.ListProjects)
		jira.GET("/issues", deps.Jira.ListIssues)
		jira.POST("/issues", deps.Jira.CreateIssue)
		jira.GET("/issues/:key", deps.Jira.GetIssue)
		jira.PATCH("/issues/:key", deps.Jira.UpdateIssue)
		jira.GET("/issues/:key/transitions", deps.Jira.ListTransitions)
		jira.POST("/issues/:key/transitions", deps.Jira.TransitionIssue)
		jira.GET("/users", deps.Jira.ListUsers)
		jira.GET("/priorities", deps.Jira.ListPriorities)
		jira.GET("/issue-types", deps.Jira.ListIssueTypes)
		jira.GET("/connection", deps.Jira.TestConnection)
	}

	if deps.Workspaces != nil {
		apiGroup.GET("/workspaces", deps.Workspaces.List)
		apiGroup.POST("/workspaces", deps.Workspaces.Create)
		apiGroup.PUT("/workspaces/:id", deps.Workspaces.Update)
		apiGroup.DELETE("/workspaces/:id", deps.Workspaces.Delete)
	}

	if deps.Invitations != nil {
		apiGroup.POST("/invitations", deps.Invitations.Issue)
		apiGroup.GET("/invitations/:token", deps.Invitations.Lookup)
		apiGroup.POST("/invitations/:token/redeem", deps.Invitations.Redeem)
		apiGroup.POST("/invitations/:token/extend", deps.Invitations.Extend)
		apiGroup.DELETE("/invitations/:token", deps.Invitations.Revoke)
	}

	return r
}

func userMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", strings.TrimSpace(c.GetHeader(UserIDHeader)))
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString("user_id")
}

func requestID(c *gin.Context) string {
	return c.GetString("request_id")
}
