package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/providentiaww/dashboard-tracker/internal/models"
	"github.com/providentiaww/dashboard-tracker/internal/storage"
)

// ConnectionTester reports whether credentials can reach their site
type ConnectionTester func(ctx context.Context, creds models.WorkspaceCredentials) bool

// WorkspaceHandler manages stored workspace connections
type WorkspaceHandler struct {
	credStore storage.CredentialStoreInterface
	test      ConnectionTester
}

// NewWorkspaceHandler creates a new workspace handler
func NewWorkspaceHandler(credStore storage.CredentialStoreInterface, test ConnectionTester) *WorkspaceHandler {
	return &WorkspaceHandler{credStore: credStore, test: test}
}

// WorkspaceRequest is the body of POST and PUT /api/workspaces
type WorkspaceRequest struct {
	WorkspaceName string `json:"workspaceName"`
	SiteURL       string `json:"siteUrl" binding:"required,url"`
	Email         string `json:"email" binding:"required,email"`
	APIToken      string `json:"apiToken"`
}

// WorkspaceResponse represents a workspace without sensitive data
type WorkspaceResponse struct {
	WorkspaceID   string    `json:"workspaceId"`
	WorkspaceName string    `json:"workspaceName"`
	SiteURL       string    `json:"siteUrl"`
	Email         string    `json:"email"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toWorkspaceResponse(cred models.AtlassianCredential) WorkspaceResponse {
	return WorkspaceResponse{
		WorkspaceID:   cred.WorkspaceID,
		WorkspaceName: cred.WorkspaceName,
		SiteURL:       cred.AtlassianURL,
		Email:         cred.Email,
		CreatedAt:     cred.CreatedAt,
		UpdatedAt:     cred.UpdatedAt,
	}
}

// save validates the connection and stores it under workspaceID
func (h *WorkspaceHandler) save(c *gin.Context, workspaceID string, req WorkspaceRequest, status int) {
	site := strings.TrimRight(strings.TrimSpace(req.SiteURL), "/")
	if req.WorkspaceName == "" {
		req.WorkspaceName = site
	}

	creds := models.WorkspaceCredentials{Site: site, Email: strings.TrimSpace(req.Email), Token: req.APIToken}
	if !h.test(c.Request.Context(), creds) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Atlassian connection failed, check URL, email and token"})
		return
	}

	cred := &models.AtlassianCredential{
		UserID:        userID(c),
		WorkspaceID:   workspaceID,
		WorkspaceName: req.WorkspaceName,
		AtlassianURL:  site,
		Email:         creds.Email,
		APIToken:      req.APIToken,
	}
	if err := h.credStore.SaveCredentials(c.Request.Context(), cred); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save credentials"})
		return
	}

	c.JSON(status, toWorkspaceResponse(*cred))
}

// Create handles POST /api/workspaces
func (h *WorkspaceHandler) Create(c *gin.Context) {
	var req WorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.APIToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "apiToken is required"})
		return
	}
	h.save(c, uuid.New().String(), req, http.StatusCreated)
}

// rejectDefault answers 400 for the environment-configured workspace, which
// is never stored or removed through the gateway
func rejectDefault(c *gin.Context, workspaceID string) bool {
	if strings.TrimSpace(workspaceID) != storage.DefaultWorkspaceID {
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "the default workspace is configured by the environment"})
	return true
}

// Update handles PUT /api/workspaces/:id. An empty apiToken keeps the
// stored one.
func (h *WorkspaceHandler) Update(c *gin.Context) {
	workspaceID := c.Param("id")
	if rejectDefault(c, workspaceID) {
		return
	}

	var req WorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := h.credStore.GetCredentials(c.Request.Context(), userID(c), workspaceID)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "workspace not found"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve workspace"})
		return
	}
	if req.APIToken == "" {
		req.APIToken = existing.Token
	}
	h.save(c, workspaceID, req, http.StatusOK)
}

// List handles GET /api/workspaces
func (h *WorkspaceHandler) List(c *gin.Context) {
	workspaces, err := h.credStore.ListWorkspaces(c.Request.Context(), userID(c))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list workspaces"})
		return
	}

	responses := make([]WorkspaceResponse, 0, len(workspaces))
	for _, ws := range workspaces {
		responses = append(responses, toWorkspaceResponse(ws))
	}
	c.JSON(http.StatusOK, responses)
}

// Delete handles DELETE /api/workspaces/:id
func (h *WorkspaceHandler) Delete(c *gin.Context) {
	if rejectDefault(c, c.Param("id")) {
		return
	}
	err := h.credStore.DeleteCredentials(c.Request.Context(), userID(c), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "workspace not found"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete workspace"})
		return
	}
	c.Status(http.StatusNoContent)
}
