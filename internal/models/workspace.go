package models

import "time"

// WorkspaceCredentials holds the decrypted connection values for one
// Atlassian site.
type WorkspaceCredentials struct {
	Site  string `json:"site"`
	Email string `json:"email"`
	Token string `json:"-"`
}

// AtlassianCredential is a stored workspace connection owned by a user
type AtlassianCredential struct {
	UserID        string    `json:"user_id"`
	WorkspaceID   string    `json:"workspace_id"`
	WorkspaceName string    `json:"workspace_name"`
	AtlassianURL  string    `json:"atlassian_url"`
	Email         string    `json:"email"`
	APIToken      string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
