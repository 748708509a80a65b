package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/providentiaww/dashboard-tracker/internal/models"
)

// DefaultWorkspaceID names the workspace configured through JIRA_* env vars
const DefaultWorkspaceID = "default"

// ErrNotFound is returned when no credentials exist for a user/workspace
var ErrNotFound = errors.New("credentials not found")

// CredentialStoreInterface defines the interface for credential storage
type CredentialStoreInterface interface {
	GetCredentials(ctx context.Context, userID, workspaceID string) (*models.WorkspaceCredentials, error)
	SaveCredentials(ctx context.Context, cred *models.AtlassianCredential) error
	DeleteCredentials(ctx context.Context, userID, workspaceID string) error
	ListWorkspaces(ctx context.Context, userID string) ([]models.AtlassianCredential, error)
	Ping(ctx context.Context) error
	Close() error
}

// NewCredentialStoreFromEnv creates a credential store based on environment variables.
// If WORKSPACES_FILE is set, uses file-based storage.
// Otherwise, uses PostgreSQL storage (requires DATABASE_URL and API_KEY_ENCRYPTION_KEY).
func NewCredentialStoreFromEnv(ctx context.Context) (CredentialStoreInterface, error) {
	if workspacesFile := os.Getenv("WORKSPACES_FILE"); workspacesFile != "" {
		store, err := NewFileCredentialStore(workspacesFile)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("either WORKSPACES_FILE or DATABASE_URL must be set")
	}

	encryptionKey := os.Getenv("API_KEY_ENCRYPTION_KEY")
	if encryptionKey == "" {
		return nil, fmt.Errorf("API_KEY_ENCRYPTION_KEY is required when using database storage")
	}

	store, err := NewPostgresCredentialStore(ctx, databaseURL, encryptionKey)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// defaultingStore answers lookups of the default workspace from fixed
// credentials when the wrapped store has none.
type defaultingStore struct {
	CredentialStoreInterface
	fallback models.WorkspaceCredentials
}

// WithDefaultWorkspace wraps base so that requests naming no workspace, or
// DefaultWorkspaceID, resolve to fallback. base may be nil, in which case
// only the default workspace is known.
func WithDefaultWorkspace(base CredentialStoreInterface, fallback models.WorkspaceCredentials) CredentialStoreInterface {
	return &defaultingStore{CredentialStoreInterface: base, fallback: fallback}
}

func (s *defaultingStore) GetCredentials(ctx context.Context, userID, workspaceID string) (*models.WorkspaceCredentials, error) {
	if s.CredentialStoreInterface != nil {
		creds, err := s.CredentialStoreInterface.GetCredentials(ctx, userID, workspaceID)
		if !errors.Is(err, ErrNotFound) {
			return creds, err
		}
	}

	id := strings.TrimSpace(workspaceID)
	if (id == "" || id == DefaultWorkspaceID) && s.fallback.Site != "" {
		creds := s.fallback
		return &creds, nil
	}
	return nil, ErrNotFound
}

func (s *defaultingStore) SaveCredentials(ctx context.Context, cred *models.AtlassianCredential) error {
	if s.CredentialStoreInterface == nil {
		return errors.New("no credential store configured")
	}
	return s.CredentialStoreInterface.SaveCredentials(ctx, cred)
}

func (s *defaultingStore) DeleteCredentials(ctx context.Context, userID, workspaceID string) error {
	if s.CredentialStoreInterface == nil {
		return ErrNotFound
	}
	return s.CredentialStoreInterface.DeleteCredentials(ctx, userID, workspaceID)
}

func (s *defaultingStore) ListWorkspaces(ctx context.Context, userID string) ([]models.AtlassianCredential, error) {
	if s.CredentialStoreInterface == nil {
		return nil, nil
	}
	return s.CredentialStoreInterface.ListWorkspaces(ctx, userID)
}

func (s *defaultingStore) Ping(ctx context.Context) error {
	if s.CredentialStoreInterface == nil {
		return nil
	}
	return s.CredentialStoreInterface.Ping(ctx)
}

func (s *defaultingStore) Close() error {
	if s.CredentialStoreInterface == nil {
		return nil
	}
	return s.CredentialStoreInterface.Close()
}
