package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/providentiaww/dashboard-tracker/internal/models"
)

// WorkspaceConfig is one entry of workspaces.json
type WorkspaceConfig struct {
	ID        string    `json:"id,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	Name      string    `json:"name"`
	BaseURL   string    `json:"baseUrl"`
	Email     string    `json:"email"`
	APIToken  string    `json:"apiToken"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// FileCredentialStore keeps workspace credentials in a JSON file and picks
// up edits made to the file while running. Entries without a userId are
// shared by every user.
type FileCredentialStore struct {
	filePath    string
	workspaces  map[string]WorkspaceConfig // by ID, or by name when ID is missing
	lastModTime time.Time
	mu          sync.RWMutex
}

// NewFileCredentialStore creates a new file-based credential store
func NewFileCredentialStore(filePath string) (*FileCredentialStore, error) {
	store := &FileCredentialStore{
		filePath:   filePath,
		workspaces: make(map[string]WorkspaceConfig),
	}

	if err := store.loadWorkspaces(); err != nil {
		return nil, fmt.Errorf("failed to load workspaces: %w", err)
	}
	return store, nil
}

func (s *FileCredentialStore) loadWorkspaces() error {
	absPath, err := filepath.Abs(s.filePath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(absPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read workspaces file: %w", err)
	}

	var workspaces []WorkspaceConfig
	if len(data) > 0 {
		if err := json.Unmarshal(data, &workspaces); err != nil {
			return fmt.Errorf("failed to parse workspaces JSON: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.workspaces = make(map[string]WorkspaceConfig, len(workspaces))
	for _, ws := range workspaces {
		id := ws.ID
		if id == "" {
			id = ws.Name
		}
		s.workspaces[id] = ws
	}

	if stat, err := os.Stat(absPath); err == nil {
		s.lastModTime = stat.ModTime()
	}
	return nil
}

func (s *FileCredentialStore) saveToFile() error {
	s.mu.RLock()
	list := make([]WorkspaceConfig, 0, len(s.workspaces))
	for _, ws := range s.workspaces {
		list = append(list, ws)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(s.filePath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(absPath, data, 0o600); err != nil {
		return err
	}

	if stat, err := os.Stat(absPath); err == nil {
		s.mu.Lock()
		s.lastModTime = stat.ModTime()
		s.mu.Unlock()
	}
	return nil
}

func ownedBy(ws WorkspaceConfig, userID string) bool {
	return ws.UserID == "" || userID == "" || ws.UserID == userID
}

// GetCredentials retrieves credentials for a user/workspace
func (s *FileCredentialStore) GetCredentials(_ context.Context, userID, workspaceID string) (*models.WorkspaceCredentials, error) {
	s.checkAndReload()

	s.mu.RLock()
	ws, exists := s.workspaces[workspaceID]
	s.mu.RUnlock()

	if !exists || !ownedBy(ws, userID) {
		return nil, ErrNotFound
	}

	return &models.WorkspaceCredentials{
		Site:  ws.BaseURL,
		Email: ws.Email,
		Token: ws.APIToken,
	}, nil
}

// SaveCredentials adds or replaces a workspace and rewrites the file
func (s *FileCredentialStore) SaveCredentials(_ context.Context, cred *models.AtlassianCredential) error {
	s.checkAndReload()

	id := cred.WorkspaceID
	if id == "" {
		id = cred.WorkspaceName
	}

	now := time.Now().UTC()
	s.mu.Lock()
	created := now
	if existing, ok := s.workspaces[id]; ok && !existing.CreatedAt.IsZero() {
		created = existing.CreatedAt
	}
	s.workspaces[id] = WorkspaceConfig{
		ID:        id,
		UserID:    cred.UserID,
		Name:      cred.WorkspaceName,
		BaseURL:   cred.AtlassianURL,
		Email:     cred.Email,
		APIToken:  cred.APIToken,
		CreatedAt: created,
		UpdatedAt: now,
	}
	s.mu.Unlock()

	cred.WorkspaceID = id
	cred.CreatedAt = created
	cred.UpdatedAt = now
	return s.saveToFile()
}

// DeleteCredentials removes credentials from the file
func (s *FileCredentialStore) DeleteCredentials(_ context.Context, userID, workspaceID string) error {
	s.checkAndReload()

	s.mu.Lock()
	ws, exists := s.workspaces[workspaceID]
	if !exists || !ownedBy(ws, userID) {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.workspaces, workspaceID)
	s.mu.Unlock()

	return s.saveToFile()
}

// ListWorkspaces returns the workspaces visible to userID, sorted by name.
// Tokens are left out.
func (s *FileCredentialStore) ListWorkspaces(_ context.Context, userID string) ([]models.AtlassianCredential, error) {
	s.checkAndReload()

	s.mu.RLock()
	defer s.mu.RUnlock()

	credentials := make([]models.AtlassianCredential, 0, len(s.workspaces))
	for id, ws := range s.workspaces {
		if !ownedBy(ws, userID) {
			continue
		}
		credentials = append(credentials, models.AtlassianCredential{
			UserID:        ws.UserID,
			WorkspaceID:   id,
			WorkspaceName: ws.Name,
			AtlassianURL:  ws.BaseURL,
			Email:         ws.Email,
			CreatedAt:     ws.CreatedAt,
			UpdatedAt:     ws.UpdatedAt,
		})
	}
	sort.Slice(credentials, func(i, j int) bool {
		return credentials[i].WorkspaceName < credentials[j].WorkspaceName
	})
	return credentials, nil
}

// Ping is a no-op for file-based storage
func (s *FileCredentialStore) Ping(context.Context) error {
	return nil
}

// Close is a no-op for file-based storage
func (s *FileCredentialStore) Close() error {
	return nil
}

// checkAndReload reloads the file when it changed on disk since the last read
func (s *FileCredentialStore) checkAndReload() {
	absPath, err := filepath.Abs(s.filePath)
	if err != nil {
		return
	}
	stat, err := os.Stat(absPath)
	if err != nil {
		return
	}

	s.mu.RLock()
	lastMod := s.lastModTime
	s.mu.RUnlock()

	if stat.ModTime().After(lastMod) {
		_ = s.loadWorkspaces()
	}
}
