package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/providentiaww/dashboard-tracker/internal/crypto"
	"github.com/providentiaww/dashboard-tracker/internal/logger"
	"github.com/providentiaww/dashboard-tracker/internal/models"
)

// PostgresCredentialStore keeps workspace credentials in Postgres with the
// API token sealed by internal/crypto.
type PostgresCredentialStore struct {
	db            *sql.DB
	encryptionKey string
}

// NewPostgresCredentialStore connects, checks the connection and creates the
// schema if needed.
func NewPostgresCredentialStore(ctx context.Context, connectionString, encryptionKey string) (*PostgresCredentialStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	logger.GetLogger().Info("connected to postgres credential store")

	store := &PostgresCredentialStore{
		db:            db,
		encryptionKey: encryptionKey,
	}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *PostgresCredentialStore) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS atlassian_credentials (
		user_id VARCHAR(255) NOT NULL,
		workspace_id VARCHAR(255) NOT NULL,
		workspace_name VARCHAR(255) NOT NULL,
		atlassian_url VARCHAR(500) NOT NULL,
		email VARCHAR(255) NOT NULL,
		api_token_encrypted TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, workspace_id)
	);

	CREATE INDEX IF NOT EXISTS idx_atlassian_credentials_user_id ON atlassian_credentials(user_id);
	`

	_, err := s.db.ExecContext(ctx, query)
	return err
}

// GetCredentials retrieves and decrypts credentials for a user/workspace
func (s *PostgresCredentialStore) GetCredentials(ctx context.Context, userID, workspaceID string) (*models.WorkspaceCredentials, error) {
	var encryptedToken, atlassianURL, email string

	query := `
		SELECT atlassian_url, email, api_token_encrypted
		FROM atlassian_credentials
		WHERE user_id = $1 AND workspace_id = $2
	`

	err := s.db.QueryRowContext(ctx, query, userID, workspaceID).Scan(&atlassianURL, &email, &encryptedToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}

	token, err := crypto.Decrypt(encryptedToken, s.encryptionKey)
	if err != nil {
		logger.GetLogger().Error("stored api token could not be decrypted",
			zap.String("user_id", userID),
			zap.String("workspace_id", workspaceID),
			zap.Error(err),
		)
		return nil, err
	}

	return &models.WorkspaceCredentials{
		Site:  atlassianURL,
		Email: email,
		Token: token,
	}, nil
}

// SaveCredentials encrypts and upserts credentials
func (s *PostgresCredentialStore) SaveCredentials(ctx context.Context, cred *models.AtlassianCredential) error {
	encryptedToken, err := crypto.Encrypt(cred.APIToken, s.encryptionKey)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO atlassian_credentials
			(user_id, workspace_id, workspace_name, atlassian_url, email, api_token_encrypted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, workspace_id)
		DO UPDATE SET
			workspace_name = EXCLUDED.workspace_name,
			atlassian_url = EXCLUDED.atlassian_url,
			email = EXCLUDED.email,
			api_token_encrypted = EXCLUDED.api_token_encrypted,
			updated_at = EXCLUDED.updated_at
	`

	now := time.Now().UTC()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, query,
		cred.UserID,
		cred.WorkspaceID,
		cred.WorkspaceName,
		cred.AtlassianURL,
		cred.Email,
		encryptedToken,
		cred.CreatedAt,
		cred.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// DeleteCredentials removes credentials for a user/workspace
func (s *PostgresCredentialStore) DeleteCredentials(ctx context.Context, userID, workspaceID string) error {
	query := `
		DELETE FROM atlassian_credentials
		WHERE user_id = $1 AND workspace_id = $2
	`

	res, err := s.db.ExecContext(ctx, query, userID, workspaceID)
	if err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListWorkspaces returns all workspaces for a user
func (s *PostgresCredentialStore) ListWorkspaces(ctx context.Context, userID string) ([]models.AtlassianCredential, error) {
	query := `
		SELECT user_id, workspace_id, workspace_name, atlassian_url, email, created_at, updated_at
		FROM atlassian_credentials
		WHERE user_id = $1
		ORDER BY workspace_name
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()

	var credentials []models.AtlassianCredential
	for rows.Next() {
		var cred models.AtlassianCredential
		if err := rows.Scan(
			&cred.UserID,
			&cred.WorkspaceID,
			&cred.WorkspaceName,
			&cred.AtlassianURL,
			&cred.Email,
			&cred.CreatedAt,
			&cred.UpdatedAt,
		); err != nil {
			return nil, err
		}
		credentials = append(credentials, cred)
	}
	return credentials, rows.Err()
}

// Ping tests the database connection
func (s *PostgresCredentialStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresCredentialStore) Close() error {
	return s.db.Close()
}
