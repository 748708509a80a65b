// Package invite issues one-time workspace invitations. The token handed to
// the invitee is a signed JWT; the invitation itself lives in a keystore
// under the token id until it is redeemed or expires.
package invite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/providentiaww/dashboard-tracker/internal/keystore"
	"github.com/providentiaww/dashboard-tracker/internal/logger"
)

const issuer = "dashboard-tracker"

var (
	// ErrInvalidToken covers bad signatures, malformed and expired tokens
	ErrInvalidToken = errors.New("invalid invitation token")
	// ErrTokenConsumed means the token was valid but already redeemed or revoked
	ErrTokenConsumed = errors.New("invitation already used")
)

// Invitation is the record stored for an outstanding invite
type Invitation struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Email       string    `json:"email"`
	Role        string    `json:"role,omitempty"`
	InvitedBy   string    `json:"invited_by"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Claims are carried in the invitation JWT
type Claims struct {
	jwt.RegisteredClaims
	WorkspaceID string `json:"workspace_id"`
}

// Service issues and redeems invitations
type Service struct {
	store  keystore.Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	log    *zap.Logger
}

// NewService creates an invitation service signing with secret (HS256)
func NewService(store keystore.Store, secret string, ttl time.Duration) (*Service, error) {
	if store == nil {
		return nil, errors.New("invitation store is required")
	}
	if secret == "" {
		return nil, errors.New("invitation signing secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("invitation ttl must be positive, got %s", ttl)
	}
	return &Service{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		log:    logger.GetLogger().Named("invite"),
	}, nil
}

func storeKey(id string) string {
	return "invite:" + id
}

// Issue records a new invitation and returns its signed token
func (s *Service) Issue(ctx context.Context, workspaceID, email, role, invitedBy string) (string, *Invitation, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	email = strings.TrimSpace(email)
	if workspaceID == "" || email == "" {
		return "", nil, errors.New("workspace id and email are required")
	}

	now := s.now().UTC()
	inv := &Invitation{
		ID:          uuid.New().String(),
		WorkspaceID: workspaceID,
		Email:       email,
		Role:        role,
		InvitedBy:   invitedBy,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	token, err := s.sign(inv, now)
	if err != nil {
		return "", nil, err
	}

	payload, err := json.Marshal(inv)
	if err != nil {
		return "", nil, err
	}
	if err := s.store.Put(ctx, storeKey(inv.ID), payload, s.ttl); err != nil {
		return "", nil, fmt.Errorf("failed to store invitation: %w", err)
	}

	s.log.Info("invitation issued",
		zap.String("invitation_id", inv.ID),
		zap.String("workspace_id", workspaceID),
		zap.String("invited_by", invitedBy),
	)
	return token, inv, nil
}

func (s *Service) sign(inv *Invitation, issuedAt time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        inv.ID,
			Issuer:    issuer,
			Subject:   inv.Email,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(inv.ExpiresAt),
		},
		WorkspaceID: inv.WorkspaceID,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign invitation: %w", err)
	}
	return token, nil
}

// parse verifies the token and returns its claims
func (s *Service) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// decode reads a stored record. The record is never rewritten after Issue,
// so the expiry reported is the one carried by the presented token.
func (s *Service) decode(payload []byte, claims *Claims) (*Invitation, error) {
	var inv Invitation
	if err := json.Unmarshal(payload, &inv); err != nil {
		return nil, fmt.Errorf("corrupt invitation record: %w", err)
	}
	if claims.ExpiresAt != nil {
		inv.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return &inv, nil
}

// Lookup returns the pending invitation for a token without consuming it
func (s *Service) Lookup(ctx context.Context, token string) (*Invitation, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	payload, err := s.store.Get(ctx, storeKey(claims.ID))
	if errors.Is(err, keystore.ErrNotFound) {
		return nil, ErrTokenConsumed
	}
	if err != nil {
		return nil, err
	}
	return s.decode(payload, claims)
}

// Redeem consumes the invitation. Only one concurrent caller can succeed.
func (s *Service) Redeem(ctx context.Context, token string) (*Invitation, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	payload, err := s.store.Take(ctx, storeKey(claims.ID))
	if errors.Is(err, keystore.ErrNotFound) {
		return nil, ErrTokenConsumed
	}
	if err != nil {
		return nil, err
	}

	inv, err := s.decode(payload, claims)
	if err != nil {
		return nil, err
	}
	s.log.Info("invitation redeemed",
		zap.String("invitation_id", inv.ID),
		zap.String("workspace_id", inv.WorkspaceID),
	)
	return inv, nil
}

// Extend pushes the expiry of a pending invitation out by another full TTL
// and returns a fresh token carrying the new expiry. Only the key's TTL
// changes; the stored record is never rewritten.
func (s *Service) Extend(ctx context.Context, token string) (string, *Invitation, error) {
	inv, err := s.Lookup(ctx, token)
	if err != nil {
		return "", nil, err
	}
	if err := s.store.Expire(ctx, storeKey(inv.ID), s.ttl); err != nil {
		if errors.Is(err, keystore.ErrNotFound) {
			return "", nil, ErrTokenConsumed
		}
		return "", nil, err
	}

	now := s.now().UTC()
	inv.ExpiresAt = now.Add(s.ttl)
	fresh, err := s.sign(inv, now)
	if err != nil {
		return "", nil, err
	}
	return fresh, inv, nil
}

// Revoke deletes a pending invitation
func (s *Service) Revoke(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, storeKey(claims.ID))
}
