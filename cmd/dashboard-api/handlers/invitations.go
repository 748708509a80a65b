package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/providentiaww/dashboard-tracker/internal/invite"
)

// InvitationHandler issues and redeems workspace invitations
type InvitationHandler struct {
	svc *invite.Service
}

// NewInvitationHandler creates a new invitation handler
func NewInvitationHandler(svc *invite.Service) *InvitationHandler {
	return &InvitationHandler{svc: svc}
}

// InvitationRequest is the body of POST /api/invitations
type InvitationRequest struct {
	WorkspaceID string `json:"workspaceId" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Role        string `json:"role" binding:"omitempty,oneof=admin member viewer"`
}

func (h *InvitationHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, invite.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid invitation token"})
	case errors.Is(err, invite.ErrTokenConsumed):
		c.JSON(http.StatusGone, gin.H{"error": "invitation already used or revoked"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invitation store unavailable"})
	}
}

// Issue handles POST /api/invitations
func (h *InvitationHandler) Issue(c *gin.Context) {
	var req InvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, inv, err := h.svc.Issue(c.Request.Context(), req.WorkspaceID, req.Email, req.Role, userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "invitation": inv})
}

// Lookup handles GET /api/invitations/:token
func (h *InvitationHandler) Lookup(c *gin.Context) {
	inv, err := h.svc.Lookup(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// Redeem handles POST /api/invitations/:token/redeem
func (h *InvitationHandler) Redeem(c *gin.Context) {
	inv, err := h.svc.Redeem(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// Extend handles POST /api/invitations/:token/extend
func (h *InvitationHandler) Extend(c *gin.Context) {
	token, inv, err := h.svc.Extend(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "invitation": inv})
}

// Revoke handles DELETE /api/invitations/:token
func (h *InvitationHandler) Revoke(c *gin.Context) {
	if err := h.svc.Revoke(c.Request.Context(), c.Param("token")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
