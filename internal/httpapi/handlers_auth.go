package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Marnel8/tracesys-sub003/internal/auth"
)

func (s *Server) createInvitation(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required,email"`
		PracticumID string `json:"practicumId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := s.practicums.Get(c.Request.Context(), req.PracticumID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "practicum not found"})
		return
	}
	if p.Archived() {
		c.JSON(http.StatusConflict, gin.H{"error": "practicum is archived"})
		return
	}

	token, exp, err := auth.IssueInvite(strings.ToLower(req.Email), p.ID, s.cfg.JWTIssuer, s.cfg.JWTSigningKey, s.cfg.InviteTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invitation issue failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token":      token,
		"expires_at": exp.Unix(),
	})
}

func (s *Server) acceptInvitation(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims, err := auth.ParseInvite(req.Token, s.cfg.JWTSigningKey, s.cfg.JWTIssuer)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid invitation"})
		return
	}

	p, err := s.practicums.Get(c.Request.Context(), claims.PracticumID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "practicum not found"})
		return
	}
	if p.Archived() {
		c.JSON(http.StatusConflict, gin.H{"error": "practicum is archived"})
		return
	}
	if !strings.EqualFold(p.StudentEmail, claims.Email) {
		c.JSON(http.StatusForbidden, gin.H{"error": "invitation email mismatch"})
		return
	}

	tokens, err := auth.Issue(p.StudentID, auth.RoleStudent, s.cfg.JWTIssuer, s.cfg.JWTSigningKey, s.cfg.AccessTTL, s.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}

	_ = s.authRepo.SaveRefreshToken(c.Request.Context(), p.StudentID, tokens.RefreshToken, tokens.RefreshExp)

	c.JSON(http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
		"practicum_id":  p.ID,
	})
}

func (s *Server) refreshTokens(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims, err := auth.Parse(req.RefreshToken, s.cfg.JWTSigningKey, s.cfg.JWTIssuer)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	valid, err := s.authRepo.ValidRefreshToken(c.Request.Context(), claims.Subject, req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
		return
	}
	if !valid {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token revoked or expired"})
		return
	}

	tokens, err := auth.Issue(claims.Subject, claims.Role, s.cfg.JWTIssuer, s.cfg.JWTSigningKey, s.cfg.AccessTTL, s.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}

	// Rotation: the presented token is spent.
	_ = s.authRepo.RevokeRefreshToken(c.Request.Context(), req.RefreshToken)
	_ = s.authRepo.SaveRefreshToken(c.Request.Context(), claims.Subject, tokens.RefreshToken, tokens.RefreshExp)

	c.JSON(http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}
