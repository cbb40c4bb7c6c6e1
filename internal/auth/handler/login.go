package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yashgoel75/cleit-cdc/internal/auth/credentials"
	"github.com/yashgoel75/cleit-cdc/internal/logger"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	userID, err := h.credentials.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, credentials.ErrInvalidCredentials) {
			logger.Error("password login failed", map[string]any{"error": err.Error()})
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if _, ok := h.startSession(c, userID, req.Email); !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_in"})
}
