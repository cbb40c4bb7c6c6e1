package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yashgoel75/cleit-cdc/internal/auth/credentials"
	"github.com/yashgoel75/cleit-cdc/internal/logger"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	userID, err := h.credentials.Register(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, credentials.ErrAlreadyRegistered):
		c.JSON(http.StatusConflict, gin.H{"error": "account already exists"})
		return
	case errors.Is(err, credentials.ErrPasswordTooShort), errors.Is(err, credentials.ErrInvalidEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		logger.Error("registration failed", map[string]any{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	if _, ok := h.startSession(c, userID, req.Email); !ok {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "registered"})
}
