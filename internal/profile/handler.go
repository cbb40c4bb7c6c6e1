package profile

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yashgoel75/cleit-cdc/internal/logger"
	"github.com/yashgoel75/cleit-cdc/internal/middleware"
	"github.com/yashgoel75/cleit-cdc/internal/session"
	"github.com/yashgoel75/cleit-cdc/internal/token"
)

// Handler serves the profile API.
type Handler struct {
	store Store
	bus   session.Bus
}

func NewHandler(store Store, bus session.Bus) *Handler {
	return &Handler{store: store, bus: bus}
}

// RegisterRoutes mounts GET and PUT /api/user behind the bearer middleware.
func (h *Handler) RegisterRoutes(r gin.IRouter, bearer gin.HandlerFunc) {
	g := r.Group("/api/user", bearer)
	g.GET("", h.get)
	g.PUT("", h.update)
}

func (h *Handler) get(c *gin.Context) {
	email := NormalizeEmail(c.Query("email"))
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}

	claims, ok := middleware.ClaimsFromGin(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if !strings.EqualFold(claims.Email, email) && claims.Scope != token.ScopeService {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	p, err := h.store.Get(c.Request.Context(), email)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		logger.Error("profile lookup failed", map[string]any{"error": err})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": p})
}

type updateRequest struct {
	Name             string `json:"name"`
	EnrollmentNumber string `json:"enrollmentNumber"`
	Department       string `json:"department"`
	Batch            string `json:"batch"`
	Phone            string `json:"phone"`
}

func (h *Handler) update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	claims, ok := middleware.ClaimsFromGin(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	p := Profile{
		Email:            NormalizeEmail(claims.Email),
		Name:             strings.TrimSpace(req.Name),
		EnrollmentNumber: strings.TrimSpace(req.EnrollmentNumber),
		Department:       strings.TrimSpace(req.Department),
		Batch:            strings.TrimSpace(req.Batch),
		Phone:            strings.TrimSpace(req.Phone),
		UpdatedAt:        time.Now().UTC(),
	}
	p.IsProfileComplete = p.Complete()

	err := h.store.Upsert(c.Request.Context(), p)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		logger.Error("profile update failed", map[string]any{"error": err})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save profile"})
		return
	}

	session.Emit(c.Request.Context(), h.bus, session.Event{
		Kind:  session.EventProfileChanged,
		Email: p.Email,
	})

	logger.Info("profile updated", map[string]any{
		"email":    p.Email,
		"complete": p.IsProfileComplete,
	})
	c.JSON(http.StatusOK, gin.H{"user": p})
}
