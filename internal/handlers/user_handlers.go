package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prpm-dev/registry/internal/auth"
	"github.com/prpm-dev/registry/internal/models"
)

// RegisterInput holds the fields we accept from a new user. Kept separate
// from models.User so clients can never set IDs or internal fields.
type RegisterInput struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"displayName" binding:"required"`
}

// Register is the handler for POST /v1/register.
func (h *Handlers) Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
		return
	}

	var password models.Password
	if err := password.Set(input.Password); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to hash password"})
		return
	}

	user := &models.User{
		Email:        input.Email,
		PasswordHash: password.Hash,
		DisplayName:  input.DisplayName,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	query := `
		INSERT INTO users (email, password_hash, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`

	res, err := h.DB.Exec(query, user.Email, user.PasswordHash, user.DisplayName, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "Duplicate entry") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": "Email is already registered"})
			return
		}
		h.respondError(c, err)
		return
	}
	user.ID, _ = res.LastInsertId()

	// New users start at zero; grants arrive via billing.
	if err := h.Ledger.EnsureBalance(c.Request.Context(), user.ID); err != nil {
		h.Log.WithError(err).WithField("user", user.ID).Warn("failed to create balance row")
	}

	token, err := auth.GenerateToken(user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
}

// LoginInput is the credential pair for POST /v1/login.
type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login is the handler for POST /v1/login.
func (h *Handlers) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
		return
	}

	user := &models.User{}
	query := `SELECT id, email, password_hash, display_name FROM users WHERE email = ?`
	err := h.DB.QueryRow(query, input.Email).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Same message as a bad password so the endpoint doesn't reveal
			// which emails exist.
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Invalid email or password"})
			return
		}
		h.respondError(c, err)
		return
	}

	password := models.Password{Hash: user.PasswordHash}
	match, err := password.Matches(input.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !match {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Invalid email or password"})
		return
	}

	token, err := auth.GenerateToken(user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}
