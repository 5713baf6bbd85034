package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"

	"github.com/prpm-dev/registry/internal/credits"
	"github.com/prpm-dev/registry/internal/models"
)

// ErrPackageNotFound is returned when a package id or slug resolves to
// nothing.
var ErrPackageNotFound = errors.New("package not found")

// CreatePackageInput holds the fields a publisher submits.
type CreatePackageInput struct {
	Name         string `json:"name" binding:"required,min=3"`
	Description  string `json:"description"`
	SystemPrompt string `json:"systemPrompt" binding:"required"`
	DefaultModel string `json:"defaultModel"`
}

// CreatePackage is the handler for POST /v1/packages.
func (h *Handlers) CreatePackage(c *gin.Context) {
	userID := c.GetInt64("userID")

	var input CreatePackageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
		return
	}

	if input.DefaultModel == "" {
		input.DefaultModel = credits.CheapestModel()
	}
	if !credits.KnownModel(input.DefaultModel) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": fmt.Sprintf("unknown model %q", input.DefaultModel)})
		return
	}

	pkg := &models.PromptPackage{
		OwnerID:      userID,
		Name:         input.Name,
		Slug:         slug.Make(input.Name),
		Description:  input.Description,
		SystemPrompt: input.SystemPrompt,
		DefaultModel: input.DefaultModel,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	query := `
		INSERT INTO packages (owner_id, name, slug, description, system_prompt, default_model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := h.DB.Exec(query, pkg.OwnerID, pkg.Name, pkg.Slug, pkg.Description,
		pkg.SystemPrompt, pkg.DefaultModel, pkg.CreatedAt, pkg.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "Duplicate entry") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": "A package with that name already exists"})
			return
		}
		h.respondError(c, err)
		return
	}
	pkg.ID, _ = res.LastInsertId()

	c.JSON(http.StatusCreated, gin.H{"package": pkg})
}

// GetPackageBySlug is the handler for GET /v1/packages/:slug.
func (h *Handlers) GetPackageBySlug(c *gin.Context) {
	pkg, err := h.packageBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"package": pkg})
}

// SearchPackages is the handler for GET /v1/packages/search?q=.
func (h *Handlers) SearchPackages(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))

	query := `
		SELECT id, owner_id, name, slug, description, system_prompt, default_model, created_at, updated_at
		FROM packages
		WHERE name LIKE ? OR description LIKE ?
		ORDER BY name
		LIMIT 50`

	pattern := "%" + q + "%"
	rows, err := h.DB.QueryContext(c.Request.Context(), query, pattern, pattern)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer rows.Close()

	packages := []models.PromptPackage{}
	for rows.Next() {
		var pkg models.PromptPackage
		if err := rows.Scan(&pkg.ID, &pkg.OwnerID, &pkg.Name, &pkg.Slug, &pkg.Description,
			&pkg.SystemPrompt, &pkg.DefaultModel, &pkg.CreatedAt, &pkg.UpdatedAt); err != nil {
			h.respondError(c, err)
			return
		}
		packages = append(packages, pkg)
	}

	c.JSON(http.StatusOK, gin.H{"packages": packages})
}

// packageByID resolves a package for a playground run.
func (h *Handlers) packageByID(ctx context.Context, id int64) (*models.PromptPackage, error) {
	return h.scanPackage(h.DB.QueryRowContext(ctx, `
		SELECT id, owner_id, name, slug, description, system_prompt, default_model, created_at, updated_at
		FROM packages WHERE id = ?`, id))
}

func (h *Handlers) packageBySlug(ctx context.Context, s string) (*models.PromptPackage, error) {
	return h.scanPackage(h.DB.QueryRowContext(ctx, `
		SELECT id, owner_id, name, slug, description, system_prompt, default_model, created_at, updated_at
		FROM packages WHERE slug = ?`, s))
}

func (h *Handlers) scanPackage(row *sql.Row) (*models.PromptPackage, error) {
	pkg := &models.PromptPackage{}
	err := row.Scan(&pkg.ID, &pkg.OwnerID, &pkg.Name, &pkg.Slug, &pkg.Description,
		&pkg.SystemPrompt, &pkg.DefaultModel, &pkg.CreatedAt, &pkg.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("failed to load package: %w", err)
	}
	return pkg, nil
}
