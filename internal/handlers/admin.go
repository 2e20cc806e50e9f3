package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Moaaz208/Mizo-Candle/internal/models"
	"github.com/Moaaz208/Mizo-Candle/internal/services"
	"github.com/Moaaz208/Mizo-Candle/pkg/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// SiteEditor is the admin's view of the site config and catalog.
type SiteEditor interface {
	SiteConfig() models.SiteConfig
	UpdateFields(ctx context.Context, fields map[string]interface{}) (models.SiteConfig, error)
	GenerateHeroCopy(ctx context.Context) models.SiteConfig
	ListProducts() []services.ProductView
	AddProduct(ctx context.Context, in services.NewProduct) (models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	DescribeProduct(ctx context.Context, name, category string) string
	VisitorLogs(ctx context.Context) []models.VisitorLog
}

// AdminHandler serves the site config editor, the catalog manager and the
// visitor monitor. All routes require an authenticated session.
type AdminHandler struct {
	editor SiteEditor
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(editor SiteEditor) *AdminHandler {
	return &AdminHandler{editor: editor}
}

type describeRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// DescribeResponse carries a generated product description.
type DescribeResponse struct {
	Description string `json:"description"`
}

// GetConfig returns the full site config, passcode included.
func (h *AdminHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, r, http.StatusOK, h.editor.SiteConfig())
}

// UpdateConfig applies a partial update, e.g. {"siteName":"Nour"}. The whole
// batch is rejected if any field is unknown or invalid, and the change
// applies to every session immediately.
func (h *AdminHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var fields map[string]interface{}
	if err := utils.DecodeJSON(r, &fields); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(fields) == 0 {
		utils.RespondWithError(w, r, http.StatusBadRequest, "No fields to update")
		return
	}

	cfg, err := h.editor.UpdateFields(r.Context(), fields)
	if err != nil {
		respondEditorError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, cfg)
}

// GenerateHeroCopy asks the AI for a new hero title and subtitle and saves
// them. It always succeeds; the AI fallbacks are used on failure.
func (h *AdminHandler) GenerateHeroCopy(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, r, http.StatusOK, h.editor.GenerateHeroCopy(r.Context()))
}

// ListProducts returns the catalog with final prices.
func (h *AdminHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, r, http.StatusOK, h.editor.ListProducts())
}

// AddProduct appends a product. Missing optional fields take the catalog
// defaults.
func (h *AdminHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req services.NewProduct
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.editor.AddProduct(r.Context(), req)
	if err != nil {
		respondEditorError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusCreated, product)
}

// DeleteProduct removes a product by ID.
func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.editor.DeleteProduct(r.Context(), id); err != nil {
		respondEditorError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DescribeProduct drafts a marketing description for the add-product form.
func (h *AdminHandler) DescribeProduct(w http.ResponseWriter, r *http.Request) {
	var req describeRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Product name is required")
		return
	}

	utils.RespondWithJSON(w, r, http.StatusOK, DescribeResponse{
		Description: h.editor.DescribeProduct(r.Context(), req.Name, req.Category),
	})
}

// Visitors returns the visitor log, newest first, one page at a time.
//
// Query parameters: page (default 1), page_size (default 20, max 100).
func (h *AdminHandler) Visitors(w http.ResponseWriter, r *http.Request) {
	params := utils.ParsePageParams(r)
	logs := h.editor.VisitorLogs(r.Context())

	utils.RespondWithJSON(w, r, http.StatusOK, utils.Paginate(logs, params))
}

func respondEditorError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrUnknownField):
		utils.RespondWithErrorCode(w, r, http.StatusBadRequest, "unknown_field", err.Error())
	case errors.Is(err, services.ErrInvalidValue):
		utils.RespondWithErrorCode(w, r, http.StatusBadRequest, "invalid_value", err.Error())
	case errors.Is(err, services.ErrInvalidPasscode):
		utils.RespondWithErrorCode(w, r, http.StatusBadRequest, "invalid_passcode", err.Error())
	case errors.Is(err, services.ErrInvalidProduct):
		utils.RespondWithErrorCode(w, r, http.StatusBadRequest, "invalid_product", err.Error())
	case errors.Is(err, services.ErrProductNotFound):
		utils.RespondWithErrorCode(w, r, http.StatusNotFound, "product_not_found", err.Error())
	default:
		log.Error().Err(err).Str("request_id", utils.GetRequestID(r.Context())).Msg("Site editor failed")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Failed to save changes")
	}
}
