package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pr0br0/cyboard/internal/api/middleware"
	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/services"
)

// RestCategoryHandler serves the category tree. Writes require CapManageCategories.
type RestCategoryHandler struct {
	categoryService services.ICategoryService
	resp            Responder
}

func NewRestCategoryHandler(categoryService services.ICategoryService, resp Responder) *RestCategoryHandler {
	return &RestCategoryHandler{categoryService: categoryService, resp: resp}
}

// categoryView adds the name in the requested language.
type categoryView struct {
	*models.Category
	DisplayName string `json:"displayName,omitempty"`
}

type categoryNodeView struct {
	*models.Category
	DisplayName string             `json:"displayName,omitempty"`
	Children    []categoryNodeView `json:"children"`
}

func nodeViews(nodes []*models.CategoryNode, lang string) []categoryNodeView {
	out := make([]categoryNodeView, 0, len(nodes))
	for _, n := range nodes {
		v := categoryNodeView{Category: n.Category, Children: nodeViews(n.Children, lang)}
		if lang != "" {
			v.DisplayName = n.Name.Get(lang)
		}
		out = append(out, v)
	}
	return out
}

func listViews(categories []*models.Category, lang string) []categoryView {
	out := make([]categoryView, 0, len(categories))
	for _, cat := range categories {
		v := categoryView{Category: cat}
		if lang != "" {
			v.DisplayName = cat.Name.Get(lang)
		}
		out = append(out, v)
	}
	return out
}

type reorderRequest struct {
	Orders []models.CategoryOrder `json:"orders"`
}

// GetCategories handles GET /api/categories?format=tree|list&lang=en|ru|el
func (h *RestCategoryHandler) GetCategories(c *gin.Context) {
	format := c.DefaultQuery("format", "tree")
	lang := c.Query("lang")
	if format != "tree" && format != "list" {
		h.resp.Error(c, services.NewValidationError("format", "Must be tree or list"), "Category")
		return
	}
	if lang != "" && !models.IsLanguage(lang) {
		h.resp.Error(c, services.NewValidationError("lang", "Must be one of en, ru, el"), "Category")
		return
	}
	activeOnly := !middleware.Actor(c).Can(models.CapManageCategories)

	ctx := c.Request.Context()
	if format == "list" {
		categories, err := h.categoryService.List(ctx, activeOnly)
		if err != nil {
			h.resp.Error(c, err, "Category")
			return
		}
		respond(c, http.StatusOK, listViews(categories, lang))
		return
	}
	tree, err := h.categoryService.Tree(ctx, activeOnly)
	if err != nil {
		h.resp.Error(c, err, "Category")
		return
	}
	respond(c, http.StatusOK, nodeViews(tree, lang))
}

// SearchCategories handles GET /api/categories/search?q=
func (h *RestCategoryHandler) SearchCategories(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		h.resp.Error(c, services.NewValidationError("q", "Search query is required"), "Category")
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	categories, err := h.categoryService.Search(c.Request.Context(), q, limit)
	if err != nil {
		h.resp.Error(c, err, "Category")
		return
	}
	respond(c, http.StatusOK, listViews(categories, c.Query("lang")))
}

// GetCategory handles GET /api/categories/:identifier (id or slug)
func (h *RestCategoryHandler) GetCategory(c *gin.Context) {
	detail, err := h.categoryService.Get(c.Request.Context(), c.Param("identifier"))
	if err != nil {
		h.resp.Error(c, err, "Category")
		return
	}
	respond(c, http.StatusOK, detail)
}

// CreateCategory handles POST /api/categories
func (h *RestCategoryHandler) CreateCategory(c *gin.Context) {
	var in models.CategoryInput
	if !bindJSON(c, &in) {
		return
	}
	category, err := h.categoryService.Create(c.Request.Context(), in)
	if err != nil {
		h.resp.Error(c, err, "Parent category")
		return
	}
	respondMessage(c, http.StatusCreated, "Category created successfully", category)
}

// UpdateCategory handles PUT /api/categories/:id
func (h *RestCategoryHandler) UpdateCategory(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var patch models.CategoryPatch
	if !bindJSON(c, &patch) {
		return
	}
	category, err := h.categoryService.Update(c.Request.Context(), id, patch)
	if err != nil {
		h.resp.Error(c, err, "Category")
		return
	}
	respondMessage(c, http.StatusOK, "Category updated successfully", category)
}

// DeleteCategory handles DELETE /api/categories/:id
func (h *RestCategoryHandler) DeleteCategory(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.categoryService.Delete(c.Request.Context(), id); err != nil {
		h.resp.Error(c, err, "Category")
		return
	}
	respondMessage(c, http.StatusOK, "Category deleted successfully", nil)
}

// ReorderCategories handles PUT /api/categories/order
func (h *RestCategoryHandler) ReorderCategories(c *gin.Context) {
	var req reorderRequest
	if !bindJSON(c, &req) {
		return
	}
	if len(req.Orders) == 0 {
		h.resp.Error(c, services.NewValidationError("orders", "At least one entry is required"), "Category")
		return
	}
	if err := h.categoryService.Reorder(c.Request.Context(), req.Orders); err != nil {
		h.resp.Error(c, err, "Category")
		return
	}
	respondMessage(c, http.StatusOK, "Categories reordered successfully", nil)
}

// UpdateCounts handles POST /api/categories/update-counts
func (h *RestCategoryHandler) UpdateCounts(c *gin.Context) {
	n, err := h.categoryService.UpdateAllListingCounts(c.Request.Context())
	if err != nil {
		h.resp.Error(c, err, "Category")
		return
	}
	respondMessage(c, http.StatusOK, "Listing counts updated", gin.H{"updated": n})
}
