package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pr0br0/cyboard/internal/services"
)

// RestSearchHandler serves /api/search. The listings endpoint is shared with RestListingHandler.
type RestSearchHandler struct {
	searchService services.ISearchService
	resp          Responder
}

func NewRestSearchHandler(searchService services.ISearchService, resp Responder) *RestSearchHandler {
	return &RestSearchHandler{searchService: searchService, resp: resp}
}

// Suggest handles GET /api/search/suggest?q=&lang=
func (h *RestSearchHandler) Suggest(c *gin.Context) {
	titles, err := h.searchService.Suggest(c.Request.Context(), c.Query("q"), c.Query("lang"))
	if err != nil {
		h.resp.Error(c, err, "Listing")
		return
	}
	if titles == nil {
		titles = []string{}
	}
	respond(c, http.StatusOK, titles)
}

// Popular handles GET /api/search/popular
func (h *RestSearchHandler) Popular(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 {
		limit = services.PopularLimit
	}
	counts, err := h.searchService.Popular(c.Request.Context(), limit)
	if err != nil {
		h.resp.Error(c, err, "Category")
		return
	}
	respond(c, http.StatusOK, counts)
}

// Stats handles GET /api/search/stats
func (h *RestSearchHandler) Stats(c *gin.Context) {
	stats, err := h.searchService.Stats(c.Request.Context())
	if err != nil {
		h.resp.Error(c, err, "Listing")
		return
	}
	respond(c, http.StatusOK, stats)
}
