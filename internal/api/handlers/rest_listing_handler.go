package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pr0br0/cyboard/internal/api/middleware"
	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/services"
	"github.com/pr0br0/cyboard/internal/utils"
)

// RestListingHandler handles REST requests for listings.
type RestListingHandler struct {
	listingService services.IListingService
	searchService  services.ISearchService
	resp           Responder
}

// NewRestListingHandler creates a new RestListingHandler.
func NewRestListingHandler(listingService services.IListingService, searchService services.ISearchService, resp Responder) *RestListingHandler {
	return &RestListingHandler{listingService: listingService, searchService: searchService, resp: resp}
}

type addImagesRequest struct {
	Images []models.ImageInput `json:"images"`
}

type imageOrderRequest struct {
	Order []utils.SixID `json:"order"`
}

type reportRequest struct {
	Reason      models.ReportReason `json:"reason"`
	Description string              `json:"description"`
}

type statusRequest struct {
	Status models.ListingStatus `json:"status"`
	Note   string               `json:"note"`
}

// SearchListings handles GET /api/listings and GET /api/search/listings
func (h *RestListingHandler) SearchListings(c *gin.Context) {
	params, err := services.ParseSearchParams(c.Request.URL.Query())
	if err != nil {
		h.resp.Error(c, err, "Listing")
		return
	}
	result, err := h.searchService.SearchListings(c.Request.Context(), middleware.Actor(c), params)
	if err != nil {
		h.resp.Error(c, err, "Listing")
		return
	}
	respondPage(c, result.Items, result.Pagination)
}

// GetListingByID handles GET /api/listings/:id
func (h *RestListingHandler) GetListingByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	listing, err := h.listingService.Get(c.Request.Context(), middleware.Actor(c), id, c.ClientIP())
	if err != nil {
		h.resp.Error(c, err, "Listing")
		return
	}
	respond(c, http.StatusOK, listing)
}

// CreateListing handles POST /api/listings
func (h *RestListingHandler) CreateListing(c *gin.Context) {
	var in models.ListingInput
	if !bindJSON(c, &in) {
		return
	}
	listing, err := h.listingService.Create(c.Request.Context(), middleware.Actor(c), in)
	if err != nil {
		h.resp.Error(c, err, "Category")
		return
	}
	respondMessage(c, http.StatusCreated, "Listing created successfully", listing)
}

// UpdateListing handles PUT /api/listings/:id
func (h *RestListingHandler) UpdateListing(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var patch models.ListingPatch
	if !bindJSON(c, &patch) {
		return
	}
	listing, err := h.listingService.Update(c.Request.Context(), middleware.Actor(c), id, patch)
	if err != nil {
		h.resp.Error(c, err, "Listing")
		return
	}
	respondMessage(c, http.StatusOK, "Listing updated successfully", listing)
}

// DeleteListing handles DELETE /api/listings/:id
func (h *RestListingHandler) DeleteListing(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.listingService.Delete(c.Request.Context(), middleware.Actor(c), id); err != nil {
		h.resp.Error(c, err, "Listing")
		return
	}
	respondMessage(c, http.StatusOK, "Listing deleted successfully", nil)
}

// AddImages handles POST /api/listings/:id/images
func (h *RestListingHandler) AddImages(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req addImagesRequest
	if !bindJSON(c, &req) {
		return
	}
	listing, err := h.listingService.AddImages(c.Request.Context(), middleware.Actor(c), id, req.Images)
	if err != nil {
		h.resp.Error(c, err, "Listing")
		return
	}
	respond(c, http.StatusOK, listing.Images)
}

// DeleteImage handles DELETE /api/listings/:id/images/:imageId
func (h *RestListingHandler) DeleteImage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	imageID, ok := paramID(c, "imageId")
	if !ok {
		return
	}
	listing, err := h.listingService.DeleteImage(c.Request.Context(), middleware.Actor(c), id, imageID)
	if err != nil {
		h.resp.Error(c, err, "Listing")
		return
	}
	respondMessage(c, http.StatusOK, "Image deleted successfully", listing.Images)
}

// ReorderImages handles PUT /api/listings/:id/images/order
func (h *RestListingHandler) ReorderImages(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req imageOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	listing, err := h.listingService.ReorderImages(c.Request.Context(), middleware.Actor(c), id, req.Order)
	if err != nil {
		h.resp.Error(c, err, "Listing")
		return
	}
	respond(c, http.StatusOK, listing.Images)
}

// SetMainImage handles PUT /api/listings/:id/images/:imageId/main
func (h *RestListingHandler) SetMainImage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	imageID, ok := paramID(c, "imageId")
	if !ok {
		return
	}
	listing, err := h.listingService.SetMainImage(c.Request.Context(), middleware.Actor(c), id, imageID)
	if err != nil {
		h.resp.Error(c, err, "Listing")
		return
	}
	respond(c, http.StatusOK, listing.Images)
}

// ToggleFavorite handles POST /api/listings/:id/favorite
func (h *RestListingHandler) ToggleFavorite(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	favorited, err := h.listingService.ToggleFavorite(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		h.resp.Error(c, err, "Listing")
		return
	}
	msg := "Removed from favorites"
	if favorited {
		msg = "Added to favorites"
	}
	respondMessage(c, http.StatusOK, msg, gin.H{"isFavorite": favorited})
}

// GetFavorites handles GET /api/listings/favorites
func (h *RestListingHandler) GetFavorites(c *gin.Context) {
	page, limit := pageParams(c)
	result, err := h.listingService.Favorites(c.Request.Context(), middleware.Actor(c), page, limit)
	if err != nil {
		h.resp.Error(c, err, "User")
		return
	}
	respondPage(c, result.Items, result.Pagination)
}

// ReportListing handles POST /api/listings/:id/report
func (h *RestListingHandler) ReportListing(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req reportRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.listingService.Report(c.Request.Context(), middleware.Actor(c), id, req.Reason, req.Description); err != nil {
		h.resp.Error(c, err, "Listing")
		return
	}
	respondMessage(c, http.StatusOK, "Listing reported successfully", nil)
}

// ExtendListing handles POST /api/listings/:id/extend
func (h *RestListingHandler) ExtendListing(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	listing, err := h.listingService.Extend(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		h.resp.Error(c, err, "Listing")
		return
	}
	respondMessage(c, http.StatusOK, "Listing extended successfully", gin.H{"expiresAt": listing.ExpiresAt})
}

// SetStatus handles PUT /api/listings/:id/status
func (h *RestListingHandler) SetStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}
	listing, err := h.listingService.SetStatus(c.Request.Context(), middleware.Actor(c), id, req.Status, req.Note)
	if err != nil {
		h.resp.Error(c, err, "Listing")
		return
	}
	respondMessage(c, http.StatusOK, "Listing status updated", listing)
}
