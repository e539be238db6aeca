package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pr0br0/cyboard/internal/api/middleware"
	"github.com/pr0br0/cyboard/internal/services"
)

// RestUserHandler serves public user profiles.
type RestUserHandler struct {
	userService    services.IUserService
	listingService services.IListingService
	resp           Responder
}

func NewRestUserHandler(userService services.IUserService, listingService services.IListingService, resp Responder) *RestUserHandler {
	return &RestUserHandler{userService: userService, listingService: listingService, resp: resp}
}

// GetUserByID handles GET /api/users/:id
func (h *RestUserHandler) GetUserByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	profile, err := h.userService.PublicProfile(c.Request.Context(), id)
	if err != nil {
		h.resp.Error(c, err, "User")
		return
	}
	respond(c, http.StatusOK, profile)
}

// GetUserListings handles GET /api/users/:id/listings. Only the owner and moderators see non-live listings.
func (h *RestUserHandler) GetUserListings(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	page, limit := pageParams(c)
	result, err := h.listingService.ListByUser(c.Request.Context(), middleware.Actor(c), id, page, limit)
	if err != nil {
		h.resp.Error(c, err, "User")
		return
	}
	respondPage(c, result.Items, result.Pagination)
}
