package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pr0br0/cyboard/internal/auth"
	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/services"
	"github.com/pr0br0/cyboard/internal/utils"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success    bool               `json:"success"`
	Data       any                `json:"data,omitempty"`
	Error      string             `json:"error,omitempty"`
	Details    any                `json:"details,omitempty"`
	Message    string             `json:"message,omitempty"`
	Pagination *models.Pagination `json:"pagination,omitempty"`
}

// Responder maps service errors to HTTP responses. Production hides internal error text.
type Responder struct {
	Logger     *zap.Logger
	Production bool
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

func respondMessage(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{Success: true, Data: data, Message: message})
}

// respondPage always sends data as an array, empty past the last page.
func respondPage[T any](c *gin.Context, items []T, p models.Pagination) {
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Data: items, Pagination: &p})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Envelope{Error: msg})
}

func badRequest(c *gin.Context, msg string) {
	fail(c, http.StatusBadRequest, msg)
}

// Error writes the response for err. what names the resource in 404 messages.
func (r Responder) Error(c *gin.Context, err error, what string) {
	_ = c.Error(err)

	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		c.AbortWithStatusJSON(http.StatusBadRequest, Envelope{Error: "Validation failed", Details: ve.Fields})
	case errors.Is(err, utils.ErrInvalidSixID):
		badRequest(c, "Invalid ID")
	case errors.Is(err, services.ErrImageNotFound):
		fail(c, http.StatusNotFound, "Image not found")
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, what+" not found")
	case errors.Is(err, auth.ErrTokenExpired):
		fail(c, http.StatusUnauthorized, "Token expired")
	case errors.Is(err, auth.ErrTokenInvalid):
		fail(c, http.StatusUnauthorized, "Invalid token")
	case errors.Is(err, services.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, services.ErrInvalidCredentials.Error())
	case errors.Is(err, services.ErrUnauthorized):
		fail(c, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, services.ErrAccountDisabled):
		fail(c, http.StatusUnauthorized, "Account is not active")
	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, "Access denied")
	case errors.Is(err, services.ErrInvalidOrExpired):
		badRequest(c, "Invalid or expired token")
	case services.IsBadRequest(err):
		badRequest(c, err.Error())
	default:
		if r.Logger != nil {
			r.Logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		}
		msg := "Server error"
		if !r.Production {
			msg = err.Error()
		}
		fail(c, http.StatusInternalServerError, msg)
	}
}

// paramID parses a path parameter as an id, answering 400 when malformed.
func paramID(c *gin.Context, name string) (utils.SixID, bool) {
	id, err := utils.ParseSixID(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid ID")
		return utils.SixID{}, false
	}
	return id, true
}

// bindJSON decodes the body, answering 400 on malformed JSON.
func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		badRequest(c, "Invalid request body")
		return false
	}
	return true
}

// pageParams reads page and limit; malformed values fall back to the defaults.
func pageParams(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.Query("page"))
	limit, _ = strconv.Atoi(c.Query("limit"))
	return page, limit
}
