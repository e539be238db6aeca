package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pr0br0/cyboard/internal/api/middleware"
	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/services"
)

// RestAuthHandler serves /api/auth: credentials, verification and the signed-in user's profile.
type RestAuthHandler struct {
	authService services.IAuthService
	userService services.IUserService
	resp        Responder
}

func NewRestAuthHandler(authService services.IAuthService, userService services.IUserService, resp Responder) *RestAuthHandler {
	return &RestAuthHandler{authService: authService, userService: userService, resp: resp}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type phoneRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

// Register handles POST /api/auth/register
func (h *RestAuthHandler) Register(c *gin.Context) {
	var in services.RegisterInput
	if !bindJSON(c, &in) {
		return
	}
	result, err := h.authService.Register(c.Request.Context(), in)
	if err != nil {
		h.resp.Error(c, err, "User")
		return
	}
	respondMessage(c, http.StatusCreated, "Registration successful. Please verify your email.", result)
}

// Login handles POST /api/auth/login
func (h *RestAuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.resp.Error(c, err, "User")
		return
	}
	respond(c, http.StatusOK, result)
}

// VerifyEmail handles GET and POST /api/auth/verify-email/:token
func (h *RestAuthHandler) VerifyEmail(c *gin.Context) {
	if err := h.authService.VerifyEmail(c.Request.Context(), c.Param("token")); err != nil {
		h.resp.Error(c, err, "User")
		return
	}
	respondMessage(c, http.StatusOK, "Email verified successfully", nil)
}

// SendPhoneCode handles POST /api/auth/send-phone-code
func (h *RestAuthHandler) SendPhoneCode(c *gin.Context) {
	var req phoneRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.SendPhoneCode(c.Request.Context(), middleware.Actor(c).UserID, req.Phone); err != nil {
		h.resp.Error(c, err, "User")
		return
	}
	respondMessage(c, http.StatusOK, "Verification code sent", nil)
}

// VerifyPhone handles POST /api/auth/verify-phone
func (h *RestAuthHandler) VerifyPhone(c *gin.Context) {
	var req phoneRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.VerifyPhone(c.Request.Context(), middleware.Actor(c).UserID, req.Code); err != nil {
		h.resp.Error(c, err, "User")
		return
	}
	respondMessage(c, http.StatusOK, "Phone verified successfully", nil)
}

// ForgotPassword handles POST /api/auth/forgot-password. The answer does not reveal whether the email exists.
func (h *RestAuthHandler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		h.resp.Error(c, err, "User")
		return
	}
	respondMessage(c, http.StatusOK, "If the email is registered, a reset link has been sent", nil)
}

// ResetPassword handles POST /api/auth/reset-password
func (h *RestAuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.authService.ResetPassword(c.Request.Context(), req.Token, req.Password)
	if err != nil {
		h.resp.Error(c, err, "User")
		return
	}
	respondMessage(c, http.StatusOK, "Password reset successfully", result)
}

// ChangePassword handles POST /api/auth/change-password
func (h *RestAuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	err := h.authService.ChangePassword(c.Request.Context(), middleware.Actor(c).UserID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.resp.Error(c, err, "User")
		return
	}
	respondMessage(c, http.StatusOK, "Password changed successfully", nil)
}

// Logout handles POST /api/auth/logout. Tokens are stateless; this only records the activity.
func (h *RestAuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), middleware.Actor(c).UserID); err != nil {
		h.resp.Error(c, err, "User")
		return
	}
	respondMessage(c, http.StatusOK, "Logged out successfully", nil)
}

// GetProfile handles GET /api/auth/profile
func (h *RestAuthHandler) GetProfile(c *gin.Context) {
	user, err := h.userService.GetProfile(c.Request.Context(), middleware.Actor(c).UserID)
	if err != nil {
		h.resp.Error(c, err, "User")
		return
	}
	respond(c, http.StatusOK, user)
}

// UpdateProfile handles PUT /api/auth/profile
func (h *RestAuthHandler) UpdateProfile(c *gin.Context) {
	var patch models.UserPatch
	if !bindJSON(c, &patch) {
		return
	}
	user, err := h.userService.UpdateProfile(c.Request.Context(), middleware.Actor(c).UserID, patch)
	if err != nil {
		h.resp.Error(c, err, "User")
		return
	}
	respondMessage(c, http.StatusOK, "Profile updated successfully", user)
}

// UpdateNotificationSettings handles PUT /api/auth/profile/notifications
func (h *RestAuthHandler) UpdateNotificationSettings(c *gin.Context) {
	var prefs models.NotificationPreferences
	if !bindJSON(c, &prefs) {
		return
	}
	user, err := h.userService.UpdateNotificationSettings(c.Request.Context(), middleware.Actor(c).UserID, prefs)
	if err != nil {
		h.resp.Error(c, err, "User")
		return
	}
	respond(c, http.StatusOK, user.Preferences.Notifications)
}

// DeleteAccount handles DELETE /api/auth/profile
func (h *RestAuthHandler) DeleteAccount(c *gin.Context) {
	var req passwordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.userService.DeleteAccount(c.Request.Context(), middleware.Actor(c).UserID, req.Password); err != nil {
		h.resp.Error(c, err, "User")
		return
	}
	respondMessage(c, http.StatusOK, "Account deleted successfully", nil)
}
