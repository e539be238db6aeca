package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pr0br0/cyboard/internal/api/middleware"
	"github.com/pr0br0/cyboard/internal/services"
)

const uploadFormField = "image"

// RestUploadHandler accepts listing images, either through the API or as presigned storage uploads.
type RestUploadHandler struct {
	uploadService services.IUploadService
	maxBytes      int64
	resp          Responder
}

// NewRestUploadHandler reads at most maxBytes+1 bytes per file so oversize uploads are detected without buffering them whole.
func NewRestUploadHandler(uploadService services.IUploadService, maxBytes int64, resp Responder) *RestUploadHandler {
	return &RestUploadHandler{uploadService: uploadService, maxBytes: maxBytes, resp: resp}
}

type presignRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

// Upload handles POST /api/uploads (multipart field "image")
func (h *RestUploadHandler) Upload(c *gin.Context) {
	header, err := c.FormFile(uploadFormField)
	if err != nil {
		h.resp.Error(c, services.NewValidationError(uploadFormField, "No image provided"), "Image")
		return
	}
	f, err := header.Open()
	if err != nil {
		h.resp.Error(c, err, "Image")
		return
	}
	defer f.Close()

	var r io.Reader = f
	if h.maxBytes > 0 {
		r = io.LimitReader(f, h.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		h.resp.Error(c, err, "Image")
		return
	}
	img, err := h.uploadService.Upload(c.Request.Context(), middleware.Actor(c).UserID, header.Filename, data)
	if err != nil {
		h.resp.Error(c, err, "Image")
		return
	}
	respondMessage(c, http.StatusCreated, "Image uploaded successfully", img)
}

// Presign handles POST /api/uploads/presign
func (h *RestUploadHandler) Presign(c *gin.Context) {
	var req presignRequest
	if !bindJSON(c, &req) {
		return
	}
	upload, err := h.uploadService.Presign(c.Request.Context(), middleware.Actor(c).UserID, req.Filename, req.ContentType)
	if err != nil {
		h.resp.Error(c, err, "Image")
		return
	}
	respond(c, http.StatusOK, upload)
}
