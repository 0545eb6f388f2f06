package handlers

import (
	"io"

	"github.com/fasthttp/router"
	"github.com/nearwave/geocampaign/internal/services"
	xhttp "github.com/nearwave/geocampaign/pkg/http"
)

type ImageService interface {
	Upload(content []byte) (*services.UploadedImage, error)
}

type ImageHandler struct {
	svc ImageService
}

func RegisterImageRoutes(e *router.Group, h *ImageHandler) {
	e.POST("/images/upload", h.UploadImage)
}

func NewImageHandler(imageService ImageService) *ImageHandler {
	return &ImageHandler{
		svc: imageService,
	}
}

/* --------------------------------- Routes ----------------------------------- */

// UploadImage accepts a multipart form with a "file" part. The request body
// size cap lives in the server options; the service enforces its own limit
// on top of it.
func (h *ImageHandler) UploadImage(ctx *xhttp.RequestCtx) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "missing file part")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "unreadable file part")
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "unreadable file part")
		return
	}

	uploaded, err := h.svc.Upload(content)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeSuccess(ctx, xhttp.StatusCreated, uploaded)
}
