package services

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrImageTooLarge        = errors.New("image exceeds maximum upload size")
	ErrUnsupportedImageType = errors.New("unsupported image type")
	ErrEmptyImage           = errors.New("image payload is empty")
)

// extByMIME is the allow-list for campaign image uploads. The MIME type is
// sniffed from content, never trusted from the filename.
var extByMIME = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// UploadedImage is the stored result returned to the console.
type UploadedImage struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MIMEType string `json:"mimeType"`
}

// ImageService stores campaign images on local disk under a served prefix.
type ImageService struct {
	dir      string
	baseURL  string
	maxBytes int64
}

func NewImageService(dir, baseURL string, maxBytes int64) *ImageService {
	if maxBytes <= 0 {
		maxBytes = 5 * 1024 * 1024
	}
	return &ImageService{
		dir:      dir,
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: maxBytes,
	}
}

func (s *ImageService) Upload(content []byte) (*UploadedImage, error) {
	if len(content) == 0 {
		return nil, ErrEmptyImage
	}
	if int64(len(content)) > s.maxBytes {
		return nil, ErrImageTooLarge
	}

	mimeType := http.DetectContentType(content)
	ext, ok := extByMIME[mimeType]
	if !ok {
		return nil, ErrUnsupportedImageType
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	filename := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.dir, filename), content, 0o644); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	return &UploadedImage{
		URL:      s.baseURL + "/" + filename,
		Filename: filename,
		Size:     int64(len(content)),
		MIMEType: mimeType,
	}, nil
}
