package controllers

import (
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/services"
	apperrors "github.com/ahambrahmasmi/storefront/services/common/errors"
	"github.com/gin-gonic/gin"
)

const (
	// ImageFieldPrefix matches inspiration_image, inspiration_image_1, ...
	ImageFieldPrefix = "inspiration_image"

	maxMultipartMemory = 32 << 20
)

type DesignRequestController struct {
	Designs services.DesignRequestService
}

func NewDesignRequestController(designs services.DesignRequestService) *DesignRequestController {
	return &DesignRequestController{Designs: designs}
}

// Submit handles POST /design-requests (multipart/form-data).
func (dc *DesignRequestController) Submit(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
		respondError(c, apperrors.New(http.StatusBadRequest, apperrors.KindBadRequest, "Invalid multipart form", err))
		return
	}

	var req models.DesignRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, apperrors.New(http.StatusBadRequest, apperrors.KindBadRequest, "Invalid design request", err))
		return
	}

	sub, err := dc.Designs.Submit(c.Request.Context(), req, designImages(c))
	if err != nil {
		logFailure(c, "Design request failed", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Design request submitted successfully",
		"images":  sub.Images,
	})
}

// designImages collects every inspiration_image* file in field-name order.
func designImages(c *gin.Context) []services.DesignImage {
	form := c.Request.MultipartForm
	if form == nil {
		return nil
	}
	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		if strings.HasPrefix(field, ImageFieldPrefix) {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)

	var images []services.DesignImage
	for _, field := range fields {
		for _, fh := range form.File[field] {
			fh := fh
			images = append(images, services.DesignImage{
				FileName:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        fh.Size,
				Open: func() (io.ReadCloser, error) {
					return fh.Open()
				},
			})
		}
	}
	return images
}
