package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	awspkg "github.com/ahambrahmasmi/storefront/pkg/aws"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/ledger"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/validation"
	apperrors "github.com/ahambrahmasmi/storefront/services/common/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MaxDesignImages    = 5
	MaxDesignImageSize = 10 << 20

	uploadTimeout = 30 * time.Second
	uploadPrefix  = "design-requests"
)

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// DesignImage is one uploaded inspiration file.
type DesignImage struct {
	FileName    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// DesignRequestService stores custom design requests in the ledger.
type DesignRequestService interface {
	Submit(ctx context.Context, req models.DesignRequest, images []DesignImage) (*models.DesignSubmission, error)
}

type designRequestServiceImpl struct {
	validator *validation.Validator
	uploader  awspkg.ObjectUploader
	ledger    ledger.Ledger
	metrics   *awspkg.MetricsClient
	logger    *zap.Logger
	now       func() time.Time
}

// NewDesignRequestService wires design requests. uploader nil disables image
// uploads; ledger nil answers every submission with a configuration error.
func NewDesignRequestService(
	v *validation.Validator,
	uploader awspkg.ObjectUploader,
	l ledger.Ledger,
	metrics *awspkg.MetricsClient,
	logger *zap.Logger,
) DesignRequestService {
	return &designRequestServiceImpl{
		validator: v,
		uploader:  uploader,
		ledger:    l,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *designRequestServiceImpl) Submit(ctx context.Context, req models.DesignRequest, images []DesignImage) (*models.DesignSubmission, error) {
	if s.ledger == nil {
		return nil, apperrors.Configuration("design request ledger")
	}
	req, err := s.validator.ValidateDesignRequest(req)
	if err != nil {
		return nil, err
	}

	sub := &models.DesignSubmission{Request: req, SubmittedAt: s.now()}
	for i, img := range images {
		if i == MaxDesignImages {
			s.logger.Warn("Too many design images, extra files ignored", zap.Int("received", len(images)))
			break
		}
		sub.Images = append(sub.Images, s.upload(ctx, img, sub.SubmittedAt))
	}

	if err := s.ledger.AppendDesignRequest(ctx, sub); err != nil {
		s.logger.Error("Failed to append design request", zap.String("email", req.Email), zap.Error(err))
		return nil, apperrors.New(http.StatusInternalServerError, apperrors.KindInternal, "Failed to save design request", err)
	}

	recordMetric(s.metrics, awspkg.MetricDesignRequests, nil)
	s.logger.Info("Design request saved",
		zap.String("email", req.Email),
		zap.String("order_ref", req.OrderRef),
		zap.Int("images", len(sub.Images)))
	return sub, nil
}

// upload never fails the submission; problems are recorded on the image.
func (s *designRequestServiceImpl) upload(ctx context.Context, img DesignImage, at time.Time) models.UploadedImage {
	out := models.UploadedImage{FileName: img.FileName}
	switch {
	case s.uploader == nil:
		out.Error = "uploads disabled"
		return out
	case img.Size > MaxDesignImageSize:
		out.Error = "file too large"
		return out
	case img.ContentType != "" && !strings.HasPrefix(img.ContentType, "image/"):
		out.Error = "not an image"
		return out
	}

	body, err := img.Open()
	if err != nil {
		out.Error = "unreadable file"
		return out
	}
	defer body.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	key := UploadKey(img.FileName, at)
	url, err := s.uploader.Upload(ctx, key, img.ContentType, body)
	if err != nil {
		s.logger.Warn("Design image upload failed", zap.String("key", key), zap.Error(err))
		out.Error = "upload failed"
		return out
	}
	out.URL = url
	return out
}

// UploadKey is design-requests/<yyyy-mm-dd>/<uuid>-<sanitized name>.
func UploadKey(fileName string, at time.Time) string {
	name := unsafeFileChars.ReplaceAllString(path.Base(fileName), "_")
	if name == "" || name == "." || name == "_" {
		name = "image"
	}
	return fmt.Sprintf("%s/%s/%s-%s", uploadPrefix, at.Format("2006-01-02"), uuid.NewString(), name)
}
