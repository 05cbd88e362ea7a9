package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Wildnerds/korrectNG-sub003/internal/config"
	apperrors "github.com/Wildnerds/korrectNG-sub003/pkg/util"
)

// UploadInput describes a file handed to the external binary store.
type UploadInput struct {
	FileName    string
	ContentType string
	SizeBytes   int64
	Content     io.Reader
}

// StoredObject references externally stored binary content.
type StoredObject struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

// UploadService stores evidence binaries in the external upload service.
type UploadService interface {
	Store(ctx context.Context, input UploadInput) (StoredObject, error)
}

type httpUploadService struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewUploadService builds the upload client. Without a configured base URL
// it degrades to a local stub that fabricates storage references, matching
// how the other outbound integrations behave in development.
func NewUploadService(cfg config.UploadConfig, logger *zap.Logger) UploadService {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		logger.Warn("UPLOAD_BASE_URL not provided; evidence binaries will not be persisted")
		return &stubUploadService{logger: logger}
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &httpUploadService{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (s *httpUploadService) Store(ctx context.Context, input UploadInput) (StoredObject, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", input.FileName)
	if err != nil {
		return StoredObject{}, apperrors.NewInternalError(err)
	}
	if _, err := io.Copy(part, input.Content); err != nil {
		return StoredObject{}, apperrors.NewUpstreamError("reading evidence file failed", err)
	}
	if err := writer.Close(); err != nil {
		return StoredObject{}, apperrors.NewInternalError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/uploads", &body)
	if err != nil {
		return StoredObject{}, apperrors.NewInternalError(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return StoredObject{}, apperrors.NewUpstreamError("upload service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return StoredObject{}, apperrors.NewUpstreamError(
			fmt.Sprintf("upload service returned %d", resp.StatusCode), nil)
	}

	var stored StoredObject
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		return StoredObject{}, apperrors.NewUpstreamError("invalid upload service response", err)
	}
	if stored.URL == "" || stored.PublicID == "" {
		return StoredObject{}, apperrors.NewUpstreamError("upload service returned incomplete reference", nil)
	}
	return stored, nil
}

type stubUploadService struct {
	logger *zap.Logger
}

func (s *stubUploadService) Store(ctx context.Context, input UploadInput) (StoredObject, error) {
	// Drain the reader so callers see the same behavior as the real client.
	if _, err := io.Copy(io.Discard, input.Content); err != nil {
		return StoredObject{}, apperrors.NewUpstreamError("reading evidence file failed", err)
	}
	publicID := "local/" + uuid.NewString()
	s.logger.Debug("stub upload",
		zap.String("file_name", input.FileName),
		zap.String("public_id", publicID))
	return StoredObject{URL: "local://" + publicID, PublicID: publicID}, nil
}
