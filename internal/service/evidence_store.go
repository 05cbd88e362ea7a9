package service

import (
	"strings"

	"github.com/Wildnerds/korrectNG-sub003/internal/domain"
	apperrors "github.com/Wildnerds/korrectNG-sub003/pkg/util"
)

// MaxEvidenceSizeBytes caps accepted evidence uploads at 10 MiB.
const MaxEvidenceSizeBytes = 10 << 20

// Rejection reasons carried in ValidationError details.
const (
	ReasonUnsupportedType = "UNSUPPORTED_TYPE"
	ReasonTooLarge        = "TOO_LARGE"
)

var evidenceTypeByContentType = map[string]domain.EvidenceType{
	"image/jpeg":      domain.EvidenceTypeImage,
	"image/png":       domain.EvidenceTypeImage,
	"image/webp":      domain.EvidenceTypeImage,
	"video/mp4":       domain.EvidenceTypeVideo,
	"application/pdf": domain.EvidenceTypeDocument,
}

// EvidenceStore gatekeeps uploads before they become part of a dispute.
// It decides acceptance and type tagging only; binary storage is delegated
// to the external upload service.
type EvidenceStore struct{}

// NewEvidenceStore constructs the store.
func NewEvidenceStore() *EvidenceStore {
	return &EvidenceStore{}
}

// Validate checks the content type against the allow-list and the size
// against the 10 MiB cap. Rejected files never become evidence items.
func (s *EvidenceStore) Validate(contentType string, sizeBytes int64) error {
	if _, ok := s.Classify(contentType); !ok {
		return apperrors.NewValidationError("unsupported evidence content type", map[string]any{
			"reason":       ReasonUnsupportedType,
			"content_type": contentType,
		})
	}
	if sizeBytes > MaxEvidenceSizeBytes {
		return apperrors.NewValidationError("evidence file exceeds size limit", map[string]any{
			"reason":    ReasonTooLarge,
			"size":      sizeBytes,
			"max_bytes": MaxEvidenceSizeBytes,
		})
	}
	return nil
}

// Classify maps a content type to an evidence type for display logic.
func (s *EvidenceStore) Classify(contentType string) (domain.EvidenceType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(contentType))
	// Drop parameters like "; charset=binary".
	if idx := strings.Index(normalized, ";"); idx >= 0 {
		normalized = strings.TrimSpace(normalized[:idx])
	}
	t, ok := evidenceTypeByContentType[normalized]
	return t, ok
}
