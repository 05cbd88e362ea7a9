package domain

import "time"

// EvidenceType tags evidence for downstream display logic.
type EvidenceType string

const (
	EvidenceTypeImage    EvidenceType = "IMAGE"
	EvidenceTypeVideo    EvidenceType = "VIDEO"
	EvidenceTypeDocument EvidenceType = "DOCUMENT"
)

// EvidenceItem stores metadata for externally stored dispute evidence.
// The binary content lives in the upload service; URL and PublicID
// reference it.
type EvidenceItem struct {
	ID             string
	DisputeID      string
	Type           EvidenceType
	URL            string
	PublicID       string
	FileName       string
	ContentType    string
	SizeBytes      int64
	Description    *string
	UploadedByType ActorType
	UploadedByID   *string
	UploadedAt     time.Time
}
