package dto

import (
	"errors"
	"strings"
	"time"

	"github.com/soundprediction/ontoscore/pkg/types"
)

// UpsertObjectRequest creates or advances an object identity.
type UpsertObjectRequest struct {
	Type            string           `json:"type" binding:"required"`
	IdentityKey     string           `json:"identity_key" binding:"required"`
	Properties      types.Properties `json:"properties,omitempty"`
	SourceDocuments []string         `json:"source_documents,omitempty"`
	Confidence      float64          `json:"confidence"`
}

// Validate performs validation on UpsertObjectRequest
func (r *UpsertObjectRequest) Validate() error {
	if strings.TrimSpace(r.Type) == "" {
		return errors.New("type cannot be empty")
	}
	if strings.TrimSpace(r.IdentityKey) == "" {
		return errors.New("identity_key cannot be empty")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return errors.New("confidence must be in [0,1]")
	}
	return nil
}

// CreateLinkRequest records a relationship event.
type CreateLinkRequest struct {
	Type       string           `json:"type" binding:"required"`
	SourceID   string           `json:"source_id" binding:"required"`
	TargetID   string           `json:"target_id" binding:"required"`
	Strength   float64          `json:"strength"`
	Confidence float64          `json:"confidence"`
	Properties types.Properties `json:"properties,omitempty"`
	ValidFrom  *time.Time       `json:"valid_from,omitempty"`
}

// Validate performs validation on CreateLinkRequest
func (r *CreateLinkRequest) Validate() error {
	if strings.TrimSpace(r.SourceID) == "" || strings.TrimSpace(r.TargetID) == "" {
		return errors.New("source_id and target_id cannot be empty")
	}
	if r.Strength < 0 || r.Strength > 1 {
		return errors.New("strength must be in [0,1]")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return errors.New("confidence must be in [0,1]")
	}
	return nil
}

// ObjectResponse wraps one object version.
type ObjectResponse struct {
	Object *types.Object `json:"object"`
}

// LinksResponse wraps a link listing.
type LinksResponse struct {
	Links []*types.Link `json:"links"`
	Count int           `json:"count"`
}
