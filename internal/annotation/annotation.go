// Package annotation defines the immutable annotation record, the unit of
// delivery to the collector.
package annotation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an annotation as a head or tail record, matching the two
// sections of the taxonomy schema.
type Kind string

const (
	KindHead Kind = "head"
	KindTail Kind = "tail"
)

// Record is immutable once constructed. It is either delivered or moved
// into the outbox, never both. ID gives collectors a key to deduplicate
// retried deliveries on; the client itself never suppresses a retry.
type Record struct {
	ID            string    `json:"id"`
	Kind          Kind      `json:"kind"`
	Subcategory   string    `json:"subcategory"`
	PrimaryText   string    `json:"primaryText"`
	SecondaryText string    `json:"secondaryText,omitempty"`
	SourceRef     string    `json:"sourceRef,omitempty"`
	ImageData     string    `json:"imageData,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// New constructs a record with a fresh ID and timestamp.
func New(kind Kind, subcategory, primaryText string) Record {
	return Record{
		ID:          uuid.NewString(),
		Kind:        kind,
		Subcategory: subcategory,
		PrimaryText: primaryText,
		CreatedAt:   time.Now().UTC(),
	}
}

// Validate checks the fields a collector will refuse without.
func (r Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record id is required")
	}
	if r.Kind != KindHead && r.Kind != KindTail {
		return fmt.Errorf("invalid record kind %q", r.Kind)
	}
	if r.PrimaryText == "" {
		return fmt.Errorf("primary text is required")
	}
	return nil
}

// Simplified is the reduced shape accepted by the secondary delivery
// endpoint: the classification without the raster payload.
type Simplified struct {
	ID            string    `json:"id"`
	Kind          Kind      `json:"kind"`
	Subcategory   string    `json:"subcategory"`
	PrimaryText   string    `json:"primaryText"`
	SecondaryText string    `json:"secondaryText,omitempty"`
	SourceRef     string    `json:"sourceRef,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Simplified strips the image payload for the secondary endpoint.
func (r Record) Simplified() Simplified {
	return Simplified{
		ID:            r.ID,
		Kind:          r.Kind,
		Subcategory:   r.Subcategory,
		PrimaryText:   r.PrimaryText,
		SecondaryText: r.SecondaryText,
		SourceRef:     r.SourceRef,
		CreatedAt:     r.CreatedAt,
	}
}
