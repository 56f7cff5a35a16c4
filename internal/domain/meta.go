package domain

import (
	"errors"

	"github.com/google/uuid"
)

// AssetMeta lists the descriptive keys recognized on an asset.
type AssetMeta struct {
	Breed     string   `json:"breed,omitempty"`
	Sex       string   `json:"sex,omitempty"`
	BirthYear int      `json:"birth_year,omitempty"`
	WeightKg  float64  `json:"weight_kg,omitempty"`
	MediaURLs []string `json:"media_urls,omitempty"`
}

// OfferingMeta lists the offering keys read by settlement reporting.
type OfferingMeta struct {
	SettlementReference string `json:"settlement_reference,omitempty"`
	SettlementAccount   string `json:"settlement_account,omitempty"`
	AnimalCount         int    `json:"animal_count,omitempty"`
	Notes               string `json:"notes,omitempty"`
}

type RelatedKind string

const (
	RelatedNone      RelatedKind = ""
	RelatedCampaign  RelatedKind = "campaign"
	RelatedReferral  RelatedKind = "referral"
	RelatedNonprofit RelatedKind = "nonprofit"
)

var ErrInvalidRelated = errors.New("Invalid related reference")

// RelatedRef points at an entity outside the allocation core.
type RelatedRef struct {
	Kind RelatedKind `gorm:"column:kind;type:varchar(20)" json:"kind,omitempty"`
	ID   *uuid.UUID  `gorm:"column:id;type:uuid" json:"id,omitempty"`
}

func (r RelatedRef) IsZero() bool {
	return r.Kind == RelatedNone && r.ID == nil
}

// Validate requires kind and id to be set together and kind to be known.
func (r RelatedRef) Validate() error {
	if r.IsZero() {
		return nil
	}
	if r.ID == nil || *r.ID == uuid.Nil {
		return ErrInvalidRelated
	}
	switch r.Kind {
	case RelatedCampaign, RelatedReferral, RelatedNonprofit:
		return nil
	}
	return ErrInvalidRelated
}
