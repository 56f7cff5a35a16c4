package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PoolTagAvailable = "available"
	PoolTagAssigned  = "assigned"
)

// PreGeneratedTag is a physical tag number reserved ahead of time for a country.
// Once assigned to a share tag it never changes again.
type PreGeneratedTag struct {
	PoolTagID   uuid.UUID  `gorm:"column:pool_tag_id;type:uuid;primaryKey" json:"pool_tag_id"`
	CountryCode string     `gorm:"column:country_code;type:varchar(2);not null;uniqueIndex:idx_pool_tags_country_number" json:"country_code"`
	TagNumber   int64      `gorm:"column:tag_number;not null;uniqueIndex:idx_pool_tags_country_number" json:"tag_number"`
	Label       string     `gorm:"column:label;not null" json:"label"`
	Status      string     `gorm:"column:status;type:varchar(20);not null;default:'available';index" json:"status"`
	OfferingID  *uuid.UUID `gorm:"column:offering_id;type:uuid" json:"offering_id"`
	ShareTagID  *uuid.UUID `gorm:"column:share_tag_id;type:uuid" json:"share_tag_id"`
	AssignedAt  *time.Time `gorm:"column:assigned_at" json:"assigned_at"`
	CreatedAt   time.Time  `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"column:updatedAt" json:"updatedAt"`
}

func (PreGeneratedTag) TableName() string {
	return "PreGeneratedTags"
}

func (p *PreGeneratedTag) BeforeCreate(tx *gorm.DB) error {
	if p.PoolTagID == uuid.Nil {
		p.PoolTagID = uuid.New()
	}
	return nil
}
