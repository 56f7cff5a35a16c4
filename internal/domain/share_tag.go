package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShareTag is a fixed-capacity bucket of tokens. tokens_filled only moves down when a
// pending order against the tag is released.
type ShareTag struct {
	ShareTagID     uuid.UUID  `gorm:"column:share_tag_id;type:uuid;primaryKey" json:"share_tag_id"`
	OfferingID     uuid.UUID  `gorm:"column:offering_id;type:uuid;not null;uniqueIndex:idx_share_tags_offering_number" json:"offering_id"`
	TagNumber      int64      `gorm:"column:tag_number;not null;uniqueIndex:idx_share_tags_offering_number" json:"tag_number"`
	TokensFilled   int64      `gorm:"column:tokens_filled;not null;default:0" json:"tokens_filled"`
	TokensPerShare int64      `gorm:"column:tokens_per_share;not null" json:"tokens_per_share"`
	IsComplete     bool       `gorm:"column:is_complete;not null;default:false" json:"is_complete"`
	PoolTagID      *uuid.UUID `gorm:"column:pool_tag_id;type:uuid" json:"pool_tag_id"`
	PoolTagLabel   string     `gorm:"column:pool_tag_label" json:"pool_tag_label"`
	CompletedAt    *time.Time `gorm:"column:completed_at" json:"completed_at"`
	CreatedAt      time.Time  `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt      time.Time  `gorm:"column:updatedAt" json:"updatedAt"`
}

func (ShareTag) TableName() string {
	return "ShareTags"
}

func (t *ShareTag) BeforeCreate(tx *gorm.DB) error {
	if t.ShareTagID == uuid.Nil {
		t.ShareTagID = uuid.New()
	}
	return nil
}

// Room is the number of tokens the tag can still take.
func (t *ShareTag) Room() int64 {
	return t.TokensPerShare - t.TokensFilled
}
