package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	AssetTypeLivestock = "livestock"
	AssetTypePoultry   = "poultry"
	AssetTypeEquipment = "equipment"
	AssetTypeLand      = "land"
)

// AssetTypes is the set of tokenizable asset kinds.
var AssetTypes = []string{AssetTypeLivestock, AssetTypePoultry, AssetTypeEquipment, AssetTypeLand}

// IsValidAssetType returns true if t is one of AssetTypes.
func IsValidAssetType(t string) bool {
	for _, v := range AssetTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Asset is the catalog entry for a tokenizable asset. Type never changes after creation;
// name and metadata edits keep the same asset_id.
type Asset struct {
	AssetID   uuid.UUID                    `gorm:"column:asset_id;type:uuid;primaryKey" json:"asset_id"`
	Type      string                       `gorm:"column:type;type:varchar(20);not null" json:"type"`
	Name      string                       `gorm:"column:name;not null" json:"name"`
	Meta      datatypes.JSONType[AssetMeta] `gorm:"column:meta" json:"meta"`
	CreatedAt time.Time                    `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt time.Time                    `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Asset) TableName() string {
	return "Assets"
}

func (a *Asset) BeforeCreate(tx *gorm.DB) error {
	if a.AssetID == uuid.Nil {
		a.AssetID = uuid.New()
	}
	return nil
}
