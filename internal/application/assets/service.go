package assets

import (
	"context"
	"errors"
	"strings"

	"herdshare-backend/internal/domain"
	"herdshare-backend/internal/pkg/clock"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrNameRequired = errors.New("Asset name is required")

type Service struct {
	DB    *gorm.DB
	Clock clock.Clock
}

func (s *Service) Create(ctx context.Context, assetType, name string, meta domain.AssetMeta) (*domain.Asset, error) {
	assetType = strings.ToLower(strings.TrimSpace(assetType))
	if !domain.IsValidAssetType(assetType) {
		return nil, domain.ErrInvalidAssetType
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	now := clock.OrReal(s.Clock).Now()
	asset := domain.Asset{
		Type:      assetType,
		Name:      name,
		Meta:      datatypes.NewJSONType(meta),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.DB.WithContext(ctx).Create(&asset).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	var asset domain.Asset
	if err := s.DB.WithContext(ctx).Where("asset_id = ?", id).First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAssetNotFound
		}
		return nil, err
	}
	return &asset, nil
}

// UpdateDetails edits name and metadata in place. The asset type is fixed at creation.
func (s *Service) UpdateDetails(ctx context.Context, id uuid.UUID, name *string, meta *domain.AssetMeta) (*domain.Asset, error) {
	asset, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return nil, ErrNameRequired
		}
		asset.Name = n
		updates["name"] = n
	}
	if meta != nil {
		asset.Meta = datatypes.NewJSONType(*meta)
		updates["meta"] = asset.Meta
	}
	if len(updates) == 0 {
		return asset, nil
	}
	asset.UpdatedAt = clock.OrReal(s.Clock).Now()
	updates["updatedAt"] = asset.UpdatedAt
	if err := s.DB.WithContext(ctx).Model(&domain.Asset{}).Where("asset_id = ?", id).Updates(updates).Error; err != nil {
		return nil, err
	}
	return asset, nil
}

func (s *Service) List(ctx context.Context, assetType string) ([]domain.Asset, error) {
	q := s.DB.WithContext(ctx).Model(&domain.Asset{})
	if assetType != "" {
		q = q.Where("type = ?", assetType)
	}
	var out []domain.Asset
	err := q.Order(`"createdAt" DESC`).Find(&out).Error
	return out, err
}
