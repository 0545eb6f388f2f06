package repository

import (
	"context"
	"errors"

	"github.com/nearwave/geocampaign/internal/model"
	"github.com/nearwave/geocampaign/pkg/pg"
	"gorm.io/gorm"
)

// ErrTargetingLocationNotFound is returned when a targeting location does
// not exist.
var ErrTargetingLocationNotFound = errors.New("targeting location not found")

type TargetingLocationRepository struct {
	*pg.DB
}

func NewTargetingLocationRepository(db *pg.DB) *TargetingLocationRepository {
	return &TargetingLocationRepository{
		db,
	}
}

func (r *TargetingLocationRepository) Create(ctx context.Context, l *model.TargetingLocation) (*model.TargetingLocation, error) {
	entity := toTargetingLocationEntity(l)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toTargetingLocationModel(entity), nil
}

func (r *TargetingLocationRepository) Get(ctx context.Context, id int64) (*model.TargetingLocation, error) {
	var entity TargetingLocationEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTargetingLocationNotFound
	}
	if err != nil {
		return nil, err
	}
	return toTargetingLocationModel(&entity), nil
}

func (r *TargetingLocationRepository) Update(ctx context.Context, l *model.TargetingLocation) (*model.TargetingLocation, error) {
	res := r.Write(ctx).WithContext(ctx).
		Model(&TargetingLocationEntity{}).
		Where("id = ?", l.ID).
		Updates(map[string]interface{}{
			"name":       l.Name,
			"memo":       l.Memo,
			"center_lat": l.CenterLat,
			"center_lng": l.CenterLng,
			"radius_m":   l.RadiusM,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrTargetingLocationNotFound
	}
	return r.Get(ctx, l.ID)
}

func (r *TargetingLocationRepository) Delete(ctx context.Context, id int64) error {
	res := r.Write(ctx).WithContext(ctx).Delete(&TargetingLocationEntity{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTargetingLocationNotFound
	}
	return nil
}

func (r *TargetingLocationRepository) List(ctx context.Context, f model.TargetingLocationFilter) ([]*model.TargetingLocation, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&TargetingLocationEntity{})

	if f.Name != nil && *f.Name != "" {
		q = q.Where("name LIKE ?", "%"+*f.Name+"%")
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*TargetingLocationEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toTargetingLocationModels(entities), total, nil
}

func (r *TargetingLocationRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).Model(&TargetingLocationEntity{}).Count(&count).Error
	return count, err
}
