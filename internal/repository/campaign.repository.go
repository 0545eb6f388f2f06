package repository

import (
	"context"
	"errors"

	"github.com/nearwave/geocampaign/internal/model"
	"github.com/nearwave/geocampaign/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrCampaignNotFound is returned when a campaign does not exist.
	ErrCampaignNotFound = errors.New("campaign not found")
	// ErrStatusConflict is returned when a compare-and-swap status update
	// finds the row in a different status than expected.
	ErrStatusConflict = errors.New("campaign status changed concurrently")
)

type CampaignRepository struct {
	*pg.DB
}

func NewCampaignRepository(db *pg.DB) *CampaignRepository {
	return &CampaignRepository{
		db,
	}
}

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	entity := toCampaignEntity(c)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toCampaignModel(entity), nil
}

func (r *CampaignRepository) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	var entity CampaignEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}
	return toCampaignModel(&entity), nil
}

// Update replaces every editable field. Status is never touched here; it
// only moves through UpdateStatus.
func (r *CampaignRepository) Update(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	res := r.Write(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Where("id = ?", c.ID).
		Updates(map[string]interface{}{
			"name":                  c.Name,
			"message":               c.Message,
			"description":           c.Description,
			"image_url":             c.ImageURL,
			"image_alt":             c.ImageAlt,
			"targeting_location_id": c.TargetingLocationID,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrCampaignNotFound
	}
	return r.Get(ctx, c.ID)
}

// UpdateStatus moves a campaign from one status to another atomically. The
// WHERE clause on the current status makes concurrent transitions lose
// cleanly instead of overwriting each other.
func (r *CampaignRepository) UpdateStatus(ctx context.Context, id int64, from, to model.CampaignStatus) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.Read(ctx).WithContext(ctx).
			Model(&CampaignEntity{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrCampaignNotFound
		}
		return ErrStatusConflict
	}
	return nil
}

func (r *CampaignRepository) Delete(ctx context.Context, id int64) error {
	res := r.Write(ctx).WithContext(ctx).Delete(&CampaignEntity{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

func (r *CampaignRepository) List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&CampaignEntity{})

	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.TargetingLocationID != nil {
		q = q.Where("targeting_location_id = ?", *f.TargetingLocationID)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
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

	var entities []*CampaignEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toCampaignModels(entities), total, nil
}

// CountActiveByLocation counts campaigns in a non-terminal status that
// reference the targeting location. Used by the location delete guard.
func (r *CampaignRepository) CountActiveByLocation(ctx context.Context, locationID int64) (int64, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&CampaignEntity{}).
		Where("targeting_location_id = ?", locationID).
		Where("status NOT IN ?", []string{
			string(model.CampaignStatusCompleted),
			string(model.CampaignStatusCancelled),
		}).
		Count(&count).Error
	return count, err
}

func (r *CampaignRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).Model(&CampaignEntity{}).Count(&count).Error
	return count, err
}
