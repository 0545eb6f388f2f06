package repository

import (
	"time"

	"github.com/nearwave/geocampaign/internal/model"
)

type CampaignEntity struct {
	ID                  int64     `db:"id"                    gorm:"primaryKey;autoIncrement;column:id"`
	Name                string    `db:"name"                  gorm:"column:name;not null"`
	Message             string    `db:"message"               gorm:"column:message;not null"`
	Description         string    `db:"description"           gorm:"column:description"`
	ImageURL            string    `db:"image_url"             gorm:"column:image_url"`
	ImageAlt            string    `db:"image_alt"             gorm:"column:image_alt"`
	Status              string    `db:"status"                gorm:"column:status;not null;default:DRAFT;index"`
	TargetingLocationID *int64    `db:"targeting_location_id" gorm:"column:targeting_location_id;index"`
	CreatedAt           time.Time `db:"created_at"            gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time `db:"updated_at"            gorm:"column:updated_at;autoUpdateTime"`
}

func (CampaignEntity) TableName() string {
	return "campaigns"
}

func toCampaignEntity(c *model.Campaign) *CampaignEntity {
	if c == nil {
		return nil
	}
	return &CampaignEntity{
		ID:                  c.ID,
		Name:                c.Name,
		Message:             c.Message,
		Description:         c.Description,
		ImageURL:            c.ImageURL,
		ImageAlt:            c.ImageAlt,
		Status:              string(c.Status),
		TargetingLocationID: c.TargetingLocationID,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

func toCampaignModel(e *CampaignEntity) *model.Campaign {
	if e == nil {
		return nil
	}
	return &model.Campaign{
		ID:                  e.ID,
		Name:                e.Name,
		Message:             e.Message,
		Description:         e.Description,
		ImageURL:            e.ImageURL,
		ImageAlt:            e.ImageAlt,
		Status:              model.CampaignStatus(e.Status),
		TargetingLocationID: e.TargetingLocationID,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

func toCampaignModels(entities []*CampaignEntity) []*model.Campaign {
	if entities == nil {
		return nil
	}
	models := make([]*model.Campaign, len(entities))
	for i, e := range entities {
		models[i] = toCampaignModel(e)
	}
	return models
}
