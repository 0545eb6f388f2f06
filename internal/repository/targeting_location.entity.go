package repository

import (
	"time"

	"github.com/nearwave/geocampaign/internal/model"
)

type TargetingLocationEntity struct {
	ID        int64     `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	Name      string    `db:"name"       gorm:"column:name;not null"`
	Memo      string    `db:"memo"       gorm:"column:memo"`
	CenterLat float64   `db:"center_lat" gorm:"column:center_lat;not null"`
	CenterLng float64   `db:"center_lng" gorm:"column:center_lng;not null"`
	RadiusM   int       `db:"radius_m"   gorm:"column:radius_m;not null"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `db:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (TargetingLocationEntity) TableName() string {
	return "targeting_locations"
}

func toTargetingLocationEntity(l *model.TargetingLocation) *TargetingLocationEntity {
	if l == nil {
		return nil
	}
	return &TargetingLocationEntity{
		ID:        l.ID,
		Name:      l.Name,
		Memo:      l.Memo,
		CenterLat: l.CenterLat,
		CenterLng: l.CenterLng,
		RadiusM:   l.RadiusM,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}

func toTargetingLocationModel(e *TargetingLocationEntity) *model.TargetingLocation {
	if e == nil {
		return nil
	}
	return &model.TargetingLocation{
		ID:        e.ID,
		Name:      e.Name,
		Memo:      e.Memo,
		CenterLat: e.CenterLat,
		CenterLng: e.CenterLng,
		RadiusM:   e.RadiusM,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func toTargetingLocationModels(entities []*TargetingLocationEntity) []*model.TargetingLocation {
	if entities == nil {
		return nil
	}
	models := make([]*model.TargetingLocation, len(entities))
	for i, e := range entities {
		models[i] = toTargetingLocationModel(e)
	}
	return models
}
