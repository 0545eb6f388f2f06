package repository

import (
	"time"

	"github.com/nearwave/geocampaign/internal/model"
)

type CustomerEntity struct {
	ID        int64     `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	Name      string    `db:"name"       gorm:"column:name;not null"`
	Phone     string    `db:"phone"      gorm:"column:phone;not null"`
	Email     string    `db:"email"      gorm:"column:email"`
	Address   string    `db:"address"    gorm:"column:address"`
	Lat       float64   `db:"lat"        gorm:"column:lat;not null;index"`
	Lng       float64   `db:"lng"        gorm:"column:lng;not null;index"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (CustomerEntity) TableName() string {
	return "customers"
}

func toCustomerEntity(c *model.Customer) *CustomerEntity {
	if c == nil {
		return nil
	}
	return &CustomerEntity{
		ID:        c.ID,
		Name:      c.Name,
		Phone:     c.Phone,
		Email:     c.Email,
		Address:   c.Address,
		Lat:       c.Lat,
		Lng:       c.Lng,
		CreatedAt: c.CreatedAt,
	}
}

func toCustomerModel(e *CustomerEntity) *model.Customer {
	if e == nil {
		return nil
	}
	return &model.Customer{
		ID:        e.ID,
		Name:      e.Name,
		Phone:     e.Phone,
		Email:     e.Email,
		Address:   e.Address,
		Lat:       e.Lat,
		Lng:       e.Lng,
		CreatedAt: e.CreatedAt,
	}
}

func toCustomerModels(entities []*CustomerEntity) []*model.Customer {
	if entities == nil {
		return nil
	}
	models := make([]*model.Customer, len(entities))
	for i, e := range entities {
		models[i] = toCustomerModel(e)
	}
	return models
}
