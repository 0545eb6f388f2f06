package repository

import (
	"time"

	"github.com/nearwave/geocampaign/internal/model"
)

type DeliveryEntity struct {
	ID              int64      `db:"id"                gorm:"primaryKey;autoIncrement;column:id"`
	CampaignID      int64      `db:"campaign_id"       gorm:"column:campaign_id;not null;index"`
	CustomerID      int64      `db:"customer_id"       gorm:"column:customer_id;not null;index"`
	Status          string     `db:"status"            gorm:"column:status;not null;default:PENDING;index"`
	MessageTextSent string     `db:"message_text_sent" gorm:"column:message_text_sent"`
	ErrorCode       string     `db:"error_code"        gorm:"column:error_code"`
	SentAt          *time.Time `db:"sent_at"           gorm:"column:sent_at"`
	DeliveredAt     *time.Time `db:"delivered_at"      gorm:"column:delivered_at"`
	CreatedAt       time.Time  `db:"created_at"        gorm:"column:created_at;autoCreateTime"`
}

func (DeliveryEntity) TableName() string {
	return "deliveries"
}

func toDeliveryEntity(d *model.Delivery) *DeliveryEntity {
	if d == nil {
		return nil
	}
	return &DeliveryEntity{
		ID:              d.ID,
		CampaignID:      d.CampaignID,
		CustomerID:      d.CustomerID,
		Status:          string(d.Status),
		MessageTextSent: d.MessageTextSent,
		ErrorCode:       d.ErrorCode,
		SentAt:          d.SentAt,
		DeliveredAt:     d.DeliveredAt,
		CreatedAt:       d.CreatedAt,
	}
}

func toDeliveryModel(e *DeliveryEntity) *model.Delivery {
	if e == nil {
		return nil
	}
	return &model.Delivery{
		ID:              e.ID,
		CampaignID:      e.CampaignID,
		CustomerID:      e.CustomerID,
		Status:          model.DeliveryStatus(e.Status),
		MessageTextSent: e.MessageTextSent,
		ErrorCode:       e.ErrorCode,
		SentAt:          e.SentAt,
		DeliveredAt:     e.DeliveredAt,
		CreatedAt:       e.CreatedAt,
	}
}

func toDeliveryModels(entities []*DeliveryEntity) []*model.Delivery {
	if entities == nil {
		return nil
	}
	models := make([]*model.Delivery, len(entities))
	for i, e := range entities {
		models[i] = toDeliveryModel(e)
	}
	return models
}
