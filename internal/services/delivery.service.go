package services

import (
	"context"
	"time"

	"github.com/nearwave/geocampaign/internal/model"
)

type DeliveryRepository interface {
	Get(ctx context.Context, id int64) (*model.Delivery, error)
	List(ctx context.Context, f model.DeliveryFilter) ([]*model.Delivery, int64, error) // results, totalCount
	Summary(ctx context.Context, campaignID *int64) (*model.DeliverySummary, error)
	Hourly(ctx context.Context, campaignID *int64, from, to time.Time) ([]*model.HourlyDeliveries, error)
}

// DeliveryService exposes the read-only delivery views. Deliveries are
// written only by the dispatch processor.
type DeliveryService struct {
	deliveryRepo DeliveryRepository
}

func NewDeliveryService(deliveryRepo DeliveryRepository) *DeliveryService {
	return &DeliveryService{
		deliveryRepo: deliveryRepo,
	}
}

func (s *DeliveryService) Get(ctx context.Context, id int64) (*model.Delivery, error) {
	return s.deliveryRepo.Get(ctx, id)
}

func (s *DeliveryService) List(ctx context.Context, f model.DeliveryFilter) ([]*model.Delivery, int64, error) {
	return s.deliveryRepo.List(ctx, f)
}

func (s *DeliveryService) Summary(ctx context.Context, campaignID *int64) (*model.DeliverySummary, error) {
	return s.deliveryRepo.Summary(ctx, campaignID)
}

// Hourly returns per-hour outcome buckets. A zero window defaults to the
// trailing 24 hours.
func (s *DeliveryService) Hourly(ctx context.Context, campaignID *int64, from, to time.Time) ([]*model.HourlyDeliveries, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}
	return s.deliveryRepo.Hourly(ctx, campaignID, from, to)
}
