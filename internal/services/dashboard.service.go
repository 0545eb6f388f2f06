package services

import (
	"context"

	"github.com/nearwave/geocampaign/internal/model"
)

type EntityCounter interface {
	Count(ctx context.Context) (int64, error)
}

type DeliveryStatusCounter interface {
	CountByStatus(ctx context.Context, status model.DeliveryStatus) (int64, error)
}

type LocationLister interface {
	List(ctx context.Context, f model.TargetingLocationFilter) ([]*model.TargetingLocation, int64, error)
}

type DashboardService struct {
	customerCount EntityCounter
	campaignCount EntityCounter
	locationCount EntityCounter
	deliveryRepo  DeliveryStatusCounter
	locationRepo  LocationLister
	customerRepo  NearbyCustomerReader
}

func NewDashboardService(
	customerCount EntityCounter,
	campaignCount EntityCounter,
	locationCount EntityCounter,
	deliveryRepo DeliveryStatusCounter,
	locationRepo LocationLister,
	customerRepo NearbyCustomerReader,
) *DashboardService {
	return &DashboardService{
		customerCount: customerCount,
		campaignCount: campaignCount,
		locationCount: locationCount,
		deliveryRepo:  deliveryRepo,
		locationRepo:  locationRepo,
		customerRepo:  customerRepo,
	}
}

// Summary collects the entity totals for the console landing page.
func (s *DashboardService) Summary(ctx context.Context) (*model.DashboardSummary, error) {
	customers, err := s.customerCount.Count(ctx)
	if err != nil {
		return nil, err
	}
	campaigns, err := s.campaignCount.Count(ctx)
	if err != nil {
		return nil, err
	}
	locations, err := s.locationCount.Count(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.deliveryRepo.CountByStatus(ctx, model.DeliveryStatusPending)
	if err != nil {
		return nil, err
	}
	completed, err := s.deliveryRepo.CountByStatus(ctx, model.DeliveryStatusSent)
	if err != nil {
		return nil, err
	}

	return &model.DashboardSummary{
		TotalCustomers:          customers,
		TotalCampaigns:          campaigns,
		TotalTargetingLocations: locations,
		ActiveDeliveries:        active,
		CompletedDeliveries:     completed,
	}, nil
}

// Distribution counts customers inside each targeting location geofence. A
// customer inside overlapping geofences is counted in each of them.
func (s *DashboardService) Distribution(ctx context.Context) ([]*model.CustomerDistribution, error) {
	locations, _, err := s.locationRepo.List(ctx, model.TargetingLocationFilter{Limit: 1000})
	if err != nil {
		return nil, err
	}

	distribution := make([]*model.CustomerDistribution, 0, len(locations))
	for _, l := range locations {
		customers, err := s.customerRepo.Nearby(ctx, l.CenterLat, l.CenterLng, l.RadiusM)
		if err != nil {
			return nil, err
		}
		distribution = append(distribution, &model.CustomerDistribution{
			LocationID:   l.ID,
			LocationName: l.Name,
			Customers:    int64(len(customers)),
		})
	}

	return distribution, nil
}
