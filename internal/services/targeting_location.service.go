package services

import (
	"context"
	"errors"

	"github.com/nearwave/geocampaign/internal/model"
)

// ErrLocationInUse is returned when deleting a targeting location that is
// still referenced by a non-terminal campaign.
var ErrLocationInUse = errors.New("targeting location is referenced by active campaigns")

type TargetingLocationRepository interface {
	Create(ctx context.Context, l *model.TargetingLocation) (*model.TargetingLocation, error)
	Get(ctx context.Context, id int64) (*model.TargetingLocation, error)
	Update(ctx context.Context, l *model.TargetingLocation) (*model.TargetingLocation, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f model.TargetingLocationFilter) ([]*model.TargetingLocation, int64, error) // results, totalCount
}

type CampaignCounter interface {
	CountActiveByLocation(ctx context.Context, locationID int64) (int64, error)
}

type NearbyCustomerReader interface {
	Nearby(ctx context.Context, lat, lng float64, radiusM int) ([]*model.CustomerWithDistance, error)
}

// ReachEstimate is the display payload for a geofence reach preview.
type ReachEstimate struct {
	RadiusM        int     `json:"radiusM"`
	CoverageAreaM2 float64 `json:"coverageAreaM2"`
	EstimatedReach int64   `json:"estimatedReach"`
}

type TargetingLocationService struct {
	locationRepo TargetingLocationRepository
	campaignRepo CampaignCounter
	customerRepo NearbyCustomerReader
}

func NewTargetingLocationService(locationRepo TargetingLocationRepository, campaignRepo CampaignCounter, customerRepo NearbyCustomerReader) *TargetingLocationService {
	return &TargetingLocationService{
		locationRepo: locationRepo,
		campaignRepo: campaignRepo,
		customerRepo: customerRepo,
	}
}

func (s *TargetingLocationService) Create(ctx context.Context, l *model.TargetingLocation) (*model.TargetingLocation, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return s.locationRepo.Create(ctx, l)
}

func (s *TargetingLocationService) Get(ctx context.Context, id int64) (*model.TargetingLocation, error) {
	return s.locationRepo.Get(ctx, id)
}

func (s *TargetingLocationService) List(ctx context.Context, f model.TargetingLocationFilter) ([]*model.TargetingLocation, int64, error) {
	return s.locationRepo.List(ctx, f)
}

func (s *TargetingLocationService) Update(ctx context.Context, l *model.TargetingLocation) (*model.TargetingLocation, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.locationRepo.Get(ctx, l.ID); err != nil {
		return nil, err
	}
	return s.locationRepo.Update(ctx, l)
}

// Delete removes a targeting location unless a non-terminal campaign still
// points at it. Completed and cancelled campaigns keep their (now dangling)
// reference for history.
func (s *TargetingLocationService) Delete(ctx context.Context, id int64) error {
	if _, err := s.locationRepo.Get(ctx, id); err != nil {
		return err
	}

	active, err := s.campaignRepo.CountActiveByLocation(ctx, id)
	if err != nil {
		return err
	}
	if active > 0 {
		return ErrLocationInUse
	}

	return s.locationRepo.Delete(ctx, id)
}

// CustomerCount returns how many customers sit inside the geofence.
func (s *TargetingLocationService) CustomerCount(ctx context.Context, id int64) (int64, error) {
	customers, err := s.Customers(ctx, id)
	if err != nil {
		return 0, err
	}
	return int64(len(customers)), nil
}

// EstimateReach previews the audience size for a radius without touching
// customer data.
func (s *TargetingLocationService) EstimateReach(radiusM int) (*ReachEstimate, error) {
	if radiusM < model.MinRadiusM || radiusM > model.MaxRadiusM {
		return nil, model.ErrRadiusOutOfRange
	}
	return &ReachEstimate{
		RadiusM:        radiusM,
		CoverageAreaM2: model.CoverageAreaM2(radiusM),
		EstimatedReach: model.EstimateReach(radiusM),
	}, nil
}

// Customers returns the customers inside the geofence, nearest first.
func (s *TargetingLocationService) Customers(ctx context.Context, id int64) ([]*model.CustomerWithDistance, error) {
	l, err := s.locationRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.customerRepo.Nearby(ctx, l.CenterLat, l.CenterLng, l.RadiusM)
}
