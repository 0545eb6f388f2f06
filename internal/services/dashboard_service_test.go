package services

import (
	"context"
	"testing"

	"github.com/nearwave/geocampaign/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEntityCounter struct {
	mock.Mock
}

func (m *MockEntityCounter) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockDeliveryStatusCounter struct {
	mock.Mock
}

func (m *MockDeliveryStatusCounter) CountByStatus(ctx context.Context, status model.DeliveryStatus) (int64, error) {
	args := m.Called(ctx, status)
	return args.Get(0).(int64), args.Error(1)
}

type MockLocationLister struct {
	mock.Mock
}

func (m *MockLocationLister) List(ctx context.Context, f model.TargetingLocationFilter) ([]*model.TargetingLocation, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.TargetingLocation), args.Get(1).(int64), args.Error(2)
}

func newDashboardService() (*DashboardService, *MockEntityCounter, *MockEntityCounter, *MockEntityCounter, *MockDeliveryStatusCounter, *MockLocationLister, *MockNearbyReader) {
	customers := new(MockEntityCounter)
	campaigns := new(MockEntityCounter)
	locations := new(MockEntityCounter)
	deliveries := new(MockDeliveryStatusCounter)
	locationRepo := new(MockLocationLister)
	customerRepo := new(MockNearbyReader)
	svc := NewDashboardService(customers, campaigns, locations, deliveries, locationRepo, customerRepo)
	return svc, customers, campaigns, locations, deliveries, locationRepo, customerRepo
}

func TestDashboardService_Summary(t *testing.T) {
	svc, customers, campaigns, locations, deliveries, _, _ := newDashboardService()

	customers.On("Count", mock.Anything).Return(int64(120), nil)
	campaigns.On("Count", mock.Anything).Return(int64(7), nil)
	locations.On("Count", mock.Anything).Return(int64(3), nil)
	deliveries.On("CountByStatus", mock.Anything, model.DeliveryStatusPending).Return(int64(14), nil)
	deliveries.On("CountByStatus", mock.Anything, model.DeliveryStatusSent).Return(int64(402), nil)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(120), summary.TotalCustomers)
	assert.Equal(t, int64(7), summary.TotalCampaigns)
	assert.Equal(t, int64(3), summary.TotalTargetingLocations)
	assert.Equal(t, int64(14), summary.ActiveDeliveries)
	assert.Equal(t, int64(402), summary.CompletedDeliveries)
}

func TestDashboardService_SummaryPropagatesCountError(t *testing.T) {
	svc, customers, _, _, _, _, _ := newDashboardService()

	customers.On("Count", mock.Anything).Return(int64(0), assert.AnError)

	_, err := svc.Summary(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestDashboardService_Distribution(t *testing.T) {
	svc, _, _, _, _, locationRepo, customerRepo := newDashboardService()

	locationRepo.On("List", mock.Anything, mock.Anything).Return([]*model.TargetingLocation{
		{ID: 1, Name: "Gangnam", CenterLat: 37.4979, CenterLng: 127.0276, RadiusM: 1000},
		{ID: 2, Name: "Hongdae", CenterLat: 37.5563, CenterLng: 126.9236, RadiusM: 500},
	}, int64(2), nil)
	customerRepo.On("Nearby", mock.Anything, 37.4979, 127.0276, 1000).Return([]*model.CustomerWithDistance{
		{}, {}, {},
	}, nil)
	customerRepo.On("Nearby", mock.Anything, 37.5563, 126.9236, 500).Return([]*model.CustomerWithDistance{}, nil)

	distribution, err := svc.Distribution(context.Background())
	require.NoError(t, err)
	require.Len(t, distribution, 2)

	assert.Equal(t, "Gangnam", distribution[0].LocationName)
	assert.Equal(t, int64(3), distribution[0].Customers)
	assert.Equal(t, "Hongdae", distribution[1].LocationName)
	assert.Equal(t, int64(0), distribution[1].Customers)
}
