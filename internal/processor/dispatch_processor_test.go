package processor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	gateway "github.com/nearwave/geocampaign/internal/gateways"
	"github.com/nearwave/geocampaign/internal/model"
	"github.com/nearwave/geocampaign/internal/queue"
	"github.com/nearwave/geocampaign/internal/repository"
	"github.com/nearwave/geocampaign/internal/services"
	"github.com/nearwave/geocampaign/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCampaignRepository struct {
	mock.Mock
}

func (m *MockCampaignRepository) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) UpdateStatus(ctx context.Context, id int64, from, to model.CampaignStatus) error {
	args := m.Called(ctx, id, from, to)
	return args.Error(0)
}

type MockLocationRepository struct {
	mock.Mock
}

func (m *MockLocationRepository) Get(ctx context.Context, id int64) (*model.TargetingLocation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TargetingLocation), args.Error(1)
}

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) Get(ctx context.Context, id int64) (*model.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Customer), args.Error(1)
}

func (m *MockCustomerRepository) Nearby(ctx context.Context, lat, lng float64, radiusM int) ([]*model.CustomerWithDistance, error) {
	args := m.Called(ctx, lat, lng, radiusM)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.CustomerWithDistance), args.Error(1)
}

type MockDeliveryRepository struct {
	mock.Mock
}

func (m *MockDeliveryRepository) CreateBatch(ctx context.Context, deliveries []*model.Delivery) ([]*model.Delivery, error) {
	args := m.Called(ctx, deliveries)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Delivery), args.Error(1)
}

func (m *MockDeliveryRepository) List(ctx context.Context, f model.DeliveryFilter) ([]*model.Delivery, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Delivery), args.Get(1).(int64), args.Error(2)
}

func (m *MockDeliveryRepository) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	args := m.Called(ctx, id, sentAt)
	return args.Error(0)
}

func (m *MockDeliveryRepository) MarkFailed(ctx context.Context, id int64, errorCode string) error {
	args := m.Called(ctx, id, errorCode)
	return args.Error(0)
}

func (m *MockDeliveryRepository) CountPending(ctx context.Context, campaignID int64) (int64, error) {
	args := m.Called(ctx, campaignID)
	return args.Get(0).(int64), args.Error(1)
}

type MockDeliveryClient struct {
	mock.Mock
}

func (m *MockDeliveryClient) Deliver(ctx context.Context, req *gateway.DeliverRequest) (*gateway.DeliverResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.DeliverResponse), args.Error(1)
}

type MockSendLocker struct {
	mock.Mock
}

func (m *MockSendLocker) Del(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

type dispatchFixture struct {
	campaigns   *MockCampaignRepository
	locations   *MockLocationRepository
	customers   *MockCustomerRepository
	deliveries  *MockDeliveryRepository
	client      *MockDeliveryClient
	locker      *MockSendLocker
	redis       redis.RedisAdapter
	idempotency *IdempotencyService
	processor   *CampaignDispatchProcessor
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	mr, adapter := setupTestRedis(t)
	t.Cleanup(mr.Close)

	f := &dispatchFixture{
		campaigns:   new(MockCampaignRepository),
		locations:   new(MockLocationRepository),
		customers:   new(MockCustomerRepository),
		deliveries:  new(MockDeliveryRepository),
		client:      new(MockDeliveryClient),
		locker:      new(MockSendLocker),
		redis:       adapter,
		idempotency: NewIdempotencyService(adapter, DefaultIdempotencyConfig()),
	}
	f.processor = NewCampaignDispatchProcessor(
		f.client,
		f.campaigns,
		f.locations,
		f.customers,
		f.deliveries,
		f.idempotency,
		f.locker,
		100,
	)
	return f
}

func dispatchMessage(t *testing.T, campaignID int64) *queue.Message {
	t.Helper()
	data, err := json.Marshal(services.DispatchJob{CampaignID: campaignID})
	require.NoError(t, err)
	return &queue.Message{ID: "1-0", Data: data}
}

func sendingCampaign(id, locationID int64) *model.Campaign {
	return &model.Campaign{
		ID:                  id,
		Name:                "Spring Sale",
		Message:             "20% off this weekend",
		Status:              model.CampaignStatusSending,
		TargetingLocationID: &locationID,
	}
}

func TestDispatchProcessor_FullRun(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	campaign := sendingCampaign(1, 10)

	f.campaigns.On("Get", mock.Anything, int64(1)).Return(campaign, nil)
	f.locations.On("Get", mock.Anything, int64(10)).Return(&model.TargetingLocation{
		ID: 10, CenterLat: 37.5, CenterLng: 127.0, RadiusM: 1000,
	}, nil)
	f.customers.On("Nearby", mock.Anything, 37.5, 127.0, 1000).Return([]*model.CustomerWithDistance{
		{Customer: model.Customer{ID: 100, Phone: "+821011112222"}},
		{Customer: model.Customer{ID: 101, Phone: "+821033334444"}},
	}, nil)

	pending := []*model.Delivery{
		{ID: 1000, CampaignID: 1, CustomerID: 100, Status: model.DeliveryStatusPending, MessageTextSent: campaign.Message},
		{ID: 1001, CampaignID: 1, CustomerID: 101, Status: model.DeliveryStatusPending, MessageTextSent: campaign.Message},
	}

	// First List checks for existing rows, second returns the pending batch,
	// third finds the queue drained.
	f.deliveries.On("List", mock.Anything, mock.MatchedBy(func(fl model.DeliveryFilter) bool {
		return len(fl.Statuses) == 0
	})).Return([]*model.Delivery{}, int64(0), nil).Once()
	f.deliveries.On("CreateBatch", mock.Anything, mock.MatchedBy(func(ds []*model.Delivery) bool {
		return len(ds) == 2 && ds[0].Status == model.DeliveryStatusPending
	})).Return(pending, nil).Once()
	f.deliveries.On("List", mock.Anything, mock.MatchedBy(func(fl model.DeliveryFilter) bool {
		return len(fl.Statuses) == 1
	})).Return(pending, int64(2), nil).Once()
	f.deliveries.On("List", mock.Anything, mock.Anything).Return([]*model.Delivery{}, int64(0), nil)

	f.customers.On("Get", mock.Anything, int64(100)).Return(&model.Customer{ID: 100, Phone: "+821011112222"}, nil)
	f.customers.On("Get", mock.Anything, int64(101)).Return(&model.Customer{ID: 101, Phone: "+821033334444"}, nil)

	now := time.Now()
	f.client.On("Deliver", mock.Anything, mock.MatchedBy(func(req *gateway.DeliverRequest) bool {
		return req.Message == campaign.Message
	})).Return(&gateway.DeliverResponse{
		Outcome:     gateway.OutcomeDelivered,
		DeliveredAt: &now,
		ProcessedAt: now,
	}, nil).Twice()

	f.deliveries.On("MarkSent", mock.Anything, int64(1000), mock.Anything).Return(nil).Once()
	f.deliveries.On("MarkSent", mock.Anything, int64(1001), mock.Anything).Return(nil).Once()

	f.campaigns.On("UpdateStatus", mock.Anything, int64(1), model.CampaignStatusSending, model.CampaignStatusCompleted).Return(nil).Once()
	f.locker.On("Del", services.SendLockKey(1)).Return(nil)

	err := f.processor.Process(ctx, dispatchMessage(t, 1))
	require.NoError(t, err)

	f.deliveries.AssertExpectations(t)
	f.client.AssertExpectations(t)
	f.campaigns.AssertExpectations(t)
}

func TestDispatchProcessor_PauseStopsRemainingSends(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	campaign := sendingCampaign(2, 10)

	pending := []*model.Delivery{
		{ID: 2000, CampaignID: 2, CustomerID: 100, Status: model.DeliveryStatusPending, MessageTextSent: campaign.Message},
		{ID: 2001, CampaignID: 2, CustomerID: 101, Status: model.DeliveryStatusPending, MessageTextSent: campaign.Message},
	}

	// Rows already exist from an earlier run, so no fan-out happens.
	f.deliveries.On("List", mock.Anything, mock.MatchedBy(func(fl model.DeliveryFilter) bool {
		return len(fl.Statuses) == 0
	})).Return(pending, int64(2), nil).Once()
	f.deliveries.On("List", mock.Anything, mock.MatchedBy(func(fl model.DeliveryFilter) bool {
		return len(fl.Statuses) == 1
	})).Return(pending, int64(2), nil).Once()

	// SENDING for the initial check and the first delivery, then PAUSED.
	f.campaigns.On("Get", mock.Anything, int64(2)).Return(campaign, nil).Twice()
	paused := *campaign
	paused.Status = model.CampaignStatusPaused
	f.campaigns.On("Get", mock.Anything, int64(2)).Return(&paused, nil)

	f.customers.On("Get", mock.Anything, int64(100)).Return(&model.Customer{ID: 100, Phone: "+821011112222"}, nil)

	now := time.Now()
	f.client.On("Deliver", mock.Anything, mock.Anything).Return(&gateway.DeliverResponse{
		Outcome:     gateway.OutcomeDelivered,
		ProcessedAt: now,
	}, nil).Once()
	f.deliveries.On("MarkSent", mock.Anything, int64(2000), mock.Anything).Return(nil).Once()

	f.locker.On("Del", services.SendLockKey(2)).Return(nil)

	err := f.processor.Process(ctx, dispatchMessage(t, 2))
	require.NoError(t, err)

	f.client.AssertNumberOfCalls(t, "Deliver", 1)
	f.deliveries.AssertNotCalled(t, "MarkSent", mock.Anything, int64(2001), mock.Anything)
	f.campaigns.AssertNotCalled(t, "UpdateStatus", mock.Anything, int64(2), model.CampaignStatusSending, model.CampaignStatusCompleted)
}

func TestDispatchProcessor_DropsJobWhenNotSending(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()

	campaign := sendingCampaign(3, 10)
	campaign.Status = model.CampaignStatusCancelled
	f.campaigns.On("Get", mock.Anything, int64(3)).Return(campaign, nil)
	f.locker.On("Del", services.SendLockKey(3)).Return(nil).Once()

	err := f.processor.Process(ctx, dispatchMessage(t, 3))
	require.NoError(t, err)

	f.client.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
	f.deliveries.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
	f.locker.AssertExpectations(t)
}

// A pause between Send and job consumption drops the job, and the send lock
// must go with it or the PAUSED→SENDING resume is refused until the lock TTL.
func TestDispatchProcessor_PausedBeforeConsumeFreesSendLock(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()

	campaign := sendingCampaign(7, 10)
	campaign.Status = model.CampaignStatusPaused
	f.campaigns.On("Get", mock.Anything, int64(7)).Return(campaign, nil)
	f.locker.On("Del", services.SendLockKey(7)).Return(nil).Once()

	err := f.processor.Process(ctx, dispatchMessage(t, 7))
	require.NoError(t, err)

	f.client.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
	f.locker.AssertExpectations(t)
}

func TestDispatchProcessor_MissingCampaignFreesSendLock(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()

	f.campaigns.On("Get", mock.Anything, int64(8)).Return(nil, repository.ErrCampaignNotFound)
	f.locker.On("Del", services.SendLockKey(8)).Return(nil).Once()

	err := f.processor.Process(ctx, dispatchMessage(t, 8))
	require.NoError(t, err)

	f.locker.AssertExpectations(t)
}

// Retry exhaustion parks the campaign and resets the counter, so an explicit
// resume afterwards dispatches with a fresh attempt budget instead of being
// re-parked on arrival.
func TestDispatchProcessor_RetryExhaustionParksAndClearsCounter(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()

	require.NoError(t, f.redis.Set("dispatch:retry:9", []byte("3"), time.Minute))

	f.campaigns.On("UpdateStatus", mock.Anything, int64(9), model.CampaignStatusSending, model.CampaignStatusPaused).Return(nil).Once()
	f.locker.On("Del", services.SendLockKey(9)).Return(nil).Once()

	err := f.processor.Process(ctx, dispatchMessage(t, 9))
	require.NoError(t, err)

	count, err := f.idempotency.GetRetryCount(ctx, "9")
	require.NoError(t, err)
	assert.Zero(t, count)

	f.campaigns.AssertExpectations(t)
	f.locker.AssertExpectations(t)
	f.client.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)

	// With the counter cleared the next job gets past the retry gate.
	dc, err := f.idempotency.AcquireDispatchLock(ctx, "9")
	require.NoError(t, err)
	require.NoError(t, f.idempotency.ReleaseLock(ctx, dc))
}

func TestDispatchProcessor_EmptyRadiusCompletesImmediately(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	campaign := sendingCampaign(4, 10)

	f.campaigns.On("Get", mock.Anything, int64(4)).Return(campaign, nil)
	f.deliveries.On("List", mock.Anything, mock.Anything).Return([]*model.Delivery{}, int64(0), nil)
	f.locations.On("Get", mock.Anything, int64(10)).Return(&model.TargetingLocation{
		ID: 10, CenterLat: 37.5, CenterLng: 127.0, RadiusM: 500,
	}, nil)
	f.customers.On("Nearby", mock.Anything, 37.5, 127.0, 500).Return([]*model.CustomerWithDistance{}, nil)
	f.deliveries.On("CountPending", mock.Anything, int64(4)).Return(int64(0), nil)

	f.campaigns.On("UpdateStatus", mock.Anything, int64(4), model.CampaignStatusSending, model.CampaignStatusCompleted).Return(nil).Once()
	f.locker.On("Del", services.SendLockKey(4)).Return(nil)

	err := f.processor.Process(ctx, dispatchMessage(t, 4))
	require.NoError(t, err)

	f.client.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
	f.campaigns.AssertExpectations(t)
}

func TestDispatchProcessor_ProviderFailureMarksDeliveryFailed(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	campaign := sendingCampaign(5, 10)

	pending := []*model.Delivery{
		{ID: 5000, CampaignID: 5, CustomerID: 100, Status: model.DeliveryStatusPending, MessageTextSent: campaign.Message},
	}

	f.campaigns.On("Get", mock.Anything, int64(5)).Return(campaign, nil)
	f.deliveries.On("List", mock.Anything, mock.MatchedBy(func(fl model.DeliveryFilter) bool {
		return len(fl.Statuses) == 0
	})).Return(pending, int64(1), nil).Once()
	f.deliveries.On("List", mock.Anything, mock.MatchedBy(func(fl model.DeliveryFilter) bool {
		return len(fl.Statuses) == 1
	})).Return(pending, int64(1), nil).Once()
	f.deliveries.On("List", mock.Anything, mock.Anything).Return([]*model.Delivery{}, int64(0), nil)

	f.customers.On("Get", mock.Anything, int64(100)).Return(&model.Customer{ID: 100, Phone: "+821011112222"}, nil)
	f.client.On("Deliver", mock.Anything, mock.Anything).Return(nil, assert.AnError).Once()
	f.deliveries.On("MarkFailed", mock.Anything, int64(5000), "PROVIDER_ERROR").Return(nil).Once()

	f.campaigns.On("UpdateStatus", mock.Anything, int64(5), model.CampaignStatusSending, model.CampaignStatusCompleted).Return(nil).Once()
	f.locker.On("Del", services.SendLockKey(5)).Return(nil)

	err := f.processor.Process(ctx, dispatchMessage(t, 5))
	require.NoError(t, err)

	f.deliveries.AssertExpectations(t)
}

func TestDispatchProcessor_RejectedOutcomeKeepsErrorCode(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	campaign := sendingCampaign(6, 10)

	pending := []*model.Delivery{
		{ID: 6000, CampaignID: 6, CustomerID: 100, Status: model.DeliveryStatusPending, MessageTextSent: campaign.Message},
	}

	f.campaigns.On("Get", mock.Anything, int64(6)).Return(campaign, nil)
	f.deliveries.On("List", mock.Anything, mock.MatchedBy(func(fl model.DeliveryFilter) bool {
		return len(fl.Statuses) == 0
	})).Return(pending, int64(1), nil).Once()
	f.deliveries.On("List", mock.Anything, mock.MatchedBy(func(fl model.DeliveryFilter) bool {
		return len(fl.Statuses) == 1
	})).Return(pending, int64(1), nil).Once()
	f.deliveries.On("List", mock.Anything, mock.Anything).Return([]*model.Delivery{}, int64(0), nil)

	f.customers.On("Get", mock.Anything, int64(100)).Return(&model.Customer{ID: 100, Phone: "+821011112222"}, nil)
	f.client.On("Deliver", mock.Anything, mock.Anything).Return(&gateway.DeliverResponse{
		Outcome:   gateway.OutcomeFailed,
		ErrorCode: "INVALID_NUMBER",
	}, nil).Once()
	f.deliveries.On("MarkFailed", mock.Anything, int64(6000), "INVALID_NUMBER").Return(nil).Once()

	f.campaigns.On("UpdateStatus", mock.Anything, int64(6), model.CampaignStatusSending, model.CampaignStatusCompleted).Return(nil).Once()
	f.locker.On("Del", services.SendLockKey(6)).Return(nil)

	err := f.processor.Process(ctx, dispatchMessage(t, 6))
	require.NoError(t, err)

	f.deliveries.AssertExpectations(t)
}

func TestDispatchProcessor_InvalidPayload(t *testing.T) {
	f := newDispatchFixture(t)

	err := f.processor.Process(context.Background(), &queue.Message{ID: "1-0", Data: []byte("not json")})
	assert.Error(t, err)
}
