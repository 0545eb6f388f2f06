package services

import (
	"context"
	"testing"
	"time"

	"github.com/nearwave/geocampaign/internal/model"
	"github.com/nearwave/geocampaign/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCampaignRepository struct {
	mock.Mock
}

func (m *MockCampaignRepository) Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) Update(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) UpdateStatus(ctx context.Context, id int64, from, to model.CampaignStatus) error {
	args := m.Called(ctx, id, from, to)
	return args.Error(0)
}

func (m *MockCampaignRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCampaignRepository) List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Campaign), args.Get(1).(int64), args.Error(2)
}

type MockLocationReader struct {
	mock.Mock
}

func (m *MockLocationReader) Get(ctx context.Context, id int64) (*model.TargetingLocation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TargetingLocation), args.Error(1)
}

type MockDispatchPublisher struct {
	mock.Mock
}

func (m *MockDispatchPublisher) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	args := m.Called(ctx, data, metadata)
	return args.String(0), args.Error(1)
}

type MockSendLocker struct {
	mock.Mock
}

func (m *MockSendLocker) SetNX(key string, value []byte, ttl time.Duration) (bool, error) {
	args := m.Called(key, value, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockSendLocker) Del(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func newCampaignServiceForTest() (*CampaignService, *MockCampaignRepository, *MockLocationReader, *MockDispatchPublisher, *MockSendLocker) {
	campaignRepo := new(MockCampaignRepository)
	locationRepo := new(MockLocationReader)
	publisher := new(MockDispatchPublisher)
	locker := new(MockSendLocker)
	service := NewCampaignService(campaignRepo, locationRepo, publisher, locker, time.Minute)
	return service, campaignRepo, locationRepo, publisher, locker
}

func sendableCampaign(id int64, status model.CampaignStatus) *model.Campaign {
	locationID := int64(10)
	return &model.Campaign{
		ID:                  id,
		Name:                "Campaign",
		Message:             "hello there",
		Status:              status,
		TargetingLocationID: &locationID,
	}
}

func TestCampaignService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("create in draft", func(t *testing.T) {
		service, campaignRepo, locationRepo, _, _ := newCampaignServiceForTest()

		locationID := int64(10)
		locationRepo.On("Get", ctx, locationID).Return(&model.TargetingLocation{ID: locationID}, nil)
		campaignRepo.On("Create", ctx, mock.AnythingOfType("*model.Campaign")).
			Return(sendableCampaign(1, model.CampaignStatusDraft), nil)

		created, err := service.Create(ctx, model.CampaignCreateRequest{
			Name:                "Campaign",
			Message:             "hello there",
			TargetingLocationID: &locationID,
		})
		require.NoError(t, err)
		assert.Equal(t, model.CampaignStatusDraft, created.Status)
		campaignRepo.AssertExpectations(t)
	})

	t.Run("empty name rejected", func(t *testing.T) {
		service, campaignRepo, _, _, _ := newCampaignServiceForTest()

		_, err := service.Create(ctx, model.CampaignCreateRequest{Name: "  ", Message: "hi"})
		assert.ErrorIs(t, err, model.ErrEmptyName)
		campaignRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("missing targeting location rejected", func(t *testing.T) {
		service, campaignRepo, locationRepo, _, _ := newCampaignServiceForTest()

		locationID := int64(99)
		locationRepo.On("Get", ctx, locationID).Return(nil, repository.ErrTargetingLocationNotFound)

		_, err := service.Create(ctx, model.CampaignCreateRequest{
			Name:                "Campaign",
			Message:             "hi",
			TargetingLocationID: &locationID,
		})
		assert.ErrorIs(t, err, model.ErrNoTargetingLocation)
		campaignRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestCampaignService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("editable in paused", func(t *testing.T) {
		service, campaignRepo, locationRepo, _, _ := newCampaignServiceForTest()

		c := sendableCampaign(1, model.CampaignStatusPaused)
		campaignRepo.On("Get", ctx, int64(1)).Return(c, nil)
		locationRepo.On("Get", ctx, int64(10)).Return(&model.TargetingLocation{ID: 10}, nil)
		campaignRepo.On("Update", ctx, mock.AnythingOfType("*model.Campaign")).Return(c, nil)

		locationID := int64(10)
		_, err := service.Update(ctx, 1, model.CampaignUpdateRequest{
			Name:                "Renamed",
			Message:             "new text",
			TargetingLocationID: &locationID,
		})
		require.NoError(t, err)
		campaignRepo.AssertExpectations(t)
	})

	t.Run("frozen while sending", func(t *testing.T) {
		service, campaignRepo, _, _, _ := newCampaignServiceForTest()

		campaignRepo.On("Get", ctx, int64(1)).Return(sendableCampaign(1, model.CampaignStatusSending), nil)

		_, err := service.Update(ctx, 1, model.CampaignUpdateRequest{Name: "x", Message: "y"})
		assert.ErrorIs(t, err, model.ErrCampaignNotEditable)
		campaignRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("frozen when completed", func(t *testing.T) {
		service, campaignRepo, _, _, _ := newCampaignServiceForTest()

		campaignRepo.On("Get", ctx, int64(1)).Return(sendableCampaign(1, model.CampaignStatusCompleted), nil)

		_, err := service.Update(ctx, 1, model.CampaignUpdateRequest{Name: "x", Message: "y"})
		assert.ErrorIs(t, err, model.ErrCampaignNotEditable)
	})
}

func TestCampaignService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("delete draft", func(t *testing.T) {
		service, campaignRepo, _, _, _ := newCampaignServiceForTest()

		campaignRepo.On("Get", ctx, int64(1)).Return(sendableCampaign(1, model.CampaignStatusDraft), nil)
		campaignRepo.On("Delete", ctx, int64(1)).Return(nil)

		require.NoError(t, service.Delete(ctx, 1))
		campaignRepo.AssertExpectations(t)
	})

	t.Run("never while sending", func(t *testing.T) {
		service, campaignRepo, _, _, _ := newCampaignServiceForTest()

		campaignRepo.On("Get", ctx, int64(1)).Return(sendableCampaign(1, model.CampaignStatusSending), nil)

		err := service.Delete(ctx, 1)
		assert.ErrorIs(t, err, model.ErrCampaignNotDeletable)
		campaignRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("cancelled campaigns are deletable", func(t *testing.T) {
		service, campaignRepo, _, _, _ := newCampaignServiceForTest()

		campaignRepo.On("Get", ctx, int64(1)).Return(sendableCampaign(1, model.CampaignStatusCancelled), nil)
		campaignRepo.On("Delete", ctx, int64(1)).Return(nil)

		require.NoError(t, service.Delete(ctx, 1))
	})
}

func TestCampaignService_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("send enqueues exactly one job", func(t *testing.T) {
		service, campaignRepo, locationRepo, publisher, locker := newCampaignServiceForTest()

		c := sendableCampaign(1, model.CampaignStatusDraft)
		campaignRepo.On("Get", ctx, int64(1)).Return(c, nil)
		locationRepo.On("Get", ctx, int64(10)).Return(&model.TargetingLocation{ID: 10}, nil)
		locker.On("SetNX", SendLockKey(1), mock.Anything, time.Minute).Return(true, nil)
		campaignRepo.On("UpdateStatus", ctx, int64(1), model.CampaignStatusDraft, model.CampaignStatusSending).Return(nil)
		publisher.On("PublishJSON", ctx, DispatchJob{CampaignID: 1}, map[string]string(nil)).Return("1-0", nil)

		_, err := service.Send(ctx, 1)
		require.NoError(t, err)
		publisher.AssertNumberOfCalls(t, "PublishJSON", 1)
		locker.AssertExpectations(t)
	})

	t.Run("blank message blocks send", func(t *testing.T) {
		service, campaignRepo, _, publisher, locker := newCampaignServiceForTest()

		c := sendableCampaign(1, model.CampaignStatusDraft)
		c.Message = "   "
		campaignRepo.On("Get", ctx, int64(1)).Return(c, nil)

		_, err := service.Send(ctx, 1)
		assert.ErrorIs(t, err, model.ErrEmptyMessage)
		publisher.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything, mock.Anything)
		locker.AssertNotCalled(t, "SetNX", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("detached targeting location blocks send", func(t *testing.T) {
		service, campaignRepo, _, publisher, _ := newCampaignServiceForTest()

		c := sendableCampaign(1, model.CampaignStatusDraft)
		c.TargetingLocationID = nil
		campaignRepo.On("Get", ctx, int64(1)).Return(c, nil)

		_, err := service.Send(ctx, 1)
		assert.ErrorIs(t, err, model.ErrNoTargetingLocation)
		publisher.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("deleted targeting location blocks send", func(t *testing.T) {
		service, campaignRepo, locationRepo, publisher, _ := newCampaignServiceForTest()

		campaignRepo.On("Get", ctx, int64(1)).Return(sendableCampaign(1, model.CampaignStatusDraft), nil)
		locationRepo.On("Get", ctx, int64(10)).Return(nil, repository.ErrTargetingLocationNotFound)

		_, err := service.Send(ctx, 1)
		assert.ErrorIs(t, err, model.ErrNoTargetingLocation)
		publisher.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("terminal campaign cannot send", func(t *testing.T) {
		service, campaignRepo, _, publisher, _ := newCampaignServiceForTest()

		campaignRepo.On("Get", ctx, int64(1)).Return(sendableCampaign(1, model.CampaignStatusCompleted), nil)

		_, err := service.Send(ctx, 1)
		assert.ErrorIs(t, err, model.ErrInvalidTransition)
		publisher.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("duplicate send is absorbed by the lock", func(t *testing.T) {
		service, campaignRepo, locationRepo, publisher, locker := newCampaignServiceForTest()

		campaignRepo.On("Get", ctx, int64(1)).Return(sendableCampaign(1, model.CampaignStatusDraft), nil)
		locationRepo.On("Get", ctx, int64(10)).Return(&model.TargetingLocation{ID: 10}, nil)
		locker.On("SetNX", SendLockKey(1), mock.Anything, time.Minute).Return(false, nil)

		_, err := service.Send(ctx, 1)
		assert.ErrorIs(t, err, ErrSendInProgress)
		publisher.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything, mock.Anything)
		campaignRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("publish failure rolls back status and lock", func(t *testing.T) {
		service, campaignRepo, locationRepo, publisher, locker := newCampaignServiceForTest()

		campaignRepo.On("Get", ctx, int64(1)).Return(sendableCampaign(1, model.CampaignStatusPaused), nil)
		locationRepo.On("Get", ctx, int64(10)).Return(&model.TargetingLocation{ID: 10}, nil)
		locker.On("SetNX", SendLockKey(1), mock.Anything, time.Minute).Return(true, nil)
		campaignRepo.On("UpdateStatus", ctx, int64(1), model.CampaignStatusPaused, model.CampaignStatusSending).Return(nil)
		publisher.On("PublishJSON", ctx, DispatchJob{CampaignID: 1}, map[string]string(nil)).Return("", assert.AnError)
		campaignRepo.On("UpdateStatus", ctx, int64(1), model.CampaignStatusSending, model.CampaignStatusPaused).Return(nil)
		locker.On("Del", SendLockKey(1)).Return(nil)

		_, err := service.Send(ctx, 1)
		require.Error(t, err)
		campaignRepo.AssertExpectations(t)
		locker.AssertCalled(t, "Del", SendLockKey(1))
	})
}

func TestCampaignService_PauseAndCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("pause while sending", func(t *testing.T) {
		service, campaignRepo, _, _, _ := newCampaignServiceForTest()

		campaignRepo.On("Get", ctx, int64(1)).Return(sendableCampaign(1, model.CampaignStatusSending), nil)
		campaignRepo.On("UpdateStatus", ctx, int64(1), model.CampaignStatusSending, model.CampaignStatusPaused).Return(nil)

		_, err := service.Pause(ctx, 1)
		require.NoError(t, err)
		campaignRepo.AssertExpectations(t)
	})

	t.Run("cancel while sending is not allowed", func(t *testing.T) {
		service, campaignRepo, _, _, _ := newCampaignServiceForTest()

		campaignRepo.On("Get", ctx, int64(1)).Return(sendableCampaign(1, model.CampaignStatusSending), nil)

		_, err := service.Cancel(ctx, 1)
		assert.ErrorIs(t, err, model.ErrInvalidTransition)
	})

	t.Run("cancel paused campaign", func(t *testing.T) {
		service, campaignRepo, _, _, _ := newCampaignServiceForTest()

		campaignRepo.On("Get", ctx, int64(1)).Return(sendableCampaign(1, model.CampaignStatusPaused), nil)
		campaignRepo.On("UpdateStatus", ctx, int64(1), model.CampaignStatusPaused, model.CampaignStatusCancelled).Return(nil)

		_, err := service.Cancel(ctx, 1)
		require.NoError(t, err)
	})

	t.Run("terminal states accept nothing", func(t *testing.T) {
		service, campaignRepo, _, _, _ := newCampaignServiceForTest()

		campaignRepo.On("Get", ctx, int64(1)).Return(sendableCampaign(1, model.CampaignStatusCancelled), nil)

		_, err := service.Pause(ctx, 1)
		assert.ErrorIs(t, err, model.ErrInvalidTransition)
	})
}
