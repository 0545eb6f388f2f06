package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nearwave/geocampaign/internal/model"
	"github.com/nearwave/geocampaign/internal/repository"
	"github.com/nearwave/geocampaign/pkg/logger"
)

// ErrSendInProgress is returned when a dispatch for the campaign is
// already in flight. Double-clicking send must enqueue exactly one job.
var ErrSendInProgress = errors.New("campaign dispatch already in progress")

type CampaignRepository interface {
	Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error)
	Get(ctx context.Context, id int64) (*model.Campaign, error)
	Update(ctx context.Context, c *model.Campaign) (*model.Campaign, error)
	UpdateStatus(ctx context.Context, id int64, from, to model.CampaignStatus) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error) // results, totalCount
}

type TargetingLocationReader interface {
	Get(ctx context.Context, id int64) (*model.TargetingLocation, error)
}

// DispatchPublisher enqueues dispatch jobs for the processor.
type DispatchPublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// SendLocker is the per-campaign dispatch lock. Acquire returns false when
// another dispatch already holds the lock.
type SendLocker interface {
	SetNX(key string, value []byte, ttl time.Duration) (bool, error)
	Del(key string) error
}

// DispatchJob is the queue payload consumed by the dispatch processor.
type DispatchJob struct {
	CampaignID int64 `json:"campaignId"`
}

type CampaignService struct {
	campaignRepo CampaignRepository
	locationRepo TargetingLocationReader
	queue        DispatchPublisher
	locker       SendLocker
	sendLockTTL  time.Duration
}

func NewCampaignService(campaignRepo CampaignRepository, locationRepo TargetingLocationReader, queue DispatchPublisher, locker SendLocker, sendLockTTL time.Duration) *CampaignService {
	if sendLockTTL <= 0 {
		sendLockTTL = 5 * time.Minute
	}
	return &CampaignService{
		campaignRepo: campaignRepo,
		locationRepo: locationRepo,
		queue:        queue,
		locker:       locker,
		sendLockTTL:  sendLockTTL,
	}
}

// Create stores a new campaign in DRAFT. An attached targeting location is
// verified to exist but is not required at this point.
func (s *CampaignService) Create(ctx context.Context, p model.CampaignCreateRequest) (*model.Campaign, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkLocation(ctx, p.TargetingLocationID); err != nil {
		return nil, err
	}

	c := &model.Campaign{
		Name:                p.Name,
		Message:             p.Message,
		Description:         p.Description,
		ImageURL:            p.ImageURL,
		ImageAlt:            p.ImageAlt,
		Status:              model.CampaignStatusDraft,
		TargetingLocationID: p.TargetingLocationID,
	}

	return s.campaignRepo.Create(ctx, c)
}

func (s *CampaignService) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	return s.campaignRepo.Get(ctx, id)
}

func (s *CampaignService) List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error) {
	return s.campaignRepo.List(ctx, f)
}

// Update replaces the editable fields. Campaigns are frozen outside DRAFT
// and PAUSED.
func (s *CampaignService) Update(ctx context.Context, id int64, p model.CampaignUpdateRequest) (*model.Campaign, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	c, err := s.campaignRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.CanEdit() {
		return nil, model.ErrCampaignNotEditable
	}
	if err := s.checkLocation(ctx, p.TargetingLocationID); err != nil {
		return nil, err
	}

	c.Name = p.Name
	c.Message = p.Message
	c.Description = p.Description
	c.ImageURL = p.ImageURL
	c.ImageAlt = p.ImageAlt
	c.TargetingLocationID = p.TargetingLocationID

	return s.campaignRepo.Update(ctx, c)
}

func (s *CampaignService) Delete(ctx context.Context, id int64) error {
	c, err := s.campaignRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !c.CanDelete() {
		return model.ErrCampaignNotDeletable
	}
	return s.campaignRepo.Delete(ctx, id)
}

// Send moves the campaign into SENDING and enqueues exactly one dispatch
// job. Preconditions: a legal transition, a non-blank message, and an
// existing targeting location. The per-campaign lock absorbs duplicate
// requests racing each other.
func (s *CampaignService) Send(ctx context.Context, id int64) (*model.Campaign, error) {
	c, err := s.campaignRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.ReadyToSend(); err != nil {
		return nil, err
	}
	if _, err := s.locationRepo.Get(ctx, *c.TargetingLocationID); err != nil {
		if errors.Is(err, repository.ErrTargetingLocationNotFound) {
			return nil, model.ErrNoTargetingLocation
		}
		return nil, err
	}

	acquired, err := s.locker.SetNX(SendLockKey(id), []byte("1"), s.sendLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire send lock: %w", err)
	}
	if !acquired {
		return nil, ErrSendInProgress
	}

	if err := s.campaignRepo.UpdateStatus(ctx, id, c.Status, model.CampaignStatusSending); err != nil {
		s.releaseLock(id)
		return nil, err
	}

	if _, err := s.queue.PublishJSON(ctx, DispatchJob{CampaignID: id}, nil); err != nil {
		// Roll the status back so the campaign is not stuck in SENDING
		// with no job behind it.
		if rbErr := s.campaignRepo.UpdateStatus(ctx, id, model.CampaignStatusSending, c.Status); rbErr != nil {
			logger.Error("failed to roll back campaign status after publish error", "campaign_id", id, "error", rbErr)
		}
		s.releaseLock(id)
		return nil, fmt.Errorf("enqueue dispatch: %w", err)
	}

	return s.campaignRepo.Get(ctx, id)
}

// Pause suspends a campaign. The dispatch processor checks the status
// between provider calls and stops once it observes PAUSED.
func (s *CampaignService) Pause(ctx context.Context, id int64) (*model.Campaign, error) {
	return s.transition(ctx, id, model.CampaignStatusPaused)
}

// Cancel terminates a campaign permanently. Only DRAFT and PAUSED may be
// cancelled; a SENDING campaign must be paused first.
func (s *CampaignService) Cancel(ctx context.Context, id int64) (*model.Campaign, error) {
	return s.transition(ctx, id, model.CampaignStatusCancelled)
}

func (s *CampaignService) transition(ctx context.Context, id int64, to model.CampaignStatus) (*model.Campaign, error) {
	c, err := s.campaignRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Status.CanTransitionTo(to) {
		return nil, model.ErrInvalidTransition
	}
	if err := s.campaignRepo.UpdateStatus(ctx, id, c.Status, to); err != nil {
		return nil, err
	}
	return s.campaignRepo.Get(ctx, id)
}

func (s *CampaignService) checkLocation(ctx context.Context, locationID *int64) error {
	if locationID == nil {
		return nil
	}
	if _, err := s.locationRepo.Get(ctx, *locationID); err != nil {
		if errors.Is(err, repository.ErrTargetingLocationNotFound) {
			return model.ErrNoTargetingLocation
		}
		return err
	}
	return nil
}

func (s *CampaignService) releaseLock(id int64) {
	if err := s.locker.Del(SendLockKey(id)); err != nil {
		logger.Warn("failed to release send lock", "campaign_id", id, "error", err)
	}
}

func SendLockKey(id int64) string {
	return fmt.Sprintf("campaign:%d:dispatch-lock", id)
}
