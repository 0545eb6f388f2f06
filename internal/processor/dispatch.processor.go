package processor

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	gateway "github.com/nearwave/geocampaign/internal/gateways"
	"github.com/nearwave/geocampaign/internal/model"
	"github.com/nearwave/geocampaign/internal/queue"
	"github.com/nearwave/geocampaign/internal/repository"
	"github.com/nearwave/geocampaign/internal/services"
	"github.com/nearwave/geocampaign/pkg/logger"
	"github.com/nearwave/geocampaign/pkg/prom"
)

type CampaignRepository interface {
	Get(ctx context.Context, id int64) (*model.Campaign, error)
	UpdateStatus(ctx context.Context, id int64, from, to model.CampaignStatus) error
}

type TargetingLocationRepository interface {
	Get(ctx context.Context, id int64) (*model.TargetingLocation, error)
}

type CustomerRepository interface {
	Get(ctx context.Context, id int64) (*model.Customer, error)
	Nearby(ctx context.Context, lat, lng float64, radiusM int) ([]*model.CustomerWithDistance, error)
}

type DeliveryRepository interface {
	CreateBatch(ctx context.Context, deliveries []*model.Delivery) ([]*model.Delivery, error)
	List(ctx context.Context, f model.DeliveryFilter) ([]*model.Delivery, int64, error)
	MarkSent(ctx context.Context, id int64, sentAt time.Time) error
	MarkFailed(ctx context.Context, id int64, errorCode string) error
	CountPending(ctx context.Context, campaignID int64) (int64, error)
}

type DeliveryClient interface {
	Deliver(ctx context.Context, req *gateway.DeliverRequest) (*gateway.DeliverResponse, error)
}

// SendLockReleaser frees the API-side send lock so a paused campaign can be
// resumed without waiting for the lock TTL.
type SendLockReleaser interface {
	Del(key string) error
}

const defaultBatchLimit = 100

// CampaignDispatchProcessor consumes dispatch jobs and fans a campaign out
// to every customer inside its targeting radius. Pending delivery rows are
// created up front, so a run interrupted by a pause resumes from where it
// stopped.
type CampaignDispatchProcessor struct {
	client       DeliveryClient
	campaignRepo CampaignRepository
	locationRepo TargetingLocationRepository
	customerRepo CustomerRepository
	deliveryRepo DeliveryRepository
	idempotency  *IdempotencyService
	locker       SendLockReleaser
	batchLimit   int
}

func NewCampaignDispatchProcessor(
	client DeliveryClient,
	campaignRepo CampaignRepository,
	locationRepo TargetingLocationRepository,
	customerRepo CustomerRepository,
	deliveryRepo DeliveryRepository,
	idempotency *IdempotencyService,
	locker SendLockReleaser,
	batchLimit int,
) *CampaignDispatchProcessor {
	if batchLimit <= 0 {
		batchLimit = defaultBatchLimit
	}
	return &CampaignDispatchProcessor{
		client:       client,
		campaignRepo: campaignRepo,
		locationRepo: locationRepo,
		customerRepo: customerRepo,
		deliveryRepo: deliveryRepo,
		idempotency:  idempotency,
		locker:       locker,
		batchLimit:   batchLimit,
	}
}

func (p *CampaignDispatchProcessor) GetType() string {
	return "campaign-dispatch"
}

// Process runs one dispatch attempt for the campaign named in the job.
//
// Returning nil ACKs the queue message; returning an error leaves it pending
// for redelivery. A pause or cancel observed mid-run ACKs without the
// dispatched marker, so a later resume publishes a fresh job and picks up
// the remaining PENDING rows.
func (p *CampaignDispatchProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	var job services.DispatchJob
	if err := json.Unmarshal(queueMessage.Data, &job); err != nil {
		logger.Error("Failed to unmarshal dispatch job", "error", err)
		return err
	}

	campaignKey := strconv.FormatInt(job.CampaignID, 10)

	dc, err := p.idempotency.AcquireDispatchLock(ctx, campaignKey)
	if err != nil {
		if errors.Is(err, ErrAlreadyDispatched) {
			logger.Info("Campaign already dispatched, skipping", "campaign_id", campaignKey)
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			// Park the campaign instead of leaving it stuck in SENDING. The
			// retry counter is cleared so an explicit resume gets a fresh
			// attempt budget rather than being re-parked on arrival.
			logger.Error("Max dispatch retries exceeded, pausing campaign", "campaign_id", campaignKey)
			if pauseErr := p.campaignRepo.UpdateStatus(ctx, job.CampaignID, model.CampaignStatusSending, model.CampaignStatusPaused); pauseErr != nil {
				logger.Error("Failed to pause campaign after retry exhaustion", "campaign_id", campaignKey, "error", pauseErr)
			}
			if clearErr := p.idempotency.ClearRetries(ctx, campaignKey); clearErr != nil {
				logger.Error("Failed to clear retry counter after parking", "campaign_id", campaignKey, "error", clearErr)
			}
			p.releaseSendLock(job.CampaignID)
			prom.AddDispatchRun("exhausted")
			return nil
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			return errors.New("dispatch lock held by another consumer")
		}
		return err
	}

	defer func() {
		if dc.lockAcquired {
			p.idempotency.ReleaseLock(ctx, dc)
		}
	}()

	campaign, err := p.campaignRepo.Get(ctx, job.CampaignID)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			logger.Warn("Campaign gone before dispatch, dropping job", "campaign_id", campaignKey)
			p.releaseSendLock(job.CampaignID)
			return nil
		}
		return p.failRun(ctx, dc, err)
	}
	if campaign.Status != model.CampaignStatusSending {
		// Paused or cancelled before the job was consumed. The send lock must
		// not outlive the job, or a legal resume is rejected until it expires.
		logger.Info("Campaign no longer sending, dropping job",
			"campaign_id", campaignKey, "status", string(campaign.Status))
		p.releaseSendLock(job.CampaignID)
		return nil
	}

	logger.Info("Dispatching campaign",
		"campaign_id", campaignKey,
		"retry_count", dc.RetryCount,
		"is_retry", dc.IsRetry)

	created, err := p.ensureDeliveries(ctx, campaign)
	if err != nil {
		return p.failRun(ctx, dc, err)
	}
	if created == 0 {
		// No customers in radius and nothing pending from an earlier run.
		pending, err := p.deliveryRepo.CountPending(ctx, campaign.ID)
		if err != nil {
			return p.failRun(ctx, dc, err)
		}
		if pending == 0 {
			return p.completeRun(ctx, dc, campaign.ID)
		}
	}

	interrupted, err := p.drainPending(ctx, campaign)
	if err != nil {
		return p.failRun(ctx, dc, err)
	}
	if interrupted {
		p.releaseSendLock(campaign.ID)
		prom.AddDispatchRun("interrupted")
		return nil
	}

	return p.completeRun(ctx, dc, campaign.ID)
}

// ensureDeliveries creates the PENDING rows on the first run for a campaign.
// A resume finds existing rows and creates nothing. Returns how many rows
// exist for the campaign after the call.
func (p *CampaignDispatchProcessor) ensureDeliveries(ctx context.Context, campaign *model.Campaign) (int64, error) {
	_, total, err := p.deliveryRepo.List(ctx, model.DeliveryFilter{
		CampaignID: &campaign.ID,
		Limit:      1,
	})
	if err != nil {
		return 0, err
	}
	if total > 0 {
		return total, nil
	}

	location, err := p.locationRepo.Get(ctx, *campaign.TargetingLocationID)
	if err != nil {
		return 0, err
	}

	customers, err := p.customerRepo.Nearby(ctx, location.CenterLat, location.CenterLng, location.RadiusM)
	if err != nil {
		return 0, err
	}
	if len(customers) == 0 {
		logger.Info("No customers in targeting radius",
			"campaign_id", campaign.ID,
			"location_id", location.ID,
			"radius_m", location.RadiusM)
		return 0, nil
	}

	deliveries := make([]*model.Delivery, len(customers))
	for i, c := range customers {
		deliveries[i] = &model.Delivery{
			CampaignID:      campaign.ID,
			CustomerID:      c.ID,
			Status:          model.DeliveryStatusPending,
			MessageTextSent: campaign.Message,
		}
	}

	if _, err := p.deliveryRepo.CreateBatch(ctx, deliveries); err != nil {
		return 0, err
	}

	logger.Info("Created pending deliveries",
		"campaign_id", campaign.ID,
		"count", len(deliveries))

	return int64(len(deliveries)), nil
}

// drainPending works through PENDING rows in batches. The campaign status is
// re-read before each provider call so a pause or cancel stops further sends
// at delivery granularity. Returns true when the run was interrupted.
func (p *CampaignDispatchProcessor) drainPending(ctx context.Context, campaign *model.Campaign) (bool, error) {
	for {
		pending, _, err := p.deliveryRepo.List(ctx, model.DeliveryFilter{
			CampaignID: &campaign.ID,
			Statuses:   []model.DeliveryStatus{model.DeliveryStatusPending},
			Limit:      p.batchLimit,
		})
		if err != nil {
			return false, err
		}
		if len(pending) == 0 {
			return false, nil
		}

		for _, d := range pending {
			current, err := p.campaignRepo.Get(ctx, campaign.ID)
			if err != nil {
				return false, err
			}
			if current.Status != model.CampaignStatusSending {
				logger.Info("Dispatch interrupted",
					"campaign_id", campaign.ID,
					"status", string(current.Status))
				return true, nil
			}

			p.deliverOne(ctx, campaign, d)
		}
	}
}

func (p *CampaignDispatchProcessor) deliverOne(ctx context.Context, campaign *model.Campaign, d *model.Delivery) {
	customer, err := p.customerRepo.Get(ctx, d.CustomerID)
	if err != nil {
		logger.Warn("Customer unavailable for delivery",
			"delivery_id", d.ID, "customer_id", d.CustomerID, "error", err)
		p.markFailed(ctx, d.ID, "CUSTOMER_NOT_FOUND")
		return
	}

	start := time.Now()
	resp, err := p.client.Deliver(ctx, &gateway.DeliverRequest{
		DeliveryID: strconv.FormatInt(d.ID, 10),
		Phone:      customer.Phone,
		Message:    d.MessageTextSent,
		ImageURL:   campaign.ImageURL,
	})
	if err != nil {
		logger.Error("Provider call failed",
			"delivery_id", d.ID, "campaign_id", campaign.ID, "error", err)
		p.markFailed(ctx, d.ID, "PROVIDER_ERROR")
		return
	}

	if resp.Outcome == gateway.OutcomeDelivered {
		sentAt := resp.ProcessedAt
		if resp.DeliveredAt != nil {
			sentAt = *resp.DeliveredAt
		}
		if err := p.deliveryRepo.MarkSent(ctx, d.ID, sentAt); err != nil {
			logger.Error("Failed to record sent delivery", "delivery_id", d.ID, "error", err)
		}
		prom.AddDelivery(string(model.DeliveryStatusSent))
		prom.AddDeliveryDuration(time.Since(start).Seconds(), string(model.DeliveryStatusSent))
		return
	}

	code := resp.ErrorCode
	if code == "" {
		code = "PROVIDER_REJECTED"
	}
	logger.Warn("Provider rejected delivery",
		"delivery_id", d.ID, "campaign_id", campaign.ID, "error_code", code)
	p.markFailed(ctx, d.ID, code)
	prom.AddDeliveryDuration(time.Since(start).Seconds(), string(model.DeliveryStatusFailed))
}

func (p *CampaignDispatchProcessor) markFailed(ctx context.Context, id int64, code string) {
	if err := p.deliveryRepo.MarkFailed(ctx, id, code); err != nil {
		logger.Error("Failed to record failed delivery", "delivery_id", id, "error", err)
	}
	prom.AddDelivery(string(model.DeliveryStatusFailed))
}

// completeRun moves the campaign to COMPLETED, sets the dispatched marker
// and frees the send lock.
func (p *CampaignDispatchProcessor) completeRun(ctx context.Context, dc *DispatchContext, campaignID int64) error {
	err := p.campaignRepo.UpdateStatus(ctx, campaignID, model.CampaignStatusSending, model.CampaignStatusCompleted)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			// Paused between the last send and completion. The next resume
			// finds no pending rows and completes immediately.
			logger.Info("Campaign left SENDING before completion", "campaign_id", campaignID)
			p.releaseSendLock(campaignID)
			prom.AddDispatchRun("interrupted")
			return nil
		}
		return p.failRun(ctx, dc, err)
	}

	p.releaseSendLock(campaignID)

	if markErr := p.idempotency.MarkSuccess(ctx, dc); markErr != nil {
		logger.Error("Failed to mark dispatch success", "campaign_id", campaignID, "error", markErr)
	}

	prom.AddDispatchRun("completed")
	logger.Info("Campaign dispatch completed", "campaign_id", campaignID)
	return nil
}

func (p *CampaignDispatchProcessor) failRun(ctx context.Context, dc *DispatchContext, cause error) error {
	if markErr := p.idempotency.MarkFailure(ctx, dc, cause); markErr != nil {
		logger.Error("Failed to mark dispatch failure", "campaign_id", dc.CampaignID, "error", markErr)
	}
	return cause
}

func (p *CampaignDispatchProcessor) releaseSendLock(campaignID int64) {
	if p.locker == nil {
		return
	}
	if err := p.locker.Del(services.SendLockKey(campaignID)); err != nil {
		logger.Warn("Failed to release send lock", "campaign_id", campaignID, "error", err)
	}
}
