package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nearwave/geocampaign/pkg/logger"
	"github.com/nearwave/geocampaign/pkg/redis"
)

var (
	ErrAlreadyDispatched  = errors.New("campaign already dispatched")
	ErrLockAcquireFailed  = errors.New("failed to acquire dispatch lock")
	ErrMaxRetriesExceeded = errors.New("maximum dispatch retries exceeded")
)

type IdempotencyConfig struct {
	LockTTL time.Duration

	ProcessedTTL time.Duration

	MaxRetries int

	RetryKeyPrefix string

	LockKeyPrefix string

	ProcessedKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:            5 * time.Minute,
		ProcessedTTL:       24 * time.Hour,
		MaxRetries:         3,
		RetryKeyPrefix:     "dispatch:retry:",
		LockKeyPrefix:      "dispatch:lock:",
		ProcessedKeyPrefix: "dispatch:done:",
	}
}

// IdempotencyService keeps one dispatch run per campaign: a short-term lock
// against concurrent consumers, a retry counter across failed runs, and a
// long-term marker once a run finished.
type IdempotencyService struct {
	redis  redis.RedisAdapter
	config IdempotencyConfig
}

func NewIdempotencyService(redisAdapter redis.RedisAdapter, config IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{
		redis:  redisAdapter,
		config: config,
	}
}

type DispatchContext struct {
	CampaignID   string
	RetryCount   int
	IsRetry      bool
	lockAcquired bool
	service      *IdempotencyService
}

func (s *IdempotencyService) AcquireDispatchLock(ctx context.Context, campaignID string) (*DispatchContext, error) {
	// Already finished? The long-term marker survives queue redeliveries.
	processedKey := s.config.ProcessedKeyPrefix + campaignID
	exists, err := s.redis.Exist(processedKey)
	if err != nil {
		// Better to risk a duplicate run than to block dispatch entirely.
		logger.Warn("Failed to check dispatched marker", "campaign_id", campaignID, "error", err)
	} else if exists > 0 {
		return nil, ErrAlreadyDispatched
	}

	retryKey := s.config.RetryKeyPrefix + campaignID
	retryCountBytes, err := s.redis.Get(retryKey)
	retryCount := 0
	if err == nil && len(retryCountBytes) > 0 {
		fmt.Sscanf(string(retryCountBytes), "%d", &retryCount)
	}

	if retryCount >= s.config.MaxRetries {
		logger.Error("Max dispatch retries exceeded", "campaign_id", campaignID, "retry_count", retryCount)
		return nil, fmt.Errorf("%w: campaign_id=%s, retries=%d", ErrMaxRetriesExceeded, campaignID, retryCount)
	}

	lockKey := s.config.LockKeyPrefix + campaignID
	lockValue := []byte(fmt.Sprintf("%d", time.Now().UnixNano()))

	acquired, err := s.redis.SetNX(lockKey, lockValue, s.config.LockTTL)
	if err != nil {
		logger.Error("Failed to acquire dispatch lock", "campaign_id", campaignID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !acquired {
		logger.Info("Dispatch lock held by another consumer", "campaign_id", campaignID)
		return nil, ErrLockAcquireFailed
	}

	logger.Info("Dispatch lock acquired",
		"campaign_id", campaignID,
		"retry_count", retryCount,
		"lock_ttl", s.config.LockTTL)

	return &DispatchContext{
		CampaignID:   campaignID,
		RetryCount:   retryCount,
		IsRetry:      retryCount > 0,
		lockAcquired: true,
		service:      s,
	}, nil
}

func (s *IdempotencyService) MarkSuccess(ctx context.Context, dc *DispatchContext) error {
	campaignID := dc.CampaignID

	processedKey := s.config.ProcessedKeyPrefix + campaignID
	if err := s.redis.Set(processedKey, []byte("1"), s.config.ProcessedTTL); err != nil {
		logger.Error("Failed to mark campaign as dispatched", "campaign_id", campaignID, "error", err)
		return fmt.Errorf("failed to mark as dispatched: %w", err)
	}

	s.cleanup(ctx, dc)

	logger.Info("Campaign dispatch finished", "campaign_id", campaignID, "retry_count", dc.RetryCount)

	return nil
}

func (s *IdempotencyService) MarkFailure(ctx context.Context, dc *DispatchContext, reason error) error {
	campaignID := dc.CampaignID

	// The counter outlives the lock so retries are tracked across runs.
	retryKey := s.config.RetryKeyPrefix + campaignID
	newRetryCount := dc.RetryCount + 1
	if err := s.redis.Set(retryKey, []byte(fmt.Sprintf("%d", newRetryCount)), s.config.ProcessedTTL); err != nil {
		logger.Error("Failed to increment retry counter", "campaign_id", campaignID, "error", err)
	}

	lockKey := s.config.LockKeyPrefix + campaignID
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("Failed to remove dispatch lock", "campaign_id", campaignID, "error", err)
	}

	logger.Warn("Campaign dispatch failed, will retry",
		"campaign_id", campaignID,
		"retry_count", newRetryCount,
		"max_retries", s.config.MaxRetries,
		"reason", reason)

	return nil
}

func (s *IdempotencyService) ReleaseLock(ctx context.Context, dc *DispatchContext) error {
	if dc == nil || !dc.lockAcquired {
		return nil
	}

	lockKey := s.config.LockKeyPrefix + dc.CampaignID
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("Failed to release dispatch lock", "campaign_id", dc.CampaignID, "error", err)
		return err
	}

	dc.lockAcquired = false
	logger.Debug("Dispatch lock released", "campaign_id", dc.CampaignID)
	return nil
}

func (s *IdempotencyService) cleanup(ctx context.Context, dc *DispatchContext) {
	campaignID := dc.CampaignID

	lockKey := s.config.LockKeyPrefix + campaignID
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("Failed to cleanup dispatch lock", "campaign_id", campaignID, "error", err)
	}

	retryKey := s.config.RetryKeyPrefix + campaignID
	if err := s.redis.Del(retryKey); err != nil {
		logger.Warn("Failed to cleanup retry counter", "campaign_id", campaignID, "error", err)
	}

	dc.lockAcquired = false
}

// ClearRetries resets the retry counter so the next dispatch run starts with
// a fresh attempt budget. Called when a campaign is parked after exhaustion;
// without it a user resume inside the counter's TTL would be refused.
func (s *IdempotencyService) ClearRetries(ctx context.Context, campaignID string) error {
	return s.redis.Del(s.config.RetryKeyPrefix + campaignID)
}

func (s *IdempotencyService) GetRetryCount(ctx context.Context, campaignID string) (int, error) {
	retryKey := s.config.RetryKeyPrefix + campaignID
	retryCountBytes, err := s.redis.Get(retryKey)
	if err != nil {
		if err == redis.NilError {
			return 0, nil
		}
		return 0, err
	}

	retryCount := 0
	fmt.Sscanf(string(retryCountBytes), "%d", &retryCount)
	return retryCount, nil
}

func (s *IdempotencyService) IsDispatched(ctx context.Context, campaignID string) (bool, error) {
	processedKey := s.config.ProcessedKeyPrefix + campaignID
	exists, err := s.redis.Exist(processedKey)
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
