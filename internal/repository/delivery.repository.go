package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nearwave/geocampaign/internal/model"
	"github.com/nearwave/geocampaign/pkg/pg"
	"gorm.io/gorm"
)

// ErrDeliveryNotFound is returned when a delivery does not exist.
var ErrDeliveryNotFound = errors.New("delivery not found")

const createBatchSize = 500

type DeliveryRepository struct {
	*pg.DB
}

func NewDeliveryRepository(db *pg.DB) *DeliveryRepository {
	return &DeliveryRepository{
		db,
	}
}

// CreateBatch inserts the PENDING rows for one dispatch run.
func (r *DeliveryRepository) CreateBatch(ctx context.Context, deliveries []*model.Delivery) ([]*model.Delivery, error) {
	if len(deliveries) == 0 {
		return nil, nil
	}

	entities := make([]*DeliveryEntity, len(deliveries))
	for i, d := range deliveries {
		entities[i] = toDeliveryEntity(d)
	}

	if err := r.Write(ctx).WithContext(ctx).CreateInBatches(entities, createBatchSize).Error; err != nil {
		return nil, err
	}

	return toDeliveryModels(entities), nil
}

func (r *DeliveryRepository) Get(ctx context.Context, id int64) (*model.Delivery, error) {
	var entity DeliveryEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDeliveryNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDeliveryModel(&entity), nil
}

// MarkSent records a successful provider acknowledgement.
func (r *DeliveryRepository) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	return r.updateStatus(ctx, id, model.DeliveryStatusSent, "", &sentAt)
}

// MarkFailed records a provider failure with its error code.
func (r *DeliveryRepository) MarkFailed(ctx context.Context, id int64, errorCode string) error {
	return r.updateStatus(ctx, id, model.DeliveryStatusFailed, errorCode, nil)
}

func (r *DeliveryRepository) updateStatus(ctx context.Context, id int64, status model.DeliveryStatus, errorCode string, sentAt *time.Time) error {
	updates := map[string]interface{}{
		"status":     string(status),
		"error_code": errorCode,
	}
	if sentAt != nil {
		updates["sent_at"] = *sentAt
	}

	res := r.Write(ctx).WithContext(ctx).
		Model(&DeliveryEntity{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}

func (r *DeliveryRepository) List(ctx context.Context, f model.DeliveryFilter) ([]*model.Delivery, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&DeliveryEntity{})

	if f.CampaignID != nil {
		q = q.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.CustomerID != nil {
		q = q.Where("customer_id = ?", *f.CustomerID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*DeliveryEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toDeliveryModels(entities), total, nil
}

// Summary rolls up send outcomes, optionally scoped to one campaign.
// SuccessRate counts SENT over terminal attempts; PENDING rows are excluded
// so a campaign mid-flight does not read as failing.
func (r *DeliveryRepository) Summary(ctx context.Context, campaignID *int64) (*model.DeliverySummary, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&DeliveryEntity{})
	if campaignID != nil {
		q = q.Where("campaign_id = ?", *campaignID)
	}

	var rows []struct {
		Status string
		Count  int64
	}
	if err := q.Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	summary := &model.DeliverySummary{}
	for _, row := range rows {
		summary.Total += row.Count
		switch model.DeliveryStatus(row.Status) {
		case model.DeliveryStatusPending:
			summary.Pending += row.Count
		case model.DeliveryStatusSent:
			summary.Sent += row.Count
		case model.DeliveryStatusFailed:
			summary.Failed += row.Count
		}
	}

	if terminal := summary.Sent + summary.Failed; terminal > 0 {
		summary.SuccessRate = float64(summary.Sent) / float64(terminal)
	}

	return summary, nil
}

// CountPending reports how many deliveries of a campaign are still awaiting
// a provider outcome. Zero means the dispatch run is finished.
func (r *DeliveryRepository) CountPending(ctx context.Context, campaignID int64) (int64, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&DeliveryEntity{}).
		Where("campaign_id = ? AND status = ?", campaignID, string(model.DeliveryStatusPending)).
		Count(&count).Error
	return count, err
}

func (r *DeliveryRepository) CountByStatus(ctx context.Context, status model.DeliveryStatus) (int64, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&DeliveryEntity{}).
		Where("status = ?", string(status)).
		Count(&count).Error
	return count, err
}

// Hourly buckets delivery outcomes per UTC hour over the window. The query
// only filters; grouping happens in Go, like Nearby, so it runs unchanged on
// postgres and the sqlite test driver.
func (r *DeliveryRepository) Hourly(ctx context.Context, campaignID *int64, from, to time.Time) ([]*model.HourlyDeliveries, error) {
	q := r.Read(ctx).WithContext(ctx).
		Model(&DeliveryEntity{}).
		Select("status, created_at").
		Where("created_at >= ? AND created_at < ?", from, to)
	if campaignID != nil {
		q = q.Where("campaign_id = ?", *campaignID)
	}

	var rows []struct {
		Status    string
		CreatedAt time.Time
	}
	if err := q.Order("created_at ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}

	index := make(map[time.Time]*model.HourlyDeliveries)
	var buckets []*model.HourlyDeliveries
	for _, row := range rows {
		hour := row.CreatedAt.UTC().Truncate(time.Hour)
		b, ok := index[hour]
		if !ok {
			b = &model.HourlyDeliveries{Hour: hour}
			index[hour] = b
			// Rows arrive in created_at order, so buckets stay sorted.
			buckets = append(buckets, b)
		}
		b.Total++
		switch model.DeliveryStatus(row.Status) {
		case model.DeliveryStatusSent:
			b.Sent++
		case model.DeliveryStatusFailed:
			b.Failed++
		}
	}
	return buckets, nil
}
