package model

import "time"

// DeliveryStatus is the per-customer send outcome. PENDING rows are created
// by the dispatcher before the provider call; SENT and FAILED are terminal.
type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "PENDING"
	DeliveryStatusSent    DeliveryStatus = "SENT"
	DeliveryStatusFailed  DeliveryStatus = "FAILED"
)

func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusSent || s == DeliveryStatusFailed
}

// Delivery is one customer-level send attempt. Only the dispatch processor
// writes these; the API exposes them read-only.
type Delivery struct {
	ID              int64          `json:"id"`
	CampaignID      int64          `json:"campaignId"`
	CustomerID      int64          `json:"customerId"`
	Status          DeliveryStatus `json:"status"`
	MessageTextSent string         `json:"messageTextSent,omitempty"`
	ErrorCode       string         `json:"errorCode,omitempty"`
	SentAt          *time.Time     `json:"sentAt,omitempty"`
	DeliveredAt     *time.Time     `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

type DeliveryFilter struct {
	CampaignID *int64
	CustomerID *int64
	Statuses   []DeliveryStatus
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
	Desc       bool
}

// DeliverySummary is the per-campaign (or global) rollup of send outcomes.
type DeliverySummary struct {
	Total       int64   `json:"total"`
	Pending     int64   `json:"pending"`
	Sent        int64   `json:"sent"`
	Failed      int64   `json:"failed"`
	SuccessRate float64 `json:"successRate"`
}

// HourlyDeliveries is one time bucket of the hourly rollup.
type HourlyDeliveries struct {
	Hour   time.Time `json:"hour"`
	Total  int64     `json:"total"`
	Sent   int64     `json:"sent"`
	Failed int64     `json:"failed"`
}
