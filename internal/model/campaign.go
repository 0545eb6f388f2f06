package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "DRAFT"
	CampaignStatusSending   CampaignStatus = "SENDING"
	CampaignStatusPaused    CampaignStatus = "PAUSED"
	CampaignStatusCompleted CampaignStatus = "COMPLETED"
	CampaignStatusCancelled CampaignStatus = "CANCELLED"
)

// MaxMessageLen is the display limit for campaign message text, in runes.
const MaxMessageLen = 1000

var (
	ErrEmptyName            = errors.New("campaign name is required")
	ErrEmptyMessage         = errors.New("campaign message is required")
	ErrMessageTooLong       = errors.New("campaign message exceeds maximum length")
	ErrNoTargetingLocation  = errors.New("campaign has no targeting location attached")
	ErrInvalidTransition    = errors.New("status transition not permitted")
	ErrCampaignNotEditable  = errors.New("campaign can only be edited in DRAFT or PAUSED")
	ErrCampaignNotDeletable = errors.New("campaign cannot be deleted while sending")
)

type Campaign struct {
	ID                  int64          `json:"id"`
	Name                string         `json:"name"`
	Message             string         `json:"message"`
	Description         string         `json:"description,omitempty"`
	ImageURL            string         `json:"imageUrl,omitempty"`
	ImageAlt            string         `json:"imageAlt,omitempty"`
	Status              CampaignStatus `json:"status"`
	TargetingLocationID *int64         `json:"targetingLocationId,omitempty"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

// IsTerminal reports whether no further transition may leave s.
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusCompleted || s == CampaignStatusCancelled
}

// CanTransitionTo encodes the legal status transitions:
//
//	DRAFT   -> SENDING | PAUSED | CANCELLED
//	SENDING -> PAUSED  | COMPLETED
//	PAUSED  -> SENDING | CANCELLED
//
// COMPLETED and CANCELLED accept nothing.
func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case CampaignStatusDraft:
		return next == CampaignStatusSending || next == CampaignStatusPaused || next == CampaignStatusCancelled
	case CampaignStatusSending:
		return next == CampaignStatusPaused || next == CampaignStatusCompleted
	case CampaignStatusPaused:
		return next == CampaignStatusSending || next == CampaignStatusCancelled
	}
	return false
}

// CanEdit reports whether campaign fields may be modified in the current
// status. Everything but the status itself is frozen once sending starts.
func (c *Campaign) CanEdit() bool {
	return c.Status == CampaignStatusDraft || c.Status == CampaignStatusPaused
}

// CanDelete reports whether the campaign may be deleted. Deleting a SENDING
// campaign would orphan an in-flight dispatch job, so it is never allowed.
func (c *Campaign) CanDelete() bool {
	return c.Status != CampaignStatusSending
}

// ReadyToSend checks the send preconditions that do not require a storage
// lookup. The existence of the referenced targeting location is verified by
// the service before dispatch.
func (c *Campaign) ReadyToSend() error {
	if !c.Status.CanTransitionTo(CampaignStatusSending) {
		return ErrInvalidTransition
	}
	if strings.TrimSpace(c.Message) == "" {
		return ErrEmptyMessage
	}
	if c.TargetingLocationID == nil || *c.TargetingLocationID == 0 {
		return ErrNoTargetingLocation
	}
	return nil
}

// CampaignCreateRequest is the input for creating a campaign. New campaigns
// always start in DRAFT.
type CampaignCreateRequest struct {
	Name                string
	Message             string
	Description         string
	ImageURL            string
	ImageAlt            string
	TargetingLocationID *int64
}

func (p CampaignCreateRequest) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(p.Message) == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(p.Message) > MaxMessageLen {
		return ErrMessageTooLong
	}
	return nil
}

// CampaignUpdateRequest replaces every editable field (full-record update,
// no partial merge).
type CampaignUpdateRequest struct {
	Name                string
	Message             string
	Description         string
	ImageURL            string
	ImageAlt            string
	TargetingLocationID *int64
}

func (p CampaignUpdateRequest) Validate() error {
	return CampaignCreateRequest{
		Name:    p.Name,
		Message: p.Message,
	}.Validate()
}

// CampaignFilter controls List queries.
type CampaignFilter struct {
	Statuses            []CampaignStatus
	TargetingLocationID *int64
	From                *time.Time
	To                  *time.Time
	Limit               int
	Offset              int
	Desc                bool
}
