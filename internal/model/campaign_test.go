package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCampaignStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to CampaignStatus
		allowed  bool
	}{
		{CampaignStatusDraft, CampaignStatusSending, true},
		{CampaignStatusDraft, CampaignStatusPaused, true},
		{CampaignStatusDraft, CampaignStatusCancelled, true},
		{CampaignStatusDraft, CampaignStatusCompleted, false},
		{CampaignStatusSending, CampaignStatusPaused, true},
		{CampaignStatusSending, CampaignStatusCompleted, true},
		{CampaignStatusSending, CampaignStatusCancelled, false},
		{CampaignStatusSending, CampaignStatusDraft, false},
		{CampaignStatusPaused, CampaignStatusSending, true},
		{CampaignStatusPaused, CampaignStatusCancelled, true},
		{CampaignStatusPaused, CampaignStatusCompleted, false},
	}

	for _, c := range cases {
		assert.Equalf(t, c.allowed, c.from.CanTransitionTo(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestCampaignStatus_TerminalStatesAcceptNothing(t *testing.T) {
	all := []CampaignStatus{
		CampaignStatusDraft,
		CampaignStatusSending,
		CampaignStatusPaused,
		CampaignStatusCompleted,
		CampaignStatusCancelled,
	}

	for _, terminal := range []CampaignStatus{CampaignStatusCompleted, CampaignStatusCancelled} {
		assert.True(t, terminal.IsTerminal())
		for _, next := range all {
			assert.Falsef(t, terminal.CanTransitionTo(next), "%s -> %s must be rejected", terminal, next)
		}
	}
}

func TestCampaign_ReadyToSend(t *testing.T) {
	locID := int64(1)

	t.Run("draft with location and message", func(t *testing.T) {
		c := &Campaign{Status: CampaignStatusDraft, Message: "hello", TargetingLocationID: &locID}
		assert.NoError(t, c.ReadyToSend())
	})

	t.Run("paused resumes", func(t *testing.T) {
		c := &Campaign{Status: CampaignStatusPaused, Message: "hello", TargetingLocationID: &locID}
		assert.NoError(t, c.ReadyToSend())
	})

	t.Run("no targeting location", func(t *testing.T) {
		c := &Campaign{Status: CampaignStatusDraft, Message: "hello"}
		assert.ErrorIs(t, c.ReadyToSend(), ErrNoTargetingLocation)
	})

	t.Run("blank message", func(t *testing.T) {
		c := &Campaign{Status: CampaignStatusDraft, Message: "   ", TargetingLocationID: &locID}
		assert.ErrorIs(t, c.ReadyToSend(), ErrEmptyMessage)
	})

	t.Run("already sending", func(t *testing.T) {
		c := &Campaign{Status: CampaignStatusSending, Message: "hello", TargetingLocationID: &locID}
		assert.ErrorIs(t, c.ReadyToSend(), ErrInvalidTransition)
	})

	t.Run("terminal", func(t *testing.T) {
		c := &Campaign{Status: CampaignStatusCompleted, Message: "hello", TargetingLocationID: &locID}
		assert.ErrorIs(t, c.ReadyToSend(), ErrInvalidTransition)
	})
}

func TestCampaign_EditAndDeleteGates(t *testing.T) {
	assert.True(t, (&Campaign{Status: CampaignStatusDraft}).CanEdit())
	assert.True(t, (&Campaign{Status: CampaignStatusPaused}).CanEdit())
	assert.False(t, (&Campaign{Status: CampaignStatusSending}).CanEdit())
	assert.False(t, (&Campaign{Status: CampaignStatusCompleted}).CanEdit())

	assert.True(t, (&Campaign{Status: CampaignStatusDraft}).CanDelete())
	assert.True(t, (&Campaign{Status: CampaignStatusPaused}).CanDelete())
	assert.True(t, (&Campaign{Status: CampaignStatusCompleted}).CanDelete())
	assert.True(t, (&Campaign{Status: CampaignStatusCancelled}).CanDelete())
	assert.False(t, (&Campaign{Status: CampaignStatusSending}).CanDelete())
}

func TestCampaignCreateRequest_Validate(t *testing.T) {
	assert.ErrorIs(t, CampaignCreateRequest{Message: "hi"}.Validate(), ErrEmptyName)
	assert.ErrorIs(t, CampaignCreateRequest{Name: "summer"}.Validate(), ErrEmptyMessage)
	assert.ErrorIs(t,
		CampaignCreateRequest{Name: "summer", Message: strings.Repeat("a", MaxMessageLen+1)}.Validate(),
		ErrMessageTooLong)
	assert.NoError(t, CampaignCreateRequest{Name: "summer", Message: strings.Repeat("a", MaxMessageLen)}.Validate())
}
