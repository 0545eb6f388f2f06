package repository

import (
	"context"
	"testing"

	"github.com/nearwave/geocampaign/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignRepository_Create(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCampaignRepository(db)
	ctx := context.Background()

	t.Run("create campaign successfully", func(t *testing.T) {
		locationID := int64(1)
		c := &model.Campaign{
			Name:                "Spring Sale",
			Message:             "20% off this week",
			Status:              model.CampaignStatusDraft,
			TargetingLocationID: &locationID,
		}

		created, err := repo.Create(ctx, c)
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, c.Name, created.Name)
		assert.Equal(t, model.CampaignStatusDraft, created.Status)
		require.NotNil(t, created.TargetingLocationID)
		assert.Equal(t, locationID, *created.TargetingLocationID)
		assert.NotZero(t, created.CreatedAt)
	})

	t.Run("create campaign without targeting location", func(t *testing.T) {
		c := &model.Campaign{
			Name:    "No target yet",
			Message: "draft text",
			Status:  model.CampaignStatusDraft,
		}

		created, err := repo.Create(ctx, c)
		require.NoError(t, err)
		assert.Nil(t, created.TargetingLocationID)
	})
}

func TestCampaignRepository_Get(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCampaignRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Campaign{
		Name:    "Lookup",
		Message: "hello",
		Status:  model.CampaignStatusDraft,
	})
	require.NoError(t, err)

	t.Run("get existing campaign", func(t *testing.T) {
		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "Lookup", got.Name)
	})

	t.Run("get missing campaign", func(t *testing.T) {
		_, err := repo.Get(ctx, 99999)
		assert.ErrorIs(t, err, ErrCampaignNotFound)
	})
}

func TestCampaignRepository_Update(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCampaignRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Campaign{
		Name:    "Before",
		Message: "old text",
		Status:  model.CampaignStatusDraft,
	})
	require.NoError(t, err)

	t.Run("update replaces editable fields", func(t *testing.T) {
		locationID := int64(7)
		created.Name = "After"
		created.Message = "new text"
		created.Description = "updated"
		created.TargetingLocationID = &locationID

		updated, err := repo.Update(ctx, created)
		require.NoError(t, err)
		assert.Equal(t, "After", updated.Name)
		assert.Equal(t, "new text", updated.Message)
		assert.Equal(t, "updated", updated.Description)
		require.NotNil(t, updated.TargetingLocationID)
		assert.Equal(t, locationID, *updated.TargetingLocationID)
		assert.Equal(t, model.CampaignStatusDraft, updated.Status)
	})

	t.Run("update can clear the targeting location", func(t *testing.T) {
		created.TargetingLocationID = nil
		updated, err := repo.Update(ctx, created)
		require.NoError(t, err)
		assert.Nil(t, updated.TargetingLocationID)
	})

	t.Run("update missing campaign", func(t *testing.T) {
		_, err := repo.Update(ctx, &model.Campaign{ID: 99999, Name: "x", Message: "y"})
		assert.ErrorIs(t, err, ErrCampaignNotFound)
	})
}

func TestCampaignRepository_UpdateStatus(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCampaignRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Campaign{
		Name:    "Transitions",
		Message: "hello",
		Status:  model.CampaignStatusDraft,
	})
	require.NoError(t, err)

	t.Run("transition succeeds when current status matches", func(t *testing.T) {
		err := repo.UpdateStatus(ctx, created.ID, model.CampaignStatusDraft, model.CampaignStatusSending)
		require.NoError(t, err)

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, model.CampaignStatusSending, got.Status)
	})

	t.Run("transition loses when status changed concurrently", func(t *testing.T) {
		err := repo.UpdateStatus(ctx, created.ID, model.CampaignStatusDraft, model.CampaignStatusCancelled)
		assert.ErrorIs(t, err, ErrStatusConflict)

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, model.CampaignStatusSending, got.Status)
	})

	t.Run("transition on missing campaign", func(t *testing.T) {
		err := repo.UpdateStatus(ctx, 99999, model.CampaignStatusDraft, model.CampaignStatusSending)
		assert.ErrorIs(t, err, ErrCampaignNotFound)
	})
}

func TestCampaignRepository_Delete(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCampaignRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Campaign{
		Name:    "Doomed",
		Message: "bye",
		Status:  model.CampaignStatusDraft,
	})
	require.NoError(t, err)

	t.Run("delete existing campaign", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, created.ID))

		_, err := repo.Get(ctx, created.ID)
		assert.ErrorIs(t, err, ErrCampaignNotFound)
	})

	t.Run("delete missing campaign", func(t *testing.T) {
		err := repo.Delete(ctx, created.ID)
		assert.ErrorIs(t, err, ErrCampaignNotFound)
	})
}

func TestCampaignRepository_List(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCampaignRepository(db)
	ctx := context.Background()

	locationID := int64(3)
	statuses := []model.CampaignStatus{
		model.CampaignStatusDraft,
		model.CampaignStatusDraft,
		model.CampaignStatusSending,
		model.CampaignStatusCompleted,
		model.CampaignStatusCancelled,
	}
	for i, status := range statuses {
		c := &model.Campaign{
			Name:    "Campaign",
			Message: "hello",
			Status:  status,
		}
		if i%2 == 0 {
			c.TargetingLocationID = &locationID
		}
		_, err := repo.Create(ctx, c)
		require.NoError(t, err)
	}

	t.Run("list all campaigns", func(t *testing.T) {
		campaigns, total, err := repo.List(ctx, model.CampaignFilter{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Len(t, campaigns, 5)
	})

	t.Run("list by status", func(t *testing.T) {
		campaigns, total, err := repo.List(ctx, model.CampaignFilter{
			Statuses: []model.CampaignStatus{model.CampaignStatusDraft},
			Limit:    10,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		for _, c := range campaigns {
			assert.Equal(t, model.CampaignStatusDraft, c.Status)
		}
	})

	t.Run("list by targeting location", func(t *testing.T) {
		_, total, err := repo.List(ctx, model.CampaignFilter{
			TargetingLocationID: &locationID,
			Limit:               10,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
	})

	t.Run("list with pagination", func(t *testing.T) {
		campaigns, total, err := repo.List(ctx, model.CampaignFilter{Limit: 2, Offset: 4})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Len(t, campaigns, 1)
	})
}

func TestCampaignRepository_CountActiveByLocation(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCampaignRepository(db)
	ctx := context.Background()

	locationID := int64(42)
	statuses := []model.CampaignStatus{
		model.CampaignStatusDraft,
		model.CampaignStatusSending,
		model.CampaignStatusPaused,
		model.CampaignStatusCompleted,
		model.CampaignStatusCancelled,
	}
	for _, status := range statuses {
		_, err := repo.Create(ctx, &model.Campaign{
			Name:                "Campaign",
			Message:             "hello",
			Status:              status,
			TargetingLocationID: &locationID,
		})
		require.NoError(t, err)
	}

	// Terminal campaigns do not block location deletion.
	count, err := repo.CountActiveByLocation(ctx, locationID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	count, err = repo.CountActiveByLocation(ctx, 99999)
	require.NoError(t, err)
	assert.Zero(t, count)
}
