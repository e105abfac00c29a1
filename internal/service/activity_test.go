package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/activity"
	"github.com/makkenzo/license-backoffice/internal/storage/memstorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestActivityLogger_Record(t *testing.T) {
	repo := memstorage.NewActivityRepository()
	logger := NewActivityLogger(repo, zap.NewNop())

	actor := uuid.New()
	ctx := WithActor(context.Background(), actor)
	logger.Record(ctx, ActivityEntry{
		Action:     activity.ActionLicenseGenerated,
		EntityType: "license",
		EntityID:   "abc",
		Details:    map[string]any{"count": 2},
	})
	logger.Record(context.Background(), ActivityEntry{
		Action:     activity.ActionDeviceDeactivated,
		EntityType: "device",
		EntityID:   "def",
	})
	logger.Wait()

	events := repo.Events()
	require.Len(t, events, 2)

	byAction := make(map[string]*activity.Event)
	for _, e := range events {
		byAction[e.Action] = e
	}

	generated := byAction[activity.ActionLicenseGenerated]
	require.NotNil(t, generated)
	assert.Equal(t, uuid.NullUUID{UUID: actor, Valid: true}, generated.ActorID)
	var details map[string]int
	require.NoError(t, json.Unmarshal(generated.Details, &details))
	assert.Equal(t, 2, details["count"])

	deactivated := byAction[activity.ActionDeviceDeactivated]
	require.NotNil(t, deactivated)
	assert.False(t, deactivated.ActorID.Valid)
	assert.Empty(t, deactivated.Details)
}

func TestActivityLogger_NilIsNoop(t *testing.T) {
	var logger *ActivityLogger
	assert.NotPanics(t, func() {
		logger.Record(context.Background(), ActivityEntry{Action: "x"})
	})
}
