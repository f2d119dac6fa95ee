package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
)

func TestEmitWritesEnvelope(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	svc := NewService(repo, nil)

	contractID := uuid.New()
	actor := &ActorRef{UserID: uuid.New(), Role: "user"}
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, DomainEvent{
			EventType:     enums.EventContractStateChanged,
			AggregateType: enums.AggregateContract,
			AggregateID:   contractID,
			Actor:         actor,
			Data:          map[string]string{"to": "ACTIVE_UNFUNDED"},
		})
	})
	require.NoError(t, err)

	rows, err := repo.ListByAggregate(ctx, contractID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, actor.UserID, envelope.Actor.UserID)
	assert.JSONEq(t, `{"to":"ACTIVE_UNFUNDED"}`, string(envelope.Data))
}

func TestEmitIsRolledBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	svc := NewService(repo, nil)

	contractID := uuid.New()
	boom := errors.New("state change failed")
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := svc.Emit(ctx, tx, DomainEvent{
			EventType:     enums.EventContractFunded,
			AggregateType: enums.AggregateContract,
			AggregateID:   contractID,
			Data:          struct{}{},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rows, err := repo.ListByAggregate(ctx, contractID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestEmitRejectsUnknownTypesAndMissingTx(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{}))

	client := dbtest.New(t)
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     "unknown",
			AggregateType: enums.AggregateContract,
			AggregateID:   uuid.New(),
		})
	})
	require.Error(t, err)
}

func TestPublishLifecycle(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)
	repo := NewRepository(client.DB())

	published := models.OutboxEvent{
		EventType:     enums.EventDisputeOpened,
		AggregateType: enums.AggregateDispute,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}
	pending := published
	pending.AggregateID = uuid.New()
	require.NoError(t, repo.Insert(ctx, client.DB(), published))
	require.NoError(t, repo.Insert(ctx, client.DB(), pending))

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 3)
		if err != nil {
			return err
		}
		require.Len(t, rows, 2)
		if err := repo.MarkPublishedTx(tx, rows[0].ID); err != nil {
			return err
		}
		return repo.MarkTerminalTx(tx, rows[1].ID, errors.New("bad payload"), 3)
	})
	require.NoError(t, err)

	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 3)
		require.Empty(t, rows)
		return err
	})
	require.NoError(t, err)

	deleted, err := repo.DeletePublishedBefore(ctx, client.DB(), time.Now().UTC().Add(time.Hour), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func TestDLQRepositoryTruncatesMessages(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)
	dlq := NewDLQRepository(client.DB())

	long := strings.Repeat("x", maxDLQErrorLen+50)
	eventID := uuid.New()
	require.NoError(t, dlq.InsertTx(client.DB(), models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventMilestoneReleased,
		AggregateType: enums.AggregateContract,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &long,
		FailedAt:      time.Now().UTC(),
	}))

	row, err := dlq.FindByEventID(ctx, eventID)
	require.NoError(t, err)
	require.NotNil(t, row)
	require.NotNil(t, row.ErrorMessage)
	assert.Len(t, *row.ErrorMessage, maxDLQErrorLen)
}
