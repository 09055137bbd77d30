package chat

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/driftchat/drift/internal/domain"
	"github.com/driftchat/drift/internal/eventbus"
)

func userRecord(t *testing.T, ev domain.UserEvent) *kgo.Record {
	t.Helper()
	payload, err := eventbus.EncodeUserEvent(ev)
	require.NoError(t, err)
	return &kgo.Record{Topic: "user-events", Value: payload}
}

func testUser(t *testing.T, name string) domain.User {
	t.Helper()
	username, err := domain.NewUsername(name)
	require.NoError(t, err)
	email, err := domain.NewEmailAddress(name + "@example.com")
	require.NoError(t, err)
	now := time.Now().UTC().Truncate(time.Millisecond)
	return domain.User{ID: domain.NewUserID(), Username: username, Email: email, CreatedAt: now, UpdatedAt: now}
}

func TestReplicaCreatedIsIdempotent(t *testing.T) {
	replicas := newFakeReplicaStore()
	projector := NewReplicaProjector(replicas, newFakeChannelStore(), testMetrics(), zerolog.Nop())
	ctx := context.Background()

	user := testUser(t, "nicola")
	record := userRecord(t, domain.NewUserCreatedEvent(user))
	projector.HandleRecord(ctx, record)
	projector.HandleRecord(ctx, record)

	assert.Len(t, replicas.replicas, 1)
	got, err := replicas.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "nicola", got.Username.String())
	assert.True(t, got.CreatedAt.Equal(user.CreatedAt))
}

func TestReplicaUpdatePreservesCreatedAt(t *testing.T) {
	replicas := newFakeReplicaStore()
	projector := NewReplicaProjector(replicas, newFakeChannelStore(), testMetrics(), zerolog.Nop())
	ctx := context.Background()

	user := testUser(t, "nicola")
	projector.HandleRecord(ctx, userRecord(t, domain.NewUserCreatedEvent(user)))

	renamed := user
	username, err := domain.NewUsername("nicoletta")
	require.NoError(t, err)
	renamed.Username = username
	renamed.UpdatedAt = user.CreatedAt.Add(time.Hour)
	projector.HandleRecord(ctx, userRecord(t, domain.NewUserUpdatedEvent(renamed)))

	got, err := replicas.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "nicoletta", got.Username.String())
	assert.True(t, got.CreatedAt.Equal(user.CreatedAt))
	assert.True(t, got.UpdatedAt.Equal(renamed.UpdatedAt))
}

func TestReplicaUpdateWithoutPriorRow(t *testing.T) {
	replicas := newFakeReplicaStore()
	projector := NewReplicaProjector(replicas, newFakeChannelStore(), testMetrics(), zerolog.Nop())
	ctx := context.Background()

	user := testUser(t, "nicola")
	projector.HandleRecord(ctx, userRecord(t, domain.NewUserUpdatedEvent(user)))

	got, err := replicas.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(user.UpdatedAt))
}

func TestReplicaDeletedCascades(t *testing.T) {
	replicas := newFakeReplicaStore()
	channels := newFakeChannelStore()
	projector := NewReplicaProjector(replicas, channels, testMetrics(), zerolog.Nop())
	ctx := context.Background()

	user := testUser(t, "nicola")
	projector.HandleRecord(ctx, userRecord(t, domain.NewUserCreatedEvent(user)))

	name, err := domain.NewChannelName("owned")
	require.NoError(t, err)
	owned := domain.NewPublicChannel(domain.NewChannelID(), name, nil, user.ID, time.Now().UTC())
	require.NoError(t, channels.Create(ctx, owned))

	projector.HandleRecord(ctx, userRecord(t, domain.NewUserDeletedEvent(user.ID)))

	_, err = replicas.Get(ctx, user.ID)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	_, err = channels.Get(ctx, owned.ID())
	assert.ErrorIs(t, err, domain.ErrChannelNotFound)
}

func TestReplicaDeleteMissingRowIsNoOp(t *testing.T) {
	replicas := newFakeReplicaStore()
	projector := NewReplicaProjector(replicas, newFakeChannelStore(), testMetrics(), zerolog.Nop())

	projector.HandleRecord(context.Background(), userRecord(t, domain.NewUserDeletedEvent(domain.NewUserID())))
	assert.Empty(t, replicas.replicas)
}

func TestReplicaSkipsUndecodableRecords(t *testing.T) {
	replicas := newFakeReplicaStore()
	projector := NewReplicaProjector(replicas, newFakeChannelStore(), testMetrics(), zerolog.Nop())

	projector.HandleRecord(context.Background(), &kgo.Record{Topic: "user-events", Value: []byte("junk")})
	assert.Empty(t, replicas.replicas)
}
