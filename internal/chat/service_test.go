package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftchat/drift/internal/domain"
	"github.com/driftchat/drift/internal/metrics"
)

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func mustChannelName(t *testing.T, raw string) domain.ChannelName {
	t.Helper()
	name, err := domain.NewChannelName(raw)
	require.NoError(t, err)
	return name
}

func mustContent(t *testing.T, raw string) domain.MessageContent {
	t.Helper()
	content, err := domain.NewMessageContent(raw)
	require.NoError(t, err)
	return content
}

func TestCreatePublicChannel(t *testing.T) {
	store := newFakeChannelStore()
	pub := &fakePublisher{}
	svc := NewChannelService(store, pub, testMetrics(), zerolog.Nop())

	creator := domain.NewUserID()
	desc := "the general channel"
	channel, err := svc.Create(context.Background(), domain.CreatePublicChannel{
		Name:        mustChannelName(t, "general"),
		Description: &desc,
	}, creator)
	require.NoError(t, err)

	assert.Equal(t, domain.ChannelTypePublic, channel.Type())
	assert.Equal(t, creator, channel.CreatedBy())
	name, ok := channel.Name()
	require.True(t, ok)
	assert.Equal(t, "general", name.String())

	events := pub.published()
	require.Len(t, events, 1)
	assert.Equal(t, "channel_created", events[0].EventType())
}

func TestCreatePublicChannelNameCollision(t *testing.T) {
	store := newFakeChannelStore()
	svc := NewChannelService(store, &fakePublisher{}, testMetrics(), zerolog.Nop())

	cmd := domain.CreatePublicChannel{Name: mustChannelName(t, "general")}
	_, err := svc.Create(context.Background(), cmd, domain.NewUserID())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), cmd, domain.NewUserID())
	assert.ErrorIs(t, err, domain.ErrNameAlreadyExists)
}

func TestCreatePrivateChannelAddsCreator(t *testing.T) {
	store := newFakeChannelStore()
	svc := NewChannelService(store, &fakePublisher{}, testMetrics(), zerolog.Nop())

	creator := domain.NewUserID()
	member := domain.NewUserID()
	channel, err := svc.Create(context.Background(), domain.CreatePrivateChannel{
		Name:    mustChannelName(t, "ops"),
		Members: []domain.UserID{member},
	}, creator)
	require.NoError(t, err)

	private, ok := channel.(*domain.PrivateChannel)
	require.True(t, ok)
	assert.True(t, private.HasMember(creator))
	assert.True(t, private.HasMember(member))
}

func TestCreateDirectChannel(t *testing.T) {
	store := newFakeChannelStore()
	svc := NewChannelService(store, &fakePublisher{}, testMetrics(), zerolog.Nop())

	creator := domain.NewUserID()
	other := domain.NewUserID()
	channel, err := svc.Create(context.Background(), domain.CreateDirectChannel{Participant: other}, creator)
	require.NoError(t, err)

	direct, ok := channel.(*domain.DirectChannel)
	require.True(t, ok)
	assert.Equal(t, [2]domain.UserID{creator, other}, direct.Participants())
	_, hasName := channel.Name()
	assert.False(t, hasName)
}

func TestCreateSurvivesPublishFailure(t *testing.T) {
	store := newFakeChannelStore()
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewChannelService(store, pub, testMetrics(), zerolog.Nop())

	channel, err := svc.Create(context.Background(), domain.CreatePublicChannel{
		Name: mustChannelName(t, "general"),
	}, domain.NewUserID())
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), channel.ID())
	assert.NoError(t, err)
}

func TestListForUser(t *testing.T) {
	store := newFakeChannelStore()
	svc := NewChannelService(store, &fakePublisher{}, testMetrics(), zerolog.Nop())
	ctx := context.Background()

	alice := domain.NewUserID()
	bob := domain.NewUserID()

	_, err := svc.Create(ctx, domain.CreatePublicChannel{Name: mustChannelName(t, "created-by-alice")}, alice)
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreatePrivateChannel{
		Name:    mustChannelName(t, "bob-private"),
		Members: []domain.UserID{alice},
	}, bob)
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreatePublicChannel{Name: mustChannelName(t, "unrelated")}, bob)
	require.NoError(t, err)

	channels, err := svc.ListForUser(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, channels, 2)
}

func TestJoinAndLeavePrivateChannel(t *testing.T) {
	store := newFakeChannelStore()
	pub := &fakePublisher{}
	svc := NewChannelService(store, pub, testMetrics(), zerolog.Nop())
	ctx := context.Background()

	creator := domain.NewUserID()
	channel, err := svc.Create(ctx, domain.CreatePrivateChannel{Name: mustChannelName(t, "ops")}, creator)
	require.NoError(t, err)

	joiner := domain.NewUserID()
	require.NoError(t, svc.Join(ctx, channel.ID(), joiner))
	require.NoError(t, svc.Leave(ctx, channel.ID(), joiner))

	var types []string
	for _, ev := range pub.published() {
		types = append(types, ev.EventType())
	}
	assert.Equal(t, []string{"channel_created", "user_joined_channel", "user_left_channel"}, types)
}

func TestJoinDirectChannelRejected(t *testing.T) {
	store := newFakeChannelStore()
	svc := NewChannelService(store, &fakePublisher{}, testMetrics(), zerolog.Nop())
	ctx := context.Background()

	channel, err := svc.Create(ctx, domain.CreateDirectChannel{Participant: domain.NewUserID()}, domain.NewUserID())
	require.NoError(t, err)

	err = svc.Join(ctx, channel.ID(), domain.NewUserID())
	assert.True(t, domain.IsValidation(err))
}

func TestJoinMissingChannel(t *testing.T) {
	svc := NewChannelService(newFakeChannelStore(), &fakePublisher{}, testMetrics(), zerolog.Nop())
	err := svc.Join(context.Background(), domain.NewChannelID(), domain.NewUserID())
	assert.ErrorIs(t, err, domain.ErrChannelNotFound)
}

func newMessageFixture(t *testing.T) (*MessageService, *fakeChannelStore, *fakeMessageStore, *fakePublisher) {
	t.Helper()
	channels := newFakeChannelStore()
	messages := &fakeMessageStore{}
	pub := &fakePublisher{}
	svc := NewMessageService(channels, messages, pub, testMetrics(), zerolog.Nop())
	return svc, channels, messages, pub
}

func TestSendPersistsThenPublishes(t *testing.T) {
	svc, channels, messages, pub := newMessageFixture(t)
	ctx := context.Background()

	user := domain.NewUserID()
	channel := domain.NewPublicChannel(domain.NewChannelID(), mustChannelName(t, "general"), nil, user, time.Now().UTC())
	require.NoError(t, channels.Create(ctx, channel))

	message, err := svc.Send(ctx, channel.ID(), user, mustContent(t, "hi"))
	require.NoError(t, err)
	assert.Equal(t, channel.ID(), message.ChannelID)
	assert.Equal(t, user, message.UserID)

	require.Len(t, messages.messages, 1)
	events := pub.published()
	require.Len(t, events, 1)
	sent, ok := events[0].(domain.MessageSentEvent)
	require.True(t, ok)
	assert.Equal(t, message.ID, sent.MessageID)
	assert.Equal(t, "hi", sent.Content)
}

func TestSendMissingChannel(t *testing.T) {
	svc, _, messages, pub := newMessageFixture(t)

	_, err := svc.Send(context.Background(), domain.NewChannelID(), domain.NewUserID(), mustContent(t, "hi"))
	assert.ErrorIs(t, err, domain.ErrChannelNotFound)
	assert.Empty(t, messages.messages)
	assert.Empty(t, pub.published())
}

func TestSendStoreFailureIsFatal(t *testing.T) {
	svc, channels, messages, pub := newMessageFixture(t)
	ctx := context.Background()

	user := domain.NewUserID()
	channel := domain.NewPublicChannel(domain.NewChannelID(), mustChannelName(t, "general"), nil, user, time.Now().UTC())
	require.NoError(t, channels.Create(ctx, channel))
	messages.err = domain.ErrDatabase

	_, err := svc.Send(ctx, channel.ID(), user, mustContent(t, "hi"))
	assert.ErrorIs(t, err, domain.ErrDatabase)
	assert.Empty(t, pub.published())
}

func TestSendPublishFailureStillSucceeds(t *testing.T) {
	svc, channels, messages, pub := newMessageFixture(t)
	ctx := context.Background()
	pub.err = errors.New("broker down")

	user := domain.NewUserID()
	channel := domain.NewPublicChannel(domain.NewChannelID(), mustChannelName(t, "general"), nil, user, time.Now().UTC())
	require.NoError(t, channels.Create(ctx, channel))

	message, err := svc.Send(ctx, channel.ID(), user, mustContent(t, "hi"))
	require.NoError(t, err)
	assert.NotEmpty(t, message.ID.String())
	require.Len(t, messages.messages, 1)
}

func TestHistoryPagination(t *testing.T) {
	svc, channels, messages, _ := newMessageFixture(t)
	ctx := context.Background()

	user := domain.NewUserID()
	channel := domain.NewPublicChannel(domain.NewChannelID(), mustChannelName(t, "general"), nil, user, time.Now().UTC())
	require.NoError(t, channels.Create(ctx, channel))

	base := time.Now().UTC().Add(-time.Hour)
	var stamps []time.Time
	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		stamps = append(stamps, ts)
		messages.messages = append(messages.messages, domain.Message{
			ID:        domain.NewMessageID(),
			ChannelID: channel.ID(),
			UserID:    user,
			Content:   mustContent(t, "m"),
			Timestamp: ts,
		})
	}

	page, err := svc.History(ctx, channel.ID(), 3, nil)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.True(t, page[0].Timestamp.Equal(stamps[4]))
	assert.True(t, page[2].Timestamp.Equal(stamps[2]))

	older, err := svc.History(ctx, channel.ID(), 3, &stamps[2])
	require.NoError(t, err)
	require.Len(t, older, 2)
	assert.True(t, older[0].Timestamp.Equal(stamps[1]))
	assert.True(t, older[1].Timestamp.Equal(stamps[0]))
}

func TestHistoryDefaultLimit(t *testing.T) {
	svc, channels, messages, _ := newMessageFixture(t)
	ctx := context.Background()

	user := domain.NewUserID()
	channel := domain.NewPublicChannel(domain.NewChannelID(), mustChannelName(t, "general"), nil, user, time.Now().UTC())
	require.NoError(t, channels.Create(ctx, channel))

	for i := 0; i < DefaultHistoryLimit+10; i++ {
		messages.messages = append(messages.messages, domain.Message{
			ID:        domain.NewMessageID(),
			ChannelID: channel.ID(),
			UserID:    user,
			Content:   mustContent(t, "m"),
			Timestamp: time.Now().UTC().Add(time.Duration(i) * time.Second),
		})
	}

	page, err := svc.History(ctx, channel.ID(), 0, nil)
	require.NoError(t, err)
	assert.Len(t, page, DefaultHistoryLimit)
}

func TestUserLookupPrefersReplica(t *testing.T) {
	replicas := newFakeReplicaStore()
	directory := &fakeDirectory{users: map[domain.UserID]domain.UserReplica{}}
	lookup := NewUserLookup(replicas, directory, zerolog.Nop())

	username, err := domain.NewUsername("nicola")
	require.NoError(t, err)
	replica := domain.UserReplica{ID: domain.NewUserID(), Username: username}
	require.NoError(t, replicas.Upsert(context.Background(), replica))

	got, err := lookup.Lookup(context.Background(), replica.ID)
	require.NoError(t, err)
	assert.Equal(t, replica.ID, got.ID)
	assert.Zero(t, directory.calls)
}

func TestUserLookupFallsBackAndWarms(t *testing.T) {
	replicas := newFakeReplicaStore()
	username, err := domain.NewUsername("nicola")
	require.NoError(t, err)
	remote := domain.UserReplica{ID: domain.NewUserID(), Username: username}
	directory := &fakeDirectory{users: map[domain.UserID]domain.UserReplica{remote.ID: remote}}
	lookup := NewUserLookup(replicas, directory, zerolog.Nop())

	got, err := lookup.Lookup(context.Background(), remote.ID)
	require.NoError(t, err)
	assert.Equal(t, remote.ID, got.ID)
	assert.Equal(t, 1, directory.calls)

	// Second lookup stays local.
	_, err = lookup.Lookup(context.Background(), remote.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, directory.calls)
}

func TestUserLookupDirectoryUnavailable(t *testing.T) {
	replicas := newFakeReplicaStore()
	directory := &fakeDirectory{err: domain.ErrServiceUnavailable}
	lookup := NewUserLookup(replicas, directory, zerolog.Nop())

	_, err := lookup.Lookup(context.Background(), domain.NewUserID())
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}
