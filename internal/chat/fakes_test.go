package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/driftchat/drift/internal/domain"
)

// In-memory fakes for the storage and bus ports.

type fakeChannelStore struct {
	mu       sync.Mutex
	channels map[domain.ChannelID]domain.Channel
	members  map[domain.ChannelID]map[domain.UserID]struct{}
	err      error
}

func newFakeChannelStore() *fakeChannelStore {
	return &fakeChannelStore{
		channels: make(map[domain.ChannelID]domain.Channel),
		members:  make(map[domain.ChannelID]map[domain.UserID]struct{}),
	}
}

func (s *fakeChannelStore) Create(_ context.Context, channel domain.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if name, ok := channel.Name(); ok && channel.Type() == domain.ChannelTypePublic {
		for _, existing := range s.channels {
			if n, ok := existing.Name(); ok && existing.Type() == domain.ChannelTypePublic && n == name {
				return domain.ErrNameAlreadyExists
			}
		}
	}
	s.channels[channel.ID()] = channel
	switch c := channel.(type) {
	case *domain.PrivateChannel:
		set := make(map[domain.UserID]struct{})
		for _, m := range c.Members() {
			set[m] = struct{}{}
		}
		s.members[channel.ID()] = set
	case *domain.DirectChannel:
		p := c.Participants()
		s.members[channel.ID()] = map[domain.UserID]struct{}{p[0]: {}, p[1]: {}}
	}
	return nil
}

func (s *fakeChannelStore) Get(_ context.Context, id domain.ChannelID) (domain.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	channel, ok := s.channels[id]
	if !ok {
		return nil, domain.ErrChannelNotFound
	}
	return channel, nil
}

func (s *fakeChannelStore) ListPublic(context.Context) ([]domain.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Channel
	for _, c := range s.channels {
		if c.Type() == domain.ChannelTypePublic {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().After(out[j].CreatedAt()) })
	return out, nil
}

func (s *fakeChannelStore) ListForUser(_ context.Context, user domain.UserID) ([]domain.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Channel
	for id, c := range s.channels {
		if c.CreatedBy() == user {
			out = append(out, c)
			continue
		}
		if _, ok := s.members[id][user]; ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().After(out[j].CreatedAt()) })
	return out, nil
}

func (s *fakeChannelStore) AddMember(_ context.Context, channel domain.ChannelID, user domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.members[channel]
	if !ok {
		set = make(map[domain.UserID]struct{})
		s.members[channel] = set
	}
	set[user] = struct{}{}
	return nil
}

func (s *fakeChannelStore) RemoveMember(_ context.Context, channel domain.ChannelID, user domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members[channel], user)
	return nil
}

func (s *fakeChannelStore) RemoveUser(_ context.Context, user domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.channels {
		if c.CreatedBy() == user {
			delete(s.channels, id)
			delete(s.members, id)
		}
	}
	for _, set := range s.members {
		delete(set, user)
	}
	return nil
}

type fakeMessageStore struct {
	mu       sync.Mutex
	messages []domain.Message
	err      error
}

func (s *fakeMessageStore) Insert(_ context.Context, message domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, message)
	return nil
}

func (s *fakeMessageStore) ListByChannel(_ context.Context, channel domain.ChannelID, limit int, before *time.Time) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Message
	for _, m := range s.messages {
		if m.ChannelID != channel {
			continue
		}
		if before != nil && !m.Timestamp.Before(*before) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeMessageStore) ListByUser(_ context.Context, user domain.UserID, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Message
	for _, m := range s.messages {
		if m.UserID == user {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.ChatEvent
	err    error
}

func (p *fakePublisher) PublishChatEvent(_ context.Context, _ domain.ChannelID, event domain.ChatEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) published() []domain.ChatEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.ChatEvent{}, p.events...)
}

type fakeReplicaStore struct {
	mu       sync.Mutex
	replicas map[domain.UserID]domain.UserReplica
	err      error
}

func newFakeReplicaStore() *fakeReplicaStore {
	return &fakeReplicaStore{replicas: make(map[domain.UserID]domain.UserReplica)}
}

func (s *fakeReplicaStore) Upsert(_ context.Context, replica domain.UserReplica) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.replicas[replica.ID] = replica
	return nil
}

func (s *fakeReplicaStore) Get(_ context.Context, id domain.UserID) (domain.UserReplica, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	replica, ok := s.replicas[id]
	if !ok {
		return domain.UserReplica{}, domain.ErrUserNotFound
	}
	return replica, nil
}

func (s *fakeReplicaStore) Delete(_ context.Context, id domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.replicas[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(s.replicas, id)
	return nil
}

type fakeDirectory struct {
	mu    sync.Mutex
	users map[domain.UserID]domain.UserReplica
	calls int
	err   error
}

func (d *fakeDirectory) GetUser(_ context.Context, id domain.UserID) (domain.UserReplica, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return domain.UserReplica{}, d.err
	}
	replica, ok := d.users[id]
	if !ok {
		return domain.UserReplica{}, domain.ErrUserNotFound
	}
	return replica, nil
}
