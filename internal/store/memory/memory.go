// Package memory provides the in-memory chat backend used for development
// and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/responderhq/opschat/internal/model"
	"github.com/responderhq/opschat/internal/store"
	"github.com/responderhq/opschat/pkg/errs"
)

type cursorKey struct {
	userID string
	conv   model.Key
}

// Store implements store.Backend with mutex-guarded maps.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time
	seq uint64

	messages map[model.Key][]model.Message
	dedupe   map[string]model.Message

	groups map[string]*model.Group

	cursors map[cursorKey]time.Time
}

// New creates an empty store using the wall clock.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock creates an empty store with an injected clock.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		now:      now,
		messages: make(map[model.Key][]model.Message),
		dedupe:   make(map[string]model.Message),
		groups:   make(map[string]*model.Group),
		cursors:  make(map[cursorKey]time.Time),
	}
}

// Append persists msg, stamping CreatedAt and the insertion sequence.
func (s *Store) Append(ctx context.Context, msg *model.Message, dedupeID string) (*model.Message, error) {
	if err := store.ValidateMessage(msg); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dedupeID != "" {
		if prev, ok := s.dedupe[dedupeID]; ok {
			dup := prev
			return &dup, nil
		}
	}

	s.seq++
	stored := *msg
	stored.Sequence = s.seq
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	stored.Attachments = append([]model.Attachment(nil), msg.Attachments...)

	s.messages[stored.ConversationKey] = append(s.messages[stored.ConversationKey], stored)
	if dedupeID != "" {
		s.dedupe[dedupeID] = stored
	}

	out := stored
	return &out, nil
}

// List returns messages with Sequence > sinceSeq in (CreatedAt, Sequence)
// ascending order.
func (s *Store) List(ctx context.Context, key model.Key, sinceSeq uint64) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Message
	for _, m := range s.messages[key] {
		if m.Sequence > sinceSeq {
			out = append(out, m)
		}
	}
	store.SortMessages(out)
	return out, nil
}

// Latest returns the newest message of the conversation, or nil.
func (s *Store) Latest(ctx context.Context, key model.Key) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[key]
	if len(msgs) == 0 {
		return nil, nil
	}
	latest := msgs[0]
	for _, m := range msgs[1:] {
		if m.CreatedAt.After(latest.CreatedAt) ||
			(m.CreatedAt.Equal(latest.CreatedAt) && m.Sequence > latest.Sequence) {
			latest = m
		}
	}
	out := latest
	return &out, nil
}

// Clear deletes the conversation's messages. Clearing an empty conversation
// is a no-op success.
func (s *Store) Clear(ctx context.Context, key model.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, key)
	return nil
}

// DirectPartners derives the user's direct-message partners from surviving
// message records, so a cleared thread drops out of the directory.
func (s *Store) DirectPartners(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for key, msgs := range s.messages {
		if len(msgs) == 0 {
			continue
		}
		if partner, ok := key.Partner(userID); ok {
			seen[partner] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// Put inserts a group, enforcing custom-name uniqueness.
func (s *Store) Put(ctx context.Context, g *model.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.Kind == model.KindCustom {
		for _, existing := range s.groups {
			if existing.Kind == model.KindCustom && existing.Name == g.Name {
				return errs.Conflictf("group name %q already taken", g.Name)
			}
		}
	}

	cp := cloneGroup(g)
	s.groups[g.ID] = cp
	return nil
}

// GetByID returns the group with the given id.
func (s *Store) GetByID(ctx context.Context, id string) (*model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	if !ok {
		return nil, errs.NotFoundf("group %s not found", id)
	}
	return cloneGroup(g), nil
}

// GetCustomByName resolves a custom group by its natural key.
func (s *Store) GetCustomByName(ctx context.Context, name string) (*model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, g := range s.groups {
		if g.Kind == model.KindCustom && g.Name == name {
			return cloneGroup(g), nil
		}
	}
	return nil, errs.NotFoundf("group %q not found", name)
}

// GetPredefined resolves a predefined group by subtype.
func (s *Store) GetPredefined(ctx context.Context, subtype string) (*model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, g := range s.groups {
		if g.Kind == model.KindPredefined && g.Subtype == subtype {
			return cloneGroup(g), nil
		}
	}
	return nil, errs.NotFoundf("predefined group %q not found", subtype)
}

// ListByMember returns every group the user belongs to, ordered by id for
// deterministic directory output.
func (s *Store) ListByMember(ctx context.Context, userID string) ([]model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Group
	for _, g := range s.groups {
		if g.HasMember(userID) {
			out = append(out, *cloneGroup(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AddMembers extends the membership set.
func (s *Store) AddMembers(ctx context.Context, id string, memberIDs []string) (*model.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[id]
	if !ok {
		return nil, errs.NotFoundf("group %s not found", id)
	}
	for _, m := range memberIDs {
		g.AddMember(m)
	}
	return cloneGroup(g), nil
}

// Delete removes the group entity.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[id]; !ok {
		return errs.NotFoundf("group %s not found", id)
	}
	delete(s.groups, id)
	return nil
}

// GetCursor returns the user's read cursor, or nil if never read.
func (s *Store) GetCursor(ctx context.Context, userID string, key model.Key) (*store.ReadCursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.cursors[cursorKey{userID, key}]
	if !ok {
		return nil, nil
	}
	return &store.ReadCursor{UserID: userID, ConversationKey: key, LastReadAt: t}, nil
}

// SetCursor creates or advances the cursor. It never moves backwards.
func (s *Store) SetCursor(ctx context.Context, userID string, key model.Key, lastReadAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := cursorKey{userID, key}
	if prev, ok := s.cursors[k]; ok && prev.After(lastReadAt) {
		return nil
	}
	s.cursors[k] = lastReadAt
	return nil
}

// ResetCursors drops every cursor for the conversation.
func (s *Store) ResetCursors(ctx context.Context, key model.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.cursors {
		if k.conv == key {
			delete(s.cursors, k)
		}
	}
	return nil
}

func cloneGroup(g *model.Group) *model.Group {
	cp := *g
	cp.Members = append([]string(nil), g.Members...)
	return &cp
}
