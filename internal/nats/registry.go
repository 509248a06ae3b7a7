package nats

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/responderhq/opschat/internal/model"
	"github.com/responderhq/opschat/internal/store"
	"github.com/responderhq/opschat/pkg/errs"
)

// KV key layout for the group registry. Group entities live under
// "group.<id>"; two index entries point back at the id. Names are hex
// encoded because KV keys cannot carry arbitrary characters.
func groupEntityKey(id string) string      { return "group." + id }
func customNameKey(name string) string     { return "name." + hex.EncodeToString([]byte(name)) }
func predefinedKey(subtype string) string  { return "subtype." + subtype }
func cursorEntryKey(key model.Key, userID string) string {
	return string(key) + "." + userID
}

// Put inserts a group and its lookup indexes. The custom-name index is
// created atomically, which is what enforces name uniqueness.
func (b *Backend) Put(ctx context.Context, g *model.Group) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal group: %w", err)
	}

	if g.Kind == model.KindCustom {
		if _, err := b.groups.Create(ctx, customNameKey(g.Name), []byte(g.ID)); err != nil {
			if errors.Is(err, jetstream.ErrKeyExists) {
				return errs.Conflictf("group name %q already taken", g.Name)
			}
			return errs.Networkf(err, "failed to index group name")
		}
	} else {
		if _, err := b.groups.Put(ctx, predefinedKey(g.Subtype), []byte(g.ID)); err != nil {
			return errs.Networkf(err, "failed to index predefined group")
		}
	}

	if _, err := b.groups.Put(ctx, groupEntityKey(g.ID), data); err != nil {
		return errs.Networkf(err, "failed to store group")
	}
	return nil
}

// GetByID returns the group with the given id.
func (b *Backend) GetByID(ctx context.Context, id string) (*model.Group, error) {
	entry, err := b.groups.Get(ctx, groupEntityKey(id))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, errs.NotFoundf("group %s not found", id)
		}
		return nil, errs.Networkf(err, "failed to read group")
	}
	var g model.Group
	if err := json.Unmarshal(entry.Value(), &g); err != nil {
		return nil, fmt.Errorf("failed to unmarshal group: %w", err)
	}
	return &g, nil
}

// GetCustomByName resolves a custom group by its natural key.
func (b *Backend) GetCustomByName(ctx context.Context, name string) (*model.Group, error) {
	entry, err := b.groups.Get(ctx, customNameKey(name))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, errs.NotFoundf("group %q not found", name)
		}
		return nil, errs.Networkf(err, "failed to resolve group name")
	}
	return b.GetByID(ctx, string(entry.Value()))
}

// GetPredefined resolves a predefined group by subtype.
func (b *Backend) GetPredefined(ctx context.Context, subtype string) (*model.Group, error) {
	entry, err := b.groups.Get(ctx, predefinedKey(subtype))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, errs.NotFoundf("predefined group %q not found", subtype)
		}
		return nil, errs.Networkf(err, "failed to resolve predefined group")
	}
	return b.GetByID(ctx, string(entry.Value()))
}

// ListByMember scans the registry for groups containing the user. Group
// counts are small in this deployment shape; a scan keeps the registry
// index-free.
func (b *Backend) ListByMember(ctx context.Context, userID string) ([]model.Group, error) {
	keys, err := b.groups.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, errs.Networkf(err, "failed to list groups")
	}

	var out []model.Group
	for _, k := range keys {
		if !strings.HasPrefix(k, "group.") {
			continue
		}
		g, err := b.GetByID(ctx, strings.TrimPrefix(k, "group."))
		if err != nil {
			if errs.Is(err, errs.KindNotFound) {
				continue
			}
			return nil, err
		}
		if g.HasMember(userID) {
			out = append(out, *g)
		}
	}
	sortGroups(out)
	return out, nil
}

// AddMembers extends the membership set with a bounded CAS loop.
func (b *Backend) AddMembers(ctx context.Context, id string, memberIDs []string) (*model.Group, error) {
	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		entry, err := b.groups.Get(ctx, groupEntityKey(id))
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				return nil, errs.NotFoundf("group %s not found", id)
			}
			return nil, errs.Networkf(err, "failed to read group")
		}
		var g model.Group
		if err := json.Unmarshal(entry.Value(), &g); err != nil {
			return nil, fmt.Errorf("failed to unmarshal group: %w", err)
		}
		for _, m := range memberIDs {
			g.AddMember(m)
		}
		data, err := json.Marshal(&g)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal group: %w", err)
		}
		if _, err := b.groups.Update(ctx, groupEntityKey(id), data, entry.Revision()); err != nil {
			// Revision moved under us; re-read and retry.
			lastErr = err
			continue
		}
		return &g, nil
	}
	return nil, errs.Networkf(lastErr, "failed to update group membership")
}

// Delete removes the group entity and its indexes.
func (b *Backend) Delete(ctx context.Context, id string) error {
	g, err := b.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if g.Kind == model.KindCustom {
		if err := b.groups.Delete(ctx, customNameKey(g.Name)); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			return errs.Networkf(err, "failed to drop group name index")
		}
	}
	if err := b.groups.Delete(ctx, groupEntityKey(id)); err != nil {
		return errs.Networkf(err, "failed to delete group")
	}
	return nil
}

// GetCursor returns the user's read cursor, or nil if never read.
func (b *Backend) GetCursor(ctx context.Context, userID string, key model.Key) (*store.ReadCursor, error) {
	entry, err := b.cursors.Get(ctx, cursorEntryKey(key, userID))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, errs.Networkf(err, "failed to read cursor")
	}
	t, err := time.Parse(time.RFC3339Nano, string(entry.Value()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse cursor: %w", err)
	}
	return &store.ReadCursor{UserID: userID, ConversationKey: key, LastReadAt: t}, nil
}

// SetCursor creates or advances the cursor. It never moves backwards.
func (b *Backend) SetCursor(ctx context.Context, userID string, key model.Key, lastReadAt time.Time) error {
	prev, err := b.GetCursor(ctx, userID, key)
	if err != nil {
		return err
	}
	if prev != nil && prev.LastReadAt.After(lastReadAt) {
		return nil
	}
	value := []byte(lastReadAt.Format(time.RFC3339Nano))
	if _, err := b.cursors.Put(ctx, cursorEntryKey(key, userID), value); err != nil {
		return errs.Networkf(err, "failed to store cursor")
	}
	return nil
}

// ResetCursors drops every cursor for the conversation.
func (b *Backend) ResetCursors(ctx context.Context, key model.Key) error {
	keys, err := b.cursors.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil
		}
		return errs.Networkf(err, "failed to list cursors")
	}
	prefix := string(key) + "."
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if err := b.cursors.Delete(ctx, k); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			return errs.Networkf(err, "failed to delete cursor")
		}
	}
	return nil
}

func sortGroups(groups []model.Group) {
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
}
