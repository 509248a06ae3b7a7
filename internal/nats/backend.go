package nats

import (
	"context"
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

const (
	// StreamName is the name of the chat message stream.
	StreamName = "CHAT"

	// SubjectPrefix is the prefix for all conversation subjects. The
	// conversation key's dot-separated tokens become subject tokens, so
	// one conversation maps to exactly one subject.
	SubjectPrefix = "chat.msg"

	groupsBucket  = "chat_groups"
	cursorsBucket = "chat_cursors"
)

// Backend implements store.Backend on JetStream: messages live in an
// append-only stream whose sequences are the insertion order, groups and
// read cursors live in KV buckets.
type Backend struct {
	client  *Client
	groups  jetstream.KeyValue
	cursors jetstream.KeyValue
	now     func() time.Time
}

// NewBackend ensures the stream and KV buckets exist and returns the
// backend.
func NewBackend(ctx context.Context, client *Client) (*Backend, error) {
	js := client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err != nil {
		_, err = js.CreateStream(ctx, jetstream.StreamConfig{
			Name:        StreamName,
			Subjects:    []string{SubjectPrefix + ".>"},
			Retention:   jetstream.LimitsPolicy,
			Storage:     jetstream.FileStorage,
			Replicas:    1,
			Compression: jetstream.S2Compression,
			// Purge stays allowed: clearing a conversation purges its
			// subject. Individual deletes are still denied.
			DenyDelete:  true,
			Duplicates:  2 * time.Minute,
			Description: "Conversation messages, one subject per conversation",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create stream: %w", err)
		}
	}

	groups, err := ensureKV(ctx, js, groupsBucket)
	if err != nil {
		return nil, err
	}
	cursors, err := ensureKV(ctx, js, cursorsBucket)
	if err != nil {
		return nil, err
	}

	return &Backend{
		client:  client,
		groups:  groups,
		cursors: cursors,
		now:     time.Now,
	}, nil
}

func ensureKV(ctx context.Context, js jetstream.JetStream, bucket string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("failed to open bucket %s: %w", bucket, err)
	}
	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return kv, nil
}

// Ready reports backend readiness for the health endpoint.
func (b *Backend) Ready() error {
	return b.client.Ready()
}

func conversationSubject(key model.Key) string {
	return SubjectPrefix + "." + string(key)
}

// Append publishes the message to its conversation subject. A dedupeID is
// forwarded as the JetStream message id, so a caller retry inside the
// duplicate window returns the original sequence instead of a second copy.
func (b *Backend) Append(ctx context.Context, msg *model.Message, dedupeID string) (*model.Message, error) {
	if err := store.ValidateMessage(msg); err != nil {
		return nil, err
	}

	stored := *msg
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = b.now()
	}

	data, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	var opts []jetstream.PublishOpt
	if dedupeID != "" {
		opts = append(opts, jetstream.WithMsgID(dedupeID))
	}

	ack, err := b.client.JetStream().Publish(ctx, conversationSubject(stored.ConversationKey), data, opts...)
	if err != nil {
		return nil, errs.Networkf(err, "failed to publish message")
	}

	stored.Sequence = ack.Sequence
	return &stored, nil
}

// List fetches the conversation's messages with stream sequence > sinceSeq,
// in stream order.
func (b *Backend) List(ctx context.Context, key model.Key, sinceSeq uint64) ([]model.Message, error) {
	js := b.client.JetStream()
	subject := conversationSubject(key)

	pending, err := b.subjectCount(ctx, subject)
	if err != nil {
		return nil, err
	}
	if pending == 0 {
		return nil, nil
	}

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	}
	if sinceSeq > 0 {
		consumerConfig.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		consumerConfig.OptStartSeq = sinceSeq + 1
	}

	consumer, err := js.CreateConsumer(ctx, StreamName, consumerConfig)
	if err != nil {
		return nil, errs.Networkf(err, "failed to create consumer")
	}
	defer js.DeleteConsumer(ctx, StreamName, consumer.CachedInfo().Name)

	var messages []model.Message
	batch, err := consumer.FetchNoWait(int(pending))
	if err != nil {
		return nil, errs.Networkf(err, "failed to fetch messages")
	}
	for raw := range batch.Messages() {
		var message model.Message
		if err := json.Unmarshal(raw.Data(), &message); err != nil {
			continue
		}
		if meta, err := raw.Metadata(); err == nil {
			message.Sequence = meta.Sequence.Stream
		}
		messages = append(messages, message)
	}
	if err := batch.Error(); err != nil {
		return nil, errs.Networkf(err, "failed to drain batch")
	}

	store.SortMessages(messages)
	return messages, nil
}

// Latest returns the newest message of the conversation, or nil.
func (b *Backend) Latest(ctx context.Context, key model.Key) (*model.Message, error) {
	stream, err := b.client.JetStream().Stream(ctx, StreamName)
	if err != nil {
		return nil, errs.Networkf(err, "failed to open stream")
	}

	raw, err := stream.GetLastMsgForSubject(ctx, conversationSubject(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			return nil, nil
		}
		return nil, errs.Networkf(err, "failed to read last message")
	}

	var message model.Message
	if err := json.Unmarshal(raw.Data, &message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	message.Sequence = raw.Sequence
	return &message, nil
}

// Clear purges the conversation's subject. Purging an empty subject is a
// no-op success, which gives clear its idempotence.
func (b *Backend) Clear(ctx context.Context, key model.Key) error {
	stream, err := b.client.JetStream().Stream(ctx, StreamName)
	if err != nil {
		return errs.Networkf(err, "failed to open stream")
	}
	if err := stream.Purge(ctx, jetstream.WithPurgeSubject(conversationSubject(key))); err != nil {
		return errs.Networkf(err, "failed to purge conversation")
	}
	return nil
}

// DirectPartners derives partners from subjects that still hold messages,
// so cleared threads drop out.
func (b *Backend) DirectPartners(ctx context.Context, userID string) ([]string, error) {
	stream, err := b.client.JetStream().Stream(ctx, StreamName)
	if err != nil {
		return nil, errs.Networkf(err, "failed to open stream")
	}
	info, err := stream.Info(ctx, jetstream.WithSubjectFilter(SubjectPrefix+".direct.>"))
	if err != nil {
		return nil, errs.Networkf(err, "failed to read stream info")
	}

	seen := make(map[string]struct{})
	for subject, count := range info.State.Subjects {
		if count == 0 {
			continue
		}
		key := model.Key(strings.TrimPrefix(subject, SubjectPrefix+"."))
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

func (b *Backend) subjectCount(ctx context.Context, subject string) (uint64, error) {
	stream, err := b.client.JetStream().Stream(ctx, StreamName)
	if err != nil {
		return 0, errs.Networkf(err, "failed to open stream")
	}
	info, err := stream.Info(ctx, jetstream.WithSubjectFilter(subject))
	if err != nil {
		return 0, errs.Networkf(err, "failed to read stream info")
	}
	return info.State.Subjects[subject], nil
}
