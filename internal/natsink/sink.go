package natsink

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	serrors "git.home.luguber.info/inful/syncd/internal/errors"
	"git.home.luguber.info/inful/syncd/internal/reporter"
)

const defaultTimeout = 5 * time.Second

// KeyValue is the subset of jetstream.KeyValue used by the sink.
type KeyValue interface {
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
}

// Publisher sends change notifications. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// KVSink stores each snapshot document under one key of a JetStream
// key-value bucket.
type KVSink struct {
	kv      KeyValue
	key     string
	pub     Publisher
	subject string
	timeout time.Duration
}

// Option customizes a KVSink.
type Option func(*KVSink)

// WithNotify also publishes each document on subject.
func WithNotify(pub Publisher, subject string) Option {
	return func(s *KVSink) {
		s.pub = pub
		s.subject = subject
	}
}

// WithTimeout bounds each bucket operation.
func WithTimeout(d time.Duration) Option {
	return func(s *KVSink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewKVSink returns a sink writing to key in kv.
func NewKVSink(kv KeyValue, key string, opts ...Option) *KVSink {
	if kv == nil {
		panic("natsink: key-value bucket is required")
	}
	s := &KVSink{kv: kv, key: key, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write implements reporter.Sink.
func (s *KVSink) Write(snap reporter.Snapshot) error {
	if err := snap.Validate(); err != nil {
		panic("natsink: malformed snapshot: " + err.Error())
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return serrors.EventPublishError(s.key, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.kv.Put(ctx, s.key, data); err != nil {
		return serrors.EventPublishError(s.key, err)
	}
	if s.pub != nil {
		if err := s.pub.Publish(s.subject, data); err != nil {
			return serrors.EventPublishError(s.subject, err)
		}
	}
	return nil
}

// Latest returns the most recently stored snapshot. ok is false when
// nothing has been published yet.
func (s *KVSink) Latest(ctx context.Context) (snap reporter.Snapshot, ok bool, err error) {
	entry, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return reporter.Snapshot{}, false, nil
		}
		return reporter.Snapshot{}, false, serrors.EventPublishError(s.key, err)
	}
	snap, err = reporter.DecodeSnapshot(entry.Value())
	if err != nil {
		return reporter.Snapshot{}, false, err
	}
	return snap, true, nil
}
