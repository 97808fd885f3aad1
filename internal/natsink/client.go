// Package natsink broadcasts status snapshots over NATS: the latest
// document is kept in a JetStream key-value bucket and, optionally, every
// change is announced on a core NATS subject.
package natsink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/syncd/internal/config"
	"git.home.luguber.info/inful/syncd/internal/logfields"
)

// Client manages the NATS connection and the status bucket.
type Client struct {
	conn *nats.Conn
	js   jetstream.JetStream
	kv   jetstream.KeyValue
	cfg  config.EventsConfig
}

// Connect dials the configured server and opens (or creates) the bucket.
func Connect(cfg config.EventsConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("events are disabled")
	}

	conn, err := nats.Connect(cfg.NATSURL, nats.Name("syncd"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	c := &Client{conn: conn, js: js, cfg: cfg}
	if err := c.initKVBucket(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize KV bucket: %w", err)
	}

	slog.Info("NATS client initialized for status events",
		logfields.URL(cfg.NATSURL),
		slog.String("bucket", cfg.Bucket),
		slog.String("subject", cfg.Subject))
	return c, nil
}

// initKVBucket gets the status bucket, creating it when missing.
func (c *Client) initKVBucket() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	kv, err := c.js.KeyValue(ctx, c.cfg.Bucket)
	if err == nil {
		c.kv = kv
		return nil
	}

	kv, err = c.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      c.cfg.Bucket,
		Description: "syncd daemon status",
		History:     1, // Keep only latest value
	})
	if err != nil {
		return fmt.Errorf("failed to create KV bucket: %w", err)
	}

	c.kv = kv
	slog.Info("Created KV bucket for status", slog.String("bucket", c.cfg.Bucket))
	return nil
}

// Sink returns a sink writing to the configured key and subject.
func (c *Client) Sink() *KVSink {
	opts := []Option{}
	if c.cfg.Subject != "" {
		opts = append(opts, WithNotify(c.conn, c.cfg.Subject))
	}
	return NewKVSink(c.kv, c.cfg.Key, opts...)
}

// Close drains and closes the NATS connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
		return err
	}
	return nil
}
