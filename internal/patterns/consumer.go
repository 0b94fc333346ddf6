/*
Copyright 2026 The NexusForge Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package patterns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ConsumerConfig names the Redis Streams coordinates the outcome consumer
// reads from (spec.md §6: "a durable append-only log identified by a stream
// key and a consumer group").
type ConsumerConfig struct {
	StreamKey    string
	Group        string
	Consumer     string
	BlockTimeout time.Duration
	BatchCount   int64
	ErrorBackoff time.Duration
}

// DefaultConsumerConfig matches spec.md §4.3's "block-reads up to 10
// messages with a 5s timeout" contract.
func DefaultConsumerConfig(streamKey, group, consumer string) ConsumerConfig {
	return ConsumerConfig{
		StreamKey:    streamKey,
		Group:        group,
		Consumer:     consumer,
		BlockTimeout: 5 * time.Second,
		BatchCount:   10,
		ErrorBackoff: 5 * time.Second,
	}
}

// Consumer drives the Store from a Redis Streams outcome event log with
// at-least-once delivery.
type Consumer struct {
	rdb *redis.Client
	cfg ConsumerConfig
	store *Store
	log *zap.Logger
}

// NewConsumer builds a Consumer and ensures the consumer group exists,
// creating the stream if it does not.
func NewConsumer(rdb *redis.Client, cfg ConsumerConfig, store *Store, log *zap.Logger) (*Consumer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := rdb.XGroupCreateMkStream(ctx, cfg.StreamKey, cfg.Group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("creating consumer group %s on stream %s: %w", cfg.Group, cfg.StreamKey, err)
	}
	return &Consumer{rdb: rdb, cfg: cfg, store: store, log: log}, nil
}

// Run blocks, consuming outcome events until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.readOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if err == redis.Nil {
				continue
			}
			c.log.Warn("outcome stream read failed, backing off", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.ErrorBackoff):
			}
		}
	}
}

func (c *Consumer) readOnce(ctx context.Context) error {
	streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.StreamKey, ">"},
		Count:    c.cfg.BatchCount,
		Block:    c.cfg.BlockTimeout,
	}).Result()
	if err != nil {
		return err
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			c.handle(ctx, msg)
		}
	}
	return nil
}

func (c *Consumer) handle(ctx context.Context, msg redis.XMessage) {
	// Acknowledge unconditionally, even on parse failure, to avoid a
	// malformed message poison-looping redelivery (spec.md §4.3).
	defer func() {
		if err := c.rdb.XAck(ctx, c.cfg.StreamKey, c.cfg.Group, msg.ID).Err(); err != nil {
			c.log.Error("failed to ack outcome message", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}()

	raw, ok := msg.Values["outcome"]
	if !ok {
		c.log.Warn("outcome message missing 'outcome' field", zap.String("message_id", msg.ID))
		return
	}
	payload, ok := raw.(string)
	if !ok {
		c.log.Warn("outcome message field was not a string", zap.String("message_id", msg.ID))
		return
	}

	var outcome DecisionOutcome
	if err := json.Unmarshal([]byte(payload), &outcome); err != nil {
		c.log.Warn("failed to parse outcome JSON; acknowledging and dropping",
			zap.String("message_id", msg.ID), zap.Error(err))
		return
	}

	c.store.LearnFromOutcome(outcome)
}
