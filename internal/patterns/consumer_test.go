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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestConsumer_ConsumesAndAcksOutcome(t *testing.T) {
	rdb := newTestRedis(t)
	store := newTestStore(t)

	cfg := DefaultConsumerConfig("substrate:outcomes", "pattern-learners", "consumer-1")
	cfg.BlockTimeout = 200 * time.Millisecond
	consumer, err := NewConsumer(rdb, cfg, store, nil)
	require.NoError(t, err)

	outcome := DecisionOutcome{
		RequestFingerprint: "fp-1",
		DecisionPoint:      DecisionProcessingRoute,
		Characteristics:    FileCharacteristics{Extension: "pdf", MimeType: "application/pdf", SizeBytes: 2048},
		Success:            true,
		ObservedAt:         time.Now(),
	}
	payload, err := json.Marshal(outcome)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: cfg.StreamKey,
		Values: map[string]interface{}{"outcome": string(payload)},
	}).Result()
	require.NoError(t, err)

	require.NoError(t, consumer.readOnce(ctx))

	found, _, _ := store.Lookup(outcome.lookupRequest())
	require.True(t, found)

	pending, err := rdb.XPending(ctx, cfg.StreamKey, cfg.Group).Result()
	require.NoError(t, err)
	require.Equal(t, int64(0), pending.Count, "message should have been acknowledged")
}

func TestConsumer_AcksUnparseableMessage(t *testing.T) {
	rdb := newTestRedis(t)
	store := newTestStore(t)

	cfg := DefaultConsumerConfig("substrate:outcomes", "pattern-learners", "consumer-1")
	cfg.BlockTimeout = 200 * time.Millisecond
	consumer, err := NewConsumer(rdb, cfg, store, nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: cfg.StreamKey,
		Values: map[string]interface{}{"outcome": "{not json"},
	}).Result()
	require.NoError(t, err)

	require.NoError(t, consumer.readOnce(ctx))

	pending, err := rdb.XPending(ctx, cfg.StreamKey, cfg.Group).Result()
	require.NoError(t, err)
	require.Equal(t, int64(0), pending.Count, "unparseable message must still be acknowledged")
}
