// Package redis implements an adapter that appends every delivered
// instance, as JSON, to a Redis list.
//
// The list key is the configured prefix followed by the handler name,
// unless the handler params name one:
//
//	handlers:
//	  - name: audit
//	    adapter: redis
//	    params:
//	      key: audit-events   # stored at mixer:audit-events
//	      max_len: 10000      # keep only the newest entries
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mercator-hq/mixer/pkg/adapter"
	"mercator-hq/mixer/pkg/policy/instance"
	"mercator-hq/mixer/pkg/schema"
)

// Name is the adapter name.
const Name = "redis"

// Adapter pushes instances to Redis lists. It is safe for concurrent use.
type Adapter struct {
	rdb       *redis.Client
	keyPrefix string
	now       func() time.Time
}

// New creates an adapter connected with opts. Connections are made lazily.
func New(opts *redis.Options, keyPrefix string) (*Adapter, error) {
	if opts == nil || opts.Addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	return &Adapter{
		rdb:       redis.NewClient(opts),
		keyPrefix: keyPrefix,
		now:       time.Now,
	}, nil
}

func (a *Adapter) Name() string { return Name }

// Key returns the list key used for handler.
func (a *Adapter) Key(handler *schema.Handler) string {
	return a.keyPrefix + adapter.StringParam(handler, "key", handler.Name)
}

// Handle appends one JSON entry per instance in a single pipeline.
func (a *Adapter) Handle(ctx context.Context, handler *schema.Handler, instances []*instance.Instance) error {
	if len(instances) == 0 {
		return nil
	}

	recs := adapter.NewRecords(handler, instances, a.now())
	values := make([]interface{}, len(recs))
	for i, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal instance %s: %w", rec.Instance, err)
		}
		values[i] = data
	}

	key := a.Key(handler)
	pipe := a.rdb.TxPipeline()
	pipe.RPush(ctx, key, values...)
	if maxLen := maxLen(handler); maxLen > 0 {
		pipe.LTrim(ctx, key, -maxLen, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push to %s: %w", key, err)
	}
	return nil
}

// Records reads back every entry stored for handler.
func (a *Adapter) Records(ctx context.Context, handler *schema.Handler) ([]adapter.Record, error) {
	raw, err := a.rdb.LRange(ctx, a.Key(handler), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]adapter.Record, 0, len(raw))
	for _, item := range raw {
		var rec adapter.Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode entry: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// HealthCheck pings the server.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	return a.rdb.Ping(ctx).Err()
}

// Close closes the client.
func (a *Adapter) Close() error {
	return a.rdb.Close()
}

func maxLen(handler *schema.Handler) int64 {
	v, ok := handler.Params.Field("max_len")
	if !ok {
		return 0
	}
	n, _ := v.Num()
	return int64(n)
}
