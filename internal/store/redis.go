package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vesseleye/internal/config"
)

const missMarker = "-"

// RedisStore holds the redis-backed pieces shared between service
// instances: the identity cache tier, live vessel state and pub/sub.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStoreFromClient(client, cfg.ChannelPrefix), nil
}

func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "vesseleye"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Client() *redis.Client {
	return r.client
}

func (r *RedisStore) identityKey(imei string) string {
	return fmt.Sprintf("%s:vessel:imei:%s", r.prefix, imei)
}

// GetIdentity returns the cached external id for an IMEI. cached is false
// when redis has no entry; found is false for a cached miss.
func (r *RedisStore) GetIdentity(ctx context.Context, imei string) (id int64, found, cached bool, err error) {
	val, err := r.client.Get(ctx, r.identityKey(imei)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, fmt.Errorf("redis get identity failed: %w", err)
	}
	if val == missMarker {
		return 0, false, true, nil
	}
	id, err = strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, false, fmt.Errorf("corrupt identity entry for %s: %w", imei, err)
	}
	return id, true, true, nil
}

// SetIdentity stores a resolution (or a miss when found is false) for ttl.
func (r *RedisStore) SetIdentity(ctx context.Context, imei string, id int64, found bool, ttl time.Duration) error {
	val := missMarker
	if found {
		val = strconv.FormatInt(id, 10)
	}
	return r.client.Set(ctx, r.identityKey(imei), val, ttl).Err()
}

func (r *RedisStore) ClearIdentities(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.identityKey("*"), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan identities failed: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// VesselState is the live snapshot published after each stored report.
type VesselState struct {
	VesselID  uint      `json:"vessel_id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// UpdateVesselState writes the vessel's live state hash, its geo index
// entry and a telemetry pub/sub message in one pipeline.
func (r *RedisStore) UpdateVesselState(ctx context.Context, st VesselState) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	stateKey := fmt.Sprintf("%s:vessel:%d:state", r.prefix, st.VesselID)
	member := strconv.FormatUint(uint64(st.VesselID), 10)

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, stateKey, map[string]interface{}{
		"name":      st.Name,
		"lat":       st.Latitude,
		"lng":       st.Longitude,
		"timestamp": st.Timestamp.Unix(),
	})
	pipe.GeoAdd(ctx, r.prefix+":fleet:geo", &redis.GeoLocation{
		Name:      member,
		Longitude: st.Longitude,
		Latitude:  st.Latitude,
	})
	pipe.Publish(ctx, r.Channel("telemetry"), payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// VesselsNear returns vessel ids within radiusMeters of a point, nearest first.
func (r *RedisStore) VesselsNear(ctx context.Context, lat, lon, radiusMeters float64) ([]string, error) {
	locs, err := r.client.GeoRadius(ctx, r.prefix+":fleet:geo", lon, lat, &redis.GeoRadiusQuery{
		Radius: radiusMeters,
		Unit:   "m",
		Sort:   "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis georadius failed: %w", err)
	}
	ids := make([]string, 0, len(locs))
	for _, l := range locs {
		ids = append(ids, l.Name)
	}
	return ids, nil
}

func (r *RedisStore) Channel(name string) string {
	return r.prefix + ":" + name
}

func (r *RedisStore) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.client.Publish(ctx, r.Channel(channel), payload).Err()
}
