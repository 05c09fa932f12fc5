package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStoreFromClient(client, "test"), mr
}

func TestIdentityRoundTrip(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	_, _, cached, err := s.GetIdentity(ctx, "300234010000001")
	require.NoError(t, err)
	assert.False(t, cached)

	require.NoError(t, s.SetIdentity(ctx, "300234010000001", 42, true, time.Hour))
	require.NoError(t, s.SetIdentity(ctx, "300234010000002", 0, false, 5*time.Minute))

	id, found, cached, err := s.GetIdentity(ctx, "300234010000001")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.True(t, found)
	assert.EqualValues(t, 42, id)

	_, found, cached, err = s.GetIdentity(ctx, "300234010000002")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.False(t, found)

	mr.FastForward(6 * time.Minute)
	_, _, cached, err = s.GetIdentity(ctx, "300234010000002")
	require.NoError(t, err)
	assert.False(t, cached, "negative entry expires with its ttl")

	require.NoError(t, s.ClearIdentities(ctx))
	_, _, cached, err = s.GetIdentity(ctx, "300234010000001")
	require.NoError(t, err)
	assert.False(t, cached)
}

func TestUpdateVesselState(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	sub := s.Client().Subscribe(ctx, s.Channel("telemetry"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	st := VesselState{VesselID: 7, Name: "Aurora", Latitude: 50.1, Longitude: -1.2, Timestamp: time.Unix(1700000000, 0).UTC()}
	require.NoError(t, s.UpdateVesselState(ctx, st))

	assert.Equal(t, "Aurora", mr.HGet("test:vessel:7:state", "name"))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Contains(t, msg.Payload, `"vessel_id":7`)

	near, err := s.VesselsNear(ctx, 50.1, -1.2, 1000)
	require.NoError(t, err)
	assert.Equal(t, []string{"7"}, near)
}
