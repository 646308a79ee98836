package dispatch_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsvpkit/wedding/svc/dispatch"
)

func exerciseClaims(t *testing.T, claims dispatch.Claims, key string) {
	t.Helper()
	ctx := context.Background()

	release, err := claims.Claim(ctx, key, time.Minute)
	require.NoError(t, err)

	_, err = claims.Claim(ctx, key, time.Minute)
	assert.ErrorIs(t, err, dispatch.ErrClaimHeld)

	other, err := claims.Claim(ctx, key+"-other", time.Minute)
	require.NoError(t, err, "keys are independent")
	other()

	release()
	release()

	again, err := claims.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	again()
}

func TestMemoryClaims(t *testing.T) {
	t.Parallel()
	exerciseClaims(t, dispatch.NewMemoryClaims(), "save-the-date")
}

func TestMemoryClaims_Expired(t *testing.T) {
	t.Parallel()

	claims := dispatch.NewMemoryClaims()
	stale, err := claims.Claim(context.Background(), "reminder", 0)
	require.NoError(t, err)

	fresh, err := claims.Claim(context.Background(), "reminder", time.Minute)
	require.NoError(t, err, "an expired claim does not block")

	stale()
	_, err = claims.Claim(context.Background(), "reminder", time.Minute)
	assert.ErrorIs(t, err, dispatch.ErrClaimHeld, "a stale release must not drop the new holder")
	fresh()
}

func TestRedisClaims(t *testing.T) {
	t.Parallel()

	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	exerciseClaims(t, dispatch.NewRedisClaims(client, "test:claim:"+uuid.NewString()+":"), "save-the-date")
}
