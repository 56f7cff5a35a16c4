package testutil

import (
	"context"
	"encoding/json"
	"testing"

	"herdshare-backend/internal/middleware"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// Login stores a session for user under sid the way the identity service does and
// returns the cookie header value.
func Login(t testing.TB, rdb *redis.Client, sid string, user middleware.SessionUser) string {
	b, err := json.Marshal(map[string]interface{}{"user": user})
	require.NoError(t, err)
	require.NoError(t, rdb.Set(context.Background(), middleware.SessionRedisPrefix+sid, b, 0).Err())
	return middleware.SessionCookieName + "=" + sid
}
