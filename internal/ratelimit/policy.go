// Package ratelimit implements the per-key attempt trackers used by the
// authentication flows, in process memory or in Redis.
package ratelimit

import (
	"time"

	"github.com/tendant/blog-auth/pkg/auth"
)

// Policy bounds attempts per key. Once Max attempts are recorded inside
// Window, the key is refused until the window ends or, when Block is set,
// until Block has passed since the limit was reached.
type Policy struct {
	Max    int
	Window time.Duration
	Block  time.Duration
}

// Default policies of the four trackers.
var (
	SigninPolicy        = Policy{Max: 5, Window: 15 * time.Minute}
	SignupPolicy        = Policy{Max: 10, Window: time.Hour}
	PasswordResetPolicy = Policy{Max: 3, Window: time.Hour}
	OAuthPolicy         = Policy{Max: 5, Window: time.Hour, Block: 2 * time.Hour}
)

var _ auth.AttemptTracker = (*MemoryTracker)(nil)
var _ auth.AttemptTracker = (*RedisTracker)(nil)

func allowed() auth.Decision {
	return auth.Decision{Allowed: true}
}

func denied(retryAfter time.Duration) auth.Decision {
	if retryAfter < 0 {
		retryAfter = 0
	}
	return auth.Decision{Allowed: false, RetryAfter: retryAfter}
}
