package demoshop

import (
	"fmt"
	"time"

	"github.com/entrhq/authcache/pkg/accounts"
)

// SessionStorageKey is where the shop front-end keeps its session.
const SessionStorageKey = "session"

// CartStorageKey is where the shop front-end keeps the cart.
const CartStorageKey = "cart"

// SessionTTL is how long an issued session stays valid.
const SessionTTL = 30 * time.Minute

// TimestampLayout matches JavaScript's Date.toISOString.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Session is the payload returned by POST /api/login and stored by the
// front-end under SessionStorageKey.
type Session struct {
	Username  string `json:"username"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Token     string `json:"token"`
	IssuedAt  string `json:"issuedAt"`
	ExpiresAt string `json:"expiresAt"`
	LastLogin string `json:"lastLogin"`
}

// NewSession issues a session for acct at now.
func NewSession(acct accounts.Account, now time.Time, ttl time.Duration) Session {
	now = now.UTC()
	return Session{
		Username:  acct.Username,
		Name:      acct.DisplayName,
		Role:      string(acct.Role),
		Token:     fmt.Sprintf("token_%s_%d", acct.Username, now.UnixMilli()),
		IssuedAt:  now.Format(TimestampLayout),
		ExpiresAt: now.Add(ttl).Format(TimestampLayout),
		LastLogin: now.Format("1/2/2006, 3:04:05 PM"),
	}
}
