package webaccess

import (
	"crypto/subtle"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// DefaultTokenTTL is how long an issued token authenticates new connections.
const DefaultTokenTTL = 5 * time.Minute

// Token is a bearer credential handed to a client out of band.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// TokenManager holds the single live token. Issuing a new token replaces
// the old one; connections already authenticated are not affected since
// they are checked only once.
type TokenManager struct {
	mu        sync.RWMutex
	digest    []byte
	expiresAt time.Time

	ttl time.Duration
	now func() time.Time
}

func NewTokenManager(ttl time.Duration, now func() time.Time) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if now == nil {
		now = time.Now
	}
	return &TokenManager{ttl: ttl, now: now}
}

func (m *TokenManager) TTL() time.Duration { return m.ttl }

// Issue creates a new random token and invalidates any previous one.
func (m *TokenManager) Issue() Token {
	t := Token{Value: uuid.NewString(), ExpiresAt: m.now().Add(m.ttl)}
	sum := blake2b.Sum256([]byte(t.Value))

	m.mu.Lock()
	m.digest = sum[:]
	m.expiresAt = t.ExpiresAt
	m.mu.Unlock()
	return t
}

// Revoke clears the live token immediately.
func (m *TokenManager) Revoke() {
	m.mu.Lock()
	m.digest = nil
	m.expiresAt = time.Time{}
	m.mu.Unlock()
}

// Validate reports whether value is the live token and has not expired.
// Expiry is only checked here; there is no background sweep.
func (m *TokenManager) Validate(value string) bool {
	sum := blake2b.Sum256([]byte(value))

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.digest == nil || !m.now().Before(m.expiresAt) {
		return false
	}
	return subtle.ConstantTimeCompare(m.digest, sum[:]) == 1
}

// HasValid reports whether a non-expired token exists.
func (m *TokenManager) HasValid() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.digest != nil && m.now().Before(m.expiresAt)
}
