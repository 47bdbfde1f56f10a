package webaccess

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestTokenIssueAndValidate(t *testing.T) {
	m := NewTokenManager(0, nil)
	assert.Equal(t, DefaultTokenTTL, m.TTL())
	assert.False(t, m.HasValid())
	assert.False(t, m.Validate(""))

	tok := m.Issue()
	assert.NotEmpty(t, tok.Value)
	assert.True(t, m.HasValid())
	assert.True(t, m.Validate(tok.Value))
	assert.False(t, m.Validate(tok.Value+"x"))
	assert.False(t, m.Validate(""))
}

func TestTokenSingleValidity(t *testing.T) {
	m := NewTokenManager(time.Minute, nil)
	t1 := m.Issue()
	t2 := m.Issue()

	assert.NotEqual(t, t1.Value, t2.Value)
	assert.False(t, m.Validate(t1.Value))
	assert.True(t, m.Validate(t2.Value))
}

func TestTokenExpiry(t *testing.T) {
	clock := &testClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	m := NewTokenManager(5*time.Minute, clock.Now)

	tok := m.Issue()
	assert.Equal(t, clock.Now().Add(5*time.Minute), tok.ExpiresAt)

	clock.Advance(4*time.Minute + 59*time.Second)
	assert.True(t, m.Validate(tok.Value))

	clock.Advance(time.Second)
	assert.False(t, m.Validate(tok.Value))
	assert.False(t, m.HasValid())
}

func TestTokenRevoke(t *testing.T) {
	m := NewTokenManager(time.Minute, nil)
	tok := m.Issue()
	m.Revoke()

	assert.False(t, m.Validate(tok.Value))
	assert.False(t, m.HasValid())
}
