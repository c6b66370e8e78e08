package sessionstore

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/efficiencynow/efficiencynow/internal/domain/auth"
	"github.com/efficiencynow/efficiencynow/pkg/util"
)

const (
	defaultShards  = 32
	maxMintRetries = 8
)

var errTokenSpaceExhausted = errors.New("could not mint a unique session token")

type session struct {
	email     string
	expiresAt time.Time
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]session
}

// MemoryStore keeps sessions in process memory, split across independently
// locked shards.
type MemoryStore struct {
	shards []*shard
	mask   uint32
	ttl    time.Duration
	now    util.Clock
	mint   func() (string, error)
}

// Option customises a MemoryStore.
type Option func(*MemoryStore)

// WithClock overrides the time source used for expiry.
func WithClock(clock util.Clock) Option {
	return func(s *MemoryStore) {
		s.now = clock
	}
}

// WithTokenSource overrides token generation.
func WithTokenSource(mint func() (string, error)) Option {
	return func(s *MemoryStore) {
		s.mint = mint
	}
}

// NewMemoryStore constructs a store with the given shard count rounded up to
// a power of two. A zero ttl keeps sessions until they are revoked.
func NewMemoryStore(shards int, ttl time.Duration, opts ...Option) *MemoryStore {
	if shards <= 0 {
		shards = defaultShards
	}
	n := 1
	for n < shards {
		n <<= 1
	}
	s := &MemoryStore{
		shards: make([]*shard, n),
		mask:   uint32(n - 1),
		ttl:    ttl,
		now:    util.NowUTC,
		mint:   newToken,
	}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[string]session)}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements auth.SessionStore.
func (s *MemoryStore) Create(_ context.Context, email string) (string, error) {
	var expiresAt time.Time
	if s.ttl > 0 {
		expiresAt = s.now().Add(s.ttl)
	}
	for range maxMintRetries {
		token, err := s.mint()
		if err != nil {
			return "", err
		}
		sh := s.shardFor(token)
		sh.mu.Lock()
		existing, taken := sh.sessions[token]
		if !taken || s.expired(existing) {
			sh.sessions[token] = session{email: email, expiresAt: expiresAt}
			sh.mu.Unlock()
			return token, nil
		}
		sh.mu.Unlock()
	}
	return "", errTokenSpaceExhausted
}

// Lookup implements auth.SessionStore.
func (s *MemoryStore) Lookup(_ context.Context, token string) (string, bool, error) {
	sh := s.shardFor(token)
	sh.mu.RLock()
	sess, ok := sh.sessions[token]
	sh.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if s.expired(sess) {
		sh.mu.Lock()
		if current, ok := sh.sessions[token]; ok && s.expired(current) {
			delete(sh.sessions, token)
		}
		sh.mu.Unlock()
		return "", false, nil
	}
	return sess.email, true, nil
}

// Revoke implements auth.SessionStore.
func (s *MemoryStore) Revoke(_ context.Context, token string) error {
	sh := s.shardFor(token)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess, ok := sh.sessions[token]
	if !ok {
		return auth.ErrInvalidSession
	}
	delete(sh.sessions, token)
	if s.expired(sess) {
		return auth.ErrInvalidSession
	}
	return nil
}

// RevokeAll drops every session belonging to email.
func (s *MemoryStore) RevokeAll(_ context.Context, email string) (int, error) {
	revoked := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for token, sess := range sh.sessions {
			if sess.email == email {
				delete(sh.sessions, token)
				revoked++
			}
		}
		sh.mu.Unlock()
	}
	return revoked, nil
}

// Len counts live sessions.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, sess := range sh.sessions {
			if !s.expired(sess) {
				total++
			}
		}
		sh.mu.RUnlock()
	}
	return total, nil
}

// Sweep removes expired sessions and returns how many were dropped.
func (s *MemoryStore) Sweep(_ context.Context) int {
	if s.ttl <= 0 {
		return 0
	}
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for token, sess := range sh.sessions {
			if s.expired(sess) {
				delete(sh.sessions, token)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

func (s *MemoryStore) shardFor(token string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return s.shards[h.Sum32()&s.mask]
}

func (s *MemoryStore) expired(sess session) bool {
	return !sess.expiresAt.IsZero() && !s.now().Before(sess.expiresAt)
}

func newToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var _ auth.SessionStore = (*MemoryStore)(nil)
