package sessionstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/efficiencynow/efficiencynow/internal/domain/auth"
)

const (
	scanBatch      = 500
	discardTimeout = 2 * time.Second
)

// ValkeyStore keeps sessions in a Valkey-compatible database so they survive
// restarts and can be shared between replicas.
//
// Each session is a string key holding the owner's email. A per-user set
// lists the user's tokens so RevokeAll does not have to scan.
type ValkeyStore struct {
	cmds   sessionCommands
	prefix string
	ttl    time.Duration
	mint   func() (string, error)
	logger *slog.Logger
}

// NewValkeyStore constructs a new store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string, ttl time.Duration, logger *slog.Logger) *ValkeyStore {
	return newValkeyStore(valkeyCommands{client: client}, prefix, ttl, logger)
}

func newValkeyStore(cmds sessionCommands, prefix string, ttl time.Duration, logger *slog.Logger) *ValkeyStore {
	if prefix == "" {
		prefix = "efficiencynow"
	}
	return &ValkeyStore{
		cmds:   cmds,
		prefix: prefix,
		ttl:    ttl,
		mint:   newToken,
		logger: logger.With("component", "sessionstore.valkey"),
	}
}

// Create implements auth.SessionStore.
func (s *ValkeyStore) Create(ctx context.Context, email string) (string, error) {
	userKey := s.userKey(email)
	for range maxMintRetries {
		token, err := s.mint()
		if err != nil {
			return "", err
		}
		key := s.sessionKey(token)
		created, err := s.cmds.createSession(ctx, key, userKey, token, email, s.ttl)
		if err != nil {
			// The write may have landed even though the reply was lost. Nobody
			// will ever hold this token, so drop whatever it left behind.
			s.discard(ctx, key, userKey, token, email)
			return "", err
		}
		if created {
			return token, nil
		}
	}
	return "", errTokenSpaceExhausted
}

func (s *ValkeyStore) discard(ctx context.Context, key, userKey, token, email string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), discardTimeout)
	defer cancel()
	if err := s.cmds.discardSession(ctx, key, userKey, token, email); err != nil {
		s.logger.Error("failed to discard unconfirmed session", "key", key, "error", err)
	}
}

// Lookup implements auth.SessionStore. Expired keys are removed by Valkey.
func (s *ValkeyStore) Lookup(ctx context.Context, token string) (string, bool, error) {
	return s.cmds.get(ctx, s.sessionKey(token))
}

// Revoke implements auth.SessionStore. Once the session key is gone the
// token is dead, so a failure to tidy the user's set is only logged.
func (s *ValkeyStore) Revoke(ctx context.Context, token string) error {
	email, ok, err := s.cmds.getDel(ctx, s.sessionKey(token))
	if err != nil {
		return err
	}
	if !ok {
		return auth.ErrInvalidSession
	}
	if err := s.cmds.sRem(ctx, s.userKey(email), token); err != nil {
		s.logger.Warn("failed to drop revoked token from user set", "error", err)
	}
	return nil
}

// RevokeAll implements auth.SessionStore.
func (s *ValkeyStore) RevokeAll(ctx context.Context, email string) (int, error) {
	userKey := s.userKey(email)
	tokens, err := s.cmds.sMembers(ctx, userKey)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(tokens))
	for _, token := range tokens {
		keys = append(keys, s.sessionKey(token))
	}
	deleted, err := s.cmds.del(ctx, keys...)
	if err != nil {
		return 0, err
	}
	// Members left behind point at deleted keys and expire with the set.
	if _, err := s.cmds.del(ctx, userKey); err != nil {
		s.logger.Warn("failed to drop user session set", "error", err)
	}
	return int(deleted), nil
}

// Len walks the session keyspace with SCAN.
func (s *ValkeyStore) Len(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	pattern := s.sessionKey("*")
	for {
		next, keys, err := s.cmds.scan(ctx, cursor, pattern, scanBatch)
		if err != nil {
			return 0, err
		}
		total += len(keys)
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

func (s *ValkeyStore) sessionKey(token string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, token)
}

func (s *ValkeyStore) userKey(email string) string {
	return fmt.Sprintf("%s:user:%s", s.prefix, email)
}

var _ auth.SessionStore = (*ValkeyStore)(nil)
