package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/efficiencynow/efficiencynow/internal/domain/auth"
)

// LoadUserIndex mirrors every persisted user into a fresh index. Any error is
// fatal: the service must not answer authentication requests from a partial
// index.
func LoadUserIndex(ctx context.Context, repo auth.Repository, logger *slog.Logger) (*auth.UserIndex, error) {
	start := time.Now()
	users, err := repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	index := auth.NewUserIndex()
	overwritten := 0
	for _, user := range users {
		if index.Put(user) {
			overwritten++
		}
	}
	if err := index.Validate(); err != nil {
		return nil, fmt.Errorf("user index: %w", err)
	}
	logger.Info("user index loaded",
		"component", "bootstrap",
		"users", index.Len(),
		"height", index.Height(),
		"overwritten", overwritten,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return index, nil
}
