package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/settlers/internal/config"
	"github.com/wolfeidau/settlers/internal/store"
	memorystore "github.com/wolfeidau/settlers/internal/store/memory"
	postgresstore "github.com/wolfeidau/settlers/internal/store/postgres"
)

const sessionSweepInterval = 10 * time.Minute

type stores struct {
	Sessions store.SessionStore
	Users    store.UserStore
	close    func()
}

func (s *stores) Close() {
	if s.close != nil {
		s.close()
	}
}

func openStores(ctx context.Context, s *config.Settings) (*stores, error) {
	switch s.Store {
	case config.StorePostgres:
		pool, err := postgresstore.NewPool(ctx, &postgresstore.PoolConfig{
			ConnString:      s.Database.URL,
			MinConns:        s.Database.MinConns,
			MaxConns:        s.Database.MaxConns,
			MaxConnLifetime: s.Database.MaxConnLifetime,
			MaxConnIdleTime: s.Database.MaxConnIdleTime,
			ConnectTimeout:  s.Database.ConnectTimeout,
			AutoMigrate:     s.Database.AutoMigrate,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres store: %w", err)
		}

		log.Info().Bool("auto_migrate", s.Database.AutoMigrate).Msg("Using PostgreSQL store")

		return &stores{
			Sessions: postgresstore.NewSessionStore(pool),
			Users:    postgresstore.NewUserStore(pool),
			close:    pool.Close,
		}, nil
	default:
		log.Info().Msg("Using in-memory store")

		return &stores{
			Sessions: memorystore.NewSessionStore(),
			Users:    memorystore.NewUserStore(),
		}, nil
	}
}

// sweepSessions deletes expired sessions every interval until ctx is done.
func sweepSessions(ctx context.Context, sessions store.SessionStore, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := sessions.DeleteExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to delete expired sessions")
				continue
			}
			if removed > 0 {
				log.Debug().Int("removed", removed).Msg("Expired sessions deleted")
			}
		}
	}
}
