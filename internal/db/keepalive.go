package db

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// KeepAlive pings the database every interval until ctx is cancelled. It
// touches no tables and shares nothing with request handling.
func KeepAlive(ctx context.Context, p Pinger, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("db keep-alive stopped")
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := p.Ping(pingCtx); err != nil {
				log.Warn().Err(err).Msg("db keep-alive ping failed")
			} else {
				log.Debug().Msg("db keep-alive ping ok")
			}
			cancel()
		}
	}
}
