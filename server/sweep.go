package server

import (
	"context"
	"time"
)

// RunPresenceRefresher extends presence expiry for every occupied room once per interval until
// ctx is cancelled. Rooms that emptied simply stop being refreshed and expire on their own.
func (g *Gateway) RunPresenceRefresher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			sizes := g.deps.Registry.Sizes()
			spaces := make([]string, 0, len(sizes))
			for id := range sizes {
				spaces = append(spaces, id)
			}
			if err := g.deps.Presence.Refresh(ctx, spaces); err != nil {
				Log.Warnw("presence refresh failed", "rooms", len(spaces), "err", err)
				continue
			}
			Log.Debugw("presence refreshed", "rooms", len(spaces), "took", time.Since(start))
		}
	}
}
