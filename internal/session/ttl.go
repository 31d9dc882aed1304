package session

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often the TTL worker looks for idle tabs.
const DefaultSweepInterval = time.Minute

// CleanupCallback is called for each workspace the TTL worker evicts.
type CleanupCallback func(userID, sessionID string)

// StartTTLWorker runs a background goroutine that periodically evicts
// workspaces idle for longer than ttl.
func StartTTLWorker(ctx context.Context, reg *Registry, interval, ttl time.Duration, onCleanup CleanupCallback) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("TTL worker started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				cleanupExpiredWorkspaces(reg, ttl, onCleanup)
			case <-ctx.Done():
				slog.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func cleanupExpiredWorkspaces(reg *Registry, ttl time.Duration, onCleanup CleanupCallback) {
	expired := reg.Sweep(ttl)
	if len(expired) == 0 {
		return
	}

	for _, ws := range expired {
		slog.Info("TTL worker evicted workspace",
			"workspace", ws.Key(),
			"user_id", ws.UserID,
			"session_id", ws.SessionID,
			"last_seen", ws.LastSeen())
		if onCleanup != nil {
			onCleanup(ws.UserID, ws.SessionID)
		}
	}

	slog.Info("TTL worker cleanup completed", "cleaned", len(expired), "remaining", reg.Len())
}
