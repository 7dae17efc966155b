package client

import (
	"context"
	"time"

	"github.com/matheus3301/wachat/internal/lock"
	"github.com/matheus3301/wachat/internal/session"
)

// ServerURL returns the base URL of the daemon serving sessionName, read
// from the session lock file. fallback is returned when no daemon has
// recorded an address.
func ServerURL(sessionName, fallback string) string {
	info, err := lock.Read(session.Dir(sessionName))
	if err != nil || info.Addr == "" {
		return fallback
	}
	return "http://" + info.Addr
}

// Alive reports whether a daemon answers health checks at baseURL.
func Alive(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := New(baseURL).Health(ctx)
	return err == nil
}
