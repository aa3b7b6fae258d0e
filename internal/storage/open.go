package storage

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	logx "limitedwatch/pkg/logx"
)

// Store is the audit log API.
type Store interface {
	// Append assigns ID and At when empty and persists e.
	Append(ctx context.Context, e Entry) error
	// Recent returns up to n entries, newest first.
	Recent(ctx context.Context, n int) ([]Entry, error)
	Close() error
}

// Open initializes the configured store. It returns (nil, nil) when storage
// is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// stamp fills the generated fields of e.
func stamp(e Entry) Entry {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if e.ID == "" {
		entropyMu.Lock()
		e.ID = ulid.MustNew(ulid.Timestamp(e.At), entropy).String()
		entropyMu.Unlock()
	}
	return e
}
