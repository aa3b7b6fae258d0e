package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	logx "limitedwatch/pkg/logx"
)

func TestOpenDisabledAndUnknown(t *testing.T) {
	st, err := Open(Config{}, logx.Nop())
	if st != nil || err != nil {
		t.Fatalf("disabled storage = (%v, %v)", st, err)
	}
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatalf("expected missing path error")
	}
}

func TestDrivers(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "state", "limitedwatch.db")
			st, err := Open(Config{Driver: driver, Path: path}, logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}

			base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			cmds := []string{"set_robux", "set_demand", "clear"}
			for i, c := range cmds {
				e := Entry{At: base.Add(time.Duration(i) * time.Second), ActorID: 7, ChatID: -100, Command: c, OK: i != 1}
				if i == 1 {
					e.Error = "bad usage"
				}
				if err := st.Append(ctx, e); err != nil {
					t.Fatalf("Append: %v", err)
				}
			}

			got, err := st.Recent(ctx, 2)
			if err != nil {
				t.Fatalf("Recent: %v", err)
			}
			if len(got) != 2 || got[0].Command != "clear" || got[1].Command != "set_demand" {
				t.Fatalf("unexpected recent %+v", got)
			}
			if got[0].ID == "" || !got[0].At.Equal(base.Add(2*time.Second)) {
				t.Fatalf("entry not stamped: %+v", got[0])
			}
			if got[1].OK || got[1].Error != "bad usage" {
				t.Fatalf("failure not kept: %+v", got[1])
			}

			if err := st.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
		})
	}
}

func TestFileStoreClosed(t *testing.T) {
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "a.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = st.Close()
	if err := st.Append(context.Background(), Entry{Command: "clear"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
