package commands

import (
	"context"
	"strings"
	"time"

	"limitedwatch/internal/storage"
	"limitedwatch/internal/transport/telegram/router"
	logx "limitedwatch/pkg/logx"
)

var audited = map[string]bool{
	"clear":         true,
	"set_robux":     true,
	"set_demand":    true,
	"set_reduction": true,
	"refresh":       true,
}

// Audit records state-changing commands in store. A nil store disables it.
func Audit(store storage.Store, log logx.Logger) router.Middleware {
	return func(next router.HandlerFunc) router.HandlerFunc {
		if store == nil {
			return next
		}
		return func(ctx context.Context, req *router.Request) error {
			if !audited[req.Command] {
				return next(ctx, req)
			}
			start := time.Now()
			err := next(ctx, req)

			e := storage.Entry{
				At:      start,
				ActorID: req.FromID,
				ChatID:  req.Chat.ChatID,
				Command: req.Command,
				Args:    strings.Join(req.RawArgs, " "),
				OK:      err == nil,
				TookMS:  time.Since(start).Milliseconds(),
			}
			if m := req.Update.Message; m != nil {
				e.ActorUsername = m.FromUsername
			}
			if err != nil {
				e.Error = err.Error()
			}

			actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if aerr := store.Append(actx, e); aerr != nil {
				log.Warn("audit append failed", logx.String("cmd", req.Command), logx.Err(aerr))
			}
			return err
		}
	}
}
