package router

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"limitedwatch/internal/metrics"
	logx "limitedwatch/pkg/logx"
	"limitedwatch/pkg/tgui"
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps h so that m[0] runs first.
func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

func MWTimeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			if d <= 0 {
				return next(ctx, req)
			}
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(cctx, req)
		}
	}
}

func MWPanicRecover(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				if r := recover(); r != nil {
					req.logger(log).Error("panic recovered", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}

func MWRequestLog(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)
			d := time.Since(start)

			fields := []logx.Field{
				logx.Int64("chat_id", req.Chat.ChatID),
				logx.Int64("from_id", req.FromID),
				logx.String("cmd", req.Command),
				logx.Duration("dur", d),
			}
			if err != nil {
				metrics.Commands.WithLabelValues(req.Command, "error").Inc()
				req.logger(log).Warn("request failed", append(fields, logx.Err(err))...)
				return err
			}
			metrics.Commands.WithLabelValues(req.Command, "ok").Inc()
			if d >= 750*time.Millisecond {
				req.logger(log).Info("request ok", fields...)
			} else {
				req.logger(log).Debug("request ok", fields...)
			}
			return nil
		}
	}
}

// MWReplyError turns a handler error into a chat reply in the invoking
// chat. Usage errors get the command's usage line appended.
func MWReplyError() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			err := next(ctx, req)
			if err == nil {
				return nil
			}
			text := tgui.JoinH("\n", tgui.Esc("⚠️ "+err.Error()))
			if errors.Is(err, ErrUsage) && req.Usage != "" {
				text = tgui.JoinH("\n", text, tgui.Esc("usage: ")+tgui.Code(req.Usage))
			}
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if _, rerr := req.Reply(rctx, text.String()); rerr != nil {
				req.logger(logx.Nop()).Warn("error reply failed", logx.Err(rerr))
			}
			return err
		}
	}
}
