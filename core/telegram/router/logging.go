package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/keybot/core/logger"
	tghelpers "github.com/m3rciful/keybot/core/telegram/helpers"
)

// Summary is what a handler reports back for the handler.handled line.
type Summary struct {
	// Outcome overrides the derived ok/fail outcome when set.
	Outcome  string
	Messages int
	Keyboard bool
	Attrs    []slog.Attr
}

func handleWithSummary(c tele.Context, handlerName string, fn func() (Summary, error)) error {
	start := time.Now()
	tghelpers.WithHandler(c, handlerName)
	sum, err := fn()
	logHandlerSummary(c, handlerName, start, sum, err)
	return err
}

func logHandlerSummary(c tele.Context, handlerName string, start time.Time, sum Summary, err error) {
	ctx := tghelpers.WithHandler(c, handlerName)

	status := logger.Status(err)
	outcome := sum.Outcome
	if outcome == "" {
		outcome = status
	}

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", handlerName),
		slog.String("outcome", outcome),
		slog.Int("messages", sum.Messages),
		slog.Bool("kb", sum.Keyboard),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	attrs = append(attrs, sum.Attrs...)

	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
	}
	logger.Event(ctx, logger.CompTG, level, "handler.handled", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}

type coder interface{ Code() string }

// deriveErrorCode prefers a Code() anywhere in the chain, then the dynamic type name.
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var c coder
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return strings.ToUpper(t.Name())
	}
	return "UNKNOWN_ERROR"
}
