package sl

import (
	"log/slog"

	"github.com/cockroachdb/errors"
)

func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{Key: "error", Value: slog.StringValue("")}
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// ErrWithHints also attaches the user facing hints carried by err.
func ErrWithHints(err error) slog.Attr {
	hints := errors.GetAllHints(err)
	if len(hints) == 0 {
		return Err(err)
	}
	return slog.Group("error",
		slog.String("message", err.Error()),
		slog.Any("hints", hints),
	)
}
