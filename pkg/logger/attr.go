package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups non-nil errors under the key "errors".
// Returns an empty Attr when every error is nil.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error records err under the key "error". Nil errors produce an empty Attr,
// so it is safe to pass an unchecked error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UID records the owning account id of a membership.
func UID(uid int64) slog.Attr {
	return slog.Int64("uid", uid)
}

// PlanID records a membership plan id.
func PlanID(id string) slog.Attr {
	return slog.String("plan_id", id)
}

// GUID records the family group identifier.
func GUID(guid string) slog.Attr {
	return slog.String("guid", guid)
}

// Status records a membership status.
func Status[S ~string](s S) slog.Attr {
	return slog.String("status", string(s))
}

// Date records a calendar date as YYYY-MM-DD.
func Date(key string, t time.Time) slog.Attr {
	if t.IsZero() {
		return slog.String(key, "")
	}
	return slog.String(key, t.Format(time.DateOnly))
}

// RequestID records the request identifier under the key "request_id".
// If id is nil, it returns an empty Attr.
func RequestID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("request_id", id)
}

// RunID records the id of a sweep or reminder run.
func RunID(id string) slog.Attr {
	return slog.String("run_id", id)
}

// Count records an integer counter under key.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Event(name string) slog.Attr {
	return slog.String("event", name)
}
