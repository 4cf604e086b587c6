package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyPhase      = "phase"
	KeyStep       = "step"
	KeyGroup      = "group"
	KeyDocument   = "document"
	KeyUID        = "uid"
	KeyContainer  = "container"
	KeyPath       = "path"
	KeyKind       = "kind"
	KeyURL        = "url"
	KeyCount      = "count"
	KeyAttempt    = "attempt"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Phase(p string) slog.Attr        { return slog.String(KeyPhase, p) }
func Step(name string) slog.Attr      { return slog.String(KeyStep, name) }
func Group(g string) slog.Attr        { return slog.String(KeyGroup, g) }
func Document(key string) slog.Attr   { return slog.String(KeyDocument, key) }
func UID(uid string) slog.Attr        { return slog.String(KeyUID, uid) }
func Container(name string) slog.Attr { return slog.String(KeyContainer, name) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Kind(k string) slog.Attr         { return slog.String(KeyKind, k) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
