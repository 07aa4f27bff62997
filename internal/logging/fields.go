package logging

import "log/slog"

const (
	FieldPath      = "path"
	FieldOffset    = "offset"
	FieldLines     = "lines"
	FieldEventType = "event_type"
	FieldSrcIP     = "src_ip"
	FieldDestIP    = "dest_ip"
	FieldResultID  = "result_id"
	FieldError     = "error"
)

func Path(p string) slog.Attr { return slog.String(FieldPath, p) }

func Offset(o int64) slog.Attr { return slog.Int64(FieldOffset, o) }

func Lines(n int) slog.Attr { return slog.Int(FieldLines, n) }

func EventType(t string) slog.Attr { return slog.String(FieldEventType, t) }

func SrcIP(ip string) slog.Attr { return slog.String(FieldSrcIP, ip) }

func DestIP(ip string) slog.Attr { return slog.String(FieldDestIP, ip) }

func ResultID(id string) slog.Attr { return slog.String(FieldResultID, id) }

// Error returns an attribute for err. A nil error logs as an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}
