package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"time"
)

// Raw is one decoded EVE record. Unknown fields are carried but ignored.
type Raw map[string]any

// Normalized is the fixed-shape projection of a qualifying record. Every
// field falls back to an empty value when the record lacks it.
type Normalized struct {
	Timestamp    string         `json:"timestamp"`
	EventType    string         `json:"event_type"`
	SrcIP        string         `json:"src_ip"`
	SrcPort      any            `json:"src_port"`
	DestIP       string         `json:"dest_ip"`
	DestPort     any            `json:"dest_port"`
	Proto        string         `json:"proto"`
	AppProto     string         `json:"app_proto"`
	Alert        map[string]any `json:"alert"`
	PacketLayers []string       `json:"packet_layers,omitempty"`
}

// Result pairs a qualifying event with the analyst text produced for it.
type Result struct {
	ID         string     `json:"id"`
	AnalyzedAt time.Time  `json:"analyzed_at"`
	Event      Normalized `json:"event"`
	Analysis   string     `json:"analysis"`
}

var errNotObject = errors.New("line is not a JSON object")

// Decode parses one log line. Numbers are kept as json.Number so ports and
// counters pass through unchanged.
func Decode(line []byte) (Raw, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var raw Raw
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errNotObject
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON object")
	}
	return raw, nil
}

func (r Raw) str(key string) string {
	if s, ok := r[key].(string); ok {
		return s
	}
	return ""
}

func (r Raw) port(key string) any {
	switch v := r[key].(type) {
	case string, json.Number:
		return v
	case float64:
		return v
	default:
		return ""
	}
}

func (r Raw) object(key string) map[string]any {
	if m, ok := r[key].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
