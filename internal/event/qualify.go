package event

import (
	"encoding/json"

	"eve_analyst/internal/ipclass"
	"eve_analyst/internal/packet"
)

// Qualifier keeps only events with at least one public endpoint.
type Qualifier struct {
	rules *ipclass.RuleSet
}

func NewQualifier(rules *ipclass.RuleSet) *Qualifier {
	return &Qualifier{rules: rules}
}

// Qualify projects r into a Normalized event when src_ip or dest_ip is
// public. Internal-to-internal traffic returns false.
func (q *Qualifier) Qualify(r Raw) (Normalized, bool) {
	src := r.str("src_ip")
	dst := r.str("dest_ip")
	if !q.rules.IsPublic(src) && !q.rules.IsPublic(dst) {
		return Normalized{}, false
	}

	n := Normalized{
		Timestamp: r.str("timestamp"),
		EventType: r.str("event_type"),
		SrcIP:     src,
		SrcPort:   r.port("src_port"),
		DestIP:    dst,
		DestPort:  r.port("dest_port"),
		Proto:     r.str("proto"),
		AppProto:  r.str("app_proto"),
		Alert:     r.object("alert"),
	}
	if encoded := r.str("packet"); encoded != "" {
		if names, err := packet.Layers(encoded, linkType(r.object("packet_info"))); err == nil {
			n.PacketLayers = names
		}
	}
	return n, true
}

func linkType(info map[string]any) int {
	switch v := info["linktype"].(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
	case float64:
		return int(v)
	}
	return 0
}
