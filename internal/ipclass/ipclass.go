// Package ipclass decides whether an address seen by the sensor is public.
//
// Rule layers are checked in a fixed order and the first match wins:
// custom private networks, known resolvers, reserved ranges, then public.
package ipclass

import (
	"fmt"
	"net/netip"
	"strings"
)

// Verdict names the rule layer that decided an address.
type Verdict int

const (
	Invalid Verdict = iota
	CustomPrivate
	KnownResolver
	Reserved
	Public
)

func (v Verdict) String() string {
	switch v {
	case CustomPrivate:
		return "custom_private"
	case KnownResolver:
		return "known_resolver"
	case Reserved:
		return "reserved"
	case Public:
		return "public"
	default:
		return "invalid"
	}
}

// RuleSet holds the administrator supplied layers. The zero value only
// applies the reserved range check. A RuleSet is immutable once built.
type RuleSet struct {
	networks  []netip.Prefix
	resolvers map[netip.Addr]struct{}
}

// NewRuleSet parses CIDR blocks and literal resolver addresses.
func NewRuleSet(networks, resolvers []string) (*RuleSet, error) {
	rs := &RuleSet{resolvers: make(map[netip.Addr]struct{}, len(resolvers))}
	for _, n := range networks {
		p, err := netip.ParsePrefix(strings.TrimSpace(n))
		if err != nil {
			return nil, fmt.Errorf("custom private network %q: %w", n, err)
		}
		rs.networks = append(rs.networks, p.Masked())
	}
	for _, r := range resolvers {
		a, err := netip.ParseAddr(strings.TrimSpace(r))
		if err != nil {
			return nil, fmt.Errorf("known resolver %q: %w", r, err)
		}
		rs.resolvers[normalize(a)] = struct{}{}
	}
	return rs, nil
}

// Classify reports which layer decides s. Unparseable input is Invalid.
func (rs *RuleSet) Classify(s string) Verdict {
	a, err := netip.ParseAddr(s)
	if err != nil {
		return Invalid
	}
	a = normalize(a)

	if rs != nil {
		for _, p := range rs.networks {
			if p.Contains(a) {
				return CustomPrivate
			}
		}
		if _, ok := rs.resolvers[a]; ok {
			return KnownResolver
		}
	}
	if a.IsPrivate() || a.IsLoopback() || a.IsLinkLocalUnicast() || a.IsUnspecified() || a == limitedBroadcast {
		return Reserved
	}
	return Public
}

var limitedBroadcast = netip.AddrFrom4([4]byte{255, 255, 255, 255})

// IsPublic reports whether s is a globally routable address not excluded
// by any layer. It never fails: malformed input is not public.
func (rs *RuleSet) IsPublic(s string) bool {
	return rs.Classify(s) == Public
}

// normalize drops the IPv6 zone and unmaps IPv4-mapped addresses so that
// prefix and set lookups compare like with like.
func normalize(a netip.Addr) netip.Addr {
	return a.WithZone("").Unmap()
}
