// Package packet summarizes the raw packet an EVE alert may carry.
package packet

import (
	"encoding/base64"
	"errors"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var errEmpty = errors.New("empty packet")

// Layers decodes a base64 packet captured with the given link type and
// returns the names of the layers gopacket recognized, outermost first.
func Layers(encoded string, linkType int) ([]string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errEmpty
	}
	if linkType <= 0 {
		linkType = int(layers.LinkTypeEthernet)
	}

	pkt := gopacket.NewPacket(raw, layers.LinkType(linkType), gopacket.Default)
	var names []string
	for _, l := range pkt.Layers() {
		if l.LayerType() == gopacket.LayerTypeDecodeFailure {
			continue
		}
		names = append(names, l.LayerType().String())
	}
	if len(names) == 0 {
		if el := pkt.ErrorLayer(); el != nil {
			return nil, el.Error()
		}
		return nil, errEmpty
	}
	return names, nil
}
