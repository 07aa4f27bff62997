package event

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve_analyst/internal/ipclass"
)

func testQualifier(t *testing.T) *Qualifier {
	t.Helper()
	rules, err := ipclass.NewRuleSet(
		[]string{"20.20.20.0/24", "192.168.0.0/16"},
		[]string{"1.1.1.1", "8.8.8.8", "8.8.4.4", "9.9.9.9"},
	)
	require.NoError(t, err)
	return NewQualifier(rules)
}

func mustDecode(t *testing.T, line string) Raw {
	t.Helper()
	raw, err := Decode([]byte(line))
	require.NoError(t, err)
	return raw
}

func TestQualifyResolverAndPrivateDropped(t *testing.T) {
	q := testQualifier(t)

	_, ok := q.Qualify(mustDecode(t, `{"src_ip":"8.8.8.8","dest_ip":"192.168.1.5","event_type":"alert"}`))
	assert.False(t, ok)
}

func TestQualifyPublicSource(t *testing.T) {
	q := testQualifier(t)

	n, ok := q.Qualify(mustDecode(t, `{"src_ip":"203.0.113.9","dest_ip":"10.0.0.5"}`))
	require.True(t, ok)
	assert.Equal(t, "203.0.113.9", n.SrcIP)
	assert.Equal(t, "10.0.0.5", n.DestIP)
	assert.Equal(t, map[string]any{}, n.Alert)
	assert.NotNil(t, n.Alert)
	assert.Equal(t, "", n.Timestamp)
	assert.Equal(t, "", n.EventType)
	assert.Equal(t, "", n.SrcPort)
	assert.Equal(t, "", n.DestPort)
	assert.Equal(t, "", n.Proto)
	assert.Equal(t, "", n.AppProto)
	assert.Empty(t, n.PacketLayers)
}

func TestQualifyPublicDestination(t *testing.T) {
	q := testQualifier(t)

	n, ok := q.Qualify(mustDecode(t, `{
		"timestamp":"2024-07-01T10:00:00.000000+0000",
		"event_type":"alert",
		"src_ip":"192.168.1.20","src_port":50123,
		"dest_ip":"198.51.100.7","dest_port":"443",
		"proto":"TCP","app_proto":"tls",
		"alert":{"signature":"ET POLICY test","severity":2},
		"flow_id":123456
	}`))
	require.True(t, ok)
	assert.Equal(t, "2024-07-01T10:00:00.000000+0000", n.Timestamp)
	assert.Equal(t, "alert", n.EventType)
	assert.Equal(t, json.Number("50123"), n.SrcPort)
	assert.Equal(t, "443", n.DestPort)
	assert.Equal(t, "TCP", n.Proto)
	assert.Equal(t, "tls", n.AppProto)
	assert.Equal(t, "ET POLICY test", n.Alert["signature"])
}

func TestQualifyBothInternalDropped(t *testing.T) {
	q := testQualifier(t)
	gofakeit.Seed(11)

	for i := 0; i < 100; i++ {
		line := fmt.Sprintf(`{"src_ip":"192.168.%d.%d","dest_ip":"172.16.%d.%d","src_port":%d,"event_type":"flow"}`,
			gofakeit.Number(0, 255), gofakeit.Number(1, 254),
			gofakeit.Number(0, 255), gofakeit.Number(1, 254),
			gofakeit.Number(1, 65535))
		_, ok := q.Qualify(mustDecode(t, line))
		assert.False(t, ok, line)
	}
}

func TestQualifyDHCPBroadcastDropped(t *testing.T) {
	q := testQualifier(t)

	_, ok := q.Qualify(mustDecode(t, `{"src_ip":"0.0.0.0","src_port":68,"dest_ip":"255.255.255.255","dest_port":67,"proto":"UDP","event_type":"dhcp"}`))
	assert.False(t, ok)

	_, ok = q.Qualify(mustDecode(t, `{"src_ip":"::","dest_ip":"fe80::1","event_type":"flow"}`))
	assert.False(t, ok)
}

func TestQualifyMissingOrOddFields(t *testing.T) {
	q := testQualifier(t)

	_, ok := q.Qualify(Raw{})
	assert.False(t, ok)

	_, ok = q.Qualify(Raw{"src_ip": 12345, "dest_ip": nil})
	assert.False(t, ok)

	n, ok := q.Qualify(Raw{"src_ip": "203.0.113.1", "alert": "not an object", "proto": 6, "src_port": true})
	require.True(t, ok)
	assert.Equal(t, map[string]any{}, n.Alert)
	assert.Equal(t, "", n.Proto)
	assert.Equal(t, "", n.SrcPort)
}

func TestQualifyPacketLayers(t *testing.T) {
	q := testQualifier(t)

	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true},
		&layers.Ethernet{
			SrcMAC:       net.HardwareAddr{2, 0, 0, 0, 0, 1},
			DstMAC:       net.HardwareAddr{2, 0, 0, 0, 0, 2},
			EthernetType: layers.EthernetTypeIPv4,
		},
		&layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: net.IP{203, 0, 113, 9}, DstIP: net.IP{10, 0, 0, 5}},
		&layers.UDP{SrcPort: 40000, DstPort: 9999},
	))
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	n, ok := q.Qualify(mustDecode(t, fmt.Sprintf(`{"src_ip":"203.0.113.9","dest_ip":"10.0.0.5","packet":%q,"packet_info":{"linktype":1}}`, encoded)))
	require.True(t, ok)
	assert.Equal(t, []string{"Ethernet", "IPv4", "UDP"}, n.PacketLayers)

	n, ok = q.Qualify(mustDecode(t, `{"src_ip":"203.0.113.9","packet":"%%%"}`))
	require.True(t, ok)
	assert.Empty(t, n.PacketLayers)
}
