package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nmapSingleHostXML = `<?xml version="1.0"?>
<nmaprun scanner="nmap" args="nmap -oX -" start="1700000000" version="7.94">
<host>
  <status state="up"/>
  <address addr="192.168.1.1" addrtype="ipv4"/>
  <address addr="AA:BB:CC:DD:EE:FF" addrtype="mac" vendor="TestVendor"/>
  <hostnames><hostname name="router.local" type="PTR"/></hostnames>
  <ports>
    <port protocol="tcp" portid="22">
      <state state="open"/>
      <service name="ssh" product="OpenSSH" version="8.9"/>
    </port>
    <port protocol="tcp" portid="80">
      <state state="open"/>
      <service name="http" product="nginx" version="1.18"/>
    </port>
  </ports>
  <os><osmatch name="Linux 5.x" accuracy="95"/></os>
</host>
<runstats>
  <finished elapsed="1.23" summary="1 host up"/>
  <hosts up="1" down="0" total="1"/>
</runstats>
</nmaprun>`

func TestParseNmapXMLSingleHost(t *testing.T) {
	a := NewNmap()
	result, err := a.ParseOutput([]byte(nmapSingleHostXML), "xml")
	require.NoError(t, err)

	hosts := result["hosts"].([]map[string]interface{})
	require.Len(t, hosts, 1)

	host := hosts[0]
	assert.Equal(t, "up", host["status"])

	addrs := host["addresses"].(map[string]interface{})
	assert.Equal(t, "192.168.1.1", addrs["ipv4"])
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", addrs["mac"])
	assert.Equal(t, "TestVendor", addrs["vendor"])

	hostnames := host["hostnames"].([]map[string]interface{})
	require.Len(t, hostnames, 1)
	assert.Equal(t, "router.local", hostnames[0]["name"])

	ports := host["ports"].([]map[string]interface{})
	require.Len(t, ports, 2)
	assert.Equal(t, 22, ports[0]["port"])
	assert.Equal(t, "ssh", ports[0]["service"])
	assert.Equal(t, "OpenSSH", ports[0]["product"])
	assert.Equal(t, "8.9", ports[0]["version"])
	assert.Equal(t, 80, ports[1]["port"])

	osInfo := host["os"].(map[string]interface{})
	assert.Equal(t, "Linux 5.x", osInfo["name"])
	assert.Equal(t, "95", osInfo["accuracy"])

	stats := result["stats"].(map[string]interface{})
	assert.Equal(t, 1, stats["hosts_up"])
	assert.Equal(t, 0, stats["hosts_down"])
	assert.Equal(t, 1, stats["hosts_total"])
}

func TestParseNmapXMLHostWithNoPorts(t *testing.T) {
	a := NewNmap()
	xmlText := `<?xml version="1.0"?><nmaprun><host><status state="up"/><address addr="10.0.0.1" addrtype="ipv4"/></host></nmaprun>`
	result, err := a.ParseOutput([]byte(xmlText), "xml")
	require.NoError(t, err)

	hosts := result["hosts"].([]map[string]interface{})
	require.Len(t, hosts, 1)
	ports := hosts[0]["ports"].([]map[string]interface{})
	assert.Empty(t, ports)
}

func TestParseNmapXMLMalformed(t *testing.T) {
	a := NewNmap()
	result, err := a.ParseOutput([]byte("<?xml version=\"1.0\"?><nmaprun><host>"), "xml")
	require.NoError(t, err)
	assert.Contains(t, result, "error")
}

func TestNmapBuildArgsQuickScan(t *testing.T) {
	a := NewNmap()
	args := a.buildArgs("quick_scan", "192.168.1.0/24", nil)
	assert.Equal(t, []string{"-oX", "-", "-sn", "192.168.1.0/24"}, args)
}

func TestNmapBuildArgsPortScanDefaultsPorts(t *testing.T) {
	a := NewNmap()
	args := a.buildArgs("port_scan", "10.0.0.1", map[string]interface{}{})
	assert.Equal(t, []string{"-oX", "-", "-sS", "-p", "1-1024", "10.0.0.1"}, args)
}

func TestNmapExecuteWithoutBinaryErrors(t *testing.T) {
	a := NewNmap()
	_, err := a.Execute(nil, "quick_scan", map[string]interface{}{"target": "10.0.0.1"})
	assert.Error(t, err)
}
