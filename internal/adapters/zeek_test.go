package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zeekConnLog = "#separator \\x09\n" +
	"#fields\tts\tuid\tid.orig_h\tid.resp_h\tproto\n" +
	"#types\ttime\tstring\taddr\taddr\tenum\n" +
	"1700000000.123456\tCxWIs54rvjxuo\t192.168.1.10\t192.168.1.1\ttcp\n" +
	"1700000001.654321\tCyAbc123def45\t192.168.1.11\t8.8.8.8\tudp"

func TestParseZeekTSV(t *testing.T) {
	a := NewZeek()
	result, err := a.ParseOutput([]byte(zeekConnLog), "zeek_tsv")
	require.NoError(t, err)

	entries := result["entries"].([]map[string]string)
	require.Len(t, entries, 2)
	assert.Equal(t, "192.168.1.10", entries[0]["id.orig_h"])
	assert.Equal(t, "tcp", entries[0]["proto"])
	assert.Equal(t, 2, result["total"])
}

func TestParseZeekTSVNoFieldsHeaderYieldsNoEntries(t *testing.T) {
	a := NewZeek()
	result, err := a.ParseOutput([]byte("#separator \\x09\nsome garbage line"), "zeek_tsv")
	require.NoError(t, err)
	assert.Empty(t, result["entries"])
}

func TestZeekExecuteWithoutBinaryErrors(t *testing.T) {
	a := NewZeek()
	_, err := a.Execute(nil, "connections", nil)
	assert.Error(t, err)
}

func TestZeekReadLogMissingFile(t *testing.T) {
	a := NewZeek()
	a.binary = "/usr/local/bin/zeek"
	a.logDir = "/nonexistent/zeek/logs"
	result, err := a.Execute(t.Context(), "dns", nil)
	require.NoError(t, err)
	assert.Contains(t, result, "error")
}

func TestZeekExecuteUnknownTask(t *testing.T) {
	a := NewZeek()
	a.binary = "/usr/local/bin/zeek"
	_, err := a.Execute(t.Context(), "bogus", nil)
	assert.Error(t, err)
}
