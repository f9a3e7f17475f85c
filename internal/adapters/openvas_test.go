package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenVASParseOutputXML(t *testing.T) {
	a := NewOpenVAS()
	raw := `<get_tasks_response status="200" status_text="OK"><task id="abc"/></get_tasks_response>`
	result, err := a.ParseOutput([]byte(raw), "xml")
	require.NoError(t, err)
	assert.Equal(t, "200", result["status"])
	assert.Equal(t, "OK", result["status_text"])
}

func TestOpenVASParseOutputMalformedXML(t *testing.T) {
	a := NewOpenVAS()
	result, err := a.ParseOutput([]byte("<get_tasks_response"), "xml")
	require.NoError(t, err)
	assert.Contains(t, result, "raw")
}

func TestOpenVASExecuteFullScanRequiresTarget(t *testing.T) {
	a := NewOpenVAS()
	a.binary = "/usr/bin/gvm-cli"
	_, err := a.Execute(t.Context(), "full_scan", nil)
	assert.Error(t, err)
}

func TestOpenVASExecuteWithoutBinaryErrors(t *testing.T) {
	a := NewOpenVAS()
	_, err := a.Execute(t.Context(), "list_tasks", nil)
	assert.Error(t, err)
}

func TestOpenVASExecuteUnknownTask(t *testing.T) {
	a := NewOpenVAS()
	a.binary = "/usr/bin/gvm-cli"
	_, err := a.Execute(t.Context(), "bogus", nil)
	assert.Error(t, err)
}
