package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSSECParseOutputJSON(t *testing.T) {
	a := NewOSSEC()
	raw := `{"rule":{"level":7,"description":"SSH brute force"},"srcip":"10.0.0.5"}` + "\n" +
		`{"rule":{"level":3,"description":"Login session opened"},"srcip":"10.0.0.6"}`
	result, err := a.ParseOutput([]byte(raw), "json")
	require.NoError(t, err)

	alerts := result["alerts"].([]map[string]interface{})
	require.Len(t, alerts, 2)
	assert.Equal(t, 2, result["total"])
}

func TestOSSECParseOutputText(t *testing.T) {
	a := NewOSSEC()
	raw := "alert block one\nmore lines\n\nalert block two"
	result, err := a.ParseOutput([]byte(raw), "text")
	require.NoError(t, err)
	assert.Equal(t, 2, result["total"])
}

func TestOSSECExecuteWithoutBinaryErrors(t *testing.T) {
	a := NewOSSEC()
	_, err := a.Execute(nil, "status", nil)
	assert.Error(t, err)
}

func TestOSSECReadAlertsMissingLogReturnsEmpty(t *testing.T) {
	a := NewOSSEC()
	a.binary = "/var/ossec/bin/ossec-control"
	a.ossecDir = "/nonexistent/ossec"
	result, err := a.Execute(t.Context(), "alerts", nil)
	require.NoError(t, err)
	assert.Contains(t, result, "error")
}

func TestOSSECExecuteUnknownTask(t *testing.T) {
	a := NewOSSEC()
	a.binary = "/var/ossec/bin/ossec-control"
	_, err := a.Execute(t.Context(), "bogus", nil)
	assert.Error(t, err)
}
