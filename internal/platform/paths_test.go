package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindToolBinaryKnownPath(t *testing.T) {
	original := statFile
	defer func() { statFile = original }()
	statFile = func(path string) bool { return path == "/usr/bin/nmap" }

	assert.Equal(t, "/usr/bin/nmap", FindToolBinary(OSLinux, "nmap"))
}

func TestFindToolBinaryEmptyWhenNotFound(t *testing.T) {
	original := statFile
	defer func() { statFile = original }()
	statFile = func(string) bool { return false }

	assert.Equal(t, "", FindToolBinary(OSLinux, "definitely-not-a-real-tool"))
}
