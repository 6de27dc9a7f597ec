package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pterodactyl/scribe/config"
)

func TestWriteDiagnostics(t *testing.T) {
	c, err := config.NewAtPath(filepath.Join(t.TempDir(), "config.yml"))
	require.NoError(t, err)
	c.AuthenticationToken = "s3cr3t"
	c.System.RootDirectory = t.TempDir()

	buf := &bytes.Buffer{}
	writeDiagnostics(buf, c)

	out := buf.String()
	assert.Contains(t, out, c.System.RootDirectory)
	assert.Contains(t, out, "{redacted}")
	assert.NotContains(t, out, "s3cr3t")
	assert.Contains(t, out, "Writable: yes")
}

func TestCheckWritable(t *testing.T) {
	assert.Equal(t, "yes", checkWritable(t.TempDir()))
	assert.Contains(t, checkWritable(filepath.Join(t.TempDir(), "missing")), "no (")
}
