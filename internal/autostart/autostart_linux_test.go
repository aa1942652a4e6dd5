//go:build linux

package autostart

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyWritesAndRemovesDesktopEntry(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	m := New("deploybar", "/usr/local/bin/deploybar")

	require.NoError(t, m.Apply(true))

	path, err := m.desktopPath()
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "Exec=/usr/local/bin/deploybar run"))
	assert.Equal(t, "deploybar.desktop", filepath.Base(path))

	require.NoError(t, m.Apply(false))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Disabling twice is fine.
	require.NoError(t, m.Apply(false))
}
