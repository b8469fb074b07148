package cloud

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePly(t *testing.T) {
	pc := fivePoints(t)
	path := filepath.Join(t.TempDir(), "out.ply")
	require.NoError(t, pc.WritePly(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data[:100]), "element vertex 5")
	// header plus 5 vertices of 15 bytes
	assert.Greater(t, len(data), 5*15)
}
