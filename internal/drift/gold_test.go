package drift

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGoldFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gold.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- id: invoice-001.png
  fields:
    invoice_number: INV-001
    total_amount: "1499.00"
- id: invoice-002.png
  fields:
    invoice_number: INV-002
`), 0o644))

	samples, err := LoadGoldFile(path)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "invoice-001.png", samples[0].ID)
	assert.Equal(t, "1499.00", samples[0].Fields["total_amount"])
	assert.Equal(t, "INV-002", samples[1].Fields["invoice_number"])
}

func TestLoadGoldFileErrors(t *testing.T) {
	_, err := LoadGoldFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("{{not yaml"), 0o644))
	_, err = LoadGoldFile(bad)
	assert.Error(t, err)
}
