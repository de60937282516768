package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	tpl := Defaults()
	assert.Equal(t, "v1", tpl.Version)
	assert.Contains(t, tpl.Parse, "vendor_name")
	assert.Contains(t, tpl.Classify, "6300-6399")
	assert.Contains(t, tpl.Extract, "invoice image")
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	tpl, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), tpl)
}

func TestLoad_OverlayKeepsUnsetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: v2\nextract: custom extract prompt\n"), 0o644))

	tpl, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", tpl.Version)
	assert.Equal(t, "custom extract prompt", tpl.Extract)
	assert.Equal(t, Defaults().Parse, tpl.Parse)
	assert.Equal(t, Defaults().Classify, tpl.Classify)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
