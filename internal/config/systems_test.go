package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSystemsFile() *SystemsFile {
	return &SystemsFile{
		SchemaVersion: "v1",
		Systems: []SystemConfig{
			{
				Name:            "risk_management",
				Enabled:         true,
				Tables:          []string{"risk_positions", "risk_limits"},
				UpstreamSources: []string{"market_data", "trade_capture"},
			},
			{
				Name:            "pnl_system",
				Enabled:         true,
				Tables:          []string{"pnl_daily"},
				UpstreamSources: []string{"trade_capture"},
			},
		},
	}
}

func TestSystemsFileValidate(t *testing.T) {
	require.NoError(t, validSystemsFile().Validate())

	t.Run("bad schema version", func(t *testing.T) {
		f := validSystemsFile()
		f.SchemaVersion = "v2"
		err := f.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schema_version")
	})

	t.Run("no systems", func(t *testing.T) {
		f := &SystemsFile{SchemaVersion: "v1"}
		require.Error(t, f.Validate())
	})

	t.Run("missing name", func(t *testing.T) {
		f := validSystemsFile()
		f.Systems[0].Name = ""
		err := f.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name is required")
	})

	t.Run("duplicate name", func(t *testing.T) {
		f := validSystemsFile()
		f.Systems[1].Name = "risk_management"
		err := f.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate system name")
	})

	t.Run("duplicate table", func(t *testing.T) {
		f := validSystemsFile()
		f.Systems[0].Tables = []string{"risk_positions", "risk_positions"}
		err := f.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate table")
	})
}

func TestSystemLookup(t *testing.T) {
	f := validSystemsFile()

	sys := f.System("pnl_system")
	require.NotNil(t, sys)
	assert.Equal(t, "pnl_system", sys.Name)

	assert.Nil(t, f.System("unknown_system"))

	assert.True(t, sys.HasTable("pnl_daily"))
	assert.False(t, sys.HasTable("risk_positions"))

	assert.True(t, sys.HasUpstreamSource("trade_capture"))
	assert.False(t, sys.HasUpstreamSource("market_data"))
}

func TestLoadSystemsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "systems.yaml")

	content := `schema_version: v1
systems:
  - name: risk_management
    enabled: true
    log_subdir: risk
    tables:
      - risk_positions
    upstream_sources:
      - market_data
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	f, err := LoadSystemsFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v1", f.SchemaVersion)
	require.Len(t, f.Systems, 1)
	assert.Equal(t, "risk_management", f.Systems[0].Name)
	assert.Equal(t, "risk", f.Systems[0].LogSubdir)
	assert.Equal(t, []string{"risk_positions"}, f.Systems[0].Tables)
}

func TestLoadSystemsFileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSystemsFile("/nonexistent/systems.yaml")
		require.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "systems.yaml")
		require.NoError(t, os.WriteFile(path, []byte("systems: [unclosed"), 0o644))
		_, err := LoadSystemsFile(path)
		require.Error(t, err)
	})

	t.Run("validation failure", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "systems.yaml")
		require.NoError(t, os.WriteFile(path, []byte("schema_version: v9\nsystems:\n  - name: x\n"), 0o644))
		_, err := LoadSystemsFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schema_version")
	})
}
