package evidence

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsight/opsight/internal/config"
)

func TestUpstreamDataUnknownSource(t *testing.T) {
	dl := testDataLayer(t, t.TempDir())

	_, err := dl.UpstreamData(context.Background(), "unconfigured_feed", "2024-03-15")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestUpstreamDataServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	dl := NewDataLayer(DataLayerOptions{
		Systems:      testSystems(),
		UpstreamURLs: map[string]string{"market_data": server.URL},
	})

	_, err := dl.UpstreamData(context.Background(), "market_data", "2024-03-15")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestUpstreamDataBadDate(t *testing.T) {
	dl := testDataLayer(t, t.TempDir())

	_, err := dl.UpstreamData(context.Background(), "market_data", "tomorrow")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestUpdateSystemsSwapsRegistry(t *testing.T) {
	dl := testDataLayer(t, t.TempDir())

	_, err := dl.LogSummary(context.Background(), "settlement", "2024-03-15")
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	require.NoError(t, dl.UpdateSystems(&config.SystemsFile{
		SchemaVersion: "v1",
		Systems: []config.SystemConfig{
			{Name: "settlement", Enabled: true},
		},
	}))

	// Known now; fails later on the missing log file instead.
	_, err = dl.LogSummary(context.Background(), "settlement", "2024-03-15")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}
