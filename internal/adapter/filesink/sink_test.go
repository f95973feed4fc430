package filesink

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wildfire-hotspot-etl/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSink_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "regions.json")
	records := []domain.RegionRecord{
		{ObservationTimestamp: "2024-08-20 14:30:00", Municipality: "São Félix do Xingu", Intensity: domain.IntensityHigh, Latitude: -6.64, Longitude: -51.99, Cluster: 0},
		{ObservationTimestamp: "2024-08-20 14:30:00", Municipality: "unknown", Intensity: domain.IntensityLow, Latitude: 10, Longitude: 10, Cluster: -1},
	}

	require.NoError(t, New(path, discardLogger()).Load(context.Background(), records))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := `[
    {
        "observationTimestamp": "2024-08-20 14:30:00",
        "municipality": "São Félix do Xingu",
        "intensity": "high",
        "latitude": -6.64,
        "longitude": -51.99
    },
    {
        "observationTimestamp": "2024-08-20 14:30:00",
        "municipality": "unknown",
        "intensity": "low",
        "latitude": 10,
        "longitude": 10
    }
]
`
	assert.Equal(t, want, string(data))
}

func TestSink_LoadEmptyWritesArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.json")

	require.NoError(t, New(path, discardLogger()).Load(context.Background(), nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestSink_LoadOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.json")
	sink := New(path, discardLogger())

	first := make([]domain.RegionRecord, 3)
	require.NoError(t, sink.Load(context.Background(), first))
	require.NoError(t, sink.Load(context.Background(), first[:1]))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []domain.RegionRecord
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Len(t, got, 1)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestSink_LoadUnwritableDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	err := New(filepath.Join(blocker, "regions.json"), discardLogger()).Load(context.Background(), nil)
	require.Error(t, err)
}

func TestMarshal_NoHTMLEscaping(t *testing.T) {
	data, err := Marshal([]domain.RegionRecord{{Municipality: "Vila <Nova> & Cia"}})
	require.NoError(t, err)
	assert.Contains(t, string(data), "Vila <Nova> & Cia")
}
