package csvbatch

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wildfire-hotspot-etl/internal/domain"
)

func TestDecode_INPEFile(t *testing.T) {
	f, err := os.Open("testdata/focos_10min_20240820_1430.csv")
	require.NoError(t, err)
	defer f.Close()

	batch, err := Decode(f, "focos_10min_20240820_1430.csv")
	require.NoError(t, err)

	assert.Equal(t, "focos_10min_20240820_1430.csv", batch.Source)
	assert.Equal(t, []string{domain.ColumnLat, domain.ColumnLon, domain.ColumnSatellite, domain.ColumnObservedAt}, batch.Columns)
	require.Len(t, batch.Rows, 3)

	first := batch.Rows[0]
	assert.Equal(t, 2, first.Line)
	require.NoError(t, first.Err)
	assert.Equal(t, "-3.0", first.Fields[domain.ColumnLat])
	assert.Equal(t, "-60.0", first.Fields[domain.ColumnLon])
	assert.Equal(t, "AQUA_M-T", first.Fields[domain.ColumnSatellite])
	assert.Equal(t, "2024-08-20 14:30:00", first.Fields[domain.ColumnObservedAt])
	assert.Equal(t, 4, batch.Rows[2].Line)
}

func TestDecode_SemicolonWithBOM(t *testing.T) {
	f, err := os.Open("testdata/semicolon_bom.csv")
	require.NoError(t, err)
	defer f.Close()

	batch, err := Decode(f, "semicolon_bom.csv")
	require.NoError(t, err)

	assert.Equal(t, []string{domain.ColumnLat, domain.ColumnLon, domain.ColumnObservedAt}, batch.Columns)
	require.Len(t, batch.Rows, 2)
	assert.Equal(t, "-8,7612", batch.Rows[0].Fields[domain.ColumnLat])

	records, malformed := domain.BuildRecords(batch.Rows)
	assert.Empty(t, malformed)
	require.Len(t, records, 2)
	assert.InDelta(t, -8.7612, records[0].Point.Lat, 1e-9)
	assert.InDelta(t, -63.9004, records[0].Point.Lon, 1e-9)
}

func TestDecode_WrongFieldCountIsRowError(t *testing.T) {
	input := "lat,lon\n-3.0,-60.0\n-3.1\n-3.2,-60.2,extra\n-3.3,-60.3\n"

	batch, err := Decode(strings.NewReader(input), "inline")
	require.NoError(t, err)
	require.Len(t, batch.Rows, 4)

	assert.NoError(t, batch.Rows[0].Err)
	assert.Equal(t, 3, batch.Rows[1].Line)
	assert.ErrorContains(t, batch.Rows[1].Err, "expected 2 fields, got 1")
	assert.Equal(t, 4, batch.Rows[2].Line)
	assert.Error(t, batch.Rows[2].Err)
	assert.NoError(t, batch.Rows[3].Err)
	assert.Equal(t, 5, batch.Rows[3].Line)
}

func TestDecode_QuoteErrorIsRowError(t *testing.T) {
	input := "lat,lon\n-3.0,-60.0\n-3.1,-60\"1\n-3.3,-60.3\n"

	batch, err := Decode(strings.NewReader(input), "inline")
	require.NoError(t, err)
	require.Len(t, batch.Rows, 3)
	assert.Equal(t, 3, batch.Rows[1].Line)
	assert.Error(t, batch.Rows[1].Err)
	assert.NoError(t, batch.Rows[2].Err)
}

func TestDecode_BlankRowsSkipped(t *testing.T) {
	input := "lat,lon\n\n-3.0,-60.0\n,\n"

	batch, err := Decode(strings.NewReader(input), "inline")
	require.NoError(t, err)
	require.Len(t, batch.Rows, 1)
	assert.Equal(t, 3, batch.Rows[0].Line)
}

func TestDecode_HeaderOnly(t *testing.T) {
	batch, err := Decode(strings.NewReader("lat,lon,satelite\n"), "inline")
	require.NoError(t, err)
	assert.Empty(t, batch.Rows)
	assert.True(t, batch.HasColumn(domain.ColumnSatellite))
	assert.False(t, batch.HasColumn(domain.ColumnObservedAt))
}

func TestDecode_EmptyDocument(t *testing.T) {
	batch, err := Decode(strings.NewReader(""), "inline")
	require.NoError(t, err)
	assert.Empty(t, batch.Rows)
	assert.Empty(t, batch.Columns)
}

func TestDecode_MissingCoordinateColumns(t *testing.T) {
	_, err := Decode(strings.NewReader("municipio,estado\nManaus,AM\n"), "inline")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInputUnavailable))
}

func TestDecode_HeaderAliases(t *testing.T) {
	input := "LATITUDE, Longitude ,data_hora_gmt,Satellite\n1,2,2024-08-20 14:30:00,GOES-16\n"

	batch, err := Decode(strings.NewReader(input), "inline")
	require.NoError(t, err)
	require.Len(t, batch.Rows, 1)

	fields := batch.Rows[0].Fields
	assert.Equal(t, "1", fields[domain.ColumnLat])
	assert.Equal(t, "2", fields[domain.ColumnLon])
	assert.Equal(t, "2024-08-20 14:30:00", fields[domain.ColumnObservedAt])
	assert.Equal(t, "GOES-16", fields[domain.ColumnSatellite])
}
