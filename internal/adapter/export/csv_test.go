package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/couchcryptid/epi-route-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []domain.ActiveCaseRow{
		{Region: "01001", Name: "Autauga, Alabama", Population: 55869, Lat: 32.5, Lon: -86.6, Start: start, Values: []float64{120, 118.5, 117}},
		{Region: "46113", Start: start.AddDate(0, 0, 1), Values: []float64{4}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows, start, start.AddDate(0, 0, 2)))

	assert.Equal(t,
		"fips,name,population,lat,long,d01012021,d01022021,d01032021\n"+
			"01001,\"Autauga, Alabama\",55869,32.5,-86.6,120,118.5,117\n"+
			"46113,,,,,,4,\n",
		buf.String())
}

func TestWriteCSV_EmptyTable(t *testing.T) {
	start := time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil, start, start))
	assert.Equal(t, "fips,name,population,lat,long,d12312021\n", buf.String())
}

func TestWriteCSV_InvalidRange(t *testing.T) {
	start := time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	err := WriteCSV(&buf, nil, start, start.AddDate(0, 0, -1))
	require.ErrorIs(t, err, domain.ErrInvalidQuery)
}
