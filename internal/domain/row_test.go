package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildRows(t *testing.T) {
	recs := []ActiveCaseRecord{
		{Region: "01001", Start: day0, Values: []float64{1}},
		{Region: "46113", Start: day0, Values: []float64{2}},
	}
	regions := []Region{{ID: "01001", Name: "Autauga, Alabama", Population: 55869, Lat: 32.5, Lon: -86.6}}

	rows := BuildRows(recs, regions)

	assert.Len(t, rows, 2)
	assert.Equal(t, "Autauga, Alabama", rows[0].Name)
	assert.Equal(t, int64(55869), rows[0].Population)
	assert.Empty(t, rows[1].Name)
	assert.Equal(t, []float64{2}, rows[1].Values)
}

func TestRemapEdges(t *testing.T) {
	edges := []AdjacencyEdge{{A: "46102", B: "46007", DistanceKM: 60}, {A: "bad", B: "1", DistanceKM: 1}}

	out := RemapEdges(edges, DefaultRemap)

	assert.Equal(t, AdjacencyEdge{A: "46113", B: "46007", DistanceKM: 60}, out[0])
	assert.Equal(t, AdjacencyEdge{A: "bad", B: "00001", DistanceKM: 1}, out[1])
}

func TestRemapRegions(t *testing.T) {
	regions := []Region{{ID: "46102", Name: "Oglala Lakota, South Dakota"}, {ID: "01001"}}

	out := RemapRegions(regions, DefaultRemap)

	assert.Equal(t, "46113", out[0].ID)
	assert.Equal(t, "Oglala Lakota, South Dakota", out[0].Name)
	assert.Equal(t, "01001", out[1].ID)
	assert.Equal(t, "46102", regions[0].ID, "input untouched")
}
