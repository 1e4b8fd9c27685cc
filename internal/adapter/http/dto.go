package http

import (
	"time"

	"github.com/couchcryptid/epi-route-service/internal/domain"
	"github.com/paulmach/orb/geojson"
)

// routeQuery is the query string of GET /api/v1/route.
type routeQuery struct {
	From string `validate:"required,numeric,max=7"`
	To   string `validate:"required,numeric,max=7"`
	Date string `validate:"omitempty,datetime=2006-01-02"`
}

// activeCasesQuery is the query string of GET /api/v1/active-cases.
type activeCasesQuery struct {
	Start   string   `validate:"required,datetime=2006-01-02"`
	End     string   `validate:"omitempty,datetime=2006-01-02"`
	Type    string   `validate:"omitempty,alpha"`
	Regions []string `validate:"omitempty,max=5000,dive,numeric,max=7"`
	Scale   string   `validate:"omitempty,boolean"`
}

type pathResponse struct {
	domain.PathResult
	Geometry *geojson.Geometry `json:"geometry,omitempty"`
}

type routeResponse struct {
	From     string       `json:"from"`
	To       string       `json:"to"`
	Date     string       `json:"date"`
	Safest   pathResponse `json:"safest"`
	Shortest pathResponse `json:"shortest"`
}

type activeCasesResponse struct {
	Start    string                    `json:"start"`
	End      string                    `json:"end"`
	CaseType string                    `json:"case_type"`
	Scaled   bool                      `json:"scaled"`
	Records  []domain.ActiveCaseRecord `json:"records"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func formatDay(t time.Time) string {
	return t.Format(domain.LayoutISO)
}
