// Package http serves the routing and active-case query API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/epi-route-service/internal/domain"
	"github.com/couchcryptid/epi-route-service/internal/routing"
	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// RouteFinder computes both routes between two regions.
type RouteFinder interface {
	Route(ctx context.Context, source, destination string, date time.Time) (routing.Routes, error)
}

// ActiveCaseDeriver derives active-case tables on demand.
type ActiveCaseDeriver interface {
	ActiveCases(ctx context.Context, q domain.ActiveCaseQuery) ([]domain.ActiveCaseRecord, error)
}

// Handler serves the /api/v1 routes.
type Handler struct {
	router    RouteFinder
	deriver   ActiveCaseDeriver
	locations map[string]orb.Point
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewHandler creates the API handler. regions supply the coordinates used
// to draw route geometry and must already carry remapped ids.
func NewHandler(router RouteFinder, deriver ActiveCaseDeriver, regions []domain.Region, logger *slog.Logger) *Handler {
	locations := make(map[string]orb.Point, len(regions))
	for _, r := range regions {
		if r.Lat == 0 && r.Lon == 0 {
			continue
		}
		locations[r.ID] = orb.Point{r.Lon, r.Lat}
	}
	return &Handler{
		router:    router,
		deriver:   deriver,
		locations: locations,
		validate:  validator.New(),
		logger:    logger,
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/route", h.handleRoute)
	mux.HandleFunc("GET /api/v1/active-cases", h.handleActiveCases)
}

func (h *Handler) handleRoute(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	q := routeQuery{From: v.Get("from"), To: v.Get("to"), Date: v.Get("date")}
	if err := h.validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	date := domain.Yesterday()
	if q.Date != "" {
		date, _ = time.Parse(domain.LayoutISO, q.Date)
	}

	routes, err := h.router.Route(r.Context(), q.From, q.To, date)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, routeResponse{
		From:     routes.Safest.Regions[0],
		To:       routes.Safest.Regions[len(routes.Safest.Regions)-1],
		Date:     formatDay(routes.Date),
		Safest:   h.path(routes.Safest),
		Shortest: h.path(routes.Shortest),
	})
}

func (h *Handler) handleActiveCases(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	q := activeCasesQuery{
		Start: v.Get("start"),
		End:   v.Get("end"),
		Type:  v.Get("type"),
		Scale: v.Get("scale"),
	}
	if raw := v.Get("regions"); raw != "" {
		q.Regions = strings.Split(raw, ",")
	}
	if err := h.validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	query := domain.ActiveCaseQuery{CaseType: q.Type, Regions: q.Regions}
	if query.CaseType == "" {
		query.CaseType = string(domain.CaseConfirmed)
	}
	query.Start, _ = time.Parse(domain.LayoutISO, q.Start)
	query.End = query.Start
	if q.End != "" {
		query.End, _ = time.Parse(domain.LayoutISO, q.End)
	}
	if q.Scale != "" {
		query.Scale, _ = strconv.ParseBool(q.Scale)
	}

	records, err := h.deriver.ActiveCases(r.Context(), query)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if records == nil {
		records = []domain.ActiveCaseRecord{}
	}

	writeJSON(w, http.StatusOK, activeCasesResponse{
		Start:    formatDay(query.Start),
		End:      formatDay(query.End),
		CaseType: query.CaseType,
		Scaled:   query.Scale,
		Records:  records,
	})
}

// path attaches the route geometry. Regions without coordinates are left
// out of the line; the geometry is omitted when fewer than two remain.
func (h *Handler) path(p domain.PathResult) pathResponse {
	line := make(orb.LineString, 0, len(p.Regions))
	for _, id := range p.Regions {
		if pt, ok := h.locations[id]; ok {
			line = append(line, pt)
		}
	}
	resp := pathResponse{PathResult: p}
	if len(line) >= 2 {
		resp.Geometry = geojson.NewGeometry(line)
	}
	return resp
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		h.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery), errors.Is(err, domain.ErrUnknownCaseType):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidRegion):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoPath), errors.Is(err, domain.ErrMissingCaseData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSourceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
