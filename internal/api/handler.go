package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"snowdiff_service/internal/core"
	"snowdiff_service/internal/domain/model"
	"snowdiff_service/internal/domain/repository"
	"snowdiff_service/internal/log"
)

const maxBodyBytes = 1 << 20

// AnalysisService is the part of core.Service the HTTP layer drives.
type AnalysisService interface {
	Analyze(ctx context.Context, req model.AnalysisRequest) (*model.AnalysisResult, error)
	Export(ctx context.Context, plan *core.Plan, layer string, raw bool) (core.ExportResult, error)
}

// RecordStore reads back recorded runs.
type RecordStore interface {
	GetAnalysis(ctx context.Context, id uuid.UUID) (repository.AnalysisRow, error)
}

// PreviewSource serves rendered previews of the in-process evaluator.
type PreviewSource interface {
	Preview(mapID string) ([]byte, bool)
}

// Handler wires the snow-change endpoints. regions, records and previews are optional.
type Handler struct {
	service  AnalysisService
	regions  repository.RegionSource
	records  RecordStore
	previews PreviewSource
}

func NewHandler(
	service AnalysisService,
	regions repository.RegionSource,
	records RecordStore,
	previews PreviewSource,
) *Handler {
	return &Handler{
		service:  service,
		regions:  regions,
		records:  records,
		previews: previews,
	}
}

// Register mounts the endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/analyses", h.Analyze)
		r.Get("/analyses/{id}", h.GetAnalysis)
		r.Post("/exports", h.Export)
		r.Get("/collections", h.Collections)
		r.Get("/collections/suggest", h.SuggestCollection)
		r.Get("/regions/osm/{wayID}", h.RegionFromOSM)
		r.Get("/previews/{mapID}.png", h.Preview)
	})
}

type exportRequest struct {
	model.AnalysisRequest
	Layer string `json:"layer"`
	Raw   bool   `json:"raw"`
}

type suggestResponse struct {
	Collection string              `json:"collection"`
	Profile    model.SensorProfile `json:"profile"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Layer   string `json:"layer,omitempty"`
}

func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req model.AnalysisRequest
	if !decode(w, r, &req) {
		return
	}

	start := time.Now()
	result, err := h.service.Analyze(r.Context(), req)
	if err != nil && (result == nil || len(result.Failed()) == len(result.Layers)) {
		log.Warnw("analysis failed", "error", err)
		writeError(w, err)
		return
	}

	log.Infow("analysis served",
		"id", result.ID,
		"failed_layers", len(result.Failed()),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !decode(w, r, &req) {
		return
	}

	plan, err := core.BuildPlan(req.AnalysisRequest)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.service.Export(r.Context(), plan, req.Layer, req.Raw)
	if err != nil {
		log.Warnw("export failed", "layer", req.Layer, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	if h.records == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: "analysis records are not kept"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "id must be a UUID"})
		return
	}

	row, err := h.records.GetAnalysis(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: "no analysis " + id.String()})
		return
	}
	if err != nil {
		log.Errorw("failed to load analysis", "id", id, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (h *Handler) Collections(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, model.SupportedCollections())
}

func (h *Handler) SuggestCollection(w http.ResponseWriter, r *http.Request) {
	startYear, err1 := strconv.Atoi(r.URL.Query().Get("start"))
	endYear, err2 := strconv.Atoi(r.URL.Query().Get("end"))
	if err := errors.Join(err1, err2); err != nil || startYear > endYear {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "invalid_request",
			Message: "start and end must be years with start <= end",
		})
		return
	}

	id := model.SuggestCollection(startYear, endYear)
	profile, err := model.LookupSensor(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestResponse{Collection: id, Profile: profile})
}

func (h *Handler) RegionFromOSM(w http.ResponseWriter, r *http.Request) {
	if h.regions == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: "OSM lookup is not configured"})
		return
	}
	wayID, err := strconv.ParseInt(chi.URLParam(r, "wayID"), 10, 64)
	if err != nil || wayID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "way id must be a positive integer"})
		return
	}

	region, err := h.regions.RegionFromWay(r.Context(), wayID)
	if err != nil {
		log.Warnw("osm region lookup failed", "way", wayID, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, region)
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h.previews == nil {
		http.NotFound(w, r)
		return
	}
	data, ok := h.previews.Preview(chi.URLParam(r, "mapID"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(data)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			writeError(w, err)
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorw("failed to encode response", "error", err)
	}
}

// writeError translates domain errors into status codes and a JSON envelope.
func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: "internal", Message: err.Error()}
	status := http.StatusInternalServerError

	var (
		ve    *model.ValidationError
		empty *model.EmptyCompositeError
		re    *model.RemoteError
	)
	switch {
	case errors.As(err, &ve):
		status, resp.Error, resp.Field = http.StatusBadRequest, "invalid_request", ve.Field
	case errors.Is(err, model.ErrInvalidRequest), errors.Is(err, model.ErrUnsupportedCollection), errors.Is(err, model.ErrUnknownLayer):
		status, resp.Error = http.StatusBadRequest, "invalid_request"
	case errors.As(err, &empty):
		status, resp.Error, resp.Layer = http.StatusUnprocessableEntity, "no_qualifying_imagery", empty.Layer
	case errors.Is(err, model.ErrExportTooLarge):
		status, resp.Error = http.StatusRequestEntityTooLarge, "export_too_large"
	case errors.Is(err, context.DeadlineExceeded):
		status, resp.Error = http.StatusGatewayTimeout, "backend_timeout"
	case errors.As(err, &re):
		status, resp.Error, resp.Layer = http.StatusBadGateway, "backend_error", re.Layer
	}
	writeJSON(w, status, resp)
}
