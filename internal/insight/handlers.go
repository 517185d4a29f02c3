package insight

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/HerbHall/hydrosim/internal/insight/analytics"
	"github.com/HerbHall/hydrosim/internal/insight/forecast"
	"github.com/HerbHall/hydrosim/internal/insight/horizon"
	"github.com/HerbHall/hydrosim/internal/insight/ingest"
	"github.com/HerbHall/hydrosim/pkg/growth"
	"github.com/HerbHall/hydrosim/pkg/plugin"
	"go.uber.org/zap"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "POST", Path: "/sessions", Handler: m.handleCreateSession},
		{Method: "GET", Path: "/sessions/{id}", Handler: m.handleGetSession},
		{Method: "DELETE", Path: "/sessions/{id}", Handler: m.handleDeleteSession},
		{Method: "GET", Path: "/sessions/{id}/data", Handler: m.handleExportSession},
		{Method: "POST", Path: "/sessions/{id}/forecast", Handler: m.handleForecast},
		{Method: "POST", Path: "/sample/forecast", Handler: m.handleSampleForecast},
		{Method: "GET", Path: "/ranges", Handler: m.handleRanges},
		{Method: "GET", Path: "/policy", Handler: m.handlePolicy},
	}
}

// SessionResponse describes a normalized upload.
type SessionResponse struct {
	ID             string                `json:"id"`
	Source         string                `json:"source"`
	Rows           int                   `json:"rows"`
	UniqueDays     int                   `json:"unique_days"`
	DefaultHorizon int                   `json:"default_horizon"`
	Start          time.Time             `json:"start"`
	End            time.Time             `json:"end"`
	CreatedAt      time.Time             `json:"created_at"`
	Stats          []growth.Stats        `json:"stats"`
	DailyAverages  []growth.DailyAverage `json:"daily_averages"`
	Outliers       []growth.Outlier      `json:"outliers"`
}

func (m *Module) sessionResponse(sess *Session) SessionResponse {
	outliers := analytics.Outliers(sess.Series, m.cfg.OutlierZScore)
	if outliers == nil {
		outliers = []growth.Outlier{}
	}
	return SessionResponse{
		ID:             sess.ID,
		Source:         sess.Source,
		Rows:           len(sess.Series),
		UniqueDays:     sess.UniqueDays,
		DefaultHorizon: m.cfg.Horizon.RemainingDays(m.cfg.MaxDay, sess.UniqueDays),
		Start:          sess.Series[0].Timestamp,
		End:            sess.Series.Last().Timestamp,
		CreatedAt:      sess.CreatedAt,
		Stats:          analytics.Describe(sess.Series),
		DailyAverages:  analytics.DailyAverages(sess.Series),
		Outliers:       outliers,
	}
}

// handleCreateSession uploads and normalizes a sensor log.
//
//	@Summary		Upload sensor log
//	@Description	Normalizes a CSV upload (multipart field "file" or a text/csv body) into a new session.
//	@Tags			insight
//	@Accept			multipart/form-data
//	@Accept			text/csv
//	@Produce		json
//	@Param			file formData file false "CSV file"
//	@Success		201 {object} SessionResponse
//	@Failure		400 {object} map[string]any
//	@Failure		413 {object} map[string]any
//	@Failure		415 {object} map[string]any
//	@Router			/insight/sessions [post]
func (m *Module) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, m.cfg.MaxUploadBytes)

	source, table, err := readUpload(r)
	if err != nil {
		m.writeFailure(w, r, err)
		return
	}
	sess, err := m.Ingest(source, table)
	if err != nil {
		m.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m.sessionResponse(sess))
}

// readUpload extracts the CSV table from a multipart or raw body.
func readUpload(r *http.Request) (string, *ingest.Table, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil && r.Header.Get("Content-Type") != "" {
		return "", nil, &RequestError{Field: "Content-Type", Reason: err.Error()}
	}
	switch mediaType {
	case "multipart/form-data":
		file, header, err := r.FormFile("file")
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				return "", nil, err
			}
			return "", nil, &RequestError{Field: "file", Reason: err.Error()}
		}
		defer file.Close()
		t, err := ingest.ReadCSV(file)
		return header.Filename, t, err
	case "", "text/csv", "application/csv", "text/plain":
		t, err := ingest.ReadCSV(r.Body)
		return "upload.csv", t, err
	default:
		return "", nil, errUnsupportedMedia
	}
}

var errUnsupportedMedia = errors.New("upload must be multipart/form-data or text/csv")

// handleGetSession returns session metadata and daily averages.
//
//	@Summary		Get session
//	@Description	Returns metadata, descriptive statistics and daily averages of an upload session.
//	@Tags			insight
//	@Produce		json
//	@Param			id path string true "Session ID"
//	@Success		200 {object} SessionResponse
//	@Failure		404 {object} map[string]any
//	@Router			/insight/sessions/{id} [get]
func (m *Module) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := m.sessions.Get(r.PathValue("id"))
	if !ok {
		m.writeFailure(w, r, ErrSessionNotFound)
		return
	}
	writeJSON(w, http.StatusOK, m.sessionResponse(sess))
}

// handleDeleteSession discards a session.
//
//	@Summary		Delete session
//	@Tags			insight
//	@Param			id path string true "Session ID"
//	@Success		204
//	@Failure		404 {object} map[string]any
//	@Router			/insight/sessions/{id} [delete]
func (m *Module) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !m.sessions.Delete(r.PathValue("id")) {
		m.writeFailure(w, r, ErrSessionNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExportSession downloads the normalized series as CSV.
//
//	@Summary		Export normalized data
//	@Description	Returns the normalized series as CSV with a datetime column.
//	@Tags			insight
//	@Produce		text/csv
//	@Param			id path string true "Session ID"
//	@Success		200 {string} string
//	@Failure		404 {object} map[string]any
//	@Router			/insight/sessions/{id}/data [get]
func (m *Module) handleExportSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := m.sessions.Get(r.PathValue("id"))
	if !ok {
		m.writeFailure(w, r, ErrSessionNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+sess.ID+`.csv"`)
	if err := ingest.WriteCSV(w, sess.Series); err != nil {
		m.logger.Warn("csv export failed", zap.String("session_id", sess.ID), zap.Error(err))
	}
}

// handleForecast runs the forecast pipeline on a session.
//
//	@Summary		Forecast session
//	@Description	Fits (or loads) the forecaster, predicts the horizon and returns chart series, summary and advisories.
//	@Tags			insight
//	@Accept			json
//	@Produce		json
//	@Param			id path string true "Session ID"
//	@Param			request body ForecastRequest false "Forecast options"
//	@Success		200 {object} ForecastResult
//	@Failure		400 {object} map[string]any
//	@Failure		404 {object} map[string]any
//	@Failure		422 {object} map[string]any
//	@Failure		503 {object} map[string]any
//	@Router			/insight/sessions/{id}/forecast [post]
func (m *Module) handleForecast(w http.ResponseWriter, r *http.Request) {
	req, err := decodeForecastRequest(r)
	if err != nil {
		m.writeFailure(w, r, err)
		return
	}
	res, err := m.Forecast(r.Context(), r.PathValue("id"), req)
	if err != nil {
		m.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleSampleForecast runs the pipeline on the sample dataset.
//
//	@Summary		Forecast sample data
//	@Description	Runs the forecast pipeline on the bundled example dataset in the shared "sample" session.
//	@Tags			insight
//	@Accept			json
//	@Produce		json
//	@Param			request body ForecastRequest false "Forecast options"
//	@Success		200 {object} ForecastResult
//	@Failure		400 {object} map[string]any
//	@Failure		503 {object} map[string]any
//	@Router			/insight/sample/forecast [post]
func (m *Module) handleSampleForecast(w http.ResponseWriter, r *http.Request) {
	req, err := decodeForecastRequest(r)
	if err != nil {
		m.writeFailure(w, r, err)
		return
	}
	res, err := m.ForecastSample(r.Context(), req)
	if err != nil {
		m.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func decodeForecastRequest(r *http.Request) (ForecastRequest, error) {
	var req ForecastRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, &RequestError{Field: "body", Reason: err.Error()}
	}
	return req, nil
}

// RangeResponse is the optimal band of one regressor.
type RangeResponse struct {
	Regressor string  `json:"regressor" example:"temperature"`
	Lower     float64 `json:"lower" example:"25"`
	Upper     float64 `json:"upper" example:"28"`
}

// handleRanges lists the optimal ranges in column order.
//
//	@Summary		Optimal ranges
//	@Tags			insight
//	@Produce		json
//	@Success		200 {array} RangeResponse
//	@Router			/insight/ranges [get]
func (m *Module) handleRanges(w http.ResponseWriter, _ *http.Request) {
	ranges := analytics.OptimalRanges()
	out := make([]RangeResponse, 0, len(ranges))
	for _, name := range growth.Regressors {
		if band, ok := ranges[name]; ok {
			out = append(out, RangeResponse{Regressor: name, Lower: band.Lower, Upper: band.Upper})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// WeightCap is one entry of the weight selector.
type WeightCap struct {
	Grams int     `json:"grams" example:"100"`
	Cap   float64 `json:"cap" example:"18"`
}

// PolicyResponse describes the forecast options a client may pick from.
type PolicyResponse struct {
	HorizonMin    int         `json:"horizon_min"`
	HorizonMax    int         `json:"horizon_max"`
	MaxDay        int         `json:"max_day"`
	Anchor        string      `json:"anchor"`
	Growth        string      `json:"growth"`
	IntervalWidth float64     `json:"interval_width"`
	Weights       []WeightCap `json:"weights"`
	Modes         []string    `json:"modes"`
}

// handlePolicy returns the horizon policy and weight selector.
//
//	@Summary		Forecast policy
//	@Tags			insight
//	@Produce		json
//	@Success		200 {object} PolicyResponse
//	@Router			/insight/policy [get]
func (m *Module) handlePolicy(w http.ResponseWriter, _ *http.Request) {
	weights := make([]WeightCap, 0, len(m.cfg.CapTable))
	for _, g := range m.cfg.CapTable.Weights() {
		weights = append(weights, WeightCap{Grams: g, Cap: m.cfg.CapTable[g]})
	}
	writeJSON(w, http.StatusOK, PolicyResponse{
		HorizonMin:    m.cfg.Horizon.Min,
		HorizonMax:    m.cfg.Horizon.Max,
		MaxDay:        m.cfg.MaxDay,
		Anchor:        m.cfg.Anchor,
		Growth:        m.cfg.Forecast.Growth,
		IntervalWidth: m.cfg.Forecast.IntervalWidth,
		Weights:       weights,
		Modes:         []string{ModeFit, ModePretrained},
	})
}

// writeFailure maps pipeline errors to problem responses. Unknown errors
// are logged and reported as 500 without detail.
func (m *Module) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var (
		formatErr   *ingest.FormatError
		horizonErr  *horizon.InvalidHorizonError
		weightErr   *horizon.UnknownWeightError
		requestErr  *RequestError
		configErr   *forecast.ConfigError
		shortErr    *forecast.InsufficientDataError
		loadErr     *forecast.ModelLoadError
		maxBytesErr *http.MaxBytesError
	)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSampleUnavailable),
		errors.As(err, &loadErr),
		errors.Is(err, forecast.ErrModelNotLoaded):
		m.logger.Warn("forecast model or data unavailable", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &maxBytesErr):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, errUnsupportedMedia):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.As(err, &shortErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &formatErr),
		errors.As(err, &horizonErr),
		errors.As(err, &weightErr),
		errors.As(err, &requestErr),
		errors.As(err, &configErr),
		errors.Is(err, horizon.ErrEmptySeries):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled):
		m.logger.Debug("request canceled", zap.String("path", r.URL.Path))
		writeError(w, http.StatusServiceUnavailable, "request canceled")
	default:
		m.logger.Error("insight request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://hydrosim.dev/problems/" + strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "-"),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
