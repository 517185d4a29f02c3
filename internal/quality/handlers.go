package quality

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/HerbHall/hydrosim/pkg/plugin"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "POST", Path: "/predict", Handler: m.handlePredict},
		{Method: "GET", Path: "/model", Handler: m.handleModel},
	}
}

// PredictRequest is one reading entered field by field.
type PredictRequest struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Light       *float64 `json:"light"`
	PH          *float64 `json:"pH"`
	EC          *float64 `json:"EC"`
	TDS         *float64 `json:"TDS"`
	WaterTemp   *float64 `json:"WaterTemp"`
}

// reading returns the vector in Features order and the names of any
// missing fields.
func (p PredictRequest) reading() (Reading, []string) {
	fields := []*float64{p.Temperature, p.Humidity, p.Light, p.PH, p.EC, p.TDS, p.WaterTemp}
	var r Reading
	var missing []string
	for i, f := range fields {
		if f == nil {
			missing = append(missing, Features[i])
			continue
		}
		r[i] = *f
	}
	return r, missing
}

// PredictResponse is the classification result.
type PredictResponse struct {
	Label         Label             `json:"label"`
	Probabilities map[Label]float64 `json:"probabilities"`
}

// handlePredict classifies one reading.
//
//	@Summary		Classify reading
//	@Description	Classifies a single environmental reading as Normal, Ideal or Excessive.
//	@Tags			quality
//	@Accept			json
//	@Produce		json
//	@Param			request body PredictRequest true "Sensor reading"
//	@Success		200 {object} PredictResponse
//	@Failure		400 {object} map[string]any
//	@Failure		503 {object} map[string]any
//	@Router			/quality/predict [post]
func (m *Module) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	reading, missing := req.reading()
	if len(missing) > 0 {
		writeError(w, http.StatusBadRequest, "missing fields: "+strings.Join(missing, ", "))
		return
	}

	label, probs, err := m.Predict(reading)
	if errors.Is(err, ErrModelNotLoaded) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "prediction failed")
		return
	}
	writeJSON(w, http.StatusOK, PredictResponse{Label: label, Probabilities: probs})
}

// ModelResponse describes the loaded classifier.
type ModelResponse struct {
	Format   string   `json:"format"`
	Features []string `json:"features"`
	Labels   []Label  `json:"labels"`
	Rounds   int      `json:"rounds"`
	Report   *Report  `json:"report,omitempty"`
}

// handleModel returns training diagnostics for the loaded classifier.
//
//	@Summary		Classifier diagnostics
//	@Description	Returns the features, labels and held-out metrics of the loaded classifier.
//	@Tags			quality
//	@Produce		json
//	@Success		200 {object} ModelResponse
//	@Failure		503 {object} map[string]any
//	@Router			/quality/model [get]
func (m *Module) handleModel(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	model := m.model
	m.mu.RUnlock()
	if model == nil {
		writeError(w, http.StatusServiceUnavailable, ErrModelNotLoaded.Error())
		return
	}
	writeJSON(w, http.StatusOK, ModelResponse{
		Format:   FormatVersion,
		Features: Features,
		Labels:   Labels,
		Rounds:   len(model.Ensemble.Rounds),
		Report:   model.Report,
	})
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
		"type":   "https://hydrosim.dev/problems/" + problemSlug(status),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}

func problemSlug(status int) string {
	return strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "-")
}
