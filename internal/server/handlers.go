package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/splitkit/splitkit/internal/experiment"
	"github.com/splitkit/splitkit/internal/stats"
)

type HealthResponse struct {
	Status           string `json:"status"`
	ExperimentsCount int    `json:"experiments_count"`
	DBSizeBytes      int64  `json:"db_size_bytes"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var dbSize int64
	if s.db != nil {
		if size, err := s.db.SizeBytes(); err == nil {
			dbSize = size
		}
	}

	response := HealthResponse{
		Status:           "ok",
		ExperimentsCount: len(s.reg.List()),
		DBSizeBytes:      dbSize,
		UptimeSeconds:    int64(time.Since(s.startTime).Seconds()),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// TrackRequest is an incoming beacon event.
type TrackRequest struct {
	ExperimentID string            `json:"experimentId"`
	UserID       string            `json:"userId"`
	Path         string            `json:"path"`
	Event        string            `json:"event"`
	Goal         string            `json:"goal,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type TrackResponse struct {
	UserID    string `json:"userId"`
	VariantID string `json:"variantId,omitempty"`
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	// Set CORS headers for all responses
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	// Handle preflight
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()

	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.ExperimentID == "" {
		http.Error(w, "Missing experimentId", http.StatusBadRequest)
		return
	}

	switch req.Event {
	case "view":
		// Mint a durable id for first-time visitors so the client can
		// persist it.
		if req.UserID == "" {
			req.UserID = uuid.NewString()
		}

		assignment, err := s.reg.Assign(req.ExperimentID, req.UserID, req.Path)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}

		resp := TrackResponse{UserID: req.UserID}
		if assignment != nil {
			resp.VariantID = assignment.VariantID
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)

	case "convert":
		if req.Goal == "" {
			http.Error(w, "Missing goal", http.StatusBadRequest)
			return
		}
		if err := s.rec.Record(req.ExperimentID, req.Goal, req.UserID, req.Metadata); err != nil {
			s.writeEngineError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Invalid event type", http.StatusBadRequest)
		return
	}

	trackLatency.WithLabelValues(req.Event).Observe(time.Since(start).Seconds())
}

// ExperimentSummary is the public list entry.
type ExperimentSummary struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Status    experiment.Status `json:"status"`
	Variants  int               `json:"variants"`
	Goals     []string          `json:"goals"`
	CreatedAt time.Time         `json:"createdAt"`
}

func (s *Server) handleExperiments(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var statuses []experiment.Status
	if filter := r.URL.Query().Get("status"); filter != "" {
		statuses = append(statuses, experiment.Status(filter))
	}

	summaries := []ExperimentSummary{}
	for _, exp := range s.reg.List(statuses...) {
		summaries = append(summaries, ExperimentSummary{
			ID:        exp.ID,
			Name:      exp.Name,
			Status:    exp.Status,
			Variants:  len(exp.Variants),
			Goals:     exp.Goals,
			CreatedAt: exp.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summaries)
}

// VariantResultResponse is one arm of a results payload, with the
// Wilson interval alongside the engine's counters.
type VariantResultResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Visitors       int     `json:"visitors"`
	Conversions    int     `json:"conversions"`
	ConversionRate float64 `json:"conversionRate"`
	CILower        float64 `json:"ciLower"`
	CIUpper        float64 `json:"ciUpper"`
}

type ResultsResponse struct {
	ID                      string                `json:"id"`
	Name                    string                `json:"name"`
	Status                  experiment.Status     `json:"status"`
	VariantA                VariantResultResponse `json:"variantA"`
	VariantB                VariantResultResponse `json:"variantB"`
	Confidence              float64               `json:"confidence"`
	Winner                  string                `json:"winner,omitempty"`
	StatisticalSignificance bool                  `json:"statisticalSignificance"`
}

func (s *Server) handleExperimentByID(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, action := splitIDAction(r.URL.Path, "/api/experiments/")
	if id == "" || action != "results" {
		http.NotFound(w, r)
		return
	}

	exp, err := s.reg.Get(id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resultsResponse(exp))
}

func resultsResponse(exp *experiment.Experiment) ResultsResponse {
	return ResultsResponse{
		ID:                      exp.ID,
		Name:                    exp.Name,
		Status:                  exp.Status,
		VariantA:                variantResultResponse(exp.Control(), exp.Results.VariantA),
		VariantB:                variantResultResponse(exp.Challenger(), exp.Results.VariantB),
		Confidence:              exp.Results.Confidence,
		Winner:                  exp.Results.Winner,
		StatisticalSignificance: exp.Results.StatisticalSignificance,
	}
}

func variantResultResponse(v experiment.Variant, res experiment.VariantResult) VariantResultResponse {
	lower, upper := stats.WilsonInterval(res.Conversions, res.Visitors, 0.95)
	return VariantResultResponse{
		ID:             v.ID,
		Name:           v.Name,
		Visitors:       res.Visitors,
		Conversions:    res.Conversions,
		ConversionRate: res.ConversionRate,
		CILower:        lower,
		CIUpper:        upper,
	}
}

// CreateRequest is the admin create payload.
type CreateRequest struct {
	Name              string               `json:"name"`
	Description       string               `json:"description,omitempty"`
	Variants          []experiment.Variant `json:"variants"`
	TrafficAllocation int                  `json:"trafficAllocation"`
	TargetPages       []string             `json:"targetPages,omitempty"`
	Goals             []string             `json:"goals"`
}

func (s *Server) handleAdminExperiments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	exp, err := s.reg.Create(experiment.Config{
		Name:              req.Name,
		Description:       req.Description,
		Variants:          req.Variants,
		TrafficAllocation: req.TrafficAllocation,
		TargetPages:       req.TargetPages,
		Goals:             req.Goals,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(exp)
}

func (s *Server) handleAdminExperimentByID(w http.ResponseWriter, r *http.Request) {
	id, action := splitIDAction(r.URL.Path, "/admin/experiments/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	switch {
	case r.Method == http.MethodDelete && action == "":
		if err := s.reg.Delete(id); err != nil {
			s.writeEngineError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodGet && action == "export":
		export, err := s.reg.Export(id)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(export)

	case r.Method == http.MethodPost:
		var err error
		switch action {
		case "start":
			err = s.reg.Start(id)
		case "pause":
			err = s.reg.Pause(id)
		case "complete":
			err = s.reg.Complete(id)
		case "reset":
			err = s.reg.Reset(id)
		default:
			http.NotFound(w, r)
			return
		}
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// splitIDAction parses "<prefix><id>[/<action>]" paths.
func splitIDAction(path, prefix string) (id, action string) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == path {
		return "", ""
	}
	parts := strings.SplitN(rest, "/", 2)
	id = parts[0]
	if len(parts) == 2 {
		action = parts[1]
	}
	return id, action
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var validationErr *experiment.ValidationError
	var notFoundErr *experiment.NotFoundError
	var stateErr *experiment.InvalidStateError

	switch {
	case errors.As(err, &validationErr):
		http.Error(w, validationErr.Error(), http.StatusBadRequest)
	case errors.As(err, &notFoundErr):
		http.Error(w, notFoundErr.Error(), http.StatusNotFound)
	case errors.As(err, &stateErr):
		http.Error(w, stateErr.Error(), http.StatusConflict)
	default:
		s.log.Error().Err(err).Msg("request failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
