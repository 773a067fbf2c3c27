// internal/server/handlers.go
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/nettolabs/netto/internal/types"
)

/*
 * HTTP handlers.
 *
 * The calculation endpoint resolves the ruleset by country plus the
 * year of the calculation date, validates the supplied flags against
 * the rule set's requirements, injects the date as an implicit flag,
 * and runs the engine. Flag validation is strict both ways: a missing
 * required flag and an unrecognized flag are both client errors, so a
 * typoed flag name cannot silently change someone's net pay.
 */

const dateLayout = "2006-01-02"

type calculateRequest struct {
	Country string         `json:"country"`
	Date    string         `json:"date"`
	Gross   float64        `json:"gross"`
	Flags   map[string]any `json:"flags"`
}

type calculateResponse struct {
	Country    string          `json:"country"`
	Date       string          `json:"date"`
	Gross      float64         `json:"gross"`
	Net        float64         `json:"net"`
	SuperGross float64         `json:"super_gross"`
	Breakdown  json.RawMessage `json:"breakdown"`
}

type flagsResponse struct {
	Country string   `json:"country"`
	Year    int      `json:"year"`
	Flags   []string `json:"flags"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Country == "" {
		s.writeError(w, http.StatusBadRequest, "country is required")
		return
	}
	if req.Gross < 0 {
		s.writeError(w, http.StatusBadRequest, "gross must be non-negative")
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	engine, err := s.engineFor(req.Country, date.Year())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	public := publicFlags(engine.RequiredFlags())
	if msg := validateFlags(public, req.Flags); msg != "" {
		s.writeError(w, http.StatusBadRequest, msg)
		return
	}

	flags := make(map[string]any, len(req.Flags)+1)
	for name, value := range req.Flags {
		flags[name] = value
	}
	flags["date"] = date.Format(dateLayout)

	result, err := engine.Run(&types.Scenario{Gross: req.Gross, Flags: flags})
	if err != nil {
		s.log.Error("calculation failed", "country", req.Country, "year", date.Year(), "error", err)
		s.writeError(w, http.StatusInternalServerError, "calculation failed: "+err.Error())
		return
	}

	breakdown, err := json.Marshal(result.Breakdown)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, calculateResponse{
		Country:    strings.ToLower(req.Country),
		Date:       req.Date,
		Gross:      result.Gross,
		Net:        result.Net,
		SuperGross: result.SuperGross,
		Breakdown:  breakdown,
	})
}

func (s *Server) handleFlags(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")
	if country == "" {
		s.writeError(w, http.StatusBadRequest, "country query parameter is required")
		return
	}
	date, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "date query parameter must be YYYY-MM-DD")
		return
	}

	engine, err := s.engineFor(country, date.Year())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	flags := publicFlags(engine.RequiredFlags())
	if flags == nil {
		flags = []string{}
	}
	s.writeJSON(w, http.StatusOK, flagsResponse{
		Country: strings.ToLower(country),
		Year:    date.Year(),
		Flags:   flags,
	})
}

func (s *Server) handleRulesets(w http.ResponseWriter, r *http.Request) {
	rulesets, err := s.store.List()
	if err != nil {
		s.log.Error("listing rulesets failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "listing rulesets failed")
		return
	}
	s.writeJSON(w, http.StatusOK, rulesets)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.conn.PingContext(r.Context()); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// publicFlags drops the implicit date flag from the requirement set;
// callers never supply it.
func publicFlags(required []string) []string {
	var public []string
	for _, name := range required {
		if name != "date" {
			public = append(public, name)
		}
	}
	return public
}

// validateFlags reports the first validation failure between the
// required flag set and the supplied one, or "".
func validateFlags(required []string, supplied map[string]any) string {
	requiredSet := make(map[string]bool, len(required))
	for _, name := range required {
		requiredSet[name] = true
	}

	var missing []string
	for _, name := range required {
		if _, ok := supplied[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "missing required flags: " + strings.Join(missing, ", ")
	}

	var unsupported []string
	for name := range supplied {
		if !requiredSet[name] {
			unsupported = append(unsupported, name)
		}
	}
	if len(unsupported) > 0 {
		sort.Strings(unsupported)
		return "unsupported flags: " + strings.Join(unsupported, ", ")
	}

	return ""
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	if errors.Is(err, types.ErrRulesetNotFound) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	// A stored document that fails to compile is an operator problem,
	// not a caller problem.
	s.log.Error("ruleset unavailable", "error", err)
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("writing response failed", "error", err)
	}
}
