package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kindexlab/kindex/internal/engine"
	"github.com/kindexlab/kindex/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := engine.RetrieveOpts{
		Query:    q.Get("q"),
		Audience: q.Get("audience"),
		Tier:     engine.Tier(q.Get("tier")),
	}
	if seeds, ok := q["seed"]; ok {
		opts.Seeds = seeds
	}
	if h := q.Get("hops"); h != "" {
		n, err := strconv.Atoi(h)
		if err != nil {
			writeError(w, http.StatusBadRequest, "hops must be an integer")
			return
		}
		opts.MaxHops = n
	}
	if b := q.Get("budget"); b != "" {
		n, err := strconv.Atoi(b)
		if err != nil {
			writeError(w, http.StatusBadRequest, "budget must be an integer")
			return
		}
		opts.TokenBudget = n
	}
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			opts.Limit = n
		}
	}

	result, err := s.engine.Retrieve(r.Context(), opts)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   opts.Query,
		"tier":    result.Tier,
		"count":   len(result.Results),
		"block":   result.Block,
		"results": result.Results,
	})
}

func (s *Server) handleDecay(w http.ResponseWriter, r *http.Request) {
	changed, err := s.engine.RunDecayCycle(time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "changed": changed})
}

func (s *Server) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type     string         `json:"type"`
		Title    string         `json:"title"`
		Content  string         `json:"content"`
		AKA      []string       `json:"aka"`
		Weight   float64        `json:"weight"`
		Domains  []string       `json:"domains"`
		Status   string         `json:"status"`
		Audience string         `json:"audience"`
		Extra    map[string]any `json:"extra"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title required")
		return
	}

	n := &store.Node{
		Type:     req.Type,
		Title:    req.Title,
		Content:  req.Content,
		AKA:      req.AKA,
		Weight:   req.Weight,
		Domains:  req.Domains,
		Status:   req.Status,
		Audience: req.Audience,
		Extra:    req.Extra,
	}
	if err := s.db.CreateNode(n); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, n)
}

// resolveNode looks a node up by id first, then by title or alias.
func (s *Server) resolveNode(ref string) (*store.Node, error) {
	n, err := s.db.GetNode(ref)
	if err != nil || n != nil {
		return n, err
	}
	return s.db.GetNodeByTitle(ref)
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	n, err := s.resolveNode(chi.URLParam(r, "nodeID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if n == nil {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleNodeEdges(w http.ResponseWriter, r *http.Request) {
	n, err := s.resolveNode(chi.URLParam(r, "nodeID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if n == nil {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}

	out, err := s.db.EdgesFrom(n.ID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	inbound, err := s.db.EdgesTo(n.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"node":     n.Title,
		"outbound": out,
		"inbound":  inbound,
	})
}

func (s *Server) handleBoostNode(w http.ResponseWriter, r *http.Request) {
	n, err := s.resolveNode(chi.URLParam(r, "nodeID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if n == nil {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	if err := s.db.BoostNode(n.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "boosted", "id": n.ID})
}

func (s *Server) handleAddEdge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From          string  `json:"from"`
		To            string  `json:"to"`
		Type          string  `json:"type"`
		Weight        float64 `json:"weight"`
		Provenance    string  `json:"provenance"`
		Bidirectional bool    `json:"bidirectional"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.From == "" || req.To == "" {
		writeError(w, http.StatusBadRequest, "from and to required")
		return
	}
	if req.Type == "" {
		req.Type = "relates_to"
	}
	if req.Weight == 0 {
		req.Weight = 0.5
	}

	from, err := s.resolveNode(req.From)
	if err != nil || from == nil {
		writeError(w, http.StatusNotFound, "from node not found")
		return
	}
	to, err := s.resolveNode(req.To)
	if err != nil || to == nil {
		writeError(w, http.StatusNotFound, "to node not found")
		return
	}

	if err := s.db.AddEdge(from.ID, to.ID, req.Type, req.Weight, req.Provenance, req.Bidirectional); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"status": "ok",
		"from":   from.Title,
		"to":     to.Title,
		"type":   req.Type,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleOrphans(w http.ResponseWriter, r *http.Request) {
	orphans, err := s.db.Orphans()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(orphans),
		"orphans": orphans,
	})
}
