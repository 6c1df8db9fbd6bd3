package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sofim-uhk/sofim/internal/ingest"
	"github.com/sofim-uhk/sofim/internal/keyword"
	"github.com/sofim-uhk/sofim/internal/models"
	"github.com/sofim-uhk/sofim/internal/search"
	"github.com/sofim-uhk/sofim/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"live_passages": s.index.Live().Len(),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if err := s.validate.Struct(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	s.logger.Debug("chat request", zap.String("query", req.Query))
	resp, err := s.engine.Answer(r.Context(), req.Query)
	if errors.Is(err, search.ErrEmptyQuery) {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("chat failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, "answer unavailable")
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	mode, err := models.ParseMode(chi.URLParam(r, "mode"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	running, err := s.tracker.AnyRunning(r.Context())
	if err != nil {
		s.logger.Error("sync trigger: status check failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if running || s.syncer.Running() {
		s.respondError(w, http.StatusConflict, ingest.ErrRunInProgress.Error())
		return
	}
	if err := s.syncer.Start(r.Context(), mode); err != nil {
		if errors.Is(err, ingest.ErrRunInProgress) {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("sync trigger failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("sync triggered", zap.String("mode", string(mode)))
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "started", "mode": string(mode)})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := s.tracker.Snapshot(ctx)
	if err != nil {
		s.logger.Error("status: list failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	categories := make(map[models.Category]*models.SyncStatus, len(list))
	for _, st := range list {
		categories[st.Category] = st
	}
	resp := map[string]interface{}{
		"categories":    categories,
		"running":       s.syncer.Running(),
		"live_passages": s.index.Live().Len(),
		"loaded_at":     s.index.Live().LoadedAt,
	}
	if rep := s.syncer.LastReport(); rep != nil {
		resp["last_run"] = rep
	}
	if bytes, err := s.storage.DiskUsage(); err == nil {
		resp["disk_usage_bytes"] = bytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.storage.ListSources(r.Context())
	if err != nil {
		s.logger.Error("list sources failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sources == nil {
		sources = []*models.Source{}
	}
	s.respondJSON(w, http.StatusOK, sources)
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var src models.Source
	if err := json.NewDecoder(r.Body).Decode(&src); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	src.URL = strings.TrimSpace(src.URL)
	if err := s.validate.Struct(&src); err != nil {
		s.respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	created, err := s.storage.AddSource(r.Context(), src.URL)
	if errors.Is(err, storage.ErrDuplicate) {
		s.respondError(w, http.StatusConflict, "source already listed")
		return
	}
	if err != nil {
		s.logger.Error("add source failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("source added", zap.String("url", created.URL))
	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid source id")
		return
	}
	if err := s.storage.DeleteSource(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "source not found")
			return
		}
		s.logger.Error("delete source failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handlePassageSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	opts := &keyword.SearchOptions{
		TitleBoost:   2,
		FuzzyEnabled: q.Get("fuzzy") == "true",
		SourceTag:    q.Get("source"),
	}
	hits, err := s.engine.Lookup(r.Context(), q.Get("q"), limit, opts)
	if errors.Is(err, search.ErrEmptyQuery) {
		s.respondError(w, http.StatusBadRequest, "missing q parameter")
		return
	}
	if err != nil {
		s.logger.Error("passage search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if hits == nil {
		hits = []search.Hit{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"hits": hits, "total": len(hits)})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return strings.ToLower(fe.Field()) + " failed on '" + fe.Tag() + "'"
	}
	return err.Error()
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
