package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/voyagen/streamscout/internal/cache"
	"github.com/voyagen/streamscout/internal/checker"
	"github.com/voyagen/streamscout/internal/m3u"
	"github.com/voyagen/streamscout/internal/models"
	"github.com/voyagen/streamscout/internal/service"
	"github.com/voyagen/streamscout/internal/store"
)

type addSourceRequest struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	Content   string `json:"content"`
	UserAgent string `json:"user_agent"`
	Check     bool   `json:"check"`
}

// addSourceResponse is the ingest result plus what happened to a requested
// check: queued for the worker, or run inline with its summary.
type addSourceResponse struct {
	service.IngestResult
	Queued bool             `json:"queued"`
	Check  *checker.Summary `json:"check,omitempty"`
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.Store.ListSources(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if sources == nil {
		sources = []models.Source{}
	}
	writeJSON(w, http.StatusOK, sources)
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	var req addSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}

	res, err := service.Ingest(r.Context(), s.Store, s.Fetcher, service.IngestRequest{
		Name:      req.Name,
		URL:       req.URL,
		Content:   req.Content,
		UserAgent: req.UserAgent,
	})
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}

	resp := addSourceResponse{IngestResult: res}
	switch {
	case !req.Check:
	case s.Dispatcher != nil && s.Dispatcher.Queued():
		job := cache.CheckJob{Kind: cache.JobCheck, SourceID: res.SourceID, SourceName: res.Name}
		if err := s.Dispatcher.Submit(r.Context(), job); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		resp.Queued = true
	default:
		// No worker: check inline so the flag is never silently dropped.
		sum, err := service.CheckSource(r.Context(), s.Store, s.Checker, nil, res.SourceID)
		if err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		resp.Check = &sum
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	src, err := s.Store.GetSourceByID(r.Context(), id)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, src)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := s.Store.DeleteSource(r.Context(), id); err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeNoContent(w)
}

func (s *Server) handleRefreshSource(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	res, err := service.Refresh(r.Context(), s.Store, s.Fetcher, id)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleCheckSource queues a check when a worker is available (202) and
// otherwise runs it inline, returning the summary (200).
func (s *Server) handleCheckSource(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	src, err := s.Store.GetSourceByID(r.Context(), id)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}

	if s.Dispatcher != nil && s.Dispatcher.Queued() {
		job := cache.CheckJob{Kind: cache.JobCheck, SourceID: src.ID, SourceName: src.Name}
		if err := s.Dispatcher.Submit(r.Context(), job); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"queued": true, "source_id": src.ID})
		return
	}

	sum, err := service.CheckSource(r.Context(), s.Store, s.Checker, nil, src.ID)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleSourceExportM3U(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	src, err := s.Store.GetSourceByID(r.Context(), id)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	channels, err := s.Store.ListChannelsBySource(r.Context(), id)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	opts := m3u.EncodeOptions{OnlineOnly: r.URL.Query().Get("online_only") == "true"}
	writeM3U(w, src.Name, m3u.EncodeString(channels, opts))
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter store.ChannelFilter
	var ok bool
	if filter.SourceID, ok = optionalID(w, q.Get("source_id"), "source_id"); !ok {
		return
	}
	if filter.GroupID, ok = optionalID(w, q.Get("group_id"), "group_id"); !ok {
		return
	}
	switch st := models.Status(q.Get("status")); st {
	case "", models.StatusOnline, models.StatusOffline, models.StatusUnknown:
		filter.Status = st
	default:
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid status %q", st))
		return
	}
	filter.Search = q.Get("search")
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid limit: %w", err))
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid offset: %w", err))
			return
		}
		filter.Offset = n
	}
	filter.Normalize()

	channels, total, err := s.Store.ListChannels(r.Context(), filter)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if channels == nil {
		channels = []models.Channel{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"channels": channels,
		"total":    total,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	sourceID, ok := optionalID(w, r.URL.Query().Get("source_id"), "source_id")
	if !ok {
		return
	}
	groups, err := s.Store.ListGroups(r.Context(), sourceID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if groups == nil {
		groups = []models.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}
