package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/voyagen/streamscout/internal/models"
	"github.com/voyagen/streamscout/internal/session"
)

// maxUploadBytes caps pasted or uploaded playlists.
const maxUploadBytes = 64 << 20

type createSessionRequest struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Content string `json:"content"`
	Check   bool   `json:"check"`
}

// handleCreateSession accepts either a JSON body ({url} or {content}) or a
// raw playlist upload with any text or M3U content type.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var req createSessionRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" || mediaType == "" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
			return
		}
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
			return
		}
		req.Content = string(body)
		req.Name = r.URL.Query().Get("name")
		req.Check = r.URL.Query().Get("check") == "true"
	}

	if req.URL == "" && strings.TrimSpace(req.Content) == "" {
		writeErr(w, http.StatusBadRequest, errors.New("url or content is required"))
		return
	}

	sess := s.Sessions.Create(req.Name)
	var err error
	if req.Content != "" {
		err = sess.Load(req.Content)
	} else {
		err = sess.LoadURL(r.Context(), s.Fetcher, req.URL)
	}
	if err != nil {
		s.Sessions.Delete(sess.ID)
		writeErr(w, statusFor(err), err)
		return
	}

	if req.Check {
		s.checkInBackground(sess)
	}
	writeJSON(w, http.StatusCreated, sess.Summary())
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.PathValue("id")
	sess, ok := s.Sessions.Get(id)
	if !ok {
		writeErr(w, http.StatusNotFound, fmt.Errorf("session %s not found", id))
		return nil, false
	}
	return sess, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Summary())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.Sessions.Delete(id) {
		writeErr(w, http.StatusNotFound, fmt.Errorf("session %s not found", id))
		return
	}
	writeNoContent(w)
}

// handleCheckSession starts a reachability pass. By default it returns 202
// immediately; ?wait=true blocks and returns the summary.
func (s *Server) handleCheckSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if sess.Checking() {
		writeErr(w, http.StatusConflict, session.ErrCheckRunning)
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		sum, err := sess.Check(r.Context(), s.Checker)
		if err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
		return
	}

	s.checkInBackground(sess)
	writeJSON(w, http.StatusAccepted, sess.Summary())
}

// checkInBackground runs a pass detached from the request, since large
// playlists take far longer than the HTTP write timeout. The pass stops
// when the server is closed.
func (s *Server) checkInBackground(sess *session.Session) {
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ctx, cancel := context.WithTimeout(s.bg, time.Hour)
		defer cancel()
		if _, err := sess.Check(ctx, s.Checker); err != nil && !errors.Is(err, session.ErrCheckRunning) {
			log.Printf("session %s: check: %v", sess.ID, err)
		}
	}()
}

func (s *Server) handleSessionChannels(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	channels := sess.Filter(q.Get("search"), q.Get("hide_offline") == "true")
	if channels == nil {
		channels = []*models.Channel{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"channels": channels,
		"total":    len(channels),
	})
}

func (s *Server) handleSessionGroups(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Groups())
}

func (s *Server) handleSessionExportM3U(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeM3U(w, sess.Name, sess.ExportM3U(r.URL.Query().Get("online_only") == "true"))
}

func (s *Server) handleSessionExportJSON(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Disposition", attachment(sess.Name, ".json"))
	writeJSON(w, http.StatusOK, sess.Export(time.Now()))
}
