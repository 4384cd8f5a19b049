package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/voyagen/streamscout/internal/fetcher"
	"github.com/voyagen/streamscout/internal/service"
	"github.com/voyagen/streamscout/internal/session"
	"github.com/voyagen/streamscout/internal/store"
)

// APIError is the standard error envelope for all error responses.
type APIError struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNoInput):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrCheckRunning), errors.Is(err, service.ErrCheckRunning):
		return http.StatusConflict
	case errors.Is(err, fetcher.ErrNotPlaylist), errors.Is(err, fetcher.ErrNoChannels):
		return http.StatusUnprocessableEntity
	case errors.Is(err, fetcher.ErrFetchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// parseID extracts the {id} path parameter as int64, writing a 400 on failure.
func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	v := r.PathValue("id")
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid id: %s", v))
		return 0, false
	}
	return id, true
}

// optionalID parses an optional numeric query parameter.
func optionalID(w http.ResponseWriter, v, param string) (*int64, bool) {
	if v == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid %s: %s", param, v))
		return nil, false
	}
	return &id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON: %v", err)
	}
}

func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func writeErr(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		log.Printf("ERROR %d: %v", status, err)
	}
	writeJSON(w, status, APIError{
		Status: status,
		Error:  http.StatusText(status),
		Detail: err.Error(),
	})
}

func writeM3U(w http.ResponseWriter, name, body string) {
	w.Header().Set("Content-Type", "audio/x-mpegurl; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(name, ".m3u"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// attachment builds a Content-Disposition value with a filesystem-safe name.
func attachment(name, ext string) string {
	base := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		case r == ' ':
			return '_'
		}
		return -1
	}, path.Base(name))
	if base == "" || base == "." {
		base = "playlist"
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": base + ext})
}
