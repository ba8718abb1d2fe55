package server

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/nao1215/tornodes/internal/model"
	"github.com/nao1215/tornodes/internal/nodes"
	"github.com/nao1215/tornodes/internal/report"
)

// maxHistoryLimit caps the limit query parameter of GET /api/refreshes.
const maxHistoryLimit = 500

const (
	contentTypeJSON     = "application/json; charset=utf-8"
	contentTypeText     = "text/plain; charset=utf-8"
	contentTypeMarkdown = "text/markdown; charset=utf-8"
	contentTypeRSS      = "application/rss+xml; charset=utf-8"
)

// rssErrorBody is served when the feed cannot be built.
const rssErrorBody = `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>Error</title></channel></rss>`

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	payload := report.NewIndexPayload(s.version, s.svc.ExitInfo(), s.svc.DetailedInfo(), Endpoints())
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleIPList(w http.ResponseWriter, r *http.Request) {
	textOpts := []report.TextWriterOption{report.WithTextClock(s.now)}

	ips, lastUpdate, err := s.svc.ExitList(r.Context())
	if err != nil {
		s.logger.Error("failed to serve exit list", "error", err)
		var buf bytes.Buffer
		if _, werr := report.NewTextWriter(&buf, textOpts...).WriteError(err); werr != nil {
			s.logger.Error("failed to render error list", "error", werr)
		}
		w.Header().Set("Content-Type", contentTypeText)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(buf.Bytes()) //nolint:errcheck // client went away
		return
	}

	var buf bytes.Buffer
	if _, err := report.NewTextWriter(&buf, textOpts...).WriteIPList(ips, lastUpdate); err != nil {
		s.writeError(w, err)
		return
	}

	etag := computeETag(buf.Bytes())
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", contentTypeText)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes()) //nolint:errcheck // client went away
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, report.NewStatusPayload(s.svc.ExitInfo(), s.svc.DetailedInfo(), s.now()))
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	relays, err := s.svc.DetailedRelays(r.Context())
	s.writeNodes(w, relays, err, "")
}

func (s *Server) handleRunning(w http.ResponseWriter, r *http.Request) {
	relays, err := s.svc.RunningRelays(r.Context())
	s.writeNodes(w, relays, err, "")
}

func (s *Server) handleExit(w http.ResponseWriter, r *http.Request) {
	relays, err := s.svc.ExitRelays(r.Context())
	s.writeNodes(w, relays, err, "")
}

func (s *Server) handleCountry(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	relays, err := s.svc.RelaysByCountry(r.Context(), code)
	s.writeNodes(w, relays, err, strings.ToLower(code))
}

func (s *Server) writeNodes(w http.ResponseWriter, relays []model.Relay, err error, country string) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	payload := report.NewNodesPayload(relays, s.svc.DetailedInfo())
	payload.Country = country
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Statistics(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report.NewStatsPayload(stats))
}

func (s *Server) handleStatsMarkdown(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Statistics(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if _, err := report.NewMarkdownWriter(&buf).WriteStatistics(stats); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeMarkdown)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes()) //nolint:errcheck // client went away
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", contentTypeRSS)

	var buf bytes.Buffer
	relays, err := s.svc.DetailedRelays(r.Context())
	if err == nil {
		err = report.NewRSSWriter(&buf, report.WithFeedLimit(s.feedLimit)).
			WriteRelays(relays, s.svc.DetailedInfo().LastUpdate)
	}
	if err != nil {
		s.logger.Error("failed to build rss feed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(rssErrorBody)) //nolint:errcheck // client went away
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes()) //nolint:errcheck // client went away
}

func (s *Server) handleRefreshes(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeJSON(w, http.StatusNotFound, report.NewErrorPayload("refresh history is disabled"))
		return
	}

	query := r.URL.Query()
	limit := 0
	if v := query.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistoryLimit {
			s.writeJSON(w, http.StatusBadRequest,
				report.NewErrorPayload("limit must be between 1 and "+strconv.Itoa(maxHistoryLimit)))
			return
		}
		limit = n
	}

	var (
		events []model.RefreshEvent
		err    error
	)
	switch cache := model.CacheName(query.Get("cache")); cache {
	case "":
		events, err = s.history.Recent(r.Context(), limit)
	case model.CacheExit, model.CacheDetailed:
		events, err = s.history.RecentByCache(r.Context(), cache, limit)
	default:
		s.writeJSON(w, http.StatusBadRequest, report.NewErrorPayload("cache must be exit or detailed"))
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report.NewHistoryPayload(events))
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusNotFound, report.NewErrorPayload("not found"))
}

// writeError maps err to a status code and writes the JSON error body.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()
	switch {
	case errors.Is(err, nodes.ErrInvalidArgument):
		status = http.StatusBadRequest
	default:
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, report.NewErrorPayload(msg))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if _, err := report.NewJSONWriter(&buf).Write(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
		http.Error(w, `{"status":"error","error":"internal server error","total_nodes":0}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes()) //nolint:errcheck // client went away
}
