package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"

	"github.com/nao1215/tornodes/internal/report"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"client", clientIP(r),
			"duration", s.now().Sub(start),
		)
	})
}

// recoverer turns a handler panic into a 500 JSON error.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(v)
			}
			s.logger.Error("panic in http handler",
				"path", r.URL.Path,
				"panic", fmt.Sprint(v),
				"stack", string(debug.Stack()),
			)
			if rec.status == 0 {
				s.writeJSON(rec, http.StatusInternalServerError, report.NewErrorPayload("internal server error"))
			}
		}()
		next.ServeHTTP(rec, r)
	})
}

// rateLimit applies the budget of route to each client.
func (s *Server) rateLimit(route string, next http.Handler) http.Handler {
	limit, ok := s.limits[route]
	if !ok || !limit.valid() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientIP(r)
		allowed, wait := s.limiter.allow(route, client, limit)
		if !allowed {
			retry := retryAfterSeconds(wait)
			s.logger.Warn("rate limit exceeded", "client", client, "route", route, "retry_after", retry)

			payload := report.NewErrorPayload("rate limit exceeded, try again later")
			payload.RetryAfter = strconv.Itoa(retry)
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			s.writeJSON(w, http.StatusTooManyRequests, payload)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP is the host part of the remote address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
