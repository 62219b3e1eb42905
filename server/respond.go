package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/corralhq/corral/lib/apierr"
)

var (
	reqCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corral_http_requests_total",
		Help: "HTTP requests served, by route, method and status code.",
	}, []string{"route", "method", "code"})

	reqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "corral_http_request_duration_seconds",
		Help:    "HTTP request duration, by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// statusWriter captures the response code for logging and metrics.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware logs every request and feeds the prometheus collectors. Websocket upgrades bypass the wrapped
// writer since the room needs the raw connection.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Upgrade") == "websocket" {
			next.ServeHTTP(rw, r)
			return
		}

		start := time.Now()
		sw := &statusWriter{ResponseWriter: rw, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		reqCount.WithLabelValues(route, r.Method, strconv.Itoa(sw.code)).Inc()
		reqDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())

		s.log.WithFields(logrus.Fields{
			"remote":     r.RemoteAddr,
			"method":     r.Method,
			"uri":        r.RequestURI,
			"status":     sw.code,
			"durationMs": time.Since(start).Milliseconds(),
		}).Info("httpreq")
	})
}

// respond writes a JSON body with the given status.
func (s *Server) respond(rw http.ResponseWriter, status int, body interface{}) {
	rw.Header().Set("Content-Type", "application/json;charset=utf8")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(body)
}

type errorEnvelope struct {
	Error *apierr.Error `json:"error"`
}

// fail maps err to its API error and replies the error envelope. Server-class failures get a reference identifier:
// the raw cause is logged against it and never serialized to the client.
func (s *Server) fail(rw http.ResponseWriter, r *http.Request, err error) {
	e := apierr.As(err)
	if e == nil {
		e = apierr.Internal(err)
	}

	entry := s.log.WithFields(logrus.Fields{
		"method": r.Method,
		"uri":    r.RequestURI,
		"code":   e.Code,
	})

	if e.Status >= http.StatusInternalServerError {
		refID := uuid.NewString()
		e = e.WithDetail("referenceId", refID)
		entry.WithFields(logrus.Fields{"referenceId": refID, "cause": err.Error()}).Error("request failed")
	} else {
		entry.Warn(e.Message)
	}

	s.respond(rw, e.Status, errorEnvelope{Error: e})
}
