// Package metrics exposes the Prometheus collectors used by the HTTP layer
// and the session/tenant services.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/pasal-api/internal/apperr"
)

var (
	once   sync.Once
	regErr error

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	authEventsTotal   *prometheus.CounterVec
	guardDenialsTotal *prometheus.CounterVec
	storesCreated     *prometheus.CounterVec
	tenantCacheTotal  *prometheus.CounterVec
)

// Register creates the collectors and registers them on reg (the default
// registerer when nil).  It is safe to call more than once.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	once.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pasal_http_requests_total",
			Help: "HTTP requests processed, by method, route and status.",
		}, []string{"method", "route", "status"})

		httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pasal_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"})

		authEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pasal_auth_events_total",
			Help: "Session operations by kind (login, refresh, logout, register) and result.",
		}, []string{"event", "result"})

		guardDenialsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pasal_guard_denials_total",
			Help: "Requests rejected by the guard chain, by reason.",
		}, []string{"reason"})

		storesCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pasal_store_create_total",
			Help: "Store creation attempts by result.",
		}, []string{"result"})

		tenantCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pasal_tenant_cache_total",
			Help: "In-process tenant lookups by cache outcome.",
		}, []string{"outcome"})

		for _, c := range []prometheus.Collector{
			httpRequestsTotal, httpRequestDuration, authEventsTotal,
			guardDenialsTotal, storesCreated, tenantCacheTotal,
		} {
			if err := reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
					continue
				}
				regErr = err
				return
			}
		}
	})
	return regErr
}

// Handler serves /metrics from the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Middleware records request counts and latency labelled by the matched
// route pattern, never the raw path.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if httpRequestsTotal == nil {
				return err
			}
			status := c.Response().Status
			if err != nil {
				// The error handler has not written the response yet.
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = apperr.KindOf(err).Status()
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// AuthEvent counts a session operation outcome, e.g. ("login", "ok").
func AuthEvent(event, result string) {
	if authEventsTotal != nil {
		authEventsTotal.WithLabelValues(event, result).Inc()
	}
}

// GuardDenied counts a guard chain rejection.
func GuardDenied(reason string) {
	if guardDenialsTotal != nil {
		guardDenialsTotal.WithLabelValues(reason).Inc()
	}
}

// StoreCreate counts a store creation attempt.
func StoreCreate(result string) {
	if storesCreated != nil {
		storesCreated.WithLabelValues(result).Inc()
	}
}

// TenantCache counts a lookup of the in-process store cache by outcome:
// hit, miss, or stale (present but from an older tenant version).
func TenantCache(outcome string) {
	if tenantCacheTotal != nil {
		tenantCacheTotal.WithLabelValues(outcome).Inc()
	}
}
