// Package metrics exposes Prometheus collectors for the Worker Pool, the
// Scheduler's ticks, and the HTTP API, registered against a dedicated
// registry so /metrics never picks up unrelated default collectors.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds every collector this package registers.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "adcontrol",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adcontrol",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled, by method/route/status.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "adcontrol",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "route"})

	jobsClaimed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adcontrol",
		Subsystem: "worker",
		Name:      "jobs_claimed_total",
		Help:      "Total jobs claimed from the Job Store, by type.",
	}, []string{"type"})

	jobsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adcontrol",
		Subsystem: "worker",
		Name:      "jobs_finished_total",
		Help:      "Total jobs that reached a terminal status, by type and outcome.",
	}, []string{"type", "outcome"})

	jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "adcontrol",
		Subsystem: "worker",
		Name:      "job_duration_seconds",
		Help:      "Wall-clock duration of a job's run method, by type.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"type"})

	workerPoolActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "adcontrol",
		Subsystem: "worker",
		Name:      "pool_active_jobs",
		Help:      "Number of jobs currently executing in the pool.",
	})

	schedulerTicks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adcontrol",
		Subsystem: "scheduler",
		Name:      "ticks_total",
		Help:      "Total scheduler ticks attempted, by cadence and whether leadership was held.",
	}, []string{"tick", "leader"})

	upstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adcontrol",
		Subsystem: "upstream",
		Name:      "requests_total",
		Help:      "Total requests made to the ad platform API, by outcome.",
	}, []string{"outcome"})

	upstreamBreakerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "adcontrol",
		Subsystem: "upstream",
		Name:      "circuit_breaker_open",
		Help:      "Whether the upstream circuit breaker is currently open (1) or not (0).",
	})

	rulesEvaluated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adcontrol",
		Subsystem: "rules",
		Name:      "evaluations_total",
		Help:      "Total rule evaluations, by rule kind and whether the condition matched.",
	}, []string{"kind", "matched"})

	automationActions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adcontrol",
		Subsystem: "rules",
		Name:      "automation_actions_total",
		Help:      "Total automation actions dispatched, by action type and outcome.",
	}, []string{"action", "outcome"})

	notificationsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adcontrol",
		Subsystem: "notify",
		Name:      "sent_total",
		Help:      "Total notification delivery attempts, by channel and outcome.",
	}, []string{"channel", "outcome"})
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		jobsClaimed,
		jobsFinished,
		jobDuration,
		workerPoolActive,
		schedulerTicks,
		upstreamRequests,
		upstreamBreakerState,
		rulesEvaluated,
		automationActions,
		notificationsSent,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns the HTTP handler serving this registry's metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps next with request-count and latency collection.
// The /metrics route itself is excluded to avoid it measuring its own scrape.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := routeTemplate(r.URL.Path)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordJobClaimed increments the claimed-jobs counter for jobType.
func RecordJobClaimed(jobType string) {
	jobsClaimed.WithLabelValues(jobType).Inc()
}

// RecordJobFinished records a job's terminal outcome and duration.
func RecordJobFinished(jobType, outcome string, duration time.Duration) {
	jobsFinished.WithLabelValues(jobType, outcome).Inc()
	jobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// SetPoolActiveJobs publishes the worker pool's current concurrency.
func SetPoolActiveJobs(n int) {
	workerPoolActive.Set(float64(n))
}

// RecordSchedulerTick records a scheduler tick attempt and whether this
// instance held leadership for it.
func RecordSchedulerTick(tick string, isLeader bool) {
	schedulerTicks.WithLabelValues(tick, strconv.FormatBool(isLeader)).Inc()
}

// RecordUpstreamRequest records the outcome of a single ad-platform API call.
func RecordUpstreamRequest(outcome string) {
	upstreamRequests.WithLabelValues(outcome).Inc()
}

// SetUpstreamBreakerOpen publishes the circuit breaker's open/closed state.
func SetUpstreamBreakerOpen(open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	upstreamBreakerState.Set(v)
}

// RecordRuleEvaluation records one alert or automation rule evaluation.
func RecordRuleEvaluation(kind string, matched bool) {
	rulesEvaluated.WithLabelValues(kind, strconv.FormatBool(matched)).Inc()
}

// RecordAutomationAction records the dispatch outcome of an automation action.
func RecordAutomationAction(action, outcome string) {
	automationActions.WithLabelValues(action, outcome).Inc()
}

// RecordNotificationSent records a single channel delivery attempt.
func RecordNotificationSent(channel, outcome string) {
	notificationsSent.WithLabelValues(channel, outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// routeTemplate collapses path segments that look like IDs so the requests
// counter's cardinality stays bounded regardless of how many jobs or rules
// exist.
func routeTemplate(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	parts := strings.Split(trimmed, "/")
	for i, p := range parts {
		if i == 0 {
			continue
		}
		if looksLikeID(p) {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func looksLikeID(s string) bool {
	if len(s) < 6 {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits > 0 || strings.Contains(s, "-")
}
