// package metrics exposes Prometheus collectors for token refresh and playback health
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for a player process.
//
// A nil *Metrics is valid and records nothing, so components can take one optionally.
type Metrics struct {
	registry *prometheus.Registry

	// Token lifecycle
	TokenRefreshes    *prometheus.CounterVec
	ForceRefreshes    *prometheus.CounterVec
	RefreshSuppressed *prometheus.CounterVec

	// Playback
	PlaybackErrors *prometheus.CounterVec
	Fragments      prometheus.Counter
	FragmentBytes  prometheus.Counter
	LevelSwitches  prometheus.Counter
}

// NewMetrics creates all collectors on a dedicated registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		TokenRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hlsx_token_refresh_total",
			Help: "Total number of targeted token refreshes by result",
		}, []string{"result"}),
		ForceRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hlsx_force_refresh_total",
			Help: "Total number of forced re-signs by result",
		}, []string{"result"}),
		RefreshSuppressed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hlsx_refresh_suppressed_total",
			Help: "Total number of authorization errors swallowed by the refresh guard",
		}, []string{"reason"}),

		PlaybackErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hlsx_playback_errors_total",
			Help: "Total number of errors surfaced to the user by category",
		}, []string{"category"}),
		Fragments: factory.NewCounter(prometheus.CounterOpts{
			Name: "hlsx_fragments_loaded_total",
			Help: "Total number of media fragments appended to the sink",
		}),
		FragmentBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "hlsx_fragment_bytes_total",
			Help: "Total bytes of media fragments appended to the sink",
		}),
		LevelSwitches: factory.NewCounter(prometheus.CounterOpts{
			Name: "hlsx_level_switches_total",
			Help: "Total number of adaptive bitrate level switches",
		}),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordTokenRefresh(result string) {
	if m == nil {
		return
	}
	m.TokenRefreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordForceRefresh(result string) {
	if m == nil {
		return
	}
	m.ForceRefreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordSuppressed(reason string) {
	if m == nil {
		return
	}
	m.RefreshSuppressed.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordPlaybackError(category string) {
	if m == nil {
		return
	}
	m.PlaybackErrors.WithLabelValues(category).Inc()
}

// RecordFragment counts one appended fragment of n bytes.
func (m *Metrics) RecordFragment(n int) {
	if m == nil {
		return
	}
	m.Fragments.Inc()
	m.FragmentBytes.Add(float64(n))
}

func (m *Metrics) RecordLevelSwitch() {
	if m == nil {
		return
	}
	m.LevelSwitches.Inc()
}
