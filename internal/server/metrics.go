package server

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vidyalaya/prayerbell/internal/upload"
	"github.com/vidyalaya/prayerbell/playback"
)

// Metrics holds the prometheus collectors of the service. Each instance has
// its own registry.
type Metrics struct {
	registry *prometheus.Registry

	playsTotal    *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	uploadsTotal  *prometheus.CounterVec
	syncsTotal    *prometheus.CounterVec
	playing       prometheus.Gauge
	requestsTotal *prometheus.CounterVec

	mu       sync.Mutex
	lastPlay string
}

// NewMetrics creates the collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		playsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "prayerbell_plays_total",
			Help: "Playbacks started, by audio source",
		}, []string{"source"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "prayerbell_playback_errors_total",
			Help: "Playback failures, by kind",
		}, []string{"kind"}),
		uploadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "prayerbell_uploads_total",
			Help: "Recording uploads, by result",
		}, []string{"result"}),
		syncsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "prayerbell_settings_syncs_total",
			Help: "Schedule reconciliations with the backend, by result",
		}, []string{"result"}),
		playing: f.NewGauge(prometheus.GaugeOpts{
			Name: "prayerbell_playing",
			Help: "1 while a source is audible",
		}),
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "prayerbell_http_requests_total",
			Help: "HTTP requests, by route and status",
		}, []string{"method", "route", "status"}),
	}
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeSession(s playback.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !s.IsPlaying() {
		m.playing.Set(0)
		m.lastPlay = ""
		return
	}
	m.playing.Set(1)
	key := s.Source.String() + "/" + s.SelectedID()
	if key != m.lastPlay {
		m.lastPlay = key
		m.playsTotal.WithLabelValues(s.Source.String()).Inc()
	}
}

func (m *Metrics) observeError(err error) {
	m.errorsTotal.WithLabelValues(playback.Kind(err)).Inc()
}

func (m *Metrics) observeUpload(st upload.Status) {
	m.uploadsTotal.WithLabelValues(string(st.State)).Inc()
}

func (m *Metrics) observeSync(_ string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.syncsTotal.WithLabelValues(result).Inc()
}
