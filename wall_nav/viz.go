package wall_nav

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes live controller and executor values for scraping.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	frames           *prometheus.CounterVec
	frontMinDistance prometheus.Gauge
	wallsDetected    prometheus.Counter
	linearX          prometheus.Gauge
	angularZ         prometheus.Gauge
	navState         *prometheus.GaugeVec
	goals            *prometheus.CounterVec
	remainingDegrees prometheus.Gauge
	rotationSeconds  prometheus.Histogram
}

// NewMetrics registers all collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallnav_ranging_frames_total",
				Help: "Ranging frames seen by the navigation controller",
			},
			[]string{"outcome"}, // "ignored", "skipped", "processed"
		),
		frontMinDistance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wallnav_front_min_distance_meters",
			Help: "Minimum valid distance in the front sector of the last processed frame",
		}),
		wallsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wallnav_walls_detected_total",
			Help: "Front-sector detections that triggered a rotation",
		}),
		linearX: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wallnav_cmd_linear_x",
			Help: "Last published linear velocity (m/s)",
		}),
		angularZ: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wallnav_cmd_angular_z",
			Help: "Last published angular velocity (rad/s)",
		}),
		navState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wallnav_navigation_state",
				Help: "1 for the controller's current state",
			},
			[]string{"state"},
		),
		goals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallnav_rotation_goals_total",
				Help: "Rotation goals by terminal status",
			},
			[]string{"status"},
		),
		remainingDegrees: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wallnav_rotation_remaining_degrees",
			Help: "Remaining degrees of the executing goal",
		}),
		rotationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wallnav_rotation_duration_seconds",
			Help:    "Wall-clock time from execution start to terminal status",
			Buckets: prometheus.LinearBuckets(0.5, 0.5, 12),
		}),
	}

	m.registry.MustRegister(
		m.frames,
		m.frontMinDistance,
		m.wallsDetected,
		m.linearX,
		m.angularZ,
		m.navState,
		m.goals,
		m.remainingDegrees,
		m.rotationSeconds,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and embedding.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveFrame counts a frame by outcome.
func (m *Metrics) ObserveFrame(outcome string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(outcome).Inc()
}

// ObserveFrontSector publishes the latest front-sector minimum.
func (m *Metrics) ObserveFrontSector(reading SectorReading) {
	if m == nil {
		return
	}
	m.frontMinDistance.Set(reading.MinDistance)
}

// WallDetected counts a triggered rotation.
func (m *Metrics) WallDetected() {
	if m == nil {
		return
	}
	m.wallsDetected.Inc()
}

// UpdateOutput publishes the latest velocity command.
func (m *Metrics) UpdateOutput(cmd VelocityCommand) {
	if m == nil {
		return
	}
	m.linearX.Set(cmd.LinearX)
	m.angularZ.Set(cmd.AngularZ)
}

// UpdateState publishes the controller state as a one-hot gauge.
func (m *Metrics) UpdateState(st NavigationState) {
	if m == nil {
		return
	}
	for _, name := range []string{"IDLE", "DRIVING", "ROTATING"} {
		v := 0.0
		if name == st.String() {
			v = 1
		}
		m.navState.WithLabelValues(name).Set(v)
	}
}

// UpdateFeedback publishes the remaining degrees of the executing goal.
func (m *Metrics) UpdateFeedback(fb RotationFeedback) {
	if m == nil {
		return
	}
	m.remainingDegrees.Set(fb.RemainingDegrees)
}

// GoalFinished counts a terminal goal and, for executed goals, its duration.
func (m *Metrics) GoalFinished(status GoalStatus, seconds float64) {
	if m == nil {
		return
	}
	m.goals.WithLabelValues(string(status)).Inc()
	if status != GoalRejected {
		m.rotationSeconds.Observe(seconds)
	}
}

// metricsVelocity wraps a publisher so every command also lands on the output gauges.
type metricsVelocity struct {
	next    VelocityPublisher
	metrics *Metrics
}

// InstrumentVelocity returns pub wrapped with output gauges, or pub itself when m is nil.
func InstrumentVelocity(pub VelocityPublisher, m *Metrics) VelocityPublisher {
	if m == nil {
		return pub
	}
	return metricsVelocity{next: pub, metrics: m}
}

func (p metricsVelocity) Publish(cmd VelocityCommand) {
	p.metrics.UpdateOutput(cmd)
	if p.next != nil {
		p.next.Publish(cmd)
	}
}
