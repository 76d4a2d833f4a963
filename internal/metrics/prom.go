package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        "lsrelay_build_info",
			Help:        "Build information",
			ConstLabels: prometheus.Labels{"component": "relay"},
		},
		[]string{"date", "sha", "version"},
	)

	framesRelayed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsrelay_frames_relayed_total",
			Help: "Frames forwarded per direction",
		},
		[]string{"direction"},
	)

	frameBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsrelay_frame_bytes_total",
			Help: "Message body bytes forwarded per direction",
		},
		[]string{"direction"},
	)

	pathRewrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsrelay_path_rewrites_total",
			Help: "String leaves rewritten per direction",
		},
		[]string{"direction"},
	)
)

// Register registers all metrics with the provided registerer.
func Register(r prometheus.Registerer) {
	r.MustRegister(buildInfo, framesRelayed, frameBytes, pathRewrites)
}

// SetBuildInfo sets the build info metric for the relay.
func SetBuildInfo(version, sha, date string) {
	buildInfo.WithLabelValues(date, sha, version).Set(1)
}

// RecordFrame accounts for one forwarded frame.
func RecordFrame(direction string, bodyBytes, rewrites int) {
	framesRelayed.WithLabelValues(direction).Inc()
	frameBytes.WithLabelValues(direction).Add(float64(bodyBytes))
	if rewrites > 0 {
		pathRewrites.WithLabelValues(direction).Add(float64(rewrites))
	}
}
