package status

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/gaspardpetit/lsrelay/internal/relay"
)

// VersionInfo describes the running build.
type VersionInfo struct {
	Version   string `json:"version"`
	BuildSHA  string `json:"build_sha"`
	BuildDate string `json:"build_date"`
}

// Sources supplies the live state the endpoints report.
type Sources struct {
	Stats   func() relay.Stats
	PID     func() int
	Version VersionInfo
}

type report struct {
	relay.Stats
	PID   int         `json:"pid"`
	Child *childStats `json:"child,omitempty"`
}

type childStats struct {
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
}

// Start exposes /status, /version, and /metrics on addr and serves
// until ctx is canceled. It returns the resolved listen address. The
// listener is meant for loopback use; it never carries protocol
// traffic.
func Start(ctx context.Context, addr string, src Sources) (string, error) {
	r := chi.NewRouter()
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		rep := report{Stats: src.Stats(), PID: src.PID()}
		rep.Child = sampleChild(rep.PID)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rep)
	})
	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(src.Version)
	})
	r.Handle("/metrics", promhttp.Handler())
	return serveUntilContext(ctx, addr, r)
}

// sampleChild reports the child's memory and CPU usage when the
// process can still be inspected; nil otherwise.
func sampleChild(pid int) *childStats {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil
	}
	stats := &childStats{}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		stats.RSSBytes = mem.RSS
	}
	if cpu, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	return stats
}

// serveUntilContext starts an HTTP server bound to addr and shuts it
// down when ctx is done. It returns the resolved listen address.
func serveUntilContext(ctx context.Context, addr string, handler http.Handler) (string, error) {
	srv := &http.Server{Handler: handler}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	actual := ln.Addr().String()
	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(c)
	}()
	go func() { _ = srv.Serve(ln) }()
	return actual, nil
}
