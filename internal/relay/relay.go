package relay

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gaspardpetit/lsrelay/internal/jsonrpc"
	"github.com/gaspardpetit/lsrelay/internal/logx"
	"github.com/gaspardpetit/lsrelay/internal/metrics"
	"github.com/gaspardpetit/lsrelay/internal/rewrite"
)

// Direction labels one pump.
type Direction string

const (
	// Upstream carries editor → server traffic.
	Upstream Direction = "upstream"
	// Downstream carries server → editor traffic.
	Downstream Direction = "downstream"
)

// Supervisor owns the downstream server process. proc.Process
// implements it; tests substitute scripted peers.
type Supervisor interface {
	Stdin() io.WriteCloser
	Stdout() io.ReadCloser
	Shutdown(grace time.Duration) error
	Wait() error
}

// Options configures an Engine.
type Options struct {
	Mapping   rewrite.Mapping
	Server    Supervisor
	EditorIn  io.ReadCloser
	EditorOut io.Writer
	Grace     time.Duration
}

// Engine relays framed messages between the editor and the language
// server, rewriting path prefixes as messages cross the namespace
// boundary. The two pumps run independently: requests, responses and
// unsolicited notifications are forwarded purely in arrival order per
// direction, with no correlation by id.
type Engine struct {
	sessionID string
	mapping   rewrite.Mapping
	server    Supervisor
	editorIn  io.ReadCloser
	editorOut io.Writer
	grace     time.Duration

	upFrames   atomic.Uint64
	downFrames atomic.Uint64
	started    time.Time
}

// Stats is a point-in-time view of relay activity for the status
// endpoint.
type Stats struct {
	SessionID        string    `json:"session_id"`
	StartedAt        time.Time `json:"started_at"`
	UpstreamFrames   uint64    `json:"upstream_frames"`
	DownstreamFrames uint64    `json:"downstream_frames"`
}

// New constructs an Engine. The server must already be started.
func New(opts Options) *Engine {
	grace := opts.Grace
	if grace <= 0 {
		grace = 5 * time.Second
	}
	return &Engine{
		sessionID: uuid.NewString(),
		mapping:   opts.Mapping,
		server:    opts.Server,
		editorIn:  opts.EditorIn,
		editorOut: opts.EditorOut,
		grace:     grace,
		started:   time.Now(),
	}
}

// SessionID identifies this relay session in logs and status output.
func (e *Engine) SessionID() string { return e.sessionID }

// Stats returns current frame counters.
func (e *Engine) Stats() Stats {
	return Stats{
		SessionID:        e.sessionID,
		StartedAt:        e.started,
		UpstreamFrames:   e.upFrames.Load(),
		DownstreamFrames: e.downFrames.Load(),
	}
}

type pumpResult struct {
	dir Direction
	err error
}

// Run drives both pumps until either side's stream ends or ctx is
// canceled, then coordinates shutdown: the other pump's source stream
// is force-closed so its blocking read unblocks, and the server is
// terminated and reaped. It returns nil when the session ended with a
// clean end-of-stream, non-nil on a framing/encoding/IO failure or
// when the server died unexpectedly.
func (e *Engine) Run(ctx context.Context) error {
	logx.Log.Info().
		Str("session_id", e.sessionID).
		Str("host_root", e.mapping.HostRoot).
		Str("container_root", e.mapping.ContainerRoot).
		Msg("relay session started")

	results := make(chan pumpResult, 2)
	go func() {
		err := e.pump(Upstream, jsonrpc.NewReader(e.editorIn), jsonrpc.NewWriter(e.server.Stdin()), e.mapping.ToContainer(), &e.upFrames)
		results <- pumpResult{Upstream, err}
	}()
	go func() {
		err := e.pump(Downstream, jsonrpc.NewReader(e.server.Stdout()), jsonrpc.NewWriter(e.editorOut), e.mapping.ToHost(), &e.downFrames)
		results <- pumpResult{Downstream, err}
	}()

	var first pumpResult
	canceled := false
	select {
	case first = <-results:
	case <-ctx.Done():
		canceled = true
	}

	// Closing the editor input and shutting the server down closes
	// every stream a pump can be blocked on, so both goroutines finish.
	_ = e.editorIn.Close()
	exitErr := e.server.Shutdown(e.grace)

	received := 0
	if !canceled {
		received = 1
	}
	var second pumpResult
	for ; received < 2; received++ {
		r := <-results
		if canceled && first.dir == "" {
			first = r
			continue
		}
		second = r
	}
	// Failures in the pump that was interrupted by our own stream
	// closing are shutdown noise, not session outcome.
	if second.err != nil {
		logx.Log.Debug().Err(second.err).Str("direction", string(second.dir)).Msg("pump stopped during shutdown")
	}

	return e.classify(canceled, first, exitErr)
}

// classify maps the first terminating event onto the relay's exit
// outcome. An editor that closes its stream ends the session cleanly
// no matter how the server is then torn down; a server-side
// end-of-stream is clean only when the server itself exited cleanly,
// so a crashed or still-running server surfaces as an error.
func (e *Engine) classify(canceled bool, first pumpResult, exitErr error) error {
	if canceled {
		logx.Log.Info().Str("session_id", e.sessionID).Msg("relay stopped by signal")
		return nil
	}
	if first.err != nil {
		return first.err
	}
	if first.dir == Downstream && exitErr != nil {
		logx.Log.Error().Err(exitErr).Str("session_id", e.sessionID).Msg("server closed its stream and did not exit cleanly")
		return exitErr
	}
	logx.Log.Info().Str("session_id", e.sessionID).Str("direction", string(first.dir)).Msg("relay session ended")
	return nil
}

// pump forwards frames in one direction until its source stream ends.
// It returns nil on a clean end-of-stream and the failure otherwise.
// No partial frame is ever emitted: a frame is written only after it
// decoded and rewrote completely.
func (e *Engine) pump(dir Direction, r *jsonrpc.Reader, w *jsonrpc.Writer, rule rewrite.Rule, frames *atomic.Uint64) error {
	for {
		msg, err := r.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				logx.Log.Info().Str("session_id", e.sessionID).Str("direction", string(dir)).Msg("end of stream")
				return nil
			}
			logx.Log.Error().Err(err).Str("session_id", e.sessionID).Str("direction", string(dir)).Msg("read frame")
			return err
		}
		out, rewrites := rule.ApplyCount(msg)
		if method, ok := msg.Field("method"); ok && method.Kind() == jsonrpc.KindString {
			logx.Log.Debug().Str("session_id", e.sessionID).Str("direction", string(dir)).Str("method", method.StringValue()).Int("rewrites", rewrites).Msg("forward")
		}
		n, err := w.WriteMessage(out)
		if err != nil {
			logx.Log.Error().Err(err).Str("session_id", e.sessionID).Str("direction", string(dir)).Msg("write frame")
			return err
		}
		frames.Add(1)
		metrics.RecordFrame(string(dir), n, rewrites)
	}
}
