package proc

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"
)

func TestStartUnknownExecutable(t *testing.T) {
	_, err := Start("/nonexistent/lsrelay-test-binary", nil, nil)
	if err == nil {
		t.Fatal("expected spawn error")
	}
	if !strings.Contains(err.Error(), "spawn") {
		t.Fatalf("error should name the spawn failure: %v", err)
	}
}

func TestStartPassesExtraEnv(t *testing.T) {
	p, err := Start("/bin/sh", []string{"-c", `printf '%s' "$LSRELAY_TEST_VAR"`}, []string{"LSRELAY_TEST_VAR=hello"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	out, err := io.ReadAll(p.Stdout())
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	if err := p.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if string(out) != "hello" {
		t.Fatalf("stdout: %q", out)
	}
}

func TestForwardStderr(t *testing.T) {
	p, err := Start("/bin/sh", []string{"-c", `printf 'diag line\n' 1>&2`}, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		p.ForwardStderr(&buf)
		close(done)
	}()
	<-done
	if err := p.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got := buf.String(); got != "diag line\n" {
		t.Fatalf("stderr copy: %q", got)
	}
}

func TestShutdownGraceful(t *testing.T) {
	// cat exits on its own once stdin closes, inside the grace period.
	p, err := Start("/bin/cat", nil, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	start := time.Now()
	if err := p.Shutdown(2 * time.Second); err != nil {
		// cat may report the SIGTERM instead of a clean exit depending
		// on timing; either way the child must be reaped quickly.
		t.Logf("shutdown exit: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("shutdown took %v, expected within grace", elapsed)
	}
}

func TestShutdownForceKillsStubbornChild(t *testing.T) {
	p, err := Start("/bin/sh", []string{"-c", `trap "" TERM; sleep 60`}, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	start := time.Now()
	err = p.Shutdown(200 * time.Millisecond)
	if err == nil {
		t.Fatal("expected non-nil exit after kill")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("force kill took %v", elapsed)
	}
}

func TestWaitIsIdempotent(t *testing.T) {
	p, err := Start("/bin/sh", []string{"-c", "exit 3"}, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	first := p.Wait()
	second := p.Wait()
	if first == nil || second == nil {
		t.Fatal("expected exit status 3 to surface as error")
	}
	if first.Error() != second.Error() {
		t.Fatalf("wait results differ: %v vs %v", first, second)
	}
}
