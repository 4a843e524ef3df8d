// Package statsview serves live runtime charts (goroutines, heap, GC pauses)
// of a streaming run. Useful when tuning the streamer against the host
// scheduler.
package statsview

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

// DefaultAddress is used when no listen address is configured.
const DefaultAddress = "localhost:18066"

// Path is where the charts are served.
const Path = "/debug/statsview"

// Viewer is a running stats server.
type Viewer struct {
	addr string
	mgr  *statsview.ViewManager
	done chan struct{}

	mu  sync.Mutex
	err error
}

// viewer keeps its settings in package state, so only one server can run
// per process.
var configure sync.Once

// Launch starts the stats server on addr in a new goroutine.
func Launch(addr string, logger *slog.Logger) *Viewer {
	if addr == "" {
		addr = DefaultAddress
	}
	configure.Do(func() {
		viewer.SetConfiguration(viewer.WithAddr(addr))
	})

	v := &Viewer{addr: addr, mgr: statsview.New(), done: make(chan struct{})}
	go func() {
		defer close(v.done)
		if err := v.mgr.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("stats server failed", "addr", addr, "error", err)
			v.mu.Lock()
			v.err = err
			v.mu.Unlock()
		}
	}()

	logger.Info("stats server available", "url", v.URL())
	return v
}

// URL returns the address of the charts page.
func (v *Viewer) URL() string {
	return URL(v.addr)
}

// URL returns the charts page for a listen address.
func URL(addr string) string {
	return "http://" + addr + Path
}

// Stop shuts the server down.
func (v *Viewer) Stop() {
	v.mgr.Stop()
}

// Done is closed when the server has exited.
func (v *Viewer) Done() <-chan struct{} {
	return v.done
}

// Err returns the error the server exited with, if any.
func (v *Viewer) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}
