// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics exposes the batch's outcome counters as Prometheus
// collectors, served over an optional HTTP endpoint, matching the
// teacher's optional metrics goroutine in cmd/cie/index.go.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Batch holds the collectors for one pipeline run.
type Batch struct {
	HandlersDiscovered prometheus.Counter
	HandlersDiscarded  *prometheus.CounterVec
	PassesSkipped      *prometheus.CounterVec
	HandlersEmitted    prometheus.Counter
	PassDuration       *prometheus.HistogramVec
	registry           *prometheus.Registry
}

// NewBatch builds a fresh, independently-registered collector set so
// repeated runs (e.g. under `watch`) don't collide on re-registration.
func NewBatch() *Batch {
	reg := prometheus.NewRegistry()
	b := &Batch{
		HandlersDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "syzdescriptor_handlers_discovered_total",
			Help: "Dispatch-table handlers found by DispatchCollector.",
		}),
		HandlersDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syzdescriptor_handlers_discarded_total",
			Help: "Handlers discarded, by failing pass.",
		}, []string{"pass"}),
		PassesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syzdescriptor_passes_skipped_total",
			Help: "Non-fatal pass failures, by pass.",
		}, []string{"pass"}),
		HandlersEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "syzdescriptor_handlers_emitted_total",
			Help: "Handlers that reached the Emitter successfully.",
		}),
		PassDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "syzdescriptor_pass_duration_seconds",
			Help:    "Per-pass processing duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"pass"}),
		registry: reg,
	}
	reg.MustRegister(b.HandlersDiscovered, b.HandlersDiscarded, b.PassesSkipped, b.HandlersEmitted, b.PassDuration)
	return b
}

// Serve starts an HTTP server exposing /metrics on addr until ctx is done.
func (b *Batch) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(b.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics: serve %s: %w", addr, err)
	}
}
