// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts what a run did. Each run owns its registry so the file
// written by WriteFile describes that run only.
type Metrics struct {
	registry *prometheus.Registry

	// toolRuns counts tool executions. Labels: tool, outcome (ok, error, panic)
	toolRuns *prometheus.CounterVec
	// toolSeconds measures tool execution time. Labels: tool
	toolSeconds *prometheus.HistogramVec
	// decisions counts decisions by source. Labels: source (oracle, extracted, fallback)
	decisions *prometheus.CounterVec
	// policy counts error policy outcomes. Labels: strategy, error_type
	policy *prometheus.CounterVec
	// iterations is the number of loop iterations of the run.
	iterations prometheus.Gauge
	// rollbacks counts snapshot restores. Labels: reason
	rollbacks *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		toolRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "i18nagent",
			Subsystem: "tool",
			Name:      "runs_total",
			Help:      "Tool executions by tool and outcome",
		}, []string{"tool", "outcome"}),
		toolSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "i18nagent",
			Subsystem: "tool",
			Name:      "duration_seconds",
			Help:      "Tool execution time",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"tool"}),
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "i18nagent",
			Subsystem: "loop",
			Name:      "decisions_total",
			Help:      "Decisions by source",
		}, []string{"source"}),
		policy: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "i18nagent",
			Subsystem: "loop",
			Name:      "error_handling_total",
			Help:      "Error policy outcomes by strategy and error type",
		}, []string{"strategy", "error_type"}),
		iterations: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "i18nagent",
			Subsystem: "loop",
			Name:      "iterations",
			Help:      "Loop iterations of the run",
		}),
		rollbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "i18nagent",
			Subsystem: "snapshot",
			Name:      "rollbacks_total",
			Help:      "Snapshot restores by reason",
		}, []string{"reason"}),
	}
}

// Registry exposes the run registry, e.g. for an HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteFile writes the metrics in the text exposition format.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "write metrics %s", path)
	}
	return nil
}
