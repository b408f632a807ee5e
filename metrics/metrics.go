// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package metrics exports extraction telemetry as Prometheus metrics.
package metrics

import (
	"github.com/hashicorp/go-kapsule"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kapsule"

// Collector holds the Prometheus metrics fed by [Collector.Observe].
type Collector struct {
	extractions      *prometheus.CounterVec
	extractedFiles   *prometheus.CounterVec
	extractedDirs    *prometheus.CounterVec
	extractedLinks   *prometheus.CounterVec
	extractedBytes   *prometheus.CounterVec
	extractionErrors *prometheus.CounterVec
	unsupportedFiles *prometheus.CounterVec
	duration         *prometheus.HistogramVec
}

// NewCollector creates the extraction metrics and registers them with reg. A
// nil reg leaves them unregistered. Registering twice with the same registry panics.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		extractions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extractions_total",
				Help:      "Total number of extractions",
			},
			[]string{"type", "mode", "result"},
		),
		extractedFiles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extracted_files_total",
				Help:      "Total number of extracted regular files",
			},
			[]string{"type"},
		),
		extractedDirs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extracted_dirs_total",
				Help:      "Total number of extracted directories",
			},
			[]string{"type"},
		),
		extractedLinks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extracted_symlinks_total",
				Help:      "Total number of extracted symlinks",
			},
			[]string{"type"},
		),
		extractedBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extracted_bytes_total",
				Help:      "Total number of bytes written to extracted files",
			},
			[]string{"type"},
		),
		extractionErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extraction_errors_total",
				Help:      "Total number of errors during extraction",
			},
			[]string{"type"},
		),
		unsupportedFiles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unsupported_files_total",
				Help:      "Total number of skipped unsupported entries",
			},
			[]string{"type"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "extraction_duration_seconds",
				Help:      "Extraction duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"type"},
		),
	}
}

// Observe records the outcome of one extraction.
func (c *Collector) Observe(td *kapsule.TelemetryData) {
	if td == nil {
		return
	}

	mode := "all"
	if len(td.Entry) > 0 {
		mode = "entry"
	}
	result := "success"
	if td.LastExtractionError != nil {
		result = "error"
	}

	typ := td.ExtractedType
	c.extractions.WithLabelValues(typ, mode, result).Inc()
	c.extractedFiles.WithLabelValues(typ).Add(float64(td.ExtractedFiles))
	c.extractedDirs.WithLabelValues(typ).Add(float64(td.ExtractedDirs))
	c.extractedLinks.WithLabelValues(typ).Add(float64(td.ExtractedSymlinks))
	c.extractedBytes.WithLabelValues(typ).Add(float64(td.ExtractionSize))
	c.extractionErrors.WithLabelValues(typ).Add(float64(td.ExtractionErrors))
	c.unsupportedFiles.WithLabelValues(typ).Add(float64(td.UnsupportedFiles))
	c.duration.WithLabelValues(typ).Observe(td.ExtractionDuration.Seconds())
}

// NewTelemetryHook returns a [kapsule.TelemetryHook] that records every
// extraction in metrics registered with reg.
func NewTelemetryHook(reg prometheus.Registerer) kapsule.TelemetryHook {
	return NewCollector(reg).Observe
}
