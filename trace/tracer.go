// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package trace builds the tracer handed to the blockchain pipeline.
package trace

import (
	"context"
	"errors"
	"time"

	"github.com/ava-labs/avalanchego/trace"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	appName = "praos"

	exportTimeout = 10 * time.Second
	// Longer than [exportTimeout] so pending exports can finish.
	shutdownTimeout = 15 * time.Second
)

var ErrNoEndpoint = errors.New("tracing enabled without an endpoint")

type Config struct {
	Enabled bool `json:"enabled"`

	// Zipkin collector URL spans are exported to.
	Endpoint string `json:"endpoint"`

	// Fraction of traces to sample. >= 1 samples everything, <= 0 nothing.
	SampleRate float64 `json:"sampleRate"`

	NodeID  string `json:"nodeID"`
	Version string `json:"version"`
}

func NewDefaultConfig() Config {
	return Config{
		Enabled:    false,
		Endpoint:   "http://localhost:9411/api/v2/spans",
		SampleRate: 0.1,
		NodeID:     appName,
	}
}

type tracer struct {
	oteltrace.Tracer

	// tp is nil when tracing is disabled.
	tp *sdktrace.TracerProvider
}

func (t *tracer) Close() error {
	if t.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return t.tp.Shutdown(ctx)
}

// New returns a tracer exporting to zipkin, or one that records nothing
// when tracing is disabled.
func New(config Config) (trace.Tracer, error) {
	if !config.Enabled {
		return &tracer{
			Tracer: oteltrace.NewNoopTracerProvider().Tracer(
				appName,
				oteltrace.WithInstrumentationVersion(config.Version),
			),
		}, nil
	}
	if config.Endpoint == "" {
		return nil, ErrNoEndpoint
	}

	exporter, err := zipkin.New(config.Endpoint)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithExportTimeout(exportTimeout)),
		sdktrace.WithResource(
			resource.NewWithAttributes(
				semconv.SchemaURL,
				attribute.String("version", config.Version),
				semconv.ServiceNameKey.String(appName),
				semconv.ServiceInstanceIDKey.String(config.NodeID),
			),
		),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(config.SampleRate)),
	)
	return &tracer{
		Tracer: tp.Tracer(appName),
		tp:     tp,
	}, nil
}
