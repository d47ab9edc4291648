// Package tracing wraps the OpenTelemetry tracer used around connection attempts
// and join handling. The global provider is whatever the process installed with
// otel.SetTracerProvider; until then spans are no-ops.
package tracing

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/lcx/pokernet/config"
)

const defaultTracerName = "pokernet"

// TracerConfig is the "tracing" config section.
type TracerConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	TracerName string `mapstructure:"tracerName"`
}

// GetName implements config.Config.
func (c *TracerConfig) GetName() string {
	return "tracing"
}

// Validate implements config.Config.
func (c *TracerConfig) Validate() error {
	if c.Enabled && c.TracerName == "" {
		return fmt.Errorf("tracerName cannot be empty when tracing is enabled")
	}
	return nil
}

// DefaultTracerConfig 默认配置
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{Enabled: true, TracerName: defaultTracerName}
}

var (
	globalTracer   trace.Tracer = otel.Tracer(defaultTracerName)
	globalTracerMu sync.RWMutex
)

func buildTracer(cfg *TracerConfig) trace.Tracer {
	if !cfg.Enabled {
		return noop.NewTracerProvider().Tracer(cfg.TracerName)
	}
	return otel.Tracer(cfg.TracerName)
}

func setGlobalTracer(t trace.Tracer) {
	globalTracerMu.Lock()
	globalTracer = t
	globalTracerMu.Unlock()
}

// GlobalTracer returns the tracer selected by the last applied config.
func GlobalTracer() trace.Tracer {
	globalTracerMu.RLock()
	defer globalTracerMu.RUnlock()
	return globalTracer
}

// InitTracing loads the "tracing" section, falling back to the defaults when it is missing.
func InitTracing(configMgr config.ConfigManager) error {
	cfg := DefaultTracerConfig()
	if configMgr != nil {
		if err := configMgr.LoadConfig("tracing", &cfg); err != nil {
			// 配置加载失败时使用默认配置
			cfg = DefaultTracerConfig()
		}
		configMgr.AddChangeListener(&tracingConfigListener{})
	}
	setGlobalTracer(buildTracer(&cfg))
	return nil
}

type tracingConfigListener struct{}

func (l *tracingConfigListener) OnConfigChanged(configName string, newConfig, oldConfig config.Config) error {
	if configName != "tracing" {
		return nil
	}
	newCfg, ok := newConfig.(*TracerConfig)
	if !ok {
		return nil
	}
	setGlobalTracer(buildTracer(newCfg))
	return nil
}

func (l *tracingConfigListener) GetConfigName() string {
	return "tracing"
}

// StartSpan starts a child span of whatever span ctx carries.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return GlobalTracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err, if any, and ends span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
