package config

// TracingConfig holds OTLP trace export configuration.
//
// Tracing is opt-in and covers the generation pipeline. Spans are shipped
// over OTLP HTTP, typically to a local collector.
// See internal/observability/tracing.go for the exporter setup.
type TracingConfig struct {
	// Enabled toggles trace export (default: false)
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// Endpoint is the OTLP HTTP endpoint (default: localhost:4318)
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	// Environment is the deployment environment tag (default: dev)
	Environment string `mapstructure:"environment" json:"environment"`
	// ServiceName is the service name on exported spans (default: jotdown)
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}
