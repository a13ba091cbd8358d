package config

// DatadogConfig configures Datadog APM tracing via the OTLP exporter.
// Traces are exported to the local Datadog agent over OTLP/HTTP.
type DatadogConfig struct {
	// Enabled toggles trace export. Off by default for local development.
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// AgentHost is the Datadog agent OTLP endpoint (host:port).
	AgentHost string `mapstructure:"agent_host" json:"agent_host"`

	// APIKey is only needed when exporting directly without an agent.
	APIKey string `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON

	// Environment tags spans (dev, staging, prod).
	Environment string `mapstructure:"environment" json:"environment"`

	// ServiceName tags spans with the service identity.
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}
