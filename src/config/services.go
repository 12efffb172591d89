package config

// Credential store backends.
const (
	StoreFile   = "file"
	StoreEnv    = "env"
	StoreAWS    = "aws"
	StoreMemory = "memory"
)

// CredentialsConfig selects the external credential store that identity
// references are resolved against.
type CredentialsConfig struct {
	// Store is one of "file", "env" or "aws".
	Store string `yaml:"store" toml:"store"`

	// File is the vault file for the file store (YAML or TOML).
	File string `yaml:"file" toml:"file"`

	// AWSRegion overrides the region for the aws store.
	AWSRegion string `yaml:"aws_region" toml:"aws_region"`

	// AWSPrefix is prepended to identity references to form the secret id.
	AWSPrefix string `yaml:"aws_prefix" toml:"aws_prefix"`
}

// TelemetryConfig controls the fire-and-forget outcome events.
type TelemetryConfig struct {
	// Endpoint receives one JSON event per stage. Empty logs events locally.
	Endpoint string `yaml:"endpoint" toml:"endpoint"`

	// Timeout bounds the per-event POST and the final flush ("5s").
	Timeout string `yaml:"timeout" toml:"timeout"`

	// Disabled suppresses events entirely.
	Disabled bool `yaml:"disabled" toml:"disabled"`
}

// MetricsConfig controls the stage metrics push.
type MetricsConfig struct {
	// Pushgateway is a Prometheus Pushgateway URL. Empty disables the push.
	Pushgateway string `yaml:"pushgateway" toml:"pushgateway"`

	// Job is the Pushgateway job label.
	Job string `yaml:"job" toml:"job"`
}

// DefaultCredentialsConfig reads credentials from the environment by default.
func DefaultCredentialsConfig() CredentialsConfig {
	return CredentialsConfig{
		Store: StoreEnv,
	}
}

// DefaultTelemetryConfig returns the telemetry defaults.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Timeout: "5s",
	}
}

// DefaultMetricsConfig returns the metrics defaults.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Job: "edgefreight",
	}
}
