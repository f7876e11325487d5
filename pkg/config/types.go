package config

import (
	"time"
)

// Backend kinds.
const (
	// BackendReference runs commands against the in-process reference engine.
	BackendReference = "reference"
	// BackendEngine drives an external engine host over the protocol.
	BackendEngine = "engine"
	// BackendRecord only records a transcript.
	BackendRecord = "record"
)

// Engine transports.
const (
	TransportProcess = "process"
	TransportSSH     = "ssh"
	TransportWASM    = "wasm"
)

// Tracing exporters.
const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
	ExporterNone   = "none"
)

// Config is the complete o3 configuration.
type Config struct {
	// Model declares the dimensions every session opens with.
	Model ModelConfig `yaml:"model" json:"model" envPrefix:"MODEL_"`

	// Backend selects where commands go.
	Backend BackendConfig `yaml:"backend" json:"backend" envPrefix:"BACKEND_"`

	// Engine configures the external engine host.
	Engine EngineConfig `yaml:"engine" json:"engine" envPrefix:"ENGINE_"`

	// SSH configures the remote host when the engine runs over SSH.
	SSH SSHConfig `yaml:"ssh" json:"ssh" envPrefix:"SSH_"`

	// Store configures the SQLite session store.
	Store StoreConfig `yaml:"store" json:"store" envPrefix:"STORE_"`

	// Redis configures the Redis transcript sink.
	Redis RedisConfig `yaml:"redis" json:"redis" envPrefix:"REDIS_"`

	// Policy configures the rego guard.
	Policy PolicyConfig `yaml:"policy" json:"policy" envPrefix:"POLICY_"`

	// Telemetry configures logging, metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry" envPrefix:"TELEMETRY_"`
}

// ModelConfig declares the model builder.
type ModelConfig struct {
	Dimensions int    `yaml:"ndm" json:"ndm" env:"NDM" validate:"oneof=1 2 3"`
	DOFPerNode int    `yaml:"ndf" json:"ndf" env:"NDF" validate:"min=1,max=6"`
	Precision  string `yaml:"precision" json:"precision" env:"PRECISION" validate:"oneof=double single"`
}

// BackendConfig selects the session backend.
type BackendConfig struct {
	Kind string `yaml:"kind" json:"kind" env:"KIND" validate:"oneof=reference engine record"`

	// Transcript is a file the session also records to. Required for the
	// record kind.
	Transcript string `yaml:"transcript" json:"transcript" env:"TRANSCRIPT"`

	// Strict makes the reference engine reject commands the catalog does not know.
	Strict bool `yaml:"strict" json:"strict" env:"STRICT"`

	// Store also records every accepted command in the session store.
	Store bool `yaml:"store" json:"store" env:"STORE"`

	// Redis also records every accepted command in Redis.
	Redis bool `yaml:"redis" json:"redis" env:"REDIS"`
}

// EngineConfig configures the external engine host.
type EngineConfig struct {
	Binary     string   `yaml:"binary" json:"binary" env:"BINARY"`
	Args       []string `yaml:"args" json:"args" env:"ARGS"`
	Transport  string   `yaml:"transport" json:"transport" env:"TRANSPORT" validate:"oneof=process ssh wasm"`
	RemotePath string   `yaml:"remote_path" json:"remote_path" env:"REMOTE_PATH"`

	// Upload copies Binary to RemotePath before starting it.
	Upload bool `yaml:"upload" json:"upload" env:"UPLOAD"`

	StartTimeout   time.Duration `yaml:"start_timeout" json:"start_timeout" env:"START_TIMEOUT" validate:"gt=0"`
	CommandTimeout time.Duration `yaml:"command_timeout" json:"command_timeout" env:"COMMAND_TIMEOUT" validate:"gte=0"`
}

// SSHConfig configures the remote engine host.
type SSHConfig struct {
	Host           string        `yaml:"host" json:"host" env:"HOST"`
	Port           int           `yaml:"port" json:"port" env:"PORT" validate:"min=1,max=65535"`
	User           string        `yaml:"user" json:"user" env:"USER"`
	Password       string        `yaml:"password" json:"-" env:"PASSWORD"`
	PrivateKeyPath string        `yaml:"private_key" json:"private_key" env:"PRIVATE_KEY"`
	KnownHostsPath string        `yaml:"known_hosts" json:"known_hosts" env:"KNOWN_HOSTS"`
	StrictHostKey  bool          `yaml:"strict_host_key" json:"strict_host_key" env:"STRICT_HOST_KEY"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout" env:"TIMEOUT" validate:"gt=0"`
	ProxyHost      string        `yaml:"proxy_host" json:"proxy_host" env:"PROXY_HOST"`
	ProxyUser      string        `yaml:"proxy_user" json:"proxy_user" env:"PROXY_USER"`
}

// StoreConfig configures the SQLite session store.
type StoreConfig struct {
	Path string `yaml:"path" json:"path" env:"PATH" validate:"required"`
}

// RedisConfig configures the Redis transcript sink.
type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr" env:"ADDR" validate:"required,hostname_port"`
	DB        int    `yaml:"db" json:"db" env:"DB" validate:"gte=0"`
	Password  string `yaml:"password" json:"-" env:"PASSWORD"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix" env:"KEY_PREFIX" validate:"required"`
}

// PolicyConfig configures the rego guard.
type PolicyConfig struct {
	Enabled  bool     `yaml:"enabled" json:"enabled" env:"ENABLED"`
	Paths    []string `yaml:"paths" json:"paths" env:"PATHS"`
	Builtins bool     `yaml:"builtins" json:"builtins" env:"BUILTINS"`
	Watch    bool     `yaml:"watch" json:"watch" env:"WATCH"`
}

// TelemetryConfig configures logging, metrics and tracing.
type TelemetryConfig struct {
	LogLevel  string        `yaml:"log_level" json:"log_level" env:"LOG_LEVEL" validate:"oneof=trace debug info warn error"`
	LogFormat string        `yaml:"log_format" json:"log_format" env:"LOG_FORMAT" validate:"oneof=console json"`
	Metrics   MetricsConfig `yaml:"metrics" json:"metrics" envPrefix:"METRICS_"`
	Tracing   TracingConfig `yaml:"tracing" json:"tracing" envPrefix:"TRACING_"`
}

// MetricsConfig configures the Prometheus observer.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" env:"ENABLED"`
	Listen  string `yaml:"listen" json:"listen" env:"LISTEN"`
}

// TracingConfig configures the OpenTelemetry backend decorator.
type TracingConfig struct {
	Exporter     string  `yaml:"exporter" json:"exporter" env:"EXPORTER" validate:"oneof=otlp stdout none"`
	Endpoint     string  `yaml:"endpoint" json:"endpoint" env:"ENDPOINT"`
	Insecure     bool    `yaml:"insecure" json:"insecure" env:"INSECURE"`
	SamplingRate float64 `yaml:"sampling_rate" json:"sampling_rate" env:"SAMPLING_RATE" validate:"gte=0,lte=1"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Dimensions: 2,
			DOFPerNode: 2,
			Precision:  "double",
		},
		Backend: BackendConfig{
			Kind: BackendReference,
		},
		Engine: EngineConfig{
			Binary:       "o3-engine",
			Transport:    TransportProcess,
			RemotePath:   "/tmp/o3-engine",
			StartTimeout: 30 * time.Second,
		},
		SSH: SSHConfig{
			Port:          22,
			StrictHostKey: true,
			Timeout:       30 * time.Second,
		},
		Store: StoreConfig{
			Path: "o3.db",
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "o3:transcript:",
		},
		Policy: PolicyConfig{
			Builtins: true,
		},
		Telemetry: TelemetryConfig{
			LogLevel:  "info",
			LogFormat: "console",
			Metrics: MetricsConfig{
				Listen: ":9090",
			},
			Tracing: TracingConfig{
				Exporter:     ExporterNone,
				SamplingRate: 1.0,
			},
		},
	}
}
