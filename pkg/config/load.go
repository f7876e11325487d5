package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. O3_MODEL_NDM.
const EnvPrefix = "O3_"

type loadOptions struct {
	environment map[string]string
	skipEnv     bool
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

// WithEnvironment reads overrides from vars instead of the process
// environment.
func WithEnvironment(vars map[string]string) LoadOption {
	return func(o *loadOptions) { o.environment = vars }
}

// WithoutEnv disables environment overrides.
func WithoutEnv() LoadOption {
	return func(o *loadOptions) { o.skipEnv = true }
}

// Load builds a configuration from the defaults, the file at path (if any)
// and environment overrides, then validates it. The file format follows the
// extension: .yaml and .yml are YAML, .cue is CUE.
func Load(path string, opts ...LoadOption) (*Config, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = decodeYAML(data, cfg)
		case ".cue":
			err = decodeCUE(path, data, cfg)
		default:
			err = fmt.Errorf("unsupported config format %q", filepath.Ext(path))
		}
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	if !o.skipEnv {
		if err := applyEnv(cfg, o.environment); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config, vars map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if vars != nil {
		opts.Environment = vars
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks field constraints and the sections the selected backend
// depends on.
func (c *Config) Validate() error {
	v := validator.New()

	if err := v.Struct(c.Model); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if err := v.Struct(c.Backend); err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	if err := v.Struct(c.Telemetry); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	if c.Model.DOFPerNode > maxDOF(c.Model.Dimensions) {
		return fmt.Errorf("model: ndf %d exceeds %d for ndm %d", c.Model.DOFPerNode, maxDOF(c.Model.Dimensions), c.Model.Dimensions)
	}

	switch c.Backend.Kind {
	case BackendEngine:
		if err := v.Struct(c.Engine); err != nil {
			return fmt.Errorf("engine: %w", err)
		}
		if c.Engine.Binary == "" {
			return fmt.Errorf("engine: binary is required")
		}
		if c.Engine.Transport == TransportSSH {
			if err := v.Struct(c.SSH); err != nil {
				return fmt.Errorf("ssh: %w", err)
			}
			if c.SSH.Host == "" || c.SSH.User == "" {
				return fmt.Errorf("ssh: host and user are required for the ssh transport")
			}
		}
	case BackendRecord:
		if c.Backend.Transcript == "" && !c.Backend.Store && !c.Backend.Redis {
			return fmt.Errorf("backend: record needs a transcript, the store or redis")
		}
	}

	if c.Backend.Store {
		if err := v.Struct(c.Store); err != nil {
			return fmt.Errorf("store: %w", err)
		}
	}
	if c.Backend.Redis {
		if err := v.Struct(c.Redis); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if c.Policy.Enabled && len(c.Policy.Paths) == 0 && !c.Policy.Builtins {
		return fmt.Errorf("policy: enabled without paths or builtins")
	}
	return nil
}

func maxDOF(ndm int) int {
	switch ndm {
	case 1:
		return 1
	case 2:
		return 3
	default:
		return 6
	}
}
