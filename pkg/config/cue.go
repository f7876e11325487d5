package config

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// ValidationError is one problem found in a CUE configuration, with its
// position when CUE reports one.
type ValidationError struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	if e.File == "" {
		return e.Message
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
}

// ValidationErrors collects every problem CUE found.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.String()
	}
	return strings.Join(msgs, "; ")
}

// configSchema closes the configuration so misspelled keys are errors.
const configSchema = `
#Duration: string & =~"^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"

#Config: {
	model?: {
		ndm?:       1 | 2 | 3
		ndf?:       int & >=1 & <=6
		precision?: "double" | "single"
	}
	backend?: {
		kind?:       "reference" | "engine" | "record"
		transcript?: string
		strict?:     bool
		store?:      bool
		redis?:      bool
	}
	engine?: {
		binary?:          string
		args?:            [...string]
		transport?:       "process" | "ssh" | "wasm"
		remote_path?:     string
		upload?:          bool
		start_timeout?:   #Duration
		command_timeout?: #Duration
	}
	ssh?: {
		host?:            string
		port?:            int & >0 & <=65535
		user?:            string
		password?:        string
		private_key?:     string
		known_hosts?:     string
		strict_host_key?: bool
		timeout?:         #Duration
		proxy_host?:      string
		proxy_user?:      string
	}
	store?: {
		path?: string
	}
	redis?: {
		addr?:       string
		db?:         int & >=0
		password?:   string
		key_prefix?: string
	}
	policy?: {
		enabled?:  bool
		paths?:    [...string]
		builtins?: bool
		watch?:    bool
	}
	telemetry?: {
		log_level?:  "trace" | "debug" | "info" | "warn" | "error"
		log_format?: "console" | "json"
		metrics?: {
			enabled?: bool
			listen?:  string
		}
		tracing?: {
			exporter?:      "otlp" | "stdout" | "none"
			endpoint?:      string
			insecure?:      bool
			sampling_rate?: number & >=0 & <=1
		}
	}
}
`

// decodeCUE evaluates a CUE file against the configuration schema and
// decodes the concrete result over cfg.
func decodeCUE(path string, data []byte, cfg *Config) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(configSchema, cue.Filename("o3-config-schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	val := ctx.CompileString(string(data), cue.Filename(path))
	if err := val.Err(); err != nil {
		return convertCUEErrors(err, path)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return convertCUEErrors(err, path)
	}

	// JSON is valid YAML, and the YAML decoder understands durations.
	out, err := unified.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to export CUE: %w", err)
	}
	return decodeYAML(out, cfg)
}

// convertCUEErrors flattens a CUE error into positioned validation errors.
// Positions in the user's file are preferred over positions in the schema.
func convertCUEErrors(err error, path string) error {
	var validationErrors ValidationErrors
	for _, e := range errors.Errors(err) {
		ve := ValidationError{Message: errors.Details(e, nil)}
		for i, pos := range errors.Positions(e) {
			if i > 0 && pos.Filename() != path {
				continue
			}
			ve.File = pos.Filename()
			ve.Line = pos.Line()
			ve.Column = pos.Column()
			if pos.Filename() == path {
				break
			}
		}
		validationErrors = append(validationErrors, ve)
	}
	if len(validationErrors) == 0 {
		return err
	}
	return validationErrors
}
