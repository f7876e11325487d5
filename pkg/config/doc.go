// Package config loads the o3 configuration.
//
// # Sources
//
// A configuration is built in three layers, later layers winning:
//
//  1. Default() values
//  2. a YAML (.yaml, .yml) or CUE (.cue) file
//  3. environment variables prefixed with O3_
//
// Environment names follow the section and key, e.g. O3_MODEL_NDM,
// O3_BACKEND_KIND or O3_TELEMETRY_TRACING_EXPORTER. List values are comma
// separated.
//
// # CUE Configuration
//
// CUE files are unified with a closed #Config definition, so unknown keys
// and out-of-range values are reported with their file position:
//
//	model: {
//	    ndm: 2
//	    ndf: 3
//	}
//	backend: kind: "engine"
//	engine: {
//	    binary:        "/opt/o3/o3-engine"
//	    start_timeout: "10s"
//	}
//
// # Validation
//
// Validate applies the struct tags through go-playground/validator and then
// checks the sections the chosen backend needs: the engine and, for the ssh
// transport, the ssh section; the store and redis sections only when the
// backend records to them.
package config
