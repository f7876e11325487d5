// Package policy checks commands against Open Policy Agent (OPA) rules
// before they reach the engine.
//
// A policy is a Rego module with a deny set. Every entry of the set is a
// violation, either a message string or an object with message and
// severity fields. Error violations block the command; warnings and info
// are logged and the command goes through.
//
// # Input
//
// Policies see one command at a time:
//
//	{
//	  "command": "fix", "op_type": "", "category": "control",
//	  "tag": 0, "seq": 12,
//	  "args": [1, 1, 1, 0],
//	  "fields": {"node": [1], "fixity": [1, 1, 0]},
//	  "model": {"ndm": 2, "ndf": 3}
//	}
//
// fields is only filled in when the command's schema is known. References
// appear as their tags.
//
// # Usage
//
//	eng, err := policy.NewEngine(logger)
//	if err != nil {
//	    return err
//	}
//	if err := eng.LoadPolicies(ctx, []string{"policies/"}); err != nil {
//	    return err
//	}
//	guard := policy.NewGuard(eng, catalog.Default(), backend, logger)
//	s, err := command.Open(ctx, cfg, guard)
//
// A blocked command fails with a policy error (command.IsPolicy) and is
// never emitted.
//
// # Writing Policies
//
//	# Keeps runs short.
//	# severity: warning
//	package o3.custom
//
//	import rego.v1
//
//	deny contains msg if {
//	    input.command == "analyze"
//	    input.fields.steps[0] > 1000
//	    msg := "more than 1000 steps"
//	}
//
// The leading comment becomes the description and the severity comment
// sets the default severity, which is error when absent. JSON files hold a
// serialized Policy instead.
//
// # Built-in Policies
//
//   - analyze-steps: analyze needs positive steps and dt
//   - fixity-arity: fix has one 0/1 flag per degree of freedom
//   - node-coordinates: node has one coordinate per dimension
//   - nodal-vector: load, mass and node -mass give one value per degree of
//     freedom (warning)
//
// Engine.Watch reloads policy files when they change. A reload that fails
// to compile keeps the previous set.
package policy
