package policy

import (
	"time"
)

// BuiltinPolicies returns the policies every engine starts with.
func BuiltinPolicies() []Policy {
	return []Policy{
		analyzeStepsPolicy(),
		fixityArityPolicy(),
		nodeCoordinatesPolicy(),
		nodalVectorPolicy(),
	}
}

func builtin(name, description string, severity Severity, commands, tags []string, rego string) Policy {
	return Policy{
		Name:        name,
		Description: description,
		Severity:    severity,
		Enabled:     true,
		Builtin:     true,
		Commands:    commands,
		Tags:        tags,
		UpdatedAt:   time.Now(),
		Rego:        rego,
	}
}

// analyzeStepsPolicy rejects analyze calls that cannot make progress.
func analyzeStepsPolicy() Policy {
	return builtin("analyze-steps",
		"Analyze needs a positive step count and, when given, a positive time step",
		SeverityError, []string{"analyze"}, []string{"analysis"},
		`package o3.policies.analyze

import rego.v1

deny contains violation if {
	input.command == "analyze"
	steps := input.fields.steps[0]
	steps <= 0
	violation := {"message": sprintf("analyze needs at least one step, got %d", [steps])}
}

deny contains violation if {
	input.command == "analyze"
	dt := input.fields.dt[0]
	dt <= 0
	violation := {"message": sprintf("analyze time step must be positive, got %v", [dt])}
}
`)
}

// fixityArityPolicy checks fix supplies one flag per degree of freedom.
func fixityArityPolicy() Policy {
	return builtin("fixity-arity",
		"fix must give one fixity flag per degree of freedom",
		SeverityError, []string{"fix"}, []string{"constraints"},
		`package o3.policies.fixity

import rego.v1

deny contains violation if {
	input.command == "fix"
	input.model.ndf > 0
	n := count(input.fields.fixity)
	n != input.model.ndf
	violation := {"message": sprintf("fix on node %d has %d flags, model has ndf %d", [input.fields.node[0], n, input.model.ndf])}
}

deny contains violation if {
	input.command == "fix"
	some flag in input.fields.fixity
	not flag in {0, 1}
	violation := {"message": sprintf("fixity flags are 0 or 1, got %v", [flag])}
}
`)
}

// nodeCoordinatesPolicy checks nodes have one coordinate per dimension.
func nodeCoordinatesPolicy() Policy {
	return builtin("node-coordinates",
		"node must give one coordinate per model dimension",
		SeverityError, []string{"node"}, []string{"geometry"},
		`package o3.policies.node

import rego.v1

deny contains violation if {
	input.command == "node"
	input.model.ndm > 0
	n := count(input.fields.coords)
	n != input.model.ndm
	violation := {"message": sprintf("node %d has %d coordinates, model has ndm %d", [input.tag, n, input.model.ndm])}
}
`)
}

// nodalVectorPolicy warns when a nodal load or mass does not cover every
// degree of freedom. The engine pads or truncates, which is rarely meant.
func nodalVectorPolicy() Policy {
	return builtin("nodal-vector",
		"Nodal loads and masses should give one value per degree of freedom",
		SeverityWarning, []string{"load", "mass", "node"}, []string{"loads"},
		`package o3.policies.nodal

import rego.v1

vector_commands := {"load", "mass"}

deny contains violation if {
	input.command in vector_commands
	input.model.ndf > 0
	n := count(input.fields.values)
	n != input.model.ndf
	violation := {"message": sprintf("%s on node %d has %d values, model has ndf %d", [input.command, input.fields.node[0], n, input.model.ndf])}
}

deny contains violation if {
	input.command == "node"
	input.fields.mass
	input.model.ndf > 0
	n := count(input.fields.mass)
	n != input.model.ndf
	violation := {"message": sprintf("node %d has %d mass values, model has ndf %d", [input.tag, n, input.model.ndf])}
}
`)
}
