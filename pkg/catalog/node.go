package catalog

import "github.com/o3go/o3go/pkg/command"

// Fixity values for Fix.
const (
	Free  = 0
	Fixed = 1
)

var (
	nodeSchema = command.MustSchema(command.CategoryNode, "", "",
		command.Packet("coords", command.TypeFloat),
		command.FlagPacket("mass", "-mass", command.TypeFloat),
	)
	fixSchema = command.MustSchema(command.CategoryControl, "fix", "",
		command.Required("node", command.TypeRef).Of(command.CategoryNode),
		command.Packet("fixity", command.TypeInt),
	)
	equalDOFSchema = command.MustSchema(command.CategoryControl, "equalDOF", "",
		command.Required("retained", command.TypeRef).Of(command.CategoryNode),
		command.Required("constrained", command.TypeRef).Of(command.CategoryNode),
		command.Packet("dofs", command.TypeInt),
	)
	loadSchema = command.MustSchema(command.CategoryControl, "load", "",
		command.Required("node", command.TypeRef).Of(command.CategoryNode),
		command.Packet("values", command.TypeFloat),
	)
	massSchema = command.MustSchema(command.CategoryControl, "mass", "",
		command.Required("node", command.TypeRef).Of(command.CategoryNode),
		command.Packet("values", command.TypeFloat),
	)

	nodeSchemas = []*command.Schema{nodeSchema, fixSchema, equalDOFSchema, loadSchema, massSchema}
)

// Node is a point of the mesh. Coords has one entry per model dimension;
// Mass, when set, one per degree of freedom.
type Node struct {
	Coords []float64
	Mass   []float64
}

func (n Node) Schema() *command.Schema { return nodeSchema }

func (n Node) Values() command.Values {
	v := command.Values{}.Floats("coords", n.Coords)
	if n.Mass != nil {
		v = v.Floats("mass", n.Mass)
	}
	return v
}

// Fix constrains the degrees of freedom of a node, one Free or Fixed entry per DOF.
type Fix struct {
	Node   command.Referent
	Fixity []int
}

func (f Fix) Schema() *command.Schema { return fixSchema }

func (f Fix) Values() command.Values {
	return command.Values{}.Ref("node", f.Node).Ints("fixity", f.Fixity)
}

// EqualDOF ties DOFs of the constrained node to the retained node.
type EqualDOF struct {
	Retained    command.Referent
	Constrained command.Referent
	DOFs        []int
}

func (e EqualDOF) Schema() *command.Schema { return equalDOFSchema }

func (e EqualDOF) Values() command.Values {
	return command.Values{}.
		Ref("retained", e.Retained).
		Ref("constrained", e.Constrained).
		Ints("dofs", e.DOFs)
}

// Load applies a nodal load within the current pattern.
type Load struct {
	Node   command.Referent
	Forces []float64
}

func (l Load) Schema() *command.Schema { return loadSchema }

func (l Load) Values() command.Values {
	return command.Values{}.Ref("node", l.Node).Floats("values", l.Forces)
}

// Mass sets the lumped mass of a node.
type Mass struct {
	Node  command.Referent
	Terms []float64
}

func (m Mass) Schema() *command.Schema { return massSchema }

func (m Mass) Values() command.Values {
	return command.Values{}.Ref("node", m.Node).Floats("values", m.Terms)
}
