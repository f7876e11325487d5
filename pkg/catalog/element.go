package catalog

import "github.com/o3go/o3go/pkg/command"

// Quad formulations.
const (
	PlaneStrain = "PlaneStrain"
	PlaneStress = "PlaneStress"
)

var (
	quadSchema = command.MustSchema(command.CategoryElement, "", "quad",
		command.Packet("nodes", command.TypeRef).Of(command.CategoryNode).WithLen(4),
		num("thick"),
		command.Required("type", command.TypeEnum).OneOf(PlaneStrain, PlaneStress),
		ref("material", command.CategoryNDMaterial),
		optNum("pressure"), optNum("rho"), optNum("b1"), optNum("b2"),
	)
	zeroLengthSchema = command.MustSchema(command.CategoryElement, "", "zeroLength",
		command.Packet("nodes", command.TypeRef).Of(command.CategoryNode).WithLen(2),
		command.FlagPacket("materials", "-mat", command.TypeRef).Of(command.CategoryUniaxialMaterial),
		command.FlagPacket("dirs", "-dir", command.TypeInt),
		command.Flag("doRayleigh", "-doRayleigh", command.TypeInt),
		command.FlagPacket("orient", "-orient", command.TypeFloat),
	)
	trussSchema = command.MustSchema(command.CategoryElement, "", "Truss",
		command.Packet("nodes", command.TypeRef).Of(command.CategoryNode).WithLen(2),
		num("A"),
		ref("material", command.CategoryUniaxialMaterial),
		floatFlag("rho"),
		command.Flag("cMass", "-cMass", command.TypeInt),
		command.Flag("doRayleigh", "-doRayleigh", command.TypeInt),
	)

	elementSchemas = []*command.Schema{quadSchema, zeroLengthSchema, trussSchema}
)

// Quad is a four-node plane element. Nodes go counter-clockwise. The body
// force terms are positional: B2 requires Pressure, Rho and B1.
type Quad struct {
	Nodes                 [4]command.Referent
	Thick                 float64
	Type                  string
	Material              command.Referent
	Pressure, Rho, B1, B2 command.Opt[float64]
}

func (e Quad) Schema() *command.Schema { return quadSchema }

func (e Quad) Values() command.Values {
	return command.Values{}.
		RefList("nodes", e.Nodes[:]...).
		Float("thick", e.Thick).
		Str("type", e.Type).
		Ref("material", e.Material).
		OptFloat("pressure", e.Pressure).
		OptFloat("rho", e.Rho).
		OptFloat("b1", e.B1).
		OptFloat("b2", e.B2)
}

// ZeroLength connects two coincident nodes through one material per
// direction.
type ZeroLength struct {
	Nodes      [2]command.Referent
	Materials  []command.Referent
	Dirs       []int
	DoRayleigh command.Opt[int]
	Orient     []float64
}

func (e ZeroLength) Schema() *command.Schema { return zeroLengthSchema }

func (e ZeroLength) Values() command.Values {
	v := command.Values{}.
		RefList("nodes", e.Nodes[:]...).
		RefList("materials", e.Materials...).
		Ints("dirs", e.Dirs).
		OptInt("doRayleigh", e.DoRayleigh)
	if e.Orient != nil {
		v = v.Floats("orient", e.Orient)
	}
	return v
}

// Truss is a two-node axial element.
type Truss struct {
	Nodes      [2]command.Referent
	A          float64
	Material   command.Referent
	Rho        command.Opt[float64]
	CMass      command.Opt[int]
	DoRayleigh command.Opt[int]
}

func (e Truss) Schema() *command.Schema { return trussSchema }

func (e Truss) Values() command.Values {
	return command.Values{}.
		RefList("nodes", e.Nodes[:]...).
		Float("A", e.A).
		Ref("material", e.Material).
		OptFloat("rho", e.Rho).
		OptInt("cMass", e.CMass).
		OptInt("doRayleigh", e.DoRayleigh)
}
