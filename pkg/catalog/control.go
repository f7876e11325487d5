package catalog

import (
	"github.com/o3go/o3go/pkg/command"
)

func control(cmd, opType string, fields ...command.Field) *command.Schema {
	return command.MustSchema(command.CategoryControl, cmd, opType, fields...)
}

// convergence tests share their arguments
func convergenceTest(opType string) *command.Schema {
	return control("test", opType, num("tol"), integer("maxIter"),
		command.Optional("printFlag", command.TypeInt), command.Optional("normType", command.TypeInt))
}

var controlSchemas = []*command.Schema{
	control("constraints", "Plain"),
	control("constraints", "Transformation"),
	control("constraints", "Penalty", num("alphaS"), num("alphaM")),
	control("constraints", "Lagrange", optNum("alphaS"), optNum("alphaM")),

	control("numberer", "Plain"),
	control("numberer", "RCM"),
	control("numberer", "AMD"),

	control("system", "BandGeneral"),
	control("system", "BandSPD"),
	control("system", "ProfileSPD"),
	control("system", "SparseGeneral", command.Switch("pivot", "-piv")),
	control("system", "SparseSYM"),
	control("system", "UmfPack"),
	control("system", "FullGeneral"),

	convergenceTest("NormDispIncr"),
	convergenceTest("NormUnbalance"),
	convergenceTest("EnergyIncr"),

	control("algorithm", "Linear"),
	control("algorithm", "Newton",
		command.Switch("initial", "-initial"), command.Switch("initialThenCurrent", "-initialThenCurrent")),
	control("algorithm", "ModifiedNewton", command.Switch("initial", "-initial")),

	control("integrator", "LoadControl",
		num("increment"), command.Optional("numIter", command.TypeInt), optNum("minLambda"), optNum("maxLambda")),
	control("integrator", "Newmark", num("gamma"), num("beta")),
	control("integrator", "HHT", num("alpha"), optNum("gamma"), optNum("beta")),

	control("analysis", "Static"),
	control("analysis", "Transient"),
	control("analysis", "VariableTransient"),

	control("analyze", "",
		integer("steps"), optNum("dt"), optNum("dtMin"), optNum("dtMax"), command.Optional("Jd", command.TypeInt)),
	control("rayleigh", "", num("alphaM"), num("betaK"), num("betaKinit"), num("betaKcomm")),
	control("setTime", "", num("time")),
	control("getTime", ""),
	control("loadConst", "", floatFlag("time")),
	control("wipeAnalysis", ""),
	control("wipe", ""),
	control("updateMaterialStage", "",
		command.Flag("material", "-material", command.TypeRef).Of(command.CategoryNDMaterial),
		command.Flag("stage", "-stage", command.TypeInt),
	),
}

// schemaOf finds a control schema by its command and op type. An unknown
// op type yields nil, which command.New reports as a parameter error.
func schemaOf(cmd, opType string) *command.Schema {
	s, ok := Default().Lookup(cmd, opType)
	if !ok || s.OpType() != opType {
		return nil
	}
	return s
}

// Constraints selects the constraint handler: Plain, Transformation,
// Penalty or Lagrange.
type Constraints struct {
	Handler        string
	AlphaS, AlphaM command.Opt[float64]
}

func (c Constraints) Schema() *command.Schema { return schemaOf("constraints", c.Handler) }

func (c Constraints) Values() command.Values {
	return command.Values{}.OptFloat("alphaS", c.AlphaS).OptFloat("alphaM", c.AlphaM)
}

// Numberer selects the DOF numberer: Plain, RCM or AMD.
type Numberer struct {
	Type string
}

func (n Numberer) Schema() *command.Schema { return schemaOf("numberer", n.Type) }

func (n Numberer) Values() command.Values { return command.Values{} }

// System selects the linear system of equations and solver.
type System struct {
	Type  string
	Pivot bool
}

func (s System) Schema() *command.Schema { return schemaOf("system", s.Type) }

func (s System) Values() command.Values { return command.Values{}.Switch("pivot", s.Pivot) }

// Test selects the convergence test: NormDispIncr, NormUnbalance or EnergyIncr.
type Test struct {
	Type      string
	Tol       float64
	MaxIter   int
	PrintFlag command.Opt[int]
	NormType  command.Opt[int]
}

func (t Test) Schema() *command.Schema { return schemaOf("test", t.Type) }

func (t Test) Values() command.Values {
	return command.Values{}.
		Float("tol", t.Tol).
		Int("maxIter", t.MaxIter).
		OptInt("printFlag", t.PrintFlag).
		OptInt("normType", t.NormType)
}

// Algorithm selects the solution algorithm: Linear, Newton or ModifiedNewton.
type Algorithm struct {
	Type               string
	Initial            bool
	InitialThenCurrent bool
}

func (a Algorithm) Schema() *command.Schema { return schemaOf("algorithm", a.Type) }

func (a Algorithm) Values() command.Values {
	return command.Values{}.
		Switch("initial", a.Initial).
		Switch("initialThenCurrent", a.InitialThenCurrent)
}

// LoadControl is the static integrator with a fixed load increment.
type LoadControl struct {
	Increment            float64
	NumIter              command.Opt[int]
	MinLambda, MaxLambda command.Opt[float64]
}

func (i LoadControl) Schema() *command.Schema { return schemaOf("integrator", "LoadControl") }

func (i LoadControl) Values() command.Values {
	return command.Values{}.
		Float("increment", i.Increment).
		OptInt("numIter", i.NumIter).
		OptFloat("minLambda", i.MinLambda).
		OptFloat("maxLambda", i.MaxLambda)
}

// Newmark is the Newmark transient integrator.
type Newmark struct {
	Gamma, Beta float64
}

func (i Newmark) Schema() *command.Schema { return schemaOf("integrator", "Newmark") }

func (i Newmark) Values() command.Values {
	return command.Values{}.Float("gamma", i.Gamma).Float("beta", i.Beta)
}

// HHT is the Hilber-Hughes-Taylor transient integrator.
type HHT struct {
	Alpha       float64
	Gamma, Beta command.Opt[float64]
}

func (i HHT) Schema() *command.Schema { return schemaOf("integrator", "HHT") }

func (i HHT) Values() command.Values {
	return command.Values{}.
		Float("alpha", i.Alpha).
		OptFloat("gamma", i.Gamma).
		OptFloat("beta", i.Beta)
}

// Analysis selects the analysis type: Static, Transient or VariableTransient.
type Analysis struct {
	Type string
}

func (a Analysis) Schema() *command.Schema { return schemaOf("analysis", a.Type) }

func (a Analysis) Values() command.Values { return command.Values{} }

// Analyze runs Steps analysis steps. Transient analyses need Dt.
type Analyze struct {
	Steps        int
	Dt           command.Opt[float64]
	DtMin, DtMax command.Opt[float64]
	Jd           command.Opt[int]
}

func (a Analyze) Schema() *command.Schema { return schemaOf("analyze", "") }

func (a Analyze) Values() command.Values {
	return command.Values{}.
		Int("steps", a.Steps).
		OptFloat("dt", a.Dt).
		OptFloat("dtMin", a.DtMin).
		OptFloat("dtMax", a.DtMax).
		OptInt("Jd", a.Jd)
}

// Rayleigh sets Rayleigh damping factors.
type Rayleigh struct {
	AlphaM, BetaK, BetaKInit, BetaKComm float64
}

func (r Rayleigh) Schema() *command.Schema { return schemaOf("rayleigh", "") }

func (r Rayleigh) Values() command.Values {
	return command.Values{}.
		Float("alphaM", r.AlphaM).
		Float("betaK", r.BetaK).
		Float("betaKinit", r.BetaKInit).
		Float("betaKcomm", r.BetaKComm)
}

// SetTime sets the domain pseudo-time.
type SetTime struct {
	Time float64
}

func (s SetTime) Schema() *command.Schema { return schemaOf("setTime", "") }

func (s SetTime) Values() command.Values { return command.Values{}.Float("time", s.Time) }

// GetTime asks for the domain pseudo-time; it is the first status value.
type GetTime struct{}

func (GetTime) Schema() *command.Schema { return schemaOf("getTime", "") }

func (GetTime) Values() command.Values { return command.Values{} }

// LoadConst holds the current loads constant, optionally resetting the time.
type LoadConst struct {
	Time command.Opt[float64]
}

func (l LoadConst) Schema() *command.Schema { return schemaOf("loadConst", "") }

func (l LoadConst) Values() command.Values { return command.Values{}.OptFloat("time", l.Time) }

// WipeAnalysis removes the analysis objects but keeps the model.
type WipeAnalysis struct{}

func (WipeAnalysis) Schema() *command.Schema { return schemaOf("wipeAnalysis", "") }

func (WipeAnalysis) Values() command.Values { return command.Values{} }

// UpdateMaterialStage switches a soil material between its elastic (0)
// and plastic (1) stage.
type UpdateMaterialStage struct {
	Material command.Referent
	Stage    int
}

func (u UpdateMaterialStage) Schema() *command.Schema { return schemaOf("updateMaterialStage", "") }

func (u UpdateMaterialStage) Values() command.Values {
	return command.Values{}.Ref("material", u.Material).Int("stage", u.Stage)
}
