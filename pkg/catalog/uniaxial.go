package catalog

import "github.com/o3go/o3go/pkg/command"

const uni = command.CategoryUniaxialMaterial

func uniaxial(opType string, fields ...command.Field) *command.Schema {
	return command.MustSchema(uni, "", opType, fields...)
}

var (
	elasticSchema      = uniaxial("Elastic", num("E"), num("eta"), optNum("Eneg"))
	elasticPPSchema    = uniaxial("ElasticPP", num("E"), num("epsyP"), optNum("epsyN"), optNum("eps0"))
	elasticPPGapSchema = uniaxial("ElasticPPGap", num("E"), num("Fy"), num("gap"), num("eta"),
		command.Required("damage", command.TypeEnum).OneOf("damage", "noDamage"))
	entSchema      = uniaxial("ENT", num("E"))
	parallelSchema = uniaxial("Parallel",
		command.Packet("materials", command.TypeRef).Of(uni),
		command.FlagPacket("factors", "-factor", command.TypeFloat),
	)
	seriesSchema    = uniaxial("Series", command.Packet("materials", command.TypeRef).Of(uni))
	hardeningSchema = uniaxial("Hardening", num("E"), num("sigmaY"), num("Hiso"), num("Hkin"), num("eta"))
	castSchema      = uniaxial("Cast",
		integer("n"), num("bo"), num("h"), num("fy"), num("E"), num("L"), num("b"),
		num("Ro"), num("cR1"), num("cR2"),
		optNum("a1"), optNum("a2"), optNum("a3"), optNum("a4"),
	)
	viscousDamperSchema = uniaxial("ViscousDamper",
		num("K"), num("Cd"), num("alpha"),
		optNum("LGap"), command.Optional("NM", command.TypeInt), optNum("RelTol"), optNum("AbsTol"),
		command.Optional("MaxHalf", command.TypeInt),
	)
	bilinearOilDamperSchema = uniaxial("BilinearOilDamper",
		num("K"), num("Cd"),
		optNum("Fr"), optNum("p"), optNum("LGap"), command.Optional("NM", command.TypeInt),
		optNum("RelTol"), optNum("AbsTol"), command.Optional("MaxHalf", command.TypeInt),
	)
	fatigueSchema = uniaxial("Fatigue", ref("other", uni),
		floatFlag("E0"), floatFlag("m"), floatFlag("min"), floatFlag("max"))
	minMaxSchema       = uniaxial("MinMax", ref("other", uni), floatFlag("min"), floatFlag("max"))
	elasticBilinSchema = uniaxial("ElasticBilin",
		num("EP1"), num("EP2"), num("epsP2"), optNum("EN1"), optNum("EN2"), optNum("epsN2"))
	elasticMultiLinearSchema = uniaxial("ElasticMultiLinear", num("eta"),
		command.FlagPacket("strain", "-strain", command.TypeFloat),
		command.FlagPacket("stress", "-stress", command.TypeFloat),
	)
	multiLinearSchema     = uniaxial("MultiLinear", command.Packet("points", command.TypeFloat))
	initStrainSchema      = uniaxial("InitStrainMaterial", ref("other", uni), num("initStrain"))
	initStressSchema      = uniaxial("InitStressMaterial", ref("other", uni), num("initStress"))
	pathIndependentSchema = uniaxial("PathIndependent", ref("other", uni))
	selfCenteringSchema   = uniaxial("SelfCentering",
		num("k1"), num("k2"), num("sigAct"), num("beta"),
		num("epsSlip"), num("epsBear"), optNum("rBear"),
	)
	viscousSchema = uniaxial("Viscous", num("C"), num("alpha"))
	boucWenSchema = uniaxial("BoucWen",
		num("alpha"), num("ko"), num("n"), num("gamma"), num("beta"), num("Ao"),
		num("deltaA"), num("deltaNu"), num("deltaEta"),
	)
	impactSchema        = uniaxial("ImpactMaterial", num("K1"), num("K2"), num("sigy"), num("gap"))
	hyperbolicGapSchema = uniaxial("HyperbolicGapMaterial", num("Kmax"), num("Kur"), num("Rf"), num("Fult"), num("gap"))
	barSlipSchema       = uniaxial("BarSlip",
		num("fc"), num("fy"), num("Es"), num("fu"), num("Eh"), num("db"), num("ld"),
		integer("nb"), num("depth"), num("height"), num("ancLratio"),
		command.Required("bsFlag", command.TypeEnum).OneOf(BondStrong, BondWeak),
		command.Required("type", command.TypeEnum).OneOf(BarBeamTop, BarBeamBottom, BarColumn),
		command.Optional("damage", command.TypeEnum).OneOf("Damage", "NoDamage"),
		command.Optional("unit", command.TypeEnum).OneOf("psi", "MPa", "Pa", "psf", "ksi", "ksf"),
	)

	uniaxialSchemas = []*command.Schema{
		elasticSchema, elasticPPSchema, elasticPPGapSchema, entSchema, parallelSchema,
		seriesSchema, hardeningSchema, castSchema, viscousDamperSchema, bilinearOilDamperSchema,
		fatigueSchema, minMaxSchema, elasticBilinSchema, elasticMultiLinearSchema,
		multiLinearSchema, initStrainSchema, initStressSchema, pathIndependentSchema,
		selfCenteringSchema, viscousSchema, boucWenSchema, impactSchema, hyperbolicGapSchema,
		barSlipSchema,
	}
)

// Elastic is a linear elastic material, with an optional compression modulus.
type Elastic struct {
	E    float64
	Eta  float64
	Eneg command.Opt[float64]
}

func (m Elastic) Schema() *command.Schema { return elasticSchema }

func (m Elastic) Values() command.Values {
	return command.Values{}.Float("E", m.E).Float("eta", m.Eta).OptFloat("Eneg", m.Eneg)
}

// ElasticPP is elastic perfectly plastic.
type ElasticPP struct {
	E     float64
	EpsyP float64
	EpsyN command.Opt[float64]
	Eps0  command.Opt[float64]
}

func (m ElasticPP) Schema() *command.Schema { return elasticPPSchema }

func (m ElasticPP) Values() command.Values {
	return command.Values{}.
		Float("E", m.E).
		Float("epsyP", m.EpsyP).
		OptFloat("epsyN", m.EpsyN).
		OptFloat("eps0", m.Eps0)
}

// ElasticPPGap is elastic perfectly plastic with an initial gap. Damage
// accumulates when Damage is set.
type ElasticPPGap struct {
	E      float64
	Fy     float64
	Gap    float64
	Eta    float64
	Damage bool
}

func (m ElasticPPGap) Schema() *command.Schema { return elasticPPGapSchema }

func (m ElasticPPGap) Values() command.Values {
	damage := "noDamage"
	if m.Damage {
		damage = "damage"
	}
	return command.Values{}.
		Float("E", m.E).
		Float("Fy", m.Fy).
		Float("gap", m.Gap).
		Float("eta", m.Eta).
		Str("damage", damage)
}

// ENT is elastic with no tension.
type ENT struct {
	E float64
}

func (m ENT) Schema() *command.Schema { return entSchema }

func (m ENT) Values() command.Values { return command.Values{}.Float("E", m.E) }

// Parallel combines materials in parallel. Factors, when set, scale each one.
type Parallel struct {
	Materials []command.Referent
	Factors   []float64
}

func (m Parallel) Schema() *command.Schema { return parallelSchema }

func (m Parallel) Values() command.Values {
	v := command.Values{}.RefList("materials", m.Materials...)
	if m.Factors != nil {
		v = v.Floats("factors", m.Factors)
	}
	return v
}

// Series combines materials in series.
type Series struct {
	Materials []command.Referent
}

func (m Series) Schema() *command.Schema { return seriesSchema }

func (m Series) Values() command.Values {
	return command.Values{}.RefList("materials", m.Materials...)
}

// Hardening has combined linear kinematic and isotropic hardening.
type Hardening struct {
	E, SigmaY, Hiso, Hkin, Eta float64
}

func (m Hardening) Schema() *command.Schema { return hardeningSchema }

func (m Hardening) Values() command.Values {
	return command.Values{}.
		Float("E", m.E).
		Float("sigmaY", m.SigmaY).
		Float("Hiso", m.Hiso).
		Float("Hkin", m.Hkin).
		Float("eta", m.Eta)
}

// Cast is the cast fuse material. The isotropic hardening parameters A1 to
// A4 are positional: each one requires the ones before it.
type Cast struct {
	N                                int
	Bo, H, Fy, E, L, B, Ro, CR1, CR2 float64
	A1, A2, A3, A4                   command.Opt[float64]
}

func (m Cast) Schema() *command.Schema { return castSchema }

func (m Cast) Values() command.Values {
	return command.Values{}.
		Int("n", m.N).
		Float("bo", m.Bo).
		Float("h", m.H).
		Float("fy", m.Fy).
		Float("E", m.E).
		Float("L", m.L).
		Float("b", m.B).
		Float("Ro", m.Ro).
		Float("cR1", m.CR1).
		Float("cR2", m.CR2).
		OptFloat("a1", m.A1).
		OptFloat("a2", m.A2).
		OptFloat("a3", m.A3).
		OptFloat("a4", m.A4)
}

// ViscousDamper is a Maxwell model of a linear or nonlinear viscous damper.
type ViscousDamper struct {
	K, Cd, Alpha   float64
	LGap           command.Opt[float64]
	NM             command.Opt[int]
	RelTol, AbsTol command.Opt[float64]
	MaxHalf        command.Opt[int]
}

func (m ViscousDamper) Schema() *command.Schema { return viscousDamperSchema }

func (m ViscousDamper) Values() command.Values {
	return command.Values{}.
		Float("K", m.K).
		Float("Cd", m.Cd).
		Float("alpha", m.Alpha).
		OptFloat("LGap", m.LGap).
		OptInt("NM", m.NM).
		OptFloat("RelTol", m.RelTol).
		OptFloat("AbsTol", m.AbsTol).
		OptInt("MaxHalf", m.MaxHalf)
}

// BilinearOilDamper models an oil damper with a relief valve.
type BilinearOilDamper struct {
	K, Cd          float64
	Fr, P, LGap    command.Opt[float64]
	NM             command.Opt[int]
	RelTol, AbsTol command.Opt[float64]
	MaxHalf        command.Opt[int]
}

func (m BilinearOilDamper) Schema() *command.Schema { return bilinearOilDamperSchema }

func (m BilinearOilDamper) Values() command.Values {
	return command.Values{}.
		Float("K", m.K).
		Float("Cd", m.Cd).
		OptFloat("Fr", m.Fr).
		OptFloat("p", m.P).
		OptFloat("LGap", m.LGap).
		OptInt("NM", m.NM).
		OptFloat("RelTol", m.RelTol).
		OptFloat("AbsTol", m.AbsTol).
		OptInt("MaxHalf", m.MaxHalf)
}

// Fatigue wraps another material and fails it after a fatigue life.
type Fatigue struct {
	Other    command.Referent
	E0, M    command.Opt[float64]
	Min, Max command.Opt[float64]
}

func (m Fatigue) Schema() *command.Schema { return fatigueSchema }

func (m Fatigue) Values() command.Values {
	return command.Values{}.
		Ref("other", m.Other).
		OptFloat("E0", m.E0).
		OptFloat("m", m.M).
		OptFloat("min", m.Min).
		OptFloat("max", m.Max)
}

// MinMax wraps another material and fails it outside a strain range.
type MinMax struct {
	Other    command.Referent
	Min, Max command.Opt[float64]
}

func (m MinMax) Schema() *command.Schema { return minMaxSchema }

func (m MinMax) Values() command.Values {
	return command.Values{}.
		Ref("other", m.Other).
		OptFloat("min", m.Min).
		OptFloat("max", m.Max)
}

// ElasticBilin is bilinear elastic. The compression branch defaults to the
// tension one; EN1, EN2 and EpsN2 are positional and chain in that order.
type ElasticBilin struct {
	EP1, EP2, EpsP2 float64
	EN1, EN2, EpsN2 command.Opt[float64]
}

func (m ElasticBilin) Schema() *command.Schema { return elasticBilinSchema }

func (m ElasticBilin) Values() command.Values {
	return command.Values{}.
		Float("EP1", m.EP1).
		Float("EP2", m.EP2).
		Float("epsP2", m.EpsP2).
		OptFloat("EN1", m.EN1).
		OptFloat("EN2", m.EN2).
		OptFloat("epsN2", m.EpsN2)
}

// ElasticMultiLinear is nonlinear elastic along a piecewise-linear curve.
type ElasticMultiLinear struct {
	Eta    float64
	Strain []float64
	Stress []float64
}

func (m ElasticMultiLinear) Schema() *command.Schema { return elasticMultiLinearSchema }

func (m ElasticMultiLinear) Values() command.Values {
	v := command.Values{}.Float("eta", m.Eta)
	if m.Strain != nil {
		v = v.Floats("strain", m.Strain)
	}
	if m.Stress != nil {
		v = v.Floats("stress", m.Stress)
	}
	return v
}

// MultiLinear is a multilinear backbone given as strain, stress pairs.
type MultiLinear struct {
	Points []float64
}

func (m MultiLinear) Schema() *command.Schema { return multiLinearSchema }

func (m MultiLinear) Values() command.Values {
	return command.Values{}.Floats("points", m.Points)
}

// InitStrainMaterial wraps another material with an initial strain.
type InitStrainMaterial struct {
	Other      command.Referent
	InitStrain float64
}

func (m InitStrainMaterial) Schema() *command.Schema { return initStrainSchema }

func (m InitStrainMaterial) Values() command.Values {
	return command.Values{}.Ref("other", m.Other).Float("initStrain", m.InitStrain)
}

// InitStressMaterial wraps another material with an initial stress.
type InitStressMaterial struct {
	Other      command.Referent
	InitStress float64
}

func (m InitStressMaterial) Schema() *command.Schema { return initStressSchema }

func (m InitStressMaterial) Values() command.Values {
	return command.Values{}.Ref("other", m.Other).Float("initStress", m.InitStress)
}

// PathIndependent makes another material path independent.
type PathIndependent struct {
	Other command.Referent
}

func (m PathIndependent) Schema() *command.Schema { return pathIndependentSchema }

func (m PathIndependent) Values() command.Values {
	return command.Values{}.Ref("other", m.Other)
}

// SelfCentering is a flag-shaped self-centering material. A zero EpsSlip
// means no slippage and a zero EpsBear means no bearing; both are always
// sent so RBear can follow them.
type SelfCentering struct {
	K1, K2, SigAct, Beta float64
	EpsSlip, EpsBear     float64
	RBear                command.Opt[float64]
}

func (m SelfCentering) Schema() *command.Schema { return selfCenteringSchema }

func (m SelfCentering) Values() command.Values {
	return command.Values{}.
		Float("k1", m.K1).
		Float("k2", m.K2).
		Float("sigAct", m.SigAct).
		Float("beta", m.Beta).
		Float("epsSlip", m.EpsSlip).
		Float("epsBear", m.EpsBear).
		OptFloat("rBear", m.RBear)
}

// Viscous is a nonlinear viscous damper, stress = C * rate^alpha.
type Viscous struct {
	C, Alpha float64
}

func (m Viscous) Schema() *command.Schema { return viscousSchema }

func (m Viscous) Values() command.Values {
	return command.Values{}.Float("C", m.C).Float("alpha", m.Alpha)
}

// BoucWen is the smooth hysteretic Bouc-Wen model with degradation.
type BoucWen struct {
	Alpha, Ko, N, Gamma, Beta, Ao float64
	DeltaA, DeltaNu, DeltaEta     float64
}

func (m BoucWen) Schema() *command.Schema { return boucWenSchema }

func (m BoucWen) Values() command.Values {
	return command.Values{}.
		Float("alpha", m.Alpha).
		Float("ko", m.Ko).
		Float("n", m.N).
		Float("gamma", m.Gamma).
		Float("beta", m.Beta).
		Float("Ao", m.Ao).
		Float("deltaA", m.DeltaA).
		Float("deltaNu", m.DeltaNu).
		Float("deltaEta", m.DeltaEta)
}

// ImpactMaterial is a bilinear contact material with a gap.
type ImpactMaterial struct {
	K1, K2, Sigy, Gap float64
}

func (m ImpactMaterial) Schema() *command.Schema { return impactSchema }

func (m ImpactMaterial) Values() command.Values {
	return command.Values{}.
		Float("K1", m.K1).
		Float("K2", m.K2).
		Float("sigy", m.Sigy).
		Float("gap", m.Gap)
}

// HyperbolicGapMaterial is a compression-only gap with hyperbolic loading.
type HyperbolicGapMaterial struct {
	Kmax, Kur, Rf, Fult, Gap float64
}

func (m HyperbolicGapMaterial) Schema() *command.Schema { return hyperbolicGapSchema }

func (m HyperbolicGapMaterial) Values() command.Values {
	return command.Values{}.
		Float("Kmax", m.Kmax).
		Float("Kur", m.Kur).
		Float("Rf", m.Rf).
		Float("Fult", m.Fult).
		Float("gap", m.Gap)
}

// BarSlip choices.
const (
	BondStrong = "strong"
	BondWeak   = "weak"

	BarBeamTop    = "beamtop"
	BarBeamBottom = "beambot"
	BarColumn     = "column"
)

// BarSlip models bar slip at a beam-column joint.
type BarSlip struct {
	Fc, Fy, Es, Fu, Eh, Db, Ld float64
	Nb                         int
	Depth, Height, AncLratio   float64
	BsFlag                     string
	Type                       string
	Damage                     command.Opt[string]
	Unit                       command.Opt[string]
}

func (m BarSlip) Schema() *command.Schema { return barSlipSchema }

func (m BarSlip) Values() command.Values {
	return command.Values{}.
		Float("fc", m.Fc).
		Float("fy", m.Fy).
		Float("Es", m.Es).
		Float("fu", m.Fu).
		Float("Eh", m.Eh).
		Float("db", m.Db).
		Float("ld", m.Ld).
		Int("nb", m.Nb).
		Float("depth", m.Depth).
		Float("height", m.Height).
		Float("ancLratio", m.AncLratio).
		Str("bsFlag", m.BsFlag).
		Str("type", m.Type).
		OptStr("damage", m.Damage).
		OptStr("unit", m.Unit)
}
