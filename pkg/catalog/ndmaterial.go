package catalog

import "github.com/o3go/o3go/pkg/command"

var (
	elasticIsotropicSchema = command.MustSchema(command.CategoryNDMaterial, "", "ElasticIsotropic",
		num("E"), num("nu"), optNum("rho"))
	pimySchema = command.MustSchema(command.CategoryNDMaterial, "", "PressureIndependMultiYield",
		integer("nd"), num("rho"), num("refShearModul"), num("refBulkModul"), num("cohesi"), num("peakShearStra"),
		optNum("frictionAng"), optNum("refPress"), optNum("pressDependCoe"),
		command.Optional("noYieldSurf", command.TypeInt),
		command.OptionalPacket("surfaces", command.TypeFloat),
	)

	ndSchemas = []*command.Schema{elasticIsotropicSchema, pimySchema}
)

// ElasticIsotropic is a linear elastic isotropic continuum material.
type ElasticIsotropic struct {
	E, Nu float64
	Rho   command.Opt[float64]
}

func (m ElasticIsotropic) Schema() *command.Schema { return elasticIsotropicSchema }

func (m ElasticIsotropic) Values() command.Values {
	return command.Values{}.Float("E", m.E).Float("nu", m.Nu).OptFloat("rho", m.Rho)
}

// Engine defaults of PressureIndependMultiYield, filled in when a later
// positional parameter is given without them.
const (
	pimyFrictionAng    = 0.0
	pimyRefPress       = 100.0
	pimyPressDependCoe = 0.0
)

// PressureIndependMultiYield is an elastic-plastic soil material for
// pressure-insensitive response. A custom backbone is given as shear
// strain, modulus ratio pairs; it is sent as a negative surface count
// followed by the pairs.
type PressureIndependMultiYield struct {
	Dimensions      int
	Rho             float64
	RefShearModul   float64
	RefBulkModul    float64
	Cohesion        float64
	PeakShearStrain float64
	FrictionAng     command.Opt[float64]
	RefPress        command.Opt[float64]
	PressDependCoe  command.Opt[float64]
	NoYieldSurf     command.Opt[int]
	Backbone        [][2]float64
}

func (m PressureIndependMultiYield) Schema() *command.Schema { return pimySchema }

func (m PressureIndependMultiYield) Values() command.Values {
	v := command.Values{}.
		Int("nd", m.Dimensions).
		Float("rho", m.Rho).
		Float("refShearModul", m.RefShearModul).
		Float("refBulkModul", m.RefBulkModul).
		Float("cohesi", m.Cohesion).
		Float("peakShearStra", m.PeakShearStrain)

	if len(m.Backbone) == 0 {
		return v.
			OptFloat("frictionAng", m.FrictionAng).
			OptFloat("refPress", m.RefPress).
			OptFloat("pressDependCoe", m.PressDependCoe).
			OptInt("noYieldSurf", m.NoYieldSurf)
	}

	pairs := make([]float64, 0, 2*len(m.Backbone))
	for _, p := range m.Backbone {
		pairs = append(pairs, p[0], p[1])
	}
	return v.
		Float("frictionAng", m.FrictionAng.Or(pimyFrictionAng)).
		Float("refPress", m.RefPress.Or(pimyRefPress)).
		Float("pressDependCoe", m.PressDependCoe.Or(pimyPressDependCoe)).
		Int("noYieldSurf", -len(m.Backbone)).
		Floats("surfaces", pairs)
}
