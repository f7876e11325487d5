package catalog

import "github.com/o3go/o3go/pkg/command"

var (
	constantSeriesSchema = command.MustSchema(command.CategoryTimeSeries, "", "Constant", floatFlag("factor"))
	linearSeriesSchema   = command.MustSchema(command.CategoryTimeSeries, "", "Linear", floatFlag("factor"))
	pathSeriesSchema     = command.MustSchema(command.CategoryTimeSeries, "", "Path",
		floatFlag("dt"),
		command.FlagPacket("values", "-values", command.TypeFloat),
		command.FlagPacket("time", "-time", command.TypeFloat),
		floatFlag("factor"),
		command.Switch("useLast", "-useLast"),
		command.Switch("prependZero", "-prependZero"),
		floatFlag("startTime"),
	)

	seriesSchemas = []*command.Schema{constantSeriesSchema, linearSeriesSchema, pathSeriesSchema}

	plainPatternSchema = command.MustSchema(command.CategoryPattern, "", "Plain",
		ref("series", command.CategoryTimeSeries),
		command.Flag("factor", "-fact", command.TypeFloat),
	)
	uniformExcitationSchema = command.MustSchema(command.CategoryPattern, "", "UniformExcitation",
		integer("dir"),
		command.Flag("accel", "-accel", command.TypeRef).Of(command.CategoryTimeSeries),
		command.Flag("vel0", "-vel0", command.TypeFloat),
		command.Flag("factor", "-fact", command.TypeFloat),
	)

	patternSchemas = []*command.Schema{plainPatternSchema, uniformExcitationSchema}
)

// ConstantSeries is a constant load factor.
type ConstantSeries struct {
	Factor command.Opt[float64]
}

func (s ConstantSeries) Schema() *command.Schema { return constantSeriesSchema }

func (s ConstantSeries) Values() command.Values {
	return command.Values{}.OptFloat("factor", s.Factor)
}

// LinearSeries is a load factor equal to time, scaled by Factor.
type LinearSeries struct {
	Factor command.Opt[float64]
}

func (s LinearSeries) Schema() *command.Schema { return linearSeriesSchema }

func (s LinearSeries) Values() command.Values {
	return command.Values{}.OptFloat("factor", s.Factor)
}

// PathSeries interpolates a load factor from samples taken at a fixed Dt
// or at explicit Time points.
type PathSeries struct {
	Dt          command.Opt[float64]
	Samples     []float64
	Time        []float64
	Factor      command.Opt[float64]
	UseLast     bool
	PrependZero bool
	StartTime   command.Opt[float64]
}

func (s PathSeries) Schema() *command.Schema { return pathSeriesSchema }

func (s PathSeries) Values() command.Values {
	v := command.Values{}.
		OptFloat("dt", s.Dt).
		Floats("values", s.Samples)
	if s.Time != nil {
		v = v.Floats("time", s.Time)
	}
	return v.
		OptFloat("factor", s.Factor).
		Switch("useLast", s.UseLast).
		Switch("prependZero", s.PrependZero).
		OptFloat("startTime", s.StartTime)
}

// PlainPattern applies the loads defined after it, scaled by Series.
type PlainPattern struct {
	Series command.Referent
	Factor command.Opt[float64]
}

func (p PlainPattern) Schema() *command.Schema { return plainPatternSchema }

func (p PlainPattern) Values() command.Values {
	return command.Values{}.Ref("series", p.Series).OptFloat("factor", p.Factor)
}

// UniformExcitation applies a ground acceleration record in direction Dir.
type UniformExcitation struct {
	Dir    int
	Accel  command.Referent
	Vel0   command.Opt[float64]
	Factor command.Opt[float64]
}

func (p UniformExcitation) Schema() *command.Schema { return uniformExcitationSchema }

func (p UniformExcitation) Values() command.Values {
	return command.Values{}.
		Int("dir", p.Dir).
		Ref("accel", p.Accel).
		OptFloat("vel0", p.Vel0).
		OptFloat("factor", p.Factor)
}
