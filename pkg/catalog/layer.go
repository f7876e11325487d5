package catalog

import "github.com/o3go/o3go/pkg/command"

var (
	straightLayerSchema = command.MustSchema(command.CategoryLayer, "", "straight",
		integer("numFiber"), num("areaFiber"),
		command.Packet("start", command.TypeFloat).WithLen(2),
		command.Packet("end", command.TypeFloat).WithLen(2),
	)
	circLayerSchema = command.MustSchema(command.CategoryLayer, "", "circ",
		integer("numFiber"), num("areaFiber"),
		command.Packet("center", command.TypeFloat).WithLen(2),
		num("radius"),
		command.OptionalPacket("angles", command.TypeFloat).WithLen(2),
	)

	layerSchemas = []*command.Schema{straightLayerSchema, circLayerSchema}
)

// StraightLayer places fibers along a line between two (y, z) points.
type StraightLayer struct {
	NumFiber  int
	AreaFiber float64
	Start     [2]float64
	End       [2]float64
}

func (l StraightLayer) Schema() *command.Schema { return straightLayerSchema }

func (l StraightLayer) Values() command.Values {
	return command.Values{}.
		Int("numFiber", l.NumFiber).
		Float("areaFiber", l.AreaFiber).
		Floats("start", l.Start[:]).
		Floats("end", l.End[:])
}

// CircLayer places fibers along a circular arc. Without Angles the arc is
// a full circle.
type CircLayer struct {
	NumFiber  int
	AreaFiber float64
	Center    [2]float64
	Radius    float64
	Angles    command.Opt[[2]float64]
}

func (l CircLayer) Schema() *command.Schema { return circLayerSchema }

func (l CircLayer) Values() command.Values {
	v := command.Values{}.
		Int("numFiber", l.NumFiber).
		Float("areaFiber", l.AreaFiber).
		Floats("center", l.Center[:]).
		Float("radius", l.Radius)
	if a, ok := l.Angles.Get(); ok {
		v = v.Floats("angles", a[:])
	}
	return v
}
