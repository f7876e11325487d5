package catalog

import "github.com/o3go/o3go/pkg/command"

// Node recorder responses.
const (
	RespDisp     = "disp"
	RespVel      = "vel"
	RespAccel    = "accel"
	RespIncrDisp = "incrDisp"
	RespReaction = "reaction"
)

var (
	// The engine reads the response wherever it appears among the options,
	// so it is declared positional.
	nodeRecorderSchema = command.MustSchema(command.CategoryRecorder, "", "Node",
		command.Required("response", command.TypeEnum).OneOf(RespDisp, RespVel, RespAccel, RespIncrDisp, RespReaction),
		command.Flag("file", "-file", command.TypeString),
		command.Switch("time", "-time"),
		floatFlag("dT"),
		command.FlagPacket("nodes", "-node", command.TypeRef).Of(command.CategoryNode),
		command.FlagPacket("dofs", "-dof", command.TypeInt),
	)

	recorderSchemas = []*command.Schema{nodeRecorderSchema}
)

// NodeRecorder records a nodal response. Without File the engine keeps the
// values in memory.
type NodeRecorder struct {
	Response string
	File     command.Opt[string]
	Time     bool
	DT       command.Opt[float64]
	Nodes    []command.Referent
	DOFs     []int
}

func (r NodeRecorder) Schema() *command.Schema { return nodeRecorderSchema }

func (r NodeRecorder) Values() command.Values {
	v := command.Values{}.
		Str("response", r.Response).
		OptStr("file", r.File).
		Switch("time", r.Time).
		OptFloat("dT", r.DT)
	if r.Nodes != nil {
		v = v.RefList("nodes", r.Nodes...)
	}
	if r.DOFs != nil {
		v = v.Ints("dofs", r.DOFs)
	}
	return v
}
