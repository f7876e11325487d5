package catalog

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/o3go/o3go/pkg/command"
	"github.com/o3go/o3go/pkg/dispatch"
	"github.com/o3go/o3go/pkg/engine"
)

// TestDefaultRegistry tests lookup of built-in schemas
func TestDefaultRegistry(t *testing.T) {
	r := Default()
	if r.Len() != len(builtins()) {
		t.Fatalf("registry has %d schemas, want %d", r.Len(), len(builtins()))
	}

	tests := []struct {
		cmd    string
		opType string
		want   string
		found  bool
	}{
		{"node", "", "node", true},
		{"uniaxialMaterial", "Elastic", "uniaxialMaterial.Elastic", true},
		{"uniaxialMaterial", "Steel01", "", false},
		{"test", "NormDispIncr", "test.NormDispIncr", true},
		{"analyze", "", "analyze", true},
		{"recorder", "Node", "recorder.Node", true},
		{"section", "Fiber", "", false},
	}
	for _, tt := range tests {
		s, ok := r.Lookup(tt.cmd, tt.opType)
		if ok != tt.found {
			t.Errorf("Lookup(%s, %s) found = %v, want %v", tt.cmd, tt.opType, ok, tt.found)
			continue
		}
		if ok && s.Key() != tt.want {
			t.Errorf("Lookup(%s, %s) = %s, want %s", tt.cmd, tt.opType, s.Key(), tt.want)
		}
	}

	if err := r.Register(elasticSchema); err == nil {
		t.Error("expected duplicate registration to fail")
	}

	all := r.All()
	for i := 1; i < len(all); i++ {
		if all[i-1].Key() >= all[i].Key() {
			t.Fatalf("All is not sorted at %s", all[i].Key())
		}
	}
}

// fixtures creates two nodes, one uniaxial material, one nD material and one time series.
type fixtures struct {
	n1, n2, mat, soil, series *command.Object
}

func newFixtures(t *testing.T, ctx context.Context, s *command.Session) fixtures {
	t.Helper()
	mk := func(d command.Definition) *command.Object {
		obj, err := command.New(ctx, s, d)
		if err != nil {
			t.Fatalf("fixture %T: %v", d, err)
		}
		return obj
	}
	return fixtures{
		n1:     mk(Node{Coords: []float64{0, 0}}),
		n2:     mk(Node{Coords: []float64{0, 0}}),
		mat:    mk(Elastic{E: 1}),
		soil:   mk(ElasticIsotropic{E: 1, Nu: 0.3}),
		series: mk(LinearSeries{}),
	}
}

// TestDefinitionLines tests the transcript line of each kind of definition
func TestDefinitionLines(t *testing.T) {
	tests := []struct {
		name string
		def  func(f fixtures) command.Definition
		want string
	}{
		{
			name: "elastic",
			def:  func(f fixtures) command.Definition { return Elastic{E: 2e8} },
			want: "uniaxialMaterial Elastic 2 2e+08 0.0",
		},
		{
			name: "elastic with Eneg",
			def:  func(f fixtures) command.Definition { return Elastic{E: 3, Eta: 0.1, Eneg: command.Some(1.5)} },
			want: "uniaxialMaterial Elastic 2 3.0 0.1 1.5",
		},
		{
			name: "self-centering defaults",
			def:  func(f fixtures) command.Definition { return SelfCentering{K1: 10, K2: 1, SigAct: 2, Beta: 0.5} },
			want: "uniaxialMaterial SelfCentering 2 10.0 1.0 2.0 0.5 0.0 0.0",
		},
		{
			name: "self-centering with bearing ratio only",
			def: func(f fixtures) command.Definition {
				return SelfCentering{K1: 10, K2: 1, SigAct: 2, Beta: 0.5, RBear: command.Some(3.0)}
			},
			want: "uniaxialMaterial SelfCentering 2 10.0 1.0 2.0 0.5 0.0 0.0 3.0",
		},
		{
			name: "node with mass",
			def:  func(f fixtures) command.Definition { return Node{Coords: []float64{1, -1.5}, Mass: []float64{2, 2}} },
			want: "node 3 1.0 -1.5 -mass 2.0 2.0",
		},
		{
			name: "fix",
			def:  func(f fixtures) command.Definition { return Fix{Node: f.n1, Fixity: []int{Fixed, Free}} },
			want: "fix 1 1 0",
		},
		{
			name: "equalDOF",
			def: func(f fixtures) command.Definition {
				return EqualDOF{Retained: f.n1, Constrained: f.n2, DOFs: []int{1, 2}}
			},
			want: "equalDOF 1 2 1 2",
		},
		{
			name: "parallel with factors",
			def: func(f fixtures) command.Definition {
				return Parallel{Materials: []command.Referent{f.mat, f.mat}, Factors: []float64{1, 0.5}}
			},
			want: "uniaxialMaterial Parallel 2 1 1 -factor 1.0 0.5",
		},
		{
			name: "fatigue with one limit",
			def:  func(f fixtures) command.Definition { return Fatigue{Other: f.mat, Min: command.Some(-0.1)} },
			want: "uniaxialMaterial Fatigue 2 1 -min -0.1",
		},
		{
			name: "elastic gap with damage",
			def: func(f fixtures) command.Definition {
				return ElasticPPGap{E: 10, Fy: 1, Gap: 0.01, Damage: true}
			},
			want: "uniaxialMaterial ElasticPPGap 2 10.0 1.0 0.01 0.0 damage",
		},
		{
			name: "bar slip",
			def: func(f fixtures) command.Definition {
				return BarSlip{Fc: 4, Fy: 60, Es: 29000, Fu: 90, Eh: 1000, Db: 1, Ld: 20, Nb: 2,
					Depth: 30, Height: 24, AncLratio: 1, BsFlag: BondStrong, Type: BarBeamTop}
			},
			want: "uniaxialMaterial BarSlip 2 4.0 60.0 29000.0 90.0 1000.0 1.0 20.0 2 30.0 24.0 1.0 strong beamtop",
		},
		{
			name: "zero length",
			def: func(f fixtures) command.Definition {
				return ZeroLength{Nodes: [2]command.Referent{f.n1, f.n2}, Materials: []command.Referent{f.mat}, Dirs: []int{1}}
			},
			want: "element zeroLength 1 1 2 -mat 1 -dir 1",
		},
		{
			name: "truss",
			def: func(f fixtures) command.Definition {
				return Truss{Nodes: [2]command.Referent{f.n1, f.n2}, A: 2, Material: f.mat, Rho: command.Some(0.5)}
			},
			want: "element Truss 1 1 2 2.0 1 -rho 0.5",
		},
		{
			name: "circular layer",
			def: func(f fixtures) command.Definition {
				return CircLayer{NumFiber: 8, AreaFiber: 0.5, Radius: 2, Angles: command.Some([2]float64{0, 180})}
			},
			want: "layer circ 1 8 0.5 0.0 0.0 2.0 0.0 180.0",
		},
		{
			name: "soil with backbone",
			def: func(f fixtures) command.Definition {
				return PressureIndependMultiYield{Dimensions: 2, Rho: 2, RefShearModul: 1000, RefBulkModul: 3000,
					Cohesion: 50, PeakShearStrain: 0.1, Backbone: [][2]float64{{1e-4, 0.9}, {1e-3, 0.5}}}
			},
			want: "nDMaterial PressureIndependMultiYield 2 2 2.0 1000.0 3000.0 50.0 0.1 0.0 100.0 0.0 -2 0.0001 0.9 0.001 0.5",
		},
		{
			name: "path series",
			def: func(f fixtures) command.Definition {
				return PathSeries{Dt: command.Some(0.01), Samples: []float64{0, 1, 0}, Factor: command.Some(2.0)}
			},
			want: "timeSeries Path 2 -dt 0.01 -values 0.0 1.0 0.0 -factor 2.0",
		},
		{
			name: "uniform excitation",
			def:  func(f fixtures) command.Definition { return UniformExcitation{Dir: 1, Accel: f.series} },
			want: "pattern UniformExcitation 1 1 -accel 1",
		},
		{
			name: "node recorder",
			def: func(f fixtures) command.Definition {
				return NodeRecorder{Response: RespAccel, File: command.Some("out dir/a.out"), Time: true,
					Nodes: []command.Referent{f.n1}, DOFs: []int{1}}
			},
			want: `recorder Node accel -file "out dir/a.out" -time -node 1 -dof 1`,
		},
		{
			name: "convergence test",
			def: func(f fixtures) command.Definition {
				return Test{Type: "NormDispIncr", Tol: 1e-4, MaxIter: 30, PrintFlag: command.Some(0)}
			},
			want: "test NormDispIncr 0.0001 30 0",
		},
		{
			name: "system with pivoting",
			def:  func(f fixtures) command.Definition { return System{Type: "SparseGeneral", Pivot: true} },
			want: "system SparseGeneral -piv",
		},
		{
			name: "analyze",
			def:  func(f fixtures) command.Definition { return Analyze{Steps: 10, Dt: command.Some(0.01)} },
			want: "analyze 10 0.01",
		},
		{
			name: "material stage",
			def:  func(f fixtures) command.Definition { return UpdateMaterialStage{Material: f.soil, Stage: 1} },
			want: "updateMaterialStage -material 1 -stage 1",
		},
		{
			name: "load const",
			def:  func(f fixtures) command.Definition { return LoadConst{Time: command.Some(0.0)} },
			want: "loadConst -time 0.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, err := command.Open(ctx, command.ModelConfig{Dimensions: 2, DOFPerNode: 2}, dispatch.NewCapture())
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			f := newFixtures(t, ctx, s)
			obj, err := command.New(ctx, s, tt.def(f))
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if obj.Line() != tt.want {
				t.Errorf("line = %q\nwant   %q", obj.Line(), tt.want)
			}
		})
	}
}

// TestDefinitionRejects tests construction errors raised by catalog entities
func TestDefinitionRejects(t *testing.T) {
	tests := []struct {
		name  string
		def   func(f fixtures) command.Definition
		check func(error) bool
	}{
		{
			name:  "cast a2 without a1",
			def:   func(f fixtures) command.Definition { return Cast{N: 2, A2: command.Some(1.0)} },
			check: command.IsParameterOrder,
		},
		{
			name: "elastic bilin epsN2 without EN2",
			def: func(f fixtures) command.Definition {
				return ElasticBilin{EN1: command.Some(1.0), EpsN2: command.Some(-0.1)}
			},
			check: command.IsParameterOrder,
		},
		{
			name: "quad b2 alone",
			def: func(f fixtures) command.Definition {
				return Quad{Nodes: [4]command.Referent{f.n1, f.n2, f.n2, f.n1}, Thick: 1, Type: PlaneStrain,
					Material: f.soil, B2: command.Some(-9.81)}
			},
			check: command.IsParameterOrder,
		},
		{
			name: "quad with uniaxial material",
			def: func(f fixtures) command.Definition {
				return Quad{Nodes: [4]command.Referent{f.n1, f.n2, f.n2, f.n1}, Thick: 1, Type: PlaneStrain, Material: f.mat}
			},
			check: command.IsReference,
		},
		{
			name:  "bar slip bad enum",
			def:   func(f fixtures) command.Definition { return BarSlip{BsFlag: "medium", Type: BarColumn} },
			check: command.IsParameter,
		},
		{
			name:  "unknown algorithm",
			def:   func(f fixtures) command.Definition { return Algorithm{Type: "KrylovNewton"} },
			check: command.IsParameter,
		},
		{
			name:  "missing material",
			def:   func(f fixtures) command.Definition { return PathIndependent{} },
			check: command.IsReference,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, err := command.Open(ctx, command.ModelConfig{Dimensions: 2, DOFPerNode: 2}, dispatch.NewCapture())
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			f := newFixtures(t, ctx, s)
			before := s.Seq()
			_, err = command.New(ctx, s, tt.def(f))
			if !tt.check(err) {
				t.Errorf("unexpected error: %v (%s)", err, command.KindOf(err))
			}
			if s.Seq() != before {
				t.Errorf("rejected definition was emitted")
			}
		})
	}
}

// TestSiteResponseModel tests a complete soil column model against the
// reference engine in strict mode
func TestSiteResponseModel(t *testing.T) {
	ctx := context.Background()
	eng := engine.New(engine.WithSchemas(Default()), engine.WithStrict(true))
	s, err := command.Open(ctx, command.ModelConfig{Dimensions: 2, DOFPerNode: 2}, dispatch.NewLive(eng))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	mk := func(d command.Definition) *command.Object {
		t.Helper()
		obj, err := command.New(ctx, s, d)
		if err != nil {
			t.Fatalf("%T: %v", d, err)
		}
		return obj
	}

	const width, depth = 1.0, 2.0
	top := [2]*command.Object{mk(Node{Coords: []float64{0, 0}}), mk(Node{Coords: []float64{width, 0}})}
	base := [2]*command.Object{mk(Node{Coords: []float64{0, -depth}}), mk(Node{Coords: []float64{width, -depth}})}
	mk(EqualDOF{Retained: top[0], Constrained: top[1], DOFs: []int{1, 2}})
	mk(Fix{Node: base[0], Fixity: []int{Free, Fixed}})
	mk(Fix{Node: base[1], Fixity: []int{Free, Fixed}})

	dashFixed := mk(Node{Coords: []float64{0, -depth}})
	dashFree := mk(Node{Coords: []float64{0, -depth}})
	mk(Fix{Node: dashFixed, Fixity: []int{Fixed, Fixed}})
	mk(EqualDOF{Retained: base[0], Constrained: dashFree, DOFs: []int{1}})

	soil := mk(PressureIndependMultiYield{Dimensions: 2, Rho: 1.7, RefShearModul: 43520, RefBulkModul: 1e5,
		Cohesion: 58, PeakShearStrain: 0.1, PressDependCoe: command.Some(0.0),
		Backbone: [][2]float64{{1e-6, 1}, {1e-4, 0.9}, {1e-2, 0.3}}})
	mk(Quad{Nodes: [4]command.Referent{base[0], base[1], top[1], top[0]}, Thick: 1, Type: PlaneStrain,
		Material: soil, Pressure: command.Some(0.0), Rho: command.Some(0.0), B1: command.Some(0.0),
		B2: command.Some(-9.81 * 1.7)})
	dashpot := mk(Viscous{C: 272, Alpha: 1})
	mk(ZeroLength{Nodes: [2]command.Referent{dashFixed, dashFree}, Materials: []command.Referent{dashpot}, Dirs: []int{1}})

	mk(Constraints{Handler: "Transformation"})
	mk(Test{Type: "NormDispIncr", Tol: 1e-4, MaxIter: 30, PrintFlag: command.Some(0)})
	mk(Algorithm{Type: "Newton"})
	mk(Numberer{Type: "RCM"})
	mk(System{Type: "ProfileSPD"})
	mk(Newmark{Gamma: 0.5, Beta: 0.25})
	mk(Analysis{Type: "Transient"})
	mk(Analyze{Steps: 40, Dt: command.Some(1.0)})
	mk(UpdateMaterialStage{Material: soil, Stage: 1})
	mk(Analyze{Steps: 50, Dt: command.Some(0.5)})
	mk(SetTime{Time: 0})
	mk(WipeAnalysis{})

	mk(NodeRecorder{Response: RespAccel, Nodes: []command.Referent{top[0]}, DOFs: []int{1}})
	series := mk(PathSeries{Dt: command.Some(0.01), Samples: []float64{0, 0.1, -0.2, 0.1}, Factor: command.Some(272.0)})
	mk(PlainPattern{Series: series})
	mk(Load{Node: base[0], Forces: []float64{1, 0}})

	mk(Newmark{Gamma: 0.5, Beta: 0.25})
	mk(Rayleigh{AlphaM: 0.1, BetaK: 0.001})
	mk(Analysis{Type: "Transient"})
	mk(Test{Type: "EnergyIncr", Tol: 1e-10, MaxIter: 10})
	mk(Analyze{Steps: 3, Dt: command.Some(0.01)})

	now := mk(GetTime{})
	if v := now.Status().Values; len(v) != 1 || math.Abs(v[0]-0.03) > 1e-12 {
		t.Errorf("getTime = %v, want [0.03]", v)
	}

	sum := eng.Summary()
	if sum.Counts[command.CategoryNode] != 6 || sum.Counts[command.CategoryElement] != 2 {
		t.Errorf("summary counts = %v", sum.Counts)
	}

	// an element on a node the engine never saw is rejected by the engine
	_, err = s.Invoke(ctx, command.Describe("element", []command.Token{
		command.Str("zeroLength"), command.Int(9), command.Int(1), command.Int(99),
		command.Str("-mat"), command.Int(1), command.Str("-dir"), command.Int(1),
	}))
	if !command.IsEngineInvocation(err) || !strings.Contains(err.Error(), "node with tag 99 not found") {
		t.Errorf("expected engine rejection, got %v", err)
	}
}

// TestWipeAgainstEngine tests that a wiped session keeps building against
// the reference engine, directly and through a replayed transcript
func TestWipeAgainstEngine(t *testing.T) {
	ctx := context.Background()
	cfg := command.ModelConfig{Dimensions: 2, DOFPerNode: 2}

	t.Run("session", func(t *testing.T) {
		eng := engine.New(engine.WithSchemas(Default()))
		s, err := command.Open(ctx, cfg, dispatch.NewLive(eng))
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if _, err := command.New(ctx, s, Node{Coords: []float64{0, 0}}); err != nil {
			t.Fatalf("node before wipe: %v", err)
		}
		if err := s.Wipe(ctx); err != nil {
			t.Fatalf("wipe: %v", err)
		}
		n, err := command.New(ctx, s, Node{Coords: []float64{1, 1}})
		if err != nil {
			t.Fatalf("node after wipe: %v", err)
		}
		if n.Tag() != 1 || eng.Summary().Counts[command.CategoryNode] != 1 {
			t.Errorf("tag = %d, engine nodes = %d", n.Tag(), eng.Summary().Counts[command.CategoryNode])
		}
	})

	t.Run("replay", func(t *testing.T) {
		eng := engine.New(engine.WithSchemas(Default()))
		s, err := command.Open(ctx, cfg, dispatch.NewLive(eng))
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		src := "model basic -ndm 2 -ndf 2\nnode 1 0.0 0.0\nwipe\nmodel basic -ndm 2 -ndf 2\nnode 1 0.0 0.0\n"
		res, err := dispatch.Replay(ctx, s, strings.NewReader(src))
		if err != nil {
			t.Fatalf("replay: %v", err)
		}
		if res.Emitted != 4 || res.Skipped != 1 {
			t.Errorf("replay = %+v, want 4 emitted, 1 skipped", res)
		}
		if !s.ModelDeclared() || eng.Summary().Counts[command.CategoryNode] != 1 {
			t.Errorf("declared = %v, engine nodes = %d", s.ModelDeclared(), eng.Summary().Counts[command.CategoryNode])
		}
	})
}

// TestUsage tests synopsis rendering of catalog schemas
func TestUsage(t *testing.T) {
	tests := []struct {
		cmd, opType string
		want        string
	}{
		{"uniaxialMaterial", "Elastic", "uniaxialMaterial Elastic <tag> E eta [Eneg]"},
		{"element", "zeroLength", "element zeroLength <tag> nodes... [-mat materials...] [-dir dirs...] [-doRayleigh doRayleigh] [-orient orient...]"},
		{"system", "SparseGeneral", "system SparseGeneral [-piv]"},
	}
	for _, tt := range tests {
		s, ok := Default().Lookup(tt.cmd, tt.opType)
		if !ok {
			t.Fatalf("%s %s not found", tt.cmd, tt.opType)
		}
		if got := s.Usage(); got != tt.want {
			t.Errorf("Usage() = %q, want %q", got, tt.want)
		}
	}
}
