package dispatch

import (
	"context"
	"fmt"
	"io"

	"github.com/o3go/o3go/pkg/command"
	"github.com/o3go/o3go/pkg/transcript"
)

// ReplayResult summarizes a replay.
type ReplayResult struct {
	// Emitted is the number of invocations sent to the backend.
	Emitted int
	// Skipped is the number of model declarations already made by the session.
	Skipped int
	// Failed holds the status of invocations the engine reported as
	// unsuccessful without rejecting them, keyed by transcript line.
	Failed map[int]command.Status
}

// Replay re-emits a transcript through the session's active backend, in
// order. Every model declaration must match the session's configuration.
// One that arrives while the session's model is still declared is skipped,
// which covers the line Open already emitted; after a wipe it is forwarded.
// Replay stops at the first error and reports the offending line.
func Replay(ctx context.Context, s *command.Session, r io.Reader) (ReplayResult, error) {
	res := ReplayResult{Failed: make(map[int]command.Status)}
	reader := transcript.NewReader(r)

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		inv, err := reader.Next()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			return res, err
		}

		if inv.Command == "model" {
			if err := checkModel(s.Config(), inv); err != nil {
				return res, fmt.Errorf("line %d: %w", reader.Line(), err)
			}
			if s.ModelDeclared() {
				res.Skipped++
				continue
			}
		}

		status, err := s.Invoke(ctx, inv)
		if err != nil {
			return res, fmt.Errorf("line %d: %w", reader.Line(), err)
		}
		res.Emitted++
		if !status.OK() {
			res.Failed[reader.Line()] = status
		}
	}
}

func checkModel(cfg command.ModelConfig, inv command.Invocation) error {
	want := map[string]int{"-ndm": cfg.Dimensions, "-ndf": cfg.DOFPerNode}
	toks := inv.Tokens
	for i := 0; i+1 < len(toks); i++ {
		marker, ok := toks[i].AsString()
		if !ok {
			continue
		}
		expected, known := want[marker]
		if !known {
			continue
		}
		got, ok := toks[i+1].AsInt()
		if !ok || int(got) != expected {
			return command.NewParameterError(marker, "transcript declares %s %s, session has %d", marker, toks[i+1], expected).
				WithCommand("model", "basic")
		}
		delete(want, marker)
	}
	if len(want) > 0 {
		return command.NewParameterError("", "transcript model declaration is incomplete").WithCommand("model", "basic")
	}
	return nil
}
