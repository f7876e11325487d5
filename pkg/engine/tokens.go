package engine

import "github.com/o3go/o3go/pkg/command"

func stringAt(toks []command.Token, i int) (string, bool) {
	if i >= len(toks) {
		return "", false
	}
	return toks[i].AsString()
}

func floatAt(toks []command.Token, i int) (float64, bool) {
	if i >= len(toks) {
		return 0, false
	}
	return toks[i].AsFloat()
}

func intAt(toks []command.Token, i int) (int, bool) {
	if i >= len(toks) {
		return 0, false
	}
	v, ok := toks[i].AsInt()
	return int(v), ok
}

// flagValue returns the number following marker.
func flagValue(toks []command.Token, marker string) (float64, bool) {
	for i, t := range toks {
		if s, ok := t.AsString(); ok && s == marker {
			return floatAt(toks, i+1)
		}
	}
	return 0, false
}
