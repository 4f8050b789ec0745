package service

import (
	"fmt"
	"math"
	"time"

	"github.com/signalsfoundry/rocketflight/core"
	"github.com/signalsfoundry/rocketflight/internal/projection"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Snapshot serialises obj in full as a google.protobuf.Struct
//
//	{"kind": ..., "attributes": {...}}
//
// Functions keep all of their samples; callables are sampled over b. Nothing
// reads the blob back.
func Snapshot(obj core.Object, b projection.Bounds) ([]byte, error) {
	if obj == nil {
		return nil, fmt.Errorf("%w: nil object", ErrSimulation)
	}
	st, err := structpb.NewStruct(map[string]any{
		"kind":       obj.Kind(),
		"attributes": plainMap(obj.Encode(), b),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot %s: %v", ErrSimulation, obj.Kind(), err)
	}
	blob, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal %s: %v", ErrSimulation, obj.Kind(), err)
	}
	return blob, nil
}

// plain converts encoder output into values structpb accepts.
func plain(v any, b projection.Bounds) any {
	switch t := v.(type) {
	case nil, bool, string, int, int64:
		return t
	case float64:
		return number(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case []float64:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = number(x)
		}
		return out
	case [][]float64:
		out := make([]any, len(t))
		for i, row := range t {
			out[i] = plain(row, b)
		}
		return out
	case [][2]float64:
		out := make([]any, len(t))
		for i, p := range t {
			out[i] = []any{number(p[0]), number(p[1])}
		}
		return out
	case *core.Function:
		return plainFunction(t, b)
	case core.Object:
		return plainMap(t.Encode(), b)
	case []core.Object:
		out := make([]any, len(t))
		for i, o := range t {
			out[i] = plainMap(o.Encode(), b)
		}
		return out
	case map[string]any:
		return plainMap(t, b)
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = plainMap(m, b)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e, b)
		}
		return out
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

func plainMap(m map[string]any, b projection.Bounds) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = plain(v, b)
	}
	return out
}

func plainFunction(f *core.Function, b projection.Bounds) any {
	if f == nil {
		return nil
	}
	if f.IsCallable() {
		f = f.SetDiscrete(b.Lo, b.Hi, b.Samples)
		if f.IsCallable() {
			return f.String()
		}
	}
	return map[string]any{
		"description": f.String(),
		"samples":     plain(f.Samples(), b),
	}
}

// number keeps non-finite values representable.
func number(x float64) any {
	switch {
	case math.IsNaN(x):
		return "NaN"
	case math.IsInf(x, 1):
		return "Infinity"
	case math.IsInf(x, -1):
		return "-Infinity"
	}
	return x
}
