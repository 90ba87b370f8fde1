// Package execution provides the built-in execution adapter for lightweight
// devices.
//
// A program folds one numeric status field over a device's neighbourhood
// (the device itself plus its neighbours) and returns the aggregate as the
// value to show. It stands in for an external aggregate-programming VM: the
// device only sees a device.Executor.
package execution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/nerrad567/meshsim/internal/device"
)

// ErrUnknownProgram is returned when a program name is not recognised.
var ErrUnknownProgram = errors.New("execution: unknown program")

// Program names an aggregate computed over a neighbourhood.
type Program string

// Built-in programs.
const (
	ProgramCount   Program = "count"   // Number of neighbours, excluding self
	ProgramSum     Program = "sum"     // Sum of the field over the neighbourhood
	ProgramAverage Program = "average" // Mean of the field over the neighbourhood
	ProgramMin     Program = "min"
	ProgramMax     Program = "max"
)

// ParseProgram converts a configuration name to a Program.
func ParseProgram(s string) (Program, error) {
	p := Program(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ProgramCount, ProgramSum, ProgramAverage, ProgramMin, ProgramMax:
		return p, nil
	case "avg", "mean":
		return ProgramAverage, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProgram, s)
	}
}

// NeighbourSource resolves a device's neighbourhood. *device.Registry implements it.
type NeighbourSource interface {
	NeighboursOf(d device.Device, includeSelf bool) ([]device.Device, error)
}

// Builder returns an AdapterBuilder whose executors run prog over field.
// Devices whose status lacks a numeric field are skipped; a neighbourhood
// with no numeric values yields a nil result, which is not shown.
func Builder(src NeighbourSource, prog Program, field string) device.AdapterBuilder {
	return func(d device.Device) device.Executor {
		return device.ExecutorFunc(func(ctx context.Context) (any, error) {
			return Run(ctx, src, d, prog, field)
		})
	}
}

// Run evaluates prog once for d.
func Run(ctx context.Context, src NeighbourSource, d device.Device, prog Program, field string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if prog == ProgramCount {
		ns, err := src.NeighboursOf(d, false)
		if err != nil {
			return nil, fmt.Errorf("resolving neighbours: %w", err)
		}
		return len(ns), nil
	}

	ns, err := src.NeighboursOf(d, true)
	if err != nil {
		return nil, fmt.Errorf("resolving neighbours: %w", err)
	}

	values := make([]float64, 0, len(ns))
	for _, n := range ns {
		if v, ok := Numeric(n.Status()[field]); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil, nil
	}
	return fold(prog, values)
}

func fold(prog Program, values []float64) (any, error) {
	switch prog {
	case ProgramSum, ProgramAverage:
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		if prog == ProgramAverage {
			return sum / float64(len(values)), nil
		}
		return sum, nil
	case ProgramMin:
		out := math.Inf(1)
		for _, v := range values {
			out = math.Min(out, v)
		}
		return out, nil
	case ProgramMax:
		out := math.Inf(-1)
		for _, v := range values {
			out = math.Max(out, v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProgram, prog)
	}
}

// Numeric extracts a float from a status or result value as decoded from
// JSON or set through the API. Numeric strings do not count.
func Numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
