// Package proptest provides utilities for writing property-based tests for
// pairgen servers.
package proptest

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/anishathalye/porcupine"
	"github.com/antithesishq/antithesis-sdk-go/assert"
	"github.com/antithesishq/pairgen/internal/client"
	"github.com/antithesishq/pairgen/internal/op"
)

// Error is sometimes returned from CheckWorkloads, indicating that
// verification timed out or that the observed behavior includes a duplicate
// identifier or a premature exhaustion.
//
// If the Error indicates a violation, Visualization will be an interactive,
// self-contained HTML document demonstrating it.
type Error struct {
	TimedOut      bool
	Visualization *bytes.Buffer
}

// Error implements error.
func (e *Error) Error() string {
	if e.TimedOut {
		return "model timed out"
	}
	return "history not linearizable: identifier issued twice or exhausted early"
}

// Arguments for calling a client; used in the porcupine model below.
type args struct {
	Op op.Op
}

// Results from calling a client; used in the porcupine model below.
type rets struct {
	Value     string
	Exhausted bool
	Err       error
}

// GenWorkloads generates a workload for a variable number of clients. Every
// client mostly calls NEXT, with the occasional RESET.
func GenWorkloads(r *rand.Rand) [][]porcupine.Operation {
	numClients := r.IntN(3) + 2     // 2-4 clients
	opsPerClient := r.IntN(32) + 32 // 32-63 operations per client
	ops := []op.Op{
		op.Next,
		op.Next,
		op.Next,
		op.Next,
		op.Next,
		op.Next,
		op.Next,
		op.Next,
		op.Next,
		op.Reset,
	}
	workloads := make([][]porcupine.Operation, numClients)
	for clientId := range workloads {
		workload := make([]porcupine.Operation, opsPerClient)
		for i := range workload {
			workload[i] = porcupine.Operation{
				ClientId: clientId,
				Input:    &args{Op: ops[r.IntN(len(ops))]},
				Output:   &rets{},
			}
		}
		workloads[clientId] = workload
	}
	return workloads
}

// NextWorkloads generates a workload of only NEXT calls, useful when a test
// needs a predictable history.
func NextWorkloads(numClients, opsPerClient int) [][]porcupine.Operation {
	workloads := make([][]porcupine.Operation, numClients)
	for clientId := range workloads {
		workload := make([]porcupine.Operation, opsPerClient)
		for i := range workload {
			workload[i] = porcupine.Operation{
				ClientId: clientId,
				Input:    &args{Op: op.Next},
				Output:   &rets{},
			}
		}
		workloads[clientId] = workload
	}
	return workloads
}

// RunWorkload runs a workload on a client.
func RunWorkload(logger *slog.Logger, c *client.Client, workload []porcupine.Operation) {
	for i := range workload {
		if i%16 == 0 {
			logger.Debug("running workload", "ops_complete", i, "ops_left", len(workload)-i)
		}
		in := workload[i].Input.(*args)
		out := workload[i].Output.(*rets)
		workload[i].Call = time.Now().UnixNano()
		switch in.Op {
		case op.Next:
			out.Value, out.Err = c.Next()
		case op.Reset:
			out.Err = c.Reset()
		default:
			assert.Unreachable("Unexpected operation in workload run", map[string]any{"op": in.Op})
		}
		workload[i].Return = time.Now().UnixNano()
		if errors.Is(out.Err, client.ErrExhausted) {
			out.Exhausted, out.Err = true, nil
		}
	}
}

// CheckWorkloads verifies that the server, as seen by RunWorkload, never
// issued an identifier twice between resets and never claimed exhaustion
// before capacity identifiers had been issued. When no anomalies are found,
// CheckWorkloads also returns the percentage of operations that succeeded (as
// a measure of liveness).
//
// Verification is NP-hard, so it may time out. If verification fails or times
// out, the returned error will be an *Error.
func CheckWorkloads(deadline time.Duration, capacity uint64, workloads [][]porcupine.Operation) (float64, error) {
	var history []porcupine.Operation
	var successes, total float64
	for _, ops := range workloads {
		for _, o := range ops {
			total++
			if o.Output.(*rets).Err == nil {
				successes++
			}
			history = append(history, o)
		}
	}
	if total == 0 {
		return 0, nil
	}
	progress := successes / total

	model := newModel(capacity)
	cr, info := porcupine.CheckOperationsVerbose(model, history, deadline)
	switch cr {
	case porcupine.Ok:
		return progress, nil
	case porcupine.Unknown:
		return 0, &Error{TimedOut: true}
	}
	var buf bytes.Buffer
	if err := porcupine.Visualize(model, info, &buf); err != nil {
		return 0, err
	}
	return 0, &Error{Visualization: &buf}
}

func newModel(capacity uint64) porcupine.Model {
	return porcupine.Model{
		Init: func() any { return newState() },
		Step: func(st, input, output any) (bool, any) {
			in := input.(*args)
			out := output.(*rets)
			s := st.(*state)
			switch in.Op {
			case op.Next:
				if out.Err != nil {
					// The server may have issued an identifier we never saw.
					return true, s.maybeIssued()
				}
				if out.Exhausted {
					return s.mayBeExhausted(capacity), s
				}
				return !s.has(out.Value), s.issue(out.Value)
			case op.Reset:
				if out.Err != nil {
					// A failed reset may or may not have happened.
					return true, s.maybeReset()
				}
				return true, newState()
			default:
				assert.Unreachable("Unexpected step operation", map[string]any{"op": in.Op})
				return true, s
			}
		},
		DescribeOperation: func(input, output any) string {
			return describe(input.(*args), output.(*rets))
		},
		DescribeState: func(st any) string {
			return st.(*state).String()
		},
		Equal: func(left, right any) bool {
			if left == nil || right == nil {
				return left == right
			}
			return left.(*state).equal(right.(*state))
		},
	}
}

func describe(in *args, out *rets) string {
	result := out.Value
	switch {
	case out.Err != nil:
		result = fmt.Sprintf("ERR %v", out.Err)
	case out.Exhausted:
		result = "(nil)"
	case result == "":
		result = "OK"
	}

	switch in.Op {
	case op.Next:
		return fmt.Sprintf("NEXT = %s", result)
	case op.Reset:
		return fmt.Sprintf("RESET = %s", result)
	default:
		assert.Unreachable("Unexpected describe operation", map[string]any{"op": in.Op})
		return fmt.Sprintf("UNKNOWN %v", in.Op)
	}
}
