package main_test

import (
	"errors"
	"math/rand/v2"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/antithesishq/pairgen/internal/pair"
	"github.com/antithesishq/pairgen/internal/proptest"
	"github.com/antithesishq/pairgen/internal/server"
	"github.com/antithesishq/pairgen/internal/servertest"
	"github.com/antithesishq/pairgen/internal/vocab"
	"go.akshayshah.org/attest"
)

func TestIssueOnce(t *testing.T) {
	// This is a property-based test. Rather than testing with hard-coded
	// example inputs, we generate a random workload, execute it, and verify
	// that the server never hands out the same identifier twice between
	// resets, and never claims to be exhausted early.
	//
	// This test uses the same proptest package as the Antithesis workload (in
	// workload.go), so it can be iterated on locally before a longer run.
	r := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))

	// A small space, so clients regularly run the server dry.
	rows := vocab.Vocabulary{"agni", "vayu", "soma", "surya", "varuna", "indra"}
	cols := vocab.Vocabulary{"atman", "dharma", "karma", "prana", "veda"}
	cfg := pair.Config{
		Count: uint64(r.IntN(20) + 10),
		Seed:  r.Int64(),
		Mode:  pair.Scrambled,
	}

	// First, we generate a random, concurrent workload: mostly NEXT, with the
	// occasional RESET.
	workloads := proptest.GenWorkloads(r)

	// Next, we start a server and one client per workload. The servertest
	// package shuts everything down at the end of the test.
	clients := servertest.New(t, server.Config{Rows: rows, Cols: cols, Pairs: cfg}, len(workloads))

	// Then, we run the workload. To make concurrent NEXT calls more likely,
	// we block the clients until everyone's ready to start.
	var wg sync.WaitGroup
	start := make(chan struct{})
	logger := servertest.NewLogger(t)
	for i, workload := range workloads {
		wg.Go(func() {
			<-start
			proptest.RunWorkload(logger, clients[i], workload)
		})
	}
	close(start)
	wg.Wait()

	// Using the porcupine linearizability checker, verify that some
	// sequential ordering of the operations explains every result.
	timeout := time.Minute
	if deadline, ok := t.Context().Deadline(); ok {
		timeout = time.Until(deadline)
	}
	progress, err := proptest.CheckWorkloads(timeout, cfg.Count, workloads)
	if attest.Ok(t, err, attest.Sprintf("identifier issued twice or exhausted early")) {
		attest.True(t, progress > 0, attest.Sprint("no operation succeeded"))
		return
	}
	// Porcupine produces interactive visualizations to help debug any failures.
	if perr := new(proptest.Error); errors.As(err, &perr) && perr.Visualization != nil {
		const fname = "issue-once-failure.html"
		attest.Ok(t, os.WriteFile(fname, perr.Visualization.Bytes(), 0644))
	}
}

func TestCheckerCatchesDuplicates(t *testing.T) {
	// Serve with a step that shares a factor with the space and skip the
	// coprime adjustment: the enumeration cycles early and repeats names,
	// which the checker must flag.
	clients := servertest.New(t, server.Config{
		Rows: vocab.Vocabulary{"a", "b"},
		Cols: vocab.Vocabulary{"p", "q"},
		Pairs: pair.Config{
			Count:      4,
			Mode:       pair.Scrambled,
			Step:       2,
			LegacyStep: true,
		},
	}, 1 /* num clients */)

	workloads := proptest.NextWorkloads(1, 4)
	proptest.RunWorkload(servertest.NewLogger(t), clients[0], workloads[0])

	_, err := proptest.CheckWorkloads(time.Minute, 4, workloads)
	var perr *proptest.Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *proptest.Error, got %v", err)
	}
	attest.False(t, perr.TimedOut)
	attest.NotZero(t, perr.Visualization)
}
