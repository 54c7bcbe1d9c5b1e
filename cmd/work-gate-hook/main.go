// Command work-gate-hook is the C9 work-gating hook: invoked before
// every mutating operation (write/edit/exec/spawn) to defer work while a
// collective ("holistic") review of a task batch is pending, using the
// session-scoped flag files the interception hook (C8) and settle-check
// worker (C10) maintain (spec.md section 4.9).
//
// The fast path (no flags present) is a single filepath.Glob and must
// stay at O(1) cost (spec.md's 5ms target): this command does no
// process, store, or network I/O beyond that glob and, when a flag is
// found, reading its small contents.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/agentgov/core/internal/config"
	"github.com/agentgov/core/internal/hookenv"
)

func main() {
	flagDir := flag.String("flag-dir", ".", "Directory holding holistic-review-pending flag files")
	stalenessMS := flag.Int("staleness-ms", 0, "Override REVIEW_FLAG_STALENESS_MS for this invocation")
	flag.Parse()

	// The minimal stdin envelope (spec.md section 6) is read for parity
	// with the CLI contract and future use (e.g. per-session scoping of
	// which flag applies); today's fast path checks every session's flag
	// regardless of which session is mutating, per spec.md section 4.9
	// step 3's "most restrictive wins across concurrent sessions".
	hookenv.ReadGateEnvelope(os.Stdin)

	staleness := config.LoadEnv().ReviewFlagStaleness
	if *stalenessMS > 0 {
		staleness = time.Duration(*stalenessMS) * time.Millisecond
	}

	flagStatus, err := hookenv.MostRestrictiveFlag(*flagDir, staleness)
	if err != nil {
		fmt.Fprintf(os.Stderr, "work-gate-hook: %v\n", err)
		os.Exit(1)
	}
	if flagStatus == nil {
		os.Exit(0) // fast path: nothing pending, permit the mutation
	}

	switch flagStatus.Status {
	case hookenv.FlagPending, hookenv.FlagError:
		hookenv.WriteResponse(hookenv.GateResponse{
			Status:  "pending",
			Message: "Holistic review in progress, please wait",
		})
		os.Exit(1)
	case hookenv.FlagRevise:
		hookenv.WriteResponse(hookenv.GateResponse{
			Status:  "revise",
			Message: flagStatus.Message,
		})
		os.Exit(1)
	default:
		os.Exit(0)
	}
}
