package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"slices"

	"github.com/socassist/risk-engine/internal/config"
	"github.com/socassist/risk-engine/internal/ledger"
	"github.com/socassist/risk-engine/internal/replay"
	"github.com/socassist/risk-engine/internal/store"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to risk_engine.db (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	enginePath := flag.String("engine", "", "candidate engine.jsonc (default: active version in DB mode)")
	questionsPath := flag.String("questions", "", "candidate questions.jsonc")
	last := flag.Int("last", 500, "replay the N most recent incidents (DB mode)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/risk_engine.db [--engine engine.jsonc --questions questions.jsonc] [--last N] [--json]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json --engine engine.jsonc --questions questions.jsonc")
		os.Exit(2)
	}
	if (*enginePath == "") != (*questionsPath == "") {
		fmt.Fprintln(os.Stderr, "--engine and --questions must be given together")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath, *enginePath, *questionsPath, *jsonOut)
	} else {
		exitCode = runDBMode(*dbPath, *enginePath, *questionsPath, *last, *jsonOut)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region db-mode

// runDBMode re-scores recorded incidents against the active or a candidate
// configuration. Differences are what-if information, not failures.
func runDBMode(dbPath, enginePath, questionsPath string, last int, jsonOut bool) int {
	ctx := context.Background()
	st, err := store.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer st.Close()

	var snap *config.Snapshot
	if enginePath != "" {
		snap, err = config.LoadFiles(enginePath, questionsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load candidate config: %v\n", err)
			return 2
		}
		snap = snap.WithVersion("candidate")
	} else {
		cur, err := st.Current(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load active config: %v\n", err)
			return 2
		}
		snap = cur.Snapshot
	}

	led, err := ledger.NewStore(st.DB())
	if err != nil {
		fmt.Fprintf(os.Stderr, "open ledger: %v\n", err)
		return 2
	}
	incs, err := led.List(ctx, last)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list incidents: %v\n", err)
		return 2
	}
	if len(incs) == 0 {
		fmt.Fprintln(os.Stderr, "no incidents recorded")
		return 2
	}
	// List is newest first; replay chronologically.
	slices.Reverse(incs)

	results := replay.Replay(snap, replay.FromIncidents(incs))
	summary := replay.Summarize(results, snap.Version())
	if jsonOut {
		return printJSON(map[string]any{"summary": summary, "results": results})
	}
	printResults(results, nil)
	printSummary(summary)
	return 0
}

// #endregion db-mode

// #region fixture-mode

func runFixtureMode(path, enginePath, questionsPath string, jsonOut bool) int {
	if enginePath == "" {
		fmt.Fprintln(os.Stderr, "fixture mode needs --engine and --questions for the base configuration")
		return 2
	}
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}
	base, err := config.LoadFiles(enginePath, questionsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load base config: %v\n", err)
		return 2
	}
	snap, err := f.Overrides.Apply(base)
	if err != nil {
		fmt.Fprintf(os.Stderr, "apply overrides: %v\n", err)
		return 2
	}

	results := replay.Replay(snap, f.ToCases())
	expected := make([]string, len(f.ExpectedResults))
	for i, e := range f.ExpectedResults {
		expected[i] = e.Action
	}

	if jsonOut {
		printJSON(results)
		return compare(results, expected)
	}
	printResults(results, expected)
	printSummary(replay.Summarize(results, snap.Version()))
	return compare(results, expected)
}

// compare returns 1 when any replayed action differs from the expected one.
func compare(results []replay.ReplayResult, expected []string) int {
	if len(results) != len(expected) {
		return 1
	}
	for i := range results {
		if results[i].Action != expected[i] {
			return 1
		}
	}
	return 0
}

// #endregion fixture-mode

// #region output

// printResults outputs a comparison table. expected may be nil.
func printResults(results []replay.ReplayResult, expected []string) {
	fmt.Printf("%-10s| %-14s| %-14s| %9s| %-11s| %s\n", "Incident", "Recorded", "Replayed", "Delta", "Action", "Match")
	fmt.Printf("%-10s+%-15s+%-15s+%10s+%-12s+%s\n",
		"----------", "---------------", "---------------", "----------", "------------", "------")

	for i, r := range results {
		match := "-"
		if i < len(expected) {
			match = "DIFF"
			if expected[i] == r.Action {
				match = "OK"
			}
		}
		fmt.Printf("%-10d| %-14s| %-14s| %+9.2f| %-11s| %s\n",
			r.IncidentID, r.RecordedClassification, r.Classification, r.Delta, r.Action, match)
	}
}

func printSummary(s replay.ReplaySummary) {
	fmt.Printf("\nSummary (config %s): %d total, %d escalate, %d de-escalate, %d unchanged\n",
		s.ConfigVersion, s.TotalCases, s.Escalations, s.Deescalations, s.Unchanged)
	if s.EscalatedFalsePositives > 0 || s.DeescalatedTruePositives > 0 {
		fmt.Printf("Review: %d escalated false positives, %d de-escalated true positives\n",
			s.EscalatedFalsePositives, s.DeescalatedTruePositives)
	}
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encode json: %v\n", err)
		return 1
	}
	return 0
}

// #endregion output
