package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/socassist/risk-engine/internal/config"
	"github.com/socassist/risk-engine/internal/eval"
	"github.com/socassist/risk-engine/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to risk_engine.db")
	enginePath := flag.String("engine", "config/engine.jsonc", "engine configuration file")
	questionsPath := flag.String("questions", "config/questions.jsonc", "question catalog file")
	export := flag.Bool("export", false, "write the active version to --engine/--questions instead of importing")
	force := flag.Bool("force", false, "import even if an active version exists")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: bootstrap --db path/to/risk_engine.db [--engine f] [--questions f] [--export] [--force]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	if *export {
		err = exportActive(ctx, st, *enginePath, *questionsPath)
	} else {
		err = importFiles(ctx, st, *enginePath, *questionsPath, *force)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region import

func importFiles(ctx context.Context, st *store.Store, enginePath, questionsPath string, force bool) error {
	active, err := st.ActiveVersion(ctx)
	switch {
	case err == nil && !force:
		return fmt.Errorf("active version %s exists; use --force to import a new root", active)
	case err != nil && !errors.Is(err, store.ErrNoActiveVersion):
		return err
	}

	snap, err := config.LoadFiles(enginePath, questionsPath)
	if err != nil {
		return err
	}
	res := eval.NewEvalHarness(eval.DefaultEvalConfig()).Run(snap)
	for _, m := range res.Metrics {
		if !m.Pass {
			fmt.Fprintf(os.Stderr, "warning: %s: %.0f\n", m.Name, m.Value)
		}
	}
	if !res.Passed {
		return fmt.Errorf("configuration rejected: %s", res.Reason)
	}

	id, err := st.CreateInitial(ctx, snap, "imported from "+enginePath)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d questions, %d tiers as version %s\n", len(snap.Questions()), len(snap.Tiers()), id)
	return nil
}

// #endregion import

// #region export

func exportActive(ctx context.Context, st *store.Store, enginePath, questionsPath string) error {
	cur, err := st.Current(ctx)
	if err != nil {
		return err
	}
	if err := config.WriteFiles(cur.Snapshot, enginePath, questionsPath); err != nil {
		return err
	}
	fmt.Printf("exported version %s to %s and %s\n", cur.ID, enginePath, questionsPath)
	return nil
}

// #endregion export
