package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/socassist/risk-engine/internal/admin"
	"github.com/socassist/risk-engine/internal/audit"
	"github.com/socassist/risk-engine/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to risk_engine.db")
	last := flag.Int("last", 20, "show N most recent rows")
	version := flag.String("version", "", "show single version detail")
	history := flag.Bool("history", false, "show weight history instead of versions")
	target := flag.String("target", "", "filter weight history to one question, module or tier")
	runs := flag.Bool("runs", false, "show calibration runs instead of versions")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" || *last <= 0 {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/risk_engine.db [--last N] [--version id | --history [--target id] | --runs] [--json]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	switch {
	case *version != "":
		err = runDetailMode(ctx, st, *version, *jsonOut)
	case *history:
		err = runHistoryMode(ctx, st, *target, *last, *jsonOut)
	case *runs:
		err = runRunsMode(ctx, st, *last, *jsonOut)
	default:
		err = runListMode(ctx, st, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	VersionID string `json:"version_id"`
	ParentID  string `json:"parent_id,omitempty"`
	Source    string `json:"source"`
	Active    bool   `json:"active"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt string `json:"created_at"`
}

func runListMode(ctx context.Context, st *store.Store, last int, jsonOut bool) error {
	versions, err := st.ListVersions(ctx, last)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(os.Stderr, "no versions found")
		return nil
	}
	active, err := st.ActiveVersion(ctx)
	if err != nil {
		return err
	}

	// Store returns newest first; show chronologically.
	rows := make([]listRow, len(versions))
	for i, v := range versions {
		rows[len(versions)-1-i] = listRow{
			VersionID: v.ID,
			ParentID:  v.ParentID,
			Source:    v.Source,
			Active:    v.ID == active,
			Reason:    v.Reason,
			CreatedAt: v.CreatedAt.Format(time.RFC3339),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-12s  %-12s  %-11s  %-6s  %-20s  %s\n", "Version", "Parent", "Source", "Active", "Time", "Reason")
	fmt.Printf("%-12s+-%-12s+-%-11s+-%-6s+-%-20s+-%s\n",
		"------------", "------------", "-----------", "------", "--------------------", "------")
	for _, r := range rows {
		mark := ""
		if r.Active {
			mark = "*"
		}
		fmt.Printf("%-12s  %-12s  %-11s  %-6s  %-20s  %s\n",
			shortID(r.VersionID), shortID(r.ParentID), r.Source, mark, r.CreatedAt, r.Reason)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type tierRow struct {
	Key string  `json:"key"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type detailOutput struct {
	VersionID       string               `json:"version_id"`
	ParentID        string               `json:"parent_id,omitempty"`
	Source          string               `json:"source"`
	Reason          string               `json:"reason,omitempty"`
	CreatedAt       string               `json:"created_at"`
	QuestionWeights map[string]float64   `json:"question_weights"`
	ModuleWeights   map[string]float64   `json:"module_weights"`
	Tiers           []tierRow            `json:"tiers"`
	ChangesVsParent []audit.WeightChange `json:"changes_vs_parent,omitempty"`
}

func runDetailMode(ctx context.Context, st *store.Store, id string, jsonOut bool) error {
	v, err := st.GetVersion(ctx, id)
	if err != nil {
		return err
	}
	snap := v.Snapshot

	out := detailOutput{
		VersionID:       v.ID,
		ParentID:        v.ParentID,
		Source:          v.Source,
		Reason:          v.Reason,
		CreatedAt:       v.CreatedAt.Format(time.RFC3339),
		QuestionWeights: make(map[string]float64),
		ModuleWeights:   snap.ModuleWeights(),
	}
	for _, q := range snap.Questions() {
		out.QuestionWeights[q.ID] = q.Weight
	}
	for _, t := range snap.Tiers() {
		out.Tiers = append(out.Tiers, tierRow{Key: t.Key, Min: t.Min, Max: t.Max})
	}
	if v.ParentID != "" {
		parent, err := st.GetVersion(ctx, v.ParentID)
		if err != nil {
			return fmt.Errorf("load parent: %w", err)
		}
		out.ChangesVsParent = admin.Diff(parent.Snapshot, snap)
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Version:  %s\n", out.VersionID)
	if out.ParentID != "" {
		fmt.Printf("Parent:   %s\n", out.ParentID)
	}
	fmt.Printf("Source:   %s\n", out.Source)
	fmt.Printf("Created:  %s\n", out.CreatedAt)
	if out.Reason != "" {
		fmt.Printf("Reason:   %s\n", out.Reason)
	}

	fmt.Printf("\nModules:\n")
	for _, m := range snap.Modules() {
		fmt.Printf("  %-16s  %6.3f\n", m.ID, snap.ModuleWeight(m.ID))
	}
	fmt.Printf("\nQuestions:\n")
	for _, q := range snap.Questions() {
		fmt.Printf("  %-8s  %-16s  %6.3f\n", q.ID, q.Module, q.Weight)
	}
	fmt.Printf("\nTiers:\n")
	for _, t := range out.Tiers {
		fmt.Printf("  %-16s  [%g, %g]\n", t.Key, t.Min, t.Max)
	}
	if len(out.ChangesVsParent) > 0 {
		fmt.Printf("\nChanges vs parent:\n")
		for _, c := range out.ChangesVsParent {
			fmt.Printf("  %-16s  %-16s  %s\n", c.Kind, c.TargetID, formatChange(c))
		}
	}
	return nil
}

// #endregion detail-mode

// #region history-mode

func runHistoryMode(ctx context.Context, st *store.Store, target string, last int, jsonOut bool) error {
	changes, err := audit.ListWeightHistory(ctx, st.DB(), target, last)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(changes)
	}
	if len(changes) == 0 {
		fmt.Fprintln(os.Stderr, "no weight history found")
		return nil
	}

	fmt.Printf("%-20s  %-16s  %-10s  %-24s  %-12s  %s\n", "Time", "Kind", "Target", "Change", "Source", "Reason")
	fmt.Printf("%-20s+-%-16s+-%-10s+-%-24s+-%-12s+-%s\n",
		"--------------------", "----------------", "----------", "------------------------", "------------", "------")
	for _, c := range changes {
		fmt.Printf("%-20s  %-16s  %-10s  %-24s  %-12s  %s\n",
			c.CreatedAt.Format(time.RFC3339), c.Kind, c.TargetID, formatChange(c), c.Source, c.Reason)
	}
	return nil
}

func formatChange(c audit.WeightChange) string {
	if c.Kind == audit.KindThreshold {
		return fmt.Sprintf("[%g,%g] -> [%g,%g]", c.OldValue, c.OldMax, c.NewValue, c.NewMax)
	}
	return fmt.Sprintf("%.3f -> %.3f", c.OldValue, c.NewValue)
}

// #endregion history-mode

// #region runs-mode

func runRunsMode(ctx context.Context, st *store.Store, last int, jsonOut bool) error {
	runs, err := audit.ListCalibrationRuns(ctx, st.DB(), last)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no calibration runs found")
		return nil
	}

	fmt.Printf("%-12s  %-12s  %8s  %4s  %4s  %7s  %4s  %s\n", "Run", "Version", "Resolved", "TP", "FP", "FP %", "Adj", "Time")
	fmt.Printf("%-12s+-%-12s+-%8s+-%4s+-%4s+-%7s+-%4s+-%s\n",
		"------------", "------------", "--------", "----", "----", "-------", "----", "--------------------")
	for _, r := range runs {
		fmt.Printf("%-12s  %-12s  %8d  %4d  %4d  %7.1f  %4d  %s\n",
			shortID(r.RunID), shortID(r.ConfigVersion), r.TotalResolved, r.TruePositives,
			r.FalsePositives, r.FPRate, r.Adjustments, r.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

// #endregion runs-mode

// #region helpers

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// #endregion helpers
