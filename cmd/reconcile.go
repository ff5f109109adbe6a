package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"profile-store/core/reconcile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Flags for reconcile command
	syncProfiles  bool
	dryRunProfile bool
	yesConfirm    bool
	reconcileUser string
)

// reconcileCmd compares every available store against the relational copy.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Detect profile drift between the stores (report + optionally sync)",
	Long: `Reconcile profiles across the relational, document and hierarchical stores.

Reports profiles missing from a store and fields that differ from the
relational copy. Optionally sync (rewrite) the drifted copies.

Examples:
  # Report only
  reconcile

  # Sync drifted copies (with interactive confirmation)
  reconcile --sync

  # Sync with auto-confirm (non-interactive)
  reconcile --sync --yes

  # Show what a sync would do without writing
  reconcile --sync --dry-run

  # Drift of a single profile
  reconcile --user u1`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVar(&syncProfiles, "sync", false, "Enable sync (rewrite drifted copies from the relational store)")
	reconcileCmd.Flags().BoolVar(&dryRunProfile, "dry-run", false, "Force dry-run (no mutations even with --yes)")
	reconcileCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm destructive actions (non-interactive)")
	reconcileCmd.Flags().StringVar(&reconcileUser, "user", "", "Only report the drift of this user id")

	RootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	return withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
		l := rt.logger
		if reconcileUser != "" {
			drift, err := rt.sync.ReconcileUser(ctx, reconcileUser)
			if err != nil {
				return fmt.Errorf("failed to reconcile %s: %w", reconcileUser, err)
			}
			return printJSON(drift)
		}

		opts := reconcile.ReconcileOptions{
			DoSync:    syncProfiles,
			DryRun:    true,
			Confirmed: false, // Will be set after confirmation prompt
		}

		// Step 1: Plan (always runs)
		l.Info("Planning reconciliation...")
		report, err := rt.sync.Reconcile(ctx, opts)
		if err != nil {
			return fmt.Errorf("failed to plan reconciliation: %w", err)
		}
		if len(report.Skipped) > 0 {
			l.Warn("Unavailable stores left out", zap.Any("stores", report.Skipped))
		}

		// Step 2: Print report
		printReconcileReport(l, report.Plan)

		// Step 3: Check if actions are requested
		if !syncProfiles {
			l.Info("No actions requested. Use --sync to rewrite drifted copies.")
			return nil
		}
		if dryRunProfile {
			l.Info("Dry-run mode: No changes were made.")
			return nil
		}
		if len(report.Plan.Actions) == 0 {
			l.Info("No actions required.")
			return nil
		}

		// Step 4: Apply (if confirmed)
		if !confirmDestructiveAction() {
			l.Warn("Operation cancelled by user. No changes were made.")
			return nil
		}
		opts.DryRun = false
		opts.Confirmed = true

		l.Info("Applying actions...")
		applied, err := rt.sync.Reconcile(ctx, opts)
		if err != nil {
			return fmt.Errorf("failed to apply plan: %w", err)
		}
		l.Info("Successfully executed actions", zap.Int("count", applied.Executed))
		return nil
	})
}

// printReconcileReport prints a formatted reconciliation report using logger.
func printReconcileReport(l *zap.Logger, plan *reconcile.ReconcilePlan) {
	s := plan.Summary

	fields := []zap.Field{
		zap.Int("total_profiles", s.TotalItems),
		zap.Int("mismatches", s.Mismatches),
	}
	for name, n := range s.Missing {
		fields = append(fields, zap.Int("missing_"+string(name), n))
	}
	l.Info("Reconciliation report", fields...)

	if len(plan.Actions) == 0 {
		return
	}
	l.Info("Planned actions", zap.Int("sync_actions", s.SyncActions))

	// Show sample of actions (max 5 for logger)
	maxShow := min(5, len(plan.Actions))
	for _, action := range plan.Actions[:maxShow] {
		l.Info("Sample action",
			zap.String("type", string(action.Type)),
			zap.String("key", action.Key),
			zap.String("target", string(action.Target)),
			zap.String("reason", action.Reason),
		)
	}
	if len(plan.Actions) > maxShow {
		l.Info("Additional actions not shown", zap.Int("count", len(plan.Actions)-maxShow))
	}
}

// confirmDestructiveAction prompts the user for confirmation or uses --yes flag.
func confirmDestructiveAction() bool {
	if yesConfirm {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Print("\n⚠️  Type 'yes' to confirm destructive actions: ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(response)
	return response == "yes"
}
