package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"service-catalog/core/config"
	"service-catalog/core/logger"
	"service-catalog/core/reconcile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Flags for reconcile services command
	forceServices   bool
	pruneServices   bool
	dryRunServices  bool
	targetsServices []string
	yesConfirm      bool
)

// reconcileCmd is the parent command for all reconcile operations.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile service definitions into every target",
	Long: `Reconcile the source definitions into the database, the JSON snapshot
and, when enabled, the production API.`,
}

// servicesReconcileCmd runs a full sync of the service definitions.
var servicesReconcileCmd = &cobra.Command{
	Use:   "services",
	Short: "Reconcile service definitions (create, update, optionally prune)",
	Long: `Reconcile service definitions across database, snapshot and remote targets.

Creates missing records and updates records whose fields differ.
Optionally prune (delete) records that are absent from the definitions.

Examples:
  # Report only
  reconcile services --dry-run

  # Create and update
  reconcile services

  # Rewrite every record
  reconcile services --force

  # Prune with interactive confirmation
  reconcile services --prune

  # Prune the snapshot only, auto-confirmed
  reconcile services --prune --targets snapshot --yes`,
	RunE: runServicesReconcile,
}

func init() {
	reconcileCmd.AddCommand(servicesReconcileCmd)

	servicesReconcileCmd.Flags().BoolVar(&forceServices, "force", false, "Update every matched record even when unchanged")
	servicesReconcileCmd.Flags().BoolVar(&pruneServices, "prune", false, "Delete target records absent from the definitions")
	servicesReconcileCmd.Flags().BoolVar(&dryRunServices, "dry-run", false, "Plan only (no mutations even with --yes)")
	servicesReconcileCmd.Flags().StringSliceVar(&targetsServices, "targets", nil, "Restrict to targets (database,snapshot,remote)")
	servicesReconcileCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm destructive actions (non-interactive)")

	RootCmd.AddCommand(reconcileCmd)
}

func runServicesReconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer l.Sync()

	opts, err := syncOptions()
	if err != nil {
		return err
	}

	svc, client, err := buildCatalog(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer client.Close()

	l.Info("Starting service reconciliation", zap.Strings("targets", kindNames(svc.Kinds())))

	// Prune is destructive: show the plan first and ask.
	if opts.PruneMissing && !opts.DryRun {
		planOpts := opts
		planOpts.DryRun = true

		l.Info("Planning reconciliation...")
		plan, _, err := svc.Sync(ctx, planOpts)
		if err != nil {
			return fmt.Errorf("failed to plan reconciliation: %w", err)
		}
		printSyncResult(l, plan)

		if plannedDeletes(plan) == 0 {
			l.Info("No records to prune.")
		} else if !confirmDestructiveAction() {
			l.Warn("Operation cancelled by user. No changes were made.")
			return nil
		}
	}

	result, _, err := svc.Sync(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to reconcile: %w", err)
	}
	printSyncResult(l, result)

	if opts.DryRun {
		l.Info("Dry-run mode: No changes were made.")
	}

	if failed := result.Failed(); len(failed) > 0 {
		return fmt.Errorf("targets failed: %s", strings.Join(kindNames(failed), ", "))
	}
	return nil
}

func syncOptions() (reconcile.SyncOptions, error) {
	opts := reconcile.SyncOptions{
		ReconcileOptions: reconcile.ReconcileOptions{
			DryRun:       dryRunServices,
			ForceUpdate:  forceServices,
			PruneMissing: pruneServices,
		},
	}
	for _, name := range targetsServices {
		kind, err := reconcile.ParseKind(strings.TrimSpace(name))
		if err != nil {
			return opts, err
		}
		opts.Only = append(opts.Only, kind)
	}
	return opts, nil
}

func plannedDeletes(result *reconcile.SyncResult) int {
	n := 0
	for _, res := range result.Results {
		if res.Report != nil {
			n += res.Report.Deleted
		}
	}
	return n
}

func kindNames(kinds []reconcile.Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

// printSyncResult prints a per-target reconciliation report using logger.
func printSyncResult(l *zap.Logger, result *reconcile.SyncResult) {
	for _, kind := range result.Order {
		res := result.Results[kind]
		if res == nil {
			continue
		}
		tl := logger.WithTarget(l, string(kind))
		if res.Report == nil {
			tl.Error("Target failed", zap.String("error", res.Error))
			continue
		}

		r := res.Report
		fields := []zap.Field{
			zap.String("status", string(res.Status)),
			zap.Bool("dry_run", r.DryRun),
			zap.Int("created", r.Created),
			zap.Int("updated", r.Updated),
			zap.Int("unchanged", r.Unchanged),
			zap.Int("deleted", r.Deleted),
			zap.Int("errors", r.Errors),
		}
		if r.PruneSkipped {
			fields = append(fields, zap.Bool("prune_skipped", true))
		}
		if res.Error != "" {
			fields = append(fields, zap.String("error", res.Error))
		}
		tl.Info("Reconciliation report", fields...)

		// Show sample of changes (max 5 for logger)
		maxShow := 5
		shown := 0
		hidden := 0
		for _, o := range r.Outcomes {
			if o.Action == reconcile.ActionUnchanged {
				continue
			}
			if shown == maxShow {
				hidden++
				continue
			}
			shown++
			tl.Info("Sample action",
				zap.String("type", string(o.Action)),
				zap.String("name", o.Name),
				zap.String("id", o.ID),
				zap.Strings("mismatch", o.Mismatch),
				zap.String("error", o.Error),
			)
		}
		if hidden > 0 {
			tl.Info("Additional actions not shown", zap.Int("count", hidden))
		}
	}
	l.Info("Reconciliation finished", zap.Duration("duration", result.Duration))
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
