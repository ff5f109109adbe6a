package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"profile-store/core/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// syncCmd is the parent command for all sync jobs.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync profiles from the relational store into the other stores",
	Long: `Runs operator sync jobs. The relational store is the source of truth
for every job except "to-relational".`,
}

var syncAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Sync every relational user into the other stores",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
			sum, err := rt.sync.SyncAllUsers(ctx)
			if err != nil {
				return fmt.Errorf("full sync failed: %w", err)
			}
			return printJSON(sum)
		})
	},
}

var syncUserCmd = &cobra.Command{
	Use:   "user [userId]",
	Short: "Sync one user into the other stores",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
			res, err := rt.sync.SyncUserToAllStores(ctx, args[0])
			if err != nil {
				return fmt.Errorf("user sync failed: %w", err)
			}
			return printJSON(res)
		})
	},
}

var syncTableCmd = &cobra.Command{
	Use:   "table [document|hierarchical]",
	Short: "Backfill one store from the relational table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, ok := store.ParseName(args[0])
		if !ok || target == store.Relational {
			return fmt.Errorf("unknown target store %q", args[0])
		}
		return withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
			res, err := rt.sync.SyncTableToStore(ctx, target)
			if err != nil {
				return fmt.Errorf("table sync failed: %w", err)
			}
			return printJSON(res)
		})
	},
}

var syncToDocumentCmd = &cobra.Command{
	Use:   "to-document [userId]",
	Short: "Copy one relational profile into the document store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
			p, err := rt.sync.SyncRelationalToDocument(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(p)
		})
	},
}

var syncToRelationalCmd = &cobra.Command{
	Use:   "to-relational [userId]",
	Short: "Copy one document profile into the relational store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
			p, err := rt.sync.SyncDocumentToRelational(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(p)
		})
	},
}

func init() {
	syncCmd.AddCommand(syncAllCmd, syncUserCmd, syncTableCmd, syncToDocumentCmd, syncToRelationalCmd)
	RootCmd.AddCommand(syncCmd)
}

// withRuntime runs fn against a freshly wired stack and tears it down after.
func withRuntime(ctx context.Context, fn func(ctx context.Context, rt *runtime) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := loadRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())
	defer rt.logger.Sync()

	if err := fn(ctx, rt); err != nil {
		rt.logger.Error("Command failed", zap.Error(err))
		return err
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
