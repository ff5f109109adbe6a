package cmd

import (
	"context"
	"time"

	"profile-store/core/replication"
	"profile-store/core/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// statusReport is printed by the status command.
type statusReport struct {
	Status         replication.Status `json:"status"`
	MissingColumns []string           `json:"missing_columns,omitempty"`
	SchemaError    string             `json:"schema_error,omitempty"`
	ProbeDuration  string             `json:"probe_duration"`
}

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe every store once and report health and schema drift",
	Long: `Connects every configured store, runs one health probe and prints the
ranked store health as JSON, together with relational columns missing from
the profile table.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
			began := time.Now()
			rt.monitor.ProbeAll(ctx)
			report := statusReport{
				Status:        rt.store.GetStatus(),
				ProbeDuration: time.Since(began).String(),
			}

			if a, ok := rt.store.Adapter(store.Relational); ok {
				if inspector, ok := a.(interface {
					MissingColumns(ctx context.Context) ([]string, error)
				}); ok {
					missing, err := inspector.MissingColumns(ctx)
					if err != nil {
						rt.logger.Warn("Schema check failed", zap.Error(err))
						report.SchemaError = err.Error()
					}
					report.MissingColumns = missing
				}
			}
			return printJSON(report)
		})
	},
}

func init() {
	RootCmd.AddCommand(statusCmd)
}
