// dpa is the data practitioner agent CLI: feature flag lifecycle,
// story rollback orchestration, and blue-green deployments for the
// transformation stack.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ajdoyl2/data-practitioner-agent-system-sub006/internal/telemetry"
)

// Version and Build are set at link time.
var (
	Version = "dev"
	Build   = "unknown"
)

var (
	workspaceFlag string
	jsonOutput    bool

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:   "dpa",
	Short: "dpa - data practitioner deployment agent",
	Long: `Feature-flag lifecycle, story rollback, and blue-green deployment
orchestration for the data transformation stack.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("dpa version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupSignalContext()
		applyViperOverrides(cmd)

		if err := telemetry.Init(rootCtx, "dpa", Version); err != nil {
			WarnError("telemetry disabled: %v", err)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		telemetry.Shutdown(rootCtx)
	},
}

// setupSignalContext cancels rootCtx on SIGINT/SIGTERM so in-flight
// engine subprocesses get killed instead of orphaned.
func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
}

// applyViperOverrides lets DPA_* env vars stand in for any flag the
// user did not set explicitly, e.g. DPA_DIR, DPA_JSON.
func applyViperOverrides(cmd *cobra.Command) {
	viper.SetEnvPrefix("DPA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if !f.Changed && viper.IsSet(f.Name) {
			_ = f.Value.Set(viper.GetString(f.Name))
		}
	})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workspaceFlag, "dir", "",
		"workspace directory (default: nearest .dpa, else ./.dpa)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"machine-readable JSON output")
	rootCmd.Flags().Bool("version", false, "print version and exit")
}

func main() {
	err := rootCmd.Execute()
	if rootCancel != nil {
		rootCancel()
	}
	if err != nil {
		os.Exit(1)
	}
}
