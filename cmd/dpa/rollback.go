package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ajdoyl2/data-practitioner-agent-system-sub006/internal/rollback"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back deployed stories",
	Long: `Run story rollback scripts and disable the mapped feature flags.

Each story maps to one feature flag and one rollback script. Use
--dry-run first: the script sees ROLLBACK_DRY_RUN=1 and no flags are
touched.`,
}

var rollbackStoryCmd = &cobra.Command{
	Use:   "story <id>",
	Short: "Roll back a single story",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustOpenWorkspace()
		orch, err := ws.rollbackOrchestrator()
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		verbose, _ := cmd.Flags().GetBool("verbose")
		keepFlag, _ := cmd.Flags().GetBool("keep-flag")
		reason, _ := cmd.Flags().GetString("reason")

		res, err := orch.RollbackStory(rootCtx, args[0], rollback.Options{
			DryRun:   dryRun,
			Verbose:  verbose,
			Reason:   reason,
			KeepFlag: keepFlag,
		})
		if err != nil {
			if res != nil && verbose {
				printScriptOutput(res)
			}
			FatalErrorRespectJSON("%v", err)
		}

		if jsonOutput {
			outputJSON(res)
			return
		}
		if verbose {
			printScriptOutput(res)
		}
		if dryRun {
			fmt.Printf("Dry run for story %s (%s) succeeded; no flags changed\n",
				res.StoryID, res.Feature)
			return
		}
		fmt.Printf("Rolled back story %s (%s)\n", res.StoryID, res.Feature)
	},
}

var rollbackMultiCmd = &cobra.Command{
	Use:   "multi <id>...",
	Short: "Roll back several stories, newest first",
	Long: `Roll back several stories in reverse of the given order, so later
work is undone before the stories it was built on. Stops at the first
failure unless --continue-on-error is set.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustOpenWorkspace()
		orch, err := ws.rollbackOrchestrator()
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}

		continueOnError, _ := cmd.Flags().GetBool("continue-on-error")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		results, err := orch.RollbackMultipleStories(rootCtx, args, rollback.MultiOptions{
			ContinueOnError: continueOnError,
			DryRun:          dryRun,
		})

		if jsonOutput {
			outputJSON(results)
			if err != nil {
				os.Exit(1)
			}
			return
		}

		for _, res := range results {
			if res.Success {
				fmt.Printf("%s story %s (%s)\n", color.GreenString("ok"), res.StoryID, res.Feature)
			} else {
				fmt.Printf("%s story %s: exit %d\n", color.RedString("failed"), res.StoryID, res.ExitCode)
			}
		}
		if err != nil {
			FatalError("%v", err)
		}
	},
}

var rollbackStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show rollback readiness per story",
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustOpenWorkspace()
		orch, err := ws.rollbackOrchestrator()
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}

		statuses := orch.Status()
		if jsonOutput {
			outputJSON(statuses)
			return
		}

		for _, st := range statuses {
			state := color.GreenString("ready")
			if !st.ScriptExists {
				state = color.RedString("script missing")
			} else if !st.FeatureEnabled {
				state = color.YellowString("feature disabled")
			}
			fmt.Printf("%-6s %-28s %s\n", st.StoryID, st.Feature, state)
		}
	},
}

var rollbackDocsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Generate markdown rollback runbook",
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustOpenWorkspace()
		orch, err := ws.rollbackOrchestrator()
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		fmt.Print(orch.GenerateDocs())
	},
}

func printScriptOutput(res *rollback.Result) {
	if res.Stdout != "" {
		fmt.Print(res.Stdout)
	}
	if res.Stderr != "" {
		fmt.Fprint(os.Stderr, res.Stderr)
	}
}

func init() {
	rollbackStoryCmd.Flags().Bool("dry-run", false, "run the script with ROLLBACK_DRY_RUN=1 and keep flags")
	rollbackStoryCmd.Flags().Bool("verbose", false, "print captured script output")
	rollbackStoryCmd.Flags().Bool("keep-flag", false, "do not disable the mapped feature flag")
	rollbackStoryCmd.Flags().String("reason", "", "reason recorded in the audit log")
	rollbackMultiCmd.Flags().Bool("continue-on-error", false, "keep rolling back after a failure")
	rollbackMultiCmd.Flags().Bool("dry-run", false, "dry-run every story")

	rollbackCmd.AddCommand(rollbackStoryCmd, rollbackMultiCmd, rollbackStatusCmd, rollbackDocsCmd)
	rootCmd.AddCommand(rollbackCmd)
}
