package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ajdoyl2/data-practitioner-agent-system-sub006/internal/deploy"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Run and inspect blue-green deployments",
}

var deployRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the blue-green deployment pipeline",
	Long: `Run the six-step blue-green pipeline against an environment:
pre_validation, create_shadow, shadow_validation, safety_checks,
atomic_swap, post_validation. Only atomic_swap changes live traffic.`,
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustOpenWorkspace()
		environment, _ := cmd.Flags().GetString("environment")
		if environment == "" {
			FatalErrorRespectJSON("--environment is required")
		}
		if err := ws.ensureDir(); err != nil {
			FatalErrorRespectJSON("creating workspace: %v", err)
		}

		orch := ws.deployOrchestrator()
		rec, err := orch.Deploy(rootCtx, environment)

		if jsonOutput {
			if rec != nil {
				outputJSON(rec)
			}
			if err != nil {
				os.Exit(1)
			}
			return
		}

		if rec != nil {
			printDeploySteps(rec)
		}
		if err != nil {
			if errors.Is(err, deploy.ErrDeploymentInProgress) {
				FatalError("another deployment is already running for %s", environment)
			}
			FatalError("%v", err)
		}
		fmt.Printf("Deployment %s completed in %s\n", rec.ID,
			(time.Duration(rec.DurationMS) * time.Millisecond).String())
	},
}

func printDeploySteps(rec *deploy.Record) {
	for _, step := range rec.Steps {
		switch step.Status {
		case deploy.StepCompleted:
			fmt.Printf("%s %s (%dms)\n", color.GreenString("✓"), step.Name, step.DurationMS)
		case deploy.StepFailed:
			fmt.Printf("%s %s: %s\n", color.RedString("✗"), step.Name, step.Error)
		default:
			fmt.Printf("  %s (%s)\n", step.Name, step.Status)
		}
		for _, w := range step.Warnings {
			fmt.Printf("  %s %s\n", color.YellowString("!"), w)
		}
	}
	if rec.RollbackAttempted {
		fmt.Println(color.YellowString("rollback attempted, see audit log"))
	}
}

var deployHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent deployments, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustOpenWorkspace()
		n, _ := cmd.Flags().GetInt("limit")

		records, err := ws.deployOrchestrator().History(n)
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}

		if jsonOutput {
			outputJSON(records)
			return
		}
		for _, rec := range records {
			status := string(rec.Status)
			switch rec.Status {
			case deploy.StatusCompleted:
				status = color.GreenString(status)
			case deploy.StatusFailed:
				status = color.RedString(status)
			}
			fmt.Printf("%s  %-10s %-10s %s\n",
				rec.StartedAt.Format("2006-01-02 15:04:05"), rec.Environment, status, rec.ID)
		}
	},
}

var deployReportCmd = &cobra.Command{
	Use:   "report <deployment-id>",
	Short: "Render a markdown report for one deployment",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustOpenWorkspace()

		rec, err := ws.deployOrchestrator().Status(args[0])
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}

		if jsonOutput {
			outputJSON(rec)
			return
		}
		fmt.Print(deploy.Report(rec))
	},
}

func init() {
	deployRunCmd.Flags().String("environment", "", "target environment (required)")
	deployHistoryCmd.Flags().IntP("limit", "n", 10, "number of deployments to show")

	deployCmd.AddCommand(deployRunCmd, deployHistoryCmd, deployReportCmd)
	rootCmd.AddCommand(deployCmd)
}
