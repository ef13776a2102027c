package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ajdoyl2/data-practitioner-agent-system-sub006/internal/flags"
)

var featureCmd = &cobra.Command{
	Use:   "feature",
	Short: "Manage feature flags",
	Long: `Inspect and change the dependency-aware feature registry.

A feature is only effectively enabled when its whole dependency chain
is enabled; 'feature list' shows both the raw and effective state.`,
}

var featureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List features with raw and effective state",
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustOpenWorkspace()
		infos := ws.store.List()

		if jsonOutput {
			outputJSON(infos)
			return
		}

		on := color.New(color.FgGreen).SprintFunc()
		off := color.New(color.FgRed).SprintFunc()
		dim := color.New(color.Faint).SprintFunc()

		for _, info := range infos {
			glyph := off("○")
			if info.Effective {
				glyph = on("●")
			} else if info.Enabled {
				// enabled but starved by a disabled dependency
				glyph = off("◐")
			}
			line := fmt.Sprintf("%s %s", glyph, info.Name)
			if len(info.Dependencies) > 0 {
				line += dim(" (needs " + strings.Join(info.Dependencies, ", ") + ")")
			}
			fmt.Println(line)
		}
	},
}

var featureEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a feature flag",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustOpenWorkspace()
		force, _ := cmd.Flags().GetBool("force")

		if err := ws.store.EnableFeature(args[0], force); err != nil {
			var dep *flags.DependencyError
			if errors.As(err, &dep) {
				FatalErrorRespectJSON("%v (use --force to enable anyway)", err)
			}
			FatalErrorRespectJSON("%v", err)
		}

		if jsonOutput {
			outputJSON(map[string]any{"feature": args[0], "enabled": true})
			return
		}
		fmt.Printf("Enabled %s\n", args[0])
		if !ws.store.IsEnabled(args[0]) {
			WarnError("%s is enabled but not effective: a dependency is still disabled", args[0])
		}
	},
}

var featureDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a feature flag",
	Long: `Disable a feature flag.

With --cascade, every feature that transitively depends on it is
disabled too, in dependency discovery order.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustOpenWorkspace()
		cascade, _ := cmd.Flags().GetBool("cascade")

		disabled, err := ws.store.DisableFeature(args[0], cascade)
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}

		if jsonOutput {
			outputJSON(map[string]any{"disabled": disabled})
			return
		}
		for _, name := range disabled {
			fmt.Printf("Disabled %s\n", name)
		}
	},
}

var featureValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the feature registry",
	Long: `Check the registry for circular dependencies, references to
unknown features, and missing metadata.`,
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustOpenWorkspace()
		result := ws.store.Validate()

		if jsonOutput {
			msgs := make([]string, 0, len(result.Errors))
			for _, err := range result.Errors {
				msgs = append(msgs, err.Error())
			}
			outputJSON(map[string]any{
				"valid":    result.Valid,
				"errors":   msgs,
				"warnings": result.Warnings,
			})
			if !result.Valid {
				os.Exit(1)
			}
			return
		}

		for _, err := range result.Errors {
			fmt.Println(color.RedString("error: %v", err))
		}
		for _, w := range result.Warnings {
			fmt.Println(color.YellowString("warning: %s", w))
		}
		if !result.Valid {
			FatalError("registry validation failed")
		}
		fmt.Println("Registry is valid")
	},
}

var featureInfoCmd = &cobra.Command{
	Use:   "info <name>",
	Short: "Show one feature's definition and effective state",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustOpenWorkspace()
		info, err := ws.store.Info(args[0])
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}

		if jsonOutput {
			outputJSON(info)
			return
		}
		fmt.Printf("Name:         %s\n", info.Name)
		fmt.Printf("Enabled:      %v\n", info.Enabled)
		fmt.Printf("Effective:    %v\n", info.Effective)
		if info.Description != "" {
			fmt.Printf("Description:  %s\n", info.Description)
		}
		if len(info.Dependencies) > 0 {
			fmt.Printf("Dependencies: %s\n", strings.Join(info.Dependencies, ", "))
		}
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a dpa workspace with the default feature registry",
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustOpenWorkspace()
		environment, _ := cmd.Flags().GetString("environment")

		if err := ws.ensureDir(); err != nil {
			FatalErrorRespectJSON("creating workspace: %v", err)
		}
		if err := ws.store.Init(environment); err != nil {
			if errors.Is(err, fs.ErrExist) {
				FatalErrorRespectJSON("registry already exists at %s", ws.store.Path())
			}
			FatalErrorRespectJSON("%v", err)
		}

		if jsonOutput {
			outputJSON(map[string]string{"workspace": ws.dir, "registry": ws.store.Path()})
			return
		}
		fmt.Printf("Initialized workspace at %s\n", ws.dir)
	},
}

func init() {
	featureEnableCmd.Flags().Bool("force", false, "enable even with disabled dependencies")
	featureDisableCmd.Flags().Bool("cascade", false, "also disable transitive dependents")
	initCmd.Flags().String("environment", "development", "environment recorded in registry metadata")

	featureCmd.AddCommand(featureListCmd, featureEnableCmd, featureDisableCmd,
		featureValidateCmd, featureInfoCmd)
	rootCmd.AddCommand(featureCmd, initCmd)
}
