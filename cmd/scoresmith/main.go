// cmd/scoresmith/main.go
//
// Entry point for the scoresmith CLI. Every subcommand runs against the
// project in --project (the working directory by default):
//
//	scoresmith init                    create .scoresmith/ and an example score
//	scoresmith add <name> <path>       register a score definition
//	scoresmith validate [path...]      check definitions without building
//	scoresmith build [score...]        interpret every segment in order
//	scoresmith status                  list scores and what is built
//	scoresmith show <score> <segment>  print one segment's records
//	scoresmith browse                  open the terminal browser
//	scoresmith serve                   rebuild and browse over HTTP

package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scoresmith",
		Short: "Interpret score segments into notation trees",
		Long: `scoresmith builds a score one segment at a time. Each segment's
commands are dispatched against a rhythmic skeleton, persistent indicators
are carried over from the previous segment, and the results are written to
the output directory for the next segment and for typesetting.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().String("project", "", "project directory (defaults to the working directory)")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize .scoresmith/ and an example score",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}

	addCmd := &cobra.Command{
		Use:   "add <name> <path>",
		Short: "Register a score definition (YAML or Go script)",
		Args:  cobra.ExactArgs(2),
		RunE:  runAdd,
	}

	validateCmd := &cobra.Command{
		Use:   "validate [path...]",
		Short: "Load and check score definitions without building",
		RunE:  runValidate,
	}

	buildCmd := &cobra.Command{
		Use:   "build [score...]",
		Short: "Build every segment of the named scores (all configured scores by default)",
		RunE:  runBuild,
	}
	buildCmd.Flags().String("segment", "", "rebuild only this segment, reading its predecessor from the output dir")
	buildCmd.Flags().Bool("json", false, "print the build report as JSON")
	buildCmd.Flags().StringSlice("activate", nil, "tag words to activate in every segment")
	buildCmd.Flags().StringSlice("deactivate", nil, "tag words to deactivate in every segment")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "List configured scores and their built segments",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
	statusCmd.Flags().Bool("json", false, "print status as JSON")

	showCmd := &cobra.Command{
		Use:   "show <score> <segment>",
		Short: "Print a built segment's metadata, persist record or tree",
		Args:  cobra.ExactArgs(2),
		RunE:  runShow,
	}
	showCmd.Flags().String("part", "metadata", "record to print: metadata|persist|tree|build")

	browseCmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse built segments in the terminal",
		Args:  cobra.NoArgs,
		RunE:  runBrowse,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve builds, built segments and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().String("addr", "", "listen address host:port (overrides config)")

	rootCmd.AddCommand(initCmd, addCmd, validateCmd, buildCmd, statusCmd, showCmd, browseCmd, serveCmd)
	return rootCmd
}
