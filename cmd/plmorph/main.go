package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "plmorph [file]",
	Short: "Convert stored-routine code between procedural SQL dialects",
	Long: `plmorph translates Oracle PL/SQL routines, triggers and packages into
MySQL or PostgreSQL procedural code, together with a report of every
transformation applied and every spot where the translation is lossy.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runConvert,
}

func main() {
	rootCmd.Version = version

	flags := rootCmd.Flags()
	flags.String("from", "oracle", "source dialect (oracle)")
	flags.String("to", "", "target dialect (mysql, postgres)")
	flags.StringP("output", "o", "", "write converted code to a single file")
	flags.StringP("outdir", "O", "", "write converted files to a directory (with --dir)")
	flags.StringP("dir", "d", "", "convert every .sql/.pks/.pkb file in a directory")
	flags.BoolP("stdin", "s", false, "read the routine from stdin")
	flags.BoolP("force", "f", false, "allow overwriting existing files")
	flags.Int("jobs", 4, "parallel conversions in directory mode")
	flags.Bool("strict", false, "exit non-zero when any error-severity warning is recorded")
	flags.Bool("rules", false, "also print the applied-rule audit trail")
	flags.Bool("quiet", false, "suppress the warning report")
	flags.String("color", "auto", "colorize the report (auto|on|off)")
	flags.String("options", "", "YAML file with defaults for the flags above")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
