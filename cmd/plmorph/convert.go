package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"plmorph/dialect"
	"plmorph/diag"
	"plmorph/transpiler"
)

func runConvert(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	optionsFile, _ := flags.GetString("options")
	opts, err := loadOptions(optionsFile)
	if err != nil {
		return err
	}
	// Explicit flags win over options-file values.
	if flags.Changed("from") {
		opts.From, _ = flags.GetString("from")
	}
	if flags.Changed("to") {
		opts.To, _ = flags.GetString("to")
	}
	if flags.Changed("jobs") {
		opts.Jobs, _ = flags.GetInt("jobs")
	}
	if flags.Changed("strict") {
		opts.Strict, _ = flags.GetBool("strict")
	}
	if flags.Changed("rules") {
		opts.Rules, _ = flags.GetBool("rules")
	}
	if flags.Changed("quiet") {
		opts.Quiet, _ = flags.GetBool("quiet")
	}
	if flags.Changed("color") {
		opts.Color, _ = flags.GetString("color")
	}
	switch opts.Color {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	}

	source, err := dialect.Parse(opts.From)
	if err != nil {
		return err
	}
	if opts.To == "" {
		return fmt.Errorf("--to is required (mysql or postgres)")
	}
	target, err := dialect.Parse(opts.To)
	if err != nil {
		return err
	}

	inputDir, _ := flags.GetString("dir")
	readStdin, _ := flags.GetBool("stdin")
	output, _ := flags.GetString("output")
	outDir, _ := flags.GetString("outdir")
	force, _ := flags.GetBool("force")

	inputFile := ""
	if len(args) == 1 {
		inputFile = args[0]
	}
	if err := validateModes(inputFile, inputDir, readStdin, output, outDir); err != nil {
		return err
	}

	run := runner{
		source: source,
		target: target,
		opts:   opts,
		force:  force,
		stdout: cmd.OutOrStdout(),
		stderr: cmd.ErrOrStderr(),
	}

	switch {
	case inputDir != "":
		return run.directory(inputDir, outDir)
	case inputFile != "":
		return run.file(inputFile, output)
	case readStdin:
		return run.stream(cmd.InOrStdin(), output)
	default:
		return fmt.Errorf("no input: pass a file, --dir or --stdin")
	}
}

func validateModes(inputFile, inputDir string, readStdin bool, output, outDir string) error {
	modes := 0
	if inputFile != "" {
		modes++
	}
	if inputDir != "" {
		modes++
	}
	if readStdin {
		modes++
	}
	if modes > 1 {
		return fmt.Errorf("cannot combine multiple input modes (file, --dir, --stdin)")
	}
	if outDir != "" && inputDir == "" {
		return fmt.Errorf("--outdir requires --dir (directory-to-directory mode)")
	}
	if output != "" && outDir != "" {
		return fmt.Errorf("cannot specify both --output and --outdir")
	}
	return nil
}

type runner struct {
	source, target dialect.Dialect
	opts           options
	force          bool
	stdout         io.Writer
	stderr         io.Writer

	mu        sync.Mutex
	sawErrors bool
}

func (r *runner) file(path, output string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	converted, led := r.convert(string(data))
	r.report(path, led)
	if err := r.write(output, converted); err != nil {
		return err
	}
	return r.strictResult()
}

func (r *runner) stream(in io.Reader, output string) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	converted, led := r.convert(string(data))
	r.report("<stdin>", led)
	if err := r.write(output, converted); err != nil {
		return err
	}
	return r.strictResult()
}

var sqlExtensions = map[string]bool{".sql": true, ".pks": true, ".pkb": true, ".prc": true, ".fnc": true}

func (r *runner) directory(dir, outDir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && sqlExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return fmt.Errorf("no convertible files in %s", dir)
	}
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
	}

	var g errgroup.Group
	g.SetLimit(r.opts.Jobs)
	for _, name := range files {
		name := name
		g.Go(func() error {
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return err
			}
			converted, led := r.convert(string(data))
			r.report(name, led)
			if outDir == "" {
				return nil
			}
			return r.write(filepath.Join(outDir, name), converted)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return r.strictResult()
}

// convert runs one unit through the core with its own ledger; ledgers are
// never shared between parallel conversions.
func (r *runner) convert(text string) (string, *diag.Ledger) {
	led := diag.NewLedger()
	converted := transpiler.Convert(text, r.source, r.target, led)
	if led.Count(diag.SeverityError) > 0 {
		r.mu.Lock()
		r.sawErrors = true
		r.mu.Unlock()
	}
	return converted, led
}

func (r *runner) write(path, content string) error {
	if path == "" {
		_, err := io.WriteString(r.stdout, content)
		return err
	}
	if !r.force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s exists; use --force to overwrite", path)
		}
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

var (
	errorLabel = color.New(color.FgRed, color.Bold).SprintFunc()
	warnLabel  = color.New(color.FgYellow).SprintFunc()
	infoLabel  = color.New(color.FgCyan).SprintFunc()
	ruleLabel  = color.New(color.Faint).SprintFunc()
)

// report prints the ledger for one unit. Output is serialized so parallel
// directory conversions do not interleave lines.
func (r *runner) report(name string, led *diag.Ledger) {
	if r.opts.Quiet {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range led.Warnings() {
		label := infoLabel("info")
		switch w.Severity {
		case diag.SeverityError:
			label = errorLabel("error")
		case diag.SeverityWarning:
			label = warnLabel("warning")
		}
		fmt.Fprintf(r.stderr, "%s: %s: %s\n", name, label, w.Message)
		if w.Suggestion != "" {
			fmt.Fprintf(r.stderr, "%s  suggestion: %s\n", strings.Repeat(" ", len(name)), w.Suggestion)
		}
	}
	if r.opts.Rules {
		for _, rule := range led.Rules() {
			fmt.Fprintf(r.stderr, "%s: %s\n", name, ruleLabel(rule))
		}
	}
}

func (r *runner) strictResult() error {
	if r.opts.Strict && r.sawErrors {
		return fmt.Errorf("conversion recorded error-severity warnings")
	}
	return nil
}
