package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/submerge/internal/pipeline"
	"github.com/John-Robertt/submerge/internal/report"
	"github.com/John-Robertt/submerge/internal/sources"
)

// NewGenerateCmd creates the generate command.
func NewGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Fetch every source once and write the merged document",
		Long: `Generate reads a source list, fetches and decodes every subscription and writes
one YAML document. Sources that fail are listed in the comment block at the top
of the output; they never stop the run.

Examples:
  # Write output.yaml from sources.txt
  submerge generate -i sources.txt -o output.yaml

  # Read the list from stdin, print to stdout and keep a Markdown report
  cat sources.txt | submerge generate -i - -o - --report report.md`,
		Args: cobra.NoArgs,
		RunE: runGenerateCmd,
	}

	cmd.Flags().StringP("input", "i", "sources.txt", "source list file (- for stdin)")
	cmd.Flags().StringP("output", "o", "output.yaml", "output YAML file (- for stdout)")
	cmd.Flags().StringP("report", "r", "", "also write a Markdown run report to this file")
	cmd.Flags().StringP("template", "t", "", "base template file replacing the embedded one")

	return cmd
}

func runGenerateCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if tpl, _ := cmd.Flags().GetString("template"); tpl != "" {
		cfg.Output.Template = tpl
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := newLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return err
	}

	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")
	reportPath, _ := cmd.Flags().GetString("report")

	text, err := readInput(cmd.InOrStdin(), input)
	if err != nil {
		return err
	}
	entries := sources.Parse(text)
	if len(entries) == 0 {
		log.Warn("source list has no URLs; writing the placeholder document")
	}

	runner, err := pipeline.New(cfg, pipeline.WithLogger(log))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, runErr := runner.Run(ctx, entries)
	if out == nil {
		return runErr
	}

	if err := writeOutput(cmd.OutOrStdout(), output, out.YAML); err != nil {
		return err
	}
	if reportPath != "" {
		if err := writeReport(reportPath, out.Summary); err != nil {
			return err
		}
	}
	if output != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s: %d nodes from %d/%d sources\n",
			output, out.Summary.Emitted, out.Summary.Succeeded(), len(out.Summary.Outcomes))
	}
	if runErr != nil {
		return fmt.Errorf("interrupted, output is partial: %w", runErr)
	}
	return nil
}

func readInput(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read source list: %w", err)
	}
	return string(data), nil
}

// writeOutput replaces path through a temp file in the same directory so a
// reader never sees a half-written document.
func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write output file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return nil
}

func writeReport(path string, s report.Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := report.WriteMarkdown(f, s); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}
