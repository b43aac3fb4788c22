package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rawp123/covertower/pkg/pipeline"
)

// renderCommand creates the render command for generating chart outputs.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		formatsStr    string
		output        string
		noCache       bool
		interactive   bool
		carriersStr   string
		groupsStr     string
		programsStr   string
		limitTypesStr string
	)
	opts := pipeline.Options{YearAxis: true}

	cmd := &cobra.Command{
		Use:   "render [dir]",
		Short: "Render a coverage tower chart from a directory of source tables",
		Long: `Render a coverage tower chart from a directory of source tables.

The directory is scanned for CSV and XLSX files named after the logical
tables they hold (policies, limits, carriers, carrier groups, programs,
limit types, policy dates). Policies and limits are required; everything
else enriches the output.

Results are cached locally for faster subsequent runs.

Examples:
  covertower render ./data                          # SVG next to the directory
  covertower render ./data -f json,svg,png          # multiple formats
  covertower render ./data --view carrierGroup      # group bars by carrier group
  covertower render ./data --view availability      # available vs unavailable bands
  covertower render ./data -t nodelink -f dot       # placement hierarchy as DOT`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Dir = args[0]
			opts.Formats = parseFormats(formatsStr)
			opts.Carriers = parseList(carriersStr)
			opts.Groups = parseList(groupsStr)
			opts.Programs = parseList(programsStr)
			opts.LimitTypes = parseList(limitTypesStr)
			c.Config.Apply(&opts)
			if err := opts.ValidateAndSetDefaults(); err != nil {
				return err
			}
			return c.runRender(cmd.Context(), opts, output, noCache, interactive)
		},
	}

	// Common flags
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "reload source data even when cached")

	// Aggregate flags
	cmd.Flags().StringVar(&opts.View, "view", "", "grouping view: carrier (default), carrierGroup, availability")
	cmd.Flags().StringVar(&opts.Theme, "theme", "", "color theme: light (default), dark")
	cmd.Flags().BoolVar(&opts.Annualized, "annualized", false, "keep renewal years as separate bars")
	cmd.Flags().StringVar(&carriersStr, "carriers", "", "only these carriers (comma-separated)")
	cmd.Flags().StringVar(&groupsStr, "groups", "", "only these carrier groups (comma-separated)")
	cmd.Flags().StringVar(&programsStr, "programs", "", "only these programs (comma-separated)")
	cmd.Flags().StringVar(&limitTypesStr, "limit-types", "", "only these limit types (comma-separated)")
	cmd.Flags().IntVar(&opts.YearMin, "year-min", 0, "first policy year to include")
	cmd.Flags().IntVar(&opts.YearMax, "year-max", 0, "last policy year to include")

	// Render flags
	cmd.Flags().StringVarP(&opts.VizType, "type", "t", "", "visualization type: chart (default), nodelink")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), json, png, pdf, dot (comma-separated)")
	cmd.Flags().Float64Var(&opts.Width, "width", 0, "frame width")
	cmd.Flags().Float64Var(&opts.Height, "height", 0, "frame height")
	cmd.Flags().StringVar(&opts.Title, "title", "", "chart title")
	cmd.Flags().BoolVar(&opts.Legend, "legend", true, "draw the legend")
	cmd.Flags().BoolVar(&opts.Detailed, "detailed", false, "show limit details on nodelink labels")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse the resulting series in the terminal")

	return cmd
}

// runRender executes the full pipeline and writes the requested artifacts.
func (c *CLI) runRender(ctx context.Context, opts pipeline.Options, output string, noCache, interactive bool) error {
	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()
	opts.Logger = c.Logger

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %s...", opts.Dir))
	spinner.Start()

	result, err := runner.Execute(ctx, opts)
	if err != nil {
		spinner.StopWithError("Render failed")
		return err
	}
	spinner.Stop()

	if err := writeArtifacts(result.Artifacts, opts.Formats, opts.Dir, output); err != nil {
		return err
	}

	cached := result.CacheInfo.LoadHit && result.CacheInfo.AggregateHit && result.CacheInfo.RenderHit
	printSuccess("Rendered %s", opts.Dir)
	printStats(result.Stats.SliceCount, result.Stats.SeriesCount, cached)

	if interactive {
		return runSeriesBrowser(result.Chart)
	}
	return nil
}

// writeArtifacts writes every rendered format to disk. A single format
// honors --output verbatim; multiple formats share a base path and get
// their format as extension.
func writeArtifacts(artifacts map[string][]byte, formats []string, input, output string) error {
	base := basePath(output, input)
	for _, format := range formats {
		data, ok := artifacts[format]
		if !ok {
			continue
		}
		path := base + "." + format
		if output != "" && len(formats) == 1 {
			path = output
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		printFile(path)
	}
	return nil
}

// basePath derives the base output path from the output flag and the input
// directory. If output is empty, the directory name itself becomes the
// base (./data → data.svg). A format extension on the output is stripped.
func basePath(output, input string) string {
	if output == "" {
		base := filepath.Base(filepath.Clean(input))
		if base == "." || base == string(filepath.Separator) {
			base = "chart"
		}
		return base
	}
	ext := filepath.Ext(output)
	if pipeline.ValidFormats[strings.TrimPrefix(ext, ".")] {
		return strings.TrimSuffix(output, ext)
	}
	return output
}
