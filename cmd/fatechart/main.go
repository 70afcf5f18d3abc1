// Command fatechart generates reports from the command line.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/liamcoop/fatechart/fate"
	"github.com/liamcoop/fatechart/internal/calendar"
	"github.com/liamcoop/fatechart/internal/config"
	"github.com/liamcoop/fatechart/internal/oracle"
	"github.com/liamcoop/fatechart/internal/reference"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

type birthFlags struct {
	name string
	date string
	hour string
	seed int64
}

func (f *birthFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "name on the report (required)")
	cmd.Flags().StringVar(&f.date, "date", "", "Gregorian birth date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&f.hour, "hour", calendar.UnknownHour, "hour label or its branch glyph, e.g. 子 or \"子時 (23:00-01:00)\"")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("date")
}

func (f *birthFlags) registerSeed(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "seed for the reflection quote draw")
}

func (f *birthFlags) moment() (fate.BirthMoment, error) {
	parts := strings.Split(strings.TrimSpace(f.date), "-")
	if len(parts) != 3 {
		return fate.BirthMoment{}, fmt.Errorf("--date %q: want YYYY-MM-DD", f.date)
	}
	var ymd [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return fate.BirthMoment{}, fmt.Errorf("--date %q: want YYYY-MM-DD", f.date)
		}
		ymd[i] = n
	}
	return fate.BirthMoment{Name: f.name, Year: ymd[0], Month: ymd[1], Day: ymd[2], Hour: f.hour}, nil
}

// generate builds a report, seeding the quote draw only when --seed was given.
func (f *birthFlags) generate(cmd *cobra.Command) (fate.BirthMoment, *fate.Report, error) {
	m, err := f.moment()
	if err != nil {
		return m, nil, err
	}
	var opts []fate.Option
	if cmd.Flags().Changed("seed") {
		opts = append(opts, fate.WithSeed(f.seed))
	}
	engine, err := fate.NewEngine(opts...)
	if err != nil {
		return m, nil, err
	}
	r, err := engine.Generate(m)
	return m, r, err
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "fatechart",
		Short:         "Four-pillar and palace chart reports",
		Long:          `fatechart converts a Gregorian birth moment into a four-pillar chart, a palace overlay and composed narratives.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(out)
	root.SetErr(out)

	root.AddCommand(newChartCmd(), newExplainCmd(), newAskCmd(), newHoursCmd(), newQuoteCategoriesCmd(), newVersionCmd())
	return root
}

func newChartCmd() *cobra.Command {
	var (
		flags  birthFlags
		format string
	)
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Generate a report",
		Example: `  fatechart chart --name 王小明 --date 1990-01-01 --hour 子
  fatechart chart --name 王小明 --date 1990-01-01 --hour 子 --seed 7 --format yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			render, ok := renderers[format]
			if !ok {
				return fmt.Errorf("unknown --format %q (use json, yaml or text)", format)
			}
			_, r, err := flags.generate(cmd)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), r)
		},
	}
	flags.register(cmd)
	flags.registerSeed(cmd)
	cmd.Flags().StringVar(&format, "format", "text", "output format: json, yaml or text")
	return cmd
}

func newExplainCmd() *cobra.Command {
	var (
		flags  birthFlags
		rule   string
		format string
	)
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Show how each archetype rule evaluates for a birth moment",
		Example: `  fatechart explain --name 王小明 --date 1990-01-01 --hour 子
  fatechart explain --name 王小明 --date 1990-01-01 --hour 子 --rule shi-shen-sheng-cai`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "text" {
				return fmt.Errorf("unknown --format %q (use json or text)", format)
			}
			m, err := flags.moment()
			if err != nil {
				return err
			}
			engine, err := fate.NewEngine()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if rule != "" {
				r, err := engine.ExplainRule(m, rule)
				if err != nil {
					return err
				}
				if format == "json" {
					return writeJSON(out, r)
				}
				return renderRule(out, r)
			}

			x, err := engine.Explain(m)
			if err != nil {
				return err
			}
			if format == "json" {
				return writeJSON(out, x)
			}
			return renderExplanation(out, m, x)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&rule, "rule", "", "evaluate only the archetype rule with this id")
	cmd.Flags().StringVar(&format, "format", "text", "output format: json or text")
	return cmd
}

func newAskCmd() *cobra.Command {
	var (
		flags    birthFlags
		question string
	)
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Ask the advisor a question about a report (needs GENAI_API_KEY)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.AdvisorEnabled() {
				return oracle.ErrDisabled
			}
			m, r, err := flags.generate(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			advisor, err := oracle.New(ctx, cfg.GenAIAPIKey, cfg.GenAIModel)
			if err != nil {
				return err
			}
			answer, err := advisor.Ask(ctx, m, r, question)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}
	flags.register(cmd)
	flags.registerSeed(cmd)
	cmd.Flags().StringVar(&question, "question", "", "the question to ask (required)")
	_ = cmd.MarkFlagRequired("question")
	return cmd
}

func newHoursCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hours",
		Short: "List the accepted hour labels",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, h := range calendar.HourLabels {
				fmt.Fprintln(cmd.OutOrStdout(), h)
			}
		},
	}
}

func newQuoteCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quote-categories",
		Short: "List reflection quote categories and how many quotes each holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := reference.Default()
			if err != nil {
				return err
			}
			for _, c := range reference.QuoteCategories {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", c, len(t.Quotes(c)))
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build and archetype rule versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := reference.Default()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fatechart %s (archetype rules v%d)\n", version, t.Archetypes().Version)
			return nil
		},
	}
}
