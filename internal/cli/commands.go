package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"runrag/internal/activity"
	"runrag/internal/contextcodec"
	"runrag/internal/llm"
	"runrag/internal/service"
	"runrag/internal/tui"
)

func newIngestCmd(app *App, g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Store the runs of activity JSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var acts []activity.Activity
			for _, path := range args {
				batch, err := activity.LoadFile(path)
				if err != nil {
					return err
				}
				acts = append(acts, batch...)
			}
			return withRuntime(app, g, func(rt *Runtime) error {
				rep, err := rt.Service.Ingest(cmd.Context(), g.user, acts)
				fmt.Fprintf(out(cmd), "stored %d new runs (%d already known, %d not runs, %d skipped)\n",
					rep.Written, rep.Duplicates, rep.NonRuns, len(rep.Skipped))
				for _, e := range rep.Skipped {
					fmt.Fprintf(cmd.ErrOrStderr(), "  skipped: %v\n", e)
				}
				return err
			})
		},
	}
}

func newAskCmd(app *App, g *globals) *cobra.Command {
	var (
		coach bool
		rows  bool
		limit int
	)
	cmd := &cobra.Command{
		Use:   `ask "<question>"`,
		Short: "Answer a question with the matching runs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return withRuntime(app, g, func(rt *Runtime) error {
				ans, err := rt.Service.Ask(cmd.Context(), g.user, question, service.AskOptions{Coach: coach, Limit: limit})
				if err != nil {
					if errors.Is(err, service.ErrNoGenerator) {
						return fmt.Errorf("%w: set generator.type in the config to genai or ollama", err)
					}
					if llm.IsRateLimited(err) {
						return fmt.Errorf("the model is rate limited, try again later: %w", err)
					}
					return err
				}
				w := out(cmd)
				fmt.Fprintf(w, "# %d runs via %s\n", len(ans.Documents), ans.Tier)
				fmt.Fprintln(w, ans.Context)
				if ans.Reply != "" {
					fmt.Fprintln(w)
					fmt.Fprintln(w, ans.Reply)
				}
				if rows {
					fmt.Fprintln(w)
					writeRows(cmd, ans.Rows)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&coach, "coach", false, "add a coaching reply")
	cmd.Flags().BoolVar(&rows, "rows", false, "print the per-kilometre rows")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of runs (0 means the configured cap)")
	return cmd
}

func writeRows(cmd *cobra.Command, rows []contextcodec.Row) {
	fmt.Fprintln(out(cmd), contextcodec.Describe(rows))
	tw := tabwriter.NewWriter(out(cmd), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "date\trun_name\trun_type\tkm\tpace\thr\tpower\televation_gain\tdistance\tavg_hr\tavg_pace\ttotal_elevation")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%g\t%g\t%g\t%g\t%g\t%g\t%g\t%g\n",
			r.Date, r.RunName, r.RunType, r.KM, r.Pace, r.HR, r.Power, r.ElevationGain,
			r.Distance, r.AvgHR, r.AvgPace, r.TotalElevation)
	}
	_ = tw.Flush()
}

func newNamesCmd(app *App, g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "names",
		Short: "List stored run names, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(app, g, func(rt *Runtime) error {
				names, err := rt.Service.Names(cmd.Context(), g.user)
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(out(cmd), n)
				}
				return nil
			})
		},
	}
}

func newLatestCmd(app *App, g *globals) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show the most recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(app, g, func(rt *Runtime) error {
				text, err := rt.Service.Latest(cmd.Context(), g.user, n)
				if err != nil {
					return err
				}
				fmt.Fprintln(out(cmd), text)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 5, "number of runs")
	return cmd
}

func newResetCmd(app *App, g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete every stored run of the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(app, g, func(rt *Runtime) error {
				if err := rt.Service.Reset(cmd.Context(), g.user); err != nil {
					return err
				}
				fmt.Fprintf(out(cmd), "removed all runs of %s\n", g.user)
				return nil
			})
		},
	}
}

func newTUICmd(app *App, g *globals) *cobra.Command {
	var coach bool
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Ask questions interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if app.IsInteractive != nil && !app.IsInteractive() {
				return errors.New("tui needs an interactive terminal; use ask instead")
			}
			return withRuntime(app, g, func(rt *Runtime) error {
				return runProgram(app, tui.New(rt.Service, g.user, coach))
			})
		},
	}
	cmd.Flags().BoolVar(&coach, "coach", false, "add a coaching reply to every answer")
	return cmd
}
