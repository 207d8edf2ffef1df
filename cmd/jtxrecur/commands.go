package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cyp0633/libjtx/internal/config"
	"github.com/cyp0633/libjtx/internal/logging"
	"github.com/cyp0633/libjtx/recurrence"
	"github.com/cyp0633/libjtx/series"
	"github.com/cyp0633/libjtx/storage"
	"github.com/cyp0633/libjtx/storage/sqlite"
)

// app bundles what a database-backed command needs.
type app struct {
	logger  *slog.Logger
	store   *sqlite.Store
	manager *series.Manager
}

func loadConfig(cmd *cobra.Command) (config.AppConfig, *slog.Logger, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return config.AppConfig{}, nil, err
	}
	logger := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat, cmd.ErrOrStderr())
	return appConfig, logger, nil
}

func newEngine(appConfig config.AppConfig) (*recurrence.Engine, error) {
	engineConfig, err := appConfig.EngineConfig()
	if err != nil {
		return nil, err
	}
	return recurrence.NewEngineWithConfig(engineConfig), nil
}

// withRuntime opens the configured database and hands a ready manager to run.
func withRuntime(run func(ctx context.Context, cmd *cobra.Command, rt *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		appConfig, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		engine, err := newEngine(appConfig)
		if err != nil {
			return err
		}
		defer engine.Close()

		store, err := sqlite.Open(appConfig.DatabasePath, logger)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		rt := &app{
			logger: logger,
			store:  store,
			manager: series.New(store,
				series.WithLogger(logger),
				series.WithEngine(engine),
				series.WithWorkers(appConfig.Workers),
			),
		}
		return run(cmd.Context(), cmd, rt, args)
	}
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid entry id %q", arg)
	}
	return id, nil
}

// parseStart accepts epoch millis, RFC 3339, or a local date or date-time in tz.
func parseStart(value, tz string) (int64, error) {
	value = strings.TrimSpace(value)
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return ms, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UnixMilli(), nil
	}
	loc := recurrence.Location(tz)
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("invalid start %q", value)
}

func newExpandCmd() *cobra.Command {
	var rule, start, tz, exceptions, additions string

	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Print the occurrences of a recurrence rule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			engine, err := newEngine(appConfig)
			if err != nil {
				return err
			}
			defer engine.Close()

			in := recurrence.Input{
				Rule:       rule,
				Timezone:   tz,
				Exceptions: recurrence.ParseDateList(exceptions),
				Additions:  recurrence.ParseDateList(additions),
			}
			if start != "" {
				ms, err := parseStart(start, tz)
				if err != nil {
					return err
				}
				in.Start = mo.Some(ms)
			}

			occurrences, err := engine.Evaluate(in).Get()
			if err != nil {
				return err
			}

			loc := recurrence.Location(tz)
			out := cmd.OutOrStdout()
			for _, ms := range occurrences {
				fmt.Fprintf(out, "%d\t%s\n", ms, time.UnixMilli(ms).In(loc).Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&rule, "rule", "", "RRULE value, e.g. FREQ=WEEKLY;COUNT=4;BYDAY=MO,WE")
	cmd.Flags().StringVar(&start, "start", "", "Series start as epoch millis, RFC 3339 or a local date-time in --tz")
	cmd.Flags().StringVar(&tz, "tz", "", "Start timezone: IANA name, UTC, ALLDAY or empty for floating")
	cmd.Flags().StringVar(&exceptions, "exceptions", "", "Comma-separated epoch millis to exclude")
	cmd.Flags().StringVar(&additions, "additions", "", "Comma-separated epoch millis to add")

	return cmd
}

func newRegenerateCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "regenerate [id]",
		Short: "Rebuild the linked instances of one or all recurring originals",
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: withRuntime(func(ctx context.Context, cmd *cobra.Command, rt *app, args []string) error {
			var (
				created int
				err     error
			)
			if all {
				created, err = rt.manager.RegenerateAll(ctx)
			} else {
				var id int64
				if id, err = parseID(args[0]); err != nil {
					return err
				}
				created, err = rt.manager.Regenerate(ctx, id)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d instances\n", created)
			return nil
		}),
	}

	cmd.Flags().BoolVar(&all, "all", false, "Regenerate every recurring original")

	return cmd
}

func newDetachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detach <id>",
		Short: "Turn a linked instance into a standalone exception",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(func(ctx context.Context, cmd *cobra.Command, rt *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			detached, err := rt.manager.Detach(ctx, id)
			if err != nil {
				return err
			}
			if detached {
				fmt.Fprintf(cmd.OutOrStdout(), "detached %d\n", id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%d is not a linked instance\n", id)
			}
			return nil
		}),
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entry with its children and instances",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(func(ctx context.Context, cmd *cobra.Command, rt *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := rt.manager.DeleteWithChildren(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d\n", id)
			return nil
		}),
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove instances whose original is gone or no longer recurring",
		Args:  cobra.NoArgs,
		RunE: withRuntime(func(ctx context.Context, cmd *cobra.Command, rt *app, args []string) error {
			removed, err := rt.manager.SweepOrphans(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d orphaned instances\n", removed)
			return err
		}),
	}
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <id>",
		Short: "Write an entry as an iCalendar object",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(func(ctx context.Context, cmd *cobra.Command, rt *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			entry, err := rt.store.GetEntryByID(ctx, id)
			if err != nil {
				return err
			}
			subs, err := rt.store.GetSubProperties(ctx, id)
			if err != nil {
				return err
			}
			ics, err := storage.EncodeICS(storage.EntryToComponent(entry, subs))
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), ics)
			return err
		}),
	}
}

func newImportCmd() *cobra.Command {
	var collection int64

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Store the journals and to-dos of an iCalendar file and materialize their series",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(func(ctx context.Context, cmd *cobra.Command, rt *app, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			comps, err := storage.DecodeICS(string(data))
			if err != nil {
				return err
			}

			imported, instances := 0, 0
			for _, comp := range comps {
				entry, subs, err := storage.ComponentToEntry(comp)
				if err != nil {
					return err
				}
				entry.Collection = collection

				id, created, err := rt.manager.Create(ctx, entry, subs)
				if err != nil {
					return err
				}
				rt.logger.Debug("imported entry", "entry_id", id, "uid", entry.UID, "instances", created)
				imported++
				instances += created
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported %d entries, created %d instances\n", imported, instances)
			return nil
		}),
	}

	cmd.Flags().Int64Var(&collection, "collection", 0, "Collection id the entries are stored in")

	return cmd
}
