// File: cmd/tasks.go
package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tagprobe/tagprobe-cli/api/schemas"
	"github.com/tagprobe/tagprobe-cli/internal/observability"
	"github.com/tagprobe/tagprobe-cli/internal/schedule"
	"github.com/tagprobe/tagprobe-cli/internal/store"
)

// newTasksCmd creates the `tasks` command group: read-only schedule queries
// against the task store.
func newTasksCmd() *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Queries the scheduled-task calendar",
	}
	tasksCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string. (Overrides config/env)")
	tasksCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Run the root setup first; cobra only invokes the closest
		// PersistentPreRunE in the chain.
		if root := cmd.Root(); root.PersistentPreRunE != nil {
			if err := root.PersistentPreRunE(cmd, args); err != nil {
				return err
			}
		}
		return viper.BindPFlag("database.url", tasksCmd.PersistentFlags().Lookup("database-url"))
	}

	tasksCmd.AddCommand(newTasksDueCmd())
	tasksCmd.AddCommand(newTasksUpcomingCmd())
	tasksCmd.AddCommand(newTasksCalendarCmd())
	tasksCmd.AddCommand(newTasksStatsCmd())

	return tasksCmd
}

func newTasksDueCmd() *cobra.Command {
	dueCmd := &cobra.Command{
		Use:   "due [YYYY-MM-DD]",
		Short: "Lists tasks whose recurrence fires on the given date (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := time.Now()
			if len(args) == 1 {
				parsed, err := schedule.ParseDate(args[0])
				if err != nil {
					return err
				}
				date = parsed
			}

			return withTasks(cmd, func(tasks []schemas.ScheduledTask) error {
				due := schedule.TasksDueOn(tasks, date)
				if len(due) == 0 {
					fmt.Printf("No tasks due on %s.\n", date.Format(schemas.DateLayout))
					return nil
				}
				printTaskTable(due)
				return nil
			})
		},
	}
	return dueCmd
}

func newTasksUpcomingCmd() *cobra.Command {
	upcomingCmd := &cobra.Command{
		Use:   "upcoming",
		Short: "Lists the next pending tasks ordered by anchor date and time",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}
			return withTasks(cmd, func(tasks []schemas.ScheduledTask) error {
				upcoming := schedule.Upcoming(tasks, time.Now(), limit)
				if len(upcoming) == 0 {
					fmt.Println("No upcoming tasks.")
					return nil
				}
				printTaskTable(upcoming)
				return nil
			})
		},
	}
	upcomingCmd.Flags().IntP("limit", "n", 5, "Maximum number of tasks to show.")
	return upcomingCmd
}

func newTasksCalendarCmd() *cobra.Command {
	calendarCmd := &cobra.Command{
		Use:   "calendar <year> <month>",
		Short: "Shows which days of a month have tasks due",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid year %q", args[0])
			}
			monthNum, err := strconv.Atoi(args[1])
			if err != nil || monthNum < 1 || monthNum > 12 {
				return fmt.Errorf("invalid month %q", args[1])
			}
			month := time.Month(monthNum)

			return withTasks(cmd, func(tasks []schemas.ScheduledTask) error {
				calendar := schedule.DueDatesForMonth(tasks, year, month)
				if len(calendar) == 0 {
					fmt.Printf("No tasks due in %s %d.\n", month, year)
					return nil
				}

				daysInMonth := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
				for day := 1; day <= daysInMonth; day++ {
					date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
					due, ok := calendar[date.Format(schemas.DateLayout)]
					if !ok {
						continue
					}
					fmt.Printf("%s:\n", date.Format(schemas.DateLayout))
					for _, task := range due {
						fmt.Printf("  %s  %-9s  %s\n", task.ScheduledTime, task.Kind, task.Title)
					}
				}
				return nil
			})
		},
	}
	return calendarCmd
}

func newTasksStatsCmd() *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarizes the task set by status and recurrence",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTasks(cmd, func(tasks []schemas.ScheduledTask) error {
				stats := schedule.Stats(tasks)
				fmt.Printf("Total:     %d\n", stats.Total)
				fmt.Printf("Pending:   %d\n", stats.Pending)
				fmt.Printf("Completed: %d\n", stats.Completed)
				fmt.Printf("Failed:    %d\n", stats.Failed)
				fmt.Printf("Recurring: %d\n", stats.Recurring)
				return nil
			})
		},
	}
	return statsCmd
}

// withTasks connects to the store, loads every task and hands them to fn.
func withTasks(cmd *cobra.Command, fn func([]schemas.ScheduledTask) error) error {
	ctx := cmd.Context()
	logger := observability.GetLogger()

	cfg := getConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to apply flag overrides to config: %w", err)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database URL is not configured (TAGPROBE_DATABASE_URL)")
	}

	dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbPool.Close()

	dbStore, err := store.New(ctx, dbPool, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if err := dbStore.Bootstrap(ctx); err != nil {
		return fmt.Errorf("failed to bootstrap schema: %w", err)
	}

	tasks, err := dbStore.ListTasks(ctx)
	if err != nil {
		logger.Error("Failed to list tasks", zap.Error(err))
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	return fn(tasks)
}

func printTaskTable(tasks []schemas.ScheduledTask) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tTIME\tKIND\tRECURRENCE\tSTATUS\tTITLE")
	for _, task := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			task.ScheduledDate, task.ScheduledTime, task.Kind, task.Recurrence, task.Status, task.Title)
	}
	w.Flush()
}
