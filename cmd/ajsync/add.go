package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajandahq/ajanda-sync/internal/config"
	"github.com/ajandahq/ajanda-sync/internal/model"
	"github.com/ajandahq/ajanda-sync/internal/store"
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a record in the local cache",
	Long: `Create a task, habit, or habit completion locally.

New records start dirty and are pushed on the next sync pass, so they
work offline and converge once connectivity returns.`,
}

var (
	addTaskTypeID  string
	addTaskDue     string
	addHabitFreq   string
	addCompletedAt string
)

var addTaskCmd = &cobra.Command{
	Use:   "task <title>",
	Short: "Create a task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, st := mustOpen()
		defer st.Close()

		task := model.NewTask(cfg.OwnerID, addTaskTypeID, args[0])
		if addTaskDue != "" {
			due, err := time.Parse("2006-01-02", addTaskDue)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: invalid --due date %q (want YYYY-MM-DD)\n", addTaskDue)
				os.Exit(1)
			}
			task.DueAt = &due
		}

		if err := st.PutTask(cmd.Context(), task); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created task %s (pending push)\n", task.ID)
	},
}

var addHabitCmd = &cobra.Command{
	Use:   "habit <name>",
	Short: "Create a habit",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, st := mustOpen()
		defer st.Close()

		freq := model.Frequency(addHabitFreq)
		habit := model.NewHabit(cfg.OwnerID, args[0], freq)

		if err := st.PutHabit(cmd.Context(), habit); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created habit %s (pending push)\n", habit.ID)
	},
}

var addCompletionCmd = &cobra.Command{
	Use:   "completion <habit-id>",
	Short: "Record a habit completion",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, st := mustOpen()
		defer st.Close()

		habit, err := st.GetHabit(cmd.Context(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if habit == nil {
			fmt.Fprintf(os.Stderr, "Error: habit %s not found in local cache\n", args[0])
			os.Exit(1)
		}

		at := time.Now().UTC()
		if addCompletedAt != "" {
			parsed, err := time.Parse(time.RFC3339, addCompletedAt)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: invalid --at timestamp %q (want RFC3339)\n", addCompletedAt)
				os.Exit(1)
			}
			at = parsed
		}

		completion := model.NewHabitCompletion(cfg.OwnerID, habit.ID, at)
		if err := st.PutHabitCompletion(cmd.Context(), completion); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Recorded completion %s for habit %s (pending push)\n", completion.ID, habit.Name)
	},
}

func mustOpen() (*config.Config, *store.Store) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.OwnerID == "" {
		fmt.Fprintf(os.Stderr, "Error: owner_id is required\n")
		os.Exit(1)
	}
	st, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg, st
}

func init() {
	addTaskCmd.Flags().StringVar(&addTaskTypeID, "type", "", "task type id")
	addTaskCmd.Flags().StringVar(&addTaskDue, "due", "", "due date (YYYY-MM-DD)")
	addHabitCmd.Flags().StringVar(&addHabitFreq, "frequency", "daily", "recurrence (daily, weekly, monthly)")
	addCompletionCmd.Flags().StringVar(&addCompletedAt, "at", "", "completion time (RFC3339, default now)")

	addCmd.AddCommand(addTaskCmd)
	addCmd.AddCommand(addHabitCmd)
	addCmd.AddCommand(addCompletionCmd)
	rootCmd.AddCommand(addCmd)
}
