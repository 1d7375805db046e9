package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local cache status",
	Long: `Display the current state of the local cache.

Shows:
  - Cache file location and size
  - Record counts per collection
  - Pending (dirty) record counts awaiting push`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		info, err := os.Stat(cfg.DBPath)
		if os.IsNotExist(err) {
			fmt.Printf("\nLocal cache not initialized at %s\n", cfg.DBPath)
			fmt.Printf("Run 'ajsync sync' to create it\n\n")
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error checking cache: %v\n", err)
			os.Exit(1)
		}

		st, err := openStore(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		ctx := cmd.Context()

		taskCount, err := st.TaskCount(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		dirtyTasks, _ := st.DirtyTaskCount(ctx)

		habitCount, err := st.HabitCount(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		dirtyHabits, _ := st.DirtyHabitCount(ctx)

		completionCount, err := st.HabitCompletionCount(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		dirtyCompletions, _ := st.DirtyHabitCompletionCount(ctx)

		size := info.Size()
		sizeStr := fmt.Sprintf("%d bytes", size)
		if size > 1024*1024 {
			sizeStr = fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
		} else if size > 1024 {
			sizeStr = fmt.Sprintf("%.1f KB", float64(size)/1024)
		}

		fmt.Printf("\nAjanda Local Cache Status\n\n")
		fmt.Printf("Location: %s\n", cfg.DBPath)
		fmt.Printf("Size: %s\n", sizeStr)
		fmt.Printf("Tasks: %d (%d pending push)\n", taskCount, dirtyTasks)
		fmt.Printf("Habits: %d (%d pending push)\n", habitCount, dirtyHabits)
		fmt.Printf("Completions: %d (%d pending push)\n", completionCount, dirtyCompletions)
		fmt.Printf("Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
