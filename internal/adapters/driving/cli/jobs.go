package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and run background jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List background jobs",
	Args:  cobra.NoArgs,
	RunE:  runJobsList,
}

var jobsRunCmd = &cobra.Command{
	Use:   "run [job-id]",
	Short: "Run a job now",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsRun,
}

func init() {
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsRunCmd)
	rootCmd.AddCommand(jobsCmd)
}

func runJobsList(cmd *cobra.Command, _ []string) error {
	if services == nil || services.Scheduler == nil {
		return notConfigured("scheduler")
	}

	jobs := services.Scheduler.Jobs()
	if jsonOutput {
		return printJSON(cmd, jobs)
	}
	for _, j := range jobs {
		state := "enabled"
		if !j.Enabled {
			state = "disabled"
		}
		cmd.Printf("  %s (%s, every %s)\n", j.ID, state, j.Interval)
		cmd.Printf("    %s\n", j.Name)
		if !j.LastRun.IsZero() {
			cmd.Printf("    Last run: %s\n", j.LastRun.Format(timeFormat))
		}
		if j.LastError != "" {
			cmd.Printf("    Last error: %s\n", j.LastError)
		}
	}
	return nil
}

func runJobsRun(cmd *cobra.Command, args []string) error {
	if services == nil || services.Scheduler == nil {
		return notConfigured("scheduler")
	}

	result, err := services.Scheduler.RunNow(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to run job: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, result)
	}
	if !result.Success {
		return fmt.Errorf("job %s failed: %s", result.JobID, result.Error)
	}
	cmd.Printf("Job %s processed %d items in %s\n",
		result.JobID, result.ItemsProcessed, result.EndedAt.Sub(result.StartedAt).Round(time.Millisecond))
	return nil
}
