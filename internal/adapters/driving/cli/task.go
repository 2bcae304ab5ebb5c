package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/verity/internal/core/domain"
)

var (
	taskDocument     string
	taskStatusFilter string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage compliance tasks",
	Long: `Tasks are actions to take, either entered by hand or saved from an
answer's suggestions with 'verity ask --save-tasks'.`,
}

var taskAddCmd = &cobra.Command{
	Use:   "add [description]",
	Short: "Add a task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Args:  cobra.NoArgs,
	RunE:  runTaskList,
}

var taskStartCmd = &cobra.Command{
	Use:   "start [task-id]",
	Short: "Mark a task in progress",
	Args:  cobra.ExactArgs(1),
	RunE:  transitionRunner(domain.TaskInProgress),
}

var taskDoneCmd = &cobra.Command{
	Use:   "done [task-id]",
	Short: "Mark a task done",
	Args:  cobra.ExactArgs(1),
	RunE:  transitionRunner(domain.TaskDone),
}

var taskReopenCmd = &cobra.Command{
	Use:   "reopen [task-id]",
	Short: "Reopen a task",
	Args:  cobra.ExactArgs(1),
	RunE:  transitionRunner(domain.TaskOpen),
}

var taskRemoveCmd = &cobra.Command{
	Use:     "rm [task-id]",
	Aliases: []string{"delete"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE:    runTaskRemove,
}

func init() {
	taskAddCmd.Flags().StringVarP(&taskDocument, "doc", "d", "", "link the task to a document")
	taskListCmd.Flags().StringVarP(&taskDocument, "doc", "d", "", "only tasks for this document")
	taskListCmd.Flags().StringVarP(&taskStatusFilter, "status", "s", "", "only tasks in this status (open, in_progress, done)")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskStartCmd)
	taskCmd.AddCommand(taskDoneCmd)
	taskCmd.AddCommand(taskReopenCmd)
	taskCmd.AddCommand(taskRemoveCmd)
	rootCmd.AddCommand(taskCmd)
}

type taskOutput struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Source      string `json:"source"`
	DocumentID  string `json:"document_id,omitempty"`
}

func newTaskOutput(t *domain.Task) taskOutput {
	return taskOutput{
		ID:          t.ID,
		Description: t.Description,
		Status:      string(t.Status),
		Source:      string(t.Source),
		DocumentID:  t.DocumentID,
	}
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	if services == nil || services.Tasks == nil {
		return notConfigured("task service")
	}

	task, err := services.Tasks.Create(cmd.Context(), currentUser(), strings.Join(args, " "), taskDocument)
	if err != nil {
		return fmt.Errorf("failed to add task: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, newTaskOutput(task))
	}
	cmd.Printf("Added task %s\n", task.ID)
	return nil
}

func runTaskList(cmd *cobra.Command, _ []string) error {
	if services == nil || services.Tasks == nil {
		return notConfigured("task service")
	}

	tasks, err := services.Tasks.List(cmd.Context(), currentUser(), domain.TaskFilter{
		Status:     domain.TaskStatus(taskStatusFilter),
		DocumentID: taskDocument,
	})
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	if jsonOutput {
		out := make([]taskOutput, len(tasks))
		for i := range tasks {
			out[i] = newTaskOutput(&tasks[i])
		}
		return printJSON(cmd, out)
	}

	if len(tasks) == 0 {
		cmd.Println("No tasks.")
		return nil
	}
	for i := range tasks {
		cmd.Printf("  %s %-11s %s\n", statusMark(tasks[i].Status), tasks[i].Status, tasks[i].Description)
		cmd.Printf("      %s (%s)\n", tasks[i].ID, tasks[i].Source)
	}
	return nil
}

func transitionRunner(status domain.TaskStatus) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if services == nil || services.Tasks == nil {
			return notConfigured("task service")
		}

		task, err := services.Tasks.Transition(cmd.Context(), currentUser(), args[0], status)
		if err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}

		if jsonOutput {
			return printJSON(cmd, newTaskOutput(task))
		}
		cmd.Printf("Task %s is now %s\n", task.ID, task.Status)
		return nil
	}
}

func runTaskRemove(cmd *cobra.Command, args []string) error {
	if services == nil || services.Tasks == nil {
		return notConfigured("task service")
	}

	if err := services.Tasks.Delete(cmd.Context(), currentUser(), args[0]); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	cmd.Printf("Task %s deleted.\n", args[0])
	return nil
}

func statusMark(s domain.TaskStatus) string {
	switch s {
	case domain.TaskDone:
		return "[x]"
	case domain.TaskInProgress:
		return "[~]"
	default:
		return "[ ]"
	}
}
