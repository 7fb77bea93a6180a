// Command corepath is a thin demo CLI over internal/contract: it loads a
// YAML project file and prints either a full schedule or a feasibility
// verdict.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ashgrove/corepath/internal/contract"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("corepath failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "corepath",
		Short: "Schedule a WBS project file using the critical path method",
	}
	root.AddCommand(newScheduleCmd())
	root.AddCommand(newFeasibleCmd())
	return root
}

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule <project.yaml>",
		Short: "Compute and print a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := loadProject(args[0])
			if err != nil {
				return err
			}
			result, err := contract.Run(cmd.Context(), project, contract.ScheduleOptions{})
			if err != nil {
				return fmt.Errorf("schedule: %w", err)
			}
			printSchedule(result)
			return nil
		},
	}
}

func newFeasibleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "is-feasible <project.yaml>",
		Short: "Report whether the project can be scheduled without a fatal diagnostic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := loadProject(args[0])
			if err != nil {
				return err
			}
			ok, err := contract.IsFeasible(cmd.Context(), project)
			if err != nil {
				return fmt.Errorf("is-feasible: %w", err)
			}
			fmt.Println(ok)
			return nil
		},
	}
}

func loadProject(path string) (*contract.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project file: %w", err)
	}
	var project contract.Project
	if err := yaml.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("parse project file: %w", err)
	}
	return &project, nil
}

func printSchedule(result *contract.Schedule) {
	fmt.Printf("project_end: %s\n", result.ProjectEnd.Format("2006-01-02"))
	fmt.Printf("duration_days: %d\n", result.ProjectDurationDays)
	fmt.Printf("critical_path: %v\n", result.CriticalPath)
	fmt.Printf("spi: %.2f status: %s\n", result.Metrics.SPI, result.Metrics.Status)
	for _, d := range result.Diagnostics {
		fmt.Printf("[%s] %s: %s\n", d.Severity, d.Code, d.Message)
	}
}
