package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Manage verification tasks and results",
}

type taskRecord struct {
	ID              string `json:"id"`
	Consumer        string `json:"consumer"`
	Provider        string `json:"provider"`
	ProviderVersion string `json:"providerVersion"`
	CreatedAt       string `json:"createdAt"`
}

var verifyPendingCmd = &cobra.Command{
	Use:   "pending <provider>",
	Short: "List verification tasks awaiting a provider's results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		path := verificationAPIBase + "/tasks:pending?provider=" + url.QueryEscape(args[0])
		var result struct {
			Tasks []taskRecord `json:"tasks"`
		}
		if err := client.getJSON(path, &result); err != nil {
			return fmt.Errorf("failed to list pending tasks: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"ID", "Consumer", "Provider", "Version", "Created"}
		rows := make([][]string, 0, len(result.Tasks))
		for _, task := range result.Tasks {
			rows = append(rows, []string{
				truncate(task.ID, 12), task.Consumer, task.Provider, task.ProviderVersion, task.CreatedAt,
			})
		}
		printTable(headers, rows)
		return nil
	},
}

var verifyGetCmd = &cobra.Command{
	Use:   "get <task-id>",
	Short: "Get verification task details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		result, err := client.getRaw(verificationAPIBase + "/tasks/" + url.PathEscape(args[0]))
		if err != nil {
			return fmt.Errorf("failed to get task: %w", err)
		}
		return printOutput(result)
	},
}

var (
	submitTaskID      string
	submitVersion     string
	submitResultsFile string
)

var verifySubmitCmd = &cobra.Command{
	Use:   "submit <provider>",
	Short: "Submit a provider's verification results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		raw, err := os.ReadFile(submitResultsFile)
		if err != nil {
			return fmt.Errorf("failed to read results file: %w", err)
		}
		var results []map[string]any
		if err := json.Unmarshal(raw, &results); err != nil {
			return fmt.Errorf("results file is not a JSON array: %w", err)
		}

		body := map[string]any{
			"taskId":          submitTaskID,
			"providerVersion": submitVersion,
			"results":         results,
		}

		path := verificationAPIBase + "/providers/" + url.PathEscape(args[0]) + "/results"
		var result map[string]any
		if err := client.postJSON(path, body, &result); err != nil {
			return fmt.Errorf("failed to submit results: %w", err)
		}
		return printOutput(result)
	},
}

var dependenciesService string

var verifyDependenciesCmd = &cobra.Command{
	Use:   "dependencies",
	Short: "List consumer-provider dependencies and their status",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		path := verificationAPIBase + "/dependencies"
		if dependenciesService != "" {
			path += "?service=" + url.QueryEscape(dependenciesService)
		}

		var result struct {
			Dependencies []struct {
				ID             string `json:"id"`
				Consumer       string `json:"consumer"`
				Provider       string `json:"provider"`
				Status         string `json:"status"`
				LastVerifiedAt string `json:"lastVerifiedAt"`
			} `json:"dependencies"`
		}
		if err := client.getJSON(path, &result); err != nil {
			return fmt.Errorf("failed to list dependencies: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"Consumer", "Provider", "Status", "Last Verified"}
		rows := make([][]string, 0, len(result.Dependencies))
		for _, d := range result.Dependencies {
			rows = append(rows, []string{d.Consumer, d.Provider, d.Status, d.LastVerifiedAt})
		}
		printTable(headers, rows)
		return nil
	},
}

func init() {
	verifySubmitCmd.Flags().StringVar(&submitTaskID, "task", "", "Verification task id")
	verifySubmitCmd.Flags().StringVar(&submitVersion, "provider-version", "", "Provider version that ran the verification")
	verifySubmitCmd.Flags().StringVar(&submitResultsFile, "results-file", "", "Path to the per-interaction results JSON array")
	_ = verifySubmitCmd.MarkFlagRequired("task")
	_ = verifySubmitCmd.MarkFlagRequired("results-file")

	verifyDependenciesCmd.Flags().StringVar(&dependenciesService, "service", "", "Filter to dependencies touching a service")

	verifyCmd.AddCommand(verifyPendingCmd)
	verifyCmd.AddCommand(verifyGetCmd)
	verifyCmd.AddCommand(verifySubmitCmd)
	verifyCmd.AddCommand(verifyDependenciesCmd)
}
