package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

var fixturesCmd = &cobra.Command{
	Use:   "fixtures",
	Short: "Manage recorded fixtures",
}

type fixtureRecord struct {
	ID        string `json:"id"`
	Service   string `json:"service"`
	Operation string `json:"operation"`
	Status    string `json:"status"`
	Source    string `json:"source"`
	Priority  int    `json:"priority"`
	CreatedAt string `json:"createdAt"`
}

var (
	fixturesFilterService   string
	fixturesFilterOperation string
	fixturesFilterStatus    string
)

var fixturesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List fixtures",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		query := url.Values{}
		if fixturesFilterService != "" {
			query.Set("service", fixturesFilterService)
		}
		if fixturesFilterOperation != "" {
			query.Set("operation", fixturesFilterOperation)
		}
		if fixturesFilterStatus != "" {
			query.Set("status", fixturesFilterStatus)
		}

		path := fixturesAPIBase + "/fixtures"
		if len(query) > 0 {
			path += "?" + query.Encode()
		}

		var result struct {
			Fixtures      []fixtureRecord `json:"fixtures"`
			NextPageToken string          `json:"nextPageToken"`
			TotalSize     int             `json:"totalSize"`
		}
		if err := client.getJSON(path, &result); err != nil {
			return fmt.Errorf("failed to list fixtures: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"ID", "Service", "Operation", "Status", "Source", "Priority", "Created"}
		rows := make([][]string, 0, len(result.Fixtures))
		for _, f := range result.Fixtures {
			rows = append(rows, []string{
				truncate(f.ID, 12), f.Service, f.Operation, f.Status, f.Source,
				fmt.Sprintf("%d", f.Priority), f.CreatedAt,
			})
		}
		printTable(headers, rows)
		fmt.Printf("Total: %d\n", result.TotalSize)
		return nil
	},
}

var fixturesGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get fixture details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		result, err := client.getRaw(fixturesAPIBase + "/fixtures/" + url.PathEscape(args[0]))
		if err != nil {
			return fmt.Errorf("failed to get fixture: %w", err)
		}
		return printOutput(result)
	},
}

var (
	proposeService  string
	proposeOp       string
	proposeVersion  string
	proposeDataFile string
	proposeSource   string
	proposePriority int
)

var fixturesProposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Propose a fixture from a recorded request/response",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		raw, err := os.ReadFile(proposeDataFile)
		if err != nil {
			return fmt.Errorf("failed to read data file: %w", err)
		}
		var data map[string]any
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("data file is not valid JSON: %w", err)
		}

		body := map[string]any{
			"service":   proposeService,
			"operation": proposeOp,
			"version":   proposeVersion,
			"data":      data,
			"source":    proposeSource,
			"priority":  proposePriority,
		}

		var result map[string]any
		if err := client.postJSON(fixturesAPIBase+"/fixtures", body, &result); err != nil {
			return fmt.Errorf("failed to propose fixture: %w", err)
		}
		return printOutput(result)
	},
}

var fixtureNotes string

func transitionCmd(use, short, action string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()

			path := fmt.Sprintf("%s/fixtures/%s:%s", fixturesAPIBase, url.PathEscape(args[0]), action)
			body := map[string]any{"notes": fixtureNotes}

			var result map[string]any
			if err := client.postJSON(path, body, &result); err != nil {
				return fmt.Errorf("failed to %s fixture: %w", action, err)
			}
			return printOutput(result)
		},
	}
}

func init() {
	fixturesListCmd.Flags().StringVar(&fixturesFilterService, "service", "", "Filter by service")
	fixturesListCmd.Flags().StringVar(&fixturesFilterOperation, "operation", "", "Filter by operation")
	fixturesListCmd.Flags().StringVar(&fixturesFilterStatus, "status", "", "Filter by status (draft, approved, rejected)")

	fixturesProposeCmd.Flags().StringVar(&proposeService, "service", "", "Provider service name")
	fixturesProposeCmd.Flags().StringVar(&proposeOp, "operation", "", "Operation the fixture illustrates")
	fixturesProposeCmd.Flags().StringVar(&proposeVersion, "version", "", "Service version to attach the fixture to")
	fixturesProposeCmd.Flags().StringVar(&proposeDataFile, "data-file", "", "Path to the request/response JSON")
	fixturesProposeCmd.Flags().StringVar(&proposeSource, "source", "manual", "Source: consumer, provider, or manual")
	fixturesProposeCmd.Flags().IntVar(&proposePriority, "priority", 1, "Mock selection priority")
	_ = fixturesProposeCmd.MarkFlagRequired("service")
	_ = fixturesProposeCmd.MarkFlagRequired("operation")
	_ = fixturesProposeCmd.MarkFlagRequired("data-file")

	approveCmd := transitionCmd("approve <id>", "Approve a draft fixture", "approve")
	rejectCmd := transitionCmd("reject <id>", "Reject a draft fixture", "reject")
	revokeCmd := transitionCmd("revoke <id>", "Revoke an approved fixture", "revoke")
	for _, c := range []*cobra.Command{approveCmd, rejectCmd, revokeCmd} {
		c.Flags().StringVar(&fixtureNotes, "notes", "", "Review notes")
	}

	fixturesCmd.AddCommand(fixturesListCmd)
	fixturesCmd.AddCommand(fixturesGetCmd)
	fixturesCmd.AddCommand(fixturesProposeCmd)
	fixturesCmd.AddCommand(approveCmd)
	fixturesCmd.AddCommand(rejectCmd)
	fixturesCmd.AddCommand(revokeCmd)
}
