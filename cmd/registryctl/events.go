package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Browse the audit event log",
}

var (
	eventsFilterType    string
	eventsFilterService string
)

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		query := url.Values{}
		if eventsFilterType != "" {
			query.Set("eventType", eventsFilterType)
		}
		if eventsFilterService != "" {
			query.Set("service", eventsFilterService)
		}

		path := auditAPIBase + "/events"
		if len(query) > 0 {
			path += "?" + query.Encode()
		}

		var result struct {
			Events []struct {
				ID        string `json:"id"`
				EventType string `json:"eventType"`
				Service   string `json:"service"`
				Subject   string `json:"subject"`
				CreatedAt string `json:"createdAt"`
			} `json:"events"`
			TotalSize int `json:"totalSize"`
		}
		if err := client.getJSON(path, &result); err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"Type", "Service", "Subject", "Created"}
		rows := make([][]string, 0, len(result.Events))
		for _, e := range result.Events {
			rows = append(rows, []string{e.EventType, e.Service, truncate(e.Subject, 12), e.CreatedAt})
		}
		printTable(headers, rows)
		fmt.Printf("Total: %d\n", result.TotalSize)
		return nil
	},
}

func init() {
	eventsListCmd.Flags().StringVar(&eventsFilterType, "type", "", "Filter by event type (e.g. fixture.approved)")
	eventsListCmd.Flags().StringVar(&eventsFilterService, "service", "", "Filter by service")

	eventsCmd.AddCommand(eventsListCmd)
}
