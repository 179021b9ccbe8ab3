package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

var deploymentsCmd = &cobra.Command{
	Use:   "deployments",
	Short: "Track which service versions run in which environments",
}

type deploymentRecord struct {
	ID          string `json:"id"`
	Service     string `json:"service"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Active      bool   `json:"active"`
	Status      string `json:"status"`
	DeployedBy  string `json:"deployedBy"`
	DeployedAt  string `json:"deployedAt"`
}

var (
	deployVersion    string
	deployEnv        string
	deployGitSHA     string
	deployDeployedBy string
)

var deploymentsCreateCmd = &cobra.Command{
	Use:   "create <service>",
	Short: "Record a deployment of a registered version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		body := map[string]any{
			"service":     args[0],
			"version":     deployVersion,
			"environment": deployEnv,
			"gitSha":      deployGitSHA,
			"deployedBy":  deployDeployedBy,
		}

		var result map[string]any
		if err := client.postJSON(deploymentsAPIBase+"/deployments", body, &result); err != nil {
			return fmt.Errorf("failed to record deployment: %w", err)
		}
		return printOutput(result)
	},
}

var listInactive bool

var deploymentsEnvCmd = &cobra.Command{
	Use:   "env <environment>",
	Short: "List what is currently deployed in an environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		path := deploymentsAPIBase + "/environments/" + url.PathEscape(args[0]) + "/deployments"
		if listInactive {
			path += "?includeInactive=true"
		}

		var result struct {
			Items []deploymentRecord `json:"items"`
		}
		if err := client.getJSON(path, &result); err != nil {
			return fmt.Errorf("failed to list deployments: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"Service", "Version", "Active", "Status", "Deployed By", "Deployed"}
		rows := make([][]string, 0, len(result.Items))
		for _, d := range result.Items {
			rows = append(rows, []string{
				d.Service, d.Version, fmt.Sprintf("%t", d.Active), d.Status, d.DeployedBy, d.DeployedAt,
			})
		}
		printTable(headers, rows)
		return nil
	},
}

var historyEnv string

var deploymentsHistoryCmd = &cobra.Command{
	Use:   "history <service>",
	Short: "Show a service's deployment log, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		path := deploymentsAPIBase + "/services/" + url.PathEscape(args[0]) + "/deployments"
		if historyEnv != "" {
			path += "?environment=" + url.QueryEscape(historyEnv)
		}

		var result struct {
			Items         []deploymentRecord `json:"items"`
			NextPageToken string             `json:"nextPageToken"`
		}
		if err := client.getJSON(path, &result); err != nil {
			return fmt.Errorf("failed to list deployment history: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"Version", "Environment", "Active", "Status", "Deployed"}
		rows := make([][]string, 0, len(result.Items))
		for _, d := range result.Items {
			rows = append(rows, []string{
				d.Version, d.Environment, fmt.Sprintf("%t", d.Active), d.Status, d.DeployedAt,
			})
		}
		printTable(headers, rows)
		return nil
	},
}

func init() {
	deploymentsCreateCmd.Flags().StringVar(&deployVersion, "version", "", "Exact registered version being deployed")
	deploymentsCreateCmd.Flags().StringVar(&deployEnv, "env", "", "Target environment")
	deploymentsCreateCmd.Flags().StringVar(&deployGitSHA, "git-sha", "", "Commit the deployment was built from")
	deploymentsCreateCmd.Flags().StringVar(&deployDeployedBy, "deployed-by", "", "Who or what performed the deployment")
	_ = deploymentsCreateCmd.MarkFlagRequired("version")
	_ = deploymentsCreateCmd.MarkFlagRequired("env")

	deploymentsEnvCmd.Flags().BoolVar(&listInactive, "include-inactive", false, "Include superseded and failed deployments")
	deploymentsHistoryCmd.Flags().StringVar(&historyEnv, "env", "", "Filter to one environment")

	deploymentsCmd.AddCommand(deploymentsCreateCmd)
	deploymentsCmd.AddCommand(deploymentsEnvCmd)
	deploymentsCmd.AddCommand(deploymentsHistoryCmd)
}
