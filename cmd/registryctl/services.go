package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "Manage registered services and their versions",
}

type serviceRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SpecType    string `json:"specType"`
	GitRepo     string `json:"gitRepo"`
	CreatedAt   string `json:"createdAt"`
}

type versionRecord struct {
	ID        string `json:"id"`
	Version   string `json:"version"`
	SpecType  string `json:"specType"`
	HasSpec   bool   `json:"hasSpec"`
	GitSHA    string `json:"gitSha"`
	CreatedAt string `json:"createdAt"`
}

var servicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered services",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result struct {
			Services      []serviceRecord `json:"services"`
			NextPageToken string          `json:"nextPageToken"`
		}
		if err := client.getJSON(registryAPIBase+"/services", &result); err != nil {
			return fmt.Errorf("failed to list services: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"Name", "Spec Type", "Description", "Created"}
		rows := make([][]string, 0, len(result.Services))
		for _, s := range result.Services {
			rows = append(rows, []string{s.Name, s.SpecType, truncate(s.Description, 40), s.CreatedAt})
		}
		printTable(headers, rows)
		return nil
	},
}

var servicesGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Get service details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		result, err := client.getRaw(registryAPIBase + "/services/" + url.PathEscape(args[0]))
		if err != nil {
			return fmt.Errorf("failed to get service: %w", err)
		}
		return printOutput(result)
	},
}

var (
	registerSpecType  string
	registerGitRepo   string
	registerGitBranch string
)

var servicesRegisterCmd = &cobra.Command{
	Use:   "register <name>",
	Short: "Register a service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		body := map[string]any{
			"name":      args[0],
			"specType":  registerSpecType,
			"gitRepo":   registerGitRepo,
			"gitBranch": registerGitBranch,
		}

		var result map[string]any
		if err := client.postJSON(registryAPIBase+"/services", body, &result); err != nil {
			return fmt.Errorf("failed to register service: %w", err)
		}
		return printOutput(result)
	},
}

var servicesVersionsCmd = &cobra.Command{
	Use:   "versions <service>",
	Short: "List a service's versions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result struct {
			Versions []versionRecord `json:"versions"`
		}
		path := registryAPIBase + "/services/" + url.PathEscape(args[0]) + "/versions"
		if err := client.getJSON(path, &result); err != nil {
			return fmt.Errorf("failed to list versions: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"Version", "Spec Type", "Has Spec", "Git SHA", "Created"}
		rows := make([][]string, 0, len(result.Versions))
		for _, v := range result.Versions {
			rows = append(rows, []string{
				v.Version, v.SpecType, fmt.Sprintf("%t", v.HasSpec), truncate(v.GitSHA, 10), v.CreatedAt,
			})
		}
		printTable(headers, rows)
		return nil
	},
}

var (
	pushSpecFile string
	pushGitSHA   string
)

var servicesPushCmd = &cobra.Command{
	Use:   "push <service> <version>",
	Short: "Register a service version, optionally uploading its spec",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		body := map[string]any{"gitSha": pushGitSHA}
		if pushSpecFile != "" {
			raw, err := os.ReadFile(pushSpecFile)
			if err != nil {
				return fmt.Errorf("failed to read spec file: %w", err)
			}
			body["spec"] = string(raw)
		}

		path := registryAPIBase + "/services/" + url.PathEscape(args[0]) +
			"/versions/" + url.PathEscape(args[1])
		var result map[string]any
		if err := client.putJSON(path, body, &result); err != nil {
			return fmt.Errorf("failed to push version: %w", err)
		}
		return printOutput(result)
	},
}

var servicesResolveCmd = &cobra.Command{
	Use:   "resolve <service> <version>",
	Short: "Resolve a version request (exact, range, or latest)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		path := registryAPIBase + "/services/" + url.PathEscape(args[0]) +
			"/versions:resolve?version=" + url.QueryEscape(args[1])
		result, err := client.getRaw(path)
		if err != nil {
			return fmt.Errorf("failed to resolve version: %w", err)
		}
		return printOutput(result)
	},
}

func init() {
	servicesRegisterCmd.Flags().StringVar(&registerSpecType, "spec-type", "", "Spec type (openapi, graphql, asyncapi, grpc, soap)")
	servicesRegisterCmd.Flags().StringVar(&registerGitRepo, "git-repo", "", "Source repository URL")
	servicesRegisterCmd.Flags().StringVar(&registerGitBranch, "git-branch", "", "Source branch")

	servicesPushCmd.Flags().StringVar(&pushSpecFile, "spec-file", "", "Path to the spec document to upload")
	servicesPushCmd.Flags().StringVar(&pushGitSHA, "git-sha", "", "Commit the version was built from")

	servicesCmd.AddCommand(servicesListCmd)
	servicesCmd.AddCommand(servicesGetCmd)
	servicesCmd.AddCommand(servicesRegisterCmd)
	servicesCmd.AddCommand(servicesVersionsCmd)
	servicesCmd.AddCommand(servicesPushCmd)
	servicesCmd.AddCommand(servicesResolveCmd)
}
