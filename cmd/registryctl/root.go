package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	outputFmt string
	tenant    string
)

var rootCmd = &cobra.Command{
	Use:   "registryctl",
	Short: "CLI for the contract registry server",
	Long: `registryctl manages services, fixtures, verification tasks and
deployments on a contract registry server.

Service teams use it to register spec versions, review and approve recorded
fixtures, submit provider verification results, and track which version runs
in which environment.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Registry server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVarP(&tenant, "tenant", "t", "", "Tenant for multi-tenant servers (default: from REGISTRY_TENANT env)")

	rootCmd.AddCommand(servicesCmd)
	rootCmd.AddCommand(fixturesCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(deploymentsCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(healthCmd)
}

// resolvedTenant returns the effective tenant.
// Priority: --tenant flag > REGISTRY_TENANT env var > server default.
func resolvedTenant() string {
	if tenant != "" {
		return tenant
	}
	return os.Getenv("REGISTRY_TENANT")
}
