package main

import (
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server readiness",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		resp, err := client.do(http.MethodGet, "/readyz", nil)
		if err != nil {
			return fmt.Errorf("server unreachable: %w", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server not ready: %d %s", resp.StatusCode, string(body))
		}
		fmt.Printf("server ready: %s\n", string(body))
		return nil
	},
}
