// Package main implements the piiguard CLI for checking text against a
// piiguardd server or the built-in local detectors.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	piihttp "github.com/fyrsmithlabs/piiguard/internal/http"
)

var (
	// serverURL is the base URL of the piiguardd server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "piiguard",
	Short: "Check text for PII",
	Long: `piiguard checks text for personally identifiable information.

It talks to a piiguardd server by default, or runs the built-in regex and
secret detectors in-process with --local.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8000", "piiguardd server URL")
	rootCmd.AddCommand(healthCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check piiguardd server health",
	Long: `Check the health of the piiguardd server and its detector services.

Examples:
  piiguard health
  piiguard health --server http://localhost:9000`,
	RunE: runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/health", serverURL)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	var health piihttp.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Server Status: %s\n", health.Status)
	if health.Collaborators != "" {
		fmt.Fprintf(out, "Collaborators: %s\n", health.Collaborators)
	}
	fmt.Fprintf(out, "Server URL: %s\n", serverURL)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return nil
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
