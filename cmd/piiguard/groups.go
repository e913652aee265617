package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/piiguard/internal/entities"
)

var groupsFile string

func init() {
	groupsCmd.Flags().StringVar(&groupsFile, "groups-file", "", "TOML entity group table (default: built-in)")
	rootCmd.AddCommand(groupsCmd)
}

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List entity group aliases",
	Long: `List the entity group aliases and the entity types each one requests.

Examples:
  piiguard groups
  piiguard groups --groups-file ./groups.toml`,
	Args: cobra.NoArgs,
	RunE: runGroups,
}

func runGroups(cmd *cobra.Command, args []string) error {
	r, err := loadResolver(groupsFile)
	if err != nil {
		return err
	}
	t := r.Table()
	out := cmd.OutOrStdout()
	for _, name := range t.Names() {
		ids, _ := t.Lookup(name)
		fmt.Fprintf(out, "%s: %s\n", name, strings.Join(ids, ", "))
	}
	return nil
}

func loadResolver(path string) (*entities.Resolver, error) {
	if path == "" {
		return entities.NewResolver(nil), nil
	}
	table, err := entities.LoadTable(path)
	if err != nil {
		return nil, err
	}
	return entities.NewResolver(table), nil
}
