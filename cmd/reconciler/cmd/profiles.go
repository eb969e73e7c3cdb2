package cmd

import (
	"fmt"
	"io"
	"strings"

	"waterfall-reconciliation-service/cmd/reconciler/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var showProfileYAML bool

// profilesCmd lists the entity profiles shipped with the binary
var profilesCmd = &cobra.Command{
	Use:   "profiles [entity]",
	Short: "List the built-in entity profiles",
	Long: `Profiles lists the entity profiles shipped with the binary. With an entity
name and --yaml it prints the profile as YAML, a starting point for a custom
--profile file.

Examples:
  reconciler profiles
  reconciler profiles ABCD --yaml > abcd.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		names := config.BuiltInProfileNames()
		if len(args) == 1 {
			names = []string{args[0]}
		}
		return printProfiles(cmd.OutOrStdout(), names, showProfileYAML)
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	profilesCmd.Flags().BoolVar(&showProfileYAML, "yaml", false, "print the profiles as YAML documents")
}

func printProfiles(w io.Writer, names []string, asYAML bool) error {
	for i, name := range names {
		profile, err := config.GetProfile(name)
		if err != nil {
			return err
		}

		if asYAML {
			if i > 0 {
				fmt.Fprintln(w, "---")
			}
			encoder := yaml.NewEncoder(w)
			encoder.SetIndent(2)
			if err := encoder.Encode(profile); err != nil {
				return fmt.Errorf("failed to encode profile %s: %w", name, err)
			}
			if err := encoder.Close(); err != nil {
				return err
			}
			continue
		}

		fmt.Fprintf(w, "%s: %s\n", profile.Name, profile.Description)
		fmt.Fprintf(w, "  amount threshold: %s\n", profile.AmountThreshold)
		fmt.Fprintf(w, "  min score:        %d\n", profile.MinScore)
		fmt.Fprintf(w, "  partition order:  %s\n", profile.PartitionOrder)
		for _, s := range profile.Segments {
			fmt.Fprintf(w, "  segment %-16s %3d days  share types: %s\n",
				s.Name, s.WindowDays, strings.Join(s.ShareTypes, ", "))
		}
	}
	return nil
}
