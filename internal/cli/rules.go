package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"waitroom-triage/internal/core"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect clinical rule configuration",
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Load and validate a clinical rule file",
	Long: `validate loads a rule file the same way the server does and lists its
rules. Without a path it uses rules.path from the config, or the embedded
defaults.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		} else {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path = cfg.Rules.Path
		}
		rs, err := core.LoadRules(path)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		source := path
		if source == "" {
			source = "embedded defaults"
		}
		fmt.Fprintf(out, "%s: %d rules OK\n", source, rs.Len())
		for _, r := range rs.Rules() {
			fmt.Fprintf(out, "  %-28s %s\n", r.ID, r.Urgency)
		}
		return nil
	},
}

func init() {
	rulesCmd.AddCommand(rulesValidateCmd)
}
