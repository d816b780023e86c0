package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"waitroom-triage/internal/core"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect stored triage sessions",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Print a session summary and its audit log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		s, err := a.store.GetSession(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		summary := core.NewSummarizer().Summarize(s)
		fmt.Fprintf(out, "%s\n\n", summary.FreeText)
		for _, p := range summary.KeyPoints {
			fmt.Fprintf(out, "- %s\n", p)
		}
		fmt.Fprintln(out, "\naudit log:")
		for i, ev := range s.AuditLog {
			details, _ := json.Marshal(ev.Details)
			fmt.Fprintf(out, "%3d %s %-20s %-32s %s\n",
				i, ev.Timestamp.Format(time.RFC3339), ev.Agent, ev.Action, details)
		}
		return nil
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		sessions, err := a.store.ListSessions(cmd.Context(), 50)
		if err != nil {
			return err
		}
		for _, p := range sessions {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", p.ConversationID, p.State, p.UpdatedAt.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionShowCmd, sessionListCmd)
}
