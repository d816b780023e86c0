package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var ticketsLimit int

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "Manage clinician handoff tickets",
}

var ticketsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List open handoff tickets, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		tickets, err := a.store.ListHandoffTickets(cmd.Context(), ticketsLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(tickets) == 0 {
			fmt.Fprintln(out, "no open tickets")
			return nil
		}
		for _, t := range tickets {
			fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\n",
				t.TicketID, t.CreatedAt.Format(time.RFC3339), t.ConversationID, t.Reason, t.UserMessage)
		}
		return nil
	},
}

var ticketsResolveCmd = &cobra.Command{
	Use:   "resolve <ticket-id>",
	Short: "Resolve (delete) a handoff ticket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		remaining, err := a.store.ResolveHandoffTicket(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "resolved %s, %d open\n", args[0], remaining)
		return nil
	},
}

var ticketsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print new handoff tickets as they are created (postgres only)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		if a.notifier == nil {
			return errors.New("tickets watch requires store.driver postgres")
		}

		ids, err := a.notifier.Listen(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "watching channel %s\n", a.notifier.Channel)
		for id := range ids {
			fmt.Fprintf(out, "%s\tnew ticket %s\n", time.Now().UTC().Format(time.RFC3339), id)
		}
		return nil
	},
}

func init() {
	ticketsListCmd.Flags().IntVar(&ticketsLimit, "limit", 50, "Maximum tickets to show")
	ticketsCmd.AddCommand(ticketsListCmd, ticketsResolveCmd, ticketsWatchCmd)
}
