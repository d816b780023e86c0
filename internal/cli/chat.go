package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"waitroom-triage/internal/core"
	"waitroom-triage/pkg"
)

var chatConversationID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the triage assistant on stdin",
	Long: `chat starts an interactive conversation against the configured store.
Each line is one patient message. Type /quit or send EOF to stop.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatConversationID, "conversation", "", "Resume this conversation id (default: new id)")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	id := chatConversationID
	if id == "" {
		id = uuid.New().String()
	}
	return chatLoop(ctx, a.orchestrator(), id, cmd.InOrStdin(), cmd.OutOrStdout())
}

func chatLoop(ctx context.Context, orch *core.Orchestrator, id string, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "conversation %s\n", id)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return nil
		}
		res, err := orch.Process(ctx, pkg.ChatRequest{ConversationID: id, Message: line})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, res.Response.Response)
		fmt.Fprintf(out, "  [state=%s urgency=%s handoff=%t]\n",
			res.Response.State, orDash(string(res.Response.UrgencyLevel)), res.Response.RequiresHandoff)
		if res.Ticket != nil {
			fmt.Fprintf(out, "  [ticket %s: %s]\n", res.Ticket.TicketID, res.Ticket.Reason)
		}
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
