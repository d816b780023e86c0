package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"waitroom-triage/internal/core"
	"waitroom-triage/pkg"
)

var replayParallel int

var replayCmd = &cobra.Command{
	Use:   "replay <file.yaml>",
	Short: "Replay scripted conversations",
	Long: `replay feeds scripted conversations through the orchestrator and
prints the final state of each. Conversations run concurrently; messages
within one conversation run in order.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().IntVar(&replayParallel, "parallel", 4, "Maximum conversations replayed at once")
}

// Script is a replay file.
type Script struct {
	Conversations []ScriptedConversation `yaml:"conversations"`
}

// ScriptedConversation is one conversation of a replay file.
type ScriptedConversation struct {
	ID       string   `yaml:"id"`
	Patient  string   `yaml:"patient"`
	Messages []string `yaml:"messages"`
}

// ReplayOutcome is the final state of one replayed conversation.
type ReplayOutcome struct {
	ConversationID  string
	State           pkg.TriageState
	UrgencyLevel    pkg.UrgencyLevel
	RequiresHandoff bool
	TriggeredRules  []string
	Turns           int
}

func runReplay(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return fmt.Errorf("parse script: %w", err)
	}

	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	outcomes, err := replay(cmd.Context(), a.orchestrator(), script, replayParallel)
	if err != nil {
		return err
	}
	printOutcomes(cmd.OutOrStdout(), outcomes)
	return nil
}

// replay runs every conversation of script and returns outcomes sorted by
// conversation id.
func replay(ctx context.Context, orch *core.Orchestrator, script Script, parallel int) ([]ReplayOutcome, error) {
	for i, conv := range script.Conversations {
		if conv.ID == "" {
			return nil, fmt.Errorf("conversation %d: missing id", i)
		}
	}
	outcomes := make([]ReplayOutcome, len(script.Conversations))
	g, ctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, conv := range script.Conversations {
		g.Go(func() error {
			out := ReplayOutcome{ConversationID: conv.ID}
			for _, msg := range conv.Messages {
				res, err := orch.Process(ctx, pkg.ChatRequest{ConversationID: conv.ID, PatientID: conv.Patient, Message: msg})
				if err != nil {
					return fmt.Errorf("conversation %s: %w", conv.ID, err)
				}
				out.Turns++
				out.State = res.Response.State
				out.UrgencyLevel = res.Response.UrgencyLevel
				out.RequiresHandoff = out.RequiresHandoff || res.Response.RequiresHandoff
				out.TriggeredRules = res.Session.TriggeredRules
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].ConversationID < outcomes[j].ConversationID })
	return outcomes, nil
}

func printOutcomes(w io.Writer, outcomes []ReplayOutcome) {
	for _, o := range outcomes {
		fmt.Fprintf(w, "%s\tturns=%d\tstate=%s\turgency=%s\thandoff=%t\trules=%v\n",
			o.ConversationID, o.Turns, o.State, orDash(string(o.UrgencyLevel)), o.RequiresHandoff, o.TriggeredRules)
	}
}
