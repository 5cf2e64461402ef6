package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/neuraplayapp/assistant-core/internal/model"
	"github.com/neuraplayapp/assistant-core/internal/retrieval"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recall [query]",
		Short: "Recall ranked memories for a message",
		Long: "Run identity baseline, category, episodic and fallback retrieval for a message. " +
			"With --budget the ranked memories are packed into a token budget.",
		Args: cobra.MinimumNArgs(1),
		Run:  runRecall,
	}

	cmd.Flags().StringP("session", "s", "", "Session ID for conversational continuity")
	cmd.Flags().String("type", string(model.QueryRecall), "Query type: recall, chat, greeting")
	cmd.Flags().IntP("budget", "b", 0, "Pack into this many tokens (0: no packing)")

	RootCmd.AddCommand(cmd)
}

func runRecall(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	queryType, _ := cmd.Flags().GetString("type")
	budget, _ := cmd.Flags().GetInt("budget")
	query := strings.Join(args, " ")

	a, err := openApp(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	mems, err := a.retrieval.Recall(cmd.Context(), retrieval.RecallParams{
		UserID:    userFlag,
		SessionID: sessionID,
		Message:   query,
		Context:   model.SupersessionContext{QueryType: model.QueryType(queryType), Query: query},
	})
	if err != nil {
		exitErr("recall", err)
	}

	if budget > 0 {
		printJSON(retrieval.Pack(mems, budget))
		return
	}
	if mems == nil {
		mems = []model.RankedMemory{}
	}
	printJSON(mems)
}
