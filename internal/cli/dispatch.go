package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neuraplayapp/assistant-core/internal/dispatch"
	"github.com/neuraplayapp/assistant-core/internal/intent"
	"github.com/neuraplayapp/assistant-core/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "dispatch [message]",
		Short: "Show which mode a message resolves to",
		Long:  "Analyze a message with the lexical classifier and print the dispatcher's decision. Nothing is stored.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runDispatch,
	}

	addRequestFlags(cmd)
	cmd.Flags().String("canvas-doc", "", "ID of the document on the session canvas")
	cmd.Flags().Bool("rules", false, "Also print the rule table in evaluation order")

	RootCmd.AddCommand(cmd)
}

func runDispatch(cmd *cobra.Command, args []string) {
	doc, _ := cmd.Flags().GetString("canvas-doc")
	showRules, _ := cmd.Flags().GetBool("rules")

	content, err := readContent(args)
	if err != nil {
		exitErr("dispatch", err)
	}
	req := requestFromFlags(cmd, content)
	analysis, err := intent.Heuristic{}.Analyze(cmd.Context(), req.Message, nil)
	if err != nil {
		exitErr("analyze", err)
	}

	d := dispatch.New(dispatch.WithLogger(logger.Named("dispatch")))
	decision := d.Resolve(req, analysis, model.CanvasState{HasDocument: doc != "", DocumentID: doc})
	if showRules {
		for i, r := range d.Rules() {
			fmt.Printf("%d. %s\n", i+1, r)
		}
	}
	printJSON(decision)
}
