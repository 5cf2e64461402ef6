package cli

import (
	"github.com/spf13/cobra"

	"github.com/neuraplayapp/assistant-core/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Create or remove relations between memories",
		Long:  "Link two of a user's memories. Linked memories are recalled together by associative retrieval.",
		Run:   runLink,
	}

	cmd.Flags().String("from-key", "", "Source key")
	cmd.Flags().String("to-key", "", "Target key")
	cmd.Flags().StringP("rel", "r", "relates_to", "Relation: relates_to, contradicts, depends_on, refines, mentions")
	cmd.Flags().Bool("rm", false, "Remove the link")

	cmd.MarkFlagRequired("from-key")
	cmd.MarkFlagRequired("to-key")

	RootCmd.AddCommand(cmd)
}

func runLink(cmd *cobra.Command, args []string) {
	fromKey, _ := cmd.Flags().GetString("from-key")
	toKey, _ := cmd.Flags().GetString("to-key")
	rel, _ := cmd.Flags().GetString("rel")
	rm, _ := cmd.Flags().GetBool("rm")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	link, err := s.Link(cmd.Context(), store.LinkParams{
		UserID:  userFlag,
		FromKey: fromKey,
		ToKey:   toKey,
		Rel:     rel,
		Remove:  rm,
	})
	if err != nil {
		exitErr("link", err)
	}
	printJSON(link)
}
