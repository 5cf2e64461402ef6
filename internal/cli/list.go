package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neuraplayapp/assistant-core/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's memories",
		Run:   runList,
	}

	cmd.Flags().StringSlice("category", nil, "Filter by categories (comma-separated)")
	cmd.Flags().IntP("limit", "l", 20, "Max results")
	cmd.Flags().Bool("keys-only", false, "Only output keys")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	rawCats, _ := cmd.Flags().GetStringSlice("category")
	limit, _ := cmd.Flags().GetInt("limit")
	keysOnly, _ := cmd.Flags().GetBool("keys-only")

	cats, err := parseCategories(rawCats)
	if err != nil {
		exitErr("list", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	records, err := s.ListByUser(cmd.Context(), userFlag, store.ListParams{Categories: cats, Limit: limit})
	if err != nil {
		exitErr("list", err)
	}

	if keysOnly {
		for _, r := range records {
			fmt.Printf("%s\t%s\n", r.Category, r.Key)
		}
		return
	}
	printJSON(records)
}
