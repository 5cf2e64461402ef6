package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neuraplayapp/assistant-core/internal/model"
	"github.com/neuraplayapp/assistant-core/internal/store"
	"github.com/neuraplayapp/assistant-core/internal/vector"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories by keyword or meaning",
		Long:  "Search memory values and keys for matching words. With --semantic the vector index is queried instead.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringSlice("category", nil, "Filter by categories (comma-separated)")
	cmd.Flags().IntP("limit", "l", 20, "Max results")
	cmd.Flags().Bool("semantic", false, "Use embedding similarity")
	cmd.Flags().Float64("min-similarity", 0.3, "Minimum similarity for semantic hits")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	rawCats, _ := cmd.Flags().GetStringSlice("category")
	limit, _ := cmd.Flags().GetInt("limit")
	semantic, _ := cmd.Flags().GetBool("semantic")
	minSim, _ := cmd.Flags().GetFloat64("min-similarity")
	query := strings.Join(args, " ")

	cats, err := parseCategories(rawCats)
	if err != nil {
		exitErr("search", err)
	}

	var hits []model.RetrievalHit
	if semantic {
		a, err := openApp(cmd.Context())
		if err != nil {
			exitErr("open", err)
		}
		defer a.close()
		if a.index == nil {
			exitErr("search", fmt.Errorf("semantic search needs an embedding provider (embedding.provider is none)"))
		}
		hits, err = a.index.SemanticSearch(cmd.Context(), query, vector.Filter{UserID: userFlag, Categories: cats}, limit, minSim)
		if err != nil {
			exitErr("search", err)
		}
	} else {
		s, err := openStore()
		if err != nil {
			exitErr("open store", err)
		}
		defer s.Close()
		hits, err = s.Search(cmd.Context(), store.SearchParams{UserID: userFlag, Query: query, Categories: cats, Limit: limit})
		if err != nil {
			exitErr("search", err)
		}
	}

	if len(hits) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(hits)
}
