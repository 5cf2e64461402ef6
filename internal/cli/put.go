package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neuraplayapp/assistant-core/internal/extract"
	"github.com/neuraplayapp/assistant-core/internal/model"
	"github.com/neuraplayapp/assistant-core/internal/taxonomy"
)

func init() {
	cmd := &cobra.Command{
		Use:   "put [value]",
		Short: "Store a memory as an explicit statement",
		Long: "Store a memory. The value can be a positional arg or piped via stdin. " +
			"The same conflict policy as extraction applies: protected keys are replaced, duplicates skipped.",
		Run: runPut,
	}

	cmd.Flags().StringP("key", "k", "", "Key (default: derived from category and value)")
	cmd.Flags().String("category", "", "Category (default: inferred from the value)")
	cmd.Flags().Float64P("importance", "p", 0, "Importance in [0,1] (default 0.5)")
	cmd.Flags().String("entity", "", "Entity name, for relational memories")
	cmd.Flags().String("relation", "", "Entity relation, e.g. uncle, colleague")

	RootCmd.AddCommand(cmd)
}

func runPut(cmd *cobra.Command, args []string) {
	key, _ := cmd.Flags().GetString("key")
	rawCategory, _ := cmd.Flags().GetString("category")
	importance, _ := cmd.Flags().GetFloat64("importance")
	entityName, _ := cmd.Flags().GetString("entity")
	relation, _ := cmd.Flags().GetString("relation")

	value, err := readContent(args)
	if err != nil {
		exitErr("put", err)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		exitErr("put", fmt.Errorf("value is required (positional arg or stdin)"))
	}

	category := taxonomy.General
	if rawCategory != "" {
		cats, err := parseCategories([]string{rawCategory})
		if err != nil {
			exitErr("put", err)
		}
		category = cats[0]
	} else if c, ok := taxonomy.InferFromContent(value); ok {
		category = c
	}

	var entity *model.Entity
	if entityName != "" || relation != "" {
		entity = &model.Entity{Name: entityName, Relation: strings.ToLower(relation)}
	}
	if key == "" {
		key = extract.DeriveKey(category, value, entity)
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	rec, skip, err := a.memory.StoreExplicit(cmd.Context(), model.MemoryRecord{
		UserID:   userFlag,
		Key:      key,
		Value:    value,
		Category: category,
		Metadata: model.MemoryMetadata{Importance: importance, Entity: entity},
	})
	if err != nil {
		exitErr("put", err)
	}
	if rec == nil {
		printJSON(map[string]any{"ok": false, "key": key, "skipped": skip})
		return
	}
	a.profiles.Invalidate(userFlag)
	printJSON(rec)
}
