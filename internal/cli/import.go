package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/neuraplayapp/assistant-core/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import memories from JSON",
		Long:  "Import memories from JSON on stdin. Expects the format produced by export; records with unchanged values are skipped.",
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}

	var records []model.MemoryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		exitErr("parse json", err)
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	imported, err := a.store.Import(cmd.Context(), records)
	if err != nil {
		exitErr("import", err)
	}
	if a.index != nil {
		for _, r := range records {
			if err := a.index.Add(cmd.Context(), r); err != nil {
				exitErr("index", err)
			}
		}
	}

	fmt.Printf(`{"ok":true,"imported":%d}`+"\n", imported)
}
