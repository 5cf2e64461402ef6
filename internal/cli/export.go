package cli

import (
	"github.com/spf13/cobra"

	"github.com/neuraplayapp/assistant-core/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export memories as JSON",
		Long:  "Export every live version of every memory as JSON. Restrict to the --user with --only-user.",
		Run:   runExport,
	}

	cmd.Flags().Bool("only-user", false, "Export only the --user's memories")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	onlyUser, _ := cmd.Flags().GetBool("only-user")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	var owner string
	if onlyUser {
		owner = userFlag
	}
	records, err := s.ExportAll(cmd.Context(), owner)
	if err != nil {
		exitErr("export", err)
	}
	if records == nil {
		records = []model.MemoryRecord{}
	}
	printJSON(records)
}
