package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neuraplayapp/assistant-core/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm",
		Short: "Delete a memory",
		Long:  "Permanently delete every version of a key. With --soft the versions are retired and kept for history.",
		Run:   runRm,
	}

	cmd.Flags().StringP("key", "k", "", "Key (required)")
	cmd.Flags().Bool("soft", false, "Retire instead of deleting")

	cmd.MarkFlagRequired("key")

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	key, _ := cmd.Flags().GetString("key")
	soft, _ := cmd.Flags().GetBool("soft")

	a, err := openApp(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	if soft {
		err = a.store.Retire(cmd.Context(), store.RetireParams{UserID: userFlag, Key: key})
		if err == nil && a.index != nil {
			err = a.index.Remove(cmd.Context(), userFlag, key)
		}
	} else {
		err = a.memory.Forget(cmd.Context(), userFlag, key)
	}
	if err != nil {
		exitErr("rm", err)
	}
	a.profiles.Invalidate(userFlag)

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"user":%q,"key":%q}`+"\n", userFlag, key)
}
