package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users with stored memories",
		Run:   runUsers,
	}

	cmd.Flags().Bool("names-only", false, "Only output user IDs")

	RootCmd.AddCommand(cmd)
}

func runUsers(cmd *cobra.Command, args []string) {
	namesOnly, _ := cmd.Flags().GetBool("names-only")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	users, err := s.Users(cmd.Context())
	if err != nil {
		exitErr("users", err)
	}

	if namesOnly {
		for _, u := range users {
			fmt.Println(u.UserID)
		}
		return
	}
	printJSON(users)
}
