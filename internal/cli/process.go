package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "process [message]",
		Short: "Run a message through the full request pipeline",
		Long: "Run a message through safety, intent analysis, memory extraction, mode dispatch and the " +
			"chat handler. With --interactive every stdin line is a turn of one session.",
		Run: runProcess,
	}

	addRequestFlags(cmd)
	cmd.Flags().BoolP("interactive", "i", false, "Read one message per stdin line")

	RootCmd.AddCommand(cmd)
}

func runProcess(cmd *cobra.Command, args []string) {
	interactive, _ := cmd.Flags().GetBool("interactive")

	a, err := openApp(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	if !interactive {
		content, err := readContent(args)
		if err != nil {
			exitErr("process", err)
		}
		printJSON(a.orch.Process(cmd.Context(), requestFromFlags(cmd, content)))
		return
	}

	sessionID, _ := cmd.Flags().GetString("session")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stderr, "> ")
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		req := requestFromFlags(cmd, line)
		req.SessionID = sessionID
		resp := a.orch.Process(cmd.Context(), req)
		fmt.Printf("[%s] %s\n", resp.Metadata.Mode, resp.Text)
	}
	if err := sc.Err(); err != nil {
		exitErr("read stdin", err)
	}
}
