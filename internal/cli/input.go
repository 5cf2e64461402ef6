package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neuraplayapp/assistant-core/internal/model"
	"github.com/neuraplayapp/assistant-core/internal/taxonomy"
)

// readContent takes positional args first, then piped stdin.
func readContent(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	return "", nil
}

// addRequestFlags registers the flags describing where a request comes from.
func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("session", "s", "", "Session ID (default: generated)")
	cmd.Flags().StringP("mode", "m", "", "Declared mode: chat, tool-calling, vision, agent, socratic")
	cmd.Flags().String("form-factor", "", "UI form factor: fullscreen, sidebar, small, mobile")
	cmd.Flags().String("page", "", "Current page")
	cmd.Flags().Bool("canvas-visible", false, "Canvas is on screen")
	cmd.Flags().StringSlice("attach", nil, "Attachment MIME types")
}

func requestFromFlags(cmd *cobra.Command, message string) model.Request {
	sessionID, _ := cmd.Flags().GetString("session")
	mode, _ := cmd.Flags().GetString("mode")
	formFactor, _ := cmd.Flags().GetString("form-factor")
	page, _ := cmd.Flags().GetString("page")
	visible, _ := cmd.Flags().GetBool("canvas-visible")
	attach, _ := cmd.Flags().GetStringSlice("attach")

	req := model.Request{
		Message:      strings.TrimSpace(message),
		SessionID:    sessionID,
		UserID:       userFlag,
		DeclaredMode: model.Mode(mode),
		Spatial: model.SpatialContext{
			CurrentPage:   page,
			CanvasVisible: visible,
			FormFactor:    formFactor,
		},
	}
	for i, mime := range attach {
		req.Attachments = append(req.Attachments, model.Attachment{Name: fmt.Sprintf("attachment-%d", i+1), MimeType: mime})
	}
	return req
}

func parseCategories(raw []string) ([]model.Category, error) {
	var out []model.Category
	for _, r := range raw {
		c := model.Category(strings.ToLower(strings.TrimSpace(r)))
		if c == "" {
			continue
		}
		if !taxonomy.IsValid(c) {
			return nil, fmt.Errorf("unknown category %q", r)
		}
		out = append(out, c)
	}
	return out, nil
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
