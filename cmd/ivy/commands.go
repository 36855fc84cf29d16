package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/ivy/internal/config"
	"github.com/kalambet/ivy/internal/profile"
	"github.com/kalambet/ivy/internal/session"
	"github.com/kalambet/ivy/internal/storage"
)

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start a typed career-discovery conversation",
	Long: `Start a typed career-discovery conversation with a running ivy server.

Type your answers at the prompt. Commands:
  /profile   show what has been gathered so far
  /quit      leave the conversation (the session is kept until it expires)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runChat(cmd.Context(), client, os.Stdin, os.Stdout)
	},
}

// turnReply is the subset of a turn response the REPL renders.
type turnReply struct {
	Reply      string           `json:"reply"`
	Profile    profile.Snapshot `json:"profile"`
	Fallback   bool             `json:"fallback"`
	IsComplete bool             `json:"is_complete"`
}

func runChat(ctx context.Context, client *apiClient, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := client.post(ctx, "/sessions", nil)
	if err != nil {
		return err
	}
	var started session.Started
	if err := decodeJSON(resp, &started); err != nil {
		return err
	}

	speaker(out, "ivy", started.Greeting)
	fmt.Fprintf(out, "(session %s)\n", started.ID)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, colorize(colorBold, "you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/profile":
			resp, err := client.get(ctx, "/sessions/"+started.ID+"/profile")
			if err != nil {
				return err
			}
			var snap profile.Snapshot
			if err := decodeJSON(resp, &snap); err != nil {
				return err
			}
			fmt.Fprintln(out, snap.Summary())
			continue
		}

		resp, err := client.post(ctx, "/sessions/"+started.ID+"/turns", map[string]string{"text": line})
		if err != nil {
			return err
		}
		var turn turnReply
		if err := decodeJSON(resp, &turn); err != nil {
			return err
		}

		speaker(out, "ivy", turn.Reply)
		fmt.Fprintf(out, "  %s\n", milestoneBar(turn.Profile.Milestone(), profile.MilestoneCount))

		if turn.IsComplete {
			fmt.Fprintln(out)
			fmt.Fprint(out, formatReport(turn.Profile))
			return nil
		}
	}
}

// --- report ---

var reportCmd = &cobra.Command{
	Use:   "report <session-id>",
	Short: "Show the profile and suggested career paths for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/sessions/"+args[0]+"/profile")
		if err != nil {
			return err
		}
		var snap profile.Snapshot
		if err := decodeJSON(resp, &snap); err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		fmt.Print(formatReport(snap))
		return nil
	},
}

func init() {
	reportCmd.Flags().Bool("json", false, "print the raw profile as JSON")
}

func formatReport(s profile.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", colorize(colorBold, "Profile"))
	fmt.Fprintf(&b, "  %s\n", s.Summary())

	if len(s.Paths) == 0 {
		fmt.Fprintf(&b, "\nNo career paths yet. %s\n", milestoneBar(s.Milestone(), profile.MilestoneCount))
		return b.String()
	}

	reasons := make(map[string]string, len(s.Recommendations))
	for _, r := range s.Recommendations {
		reasons[r.Path] = r.Reason
	}

	fmt.Fprintf(&b, "\n%s\n", colorize(colorBold, "Career paths"))
	for i, p := range s.Paths {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, colorize(colorGreen, p))
		if why := reasons[p]; why != "" {
			fmt.Fprintf(&b, "     %s\n", why)
		}
	}
	return b.String()
}

// --- session ---

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or end conversation sessions",
}

var sessionHistoryCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "Show the recent turns of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/sessions/"+args[0]+"/history")
		if err != nil {
			return err
		}
		var history []session.Message
		if err := decodeJSON(resp, &history); err != nil {
			return err
		}

		if len(history) == 0 {
			fmt.Println("No turns recorded.")
			return nil
		}
		for _, m := range history {
			who := colorize(colorCyan, "ivy")
			if m.Role == storage.RoleStudent {
				who = colorize(colorBold, "you")
			}
			fmt.Printf("%3d %s  %s\n", m.Seq, who, m.Content)
		}
		return nil
	},
}

var sessionEndCmd = &cobra.Command{
	Use:   "end <session-id>",
	Short: "Delete a session and its transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/sessions/"+args[0])
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}

		printSuccess("Session %s ended", args[0])
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionHistoryCmd)
	sessionCmd.AddCommand(sessionEndCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: fmt.Sprintf(`Set a configuration value.

Valid keys: %s`, strings.Join(config.ValidKeys(), ", ")),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
