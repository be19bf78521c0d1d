package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pyx-backend/internal/intent"
	"pyx-backend/internal/model"
	"pyx-backend/internal/service"
)

func newChatCommand() *cobra.Command {
	var (
		page    string
		visitor string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			ctx := context.Background()
			defer rt.shutdown(ctx)

			a, err := rt.manager.Get(ctx, visitor)
			if err != nil {
				return err
			}
			return runREPL(ctx, a, page, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&page, "page", "/", "page path the conversation starts on")
	cmd.Flags().StringVar(&visitor, "visitor", "terminal", "visitor id to load and save under")
	return cmd
}

func runREPL(ctx context.Context, a *service.Assistant, page string, in io.Reader, out io.Writer) error {
	state := a.Open(ctx, page)
	for _, m := range state.Messages {
		printMessage(out, m)
	}
	fmt.Fprintln(out, "Commands: /clear /save /history /stats /quit")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/clear":
			archived, err := a.ClearChat(ctx)
			if err != nil {
				return err
			}
			if archived != nil {
				fmt.Fprintf(out, "Archived conversation %s\n", archived.SessionID)
			}
			for _, m := range a.Open(ctx, "").Messages {
				printMessage(out, m)
			}
		case "/save":
			saved, err := a.SaveConversation(ctx)
			if err != nil {
				return err
			}
			if saved == nil {
				fmt.Fprintln(out, "Nothing to save")
				continue
			}
			fmt.Fprintf(out, "Saved conversation %s\n", saved.SessionID)
		case "/history":
			for _, s := range a.Conversations() {
				fmt.Fprintf(out, "%s  %s  %d messages  %s\n",
					s.SessionID, s.StartTime.Format("2006-01-02 15:04"), len(s.Messages), strings.Join(s.Tags, ","))
			}
		case "/stats":
			stats := a.Stats()
			fmt.Fprintf(out, "messages: %d  duration: %s  topics: %s\n",
				stats.MessageCount, stats.Duration.Round(1e9), strings.Join(stats.Topics, ","))
		default:
			resp, err := a.Send(ctx, line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			printMessage(out, resp.Reply)
		}
	}
}

func printMessage(out io.Writer, m model.Message) {
	if m.Role != model.RoleAssistant {
		return
	}
	fmt.Fprintf(out, "PyX: %s\n", m.Content)
	if len(m.Suggestions) > 0 {
		fmt.Fprintf(out, "     [%s]\n", strings.Join(m.Suggestions, "] ["))
	}
}

func newClassifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <text>",
		Short: "Print the intent of a message as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(intent.Classify(strings.Join(args, " ")))
		},
	}
}
