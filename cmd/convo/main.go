// Command convo is an interactive front end for the conversational agent
// runtime: a chat REPL with document upload, a one-shot ask mode and a tool
// surface listing.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	convo "convo"
	"convo/config"
	"convo/core"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "convo",
		Short:         "Conversational agent runtime with tools and document retrieval",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: ./convo.yaml)")

	root.AddCommand(newChatCmd(), newAskCmd(), newToolsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadRuntime(ctx context.Context) (*convo.Convo, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	return convo.New(ctx, cfg)
}

func newChatCmd() *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := loadRuntime(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			if conversationID == "" {
				conversationID = uuid.NewString()
			}
			fmt.Printf("conversation %s (commands: /upload <file>, /docs, /quit)\n", conversationID)

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				switch {
				case line == "":
					continue
				case line == "/quit" || line == "/exit":
					return nil
				case line == "/docs":
					docs, err := c.Documents(conversationID)
					if err != nil {
						fmt.Fprintln(os.Stderr, "error:", err)
						continue
					}
					for _, d := range docs {
						fmt.Println(" ", d)
					}
					continue
				case strings.HasPrefix(line, "/upload "):
					path := strings.TrimSpace(strings.TrimPrefix(line, "/upload "))
					if err := upload(ctx, c, conversationID, path); err != nil {
						fmt.Fprintln(os.Stderr, "error:", err)
					}
					continue
				}

				if err := runTurn(ctx, c, conversationID, line); err != nil {
					fmt.Fprintln(os.Stderr, "error:", err)
				}
			}
		},
	}

	cmd.Flags().StringVar(&conversationID, "conversation", "", "resume a conversation by id")
	return cmd
}

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <message>",
		Short: "Run a single turn and print the final answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := loadRuntime(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			final, _, err := c.StartTurnSync(ctx, uuid.NewString(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Println(final)
			return nil
		},
	}
}

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the available tools, local and remote",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			for _, name := range c.ToolNames() {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func upload(ctx context.Context, c *convo.Convo, conversationID, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	n, err := c.Ingest(ctx, conversationID, filepath.Base(path), data)
	if err != nil {
		return err
	}
	fmt.Printf("indexed %s (%d chunks)\n", filepath.Base(path), n)
	return nil
}

// runTurn streams one turn to stdout: partials inline, tool activity as
// status lines.
func runTurn(ctx context.Context, c *convo.Convo, conversationID, message string) error {
	_, eventsCh, errorsCh, err := c.StartTurn(ctx, conversationID, message)
	if err != nil {
		return err
	}

	var turnErr error
	streaming := false
	for eventsCh != nil || errorsCh != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-eventsCh:
			if !ok {
				eventsCh = nil
				continue
			}
			printEvent(ev, &streaming)
		case err, ok := <-errorsCh:
			if !ok {
				errorsCh = nil
				continue
			}
			if turnErr == nil {
				turnErr = err
			}
		}
	}
	if streaming {
		fmt.Println()
	}
	return turnErr
}

func printEvent(ev core.Event, streaming *bool) {
	switch {
	case ev.IsPartial():
		fmt.Print(ev.Content.Text())
		*streaming = true
	case len(ev.GetToolCalls()) > 0:
		for _, call := range ev.GetToolCalls() {
			fmt.Printf("[tool] %s(%s)\n", call.Name, call.Arguments)
		}
	case len(ev.GetToolResults()) > 0:
		for _, res := range ev.GetToolResults() {
			if res.Error != "" {
				fmt.Printf("[tool] %s failed: %s\n", res.Name, res.Error)
			}
		}
	case ev.ErrorCode != nil:
		fmt.Printf("[error %s] %s\n", *ev.ErrorCode, deref(ev.ErrorMessage))
	case ev.IsFinalAnswer():
		if *streaming {
			// The partials already rendered the text.
			fmt.Println()
			*streaming = false
			return
		}
		fmt.Println(ev.Content.Text())
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
