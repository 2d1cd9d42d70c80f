package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	umgram "github.com/alhassansoft/umgram-go"
	"github.com/spf13/cobra"
)

var (
	chatLat  float64
	chatLng  float64
	chatSend string
)

func init() {
	chatCmd.Flags().Float64Var(&chatLat, "lat", 0, "Your latitude (defaults to last known position)")
	chatCmd.Flags().Float64Var(&chatLng, "lng", 0, "Your longitude (defaults to last known position)")
	chatCmd.Flags().StringVar(&chatSend, "send", "", "Send this message, then keep listening")
	circlesCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat <circle-id>",
	Short: "Join a circle's chat",
	Long:  "Open the chat of a circle you are inside of. Messages refresh every few seconds; press Ctrl-C to leave.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg := getAuthedClient()

		pos := umgram.LatLng{Lat: chatLat, Lng: chatLng}
		if pos.Lat == 0 && pos.Lng == 0 {
			pos = lastPosition(cfg)
		} else {
			// Remember the position for the next invocation.
			cfg.Geo.LastLat = pos.Lat
			cfg.Geo.LastLng = pos.Lng
			saveConfig(cfg)
		}

		poller := umgram.NewChatPoller(client.Geo(), args[0], &umgram.ChatPollerOptions{
			Fallback: pos,
		})
		poller.OnMessages(func(msgs []umgram.ChatMessage) {
			for _, m := range msgs {
				printChatMessage(m)
			}
		})

		if err := poller.Open(context.Background()); err != nil {
			return fmt.Errorf("cannot open chat: %w", err)
		}
		defer poller.Close()

		if chatSend != "" {
			if _, err := poller.Send(context.Background(), chatSend); err != nil {
				return fmt.Errorf("send failed: %w", err)
			}
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nLeft the chat.")
		return nil
	},
}

func printChatMessage(m umgram.ChatMessage) {
	name := m.DisplayName
	if name == "" {
		name = m.Username
	}
	if name == "" {
		name = m.UserID
	}
	fmt.Printf("[%s] %s: %s\n", m.CreatedAt, name, m.Text)
}
