package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/client"
	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	pollingOnly bool
	topics      []string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream realtime notifications until interrupted",
	Long: `Opens the realtime channel and prints every event received.

The WebSocket gateway is tried first; when it cannot be reached the client
falls back to long polling. --topic subscribes to broadcast topics such as
scholarship:new-match.`,
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		if err := a.requireSession(); err != nil {
			return err
		}

		rt := client.NewRealtimeManager(a.store, a.bus, newDialer(a), a.cfg.DialTimeout)
		defer rt.Close()

		out := cmd.OutOrStdout()
		for _, event := range []string{
			models.EventConnected,
			models.EventApplicationStatus,
			models.EventScholarshipMatch,
			models.EventDocumentGenerated,
			models.EventNotification,
			models.EventSubscribed,
			models.EventError,
		} {
			rt.On(event, printEvent(out, event))
		}

		rt.OnStateChange(func(s client.State) {
			log.Info().Str("state", s.String()).Msg("Realtime state changed")
			if s == client.StateConnected && len(topics) > 0 {
				rt.SendMessage(models.EventSubscribe, models.Subscription{Events: topics})
			}
		})
		rt.Start()

		// Dial failures are not retried, so give up instead of waiting forever.
		if err := awaitIdle(cmd.Context(), rt); err != nil {
			return nil
		}
		if rt.State() == client.StateDisconnected {
			return fmt.Errorf("could not connect to the notification gateway at %s", a.cfg.APIURL)
		}

		<-cmd.Context().Done()
		return nil
	}),
}

func init() {
	watchCmd.Flags().BoolVar(&pollingOnly, "polling", false, "Use long polling instead of WebSocket")
	watchCmd.Flags().StringSliceVar(&topics, "topic", nil, "Broadcast topics to subscribe to")
}

func newDialer(a *app) client.Dialer {
	polling := &client.PollingDialer{APIURL: a.cfg.APIURL}
	if pollingOnly {
		return polling
	}
	return &client.FallbackDialer{
		Primary:   &client.WebSocketDialer{URL: a.cfg.WebSocketURL()},
		Secondary: polling,
	}
}

func printEvent(w io.Writer, event string) func(json.RawMessage) {
	return func(data json.RawMessage) {
		var pretty map[string]interface{}
		if err := json.Unmarshal(data, &pretty); err != nil || len(pretty) == 0 {
			fmt.Fprintf(w, "[%s]\n", event)
			return
		}
		body, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Fprintf(w, "[%s] %s\n", event, body)
	}
}

// awaitIdle waits until rt has finished its first evaluation.
func awaitIdle(ctx context.Context, rt *client.RealtimeManager) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for !rt.Idle() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
