package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/outreach-hub/backend/internal/bootstrap"
	"github.com/outreach-hub/backend/internal/config"
	"github.com/outreach-hub/backend/internal/db"
	"github.com/outreach-hub/backend/internal/events"
	"go.uber.org/zap"
)

// Notify bridge: subscribes to campaign events on Redis and forwards the ones an operator
// cares about to a webhook (chat, ticketing, whatever sits behind it).

var forwarded = map[string]bool{
	events.EventCampaignStatusChanged: true,
	events.EventPhaseCompleted:        true,
	events.EventAdmissionDenied:       true,
}

func main() {
	cfg := config.Load()

	log, err := bootstrap.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.NotifyWebhookURL == "" {
		log.Fatal("NOTIFY_WEBHOOK_URL is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	subscriber := events.NewRedisSubscriber(rdb, log)
	client := &http.Client{Timeout: 10 * time.Second}

	err = subscriber.Subscribe(ctx, events.StreamCampaign, func(event events.Event) {
		if !forwarded[event.Type] {
			return
		}
		log.Debug("forwarding campaign event", zap.String("type", event.Type))
		forward(ctx, client, cfg.NotifyWebhookURL, event, log)
	})
	if err != nil {
		log.Fatal("failed to subscribe", zap.Error(err))
	}

	log.Info("notify-bridge started", zap.String("stream", events.StreamCampaign))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down notify-bridge")
	cancel()
}

func forward(ctx context.Context, client *http.Client, url string, event events.Event, log *zap.Logger) {
	body, err := json.Marshal(map[string]any{
		"type":    event.Type,
		"user_id": event.Payload["user_id"],
		"text":    summary(event),
		"payload": event.Payload,
	})
	if err != nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Warn("bad webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		log.Warn("failed to forward notification", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Warn("webhook returned non-2xx", zap.Int("status", resp.StatusCode))
	}
}

func summary(event events.Event) string {
	p := event.Payload
	switch event.Type {
	case events.EventCampaignStatusChanged:
		return fmt.Sprintf("Campaign %v: %v -> %v", p["campaign_id"], p["old_status"], p["new_status"])
	case events.EventPhaseCompleted:
		return fmt.Sprintf("Campaign %v finished phase %v (%v ok, %v failed)", p["campaign_id"], p["phase"], p["actions_success"], p["actions_failed"])
	case events.EventAdmissionDenied:
		return fmt.Sprintf("Campaign %v waiting on %v: %v (%vs)", p["campaign_id"], p["platform"], p["reason"], p["wait_seconds"])
	}
	return "Event: " + event.Type
}
