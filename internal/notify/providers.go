package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"
)

// Provider delivers one alert over an out-of-process channel (platform push,
// sound trigger). Delivery failures are the caller's problem to swallow.
type Provider interface {
	Send(ctx context.Context, title, body string) error
}

type ProviderConfig struct {
	Kind  string
	URL   string
	Token string
}

func NewProvider(channel string, cfg ProviderConfig) Provider {
	switch cfg.Kind {
	case "", "stub", "log":
		return logProvider{channel: channel}
	case "noop":
		return noopProvider{}
	case "webhook":
		if cfg.URL == "" {
			return logProvider{channel: channel}
		}
		return webhookProvider{channel: channel, url: cfg.URL, token: cfg.Token}
	default:
		if strings.HasPrefix(cfg.Kind, "http://") || strings.HasPrefix(cfg.Kind, "https://") {
			return webhookProvider{channel: channel, url: cfg.Kind, token: cfg.Token}
		}
		return logProvider{channel: channel}
	}
}

type logProvider struct {
	channel string
}

func (p logProvider) Send(ctx context.Context, title, body string) error {
	log.Printf("send %s: %s - %s", p.channel, title, body)
	return nil
}

type noopProvider struct{}

func (noopProvider) Send(ctx context.Context, title, body string) error {
	return nil
}

type webhookProvider struct {
	channel string
	url     string
	token   string
}

func (p webhookProvider) Send(ctx context.Context, title, body string) error {
	payload := map[string]string{
		"channel": p.channel,
		"title":   title,
		"body":    body,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New("provider rejected request")
	}
	return nil
}
