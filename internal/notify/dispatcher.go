package notify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/flowguard/flowguard/internal/approval"
)

// Dispatcher fans an approval request out to every configured webhook
// channel. The coordinator already delivers in the background, so
// channels are tried in parallel and their failures joined.
type Dispatcher struct {
	channels []*Webhook
}

// NewDispatcher builds one Webhook per usable config. Returns nil when
// nothing is configured; callers nil-check and fall back to the log
// notifier.
func NewDispatcher(cfgs []Config, logger *zap.Logger) *Dispatcher {
	var channels []*Webhook
	for _, cfg := range cfgs {
		if cfg.URL == "" {
			continue
		}
		channels = append(channels, NewWebhook(cfg, logger))
	}
	if len(channels) == 0 {
		return nil
	}
	return &Dispatcher{channels: channels}
}

// NotifyApprovers delivers the request to all channels. One failed
// channel does not stop the others.
func (d *Dispatcher) NotifyApprovers(ctx context.Context, req approval.Request) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, ch := range d.channels {
		wg.Add(1)
		go func(ch *Webhook) {
			defer wg.Done()
			if err := ch.NotifyApprovers(ctx, req); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(ch)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// governanceNotifications parses just the notifications section of the
// governance config file.
type governanceNotifications struct {
	Notifications []Config `yaml:"notifications"`
}

// LoadConfigs reads webhook channel configs from the notifications
// section of the governance YAML. Empty path falls back to
// ~/.flowguard/governance.yaml. Channels are optional, so a missing or
// unreadable file yields nil.
func LoadConfigs(path string) []Config {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(home, ".flowguard", "governance.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var gn governanceNotifications
	if err := yaml.Unmarshal(data, &gn); err != nil {
		return nil
	}
	return gn.Notifications
}
