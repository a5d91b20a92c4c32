// Package events sends committed mutations to observers other than the
// audit table.
package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/ports"
)

const defaultWebhookTimeout = 10 * time.Second

// Payload is the JSON body a webhook receives for one mutation.
type Payload struct {
	Collection string    `json:"collection"`
	DocumentID string    `json:"documentId,omitempty"`
	Action     string    `json:"action"`
	Actor      string    `json:"actor,omitempty"`
	Trusted    bool      `json:"trusted"`
	Affected   int64     `json:"affected"`
	At         time.Time `json:"at"`
}

// WebhookNotifier POSTs every mutation to url. Bodies are signed with
// HMAC-SHA256 over secret; non-2xx replies are errors.
type WebhookNotifier struct {
	url    string
	secret []byte
	client *http.Client
}

var _ ports.AuditRepository = (*WebhookNotifier)(nil)

// NewWebhookNotifier falls back to a 10s timeout when timeout is not
// positive.
func NewWebhookNotifier(url, secret string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookNotifier{
		url:    url,
		secret: []byte(secret),
		client: &http.Client{Timeout: timeout},
	}
}

// Log sends event with these headers:
//
//	Content-Type:         application/json
//	X-Docgate-Collection: <event.Collection>
//	X-Docgate-Action:     <event.Action>
//	X-Hub-Signature-256:  sha256=<hex-encoded HMAC-SHA256>
func (n *WebhookNotifier) Log(ctx context.Context, event domain.AuditEvent) error {
	payload, err := json.Marshal(Payload{
		Collection: event.Collection,
		DocumentID: event.DocumentID,
		Action:     event.Action,
		Actor:      event.Actor,
		Trusted:    event.Trusted,
		Affected:   event.Affected,
		At:         event.At,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Docgate-Collection", event.Collection)
	req.Header.Set("X-Docgate-Action", event.Action)
	req.Header.Set("X-Hub-Signature-256", "sha256="+n.sign(payload))

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (n *WebhookNotifier) sign(payload []byte) string {
	mac := hmac.New(sha256.New, n.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
