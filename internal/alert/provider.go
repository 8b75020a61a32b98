package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// PushCredentials identify the push-provider endpoint and key.
type PushCredentials struct {
	APIURL  string
	SendKey string
}

// Notifier delivers a rendered message to an external push provider.
// accepted reports whether the provider acknowledged the message; a
// transport error yields accepted=false and the error.
type Notifier interface {
	Send(ctx context.Context, creds PushCredentials, title, body string) (accepted bool, err error)
}

// PushNotifier talks to a ServerChan-compatible push endpoint:
// a form-encoded POST to <api>/<key>.send, acknowledged with a JSON
// body whose code field is zero on success.
type PushNotifier struct {
	client *http.Client
	logger *zap.Logger
}

// NewPushNotifier creates a notifier with a bounded request timeout.
func NewPushNotifier(logger *zap.Logger) *PushNotifier {
	return &PushNotifier{
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

type pushResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (n *PushNotifier) Send(ctx context.Context, creds PushCredentials, title, body string) (bool, error) {
	endpoint := fmt.Sprintf("%s/%s.send", strings.TrimRight(creds.APIURL, "/"), creds.SendKey)
	form := url.Values{}
	form.Set("title", title)
	form.Set("desp", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("push request: %w", err)
	}
	defer resp.Body.Close()

	var parsed pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false, fmt.Errorf("decode push response: %w", err)
	}
	if parsed.Code != 0 {
		n.logger.Warn("push provider rejected message",
			zap.Int("code", parsed.Code), zap.String("message", parsed.Message))
		return false, nil
	}
	return true, nil
}
