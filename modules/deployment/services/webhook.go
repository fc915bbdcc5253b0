package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/labx-platform/testbed/modules/deployment/domain/entities/deployment"
)

// Notifier is told about every deployment that reached a terminal status.
type Notifier interface {
	Notify(ctx context.Context, url string, d deployment.Deployment) error
}

type WebhookEvent struct {
	Event      string                `json:"event"`
	Deployment deployment.Deployment `json:"deployment"`
	SentAt     time.Time             `json:"sentAt"`
}

// retryLogAdaptor routes retryablehttp's logging to logrus at debug level.
type retryLogAdaptor struct {
	log *logrus.Entry
}

func (a retryLogAdaptor) Printf(format string, args ...any) {
	a.log.Debugf(format, args...)
}

type WebhookNotifier struct {
	client *retryablehttp.Client
}

func NewWebhookNotifier(logger *logrus.Logger, retries int) *WebhookNotifier {
	client := retryablehttp.NewClient()
	client.RetryMax = retries
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = retryLogAdaptor{log: logger.WithField("component", "deployment-webhook")}
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return &WebhookNotifier{client: client}
}

func (n *WebhookNotifier) Notify(ctx context.Context, url string, d deployment.Deployment) error {
	body, err := json.Marshal(WebhookEvent{Event: "deployment." + string(d.Status), Deployment: d, SentAt: time.Now().UTC()})
	if err != nil {
		return errors.Wrap(err, "marshal webhook")
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post webhook")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
