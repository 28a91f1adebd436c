package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// StepIDWebhook — шаг уведомления внешнего сервиса.
	StepIDWebhook = "webhook"

	defaultWebhookTimeout = 30 * time.Second
	maxWebhookBody        = 4 * 1024
)

// webhookParams — параметры webhook шага.
type webhookParams struct {
	URL     string            `json:"url" validate:"required,http_url"`
	Message string            `json:"message"`
	Headers map[string]string `json:"headers"`
}

// webhookPayload — тело уведомления.
type webhookPayload struct {
	Product     string `json:"product"`
	ProcedureID string `json:"procedureId"`
	Message     string `json:"message"`
}

// WebhookStep — POST JSON-уведомления на заданный URL.
//
// Параметры:
//
//	{
//	    "url": "https://chat.example.com/hooks/release",
//	    "message": "FE integration finished",
//	    "headers": {"Authorization": "Bearer xxx"}
//	}
//
// Любой ответ кроме 2xx считается ошибкой.
type WebhookStep struct {
	client *http.Client
}

// NewWebhookStep создаёт WebhookStep. client == nil — клиент с таймаутом 30s.
func NewWebhookStep(client *http.Client) *WebhookStep {
	if client == nil {
		client = &http.Client{Timeout: defaultWebhookTimeout}
	}
	return &WebhookStep{client: client}
}

// ID возвращает идентификатор шага.
func (s *WebhookStep) ID() string {
	return StepIDWebhook
}

// Validate проверяет url.
func (s *WebhookStep) Validate(req *Request) error {
	_, err := s.parseParams(req)
	return err
}

func (s *WebhookStep) parseParams(req *Request) (*webhookParams, error) {
	var p webhookParams
	if err := decodeParams(StepIDWebhook, req.Params, &p); err != nil {
		return nil, err
	}
	if err := validateStruct(StepIDWebhook, &p); err != nil {
		return nil, err
	}
	if p.Message == "" {
		p.Message = fmt.Sprintf("Procedure %s for %s", req.ProcedureID, req.Product)
	}
	return &p, nil
}

// Execute отправляет уведомление.
func (s *WebhookStep) Execute(ctx context.Context, req *Request) error {
	p, err := s.parseParams(req)
	if err != nil {
		return err
	}

	body, err := json.Marshal(webhookPayload{
		Product:     req.Product,
		ProcedureID: req.ProcedureID,
		Message:     p.Message,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for key, value := range p.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
		}
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxWebhookBody))
		return &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(data)}
	}

	return req.Logf(ctx, "Webhook delivered: %s (%d)", p.URL, resp.StatusCode)
}

// HTTPError — не-2xx ответ webhook.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

// Error реализует интерфейс error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}
