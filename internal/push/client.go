package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chatify/internal/logger"
)

// Client вызывает микросервис пуш-уведомлений. Если URL пустой - методы no-op.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

// NewClient создаёт клиент. baseURL пустой - пуши отключены.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		return &Client{}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithSecret задаёт X-Internal-Secret для запросов к push-сервису.
func (c *Client) WithSecret(secret string) *Client {
	c.secret = secret
	return c
}

// Enabled - настроен ли push-сервис.
func (c *Client) Enabled() bool { return c.baseURL != "" }

// Subscription - подписка из браузера (PushSubscription.toJSON()).
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// SubscribeRequest - тело запроса подписки. Подписки хранятся по email пользователя.
type SubscribeRequest struct {
	Email        string       `json:"email"`
	Subscription Subscription `json:"subscription"`
}

// UnsubscribeRequest - удаление подписки по endpoint.
type UnsubscribeRequest struct {
	Email    string `json:"email"`
	Endpoint string `json:"endpoint"`
}

// NotifyRequest - запрос на отправку уведомления всем подпискам email.
type NotifyRequest struct {
	Email string            `json:"email"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

func (c *Client) Subscribe(ctx context.Context, email string, sub Subscription) error {
	return c.call(ctx, http.MethodPost, "/api/subscribe", SubscribeRequest{Email: email, Subscription: sub})
}

func (c *Client) Unsubscribe(ctx context.Context, email, endpoint string) error {
	return c.call(ctx, http.MethodDelete, "/api/subscribe", UnsubscribeRequest{Email: email, Endpoint: endpoint})
}

// Notify отправляет пуш пользователю (вызывается при новом сообщении). Ошибки только логируются.
func (c *Client) Notify(ctx context.Context, email, title, body string, data map[string]string) {
	if err := c.call(ctx, http.MethodPost, "/api/notify", NotifyRequest{Email: email, Title: title, Body: body, Data: data}); err != nil {
		logger.Errorf("push notify %s: %v", email, err)
	}
}

// call отправляет JSON и ждёт 204 No Content.
func (c *Client) call(ctx context.Context, method, path string, payload any) error {
	if c.baseURL == "" {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set("X-Internal-Secret", c.secret)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("push %s %s: %d", method, path, resp.StatusCode)
	}
	return nil
}
