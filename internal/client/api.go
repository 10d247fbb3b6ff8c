// Package client - HTTP/WebSocket клиент API chatify для терминального клиента.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chatify/internal/model"
)

// APIError - ошибка, которую вернул сервер; Message показывается пользователю как есть.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// API - неаутентифицированная точка входа: регистрация и вход.
type API struct {
	baseURL    string
	httpClient *http.Client
}

func NewAPI(baseURL string) *API {
	return &API{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type authResponse struct {
	Token string          `json:"token"`
	User  model.Principal `json:"user"`
}

// Register создаёт аккаунт; сессия возвращается только при успехе.
func (a *API) Register(ctx context.Context, username, email, password string) (*Session, error) {
	var res authResponse
	body := map[string]string{"username": username, "email": email, "password": password}
	if err := a.do(ctx, http.MethodPost, "/api/auth/register", "", body, &res); err != nil {
		return nil, err
	}
	return NewSession(a, res.Token, res.User), nil
}

func (a *API) Login(ctx context.Context, email, password string) (*Session, error) {
	var res authResponse
	body := map[string]string{"email": email, "password": password}
	if err := a.do(ctx, http.MethodPost, "/api/auth/login", "", body, &res); err != nil {
		return nil, err
	}
	return NewSession(a, res.Token, res.User), nil
}

// do отправляет JSON и декодирует ответ в out (если не nil). Ответ не 2xx превращается в *APIError.
func (a *API) do(ctx context.Context, method, path, token string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = fmt.Sprintf("%s %s: %s", method, path, resp.Status)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// wsURL - адрес подписки: http(s) -> ws(s). Токен передаётся заголовком, не в URL.
func (a *API) wsURL() (string, error) {
	u, err := url.Parse(a.baseURL + "/ws")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}
