// Package api предоставляет HTTP-клиент для обращения к бэкенду витрины.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TokenSource выдаёт текущий токен сессии для подстановки в запросы.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken — источник с фиксированным токеном.
type StaticToken string

// Token возвращает фиксированный токен.
func (t StaticToken) Token() (string, error) {
	return string(t), nil
}

// Error описывает ошибку вызова API. StatusCode равен нулю, когда ответ
// от сервера не был получен вовсе (транспортная ошибка).
type Error struct {
	StatusCode int
	Detail     string
	Payload    map[string]any
}

// Error возвращает текстовое описание ошибки.
func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("api: network error: %s", e.Detail)
	}
	return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Detail)
}

// IsTransportError сообщает, вызвана ли ошибка недоступностью сервера,
// а не отказом приложения.
func IsTransportError(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == 0
}

// Client инкапсулирует HTTP-взаимодействие с бэкендом витрины.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

// NewClient создаёт HTTP-клиент для указанного адреса. Источник токенов
// может быть nil, тогда запросы всегда уходят без авторизации.
func NewClient(baseURL string, tokens TokenSource) *Client {
	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		tokens: tokens,
	}
}

// WithToken возвращает копию клиента с фиксированным токеном. Используется
// для вызовов, которые должны пережить очистку хранилища токенов.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.tokens = StaticToken(token)
	return &clone
}

// Get выполняет GET-запрос и декодирует ответ в out, если он задан.
func (c *Client) Get(ctx context.Context, path string, out any, requiresAuth bool) error {
	return c.do(ctx, http.MethodGet, path, nil, out, requiresAuth)
}

// Post выполняет POST-запрос с JSON-телом и декодирует ответ в out, если он задан.
func (c *Client) Post(ctx context.Context, path string, body, out any, requiresAuth bool) error {
	return c.do(ctx, http.MethodPost, path, body, out, requiresAuth)
}

// Put выполняет PUT-запрос с JSON-телом и декодирует ответ в out, если он задан.
func (c *Client) Put(ctx context.Context, path string, body, out any, requiresAuth bool) error {
	return c.do(ctx, http.MethodPut, path, body, out, requiresAuth)
}

// Delete выполняет DELETE-запрос и декодирует ответ в out, если он задан.
func (c *Client) Delete(ctx context.Context, path string, out any, requiresAuth bool) error {
	return c.do(ctx, http.MethodDelete, path, nil, out, requiresAuth)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, requiresAuth bool) error {
	if c == nil || c.baseURL == "" {
		return &Error{StatusCode: 0, Detail: "client not configured"}
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	// Отсутствие токена не ошибка: запрос уходит без авторизации,
	// и сервер сам ответит 401, если она обязательна.
	if requiresAuth && c.tokens != nil {
		if token, tokenErr := c.tokens.Token(); tokenErr == nil && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{StatusCode: 0, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{StatusCode: 0, Detail: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(resp.StatusCode, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// newStatusError строит структурную ошибку из ответа сервера. Описание
// берётся из поля detail либо error тела, иначе из статусной строки HTTP.
func newStatusError(statusCode int, body []byte) *Error {
	payload := map[string]any{}
	_ = json.Unmarshal(body, &payload)

	detail := http.StatusText(statusCode)
	if v, ok := payload["detail"].(string); ok && v != "" {
		detail = v
	} else if v, ok := payload["error"].(string); ok && v != "" {
		detail = v
	}

	return &Error{
		StatusCode: statusCode,
		Detail:     detail,
		Payload:    payload,
	}
}
