// Package auth реализует хранилище состояния сессии пользователя витрины.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/api"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/storage"
)

const logoutTimeout = 5 * time.Second

// Store хранит текущую сессию: пользователя, токен и признак авторизации.
type Store struct {
	mu sync.Mutex

	client  *api.Client
	storage *storage.Storage
	logger  *zap.Logger

	user          *model.User
	token         string
	authenticated bool
	loading       bool
	errMsg        string

	onChange func(authenticated bool)
}

// NewStore создаёт хранилище сессии с указанным клиентом API и хранилищем токена.
func NewStore(client *api.Client, st *storage.Storage, logger *zap.Logger) *Store {
	return &Store{
		client:  client,
		storage: st,
		logger:  logger,
	}
}

// SetOnChange задаёт обработчик смены статуса авторизации. Вызывается
// после успешного входа, восстановления сессии и выхода.
func (s *Store) SetOnChange(fn func(authenticated bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Init восстанавливает сессию из сохранённого токена. Единственный путь,
// на котором любая ошибка трактуется как недействительная сессия: токен
// удаляется и пользователь остаётся неавторизованным.
func (s *Store) Init(ctx context.Context) error {
	token, err := s.storage.Token()
	if err != nil {
		s.logger.Warn("read stored token", zap.Error(err))
		return nil
	}
	if token == "" {
		return nil
	}

	var user model.User
	if err := s.client.Get(ctx, "/api/auth/me", &user, true); err != nil {
		s.logger.Info("stored token rejected, clearing session", zap.Error(err))
		if rmErr := s.storage.RemoveToken(); rmErr != nil {
			s.logger.Warn("remove stored token", zap.Error(rmErr))
		}
		return nil
	}

	s.mu.Lock()
	s.user = &user
	s.token = token
	s.authenticated = true
	s.errMsg = ""
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(true)
	}
	return nil
}

// Login выполняет вход пользователя и сохраняет токен сессии.
func (s *Store) Login(ctx context.Context, creds model.Credentials) error {
	if creds.Username == "" || creds.Password == "" {
		return s.fail("username and password are required", nil)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	var resp model.LoginResponse
	if err := s.client.Post(ctx, "/api/auth/login", creds, &resp, false); err != nil {
		return s.fail("login failed", err)
	}

	if err := s.storage.SetToken(resp.AccessToken); err != nil {
		// Сессия остаётся рабочей в памяти, но не переживёт перезапуск.
		s.logger.Warn("persist token", zap.Error(err))
	}

	s.mu.Lock()
	user := resp.User
	s.user = &user
	s.token = resp.AccessToken
	s.authenticated = true
	s.errMsg = ""
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(true)
	}
	return nil
}

// Register создаёт учётную запись и сразу выполняет вход с теми же данными.
// При неудачном входе регистрация не откатывается, наружу уходит ошибка входа.
func (s *Store) Register(ctx context.Context, creds model.RegisterCredentials) error {
	if creds.Username == "" || creds.Email == "" || creds.Password == "" {
		return s.fail("username, email and password are required", nil)
	}

	s.setLoading(true)

	var user model.User
	if err := s.client.Post(ctx, "/api/auth/register", creds, &user, false); err != nil {
		s.setLoading(false)
		return s.fail("registration failed", err)
	}

	s.setLoading(false)

	return s.Login(ctx, model.Credentials{
		Username: creds.Username,
		Password: creds.Password,
	})
}

// Logout очищает сессию немедленно. Серверная инвалидация токена уходит
// в фоне, её неудача пишется в журнал и не всплывает наружу.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	token := s.token
	s.user = nil
	s.token = ""
	s.authenticated = false
	s.errMsg = ""
	fn := s.onChange
	s.mu.Unlock()

	if err := s.storage.RemoveToken(); err != nil {
		s.logger.Warn("remove stored token", zap.Error(err))
	}

	if token != "" {
		client := s.client.WithToken(token)
		logger := s.logger
		go func() {
			bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutTimeout)
			defer cancel()

			if err := client.Post(bgCtx, "/api/auth/logout", struct{}{}, nil, true); err != nil {
				logger.Warn("server-side logout failed", zap.Error(err))
			}
		}()
	}

	if fn != nil {
		fn(false)
	}
}

// RefreshUser перечитывает профиль пользователя. Неудача записывается как
// ошибка, но признак авторизации не сбрасывается: сессия считается живой.
func (s *Store) RefreshUser(ctx context.Context) error {
	var user model.User
	if err := s.client.Get(ctx, "/api/auth/me", &user, true); err != nil {
		return s.fail("failed to refresh user data", err)
	}

	s.mu.Lock()
	s.user = &user
	s.errMsg = ""
	s.mu.Unlock()
	return nil
}

// User возвращает текущего пользователя сессии.
func (s *Store) User() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Token возвращает токен текущей сессии.
func (s *Store) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

// IsAuthenticated сообщает, авторизована ли текущая сессия.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// Loading сообщает, выполняется ли сейчас сетевая операция.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err возвращает сообщение последней ошибки.
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	if v {
		s.errMsg = ""
	}
	s.mu.Unlock()
}

// fail записывает сообщение ошибки в состояние и возвращает её вызывающему.
func (s *Store) fail(fallback string, err error) error {
	msg := fallback

	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		msg = apiErr.Detail
	}

	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()

	if err != nil {
		return err
	}
	return errors.New(msg)
}
