// Package service contains the application services: the auth gateway over the identity
// REST API and the task store client.
package service

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/taskkeeper/internal/credstore"
	"github.com/and161185/taskkeeper/internal/errs"
	"github.com/and161185/taskkeeper/internal/model"
	"github.com/and161185/taskkeeper/internal/transport"
)

// Default endpoints of the identity service.
const (
	DefaultIdentityURL    = "https://identitytoolkit.googleapis.com/v1"
	DefaultSecureTokenURL = "https://securetoken.googleapis.com/v1"
)

// AuthService signs users in and out and reports the local session.
type AuthService interface {
	// SignUp creates an account and stores the resulting credential.
	SignUp(ctx context.Context, email, password, displayName string) (model.Credential, error)
	// SignIn authenticates and stores the resulting credential.
	SignIn(ctx context.Context, email, password string) (model.Credential, error)
	// Refresh exchanges the stored refresh token for a new id token.
	Refresh(ctx context.Context) (model.Credential, error)
	// IsAuthenticated reports the locally stored session without contacting the server.
	IsAuthenticated(ctx context.Context) Session
	// SignOut forgets the stored credential.
	SignOut(ctx context.Context) error
}

// Session is the local view of the signed-in state.
type Session struct {
	Authenticated bool
	Credential    model.Credential
	// Expired is set when the token's exp claim has passed. The token may still be
	// accepted; the server decides.
	Expired bool
}

// AuthConfig locates the identity endpoints.
type AuthConfig struct {
	IdentityURL    string
	SecureTokenURL string
	APIKey         string
}

type AuthServiceImpl struct {
	cfg   AuthConfig
	http  *http.Client
	creds credstore.Store
	log   *zap.Logger
	now   func() time.Time
}

var _ AuthService = (*AuthServiceImpl)(nil)

// NewAuthService constructs the gateway.
func NewAuthService(cfg AuthConfig, client *http.Client, creds credstore.Store, log *zap.Logger) *AuthServiceImpl {
	if cfg.IdentityURL == "" {
		cfg.IdentityURL = DefaultIdentityURL
	}
	if cfg.SecureTokenURL == "" {
		cfg.SecureTokenURL = DefaultSecureTokenURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServiceImpl{cfg: cfg, http: client, creds: creds, log: log, now: time.Now}
}

type accountRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	DisplayName       string `json:"displayName,omitempty"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type accountResponse struct {
	IDToken      string `json:"idToken"`
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
}

func (s *AuthServiceImpl) endpoint(base, method string) string {
	u := strings.TrimRight(base, "/") + "/" + method
	if s.cfg.APIKey != "" {
		u += "?" + url.Values{"key": {s.cfg.APIKey}}.Encode()
	}
	return u
}

// SignUp registers email/password with an optional display name.
func (s *AuthServiceImpl) SignUp(ctx context.Context, email, password, displayName string) (model.Credential, error) {
	return s.account(ctx, "sign up", "accounts:signUp", "sign up failed", accountRequest{
		Email: email, Password: password, DisplayName: displayName, ReturnSecureToken: true,
	})
}

// SignIn authenticates email/password.
func (s *AuthServiceImpl) SignIn(ctx context.Context, email, password string) (model.Credential, error) {
	return s.account(ctx, "sign in", "accounts:signInWithPassword", "sign in failed", accountRequest{
		Email: email, Password: password, ReturnSecureToken: true,
	})
}

func (s *AuthServiceImpl) account(ctx context.Context, op, method, fallback string, req accountRequest) (model.Credential, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return model.Credential{}, errs.Validation("empty email/password")
	}
	var resp accountResponse
	err := transport.DoJSON(ctx, s.http, transport.Call{
		Op: op, Method: http.MethodPost, URL: s.endpoint(s.cfg.IdentityURL, method),
		Body: req, Fallback: fallback,
	}, &resp)
	if err != nil {
		s.log.Info(op+" rejected", zap.String("reason", errs.Message(err)))
		return model.Credential{}, err
	}
	if resp.IDToken == "" || resp.LocalID == "" {
		return model.Credential{}, &errs.RemoteError{Op: op, Status: http.StatusOK, Message: fallback}
	}
	cred := model.Credential{
		Token:        resp.IDToken,
		UserID:       resp.LocalID,
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
		RefreshToken: resp.RefreshToken,
	}
	if cred.Email == "" {
		cred.Email = req.Email
	}
	return s.store(ctx, op, cred)
}

func (s *AuthServiceImpl) store(ctx context.Context, op string, cred model.Credential) (model.Credential, error) {
	if err := s.creds.Save(ctx, cred); err != nil {
		return model.Credential{}, err
	}
	cred.ExpiresAt = credstore.TokenExpiry(cred.Token)
	s.log.Info(op+" ok", zap.String("user_id", cred.UserID))
	return cred, nil
}

// Refresh exchanges the stored refresh token. The stored profile fields are kept.
func (s *AuthServiceImpl) Refresh(ctx context.Context) (model.Credential, error) {
	const op = "refresh"
	cur, err := s.creds.Load(ctx)
	if err != nil {
		return model.Credential{}, err
	}
	if cur.RefreshToken == "" {
		return model.Credential{}, errs.Validation("no refresh token stored, sign in again")
	}
	var resp refreshResponse
	err = transport.DoJSON(ctx, s.http, transport.Call{
		Op: op, Method: http.MethodPost, URL: s.endpoint(s.cfg.SecureTokenURL, "token"),
		Body:     map[string]string{"grant_type": "refresh_token", "refresh_token": cur.RefreshToken},
		Fallback: "token refresh failed",
	}, &resp)
	if err != nil {
		// a revoked refresh token comes back as 400
		var re *errs.RemoteError
		if errors.As(err, &re) && re.Status == http.StatusBadRequest {
			return model.Credential{}, errors.Join(errs.ErrUnauthenticated, err)
		}
		return model.Credential{}, err
	}
	if resp.IDToken == "" {
		return model.Credential{}, &errs.RemoteError{Op: op, Status: http.StatusOK, Message: "token refresh failed"}
	}
	if resp.UserID != "" && resp.UserID != cur.UserID {
		return model.Credential{}, &errs.RemoteError{Op: op, Status: http.StatusOK, Message: "refresh returned another user"}
	}
	cur.Token = resp.IDToken
	if resp.RefreshToken != "" {
		cur.RefreshToken = resp.RefreshToken
	}
	return s.store(ctx, op, cur)
}

// IsAuthenticated is a local capability check: a token and a user id are stored.
func (s *AuthServiceImpl) IsAuthenticated(ctx context.Context) Session {
	cred, err := s.creds.Load(ctx)
	if err != nil {
		if !errors.Is(err, errs.ErrUnauthenticated) {
			s.log.Warn("credential load", zap.Error(err))
		}
		return Session{}
	}
	return Session{
		Authenticated: true,
		Credential:    cred,
		Expired:       !cred.ExpiresAt.IsZero() && !s.now().Before(cred.ExpiresAt),
	}
}

// SignOut clears the stored credential.
func (s *AuthServiceImpl) SignOut(ctx context.Context) error {
	if err := s.creds.Clear(ctx); err != nil {
		return err
	}
	s.log.Info("signed out")
	return nil
}
