package credential

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Refresher is the external collaborator told about expired credentials.
// Refresh returns once a retry may succeed, or with the reason it cannot.
type Refresher interface {
	Refresh(ctx context.Context, connection string, cause error) error
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, connection string, cause error) error

func (f RefresherFunc) Refresh(ctx context.Context, connection string, cause error) error {
	return f(ctx, connection, cause)
}

// OAuthEndpoint describes a system's OAuth server and where its tokens live
// in the connection values.
type OAuthEndpoint struct {
	AuthURL         string
	TokenURL        string
	Scopes          []string
	ClientIDKey     string
	ClientSecretKey string
	AccessTokenKey  string
	RefreshTokenKey string
}

// OAuthRefresher exchanges refresh tokens and rotates the new access token
// into the store. Concurrent refreshes of one connection share a single
// token request.
type OAuthRefresher struct {
	store  *Store
	logger *zap.Logger

	// HTTPClient, when set, is used for token requests.
	HTTPClient *http.Client

	mu        sync.RWMutex
	endpoints map[string]OAuthEndpoint
	group     singleflight.Group
}

// NewOAuthRefresher creates a refresher over store.
func NewOAuthRefresher(store *Store, logger *zap.Logger) *OAuthRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuthRefresher{
		store:     store,
		logger:    logger,
		endpoints: make(map[string]OAuthEndpoint),
	}
}

// Register sets the OAuth endpoint for every connection of system.
func (r *OAuthRefresher) Register(system string, ep OAuthEndpoint) {
	r.mu.Lock()
	r.endpoints[system] = ep
	r.mu.Unlock()
}

func (r *OAuthRefresher) Refresh(ctx context.Context, connection string, cause error) error {
	_, err, shared := r.group.Do(connection, func() (any, error) {
		return nil, r.refresh(ctx, connection)
	})
	r.logger.Info("credential refresh",
		zap.String("connection", connection),
		zap.Bool("shared", shared),
		zap.NamedError("cause", cause),
		zap.Error(err),
	)
	return err
}

func (r *OAuthRefresher) refresh(ctx context.Context, connection string) error {
	cred, ok := r.store.Get(connection)
	if !ok {
		return fmt.Errorf("connection %q not found", connection)
	}
	r.mu.RLock()
	ep, ok := r.endpoints[cred.System]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("system %q does not support token refresh", cred.System)
	}

	refreshToken := cred.Value(ep.RefreshTokenKey)
	if refreshToken == "" {
		return fmt.Errorf("connection %q has no refresh token", connection)
	}

	cfg := oauth2.Config{
		ClientID:     cred.Value(ep.ClientIDKey),
		ClientSecret: cred.Value(ep.ClientSecretKey),
		Endpoint: oauth2.Endpoint{
			AuthURL:  ep.AuthURL,
			TokenURL: ep.TokenURL,
		},
		Scopes: ep.Scopes,
	}
	if r.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.HTTPClient)
	}

	tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return fmt.Errorf("refreshing token: %w", err)
	}

	updates := map[string]string{ep.AccessTokenKey: tok.AccessToken}
	if tok.RefreshToken != "" && tok.RefreshToken != refreshToken {
		updates[ep.RefreshTokenKey] = tok.RefreshToken
	}
	return r.store.Rotate(connection, updates)
}
