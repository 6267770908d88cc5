package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AuthError reports a failed login. It is fatal: the engine raises it
// before any data access happens.
type AuthError struct {
	PortalURL string
	Username  string
	Reason    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("login to %s as %s failed: %s", e.PortalURL, e.Username, e.Reason)
}

// Session is an authenticated handle on a portal. Sessions are reused by
// the Resolver until their token expires.
type Session struct {
	PortalURL string
	Username  string

	token   string
	expires time.Time
}

// Token returns the session token, or empty for anonymous access.
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	return s.token
}

// live reports whether the token is still usable, with a safety margin so a
// token never expires mid-run.
func (s *Session) live() bool {
	return s.token != "" && time.Until(s.expires) > time.Minute
}

// Resolver turns a CredentialSpec into an authenticated Session. It caches
// sessions per portal identity; callers own the Resolver's lifetime, so the
// cache is explicit state rather than a hidden global.
type Resolver struct {
	// Profiles is consulted for CredentialProfile specs.
	Profiles *ProfileStore
	// Client is the HTTP client used for token requests.
	Client *http.Client
	// Log receives login events.
	Log *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewResolver creates a Resolver with a bounded-timeout HTTP client.
func NewResolver(profiles *ProfileStore, log *zap.Logger) *Resolver {
	return &Resolver{
		Profiles: profiles,
		Client:   &http.Client{Timeout: 30 * time.Second},
		Log:      log,
		sessions: make(map[string]*Session),
	}
}

// Resolve validates the spec, resolves profiles to logins, and returns a
// live session, logging in only when the cache has none.
func (r *Resolver) Resolve(ctx context.Context, spec CredentialSpec) (*Session, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	login := spec
	if spec.Kind == CredentialProfile {
		if r.Profiles == nil {
			return nil, fmt.Errorf("profile %q requested but no profile store configured", spec.Profile)
		}
		stored, err := r.Profiles.Lookup(spec.Profile)
		if err != nil {
			return nil, err
		}
		login = LoginCredentials(stored.PortalURL, stored.Username, stored.Password)
		if err := login.Validate(); err != nil {
			return nil, fmt.Errorf("profile %q is incomplete: %w", spec.Profile, err)
		}
	}

	cacheKey := login.PortalURL + "|" + login.Username

	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.sessions[cacheKey]; ok && sess.live() {
		return sess, nil
	}

	sess, err := r.login(ctx, login)
	if err != nil {
		return nil, err
	}
	r.sessions[cacheKey] = sess

	if r.Log != nil {
		r.Log.Debug("Portal login succeeded",
			zap.String("portal", sess.PortalURL),
			zap.String("username", sess.Username))
	}
	return sess, nil
}

// login exchanges a portal login for a token via generateToken.
func (r *Resolver) login(ctx context.Context, c CredentialSpec) (*Session, error) {
	endpoint := strings.TrimRight(c.PortalURL, "/") + "/sharing/rest/generateToken"

	form := url.Values{}
	form.Set("username", c.Username)
	form.Set("password", c.Password)
	form.Set("referer", "tablesync")
	form.Set("expiration", "60")
	form.Set("f", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, &AuthError{PortalURL: c.PortalURL, Username: c.Username, Reason: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthError{PortalURL: c.PortalURL, Username: c.Username, Reason: err.Error()}
	}

	var parsed struct {
		Token   string `json:"token"`
		Expires int64  `json:"expires"`
		Error   *struct {
			Message string   `json:"message"`
			Details []string `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &AuthError{PortalURL: c.PortalURL, Username: c.Username, Reason: "unexpected token response"}
	}
	if parsed.Error != nil || parsed.Token == "" {
		reason := "token request rejected"
		if parsed.Error != nil && parsed.Error.Message != "" {
			reason = parsed.Error.Message
		}
		return nil, &AuthError{PortalURL: c.PortalURL, Username: c.Username, Reason: reason}
	}

	return &Session{
		PortalURL: c.PortalURL,
		Username:  c.Username,
		token:     parsed.Token,
		// expires is epoch milliseconds
		expires: time.UnixMilli(parsed.Expires),
	}, nil
}
