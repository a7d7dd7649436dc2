// Package google resolves Google OAuth2 credentials into verified external
// identities for [authcore.Engine.LoginGoogle].
//
// The package owns the OAuth2 dance only: building the consent URL,
// exchanging the authorization code, and fetching the userinfo record.
// Account creation and token minting stay in the engine.
package google

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/castlefell/authcore"
)

// ErrIdentityUnverified is returned when Google reports the identity's email
// as unverified. Such identities never reach the engine: a Google account is
// created pre-confirmed, so an unverified email would bypass verification.
var ErrIdentityUnverified = errors.New("google identity email unverified")

// ErrExchangeFailed wraps authorization code exchange failures.
var ErrExchangeFailed = errors.New("google code exchange failed")

// Config identifies the OAuth2 client.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Verifier turns Google OAuth2 authorization codes into verified
// [authcore.ExternalIdentity] values. It is immutable and safe for
// concurrent use.
type Verifier struct {
	oauth *oauth2.Config
}

// New returns a [Verifier] for the given OAuth2 client.
func New(cfg Config) (*Verifier, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("google client credentials required")
	}

	return &Verifier{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oauth2api.UserinfoEmailScope, oauth2api.UserinfoProfileScope},
			Endpoint:     googleoauth.Endpoint,
		},
	}, nil
}

// AuthURL returns the consent page URL for the given anti-forgery state.
func (v *Verifier) AuthURL(state string) string {
	return v.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for the identity behind it.
func (v *Verifier) Exchange(ctx context.Context, code string) (authcore.ExternalIdentity, error) {
	tok, err := v.oauth.Exchange(ctx, code)
	if err != nil {
		return authcore.ExternalIdentity{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	return v.Identity(ctx, tok)
}

// Identity fetches the userinfo record behind an already obtained token and
// maps it to an [authcore.ExternalIdentity].
func (v *Verifier) Identity(ctx context.Context, tok *oauth2.Token) (authcore.ExternalIdentity, error) {
	svc, err := oauth2api.NewService(ctx,
		option.WithTokenSource(v.oauth.TokenSource(ctx, tok)))
	if err != nil {
		return authcore.ExternalIdentity{}, err
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return authcore.ExternalIdentity{}, err
	}

	return identityFromUserinfo(info)
}

func identityFromUserinfo(info *oauth2api.Userinfo) (authcore.ExternalIdentity, error) {
	if info == nil || info.Id == "" || info.Email == "" {
		return authcore.ExternalIdentity{}, errors.New("incomplete userinfo record")
	}
	if info.VerifiedEmail == nil || !*info.VerifiedEmail {
		return authcore.ExternalIdentity{}, ErrIdentityUnverified
	}

	return authcore.ExternalIdentity{
		ID:          info.Id,
		Email:       info.Email,
		DisplayName: info.Name,
	}, nil
}
