package auth

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/agentmesh/encryption"
	apperrors "github.com/kbukum/agentmesh/errors"
	"github.com/kbukum/agentmesh/httpclient"
	"github.com/kbukum/agentmesh/logger"
)

const (
	deviceCodeGrant       = "urn:ietf:params:oauth:grant-type:device_code"
	defaultPollInterval   = 5 * time.Second
	slowDownIncrement     = 5 * time.Second
	defaultDeviceLifetime = 15 * time.Minute
)

// DevicePrompt is what the user needs to finish signing in elsewhere.
type DevicePrompt struct {
	VerificationURI string
	UserCode        string
	Message         string
	ExpiresAt       time.Time
	CorrelationID   string
}

type deviceCodeResponse struct {
	DeviceCode      string  `json:"device_code"`
	UserCode        string  `json:"user_code"`
	VerificationURI string  `json:"verification_uri"`
	ExpiresIn       seconds `json:"expires_in"`
	Interval        seconds `json:"interval"`
	Message         string  `json:"message"`
	Error           string  `json:"error"`
	ErrorDesc       string  `json:"error_description"`
}

// DeviceCode runs the OAuth device authorization flow for a user at a
// terminal.
type DeviceCode struct {
	deviceURL string
	tokenURL  string
	tenant    string
	clientID  string
	client    *httpclient.Client
	file      *TokenFile
	opts      options
}

func newDeviceCode(cfg Config, client *httpclient.Client, o options) (*DeviceCode, error) {
	base := cfg.AuthorityURL + "/" + cfg.TenantID + "/oauth2/v2.0"
	p := &DeviceCode{
		deviceURL: base + "/devicecode",
		tokenURL:  base + "/token",
		tenant:    cfg.TenantID,
		clientID:  cfg.ClientID,
		client:    client,
		opts:      o,
	}
	if cfg.TokenFile != "" {
		alg, err := encryption.ParseAlgorithm(cfg.TokenFileCipher)
		if err != nil {
			return nil, apperrors.ProviderConfig(string(KindInteractive), err.Error())
		}
		if p.file, err = NewTokenFile(cfg.TokenFile, cfg.TokenFileKey, alg); err != nil {
			return nil, apperrors.ProviderConfig(string(KindInteractive), err.Error())
		}
	}
	return p, nil
}

func (p *DeviceCode) Kind() ProviderKind { return KindInteractive }
func (p *DeviceCode) Identity() string   { return p.tenant + "/" + p.clientID }
func (p *DeviceCode) sealed()            {}

// Acquire starts a device flow, shows the prompt and polls until the user
// finishes, declines, the code expires or ctx is done.
func (p *DeviceCode) Acquire(ctx context.Context, scopes []string) (*Credential, error) {
	if cred := p.loadSaved(scopes); cred != nil {
		return cred, nil
	}
	cred, err := p.signIn(ctx, scopes)
	if err != nil {
		return nil, err
	}
	if p.file != nil {
		if err := p.file.Save(p.Identity(), cred); err != nil {
			p.opts.log.WithError(err).Warn("could not save token file", logger.Fields("path", p.file.Path()))
		}
	}
	return cred, nil
}

// SignOut forgets the saved credential, if any.
func (p *DeviceCode) SignOut() error {
	if p.file == nil {
		return nil
	}
	return p.file.Remove()
}

func (p *DeviceCode) loadSaved(scopes []string) *Credential {
	if p.file == nil {
		return nil
	}
	cred, err := p.file.Load(p.Identity(), scopes, p.opts.now())
	if err != nil {
		p.opts.log.WithError(err).Warn("ignoring unreadable token file", logger.Fields("path", p.file.Path()))
		return nil
	}
	if cred != nil {
		p.opts.log.Debug("using saved credential", logger.Fields("path", p.file.Path()))
	}
	return cred
}

func (p *DeviceCode) signIn(ctx context.Context, scopes []string) (*Credential, error) {
	kind := string(p.Kind())
	dc, err := p.start(ctx, scopes)
	if err != nil {
		return nil, err
	}

	lifetime := time.Duration(dc.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = defaultDeviceLifetime
	}
	deadline := p.opts.now().Add(lifetime)
	interval := time.Duration(dc.Interval) * time.Second
	if interval <= 0 {
		interval = defaultPollInterval
	}

	prompt := DevicePrompt{
		VerificationURI: dc.VerificationURI,
		UserCode:        dc.UserCode,
		Message:         dc.Message,
		ExpiresAt:       deadline,
		CorrelationID:   uuid.NewString(),
	}
	p.show(prompt)
	log := p.opts.log.WithFields(logger.Fields("correlation_id", prompt.CorrelationID))

	for {
		if err := p.opts.sleep(ctx, interval); err != nil {
			return nil, err
		}
		if !p.opts.now().Before(deadline) {
			return nil, apperrors.AuthTimeout(kind)
		}

		tr, err := postForm(ctx, p.client, p.Kind(), p.tokenURL, url.Values{
			"grant_type":  {deviceCodeGrant},
			"client_id":   {p.clientID},
			"device_code": {dc.DeviceCode},
		})
		if err != nil {
			return nil, err
		}

		switch tr.Error {
		case "":
			log.Info("device sign-in completed")
			return tr.credential(p.Kind(), scopes, p.opts.now())
		case "authorization_pending":
			continue
		case "slow_down":
			interval += slowDownIncrement
			log.Debug("identity provider asked to slow down", logger.Fields("interval_s", interval.Seconds()))
		case "expired_token", "code_expired":
			return nil, apperrors.AuthTimeout(kind)
		case "access_denied", "authorization_declined":
			return nil, apperrors.AuthFailure(kind, "the user declined the sign-in request")
		default:
			return nil, apperrors.AuthFailure(kind, tr.describe())
		}
	}
}

func (p *DeviceCode) start(ctx context.Context, scopes []string) (*deviceCodeResponse, error) {
	kind := string(p.Kind())
	resp, err := httpclient.Post[deviceCodeResponse](p.client, ctx, p.deviceURL,
		url.Values{"client_id": {p.clientID}, "scope": {strings.Join(scopes, " ")}}.Encode(),
		httpclient.WithHeader("Content-Type", "application/x-www-form-urlencoded"))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if httpclient.IsConnection(err) || httpclient.IsTimeout(err) || httpclient.IsServerError(err) {
			return nil, apperrors.AuthUnavailable(kind, err)
		}
		return nil, apperrors.AuthFailure(kind, "device code request rejected").WithCause(err)
	}
	dc := &resp.Data
	if dc.Error != "" {
		return nil, apperrors.AuthFailure(kind, dc.Error+": "+dc.ErrorDesc)
	}
	if dc.DeviceCode == "" || dc.UserCode == "" || dc.VerificationURI == "" {
		return nil, apperrors.AuthFailure(kind, "malformed device code response")
	}
	return dc, nil
}

func (p *DeviceCode) show(prompt DevicePrompt) {
	if p.opts.prompt != nil {
		p.opts.prompt(prompt)
		return
	}
	msg := prompt.Message
	if msg == "" {
		msg = "To sign in, open " + prompt.VerificationURI + " and enter the code " + prompt.UserCode
	}
	p.opts.log.Warn(msg, logger.Fields("user_code", prompt.UserCode, "verification_uri", prompt.VerificationURI))
}
