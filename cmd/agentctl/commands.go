package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kbukum/agentmesh/auth"
	"github.com/kbukum/agentmesh/auth/inspect"
	"github.com/kbukum/agentmesh/discovery"
	"github.com/kbukum/agentmesh/logger"
)

var errUsage = errors.New("usage: agentctl [flags] <login|logout|token|list|show|health> [args]")

type cli struct {
	cfg    *Config
	log    *logger.Logger
	stdout io.Writer
	stderr io.Writer
}

func newCLI(cfg *Config, stdout, stderr io.Writer) *cli {
	return &cli{
		cfg:    cfg,
		log:    logger.NewWithWriter(&cfg.Logging, cfg.Name, stderr),
		stdout: stdout,
		stderr: stderr,
	}
}

func (c *cli) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return c.login(ctx)
	case "logout":
		return c.logout()
	case "token":
		return c.token(ctx, args)
	case "list":
		return c.list(ctx, args)
	case "show":
		if len(args) != 1 {
			return fmt.Errorf("%w\nshow needs exactly one agent id", errUsage)
		}
		return c.show(ctx, args[0])
	case "health":
		if len(args) != 1 {
			return fmt.Errorf("%w\nhealth needs exactly one agent URL", errUsage)
		}
		return c.health(ctx, args[0])
	default:
		return fmt.Errorf("%w\nunknown command %q", errUsage, cmd)
	}
}

func (c *cli) provider() (auth.Provider, error) {
	if !c.cfg.Auth.Enabled {
		return nil, fmt.Errorf("%w\nauthentication is not configured; set AUTH_ENABLED=true", errUsage)
	}
	return auth.NewProvider(c.cfg.Auth,
		auth.WithLogger(c.log),
		auth.WithPrompt(func(p auth.DevicePrompt) {
			fmt.Fprintf(c.stderr, "To sign in, open %s and enter the code %s\n", p.VerificationURI, p.UserCode)
			fmt.Fprintf(c.stderr, "The code expires at %s.\n", p.ExpiresAt.Local().Format(time.Kitchen))
		}),
	)
}

func (c *cli) login(ctx context.Context) error {
	p, err := c.provider()
	if err != nil {
		return err
	}
	cred, err := p.Acquire(ctx, []string{c.cfg.Auth.RequiredScope})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Signed in as %s (%s)\n", p.Identity(), p.Kind())
	fmt.Fprintf(c.stdout, "Scopes:  %s\n", cred.ScopeString())
	fmt.Fprintf(c.stdout, "Expires: %s\n", cred.ExpiresAt.Format(time.RFC3339))
	if c.cfg.Auth.TokenFile != "" && p.Kind() == auth.KindInteractive {
		fmt.Fprintf(c.stdout, "Saved:   %s\n", c.cfg.Auth.TokenFile)
	}
	return nil
}

func (c *cli) logout() error {
	p, err := c.provider()
	if err != nil {
		return err
	}
	dc, ok := p.(*auth.DeviceCode)
	if !ok || c.cfg.Auth.TokenFile == "" {
		fmt.Fprintf(c.stdout, "Nothing saved for %s\n", p.Kind())
		return nil
	}
	if err := dc.SignOut(); err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, "Signed out")
	return nil
}

// token prints a bearer token, or with -decode the unverified claims of the
// given token (or a freshly acquired one).
func (c *cli) token(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	decode := fs.Bool("decode", false, "print the token's claims instead of the token")
	if err := fs.Parse(args); err != nil || fs.NArg() > 1 || (fs.NArg() == 1 && !*decode) {
		return errUsage
	}

	tok := fs.Arg(0)
	if tok == "" {
		p, err := c.provider()
		if err != nil {
			return err
		}
		cache := auth.NewTokenCache(auth.CacheConfigFrom(&c.cfg.Auth), auth.WithCacheLogger(c.log))
		if tok, err = cache.TokenSource(p, c.cfg.Auth.RequiredScope)(ctx); err != nil {
			return err
		}
	}
	if !*decode {
		fmt.Fprintln(c.stdout, tok)
		return nil
	}
	summary, err := inspect.Decode(tok, time.Now())
	if err != nil {
		return fmt.Errorf("%w\n%v", errUsage, err)
	}
	return c.writeJSON(summary)
}

// discoverer builds a discovery service, authenticated when auth is enabled.
// With no registry configured it falls back to the local default.
func (c *cli) discoverer() (*discovery.Service, error) {
	opts := []discovery.Option{discovery.WithLogger(c.log)}
	if c.cfg.Auth.Enabled {
		p, err := c.provider()
		if err != nil {
			return nil, err
		}
		cache := auth.NewTokenCache(auth.CacheConfigFrom(&c.cfg.Auth), auth.WithCacheLogger(c.log))
		opts = append(opts, discovery.WithTokenSource(cache.TokenSource(p, c.cfg.Auth.RequiredScope)))
	}
	svc, err := discovery.NewService(c.cfg.Discovery, opts...)
	if err != nil {
		return nil, err
	}
	if len(svc.Registries()) == 0 {
		if err := svc.SetDefaultRegistry(""); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

func (c *cli) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	skill := fs.String("skill", "", "only agents offering this skill")
	all := fs.Bool("all", false, "include unhealthy agents")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	svc, err := c.discoverer()
	if err != nil {
		return err
	}
	res, err := svc.ListAvailableAgents(ctx, discovery.ListFilter{Skill: *skill, HealthyOnly: !*all})
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(c.stderr, "warning: %v\n", w)
	}
	if *asJSON {
		return c.writeJSON(res.Agents)
	}

	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AGENT\tNAME\tHEALTHY\tSKILLS\tURL")
	for _, a := range res.Agents {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n",
			a.AgentID, a.Card.Name, a.Healthy, strings.Join(a.Card.SkillNames(), ","), a.URL)
	}
	return tw.Flush()
}

func (c *cli) show(ctx context.Context, id string) error {
	svc, err := c.discoverer()
	if err != nil {
		return err
	}
	card, err := svc.DiscoverAgent(ctx, id)
	if err != nil {
		return err
	}
	return c.writeJSON(card)
}

func (c *cli) health(ctx context.Context, baseURL string) error {
	svc, err := c.discoverer()
	if err != nil {
		return err
	}
	report := svc.HealthCheckAgent(ctx, baseURL)
	if err := c.writeJSON(report); err != nil {
		return err
	}
	if !report.Healthy {
		return fmt.Errorf("agent at %s is unhealthy: %s", baseURL, report.Error)
	}
	return nil
}

func (c *cli) writeJSON(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
