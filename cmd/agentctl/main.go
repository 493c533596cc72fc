// Command agentctl is a client for agent registries: it signs in, lists and
// resolves agents, and probes their health.
//
//	agentctl [-config file] [-env file] [-registry url] <command> [args]
//
// Commands:
//
//	login            sign in and print the granted scopes
//	logout           forget the saved credential
//	token [-decode] [token]
//	                 print an access token for the registry scope, or the
//	                 unverified claims of one
//	list [-skill s] [-all]
//	show <agent-id>  print the agent's card
//	health <url>     probe an agent directly
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/kbukum/agentmesh/config"
	apperrors "github.com/kbukum/agentmesh/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "", "path to config.yml")
	envFile := fs.String("env", "", "path to .env")
	registryURL := fs.String("registry", "", "registry to query before the configured ones")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: %s [flags] <login|logout|token|list|show|health> [args]\n", serviceName)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	var opts []config.LoaderOption
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	if *envFile != "" {
		opts = append(opts, config.WithEnvFile(*envFile))
	}
	cfg, err := loadConfig(opts...)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	if *registryURL != "" {
		cfg.Discovery.Registries = append([]string{*registryURL}, cfg.Discovery.Registries...)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 1
	}

	c := newCLI(cfg, stdout, stderr)
	if err := c.dispatch(ctx, fs.Arg(0), fs.Args()[1:]); err != nil {
		return report(stderr, err)
	}
	return 0
}

func report(w io.Writer, err error) int {
	if errors.Is(err, errUsage) {
		fmt.Fprintln(w, err)
		return 2
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		fmt.Fprintf(w, "error: %s: %s\n", appErr.Code, appErr.Message)
		return 1
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return 1
}
