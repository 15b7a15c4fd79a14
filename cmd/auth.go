package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/rdex/internal/auth"
	"github.com/desertthunder/rdex/internal/login"
	"github.com/desertthunder/rdex/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// readTerminalPassword prompts on stderr and reads a line from the terminal without echo.
func readTerminalPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%w: password must be entered on a terminal or set in login.password", shared.ErrMissingCredentials)
	}
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

// credentials resolves the sign-in name and password from flags, config, RDE_USERNAME/RDE_PASSWORD
// and finally the terminal.
func (r *Runner) credentials(cmd *cli.Command) (login.Credentials, error) {
	creds := login.Credentials{
		Username: cmd.String("username"),
		Password: shared.EnvOr("RDE_PASSWORD", r.config.Login.Password),
	}
	if creds.Username == "" {
		creds.Username = shared.EnvOr("RDE_USERNAME", r.config.Login.Username)
	}
	if creds.Username == "" {
		r.writePlain("Username: ")
		line, err := bufio.NewReader(r.input).ReadString('\n')
		if err != nil && line == "" {
			return creds, fmt.Errorf("%w: username", shared.ErrMissingArgument)
		}
		creds.Username = strings.TrimSpace(line)
	}
	if creds.Password == "" {
		pw, err := r.readPassword("Password: ")
		if err != nil {
			return creds, err
		}
		creds.Password = pw
	}
	return creds, nil
}

// AuthLogin drives the browser sign-in flow and stores the captured tokens and cookies.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireTokens(); err != nil {
		return err
	}
	creds, err := r.credentials(cmd)
	if err != nil {
		return err
	}

	cfg := r.config.Login
	if cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, seconds(cfg.TimeoutSeconds))
		defer cancel()
	}

	chromeOpts := login.ChromeOptions{
		Headless:    cfg.Headless && !cmd.Bool("show-browser"),
		UserDataDir: r.config.Paths.Resolve("browser"),
	}
	if r.network.Mode == shared.ProxyStatic {
		chromeOpts.Proxy = r.network.Proxies.HTTPS
		if chromeOpts.Proxy == "" {
			chromeOpts.Proxy = r.network.Proxies.HTTP
		}
	}

	r.logger.Info("starting browser", "headless", chromeOpts.Headless)
	page, err := login.NewChromePage(ctx, chromeOpts)
	if err != nil {
		return err
	}
	defer page.Close()

	maxDelay := time.Duration(cfg.MaxDelayMS) * time.Millisecond
	machine := login.NewMachine(page, r.tokens.Store(), creds, r.logger, login.Options{
		StartURL:        cfg.StartURL,
		SecondaryURL:    cfg.SecondaryURL,
		CookieFile:      r.config.Paths.Cookies(),
		MaxAttempts:     cfg.MaxAttempts,
		ButtonBackoff:   login.Backoff{Max: maxDelay},
		FieldBackoff:    login.Backoff{Max: maxDelay},
		RedirectBackoff: login.Backoff{Max: maxDelay},
		Observer: func(tr login.Transition) {
			if tr.Err == nil {
				r.logger.Info("login", "state", tr.To)
			}
		},
	})
	creds.Clear()

	res, err := machine.Run(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrLoginFailed, err)
	}

	r.writePlain("✓ Signed in to %s\n", auth.HostRDE)
	if !res.Token.ExpiresAt.IsZero() {
		r.writePlain("  Token expires: %s\n", res.Token.ExpiresAt.Local().Format(time.DateTime))
	}
	switch res.Secondary {
	case login.SecondaryCaptured:
		r.writePlain("✓ Material portal token captured (%s)\n", auth.HostMaterial)
	case login.SecondarySkipped:
		r.writePlain("! Material portal token not found; requests there use the primary token\n")
	}
	if len(res.Cookies) > 0 {
		r.writePlain("  Cookies saved: %d → %s\n", len(res.Cookies), r.config.Paths.Cookies())
	}
	return nil
}

// AuthStatus prints what is stored per host. The token values themselves are never printed.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireTokens(); err != nil {
		return err
	}
	statuses := r.tokens.Status(ctx, cmd.Bool("validate"))
	if cmd.Bool("json") {
		return r.writeJSON(statuses, true)
	}

	r.writePlainHeader("Bearer tokens")
	for _, st := range statuses {
		r.writePlain("%s\n", st.Host)
		if !st.Present {
			if st.Error != "" {
				r.writePlain("  ✗ unreadable: %s\n", st.Error)
			} else {
				r.writePlain("  ✗ no token\n")
			}
			continue
		}
		if !st.ExpiresAt.IsZero() {
			r.writePlain("  Expires: %s\n", st.ExpiresAt.Local().Format(time.DateTime))
		}
		if !st.UpdatedAt.IsZero() {
			r.writePlain("  Updated: %s\n", st.UpdatedAt.Local().Format(time.DateTime))
		}
		r.writePlain("  Expired: %t  Refreshable: %t\n", st.Expired, st.CanRefresh)
		if st.Validated {
			if st.Valid {
				r.writePlain("  ✓ valid\n")
			} else {
				r.writePlain("  ✗ invalid: %s\n", st.Error)
			}
		}
	}
	return nil
}

func (r *Runner) selectedHosts(cmd *cli.Command) ([]string, error) {
	host := cmd.String("host")
	if host == "" {
		return auth.Hosts, nil
	}
	if !auth.IsKnownHost(host) {
		return nil, fmt.Errorf("%w: unknown host %q", shared.ErrInvalidFlag, host)
	}
	return []string{host}, nil
}

// AuthValidate checks each stored token against /users/self. It fails when the primary host has no
// valid token, since nothing else works without it.
func (r *Runner) AuthValidate(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireTokens(); err != nil {
		return err
	}
	hosts, err := r.selectedHosts(cmd)
	if err != nil {
		return err
	}

	var primaryErr error
	for _, host := range hosts {
		_, err := r.tokens.GetValidToken(ctx, host)
		switch {
		case err == nil:
			r.writePlain("✓ %s: valid\n", host)
		case errors.Is(err, shared.ErrNotAuthenticated):
			r.writePlain("✗ %s: no token\n", host)
		default:
			r.writePlain("✗ %s: %v\n", host, err)
		}
		if host == auth.HostRDE {
			primaryErr = err
		}
	}
	return primaryErr
}

// AuthRefresh refreshes stored tokens that carry a refresh token.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireTokens(); err != nil {
		return err
	}
	hosts, err := r.selectedHosts(cmd)
	if err != nil {
		return err
	}
	explicit := cmd.String("host") != ""

	var errs []error
	for _, host := range hosts {
		current, err := r.tokens.Store().Load(host)
		if err != nil {
			if explicit {
				errs = append(errs, err)
			}
			continue
		}
		if !current.CanRefresh() && !explicit {
			r.writePlain("- %s: no refresh token, skipped\n", host)
			continue
		}

		t, err := r.tokens.Refresh(ctx, host)
		if err != nil {
			r.writePlain("✗ %s: %v\n", host, err)
			errs = append(errs, fmt.Errorf("%s: %w", host, err))
			continue
		}
		r.writePlain("✓ %s: refreshed, expires %s\n", host, t.ExpiresAt.Local().Format(time.DateTime))
	}
	return errors.Join(errs...)
}

// AuthImportCurl stores the bearer token and cookies from a request copied out of browser dev tools.
func (r *Runner) AuthImportCurl(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireTokens(); err != nil {
		return err
	}
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}
	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	var req *shared.CurlRequest
	var err error
	if curlFile != "" {
		if req, err = shared.ParseCurlFile(curlFile); err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Info("parsed cURL from file", "file", curlFile)
	} else {
		if req, err = shared.ParseCurlCommand(curlCmd); err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}
	}

	token, err := req.BearerToken()
	if err != nil {
		return err
	}

	host := cmd.String("host")
	if host == "" {
		host = auth.HostForURL(req.URL)
	} else if !auth.IsKnownHost(host) {
		return fmt.Errorf("%w: unknown host %q", shared.ErrInvalidFlag, host)
	}

	if !cmd.Bool("no-validate") {
		if ok, err := r.tokens.ValidateToken(ctx, token); !ok {
			return fmt.Errorf("token rejected by %s: %w", auth.DefaultValidateURL, err)
		}
	}

	if err := r.tokens.Store().Save(host, auth.NewToken(token, "")); err != nil {
		return err
	}
	r.logger.Info("token imported", "host", host, "token", shared.MaskSecret(token, 8))
	r.writePlain("✓ Token stored for %s\n", host)

	if req.Cookie != "" {
		if err := shared.WriteFileAtomic(r.config.Paths.Cookies(), []byte(req.Cookie), 0o600); err != nil {
			return err
		}
		r.writePlain("✓ Cookies saved to %s\n", r.config.Paths.Cookies())
	}
	return nil
}

// AuthLogout deletes stored tokens. Without --host every token and the cookie file go.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireTokens(); err != nil {
		return err
	}
	store := r.tokens.Store()

	if host := cmd.String("host"); host != "" {
		if !auth.IsKnownHost(host) {
			return fmt.Errorf("%w: unknown host %q", shared.ErrInvalidFlag, host)
		}
		if err := store.Delete(host); err != nil {
			return err
		}
		return r.writePlain("✓ Token removed for %s\n", host)
	}

	if err := store.Clear(); err != nil {
		return err
	}
	if err := os.Remove(r.config.Paths.Cookies()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove cookies: %w", err)
	}
	return r.writePlain("✓ Signed out: tokens and cookies removed\n")
}
