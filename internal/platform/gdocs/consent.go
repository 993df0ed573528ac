package gdocs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// DefaultConsentTimeout bounds how long the consent flow waits for the
// browser to call back.
const DefaultConsentTimeout = 5 * time.Minute

// ErrConsentDenied is returned when the authorization server reports an error
// on the callback, usually because the user declined access.
var ErrConsentDenied = errors.New("consent denied")

// ConsentFlow obtains a token by asking the user to grant access.
type ConsentFlow interface {
	Run(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)
}

// LocalServerFlow runs the installed-app consent flow: it listens on a
// loopback port, sends the user to the authorization URL and exchanges the
// code delivered to the callback.
type LocalServerFlow struct {
	// OpenBrowser launches a browser at url. Defaults to the platform opener.
	OpenBrowser func(url string) error

	// NoBrowser only prints the authorization URL.
	NoBrowser bool

	// Timeout bounds the wait for the callback. Defaults to DefaultConsentTimeout.
	Timeout time.Duration

	// Out receives the authorization URL. Defaults to os.Stderr.
	Out io.Writer

	Logger *slog.Logger
}

var _ ConsentFlow = (*LocalServerFlow)(nil)

type consentCallback struct {
	code  string
	state string
	err   string
}

// Run implements ConsentFlow.
func (f *LocalServerFlow) Run(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("cannot open local callback listener: %w", err)
	}

	port := ln.Addr().(*net.TCPAddr).Port
	flowCfg := *cfg
	flowCfg.RedirectURL = fmt.Sprintf("http://localhost:%d/", port)

	cbCh := make(chan consentCallback, 1)
	srv := &http.Server{
		Handler:           callbackHandler(cbCh),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(stopCtx)
	}()

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	authURL := flowCfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier))

	out := f.Out
	if out == nil {
		out = os.Stderr
	}
	_, _ = fmt.Fprintf(out, "Authorize Google Docs access in your browser:\n%s\n", authURL)

	if !f.NoBrowser {
		open := f.OpenBrowser
		if open == nil {
			open = openBrowser
		}
		if err := open(authURL); err != nil {
			return nil, fmt.Errorf("cannot launch a browser for consent: %w", err)
		}
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultConsentTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.InfoContext(ctx, "Waiting for OAuth consent callback", "port", port, "timeout", timeout)

	var cb consentCallback
	select {
	case <-waitCtx.Done():
		return nil, fmt.Errorf("timed out waiting for consent callback: %w", waitCtx.Err())
	case cb = <-cbCh:
	}

	if cb.err != "" {
		return nil, fmt.Errorf("%w: %s", ErrConsentDenied, cb.err)
	}
	if cb.state != state {
		return nil, errors.New("oauth state mismatch")
	}
	if cb.code == "" {
		return nil, errors.New("oauth callback code is empty")
	}

	tok, err := flowCfg.Exchange(waitCtx, cb.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return tok, nil
}

func callbackHandler(cbCh chan<- consentCallback) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("code") == "" && q.Get("error") == "" {
			http.NotFound(w, r)
			return
		}

		cb := consentCallback{
			code:  strings.TrimSpace(q.Get("code")),
			state: strings.TrimSpace(q.Get("state")),
			err:   strings.TrimSpace(q.Get("error")),
		}
		select {
		case cbCh <- cb:
		default:
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("The authentication flow has completed. You may close this window."))
	})
}

func openBrowser(target string) error {
	if strings.TrimSpace(target) == "" {
		return errors.New("empty url")
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	return cmd.Start()
}
