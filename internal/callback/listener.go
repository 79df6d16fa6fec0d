package callback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	slogctx "github.com/veqryn/slog-context"
)

const responsePage = `<!DOCTYPE html>
<html><body><p>Signed in. You can close this window and return to the terminal.</p></body></html>`

// Listener catches a single authorization redirect on a loopback address and
// hands it over as a Location. The identity provider must allow the listener's
// redirect URI.
type Listener struct {
	server  *http.Server
	ln      net.Listener
	path    string
	results chan *url.URL
}

// NewListener binds addr immediately so the redirect URI is known before the
// authorization URL is built. Pass "127.0.0.1:0" for an ephemeral port.
func NewListener(addr, path string) (*Listener, error) {
	if path == "" {
		path = "/callback"
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("binding the callback listener: %w", err)
	}

	l := &Listener{
		ln:      ln,
		path:    path,
		results: make(chan *url.URL, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, l.handle)
	l.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	return l, nil
}

func (l *Listener) RedirectURI() string {
	return fmt.Sprintf("http://%s%s", l.ln.Addr().String(), l.path)
}

// Wait serves until one redirect arrives or the context expires, then returns
// the caught request URL as a Location.
func (l *Listener) Wait(ctx context.Context) (*StaticLocation, error) {
	serveErr := make(chan error, 1)
	go func() {
		if err := l.server.Serve(l.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()

		if err := l.server.Shutdown(shutdownCtx); err != nil {
			slogctx.Warn(ctx, "Failed to shut down the callback listener", "error", err)
		}
	}()

	select {
	case u := <-l.results:
		return &StaticLocation{u: u}, nil
	case err := <-serveErr:
		return nil, fmt.Errorf("serving the callback listener: %w", err)
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for the authorization redirect: %w", ctx.Err())
	}
}

func (l *Listener) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	u := *r.URL
	u.Scheme = "http"
	u.Host = r.Host

	// first redirect wins, duplicates are dropped
	select {
	case l.results <- &u:
	default:
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprint(w, responsePage)
}
