package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// AuthorizeOpts tunes one authorization flow.
type AuthorizeOpts struct {
	Addr    string        // listen address, e.g. "localhost:3000"
	Timeout time.Duration // how long to wait for the callback, default 2m
	Notify  func(url string)
}

// Authorize runs the authorization code flow end to end: it serves the
// callback endpoint on opts.Addr, announces the consent URL through
// opts.Notify, and blocks until the callback arrives, the timeout fires,
// or ctx is canceled.
func Authorize(ctx context.Context, config *oauth2.Config, state string, opts AuthorizeOpts) (*oauth2.Token, error) {
	if opts.Addr == "" {
		opts.Addr = "localhost:3000"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}

	handler := NewCallbackHandler(config, state)
	mux := http.NewServeMux()
	mux.Handle("/callback", handler)

	httpServer := &http.Server{
		Addr:    opts.Addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	authURL := config.AuthCodeURL(state, oauth2.AccessTypeOffline)
	if opts.Notify != nil {
		opts.Notify(authURL)
	}

	timeout := time.NewTimer(opts.Timeout)
	defer timeout.Stop()

	var result CallbackResult
	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		shutdown(httpServer)
		return nil, fmt.Errorf("authorization timed out after %v", opts.Timeout)
	case <-ctx.Done():
		shutdown(httpServer)
		return nil, ctx.Err()
	}

	shutdown(httpServer)

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("no token received")
	}
	return result.Token, nil
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
