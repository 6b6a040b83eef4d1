package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/panqplex/panqplex/internal/server"
	"github.com/panqplex/panqplex/internal/services"
	"github.com/panqplex/panqplex/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const uploadScope = "https://www.googleapis.com/auth/youtube.upload"

// clientSecret mirrors the provider's downloadable OAuth client JSON.
type clientSecret struct {
	Installed *clientSecretBody `json:"installed"`
	Web       *clientSecretBody `json:"web"`
}

type clientSecretBody struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	RedirectURIs []string `json:"redirect_uris"`
}

func loadClientSecret(path, listenAddr string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secret file: %w", err)
	}

	var secret clientSecret
	if err := json.Unmarshal(data, &secret); err != nil {
		return nil, fmt.Errorf("%w: malformed client secret file: %v", shared.ErrInvalidInput, err)
	}

	body := secret.Installed
	if body == nil {
		body = secret.Web
	}
	if body == nil || body.ClientID == "" {
		return nil, fmt.Errorf("%w: client secret file has no installed or web client", shared.ErrInvalidInput)
	}

	return &oauth2.Config{
		ClientID:     body.ClientID,
		ClientSecret: body.ClientSecret,
		Endpoint:     endpoints.Google,
		RedirectURL:  fmt.Sprintf("http://%s/callback", listenAddr),
		Scopes:       []string{uploadScope},
	}, nil
}

// Auth runs the authorization code flow for one configured account and
// saves the resulting token at the account's credential file.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	accountID := cmd.StringArg("account")
	if accountID == "" {
		return fmt.Errorf("%w: account argument is required", shared.ErrMissingArgument)
	}

	r.reloadConfig(cmd)

	account, err := r.config.Account(accountID)
	if err != nil {
		return err
	}
	if account.CredentialsFile == "" {
		return fmt.Errorf("%w: account %s has no credentials_file configured", shared.ErrInvalidConfig, accountID)
	}

	listenAddr := cmd.String("listen")
	oauthConfig, err := loadClientSecret(cmd.String("client-secret"), listenAddr)
	if err != nil {
		return err
	}

	state := shared.GenerateID()
	r.logger.Info("starting authorization flow", "account", accountID, "listen", listenAddr)

	token, err := server.Authorize(ctx, oauthConfig, state, server.AuthorizeOpts{
		Addr: listenAddr,
		Notify: func(url string) {
			r.writePlain("→ Open this URL in your browser to authorize %s:\n%s\n\n", accountID, url)
			r.writePlain("→ Waiting for authorization...\n")
		},
	})
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	if err := services.WriteTokenFile(account.CredentialsFile, token); err != nil {
		return err
	}

	r.logger.Info("credentials saved", "account", accountID, "path", account.CredentialsFile)
	return r.writePlain("✓ Authorized %s\n", accountID)
}

// authCommand obtains OAuth credentials for a configured account.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize an account and save its credentials",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "account"},
		},
		Flags: []cli.Flag{
			configFlag(),
			verboseFlag(),
			&cli.StringFlag{
				Name:     "client-secret",
				Usage:    "Path to the OAuth client secret JSON",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Callback listen address",
				Value: "localhost:3000",
			},
		},
		Action: r.Auth,
	}
}
