package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/AskChad/ClickUp-Monday-sync/internal/server"
	"github.com/AskChad/ClickUp-Monday-sync/internal/shared"
)

const defaultAuthTimeout = 5 * time.Minute

// AuthClickUp runs the OAuth2 authorization-code flow against ClickUp and
// stores the resulting access token in the credential vault.
func (r *Runner) AuthClickUp(ctx context.Context, cmd *cli.Command) error {
	creds := r.config.Credentials.ClickUp
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return fmt.Errorf("%w: clickup client_id and client_secret must be set in config", shared.ErrMissingCredentials)
	}

	db, closeDB, err := r.openDB()
	if err != nil {
		return err
	}
	defer closeDB()

	vault, err := r.vault(db)
	if err != nil {
		return err
	}

	oauthConfig := server.NewClickUpOAuthConfig(creds.ClientID, creds.ClientSecret, creds.RedirectURI)
	state := shared.GenerateID()
	authURL := oauthConfig.AuthCodeURL(state)

	r.writePlain("Open the following URL in your browser to authorize:\n\n%s\n\n", authURL)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Debug("failed to open browser", "error", err)
	}

	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	r.logger.Info("waiting for OAuth callback", "addr", addr)

	waitCtx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	handler := server.NewOAuthHandler(oauthConfig, state)
	token, err := server.AwaitCallback(waitCtx, addr, handler, r.logger)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	if err := vault.Set(defaultUser, "clickup", token.AccessToken); err != nil {
		return err
	}

	r.logger.Info("clickup token stored in vault")
	return r.writePlain("✓ ClickUp authentication successful\n")
}

// AuthMonday stores a Monday.com personal API token in the credential vault.
func (r *Runner) AuthMonday(ctx context.Context, cmd *cli.Command) error {
	token := cmd.String("token")

	db, closeDB, err := r.openDB()
	if err != nil {
		return err
	}
	defer closeDB()

	vault, err := r.vault(db)
	if err != nil {
		return err
	}

	if err := vault.Set(defaultUser, "monday", token); err != nil {
		return err
	}

	r.logger.Info("monday token stored in vault")
	return r.writePlain("✓ Monday.com token stored\n")
}

// AuthStatus reports which service credentials are available, checking the
// config file first and the vault second.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	db, closeDB, err := r.openDB()
	if err != nil {
		return err
	}
	defer closeDB()

	report := func(service, configured string) {
		if configured != "" {
			r.writePlain("%s: ✓ token in config\n", service)
			return
		}
		if _, err := r.resolveToken(db, "", service); err == nil {
			r.writePlain("%s: ✓ token in vault\n", service)
		} else {
			r.writePlain("%s: ✗ not authenticated\n", service)
		}
	}

	report("clickup", r.config.Credentials.ClickUp.APIToken)
	report("monday", r.config.Credentials.Monday.APIToken)
	return nil
}
