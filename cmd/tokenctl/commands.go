package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-mfa-grant/mfaclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

type globalOptions struct {
	baseURL      string
	clientID     string
	clientSecret string
	authInBody   bool
	timeout      time.Duration
	logLevel     string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:          "tokenctl",
		Short:        "Client for the urn:custom:mfa-otp token endpoint",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := zerolog.ParseLevel(opts.logLevel)
			if err != nil {
				return errors.Wrapf(err, "invalid log level %q", opts.logLevel)
			}
			zerolog.SetGlobalLevel(level)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the token service")
	flags.StringVar(&opts.clientID, "client-id", "demo", "OAuth client ID")
	flags.StringVar(&opts.clientSecret, "client-secret", "", "OAuth client secret")
	flags.BoolVar(&opts.authInBody, "auth-in-body", false, "Send client credentials in the form body instead of Basic auth")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Request timeout")
	flags.StringVarP(&opts.logLevel, "log-level", "l", "warn", "Log level (trace, debug, info, warn, error)")

	root.AddCommand(newMfaOtpCmd(opts), newChallengeCmd(opts))
	return root
}

func newMfaOtpCmd(opts *globalOptions) *cobra.Command {
	var (
		mfaToken string
		otp      string
		scopes   []string
	)

	cmd := &cobra.Command{
		Use:   "mfa-otp",
		Short: "Exchange an mfa_token and one-time password for an access token",
		Example: `  tokenctl mfa-otp --client-secret=demo-secret --mfa-token=<token> --otp=123456
  tokenctl mfa-otp --client-secret=demo-secret --mfa-token=<token> --otp=123456 --scope=read`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			style := oauth2.AuthStyleInHeader
			if opts.authInBody {
				style = oauth2.AuthStyleInParams
			}
			client := mfaclient.New(&oauth2.Config{
				ClientID:     opts.clientID,
				ClientSecret: opts.clientSecret,
				Endpoint: oauth2.Endpoint{
					TokenURL:  strings.TrimSuffix(opts.baseURL, "/") + "/oauth/token",
					AuthStyle: style,
				},
			})

			log.Debug().Str("client_id", opts.clientID).Msg("exchanging mfa token")
			tok, err := client.Exchange(ctx, mfaToken, otp, scopes...)
			if err != nil {
				var retrieveErr *oauth2.RetrieveError
				if errors.As(err, &retrieveErr) {
					return fmt.Errorf("token request failed (%d): %s: %s",
						retrieveErr.Response.StatusCode, retrieveErr.ErrorCode, retrieveErr.ErrorDescription)
				}
				return err
			}

			out := map[string]any{
				"access_token": tok.AccessToken,
				"token_type":   tok.TokenType,
				"expiry":       tok.Expiry.Format(time.RFC3339),
			}
			if tok.RefreshToken != "" {
				out["refresh_token"] = tok.RefreshToken
			}
			if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
				out["scope"] = scope
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVar(&mfaToken, "mfa-token", "", "mfa_token returned after the first factor (required)")
	cmd.Flags().StringVar(&otp, "otp", "", "One-time password (required)")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "Scopes to request")
	_ = cmd.MarkFlagRequired("mfa-token")
	_ = cmd.MarkFlagRequired("otp")
	return cmd
}

func newChallengeCmd(opts *globalOptions) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "challenge",
		Short: "Create an MFA challenge on a development server",
		Long: `Create an MFA challenge through the development endpoint, standing in for
the first factor of a login. Only available when the server runs with ENV=DEV.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			form := url.Values{"client_id": {opts.clientID}, "user_id": {userID}}
			req, err := http.NewRequestWithContext(ctx, http.MethodPost,
				strings.TrimSuffix(opts.baseURL, "/")+"/dev/mfa/challenges", strings.NewReader(form.Encode()))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return errors.Wrap(err, "create challenge")
			}
			defer resp.Body.Close()

			var body map[string]any
			if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
				return errors.Wrapf(err, "decode response (%d)", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusCreated {
				return fmt.Errorf("create challenge failed (%d): %v", resp.StatusCode, body["error_description"])
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "User who passed the first factor (required)")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
