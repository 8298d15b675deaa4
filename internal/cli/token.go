package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goSession/internal/config"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/spf13/cobra"
)

var errNoBearerSecret = errors.New("bearer.secret is not configured")

func newTokenCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and verify signed bearer tokens",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "issue <user-id>",
			Short: "Create or reuse a session and sign a bearer token for it",
			Args:  cobra.ExactArgs(1),
			RunE:  withEnv(opts, runTokenIssue),
		},
		&cobra.Command{
			Use:   "verify <bearer>",
			Short: "Verify a bearer token and check that its session is live",
			Args:  cobra.ExactArgs(1),
			RunE:  withEnv(opts, runTokenVerify),
		},
	)

	return cmd
}

func newSigner(cfg config.BearerConfig) (*jwt.Manager, error) {
	if cfg.Secret == "" {
		return nil, errNoBearerSecret
	}
	return jwt.NewManager(jwt.Config{
		TTL:           cfg.TTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte(cfg.Secret),
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
	})
}

func runTokenIssue(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
	signer, err := newSigner(e.cfg.Bearer)
	if err != nil {
		return err
	}

	info, err := e.manager.CreateSession(ctx, args[0])
	if err != nil {
		return err
	}
	bearer, err := signer.Issue(info.UserID, info.Token)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), bearer)
	return err
}

func runTokenVerify(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
	signer, err := newSigner(e.cfg.Bearer)
	if err != nil {
		return err
	}

	claims, err := signer.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid bearer: %w", err)
	}
	owner, ok, err := e.manager.GetUserIDByToken(ctx, claims.SID)
	if err != nil {
		return err
	}
	if !ok || owner != claims.UID {
		return errors.New("session is no longer active")
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), owner)
	return err
}
