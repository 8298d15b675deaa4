package cli

import (
	"context"
	"errors"
	"fmt"

	goSession "github.com/MrEthical07/goSession"
	"github.com/spf13/cobra"
)

func newSessionCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Create, inspect, refresh and delete sessions",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create <user-id>",
			Short: "Create a session, or report the existing one",
			Args:  cobra.ExactArgs(1),
			RunE:  withEnv(opts, runSessionCreate),
		},
		&cobra.Command{
			Use:   "exists <user-id>",
			Short: "Report whether a session exists",
			Args:  cobra.ExactArgs(1),
			RunE:  withEnv(opts, runSessionExists),
		},
		&cobra.Command{
			Use:   "show <user-id>",
			Short: "Print a session and its remaining TTL",
			Args:  cobra.ExactArgs(1),
			RunE:  withEnv(opts, runSessionShow),
		},
		&cobra.Command{
			Use:   "touch <user-id>",
			Short: "Refresh login_time and the TTL window",
			Args:  cobra.ExactArgs(1),
			RunE:  withEnv(opts, runSessionTouch),
		},
		&cobra.Command{
			Use:   "delete <user-id>",
			Short: "Delete a session and its token",
			Args:  cobra.ExactArgs(1),
			RunE:  withEnv(opts, runSessionDelete),
		},
		&cobra.Command{
			Use:   "lookup <session-token>",
			Short: "Print the user id owning a session token",
			Args:  cobra.ExactArgs(1),
			RunE:  withEnv(opts, runSessionLookup),
		},
	)

	return cmd
}

type sessionView struct {
	UserID     string `json:"user_id"`
	Token      string `json:"session_token"`
	LoginTime  string `json:"login_time"`
	TTLSeconds int64  `json:"ttl_seconds"`
	Created    bool   `json:"created"`
}

func viewOf(info *goSession.SessionInfo) sessionView {
	return sessionView{
		UserID:     info.UserID,
		Token:      info.Token,
		LoginTime:  info.LoginTimeString(),
		TTLSeconds: int64(info.TTL.Seconds()),
		Created:    info.Created,
	}
}

func runSessionCreate(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
	info, err := e.manager.CreateSession(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), viewOf(info))
}

func runSessionExists(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
	ok, err := e.manager.SessionExists(ctx, args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), ok)
	return err
}

func runSessionShow(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
	info, ok, err := e.manager.GetSession(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no session for user %q", args[0])
	}
	return printJSON(cmd.OutOrStdout(), viewOf(info))
}

func runSessionTouch(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
	ok, err := e.manager.UpdateLastActivity(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no session for user %q", args[0])
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), "refreshed")
	return err
}

func runSessionDelete(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
	ok, err := e.manager.DeleteSession(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no session for user %q", args[0])
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), "deleted")
	return err
}

func runSessionLookup(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
	userID, ok, err := e.manager.GetUserIDByToken(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("token not found")
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), userID)
	return err
}
