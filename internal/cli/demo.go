package cli

import (
	"context"
	"fmt"

	"github.com/MrEthical07/goSession/keyspace"
	"github.com/spf13/cobra"
)

func newDemoCommand(opts *globalOptions) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Walk one session through its whole lifecycle",
		Long: `Create a session, create it again, resolve its token, refresh it, decode
and export the keyspace, then delete it. Pair with --embedded to try it
without a Redis server.`,
		Args: cobra.NoArgs,
		RunE: withEnv(opts, func(ctx context.Context, cmd *cobra.Command, e *env, _ []string) error {
			return runDemo(ctx, cmd, e, userID)
		}),
	}

	cmd.Flags().StringVar(&userID, "user", "1", "User id to use")

	return cmd
}

func runDemo(ctx context.Context, cmd *cobra.Command, e *env, userID string) error {
	out := cmd.OutOrStdout()
	m := e.manager

	first, err := m.CreateSession(ctx, userID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "create: created=%t token=%s\n", first.Created, first.Token)

	second, err := m.CreateSession(ctx, userID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "create again: created=%t same_token=%t\n", second.Created, second.Token == first.Token)

	owner, ok, err := m.GetUserIDByToken(ctx, first.Token)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "lookup: found=%t user=%s\n", ok, owner)

	refreshed, err := m.UpdateLastActivity(ctx, userID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "touch: refreshed=%t\n", refreshed)

	v, err := m.Decode(ctx, m.SessionKey(userID))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "decode %s:\n", m.SessionKey(userID))
	if err := printJSON(out, keyspace.Materialize(v)); err != nil {
		return err
	}

	fmt.Fprintln(out, "export:")
	if err := m.Export(ctx, out); err != nil {
		return err
	}

	deleted, err := m.DeleteSession(ctx, userID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "delete: deleted=%t\n", deleted)

	_, ok, err = m.GetUserIDByToken(ctx, first.Token)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "lookup after delete: found=%t\n", ok)

	return nil
}
