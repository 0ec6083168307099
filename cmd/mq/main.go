package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	cl "marquee/internal/cli"
	"marquee/internal/config"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "mq",
		Short:        "Marquee studio tycoon CLI client",
		SilenceUsage: true,
	}

	root.AddCommand(
		newSignupCmd(&apiBase),
		newLoginCmd(&apiBase),
		newLogoutCmd(),
		newStudioCmd(&apiBase),
		newFilmsCmd(&apiBase),
		newGreenlightCmd(&apiBase),
		newAdvanceCmd(&apiBase),
		newSessionsCmd(&apiBase),
		newLeaderboardCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func requireSession() (cl.Session, error) {
	session, err := cl.LoadSession()
	if err != nil {
		return cl.Session{}, fmt.Errorf("not logged in, run `mq login` first")
	}
	return session, nil
}

func newSignupCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create a Marquee account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			username, err := promptOptional("Studio boss name (optional)")
			if err != nil {
				return err
			}
			password, err := promptRequired("Password")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			resp, err := client.Signup(ctx, email, username, password)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{
				AccessToken: resp.AccessToken,
				Email:       resp.Email,
				UserID:      resp.UserID,
				Username:    resp.Username,
			}); err != nil {
				return err
			}
			printSuccess("Signup complete. Session saved.")
			return nil
		},
	}
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Login to Marquee",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptRequired("Password")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			resp, err := client.Login(ctx, email, password)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{
				AccessToken: resp.AccessToken,
				Email:       resp.Email,
				UserID:      resp.UserID,
				Username:    resp.Username,
			}); err != nil {
				return err
			}
			printSuccess("Login complete. Session saved.")
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newStudioCmd(apiBase *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "studio",
		Short: "Show your studio dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			raw, err := newClient(apiBase).Studio(ctx, session.AccessToken)
			if err != nil {
				return err
			}
			return renderStudio(raw)
		},
	}

	auto := &cobra.Command{
		Use:   "auto-advance [on|off]",
		Short: "Toggle worker-driven weekly advances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := requireSession()
			if err != nil {
				return err
			}
			var enabled bool
			switch strings.ToLower(args[0]) {
			case "on", "true":
				enabled = true
			case "off", "false":
				enabled = false
			default:
				return fmt.Errorf("expected on or off, got %q", args[0])
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			raw, err := newClient(apiBase).SetAutoAdvance(ctx, session.AccessToken, enabled)
			if err != nil {
				return err
			}
			return renderSimpleOK(raw, fmt.Sprintf("Auto-advance set to %v.", enabled))
		},
	}
	cmd.AddCommand(auto)
	return cmd
}

func newFilmsCmd(apiBase *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "films [film-id]",
		Short: "List your films, or show one film's box-office run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)

			if len(args) == 1 {
				filmID, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid film id %q", args[0])
				}
				raw, err := client.FilmDetail(ctx, session.AccessToken, filmID)
				if err != nil {
					return err
				}
				return renderFilmDetail(raw)
			}

			raw, err := client.ListFilms(ctx, session.AccessToken)
			if err != nil {
				return err
			}
			return renderFilmsList(raw)
		},
	}
	return cmd
}

func newGreenlightCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "greenlight",
		Short: "Greenlight a new film project",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := requireSession()
			if err != nil {
				return err
			}
			title, err := promptRequired("Title")
			if err != nil {
				return err
			}
			genre, err := promptChoice("Genre", []string{
				"action", "comedy", "drama", "family", "horror", "romance", "sci_fi", "thriller",
			}, "drama")
			if err != nil {
				return err
			}
			spend, err := promptInt64("Production spend ($)", 1)
			if err != nil {
				return err
			}
			marketing, err := promptInt64("Marketing budget ($)", 0)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			raw, err := newClient(apiBase).CreateFilm(ctx, session.AccessToken, title, genre, marketing, spend, 0, 0, uuid.NewString())
			if err != nil {
				return err
			}
			return renderFilmCreated(raw)
		},
	}
}

func newAdvanceCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "advance",
		Short: "Advance your studio by one week",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			raw, err := newClient(apiBase).AdvanceWeek(ctx, session.AccessToken)
			if err != nil {
				return err
			}
			return renderAdvanceReport(raw)
		},
	}
}

func newSessionsCmd(apiBase *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Multiplayer session lobby commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List open lobbies",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			raw, err := newClient(apiBase).OpenSessions(ctx, session.AccessToken)
			if err != nil {
				return err
			}
			return renderSessionsList(raw)
		},
	})

	create := &cobra.Command{
		Use:   "create",
		Short: "Host a new multiplayer session",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := requireSession()
			if err != nil {
				return err
			}
			players, err := cmd.Flags().GetInt("players")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			raw, err := newClient(apiBase).CreateSession(ctx, session.AccessToken, players)
			if err != nil {
				return err
			}
			return renderSession(raw)
		},
	}
	create.Flags().Int("players", 4, "maximum number of players")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "join [code]",
		Short: "Join a lobby by its code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			raw, err := newClient(apiBase).JoinSession(ctx, session.AccessToken, args[0])
			if err != nil {
				return err
			}
			return renderSession(raw)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show [session-id]",
		Short: "Show a session's lobby state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionAction(cmd, apiBase, args[0], func(ctx context.Context, c *cl.Client, token string, id int64) (map[string]any, error) {
				return c.SessionState(ctx, token, id)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "ready [session-id]",
		Short: "Mark yourself ready",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionAction(cmd, apiBase, args[0], func(ctx context.Context, c *cl.Client, token string, id int64) (map[string]any, error) {
				return c.SetReady(ctx, token, id, true)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "unready [session-id]",
		Short: "Withdraw your ready flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionAction(cmd, apiBase, args[0], func(ctx context.Context, c *cl.Client, token string, id int64) (map[string]any, error) {
				return c.SetReady(ctx, token, id, false)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "start [session-id]",
		Short: "Start the game (host only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionAction(cmd, apiBase, args[0], func(ctx context.Context, c *cl.Client, token string, id int64) (map[string]any, error) {
				return c.StartSession(ctx, token, id)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "advance [session-id]",
		Short: "Advance the shared session week",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := requireSession()
			if err != nil {
				return err
			}
			sessionID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid session id %q", args[0])
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			raw, err := newClient(apiBase).AdvanceSession(ctx, session.AccessToken, sessionID)
			if err != nil {
				return err
			}
			return renderAdvanceReport(raw)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "end [session-id]",
		Short: "End the session (host only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionAction(cmd, apiBase, args[0], func(ctx context.Context, c *cl.Client, token string, id int64) (map[string]any, error) {
				return c.EndSession(ctx, token, id)
			})
		},
	})

	return cmd
}

func sessionAction(cmd *cobra.Command, apiBase *string, rawID string, fn func(context.Context, *cl.Client, string, int64) (map[string]any, error)) error {
	session, err := requireSession()
	if err != nil {
		return err
	}
	sessionID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid session id %q", rawID)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	raw, err := fn(ctx, newClient(apiBase), session.AccessToken, sessionID)
	if err != nil {
		return err
	}
	return renderSession(raw)
}

func newLeaderboardCmd(apiBase *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the all-time box-office leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := requireSession()
			if err != nil {
				return err
			}
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			raw, err := newClient(apiBase).Leaderboard(ctx, session.AccessToken, limit)
			if err != nil {
				return err
			}
			return renderLeaderboard(raw)
		},
	}
	cmd.Flags().Int("limit", 25, "number of rows to show")
	return cmd
}
