package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/ledgerly/internal/app"
	"github.com/florianilch/ledgerly/internal/finance"
	"github.com/florianilch/ledgerly/internal/tokensource"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "sign in and store the session",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "account username"},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "account password (prompted when omitted)"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			username, password, err := credentials(cmd)
			if err != nil {
				return err
			}

			if err := a.Session().Login(ctx, username, password); err != nil {
				if errors.Is(err, tokensource.ErrInvalidGrant) {
					return errors.New("invalid username or password")
				}
				return err
			}
			message(cmd, "Logged in as %s.", username)
			return nil
		}),
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "forget the stored session",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			if err := a.Session().Logout(ctx); err != nil {
				return err
			}
			message(cmd, "Logged out.")
			return nil
		}),
	}
}

func signupCommand() *cli.Command {
	return &cli.Command{
		Name:  "signup",
		Usage: "create an account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "account username"},
			&cli.StringFlag{Name: "email", Usage: "e-mail address"},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "account password (prompted when omitted)"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			username, password, err := credentials(cmd)
			if err != nil {
				return err
			}

			in := finance.SignupInput{Username: username, Email: cmd.String("email"), Password: password}
			if err := a.Finance().Signup(ctx, in); err != nil {
				return err
			}
			message(cmd, "Account %s created. Run `ledgerly login` to sign in.", username)
			return nil
		}),
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "show the stored session",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			st, err := a.Session().Status(ctx)
			if err != nil {
				return err
			}

			return render(cmd, st, func() *table {
				t := &table{header: []string{"LOGGED IN", "USER", "EXPIRES", "REFRESHABLE"}}
				expires := "-"
				if st.ExpiresAt != nil {
					expires = st.ExpiresAt.Local().Format(time.DateTime)
					if st.Expired {
						expires += " (expired)"
					}
				}
				user := st.UserID
				if user == "" {
					user = "-"
				}
				t.add(yesNo(st.LoggedIn), user, expires, yesNo(st.Refreshable))
				return t
			})
		}),
	}
}

// credentials reads username and password from flags, prompting on a
// terminal for whatever is missing.
func credentials(cmd *cli.Command) (string, string, error) {
	username := strings.TrimSpace(cmd.String("username"))
	password := cmd.String("password")

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if username == "" {
		if !interactive {
			return "", "", errors.New("--username is required")
		}
		fmt.Fprint(errWriter(cmd), "Username: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", "", fmt.Errorf("reading username: %w", err)
		}
		username = strings.TrimSpace(line)
	}
	if password == "" {
		if !interactive {
			return "", "", errors.New("--password is required when not running in a terminal")
		}
		fmt.Fprint(errWriter(cmd), "Password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(errWriter(cmd))
		if err != nil {
			return "", "", fmt.Errorf("reading password: %w", err)
		}
		password = string(raw)
	}
	if username == "" || password == "" {
		return "", "", errors.New("username and password are required")
	}
	return username, password, nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
