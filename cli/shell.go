package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/jrsteele09/go-password-auth/client"
)

var errExit = errors.New("exit")

const shellHelp = `Commands:
  register <username> [password]  create an account
  login <username> [password]     log in and keep the token pair
  users                           list users, refreshing once on 401
  refresh                         redeem the refresh token now
  status                          show the current session
  logout                          forget the token pair
  help                            show this help
  exit                            leave the shell`

// Shell is an interactive loop around one client.Manager, so a single
// session survives between commands.
type Shell struct {
	manager  *client.Manager
	out      io.Writer
	rl       *readline.Instance
	username string
}

func NewShell(manager *client.Manager, out io.Writer) *Shell {
	return &Shell{manager: manager, out: out}
}

func (s *Shell) prompt() string {
	if s.username != "" && s.manager.Session().IsAuthenticated() {
		return text.FgCyan.Sprint(s.username) + " > "
	}
	return "auth > "
}

// Run reads commands until exit, EOF or ctx is cancelled.
func (s *Shell) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.prompt(),
		Stdout:          s.out,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("register"),
			readline.PcItem("login"),
			readline.PcItem("users"),
			readline.PcItem("refresh"),
			readline.PcItem("status"),
			readline.PcItem("logout"),
			readline.PcItem("help"),
			readline.PcItem("exit"),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()
	s.rl = rl

	fmt.Fprintln(s.out, "Type 'help' for available commands.")
	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		} else if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		if err := s.execute(ctx, line); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			printError(s.out, err)
		}
		rl.SetPrompt(s.prompt())
	}
}

// execute runs one shell line.
func (s *Shell) execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch cmd, args := strings.ToLower(fields[0]), fields[1:]; cmd {
	case "register":
		username, password, err := s.credentials(args)
		if err != nil {
			return err
		}
		if err := client.ValidateCredentials(username, password, true); err != nil {
			return err
		}
		msg, err := s.manager.Register(ctx, username, password)
		if err != nil {
			return err
		}
		printSuccess(s.out, msg)

	case "login":
		username, password, err := s.credentials(args)
		if err != nil {
			return err
		}
		if err := client.ValidateCredentials(username, password, false); err != nil {
			return err
		}
		msg, err := s.manager.Authenticate(ctx, username, password)
		if err != nil {
			return err
		}
		s.username = username
		printSuccess(s.out, msg)

	case "users":
		records, err := s.manager.GetProtectedResource(ctx)
		if err != nil {
			return err
		}
		printUsers(s.out, records)

	case "refresh":
		if err := s.manager.Refresh(ctx); err != nil {
			return err
		}
		printSuccess(s.out, "Token pair refreshed")

	case "status":
		session := s.manager.Session()
		if !session.IsAuthenticated() {
			fmt.Fprintln(s.out, text.FgYellow.Sprint("Not logged in"))
			return nil
		}
		fmt.Fprintf(s.out, "Logged in as %s\n%s\n", text.FgCyan.Sprint(s.username), session)

	case "logout":
		s.manager.Logout()
		s.username = ""
		printSuccess(s.out, "Logged out")

	case "help":
		fmt.Fprintln(s.out, shellHelp)

	case "exit", "quit":
		return errExit

	default:
		return fmt.Errorf("unknown command %q, type 'help'", cmd)
	}
	return nil
}

// credentials takes the username from args and the password from args or,
// when omitted, from a masked prompt. Missing values come back empty and are
// rejected by ValidateCredentials.
func (s *Shell) credentials(args []string) (string, string, error) {
	switch {
	case len(args) >= 2:
		return args[0], args[1], nil
	case len(args) == 1 && s.rl != nil:
		password, err := s.rl.ReadPassword("password: ")
		if err != nil {
			return "", "", err
		}
		return args[0], string(password), nil
	case len(args) == 1:
		return args[0], "", nil
	default:
		return "", "", nil
	}
}
