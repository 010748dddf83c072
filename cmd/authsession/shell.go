package main

// file: cmd/authsession/shell.go

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/cockroachdb/errors"
	"github.com/dkoosis/authsession/internal/session"
	"github.com/spf13/cobra"
)

func newShellCmd(root *rootOptions) *cobra.Command {
	var link string
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive session shell",
		Long: `shell keeps one session controller alive and runs session operations
typed at the prompt. Type 'help' for the list of commands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, cmd.OutOrStdout(), logger)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.start(ctx, link); err != nil {
				return err
			}
			return runREPL(ctx, &shell{app: a, out: cmd.OutOrStdout()})
		},
	}
	cmd.Flags().StringVar(&link, "link", "", "Sign-in link the application was opened with.")
	return cmd
}

func runREPL(ctx context.Context, s *shell) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "authsession> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".authsession_history"),
		AutoComplete:    shellCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return errors.Wrap(err, "failed to create readline instance")
	}
	defer rl.Close()

	s.printStatus()
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		} else if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return errors.Wrap(err, "failed to read input")
		}

		quit, err := s.exec(ctx, line)
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

type shellCommand struct {
	name  string
	usage string
	run   func(s *shell, ctx context.Context, args []string) error
}

var shellCommands = []shellCommand{
	{"status", "status", (*shell).cmdStatus},
	{"signup", "signup <email> <password>", (*shell).cmdSignUp},
	{"signin", "signin <email> <password>", (*shell).cmdSignIn},
	{"link", "link <email> [signIn|signUp|passwordReset]", (*shell).cmdLink},
	{"redeem", "redeem [url]  (defaults to the last link sent to the pending email)", (*shell).cmdRedeem},
	{"pending", "pending", (*shell).cmdPending},
	{"google", "google", (*shell).cmdGoogle},
	{"dev", "dev <token>", (*shell).cmdDev},
	{"password", "password <new> [old]", (*shell).cmdPassword},
	{"photo", "photo <url>", (*shell).cmdPhoto},
	{"has-account", "has-account <email>", (*shell).cmdHasAccount},
	{"skip-password", "skip-password", (*shell).cmdSkipPassword},
	{"signout", "signout", (*shell).cmdSignOut},
	{"outbox", "outbox", (*shell).cmdOutbox},
}

func shellCompleter() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(shellCommands)+3)
	for _, c := range shellCommands {
		if c.name == "link" {
			items = append(items, readline.PcItem(c.name,
				readline.PcItem(string(session.ReasonSignIn)),
				readline.PcItem(string(session.ReasonSignUp)),
				readline.PcItem(string(session.ReasonPasswordReset))))
			continue
		}
		items = append(items, readline.PcItem(c.name))
	}
	items = append(items, readline.PcItem("help"), readline.PcItem("exit"), readline.PcItem("quit"))
	return readline.NewPrefixCompleter(items...)
}

// shell executes one line at a time against the app's controller.
type shell struct {
	app *app
	out io.Writer
}

var errUsage = errors.New("wrong number of arguments")

func (s *shell) exec(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	name, args := fields[0], fields[1:]
	switch name {
	case "exit", "quit":
		return true, nil
	case "help", "?":
		s.printHelp()
		return false, nil
	}
	for _, c := range shellCommands {
		if c.name != name {
			continue
		}
		if err := c.run(s, ctx, args); err != nil {
			if errors.Is(err, errUsage) {
				return false, errors.Newf("usage: %s", c.usage)
			}
			return false, err
		}
		return false, nil
	}
	return false, errors.Newf("unknown command %q, type 'help'", name)
}

func (s *shell) printHelp() {
	fmt.Fprintln(s.out, "Commands:")
	for _, c := range shellCommands {
		fmt.Fprintf(s.out, "  %s\n", c.usage)
	}
	fmt.Fprintln(s.out, "  help | exit")
}

// settle waits for the reconciliation triggered by the last operation and prints the session.
func (s *shell) settle(ctx context.Context) error {
	if err := s.app.controller.Sync(ctx); err != nil {
		return err
	}
	s.printStatus()
	return nil
}

func (s *shell) printStatus() {
	c := s.app.controller
	u := c.User()
	if u == nil {
		fmt.Fprintf(s.out, "signed out (state %s)\n", c.State())
		return
	}
	providers := make([]string, 0, len(u.Providers))
	for _, p := range u.Providers {
		providers = append(providers, string(p))
	}
	current := string(u.CurrentProvider)
	if current == "" {
		current = "unknown"
	}
	fmt.Fprintf(s.out, "signed in as %s (uid %s) via %s; providers [%s]\n",
		u.Email, u.UID, current, strings.Join(providers, ", "))
	if u.PhotoURL != "" {
		fmt.Fprintf(s.out, "  photo: %s\n", u.PhotoURL)
	}
	if c.SetPasswordMode() {
		fmt.Fprintln(s.out, "  a password should be set: use 'password <new>' or 'skip-password'")
	}
}

func (s *shell) cmdStatus(_ context.Context, _ []string) error {
	s.printStatus()
	return nil
}

func (s *shell) cmdSignUp(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	if err := s.app.controller.CreateAccountForEmailAndPassword(ctx, args[0], args[1]); err != nil {
		return err
	}
	return s.settle(ctx)
}

func (s *shell) cmdSignIn(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	if err := s.app.controller.SignInWithEmailPassword(ctx, args[0], args[1]); err != nil {
		return err
	}
	return s.settle(ctx)
}

func (s *shell) cmdLink(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	reason := session.ReasonSignIn
	if len(args) == 2 {
		reason = session.MagicLinkReason(args[1])
		switch reason {
		case session.ReasonSignIn, session.ReasonSignUp, session.ReasonPasswordReset:
		default:
			return errUsage
		}
	}
	if err := s.app.controller.SignInWithEmailLink(ctx, args[0], reason); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "sign-in link sent to %s\n", session.NormalizeEmail(args[0]))
	return nil
}

func (s *shell) cmdRedeem(ctx context.Context, args []string) error {
	var link string
	switch len(args) {
	case 0:
		email, _, ok, err := s.app.controller.PendingMagicLink(ctx)
		if err != nil {
			return err
		}
		if !ok || s.app.outbox == nil {
			return errors.New("no pending link in the outbox; pass the link URL")
		}
		msg, found := s.app.outbox.Last(email)
		if !found {
			return errors.Newf("no link was sent to %s", email)
		}
		link = msg.Link
	case 1:
		link = args[0]
	default:
		return errUsage
	}

	res, err := s.app.controller.RedeemEmailLink(ctx, link)
	if err != nil {
		if res.Email != "" {
			return errors.Wrapf(err, "sign-in link for %s failed", res.Email)
		}
		return err
	}
	switch res.Outcome {
	case session.MagicLinkInvalidLink:
		return errors.New("not a sign-in link")
	case session.MagicLinkNoEmailPending:
		return errors.New("no sign-in link was requested on this device")
	}
	return s.settle(ctx)
}

func (s *shell) cmdPending(ctx context.Context, _ []string) error {
	email, reason, ok, err := s.app.controller.PendingMagicLink(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(s.out, "no pending sign-in link")
		return nil
	}
	fmt.Fprintf(s.out, "pending sign-in link for %s (%s)\n", email, reason)
	return nil
}

func (s *shell) cmdGoogle(ctx context.Context, _ []string) error {
	ok, err := s.app.controller.SignInWithGoogle(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(s.out, "google sign-in cancelled")
		return nil
	}
	return s.settle(ctx)
}

func (s *shell) cmdDev(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if err := s.app.controller.SignInWithDevLogin(ctx, args[0]); err != nil {
		return err
	}
	return s.settle(ctx)
}

func (s *shell) cmdPassword(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	old := ""
	if len(args) == 2 {
		old = args[1]
	}
	res, err := s.app.controller.UpdatePassword(ctx, args[0], old)
	if err != nil {
		return err
	}
	switch res.Error {
	case session.AuthErrorNone:
		fmt.Fprintln(s.out, "password updated")
		s.printStatus()
	case session.ErrNeedsReauthentication:
		fmt.Fprintln(s.out, "recent login required: run 'password <new> <old>'")
	case session.ErrWrongPassword:
		fmt.Fprintln(s.out, "old password is wrong")
	default:
		fmt.Fprintf(s.out, "password not updated: %s\n", res.Error)
	}
	return nil
}

func (s *shell) cmdPhoto(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if err := s.app.controller.UpdatePhotoURL(ctx, args[0]); err != nil {
		return err
	}
	s.printStatus()
	return nil
}

func (s *shell) cmdHasAccount(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	has, err := s.app.controller.GetHasAccount(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "account exists: %t\n", has)
	return nil
}

func (s *shell) cmdSkipPassword(_ context.Context, _ []string) error {
	s.app.controller.SkipPasswordMode()
	s.printStatus()
	return nil
}

func (s *shell) cmdSignOut(ctx context.Context, _ []string) error {
	if err := s.app.controller.SignOut(ctx); err != nil {
		return err
	}
	return s.settle(ctx)
}

func (s *shell) cmdOutbox(_ context.Context, _ []string) error {
	if s.app.outbox == nil {
		return errors.New("links are delivered by email; no local outbox")
	}
	msgs := s.app.outbox.Messages()
	if len(msgs) == 0 {
		fmt.Fprintln(s.out, "outbox is empty")
		return nil
	}
	for _, m := range msgs {
		fmt.Fprintf(s.out, "%s  %s\n", m.To, m.Link)
	}
	return nil
}
