package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"expensetracker/internal/core"
	"expensetracker/internal/session"
	"expensetracker/internal/tracker"
)

var errUsage = errors.New("wrong arguments, see help")

type shell struct {
	tr          *tracker.Tracker
	in          *bufio.Scanner
	out         io.Writer
	printer     *message.Printer
	defaultUser string

	// readSecret reads a password. It defaults to the next input line.
	readSecret func() (string, error)
}

func newShell(tr *tracker.Tracker, in io.Reader, out io.Writer) *shell {
	s := &shell{
		tr:      tr,
		in:      bufio.NewScanner(in),
		out:     out,
		printer: message.NewPrinter(language.English),
	}
	s.readSecret = func() (string, error) {
		line, ok := s.readLine()
		if !ok {
			return "", io.ErrUnexpectedEOF
		}
		return line, nil
	}
	return s
}

func (s *shell) run(ctx context.Context) error {
	fmt.Fprintln(s.out, titleStyle.Render("expense tracker")+mutedStyle.Render("  type 'help' for commands"))
	for ctx.Err() == nil {
		fmt.Fprint(s.out, s.prompt())
		line, ok := s.readLine()
		if !ok {
			return s.in.Err()
		}
		if s.exec(ctx, line) {
			return nil
		}
	}
	return nil
}

func (s *shell) readLine() (string, bool) {
	if !s.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

func (s *shell) ask(prompt string) string {
	fmt.Fprint(s.out, prompt)
	line, _ := s.readLine()
	return line
}

func (s *shell) prompt() string {
	if u := s.tr.Session().Username; u != "" {
		return promptStyle.Render(u+">") + " "
	}
	return promptStyle.Render(">") + " "
}

// exec runs one command line and reports whether the shell should exit. The
// status line is printed when the command changed it; otherwise a returned
// error is printed.
func (s *shell) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	before := s.tr.Status().Latest()

	var err error
	switch cmd, args := strings.ToLower(fields[0]), fields[1:]; cmd {
	case "quit", "exit":
		return true
	case "help":
		s.help()
	case "login":
		err = s.login(ctx, args)
	case "register":
		err = s.register(ctx, args)
	case "logout":
		s.tr.Logout(ctx)
	case "whoami":
		s.whoami()
	case "add":
		err = s.add(ctx, args)
	case "rm", "delete":
		err = s.remove(ctx, args)
	case "list", "ls":
		s.list()
	case "search":
		s.tr.SetSearch(strings.Join(args, " "))
		s.list()
	case "mode":
		err = s.mode(args)
	case "refresh":
		err = s.refresh(ctx)
	case "stats":
		err = s.stats(ctx, args)
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if after := s.tr.Status().Latest(); after != before && !after.IsZero() {
		fmt.Fprintln(s.out, renderStatus(after))
	} else if err != nil {
		fmt.Fprintln(s.out, failureStyle.Render("error: "+err.Error()))
	}
	return false
}

func (s *shell) login(ctx context.Context, args []string) error {
	user := s.defaultUser
	if len(args) > 0 {
		user = args[0]
	}
	if user == "" {
		return errUsage
	}
	fmt.Fprint(s.out, "Password: ")
	pass, err := s.readSecret()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	s.tr.SetForm(session.FormLogin)
	if _, err := s.tr.Login(ctx, user, pass); err != nil {
		return err
	}
	return nil
}

func (s *shell) register(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	fmt.Fprint(s.out, "Password: ")
	pass, err := s.readSecret()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	s.tr.SetForm(session.FormRegister)
	return s.tr.Register(ctx, args[0], pass)
}

func (s *shell) whoami() {
	snap := s.tr.Session()
	user := snap.Username
	if user == "" {
		user = "-"
	}
	line := fmt.Sprintf("user %s, state %s, form %s", user, snap.State, snap.Form)
	if snap.Reason != "" {
		line += ", last failure: " + snap.Reason
	}
	fmt.Fprintln(s.out, line)
}

// add <name> <type> <qty> <price> <mode> [note...]
func (s *shell) add(ctx context.Context, args []string) error {
	if len(args) < 5 {
		return errUsage
	}
	qty, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("parse quantity: %w", core.ErrInvalidQuantity)
	}
	price, err := core.ParsePrice(args[3])
	if err != nil {
		return fmt.Errorf("parse price: %w", err)
	}
	mode, err := core.ParsePaymentMode(args[4])
	if err != nil {
		return err
	}
	s.tr.UpdateDraft(func(d *core.EntryDraft) {
		d.Name = args[0]
		d.Type = args[1]
		d.Quantity = qty
		d.Price = price
		d.Mode = mode
		d.Note = strings.Join(args[5:], " ")
	})
	_, err = s.tr.SubmitDraft(ctx)
	return err
}

func (s *shell) remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	declined := false
	confirm := func(_ context.Context, e core.Entry) bool {
		label := string(e.ID)
		if e.Name != "" {
			label = fmt.Sprintf("%s (%s)", e.Name, e.ID)
		}
		answer := strings.ToLower(s.ask(fmt.Sprintf("Delete %s? [y/N] ", label)))
		declined = answer != "y" && answer != "yes"
		return !declined
	}
	_, err := s.tr.DeleteEntry(ctx, core.EntryID(args[0]), confirm)
	if declined {
		fmt.Fprintln(s.out, mutedStyle.Render("cancelled"))
	}
	return err
}

func (s *shell) list() {
	res := s.tr.Filtered()
	fmt.Fprint(s.out, renderEntries(s.printer, res.Entries))
	fmt.Fprintln(s.out, renderTotal(s.printer, s.tr.Criteria(), res.Total, len(res.Entries)))
}

func (s *shell) mode(args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if err := s.tr.SetModeFilter(args[0]); err != nil {
		return fmt.Errorf("%w, want one of %s", err, modeChoices())
	}
	s.list()
	return nil
}

func (s *shell) refresh(ctx context.Context) error {
	if err := s.tr.RefreshEntries(ctx); err != nil {
		return err
	}
	return s.tr.RefreshStats(ctx)
}

// stats [month year]
func (s *shell) stats(ctx context.Context, args []string) error {
	switch len(args) {
	case 0:
	case 2:
		month, err := strconv.Atoi(args[0])
		if err != nil {
			return core.ErrInvalidMonth
		}
		year, err := strconv.Atoi(args[1])
		if err != nil {
			return core.ErrInvalidYear
		}
		if _, err := s.tr.SetPeriod(ctx, core.Period{Month: month, Year: year}); err != nil {
			return err
		}
	default:
		return errUsage
	}
	snap, ok := s.tr.Stats()
	fmt.Fprintln(s.out, renderStats(s.printer, s.tr.Period(), snap, ok))
	return nil
}

// modeChoices is "all|cash|upi|card|other".
func modeChoices() string {
	names := []string{core.ModeAll}
	for _, m := range core.Modes() {
		names = append(names, m.String())
	}
	return strings.Join(names, "|")
}

func (s *shell) help() {
	commands := [][2]string{
		{"login [user]", "log in (password is prompted)"},
		{"register <user>", "create an account"},
		{"logout", "end the session"},
		{"whoami", "show the session state"},
		{"add <name> <type> <qty> <price> <mode> [note]", "record an expense"},
		{"rm <id>", "delete an entry after confirmation"},
		{"list", "show entries passing the filter"},
		{"search <term>", "filter by name, type or note"},
		{"mode <" + modeChoices() + ">", "filter by payment mode"},
		{"stats [month year]", "show or select the monthly stats"},
		{"refresh", "reload entries and stats"},
		{"quit", "leave the shell"},
	}
	for _, c := range commands {
		fmt.Fprintf(s.out, "%-46s %s\n", c[0], c[1])
	}
}
