package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goliatone/go-registration"
	"github.com/goliatone/go-registration/config"
	"github.com/goliatone/go-registration/internal/app"
	"github.com/google/uuid"
	"golang.org/x/term"
)

const usage = `usage: accountctl [-env file] <command> [args]

commands:
  migrate                          apply database migrations
  createsuperuser -email E         create an active staff superuser
  createuser -email E              create an active account
  activate EMAIL...                activate pending accounts
  resend EMAIL...                  resend activation emails (expired keys are skipped)
  pending                          list accounts waiting for activation
  setpassword -email E             replace an account password
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("accountctl", flag.ContinueOnError)
	envFile := global.String("env", "", "dotenv file to load")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := global.Parse(args); err != nil {
		return err
	}

	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}

	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	host, _ := os.Hostname()
	ctx = registration.WithRequestInfo(ctx, registration.RequestInfo{
		UserAgent: "accountctl",
		Host:      host,
	})

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "migrate":
		return migrate(ctx, a)
	case "createsuperuser":
		return createAccount(ctx, a, rest, true)
	case "createuser":
		return createAccount(ctx, a, rest, false)
	case "activate":
		return activate(ctx, a, rest)
	case "resend":
		return resend(ctx, a, rest)
	case "pending":
		return pending(ctx, a)
	case "setpassword":
		return setPassword(ctx, a, rest)
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func migrate(ctx context.Context, a *app.App) error {
	group, err := registration.Migrate(ctx, a.DB)
	if err != nil {
		return err
	}
	if group == nil || group.IsZero() {
		fmt.Println("no new migrations")
		return nil
	}
	fmt.Println("applied", group.String())
	return nil
}

func createAccount(ctx context.Context, a *app.App, args []string, superuser bool) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	first := fs.String("first-name", "", "first name")
	last := fs.String("last-name", "", "last name")
	noPassword := fs.Bool("no-password", false, "create without a usable password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	msg := registration.CreateAccountMessage{
		Email:     *email,
		FirstName: *first,
		LastName:  *last,
	}

	if superuser || !*noPassword {
		password, err := promptPassword()
		if err != nil {
			return err
		}
		msg.Password = password
	}

	var (
		account *registration.Account
		err     error
	)
	if superuser {
		account, err = a.Create.CreateSuperuser(ctx, msg)
	} else {
		account, err = a.Create.CreateUser(ctx, msg)
	}
	if err != nil {
		return err
	}

	fmt.Printf("created %s (%s)\n", account.Email, account.ID)
	return nil
}

func activate(ctx context.Context, a *app.App, emails []string) error {
	ids, err := resolveIDs(ctx, a, emails)
	if err != nil {
		return err
	}

	report, err := a.Admin.ActivateAccounts(ctx, ids)
	if err != nil {
		return err
	}
	printReport("activated", report)
	return nil
}

func resend(ctx context.Context, a *app.App, emails []string) error {
	ids, err := resolveIDs(ctx, a, emails)
	if err != nil {
		return err
	}

	report, err := a.Admin.ResendActivationEmails(ctx, ids)
	if err != nil {
		return err
	}
	printReport("sent", report)
	return nil
}

func pending(ctx context.Context, a *app.App) error {
	accounts, err := a.Admin.PendingAccounts(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EMAIL\tCREATED\tEXPIRES\tEXPIRED")
	for _, p := range accounts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n",
			p.Account.Email,
			p.Account.CreatedAt.Format(time.RFC3339),
			p.ExpiresAt.Format(time.RFC3339),
			p.Expired,
		)
	}
	return w.Flush()
}

func setPassword(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("setpassword", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	account, err := a.Repo.Accounts().FindByEmail(ctx, *email)
	if err != nil {
		return err
	}

	password, err := promptPassword()
	if err != nil {
		return err
	}

	if err := a.Admin.SetPassword(ctx, account.ID, password); err != nil {
		return err
	}
	fmt.Println("password updated for", account.Email)
	return nil
}

func resolveIDs(ctx context.Context, a *app.App, emails []string) ([]uuid.UUID, error) {
	if len(emails) == 0 {
		return nil, errors.New("no accounts selected")
	}

	ids := make([]uuid.UUID, 0, len(emails))
	for _, email := range emails {
		account, err := a.Repo.Accounts().FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", email, err)
		}
		ids = append(ids, account.ID)
	}
	return ids, nil
}

func printReport(verb string, report *registration.AdminReport) {
	for _, account := range report.Processed {
		fmt.Printf("%s %s\n", verb, account.Email)
	}
	for _, skipped := range report.Skipped {
		fmt.Printf("skipped %s: %s\n", skipped.Account.Email, skipped.Reason)
	}
}

func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("password prompt requires a terminal")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}

	fmt.Fprint(os.Stderr, "Password (again): ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}

	if string(first) != string(second) {
		return "", errors.New(registration.PasswordMismatchMessage)
	}

	password := strings.TrimRight(string(first), "\r\n")
	if password == "" {
		return "", errors.New("password can not be empty")
	}
	return password, nil
}
