package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/retail-bank-ledger/internal/config"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/events"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/events/kafka"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/interfaces"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/ledger"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/models"
	"github.com/sheikh-saqib/retail-bank-ledger/internal/storage"
)

const usage = `usage: ledger [-env dir] <command> [args]

commands:
  accounts
  customers
  history <account>
  deposit <account> <amount>
  withdraw <account> <amount>
  transfer <from> <to> <amount>
  open-savings <customer>
  open-checking <customer> <limit>
  close <customer> <account>
  register <name> <surname> <yyyy-mm-dd> [address]
`

func main() {
	envDir := flag.String("env", ".", "directory holding the optional .env file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	os.Exit(serve(*envDir, flag.Args()))
}

// serve returns the exit status so deferred closes run before the process ends.
func serve(envDir string, args []string) int {
	cfg, err := config.LoadConfig(envDir)
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Printf("failed to open %s store: %v", cfg.Backend, err)
		return 1
	}
	defer store.Close()

	var publisher interfaces.EventPublisher = events.Discard{}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		p := kafka.NewPublisher(brokers)
		defer p.Close()
		publisher = p
	}

	l := ledger.New(store, ledger.WithPublisher(publisher, cfg.KafkaTopic), ledger.WithLogger(logger))
	if err := l.Load(ctx); err != nil {
		log.Printf("failed to load ledger: %v", err)
		return 1
	}

	if err := run(ctx, l, args, os.Stdout); err != nil {
		if ledger.IsRejection(err) {
			fmt.Fprintln(os.Stderr, "rejected:", err)
			return 1
		}
		log.Print(err)
		return 1
	}
	return 0
}

var errUsage = errors.New("wrong arguments")

func run(ctx context.Context, l *ledger.Ledger, args []string, out io.Writer) error {
	cmd, args := args[0], args[1:]
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s: %w\n%s", cmd, errUsage, usage)
		}
		return nil
	}

	switch cmd {
	case "accounts":
		printAccounts(out, l.Accounts())
		return nil

	case "customers":
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tBORN\tACCOUNTS")
		for _, c := range l.Customers() {
			fmt.Fprintf(w, "%d\t%s %s\t%s\t%s\n", c.ID, c.Name, c.Surname,
				c.DateOfBirth.Format(models.DateLayout), strings.Join(c.AccountNumbers, " "))
		}
		return w.Flush()

	case "history":
		if err := need(1); err != nil {
			return err
		}
		legs, err := l.History(args[0])
		if err != nil {
			return err
		}
		printLegs(out, legs)
		return nil

	case "deposit", "withdraw":
		if err := need(2); err != nil {
			return err
		}
		amount, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		var legs []models.Transaction
		if cmd == "deposit" {
			legs, err = l.Deposit(ctx, args[0], amount)
		} else {
			legs, err = l.Withdraw(ctx, args[0], amount)
		}
		if err != nil {
			return err
		}
		printLegs(out, legs)
		return nil

	case "transfer":
		if err := need(3); err != nil {
			return err
		}
		amount, err := parseAmount(args[2])
		if err != nil {
			return err
		}
		legs, err := l.Transfer(ctx, args[0], args[1], amount)
		if err != nil {
			return err
		}
		printLegs(out, legs)
		return nil

	case "open-savings":
		if err := need(1); err != nil {
			return err
		}
		id, err := parseCustomer(args[0])
		if err != nil {
			return err
		}
		a, err := l.OpenSavings(ctx, id)
		if err != nil {
			return err
		}
		printAccounts(out, []*models.Account{a})
		return nil

	case "open-checking":
		if err := need(2); err != nil {
			return err
		}
		id, err := parseCustomer(args[0])
		if err != nil {
			return err
		}
		limit, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		a, err := l.OpenChecking(ctx, id, limit)
		if err != nil {
			return err
		}
		printAccounts(out, []*models.Account{a})
		return nil

	case "close":
		if err := need(2); err != nil {
			return err
		}
		id, err := parseCustomer(args[0])
		if err != nil {
			return err
		}
		if err := l.DeleteAccount(ctx, id, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(out, "account %s closed\n", args[1])
		return nil

	case "register":
		if err := need(3); err != nil {
			return err
		}
		born, err := time.Parse(models.DateLayout, args[2])
		if err != nil {
			return fmt.Errorf("%w: date of birth: %v", ledger.ErrInvalidCustomer, err)
		}
		profile := models.Customer{Name: args[0], Surname: args[1], DateOfBirth: born}
		if len(args) > 3 {
			profile.Address = strings.Join(args[3:], " ")
		}
		c, err := l.RegisterCustomer(ctx, profile)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "customer %d registered\n", c.ID)
		return nil

	default:
		return fmt.Errorf("unknown command %q: %w\n%s", cmd, errUsage, usage)
	}
}

func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ledger.ErrInvalidAmount, s)
	}
	return amount, nil
}

func parseCustomer(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ledger.ErrCustomerNotFound, s)
	}
	return id, nil
}

func printAccounts(out io.Writer, accounts []*models.Account) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NUMBER\tIBAN\tVARIANT\tBALANCE\tCREDIT LIMIT")
	for _, a := range accounts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.Number, a.IBAN(), a.Variant, a.Balance.StringFixed(2), a.CreditLimit.StringFixed(2))
	}
	w.Flush()
}

func printLegs(out io.Writer, legs []models.Transaction) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tACCOUNT\tAMOUNT\tDATE\tKIND")
	for _, t := range legs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", t.Sequence, t.AccountNumber, t.SignedAmount(), t.Date.Format(models.DateLayout), t.Description())
	}
	w.Flush()
}
