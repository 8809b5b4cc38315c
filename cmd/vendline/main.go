// Command vendline is an interactive terminal client for a remote vending
// machine service. It wires configuration, logging, telemetry, the HTTP
// client, and the transaction orchestrator, then maps console commands to
// user intents.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vendline/vendline/client"
	"github.com/vendline/vendline/core"
	"github.com/vendline/vendline/resilience"
	"github.com/vendline/vendline/session"
	"github.com/vendline/vendline/telemetry"
	"github.com/vendline/vendline/ui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "vendline: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		baseURL    = flag.String("base-url", "", "vending service base URL (overrides VENDLINE_BASE_URL)")
		configFile = flag.String("config", "", "path to a YAML config file")
	)
	flag.Parse()

	var opts []core.Option
	if *configFile != "" {
		opts = append(opts, core.WithConfigFile(*configFile))
	}
	if *baseURL != "" {
		opts = append(opts, core.WithBaseURL(*baseURL))
	}

	cfg, err := core.NewConfig(opts...)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	logger := core.NewProductionLogger(cfg)

	var tel core.Telemetry = &core.NoOpTelemetry{}
	if cfg.TelemetryEnabled {
		provider, shutdown, err := telemetry.New("vendline")
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
		tel = provider
	}

	var clientOpts []client.Option
	if cfg.CircuitBreaker.Enabled {
		breaker := resilience.NewCircuitBreaker("vending", cfg.CircuitBreaker, logger)
		clientOpts = append(clientOpts, client.WithTransport(client.NewBreakerTransport(nil, breaker)))
	}
	vc := client.New(cfg, logger, tel, clientOpts...)

	var store core.Memory
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisStore, err := core.NewRedisStore(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			return fmt.Errorf("receipt journal: %w", err)
		}
		redisStore.SetLogger(logger)
		defer redisStore.Close()
		store = redisStore
	} else {
		memStore := core.NewMemoryStore()
		memStore.SetLogger(logger)
		store = memStore
	}
	journal := session.NewJournal(store, logger, 0)

	notifier := ui.NewConsoleNotifier(os.Stdout)
	orch := session.New(vc, logger,
		session.WithNotifier(notifier),
		session.WithJournal(journal),
	)

	ctx := context.Background()
	if err := orch.Load(ctx); err != nil {
		// The session stays unloaded; the user can inspect and quit, but a
		// restart is the only recovery path.
		logger.Error("Startup load failed", map[string]interface{}{
			"operation": "startup",
			"error":     err.Error(),
		})
	}

	grid := &ui.ProductGrid{Out: os.Stdout, OnSelect: func(id int) {
		_ = orch.SelectProduct(ctx, id)
	}}
	pad := &ui.CoinPad{
		Out: os.Stdout,
		Denominations: []decimal.Decimal{
			decimal.NewFromFloat(0.05),
			decimal.NewFromFloat(0.10),
			decimal.NewFromFloat(0.25),
			decimal.NewFromFloat(1.00),
			decimal.NewFromFloat(2.00),
		},
		OnInsert: func(amount decimal.Decimal) {
			_ = orch.InsertCoin(ctx, amount)
		},
	}
	cart := &ui.CartPanel{
		Out:        os.Stdout,
		OnPurchase: func() { _ = orch.Purchase(ctx) },
		OnCancel:   func() { _ = orch.Cancel(ctx) },
		OnRemove:   func(id int) { orch.RemoveFromCart(id) },
	}
	receiptView := &ui.ReceiptView{Out: os.Stdout, OnDismiss: orch.DismissReceipt}

	render := func() {
		snap := orch.Snapshot()
		if !snap.Loaded {
			fmt.Println("Vending machine data not loaded.")
			return
		}
		if snap.Degraded {
			fmt.Println("! Last operation timed out; machine state may be stale.")
		}
		grid.Render(snap)
		pad.Render(snap)
		cart.Render(snap)
		receiptView.Render(snap)
	}

	fmt.Println("vendline - type 'help' for commands")
	render()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "help":
			printHelp()
		case "show":
			render()
		case "coin":
			amount, err := parseAmount(fields)
			if err != nil {
				fmt.Println(err)
				continue
			}
			pad.Insert(orch.Snapshot(), amount)
			render()
		case "select":
			id, err := parseID(fields)
			if err != nil {
				fmt.Println(err)
				continue
			}
			grid.Select(orch.Snapshot(), id)
			render()
		case "remove":
			id, err := parseID(fields)
			if err != nil {
				fmt.Println(err)
				continue
			}
			cart.Remove(orch.Snapshot(), id)
			render()
		case "buy":
			cart.Purchase(orch.Snapshot())
			render()
		case "cancel":
			cart.Cancel(orch.Snapshot())
			render()
		case "dismiss":
			receiptView.Dismiss()
			render()
		case "receipt":
			id, err := parseID(fields)
			if err != nil {
				fmt.Println(err)
				continue
			}
			if r, err := orch.FetchReceipt(ctx, id); err == nil {
				snap := orch.Snapshot()
				snap.ActiveReceipt = r
				receiptView.Render(snap)
			}
		case "history":
			receipts, err := orch.History(ctx)
			if err != nil {
				fmt.Printf("history unavailable: %v\n", err)
				continue
			}
			if len(receipts) == 0 {
				fmt.Println("No journaled receipts.")
				continue
			}
			for i := range receipts {
				snap := core.Snapshot{ActiveReceipt: &receipts[i]}
				receiptView.Render(snap)
			}
		case "quit", "exit":
			return nil
		default:
			fmt.Printf("unknown command %q - type 'help'\n", fields[0])
		}
	}
}

func parseAmount(fields []string) (decimal.Decimal, error) {
	if len(fields) < 2 {
		return decimal.Zero, fmt.Errorf("usage: coin <amount>")
	}
	amount, err := decimal.NewFromString(fields[1])
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("invalid amount %q", fields[1])
	}
	return amount, nil
}

func parseID(fields []string) (int, error) {
	if len(fields) < 2 {
		return 0, fmt.Errorf("usage: %s <id>", fields[0])
	}
	id, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", fields[1])
	}
	return id, nil
}

func printHelp() {
	fmt.Print(`commands:
  show           render machine state
  coin <amount>  insert a coin (e.g. coin 0.25)
  select <id>    add a product to the cart
  remove <id>    remove a product from the cart (local only)
  buy            complete the purchase
  cancel         cancel the transaction and return coins
  dismiss        dismiss the displayed receipt
  receipt <id>   fetch a past transaction by id
  history        list journaled receipts
  quit           exit
`)
}
