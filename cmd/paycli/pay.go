package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"studysphere/pkg/payment/types"
	"studysphere/pkg/poller"
)

type payOptions struct {
	amount      string
	currency    string
	phone       string
	email       string
	plan        string
	pollOptions poller.Config
}

func payCmd(flags *globalFlags) *cobra.Command {
	opts := &payOptions{}

	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Start a payment and wait until it is confirmed",
		Long: `Sends an STK push to the phone, then checks the payment status
until it completes, fails, or the polling budget runs out.`,
		Example: `  paycli pay --plan premium --phone 254712345678
  paycli pay --amount 500 --phone 254712345678`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runPay(ctx, cmd.OutOrStdout(), flags, opts)
		},
	}

	cmd.Flags().StringVar(&opts.amount, "amount", "", "amount in major units, e.g. 500")
	cmd.Flags().StringVar(&opts.currency, "currency", "KES", "ISO 4217 currency")
	cmd.Flags().StringVar(&opts.phone, "phone", "", "M-Pesa phone number, e.g. 254712345678")
	cmd.Flags().StringVar(&opts.email, "email", "", "payer email")
	cmd.Flags().StringVar(&opts.plan, "plan", "", "subscription plan code (basic, premium, pro)")
	cmd.Flags().DurationVar(&opts.pollOptions.InitialDelay, "initial-delay", poller.DefaultInitialDelay, "wait before the first status check")
	cmd.Flags().DurationVar(&opts.pollOptions.Interval, "interval", poller.DefaultInterval, "time between status checks")
	cmd.Flags().IntVar(&opts.pollOptions.MaxAttempts, "max-attempts", poller.DefaultMaxAttempts, "maximum number of status checks")
	cmd.Flags().DurationVar(&opts.pollOptions.MaxWait, "max-wait", poller.DefaultMaxWait, "maximum time to wait for confirmation")

	return cmd
}

func runPay(ctx context.Context, w io.Writer, flags *globalFlags, opts *payOptions) error {
	api := flags.client()
	// 轮询通知在其他 goroutine 中输出
	out := &lockedWriter{w: w}

	req := &types.Request{
		Currency:    strings.ToUpper(opts.currency),
		PhoneNumber: opts.phone,
		Email:       opts.email,
	}

	switch {
	case opts.plan != "":
		plans, err := api.Plans(ctx)
		if err != nil {
			return err
		}
		found := false
		for _, p := range plans {
			if strings.EqualFold(p.Code, opts.plan) {
				req.Amount, req.Currency, req.PlanLabel = p.Amount, p.Currency, p.Name
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown plan %q", opts.plan)
		}
	case opts.amount != "":
		amount, err := decimal.NewFromString(opts.amount)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", opts.amount, err)
		}
		req.Amount = amount
	default:
		return errors.New("either --plan or --amount is required")
	}

	orchestrator := poller.New(api, api, poller.WithConfig(opts.pollOptions))

	attempt, err := orchestrator.Start(ctx, req, func(u poller.Update) {
		printUpdate(out, u)
	})
	if err != nil {
		return fmt.Errorf("payment could not be started: %w", err)
	}

	fmt.Fprintf(out, "Check your phone and enter your M-Pesa PIN to pay %s %s.\n", req.Amount.StringFixed(2), req.Currency)

	select {
	case <-attempt.Done():
	case <-ctx.Done():
		attempt.Cancel()
		return ctx.Err()
	}

	switch attempt.State() {
	case poller.StateSucceeded:
		fmt.Fprintln(out, "Payment confirmed.")
		return nil
	case poller.StateFailed:
		return errors.New("payment failed, please try again")
	default:
		fmt.Fprintf(out, "Still waiting for confirmation. Run `paycli status %s` later to check again.\n", attempt.Reference())
		return nil
	}
}

func printUpdate(out io.Writer, u poller.Update) {
	switch {
	case u.Err != nil && u.State == poller.StatePolling:
		fmt.Fprintf(out, "[%d] status check failed, will retry: %v\n", u.Attempt, u.Err)
	case u.Err != nil:
		fmt.Fprintf(out, "%s: %v\n", u.State, u.Err)
	case u.Attempt > 0:
		fmt.Fprintf(out, "[%d] %s (%s)\n", u.Attempt, u.State, u.Status)
	default:
		fmt.Fprintf(out, "%s %s\n", u.State, u.Reference)
	}
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
