// mpesa-poll drives the full payment flow against a running service from the
// command line: initiate an STK push, then poll the status endpoint until the
// payment succeeds, fails, or times out. Ctrl+C cancels polling.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mpesapay/internal/domain"
	"mpesapay/internal/poller"
)

func main() {
	var (
		serverURL   = flag.String("server", "http://localhost:8080", "payment service base URL")
		phoneNumber = flag.String("phone", "", "payer phone number, e.g. 254712345678")
		amount      = flag.Int64("amount", 0, "amount in whole KES")
		interval    = flag.Duration("interval", 3*time.Second, "status poll interval")
		maxAttempts = flag.Int("attempts", 60, "maximum status polls before giving up")
	)
	flag.Parse()

	if *phoneNumber == "" || *amount <= 0 {
		fmt.Fprintln(os.Stderr, "usage: mpesa-poll -phone 2547XXXXXXXX -amount N [-server URL]")
		os.Exit(2)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := poller.NewClient(*serverURL)

	resp, err := client.InitiateSTKPush(ctx, *phoneNumber, *amount)
	if err != nil {
		logger.Fatal("Payment initiation failed", zap.Error(err))
	}
	if resp.CheckoutRequestID == "" {
		logger.Fatal("Gateway accepted the request but returned no CheckoutRequestID",
			zap.String("response_description", resp.ResponseDescription))
	}
	logger.Info("STK push sent, complete the payment on your phone",
		zap.String("checkout_request_id", resp.CheckoutRequestID),
		zap.Int64("amount", *amount),
	)

	p := poller.New(client, *interval, *maxAttempts, logger.With(zap.String("component", "Poller")))
	result, err := p.Wait(ctx, *phoneNumber)
	if err != nil {
		logger.Fatal("Polling stopped", zap.Error(err))
	}

	switch result.Status {
	case domain.PaymentStatusSuccess:
		logger.Info("Payment successful!", zap.Int("attempts", result.Attempts))
		// Give the user a beat to read the confirmation, as the web flow does.
		time.Sleep(1 * time.Second)
		if result.Record != nil && result.Record.MpesaReceiptNumber != nil {
			fmt.Printf("Receipt: %s\n", *result.Record.MpesaReceiptNumber)
		}
	case domain.PaymentStatusFailed:
		reason := "Payment failed. Please try again."
		if result.Record != nil && result.Record.Reason != nil {
			reason = *result.Record.Reason
		}
		logger.Error("Payment failed", zap.String("reason", reason))
		os.Exit(1)
	case domain.PaymentStatusTimeout:
		logger.Error("No payment confirmation received in time",
			zap.Int("attempts", result.Attempts))
		os.Exit(1)
	}
}
