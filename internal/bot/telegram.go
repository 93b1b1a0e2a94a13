package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"kasparro-backend/internal/domain"

	tele "gopkg.in/telebot.v3"
)

const replyTimeout = 5 * time.Second

type PriceLookup interface {
	TopBySymbol(ctx context.Context, symbol string) (*domain.NormalizedRecord, error)
}

type CheckpointReader interface {
	Checkpoints(ctx context.Context) ([]domain.Checkpoint, error)
}

var newBot = tele.NewBot

// StartTelegramBot serves read-only commands. It is a no-op without a token.
func StartTelegramBot(token string, prices PriceLookup, checkpoints CheckpointReader) {
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return
	}
	b, err := newBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		log.Printf("failed to create Telegram bot: %v", err)
		return
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/status", func(c tele.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
		defer cancel()
		return c.Send(statusReply(ctx, checkpoints))
	})

	b.Handle("/price", func(c tele.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
		defer cancel()
		return c.Send(priceReply(ctx, prices, c.Args()))
	})

	log.Println("Telegram bot started")
	go b.Start()
}

func statusReply(ctx context.Context, checkpoints CheckpointReader) string {
	cps, err := checkpoints.Checkpoints(ctx)
	if err != nil {
		return fmt.Sprintf("Error reading pipeline status: %v", err)
	}
	if len(cps) == 0 {
		return "No pipeline runs recorded yet"
	}

	var sb strings.Builder
	sb.WriteString("Pipeline status\n")
	for _, cp := range cps {
		fmt.Fprintf(&sb, "%s: %s", cp.SourceName, cp.LastRunStatus)
		if cp.LastEndTime != nil {
			fmt.Fprintf(&sb, " at %s", cp.LastEndTime.UTC().Format(time.RFC3339))
		}
		fmt.Fprintf(&sb, " (%d records)", cp.RecordsProcessed)
		if cp.LastError != "" {
			fmt.Fprintf(&sb, "\n  error: %s", cp.LastError)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func priceReply(ctx context.Context, prices PriceLookup, args []string) string {
	if len(args) == 0 {
		return "Usage: /price BTC"
	}
	symbol := domain.NormalizeSymbol(args[0])
	rec, err := prices.TopBySymbol(ctx, symbol)
	if err != nil {
		return fmt.Sprintf("Error fetching price for %s: %v", symbol, err)
	}
	if rec == nil {
		return fmt.Sprintf("No data for %s", symbol)
	}
	return fmt.Sprintf(
		"%s (%s)\nPrice: $%.2f\n24h Change: %.2f%%\n24h Volume: $%.0f\nMarket Cap: $%.0f\nSource: %s",
		rec.Symbol, rec.Name, rec.CurrentPriceUSD, rec.PercentChange24h, rec.Volume24hUSD, rec.MarketCapUSD, rec.SourceName,
	)
}
