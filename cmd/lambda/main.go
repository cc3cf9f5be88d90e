package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vignesh-goutham/marketsim/pkg/alpaca"
	"github.com/vignesh-goutham/marketsim/pkg/config"
	"github.com/vignesh-goutham/marketsim/pkg/dynamodb"
	"github.com/vignesh-goutham/marketsim/pkg/marketdata"
	"github.com/vignesh-goutham/marketsim/pkg/notification"
)

// newHandler wires the handler from environment configuration
func newHandler(ctx context.Context) (*handler, error) {
	cfg, err := config.Load(os.Getenv("MARKETSIM_CONFIG"))
	if err != nil {
		return nil, err
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	var source marketdata.PriceSource
	switch cfg.Data.Source {
	case config.SourceAlpaca:
		ac := alpaca.DefaultConfig()
		ac.APIKey = cfg.Data.AlpacaAPIKey
		ac.APISecret = cfg.Data.AlpacaSecretKey
		ac.CalendarSymbol = cfg.Data.CalendarSymbol
		s, err := alpaca.NewSource(ac)
		if err != nil {
			return nil, fmt.Errorf("error creating alpaca client: %w", err)
		}
		source = s
	default:
		source = marketdata.NewCSVSource(cfg.Data.CSVDir, cfg.Data.CalendarSymbol)
	}

	h := &handler{
		cfg:      cfg,
		source:   source,
		notifier: notification.NewDiscordNotificationService(cfg.Notify.DiscordWebhookURL),
	}
	if cfg.Store.TableName != "" {
		store, err := dynamodb.NewService(ctx, cfg.Store.DynamoDBRegion, cfg.Store.TableName)
		if err != nil {
			return nil, err
		}
		h.store = store
	}
	return h, nil
}

func main() {
	h, err := newHandler(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize handler")
	}
	lambda.Start(h.Handle)
}
