// Feedtap — a diagnostic tool that tails Polymarket CLOB realtime feeds.
//
// It loads a YAML config, authenticates against the CLOB API, subscribes
// to the configured market-data assets (and optionally the account's own
// order/trade feed), and prints every event through slog until it
// receives SIGINT/SIGTERM.
//
// Layout:
//
//	main.go             — entry point: config, wiring, signal handling
//	internal/config     — YAML config with POLY_* env overrides
//	pkg/client          — typestate REST client (public → authed → builder)
//	pkg/ws              — reconnecting WebSocket channels and routing
//	pkg/order           — limit/market order builders
//	pkg/book            — local order book mirror
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"polymarket-sdk/internal/config"
	"polymarket-sdk/pkg/apierr"
	"polymarket-sdk/pkg/auth"
	"polymarket-sdk/pkg/book"
	"polymarket-sdk/pkg/client"
	"polymarket-sdk/pkg/types"
	"polymarket-sdk/pkg/ws"
)

func main() {
	cfgPath := "configs/feedtap.yaml"
	if p := os.Getenv("POLY_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	if err := run(cfg, logger); err != nil {
		logger.Error("feedtap failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	signer, err := auth.NewSigner(cfg.Wallet.PrivateKey, cfg.Wallet.ChainID)
	if err != nil {
		return err
	}

	host := cfg.API.CLOBBaseURL
	if host == "" {
		host = client.DefaultHost
	}
	clientOpts := []client.Option{client.WithLogger(logger)}
	if cfg.API.WSBaseURL != "" {
		clientOpts = append(clientOpts, client.WithWSBase(cfg.API.WSBaseURL))
	}
	cl := client.NewClient(host, signer, clientOpts...)
	defer cl.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	authOpts := client.AuthOptions{
		SignatureType: types.SignatureType(cfg.Wallet.SignatureType),
	}
	if cfg.Wallet.FunderAddress != "" {
		authOpts.Funder = common.HexToAddress(cfg.Wallet.FunderAddress)
	}
	if cfg.API.ApiKey != "" {
		authOpts.Credentials = &auth.Credentials{
			Key:        cfg.API.ApiKey,
			Secret:     cfg.API.Secret,
			Passphrase: cfg.API.Passphrase,
		}
	}
	ac, err := cl.Authenticate(ctx, authOpts)
	if err != nil {
		return err
	}

	if cfg.Feed.HeartbeatInterval > 0 {
		ac.StartHeartbeat(cfg.Feed.HeartbeatInterval)
		defer ac.StopHeartbeat()
	}

	var wg sync.WaitGroup
	if len(cfg.Feed.AssetIDs) > 0 {
		stream, err := ac.WatchMarkets(client.MarketSubscription{AssetIDs: cfg.Feed.AssetIDs})
		if err != nil {
			return err
		}
		defer stream.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			tailMarket(ctx, stream, logger.With("channel", "market"))
		}()
		logger.Info("tailing market channel", "assets", len(cfg.Feed.AssetIDs))
	}
	if len(cfg.Feed.UserMarkets) > 0 {
		stream, err := ac.WatchUser(cfg.Feed.UserMarkets)
		if err != nil {
			return err
		}
		defer stream.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			tail(ctx, stream, logger.With("channel", "user"))
		}()
		logger.Info("tailing user channel", "markets", len(cfg.Feed.UserMarkets))
	}

	<-ctx.Done()
	logger.Info("received shutdown signal")
	wg.Wait()
	return nil
}

// tail prints stream events until the context is cancelled or the stream
// closes. A lag report is a warning, not a reason to stop.
func tail(ctx context.Context, stream *ws.Stream, logger *slog.Logger) {
	for {
		ev, err := next(ctx, stream, logger)
		if err != nil {
			return
		}
		logger.Info("event", "kind", ev.Kind().String(), "key", ev.RoutingKey())
	}
}

// tailMarket folds book snapshots and deltas into local mirrors and
// prints the derived midpoint alongside each event.
func tailMarket(ctx context.Context, stream *ws.Stream, logger *slog.Logger) {
	mirrors := make(map[string]*book.Book)
	mirror := func(assetID string) *book.Book {
		b, ok := mirrors[assetID]
		if !ok {
			b = book.New(assetID)
			mirrors[assetID] = b
		}
		return b
	}

	for {
		ev, err := next(ctx, stream, logger)
		if err != nil {
			return
		}

		switch e := ev.(type) {
		case *types.BookEvent:
			if err := mirror(e.AssetID).ApplyBookEvent(e); err != nil {
				logger.Warn("book snapshot rejected", "asset", e.AssetID, "error", err)
				continue
			}
		case *types.PriceChangeEvent:
			if err := mirror(e.AssetID).ApplyPriceChange(e); err != nil {
				logger.Warn("price change rejected", "asset", e.AssetID, "error", err)
				continue
			}
		default:
			logger.Info("event", "kind", ev.Kind().String(), "key", ev.RoutingKey())
			continue
		}

		b := mirror(ev.RoutingKey())
		if mid, ok := b.Midpoint(); ok {
			bids, asks := b.Depth()
			logger.Info("book updated",
				"asset", ev.RoutingKey(), "mid", mid.String(), "bids", bids, "asks", asks)
		}
	}
}

// next pulls one event, treating lag as a warning and anything else
// fatal as end-of-stream.
func next(ctx context.Context, stream *ws.Stream, logger *slog.Logger) (types.Event, error) {
	for {
		ev, err := stream.Next(ctx)
		if err == nil {
			return ev, nil
		}
		var lagged *apierr.LaggedError
		switch {
		case errors.As(err, &lagged):
			logger.Warn("stream lagged, events dropped", "count", lagged.Count)
		case errors.Is(err, context.Canceled), errors.Is(err, apierr.ErrStreamClosed):
			return nil, err
		default:
			logger.Error("stream error", "error", err)
			return nil, err
		}
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
