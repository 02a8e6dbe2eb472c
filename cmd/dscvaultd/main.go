package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"dscvault/config"
	"dscvault/core/events"
	"dscvault/crypto"
	"dscvault/native/collateral"
	"dscvault/observability/logging"
	"dscvault/oracle"
	"dscvault/rpc"
	"dscvault/state"
	"dscvault/storage"
	"dscvault/token"
)

const debtSymbol = "DSC"

// moduleAddress is the engine custody account. Collateral pulled from users
// and debt tokens pulled for burning both land here.
var moduleAddress = crypto.NewAddress(crypto.DSCPrefix, []byte("collateral-vault-mod"))

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	var logSink io.Writer = os.Stdout
	if strings.TrimSpace(cfg.LogFile) != "" {
		logSink = logging.RotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
	}
	logger := logging.SetupWithWriter("dscvaultd", cfg.Environment, logSink)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	assets, feeds, handles, err := buildCollateral(cfg)
	if err != nil {
		logger.Error("Failed to build collateral registry", slog.Any("error", err))
		os.Exit(1)
	}

	debtLedger := token.NewLedger(debtSymbol)
	debtHandle := token.Bind(debtLedger, moduleAddress)

	params := collateral.RiskParameters{
		LiquidationThresholdBps: cfg.Engine.LiquidationThresholdBps,
		LiquidationBonusBps:     cfg.Engine.LiquidationBonusBps,
	}
	engine, err := collateral.NewEngine(moduleAddress, assets, feeds, debtHandle, params)
	if err != nil {
		logger.Error("Failed to construct collateral engine", slog.Any("error", err))
		os.Exit(1)
	}
	engine.SetState(state.NewLedger(db))
	engine.SetEmitter(events.NewLogEmitter(logger))

	directory := token.NewDirectory()
	for i, asset := range assets {
		directory.Register(asset, handles[i])
	}
	engine.SetTokenSource(directory)

	if cfg.MaxFeedAgeSeconds > 0 {
		engine.SetMaxFeedAge(time.Duration(cfg.MaxFeedAgeSeconds) * time.Second)
	}

	logger.Info("collateral engine ready",
		"assets", len(assets),
		"thresholdBps", params.LiquidationThresholdBps,
		"bonusBps", params.LiquidationBonusBps,
	)

	server := rpc.NewServer(engine, logger, cfg.JWTSecret)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// buildCollateral maps the configured collateral entries to parallel asset,
// feed, and token handle slices.
func buildCollateral(cfg *config.Config) ([]ethcommon.Address, []oracle.Feed, []*token.Handle, error) {
	httpClient := &http.Client{Timeout: 10 * time.Second}

	assets := make([]ethcommon.Address, 0, len(cfg.Collateral))
	feeds := make([]oracle.Feed, 0, len(cfg.Collateral))
	handles := make([]*token.Handle, 0, len(cfg.Collateral))
	for _, entry := range cfg.Collateral {
		if !ethcommon.IsHexAddress(entry.Token) {
			return nil, nil, nil, fmt.Errorf("collateral %s: invalid token address %q", entry.Symbol, entry.Token)
		}
		asset := ethcommon.HexToAddress(entry.Token)

		var feed oracle.Feed
		switch {
		case strings.TrimSpace(entry.FeedURL) != "":
			feed = oracle.NewHTTPFeed(httpClient, entry.FeedURL, entry.FeedAPIKey)
		default:
			price, ok := new(big.Int).SetString(strings.TrimSpace(entry.StaticPrice), 10)
			if !ok || price.Sign() <= 0 {
				return nil, nil, nil, fmt.Errorf("collateral %s: invalid static price %q", entry.Symbol, entry.StaticPrice)
			}
			feed = oracle.NewStaticFeed(price, entry.FeedDecimals)
		}

		assets = append(assets, asset)
		feeds = append(feeds, feed)
		handles = append(handles, token.Bind(token.NewLedger(entry.Symbol), moduleAddress))
	}
	return assets, feeds, handles, nil
}
