package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Shra1V32/server-rental-assistant/adapter"
	"github.com/Shra1V32/server-rental-assistant/planmanager"
	"github.com/Shra1V32/server-rental-assistant/rates"
)

var (
	addrFlag           = flag.String("addr", ":8080", "HTTP listen address")
	dbPathFlag         = flag.String("db", envOrDefault("PLANS_DB", "plans.db"), "SQLite database path")
	ratesPathFlag      = flag.String("rates", "conf/rates.json", "currency rate table path")
	telegramAPIFlag    = flag.String("telegram-api", "https://api.telegram.org", "Telegram Bot API base URL")
	operatorChatFlag   = flag.String("operator-chat", envOrDefault("OPERATOR_CHAT_ID", ""), "Telegram chat ID for operator prompts")
	tickIntervalFlag   = flag.Duration("tick-interval", 60*time.Second, "reconciliation tick interval")
	noticeHorizonFlag  = flag.Duration("notice-horizon", 12*time.Hour, "expiring-soon notice horizon")
	rotateOnExpiryFlag = flag.Bool("rotate-on-expiry", false, "rotate account credentials when a plan expires")
	sshHostFlag        = flag.String("ssh-host", envOrDefault("SSH_HOSTNAME", "localhost"), "SSH host shown in the connection banner")
	sshPortFlag        = flag.String("ssh-port", envOrDefault("SSH_PORT", "22"), "SSH port shown in the connection banner")
	notesPathFlag      = flag.String("notes", "", "optional notes file appended to the connection banner")
)

func main() {
	flag.Parse()

	table, err := rates.LoadTable(*ratesPathFlag)
	if err != nil {
		log.Fatalf("load rate table: %v", err)
	}

	db, err := sql.Open("sqlite", "file:"+*dbPathFlag)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(ctx); err != nil {
		cancel()
		log.Fatalf("ping database: %v", err)
	}
	cancel()

	notes := ""
	if *notesPathFlag != "" {
		raw, err := os.ReadFile(*notesPathFlag)
		if err != nil {
			log.Fatalf("read notes file: %v", err)
		}
		notes = string(raw)
	}

	notifier := adapter.TelegramNotifier(*telegramAPIFlag, os.Getenv("TELEGRAM_BOT_TOKEN"), 5*time.Second)
	if notifier == nil {
		log.Printf("TELEGRAM_BOT_TOKEN not set, notifications go to the process log")
		notifier = adapter.LogNotifier()
	}

	provisioner := adapter.NewSystemProvisioner(nil)

	manager, err := planmanager.NewManager(provisioner, notifier, table.Lookup, planmanager.Clock{}, db)
	if err != nil {
		log.Fatalf("construct manager: %v", err)
	}
	metrics := planmanager.NewMetrics()
	manager.SetMetrics(metrics)

	reconciler := planmanager.NewReconcilerFromManager(manager, planmanager.ReconcilerConfig{
		Interval:        *tickIntervalFlag,
		NoticeHorizon:   *noticeHorizonFlag,
		OperatorChannel: *operatorChatFlag,
		RotateOnExpiry:  *rotateOnExpiryFlag,
	})

	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	go reconciler.Run(ctx)

	server := &apiServer{
		manager: manager,
		banner: connectionBanner{
			SSHHost: *sshHostFlag,
			SSHPort: *sshPortFlag,
			Notes:   notes,
		},
	}
	mux := newMux(server, metrics)

	httpServer := &http.Server{
		Addr:    *addrFlag,
		Handler: mux,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
		cancel()
	}()

	log.Printf("plan-manager listening on %s", *addrFlag)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server: %v", err)
	}
}

func envOrDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
