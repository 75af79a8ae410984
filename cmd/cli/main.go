package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/auth"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/common"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/config"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/connector"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/database"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/gcsexport"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/logger"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/models"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/notionsync"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/repositories/repomanager"
	"github.com/rs/zerolog"
)

const commandTimeout = 5 * time.Minute

func main() {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LoggerOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "migrate":
		runMigrate(log)
	case "create-key":
		runCreateKey(log)
	case "add-user":
		runAddUser(log)
	case "list-expenses":
		runListExpenses(log)
	case "export":
		runExport(log)
	case "sync-notion":
		runSyncNotion(log)
	case "parse":
		runParse(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Expenses Bot CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  migrate        Apply database migrations")
	fmt.Println("  create-key     Create an API key for a connector")
	fmt.Println("  add-user       Whitelist a Telegram user")
	fmt.Println("  list-expenses  List stored expenses")
	fmt.Println("  export         Export all expenses to GCS as JSON lines")
	fmt.Println("  sync-notion    Mirror all expenses into the Notion database")
	fmt.Println("  parse          Send a message to a running service")
	fmt.Println("  help           Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// env bundles what the database-backed commands need.
type env struct {
	cfg   config.Config
	scope *database.Scope
	repos repomanager.RepositoryManager
}

func openEnv(ctx context.Context, log zerolog.Logger) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	scope := database.New(database.WithLogger(log))
	if err := scope.Initialize(ctx, cfg.DatabaseURL()); err != nil {
		return nil, err
	}
	return &env{cfg: cfg, scope: scope, repos: repomanager.NewPostgresRepositoryManager()}, nil
}

func (e *env) close() {
	_ = e.scope.Shutdown()
}

// listExpenses reads expenses in their own unit of work. An empty
// telegramID lists every user's expenses.
func (e *env) listExpenses(ctx context.Context, telegramID string, limit int) ([]*models.Expense, error) {
	var out []*models.Expense
	err := e.scope.Run(ctx, func(ctx context.Context) error {
		h, err := e.scope.Handle(ctx)
		if err != nil {
			return err
		}
		if telegramID == "" {
			out, err = e.repos.Expenses(h).ListAll(ctx)
			return err
		}
		user, err := e.repos.Users(h).GetByTelegramID(ctx, telegramID)
		if err != nil {
			return err
		}
		out, err = e.repos.Expenses(h).ListByUser(ctx, user.ID, limit)
		return err
	})
	return out, err
}

func commandContext(log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	return logger.WithContext(ctx, log), cancel
}

func runMigrate(log zerolog.Logger) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	ctx, cancel := commandContext(log)
	defer cancel()

	e, err := openEnv(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer e.close()

	db, err := e.scope.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	if err := e.repos.RunMigrations(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	fmt.Println("Migrations applied.")
}

func runCreateKey(log zerolog.Logger) {
	fs := flag.NewFlagSet("create-key", flag.ExitOnError)
	description := fs.String("description", "", "What the key is used for")
	fs.Parse(os.Args[2:])

	ctx, cancel := commandContext(log)
	defer cancel()

	e, err := openEnv(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer e.close()

	var key *models.APIKey
	err = e.scope.Run(ctx, func(ctx context.Context) error {
		h, err := e.scope.Handle(ctx)
		if err != nil {
			return err
		}
		key, err = auth.CreateKey(ctx, e.repos.APIKeys(h), *description)
		return err
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create API key")
	}

	fmt.Printf("Created API key %d: %s\n", key.ID, key.Key)
}

func runAddUser(log zerolog.Logger) {
	fs := flag.NewFlagSet("add-user", flag.ExitOnError)
	telegramID := fs.String("telegram-id", "", "Telegram user ID to whitelist")
	fs.Parse(os.Args[2:])

	if *telegramID == "" {
		log.Fatal().Msg("Error: --telegram-id is required")
	}

	ctx, cancel := commandContext(log)
	defer cancel()

	e, err := openEnv(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer e.close()

	var user *models.User
	err = e.scope.Run(ctx, func(ctx context.Context) error {
		h, err := e.scope.Handle(ctx)
		if err != nil {
			return err
		}
		user, err = e.repos.Users(h).Create(ctx, *telegramID)
		return err
	})
	if errors.Is(err, common.ErrConflict) {
		fmt.Printf("User %s is already whitelisted.\n", *telegramID)
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to add user")
	}

	fmt.Printf("Whitelisted user %s (id %d).\n", user.TelegramID, user.ID)
}

func runListExpenses(log zerolog.Logger) {
	fs := flag.NewFlagSet("list-expenses", flag.ExitOnError)
	telegramID := fs.String("telegram-id", "", "Only list this user's expenses")
	limit := fs.Int("limit", 50, "Maximum number of expenses per user")
	fs.Parse(os.Args[2:])

	ctx, cancel := commandContext(log)
	defer cancel()

	e, err := openEnv(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer e.close()

	expenses, err := e.listExpenses(ctx, *telegramID, *limit)
	if errors.Is(err, common.ErrNotFound) {
		log.Fatal().Str("telegram_id", *telegramID).Msg("User not found")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list expenses")
	}

	fmt.Printf("\n=== Expenses (%d) ===\n", len(expenses))
	for _, exp := range expenses {
		fmt.Printf("%6d  %s  %-18s %10.2f  %s\n",
			exp.ID, exp.AddedAt.Format("2006-01-02 15:04"), exp.Category, exp.Amount, exp.Description)
	}
	fmt.Println()
}

func runExport(log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	bucket := fs.String("bucket", "", "GCS bucket name (defaults to GCS_BUCKET)")
	fs.Parse(os.Args[2:])

	ctx, cancel := commandContext(log)
	defer cancel()

	e, err := openEnv(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer e.close()

	if *bucket == "" {
		*bucket = e.cfg.GCS.Bucket
	}

	exporter, err := gcsexport.NewExporter(ctx, *bucket, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create exporter")
	}
	defer exporter.Close()

	expenses, err := e.listExpenses(ctx, "", 0)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list expenses")
	}

	uri, err := exporter.Export(ctx, expenses)
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	fmt.Printf("Exported %d expenses to %s\n", len(expenses), uri)
}

func runSyncNotion(log zerolog.Logger) {
	fs := flag.NewFlagSet("sync-notion", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "Show what would be done without making changes")
	fs.Parse(os.Args[2:])

	ctx, cancel := commandContext(log)
	defer cancel()

	e, err := openEnv(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer e.close()

	if !e.cfg.NotionEnabled() {
		log.Fatal().Msg("NOTION_TOKEN and NOTION_DATABASE_ID are required")
	}

	expenses, err := e.listExpenses(ctx, "", 0)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list expenses")
	}

	syncer := notionsync.NewSyncer(notionsync.NewNotionDatabase(e.cfg.Notion.Token, e.cfg.Notion.DatabaseID), log)
	stats, err := syncer.SyncAll(ctx, expenses, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Created %d, updated %d, archived %d, failed %d.\n", stats.Created, stats.Updated, stats.Deleted, stats.Failed)
}

func runParse(log zerolog.Logger) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	serviceURL := fs.String("url", os.Getenv("BOT_SERVICE_URL"), "Base URL of the service (or set BOT_SERVICE_URL)")
	apiKey := fs.String("api-key", os.Getenv("BOT_SERVICE_API_KEY"), "API key (or set BOT_SERVICE_API_KEY)")
	telegramID := fs.String("telegram-id", "", "Telegram user ID of the sender")
	text := fs.String("text", "", "Message text")
	fs.Parse(os.Args[2:])

	if *serviceURL == "" || *telegramID == "" || *text == "" {
		log.Fatal().Msg("Usage: cli parse -url URL -telegram-id ID -text TEXT")
	}

	ctx, cancel := commandContext(log)
	defer cancel()

	client := connector.New(*serviceURL, *apiKey, connector.WithLogger(log))
	reply, ok, err := client.Parse(ctx, *text, *telegramID)
	if err != nil {
		log.Fatal().Err(err).Msg("Parse failed")
	}
	if !ok {
		fmt.Println("(no reply: not an expense)")
		return
	}
	fmt.Println(reply)
}
