package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/handler"
	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/go-shortlink/pkg/bootstrap"
	"github.com/wadjakorntonsri/go-shortlink/pkg/config"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/logger"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

const usage = "expected 'export', 'import', 'rebuild-filter' or 'token' subcommands"

// linkRecord is the export format. It carries the columns the API hides.
type linkRecord struct {
	domain.Link
	UserID  int64 `json:"user_id"`
	DelFlag int   `json:"del_flag"`
	DelTime int64 `json:"del_time"`
}

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importFile := importCmd.String("file", "", "JSON file to import")
	rebuildCmd := flag.NewFlagSet("rebuild-filter", flag.ExitOnError)
	tokenCmd := flag.NewFlagSet("token", flag.ExitOnError)
	tokenUser := tokenCmd.String("username", "", "user to issue the token for")
	tokenTTL := tokenCmd.Duration("ttl", 24*time.Hour, "token lifetime")

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg := config.Load()
	logger.Initialize(cfg.LogLevel, "console", cfg.AppEnv)
	ctx := context.Background()

	switch os.Args[1] {
	case "export":
		_ = exportCmd.Parse(os.Args[2:])
		repo, err := sqlite.NewSQLiteRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to db")
		}
		defer repo.Close()
		if err := doExport(ctx, repo.Links(), os.Stdout); err != nil {
			log.Fatal().Err(err).Msg("Export failed")
		}

	case "import":
		_ = importCmd.Parse(os.Args[2:])
		if *importFile == "" {
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		app := mustApp(ctx, cfg)
		defer app.Close()

		file, err := os.Open(*importFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open file")
		}
		defer file.Close()

		imported, skipped, err := doImport(ctx, app.Repo.Links(), app.LinkFilter, file)
		if err != nil {
			log.Fatal().Err(err).Msg("Import failed")
		}
		log.Info().Int("imported", imported).Int("skipped", skipped).Msg("Import finished")

	case "rebuild-filter":
		_ = rebuildCmd.Parse(os.Args[2:])
		app := mustApp(ctx, cfg)
		defer app.Close()

		links, users, err := app.RebuildFilters(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Rebuild failed")
		}
		log.Info().Int("links", links).Int("users", users).Msg("Filters rebuilt")

	case "token":
		_ = tokenCmd.Parse(os.Args[2:])
		if *tokenUser == "" {
			tokenCmd.PrintDefaults()
			os.Exit(1)
		}
		repo, err := sqlite.NewSQLiteRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to db")
		}
		defer repo.Close()

		user, err := repo.Users().FindByUsername(ctx, *tokenUser)
		if err != nil {
			log.Fatal().Err(err).Msg("Lookup failed")
		}
		if user == nil {
			log.Fatal().Str("username", *tokenUser).Msg("No such user")
		}
		token, err := handler.SignToken(cfg.JWTSecret, user.ID, *tokenTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("Signing failed")
		}
		fmt.Println(token)

	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func mustApp(ctx context.Context, cfg *config.Config) *bootstrap.App {
	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	return app
}

// doExport writes every link, including recycled and removed ones.
func doExport(ctx context.Context, links ports.LinkRepository, w io.Writer) error {
	all, err := links.Dump(ctx)
	if err != nil {
		return err
	}

	records := make([]linkRecord, 0, len(all))
	for _, l := range all {
		records = append(records, linkRecord{Link: l, UserID: l.UserID, DelFlag: l.DelFlag, DelTime: l.DelTime})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(records)
}

// doImport inserts the records of an export and registers each code with
// the link filter. Codes that are already live are skipped.
func doImport(ctx context.Context, links ports.LinkRepository, filter ports.ExistenceFilter, r io.Reader) (imported, skipped int, err error) {
	var records []linkRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return 0, 0, fmt.Errorf("decode: %w", err)
	}

	for _, rec := range records {
		l := rec.Link
		l.UserID, l.DelFlag, l.DelTime = rec.UserID, rec.DelFlag, rec.DelTime
		if l.FullShortURL == "" {
			l.FullShortURL = domain.LinkKey(l.Domain, l.ShortURI)
		}

		if err := links.Create(ctx, &l); err != nil {
			if errors.Is(err, ports.ErrDuplicateKey) {
				log.Warn().Str("short_url", l.FullShortURL).Msg("Skipping existing code")
				skipped++
				continue
			}
			return imported, skipped, fmt.Errorf("import %s: %w", l.FullShortURL, err)
		}

		if l.TotalPV > 0 || l.TotalUV > 0 || l.TotalUIP > 0 {
			delta := domain.VisitDelta{PV: l.TotalPV, UV: l.TotalUV, UIP: l.TotalUIP}
			if err := links.IncrementStats(ctx, l.Domain, l.ShortURI, delta); err != nil {
				log.Warn().Err(err).Str("short_url", l.FullShortURL).Msg("Failed to carry over stats")
			}
		}

		if err := filter.Add(ctx, domain.LinkKey(l.Domain, l.ShortURI)); err != nil {
			return imported, skipped, fmt.Errorf("filter add %s: %w", l.FullShortURL, err)
		}
		imported++
	}
	return imported, skipped, nil
}
