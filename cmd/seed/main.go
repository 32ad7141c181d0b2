package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"yt-hotness/internal/app"
	"yt-hotness/internal/config"
	"yt-hotness/internal/domain"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var (
	loadEnvFunc    = godotenv.Load
	loadConfigFunc = config.Load
	bootstrapFunc  = app.Bootstrap
	exitFunc       = os.Exit
)

type catalogSyncer interface {
	SyncCategories(ctx context.Context, categories []int) ([]domain.CatalogSyncResult, error)
}

var newSyncer = func(a *app.App) catalogSyncer {
	return a.Catalog(a.Provider())
}

func main() {
	_ = loadEnvFunc()
	cfg := loadConfigFunc()

	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	categoryFlag := fs.String("category", "", "comma separated category ids (default CATALOG_CATEGORIES)")
	regionFlag := fs.String("region", cfg.Region, "region code for the trending chart")
	if err := fs.Parse(os.Args[1:]); err != nil {
		exitFunc(2)
		return
	}

	categories := cfg.CatalogCategories
	if *categoryFlag != "" {
		parsed, err := parseCategoryList(*categoryFlag)
		if err != nil {
			log.Printf("seed: %v", err)
			exitFunc(2)
			return
		}
		categories = parsed
	}
	if len(categories) == 0 {
		categories = []int{domain.DefaultCategoryID}
	}
	cfg.Region = strings.ToUpper(strings.TrimSpace(*regionFlag))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	a, err := bootstrapFunc(ctx, cfg, "seed")
	if err != nil {
		log.Printf("startup failed: %v", err)
		exitFunc(1)
		return
	}

	results, syncErr := newSyncer(a).SyncCategories(ctx, categories)
	for _, r := range results {
		a.Logger.Info("seeded",
			zap.String("region", r.Region),
			zap.Int("category_id", r.CategoryID),
			zap.Int("fetched", r.Fetched),
			zap.Int("upserted", r.Upserted),
		)
	}
	if err := a.Close(context.Background()); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if syncErr != nil {
		log.Printf("seed failed: %v", syncErr)
		exitFunc(1)
		return
	}
}

func parseCategoryList(raw string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid category %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}
