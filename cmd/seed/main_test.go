package main

import (
	"context"
	"errors"
	"os"
	"testing"

	"yt-hotness/internal/app"
	"yt-hotness/internal/config"
	"yt-hotness/internal/domain"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type stubSyncer struct {
	categories []int
	err        error
}

func (s *stubSyncer) SyncCategories(ctx context.Context, categories []int) ([]domain.CatalogSyncResult, error) {
	s.categories = categories
	return []domain.CatalogSyncResult{{CategoryID: categories[0], Upserted: 50}}, s.err
}

func stubSeedDeps(t *testing.T, args []string, syncer *stubSyncer) (*int, *string) {
	t.Helper()
	origArgs := os.Args
	origLoadEnv, origLoadConfig, origBootstrap, origExit, origSyncer := loadEnvFunc, loadConfigFunc, bootstrapFunc, exitFunc, newSyncer
	t.Cleanup(func() {
		os.Args = origArgs
		loadEnvFunc, loadConfigFunc, bootstrapFunc, exitFunc, newSyncer = origLoadEnv, origLoadConfig, origBootstrap, origExit, origSyncer
	})

	os.Args = append([]string{"seed"}, args...)
	exitCode := new(int)
	region := new(string)
	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config {
		return &config.Config{Region: "KR", CatalogCategories: []int{10}}
	}
	bootstrapFunc = func(ctx context.Context, cfg *config.Config, binary string) (*app.App, error) {
		*region = cfg.Region
		return &app.App{Config: cfg, Logger: zap.NewNop(), Tracer: trace.NewNoopTracerProvider().Tracer("test")}, nil
	}
	exitFunc = func(code int) { *exitCode = code }
	newSyncer = func(*app.App) catalogSyncer { return syncer }
	return exitCode, region
}

func TestSeedUsesFlags(t *testing.T) {
	syncer := &stubSyncer{}
	exitCode, region := stubSeedDeps(t, []string{"-category", "10, 24", "-region", "us"}, syncer)

	main()

	if *exitCode != 0 {
		t.Fatalf("expected success, got exit %d", *exitCode)
	}
	if len(syncer.categories) != 2 || syncer.categories[1] != 24 {
		t.Fatalf("unexpected categories: %v", syncer.categories)
	}
	if *region != "US" {
		t.Fatalf("expected region override, got %q", *region)
	}
}

func TestSeedDefaultsToConfiguredCategories(t *testing.T) {
	syncer := &stubSyncer{}
	stubSeedDeps(t, nil, syncer)

	main()

	if len(syncer.categories) != 1 || syncer.categories[0] != 10 {
		t.Fatalf("unexpected categories: %v", syncer.categories)
	}
}

func TestSeedFailureExitsNonZero(t *testing.T) {
	exitCode, _ := stubSeedDeps(t, nil, &stubSyncer{err: errors.New("quota")})

	main()

	if *exitCode != 1 {
		t.Fatalf("expected exit 1, got %d", *exitCode)
	}
}

func TestParseCategoryList(t *testing.T) {
	got, err := parseCategoryList("10,,20")
	if err != nil || len(got) != 2 {
		t.Fatalf("unexpected result %v %v", got, err)
	}
	if _, err := parseCategoryList("music"); err == nil {
		t.Fatal("expected error")
	}
}
