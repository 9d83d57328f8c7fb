package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/your-org/photobomb/internal/config"
	"github.com/your-org/photobomb/internal/models"
	"github.com/your-org/photobomb/internal/observability"
	"github.com/your-org/photobomb/internal/pipeline"
	"github.com/your-org/photobomb/internal/queue"
	"github.com/your-org/photobomb/internal/storage"
)

// backfill walks a user's originals in object storage, ensures every one
// has a photo row, and submits a rescan pipeline so the worker re-derives
// hashes, renditions and analysis for all of them.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	userFlag := flag.String("user", "", "user id to backfill (required)")
	dryRun := flag.Bool("dry-run", false, "list photos without submitting")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	userID, err := uuid.Parse(*userFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -user: %v\n", err)
		os.Exit(1)
	}

	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	objects, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		slog.Error("connect to object storage", "error", err)
		os.Exit(1)
	}

	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	ctx := context.Background()

	keys, err := objects.List(ctx, objects.Keys.UserPrefix(userID))
	if err != nil {
		slog.Error("list objects", "user_id", userID, "error", err)
		os.Exit(1)
	}

	photos := make([]pipeline.PhotoRef, 0, len(keys))
	for _, key := range keys {
		photoID, filename, ok := parseOriginalKey(objects.Keys.Prefix, userID, key)
		if !ok {
			continue
		}
		photos = append(photos, pipeline.PhotoRef{
			PhotoID:   photoID,
			Filename:  filename,
			SourceKey: key,
		})
	}

	slog.Info("backfill scan", "user_id", userID, "objects", len(keys), "originals", len(photos))
	if len(photos) == 0 {
		return
	}
	if *dryRun {
		for _, p := range photos {
			fmt.Printf("%s\t%s\n", p.PhotoID, p.Filename)
		}
		return
	}

	for _, p := range photos {
		photo := &models.Photo{
			ID:              p.PhotoID,
			UserID:          userID,
			Filename:        p.Filename,
			MimeType:        mimeTypeFor(p.Filename),
			StorageProvider: cfg.Storage.Provider,
		}
		if err := db.CreatePhoto(ctx, photo); err != nil {
			slog.Error("create photo row", "photo_id", p.PhotoID, "error", err)
			os.Exit(1)
		}
	}

	orch := pipeline.NewOrchestrator(db, producer)
	pl, err := orch.Submit(ctx, pipeline.SubmitRequest{
		UserID: userID,
		Type:   models.PipelineTypeRescan,
		Name:   "backfill",
		Photos: photos,
	})
	if err != nil {
		slog.Error("submit pipeline", "error", err)
		os.Exit(1)
	}

	slog.Info("backfill submitted", "pipeline_id", pl.ID, "photos", pl.TotalPhotos)
}

// parseOriginalKey extracts the photo id and filename from a canonical
// original key: <prefix>/<userID>/<photoID>/original/<filename>.
func parseOriginalKey(prefix string, userID uuid.UUID, key string) (uuid.UUID, string, bool) {
	rest := strings.TrimPrefix(key, prefix+"/"+userID.String()+"/")
	if rest == key {
		return uuid.Nil, "", false
	}
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) != 3 || parts[1] != "original" || parts[2] == "" {
		return uuid.Nil, "", false
	}
	photoID, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, "", false
	}
	return photoID, parts[2], true
}

func mimeTypeFor(filename string) string {
	if t := mime.TypeByExtension(path.Ext(filename)); t != "" {
		return t
	}
	return "application/octet-stream"
}
