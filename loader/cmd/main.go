package main

import (
	"context"
	"flag"
	"log"
	"os"

	"courserag/loader/service"
	"courserag/model"
	"courserag/store"
	"courserag/types"

	"github.com/joho/godotenv"
)

func init() {
	mustLoadEnvVariables()
}

func main() {
	var (
		dir   = flag.String("dir", envOr("DOCS_DIR", "./docs"), "folder with course documents")
		clear = flag.Bool("clear", false, "wipe both collections before loading")
	)
	flag.Parse()

	ctx := context.Background()

	pool, err := store.NewPostgresStore(ctx, types.PostgresDSNFromEnv(), model.NewEmbedder())
	if err != nil {
		log.Fatal("error to connect to Postgres database", err)
	}

	if err := pool.Init(ctx); err != nil {
		log.Fatal("error to create tables", err)
	}

	courses, chunks, err := service.New(pool, types.ConfigFromEnv()).IngestDirectory(ctx, *dir, *clear)
	if err != nil {
		log.Printf("ingestion failed: %v", err)
	}
	log.Printf("Loaded %d courses with %d chunks from %s", courses, chunks, *dir)

	if err := pool.Close(); err != nil {
		log.Printf("error closing pool: %v", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func mustLoadEnvVariables() {
	err := godotenv.Load()
	if err != nil {
		log.Fatal("Error loading .env file")
	}
}
