package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"courserag/loader/internal"
	"courserag/store"
	"courserag/types"
)

// Service loads course documents from a folder into the vector index.
type Service struct {
	logger *slog.Logger
	store  store.VectorStorer
	cfg    types.Config
}

func New(storer store.VectorStorer, cfg types.Config) *Service {
	return &Service{
		logger: slog.Default(),
		store:  storer,
		cfg:    cfg,
	}
}

// IngestDirectory bulk-loads every course document in dir. A document that
// fails to parse is logged and skipped; the rest of the folder still loads.
// Courses already present in the metadata collection are not re-ingested
// unless clear wiped the index first. Returns courses and chunks added.
func (s *Service) IngestDirectory(ctx context.Context, dir string, clear bool) (int, int, error) {
	if clear {
		s.logger.Info("clearing existing course data")
		if err := s.store.Clear(ctx); err != nil {
			return 0, 0, fmt.Errorf("clear index: %w", err)
		}
	}

	titles, err := s.store.CourseTitles(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list existing courses: %w", err)
	}
	existing := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		existing[t] = struct{}{}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("read docs folder: %w", err)
	}

	coursesAdded, chunksAdded := 0, 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".txt") {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		course, chunks, err := internal.ReadCourseDocument(path, s.cfg)
		if err != nil {
			s.logger.Error("skipping document", "file", entry.Name(), "error", err)
			continue
		}

		if _, ok := existing[course.Title]; ok {
			s.logger.Info("course already exists, skipping", "title", course.Title)
			continue
		}

		if err := s.store.AddCourseMetadata(ctx, course); err != nil {
			return coursesAdded, chunksAdded, fmt.Errorf("save course %q: %w", course.Title, err)
		}
		if err := s.store.AddChunks(ctx, chunks); err != nil {
			return coursesAdded, chunksAdded, fmt.Errorf("save chunks of %q: %w", course.Title, err)
		}

		existing[course.Title] = struct{}{}
		coursesAdded++
		chunksAdded += len(chunks)
		s.logger.Info("course loaded", "title", course.Title, "lessons", len(course.Lessons), "chunks", len(chunks))
	}

	return coursesAdded, chunksAdded, nil
}
