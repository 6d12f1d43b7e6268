package types

import (
	"fmt"
	"os"
	"strconv"
)

type Lesson struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"lesson_title"`
	Link   string `json:"lesson_link,omitempty"`
}

type Course struct {
	Title      string // unique identifier, join key between metadata and chunks
	Link       string
	Instructor string
	Lessons    []Lesson
}

// Chunk is one retrievable unit of course text. Identity is
// (CourseTitle, Index); Index is sequential across the whole course.
type Chunk struct {
	Content      string
	CourseTitle  string
	LessonNumber *int // nil for course-level preamble
	Index        int
	Embedding    []float32
}

// SearchHit is a single ranked match from the chunk collection.
type SearchHit struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	ChunkIndex   int
	Distance     float64
}

// Source is an attribution entry surfaced to the user alongside an answer.
type Source struct {
	Label string `json:"label"`
	Link  string `json:"link,omitempty"`
}

// Config is the single immutable knob record passed into the chunker,
// store, tool and orchestrator constructors.
type Config struct {
	ChunkSize     int // character budget per chunk
	ChunkOverlap  int // characters carried over between consecutive chunks
	TopK          int // retrieval limit
	HistoryWindow int // exchange pairs kept per session
}

func DefaultConfig() Config {
	return Config{
		ChunkSize:     800,
		ChunkOverlap:  100,
		TopK:          5,
		HistoryWindow: 2,
	}
}

// ConfigFromEnv reads the knobs from the environment, falling back to
// defaults for anything unset.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.ChunkSize = envInt("CHUNK_SIZE", cfg.ChunkSize)
	cfg.ChunkOverlap = envInt("CHUNK_OVERLAP", cfg.ChunkOverlap)
	cfg.TopK = envInt("TOP_K", cfg.TopK)
	cfg.HistoryWindow = envInt("HISTORY_WINDOW", cfg.HistoryWindow)
	return cfg
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// PostgresDSNFromEnv assembles the connection string the same way for the
// server and the loader binaries.
func PostgresDSNFromEnv() string {
	port, _ := strconv.Atoi(os.Getenv("PG_PORT"))
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("PG_HOST"), port, os.Getenv("PG_USER"), os.Getenv("PG_PASS"), os.Getenv("PG_DB_NAME"))
}
