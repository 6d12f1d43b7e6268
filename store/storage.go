package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"courserag/model"
	"courserag/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ErrCourseNotFound distinguishes an unresolvable course-name filter from an
// empty search result. Callers check it with errors.Is.
var ErrCourseNotFound = errors.New("course not found")

// VectorStorer is the index surface the tool, the RAG system and the loader
// depend on: a metadata collection keyed by course title and a chunk
// collection keyed by (course_title, chunk_index).
type VectorStorer interface {
	AddCourseMetadata(context.Context, types.Course) error
	AddChunks(context.Context, []types.Chunk) error
	ResolveCourseName(context.Context, string) (string, error)
	Search(ctx context.Context, query, courseName string, lessonNumber *int, limit int) ([]types.SearchHit, error)
	CourseCount(context.Context) (int, error)
	CourseTitles(context.Context) ([]string, error)
	CourseLink(context.Context, string) (string, error)
	LessonLink(ctx context.Context, courseTitle string, lessonNumber int) (string, error)
	Clear(context.Context) error
}

type PostgresStore struct {
	pool     *pgxpool.Pool
	embedder model.Embedder
}

func NewPostgresStore(ctx context.Context, connStr string, embedder model.Embedder) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool:     pool,
		embedder: embedder,
	}, nil
}

func (p *PostgresStore) createCourseTables(ctx context.Context) error {
	query := `
    CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS courses (
		title TEXT PRIMARY KEY,
		course_link TEXT,
		instructor TEXT,
		embedding vector(768)
	);

	CREATE TABLE IF NOT EXISTS course_lessons (
		course_title TEXT NOT NULL,
		lesson_number INT NOT NULL,
		lesson_title TEXT,
		lesson_link TEXT,
		PRIMARY KEY (course_title, lesson_number)
	);

    CREATE TABLE IF NOT EXISTS chunks (
        course_title TEXT NOT NULL,
        chunk_index INT NOT NULL,
        lesson_number INT,
        content TEXT NOT NULL,
        embedding vector(768),
        PRIMARY KEY (course_title, chunk_index)
    );

	CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks USING ivfflat (embedding vector_cosine_ops)
	WITH (lists = 100);

	CREATE INDEX IF NOT EXISTS idx_chunks_lesson ON chunks(course_title, lesson_number);
    `
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.createCourseTables(ctx)
}

// AddCourseMetadata upserts one course record keyed by title and rewrites its
// lesson side-table. The title embedding drives fuzzy name resolution.
func (p *PostgresStore) AddCourseMetadata(ctx context.Context, course types.Course) error {
	embedding, err := p.embedder.Embed(ctx, course.Title)
	if err != nil {
		return fmt.Errorf("embed course title: %w", err)
	}

	query := `INSERT INTO courses (title, course_link, instructor, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (title) DO UPDATE SET
			course_link = EXCLUDED.course_link,
			instructor = EXCLUDED.instructor,
			embedding = EXCLUDED.embedding
			`
	_, err = p.pool.Exec(ctx, query,
		course.Title,
		course.Link,
		course.Instructor,
		pgvector.NewVector(embedding),
	)
	if err != nil {
		return err
	}

	if _, err := p.pool.Exec(ctx, "DELETE FROM course_lessons WHERE course_title = $1", course.Title); err != nil {
		return err
	}
	for _, lesson := range course.Lessons {
		_, err := p.pool.Exec(ctx,
			`INSERT INTO course_lessons (course_title, lesson_number, lesson_title, lesson_link)
			 VALUES ($1, $2, $3, $4)`,
			course.Title, lesson.Number, lesson.Title, lesson.Link,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// AddChunks upserts chunk content keyed by (course_title, chunk_index),
// embedding any chunk that does not carry a vector yet.
func (p *PostgresStore) AddChunks(ctx context.Context, chunks []types.Chunk) error {
	query := `
    INSERT INTO chunks (course_title, chunk_index, lesson_number, content, embedding)
    VALUES ($1, $2, $3, $4, $5)
    ON CONFLICT (course_title, chunk_index) DO UPDATE SET
        lesson_number = EXCLUDED.lesson_number,
        content = EXCLUDED.content,
        embedding = EXCLUDED.embedding
    `
	for i := range chunks {
		c := &chunks[i]
		if c.Embedding == nil {
			embedding, err := p.embedder.Embed(ctx, c.Content)
			if err != nil {
				return fmt.Errorf("embed chunk %d of %q: %w", c.Index, c.CourseTitle, err)
			}
			c.Embedding = embedding
		}
		_, err := p.pool.Exec(ctx, query,
			c.CourseTitle, c.Index, c.LessonNumber, c.Content, pgvector.NewVector(c.Embedding),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ResolveCourseName is a best-effort fuzzy join: it returns the nearest
// course title by embedding distance, failing only when the metadata
// collection is empty.
func (p *PostgresStore) ResolveCourseName(ctx context.Context, partial string) (string, error) {
	embedding, err := p.embedder.Embed(ctx, partial)
	if err != nil {
		return "", fmt.Errorf("embed course name: %w", err)
	}

	var title string
	err = p.pool.QueryRow(ctx,
		"SELECT title FROM courses ORDER BY embedding <=> $1 LIMIT 1",
		pgvector.NewVector(embedding),
	).Scan(&title)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %q", ErrCourseNotFound, partial)
	}
	if err != nil {
		return "", err
	}
	return title, nil
}

// Search returns the top-limit chunks nearest to the query, ascending by
// distance with ties broken by chunk order. A supplied course name is
// resolved first; resolution failure yields ErrCourseNotFound rather than an
// unfiltered search.
func (p *PostgresStore) Search(ctx context.Context, query, courseName string, lessonNumber *int, limit int) ([]types.SearchHit, error) {
	var filters []string
	args := []any{}

	if courseName != "" {
		title, err := p.ResolveCourseName(ctx, courseName)
		if err != nil {
			return nil, err
		}
		args = append(args, title)
		filters = append(filters, fmt.Sprintf("course_title = $%d", len(args)))
	}
	if lessonNumber != nil {
		args = append(args, *lessonNumber)
		filters = append(filters, fmt.Sprintf("lesson_number = $%d", len(args)))
	}

	embedding, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	args = append(args, pgvector.NewVector(embedding))
	vecArg := len(args)
	args = append(args, limit)

	where := "embedding IS NOT NULL"
	if len(filters) > 0 {
		where += " AND " + strings.Join(filters, " AND ")
	}

	sql := fmt.Sprintf(`
		SELECT course_title, chunk_index, lesson_number, content,
		       embedding <=> $%d AS distance
		FROM chunks
		WHERE %s
		ORDER BY embedding <=> $%d, course_title, chunk_index
		LIMIT $%d
	`, vecArg, where, vecArg, len(args))

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []types.SearchHit
	for rows.Next() {
		var hit types.SearchHit
		if err := rows.Scan(
			&hit.CourseTitle,
			&hit.ChunkIndex,
			&hit.LessonNumber,
			&hit.Content,
			&hit.Distance,
		); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (p *PostgresStore) CourseCount(ctx context.Context) (int, error) {
	var count int
	err := p.pool.QueryRow(ctx, "SELECT count(*) FROM courses").Scan(&count)
	return count, err
}

func (p *PostgresStore) CourseTitles(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, "SELECT title FROM courses ORDER BY title")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, err
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

func (p *PostgresStore) CourseLink(ctx context.Context, title string) (string, error) {
	var link *string
	err := p.pool.QueryRow(ctx, "SELECT course_link FROM courses WHERE title = $1", title).Scan(&link)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if link == nil {
		return "", nil
	}
	return *link, nil
}

func (p *PostgresStore) LessonLink(ctx context.Context, courseTitle string, lessonNumber int) (string, error) {
	var link *string
	err := p.pool.QueryRow(ctx,
		"SELECT lesson_link FROM course_lessons WHERE course_title = $1 AND lesson_number = $2",
		courseTitle, lessonNumber,
	).Scan(&link)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if link == nil {
		return "", nil
	}
	return *link, nil
}

// Clear wipes both collections. Used during (re)ingestion only, never while
// serving queries.
func (p *PostgresStore) Clear(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, "TRUNCATE chunks, course_lessons, courses")
	return err
}

// Close closes the connection pool.
func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		log.Println("Postgres connection pool is closed")
	}
	return nil
}
