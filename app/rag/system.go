package rag

import (
	"context"

	"courserag/app/session"
	"courserag/app/tool"
	"courserag/store"
	"courserag/types"
)

// AnswerGenerator produces an answer for a query given prior conversation
// text and the registered tools. Satisfied by agent.Generator.
type AnswerGenerator interface {
	Generate(ctx context.Context, query, history string, reg *tool.Registry) (string, []types.Source, error)
}

// System ties the session store, the tool registry and the generator into
// the query interface the transport layer consumes.
type System struct {
	store     store.VectorStorer
	sessions  *session.Store
	generator AnswerGenerator
	registry  *tool.Registry
}

func NewSystem(cfg types.Config, storer store.VectorStorer, sessions *session.Store, generator AnswerGenerator) *System {
	return &System{
		store:     storer,
		sessions:  sessions,
		generator: generator,
		registry:  tool.NewRegistry(tool.NewSearchTool(storer, cfg.TopK)),
	}
}

// Query answers one user turn. A missing session id is created lazily and
// returned to the caller. Sources are whatever this turn's tool execution
// produced; a direct answer carries none.
func (s *System) Query(ctx context.Context, text, sessionID string) (string, []types.Source, string, error) {
	if sessionID == "" {
		sessionID = s.sessions.Create()
	}

	history := s.sessions.History(sessionID)

	answer, sources, err := s.generator.Generate(ctx, text, history, s.registry)
	if err != nil {
		return "", nil, sessionID, err
	}

	s.sessions.AddExchange(sessionID, text, answer)

	if sources == nil {
		sources = []types.Source{}
	}
	return answer, sources, sessionID, nil
}

// Stats is a read-only projection over the metadata collection.
func (s *System) Stats(ctx context.Context) (types.StatsResponse, error) {
	count, err := s.store.CourseCount(ctx)
	if err != nil {
		return types.StatsResponse{}, err
	}
	titles, err := s.store.CourseTitles(ctx)
	if err != nil {
		return types.StatsResponse{}, err
	}
	if titles == nil {
		titles = []string{}
	}
	return types.StatsResponse{
		TotalCourses: count,
		CourseTitles: titles,
	}, nil
}
