package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"courserag/store"
	"courserag/types"

	"github.com/anthropics/anthropic-sdk-go"
)

// Tool is one capability exposed to the language model. Execute returns the
// formatted tool output together with the sources it consulted; sources are
// an explicit return value, never shared mutable state.
type Tool interface {
	Name() string
	Definition() anthropic.ToolUnionParam
	Execute(ctx context.Context, input json.RawMessage) (string, []types.Source, error)
}

// Registry is the closed, enumerated tool set. Dispatch happens only through
// this table; an unknown name is an invariant violation, not a lookup miss.
type Registry struct {
	order []string
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.order = append(r.order, t.Name())
		r.tools[t.Name()] = t
	}
	return r
}

// Definitions returns the declared schemas in registration order.
func (r *Registry) Definitions() []anthropic.ToolUnionParam {
	defs := make([]anthropic.ToolUnionParam, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Execute dispatches a model tool request by declared name.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) (string, []types.Source, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", nil, fmt.Errorf("tool %q is not registered", name)
	}
	return t.Execute(ctx, input)
}

const SearchToolName = "search_course_content"

// SearchTool answers a query against the chunk collection with optional
// course-name and lesson-number filters.
type SearchTool struct {
	store store.VectorStorer
	limit int
}

func NewSearchTool(storer store.VectorStorer, topK int) *SearchTool {
	if topK <= 0 {
		topK = 5
	}
	return &SearchTool{
		store: storer,
		limit: topK,
	}
}

func (t *SearchTool) Name() string { return SearchToolName }

func (t *SearchTool) Definition() anthropic.ToolUnionParam {
	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        SearchToolName,
			Description: anthropic.String("Search course materials with smart course name matching and lesson filtering"),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "What to search for in the course content",
					},
					"course_name": map[string]any{
						"type":        "string",
						"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
					},
					"lesson_number": map[string]any{
						"type":        "integer",
						"description": "Specific lesson number to search within (e.g. 1, 2, 3)",
					},
				},
				Required: []string{"query"},
			},
		},
	}
}

type searchInput struct {
	Query        string `json:"query"`
	CourseName   string `json:"course_name"`
	LessonNumber *int   `json:"lesson_number"`
}

// Execute runs the search and formats each hit under a "[Course - Lesson N]"
// attribution header. A course-name filter that resolves to nothing comes
// back as readable tool output, so the model can recover instead of failing
// the turn.
func (t *SearchTool) Execute(ctx context.Context, input json.RawMessage) (string, []types.Source, error) {
	var params searchInput
	if err := json.Unmarshal(input, &params); err != nil {
		return "", nil, fmt.Errorf("invalid %s arguments: %w", SearchToolName, err)
	}
	if params.Query == "" {
		return fmt.Sprintf("Tool '%s' requires a non-empty 'query' argument.", SearchToolName), nil, nil
	}

	hits, err := t.store.Search(ctx, params.Query, params.CourseName, params.LessonNumber, t.limit)
	if errors.Is(err, store.ErrCourseNotFound) {
		return fmt.Sprintf("No course found matching '%s'", params.CourseName), nil, nil
	}
	if err != nil {
		return "", nil, err
	}

	if len(hits) == 0 {
		return t.emptyMessage(params), nil, nil
	}

	return t.formatResults(ctx, hits)
}

func (t *SearchTool) emptyMessage(params searchInput) string {
	var filters strings.Builder
	if params.CourseName != "" {
		fmt.Fprintf(&filters, " in course '%s'", params.CourseName)
	}
	if params.LessonNumber != nil {
		fmt.Fprintf(&filters, " in lesson %d", *params.LessonNumber)
	}
	return fmt.Sprintf("No relevant content found%s.", filters.String())
}

func (t *SearchTool) formatResults(ctx context.Context, hits []types.SearchHit) (string, []types.Source, error) {
	blocks := make([]string, 0, len(hits))
	sources := make([]types.Source, 0, len(hits))

	for _, hit := range hits {
		header := hit.CourseTitle
		if hit.LessonNumber != nil {
			header = fmt.Sprintf("%s - Lesson %d", hit.CourseTitle, *hit.LessonNumber)
		}
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", header, hit.Content))

		link := t.resolveLink(ctx, hit)
		sources = append(sources, types.Source{Label: header, Link: link})
	}

	return strings.Join(blocks, "\n\n"), sources, nil
}

// resolveLink prefers the lesson link, falls back to the course link and
// settles for none. Link lookup failures only cost the attribution link.
func (t *SearchTool) resolveLink(ctx context.Context, hit types.SearchHit) string {
	if hit.LessonNumber != nil {
		if link, err := t.store.LessonLink(ctx, hit.CourseTitle, *hit.LessonNumber); err == nil && link != "" {
			return link
		}
	}
	link, err := t.store.CourseLink(ctx, hit.CourseTitle)
	if err != nil {
		return ""
	}
	return link
}
