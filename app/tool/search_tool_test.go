package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"courserag/store"
	"courserag/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore scripts the index surface and records the filter it was asked
// to apply.
type fakeStore struct {
	hits      []types.SearchHit
	searchErr error

	lessonLinks map[string]string // "title/number" -> link
	courseLinks map[string]string

	gotQuery  string
	gotCourse string
	gotLesson *int
	gotLimit  int
}

func (f *fakeStore) AddCourseMetadata(context.Context, types.Course) error { return nil }
func (f *fakeStore) AddChunks(context.Context, []types.Chunk) error        { return nil }
func (f *fakeStore) Clear(context.Context) error                           { return nil }
func (f *fakeStore) CourseCount(context.Context) (int, error)              { return 0, nil }
func (f *fakeStore) CourseTitles(context.Context) ([]string, error)        { return nil, nil }

func (f *fakeStore) ResolveCourseName(_ context.Context, partial string) (string, error) {
	return partial, nil
}

func (f *fakeStore) Search(_ context.Context, query, courseName string, lessonNumber *int, limit int) ([]types.SearchHit, error) {
	f.gotQuery = query
	f.gotCourse = courseName
	f.gotLesson = lessonNumber
	f.gotLimit = limit
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *fakeStore) CourseLink(_ context.Context, title string) (string, error) {
	return f.courseLinks[title], nil
}

func (f *fakeStore) LessonLink(_ context.Context, title string, number int) (string, error) {
	return f.lessonLinks[fmt.Sprintf("%s/%d", title, number)], nil
}

func intPtr(n int) *int { return &n }

func args(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestSearchTool_FormatsResultsAndSources(t *testing.T) {
	fs := &fakeStore{
		hits: []types.SearchHit{
			{Content: "Lesson two talks about control flow.", CourseTitle: "Intro to X", LessonNumber: intPtr(2), ChunkIndex: 3},
			{Content: "More about loops.", CourseTitle: "Intro to X", LessonNumber: intPtr(2), ChunkIndex: 4},
		},
		lessonLinks: map[string]string{"Intro to X/2": "https://example.com/x/2"},
	}
	st := NewSearchTool(fs, 5)

	out, sources, err := st.Execute(context.Background(), args(t, map[string]any{
		"query": "what is covered", "course_name": "Intro to X", "lesson_number": 2,
	}))
	require.NoError(t, err)

	assert.Contains(t, out, "[Intro to X - Lesson 2]\nLesson two talks about control flow.")
	assert.Contains(t, out, "[Intro to X - Lesson 2]\nMore about loops.")

	require.Len(t, sources, 2)
	assert.Equal(t, "Intro to X - Lesson 2", sources[0].Label)
	assert.Equal(t, "https://example.com/x/2", sources[0].Link)

	assert.Equal(t, "what is covered", fs.gotQuery)
	assert.Equal(t, "Intro to X", fs.gotCourse)
	require.NotNil(t, fs.gotLesson)
	assert.Equal(t, 2, *fs.gotLesson)
	assert.Equal(t, 5, fs.gotLimit)
}

func TestSearchTool_CourseLinkFallback(t *testing.T) {
	fs := &fakeStore{
		hits: []types.SearchHit{
			{Content: "Course overview text.", CourseTitle: "Intro to X"},
		},
		courseLinks: map[string]string{"Intro to X": "https://example.com/x"},
	}
	st := NewSearchTool(fs, 5)

	out, sources, err := st.Execute(context.Background(), args(t, map[string]any{"query": "overview"}))
	require.NoError(t, err)

	// No lesson on this chunk: header and label omit the lesson segment.
	assert.Contains(t, out, "[Intro to X]\nCourse overview text.")
	require.Len(t, sources, 1)
	assert.Equal(t, "Intro to X", sources[0].Label)
	assert.Equal(t, "https://example.com/x", sources[0].Link)
}

func TestSearchTool_CourseNotFound(t *testing.T) {
	fs := &fakeStore{searchErr: fmt.Errorf("%w: %q", store.ErrCourseNotFound, "Nonexistent")}
	st := NewSearchTool(fs, 5)

	out, sources, err := st.Execute(context.Background(), args(t, map[string]any{
		"query": "anything", "course_name": "Nonexistent",
	}))
	require.NoError(t, err, "course-not-found is tool output, not a fault")
	assert.Equal(t, "No course found matching 'Nonexistent'", out)
	assert.Empty(t, sources)
}

func TestSearchTool_EmptyResultIsNotAnError(t *testing.T) {
	st := NewSearchTool(&fakeStore{}, 5)

	out, sources, err := st.Execute(context.Background(), args(t, map[string]any{
		"query": "missing topic", "course_name": "Intro to X", "lesson_number": 7,
	}))
	require.NoError(t, err)
	assert.Equal(t, "No relevant content found in course 'Intro to X' in lesson 7.", out)
	assert.Empty(t, sources)
}

func TestSearchTool_EmptyResultWithoutFilters(t *testing.T) {
	st := NewSearchTool(&fakeStore{}, 5)

	out, _, err := st.Execute(context.Background(), args(t, map[string]any{"query": "missing"}))
	require.NoError(t, err)
	assert.Equal(t, "No relevant content found.", out)
}

func TestSearchTool_StoreFailurePropagates(t *testing.T) {
	fs := &fakeStore{searchErr: fmt.Errorf("connection refused")}
	st := NewSearchTool(fs, 5)

	_, _, err := st.Execute(context.Background(), args(t, map[string]any{"query": "anything"}))
	require.Error(t, err)
}

func TestSearchTool_Definition(t *testing.T) {
	st := NewSearchTool(&fakeStore{}, 5)
	def := st.Definition()

	require.NotNil(t, def.OfTool)
	assert.Equal(t, SearchToolName, def.OfTool.Name)
	assert.Equal(t, []string{"query"}, def.OfTool.InputSchema.Required)

	props, ok := def.OfTool.InputSchema.Properties.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "query")
	assert.Contains(t, props, "course_name")
	assert.Contains(t, props, "lesson_number")
}

func TestRegistry_DispatchAndUnknownTool(t *testing.T) {
	st := NewSearchTool(&fakeStore{}, 5)
	reg := NewRegistry(st)

	require.Len(t, reg.Definitions(), 1)

	_, _, err := reg.Execute(context.Background(), SearchToolName, args(t, map[string]any{"query": "q"}))
	require.NoError(t, err)

	_, _, err = reg.Execute(context.Background(), "get_course_outline", nil)
	require.Error(t, err, "an unregistered tool name fails loudly")
	assert.Contains(t, err.Error(), "not registered")
}
