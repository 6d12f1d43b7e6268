package internal

import (
	"fmt"
	"strings"
	"testing"

	"courserag/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDocument = `Course Title: Introduction to Python
Course Link: https://example.com/python-intro
Course Instructor: Jane Doe

Lesson 1: Python Basics
Lesson Link: https://example.com/python-intro/lesson-1
This is the first lesson about Python basics. Variables and data types are fundamental concepts.

Lesson 2: Control Flow
Learn about if statements and loops. Control flow manages program execution.
`

func testConfig() types.Config {
	return types.Config{ChunkSize: 800, ChunkOverlap: 100, TopK: 5, HistoryWindow: 2}
}

func TestParseCourseDocument_Header(t *testing.T) {
	course, _, err := ParseCourseDocument(sampleDocument, testConfig())
	require.NoError(t, err)

	assert.Equal(t, "Introduction to Python", course.Title)
	assert.Equal(t, "https://example.com/python-intro", course.Link)
	assert.Equal(t, "Jane Doe", course.Instructor)

	require.Len(t, course.Lessons, 2)
	assert.Equal(t, 1, course.Lessons[0].Number)
	assert.Equal(t, "Python Basics", course.Lessons[0].Title)
	assert.Equal(t, "https://example.com/python-intro/lesson-1", course.Lessons[0].Link)
	assert.Equal(t, 2, course.Lessons[1].Number)
	assert.Empty(t, course.Lessons[1].Link)
}

func TestParseCourseDocument_MissingTitleIsHardFailure(t *testing.T) {
	_, _, err := ParseCourseDocument("Lesson 1: Intro\nSome text.", testConfig())
	require.Error(t, err)

	_, _, err = ParseCourseDocument("", testConfig())
	require.Error(t, err)
}

func TestParseCourseDocument_OptionalHeaderLines(t *testing.T) {
	doc := "Course Title: Bare Course\nThis line is already body text. It mentions nothing special.\n"
	course, chunks, err := ParseCourseDocument(doc, testConfig())
	require.NoError(t, err)

	assert.Equal(t, "Bare Course", course.Title)
	assert.Empty(t, course.Link)
	assert.Empty(t, course.Instructor)

	// The unrecognized line became course-level preamble.
	require.NotEmpty(t, chunks)
	assert.Nil(t, chunks[0].LessonNumber)
	assert.Contains(t, chunks[0].Content, "This line is already body text.")
}

func TestParseCourseDocument_NoBodyYieldsZeroChunks(t *testing.T) {
	course, chunks, err := ParseCourseDocument("Course Title: Empty Course\n", testConfig())
	require.NoError(t, err)
	assert.Equal(t, "Empty Course", course.Title)
	assert.Empty(t, chunks)
}

func TestParseCourseDocument_ChunkContextPrefixes(t *testing.T) {
	_, chunks, err := ParseCourseDocument(sampleDocument, testConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.True(t, strings.HasPrefix(chunks[0].Content, "Course Introduction to Python Lesson 1 content: "))
	assert.True(t, strings.HasPrefix(chunks[1].Content, "Course Introduction to Python Lesson 2 content: "))

	require.NotNil(t, chunks[0].LessonNumber)
	assert.Equal(t, 1, *chunks[0].LessonNumber)
	require.NotNil(t, chunks[1].LessonNumber)
	assert.Equal(t, 2, *chunks[1].LessonNumber)
}

func TestParseCourseDocument_PreambleChunks(t *testing.T) {
	doc := `Course Title: Preamble Course
Course Link: https://example.com

This overview text sits before any lesson marker. It describes the course as a whole.

Lesson 1: Start
Actual lesson content goes here. More lesson content follows.
`
	_, chunks, err := ParseCourseDocument(doc, testConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Nil(t, chunks[0].LessonNumber)
	assert.True(t, strings.HasPrefix(chunks[0].Content, "Course Preamble Course content: "))
	require.NotNil(t, chunks[1].LessonNumber)
	assert.Equal(t, 1, *chunks[1].LessonNumber)
}

func TestParseCourseDocument_Idempotent(t *testing.T) {
	_, first, err := ParseCourseDocument(sampleDocument, testConfig())
	require.NoError(t, err)
	_, second, err := ParseCourseDocument(sampleDocument, testConfig())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestParseCourseDocument_ChunkIdentityUnique(t *testing.T) {
	var body strings.Builder
	body.WriteString("Course Title: Big Course\n\n")
	for lesson := 1; lesson <= 3; lesson++ {
		body.WriteString("Lesson " + string(rune('0'+lesson)) + ": Part\n")
		for i := 0; i < 40; i++ {
			body.WriteString("This sentence fills the lesson with enough text to force several chunks. ")
		}
		body.WriteString("\n")
	}

	_, chunks, err := ParseCourseDocument(body.String(), testConfig())
	require.NoError(t, err)
	require.Greater(t, len(chunks), 3)

	seen := make(map[int]bool)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index, "indices are sequential across the course")
		assert.False(t, seen[c.Index])
		seen[c.Index] = true
		assert.Equal(t, "Big Course", c.CourseTitle)
	}
}

func TestChunkText_RespectsBudget(t *testing.T) {
	var text strings.Builder
	for i := 0; i < 50; i++ {
		text.WriteString("Each of these sentences is a reasonable length for packing. ")
	}

	chunks := ChunkText(text.String(), 200, 50)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 200)
	}
}

func TestChunkText_OverlapSharedSentences(t *testing.T) {
	var text strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&text, "Sentence number %02d goes right here for the overlap check. ", i)
	}

	const overlap = 80
	chunks := ChunkText(text.String(), 300, overlap)
	require.Greater(t, len(chunks), 1)

	for i := 0; i < len(chunks)-1; i++ {
		shared := longestSuffixPrefix(chunks[i], chunks[i+1])
		assert.GreaterOrEqual(t, len(shared), overlap-1,
			"chunks %d and %d should share at least the overlap budget", i, i+1)
	}
}

// longestSuffixPrefix returns the longest suffix of a that is a prefix of b.
func longestSuffixPrefix(a, b string) string {
	max := len(a)
	if len(b) < max {
		max = len(b)
	}
	for l := max; l > 0; l-- {
		if strings.HasSuffix(a, b[:l]) {
			return b[:l]
		}
	}
	return ""
}

func TestChunkText_OversizedSentence(t *testing.T) {
	long := strings.Repeat("word ", 100) + "end."
	chunks := ChunkText(long, 80, 20)
	require.Len(t, chunks, 1, "a single oversized sentence stays one chunk")
}

func TestSplitSentences_AbbreviationsSurvive(t *testing.T) {
	text := "Use tools, e.g. hammers, when needed. The second sentence starts here."
	sentences := SplitSentences(text)
	require.Len(t, sentences, 2)
	assert.Equal(t, "Use tools, e.g. hammers, when needed.", sentences[0])
	assert.Equal(t, "The second sentence starts here.", sentences[1])
}

func TestSplitSentences_UppercaseAfterPeriod(t *testing.T) {
	sentences := SplitSentences("First thought ends. Second thought begins! Is there a third? Yes.")
	assert.Equal(t, []string{
		"First thought ends.",
		"Second thought begins!",
		"Is there a third?",
		"Yes.",
	}, sentences)
}

func TestSplitSentences_Empty(t *testing.T) {
	assert.Nil(t, SplitSentences(""))
	assert.Nil(t, SplitSentences("   \n\t  "))
}
