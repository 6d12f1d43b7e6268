package internal

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"courserag/types"
)

var lessonMarker = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

const (
	titlePrefix      = "Course Title:"
	linkPrefix       = "Course Link:"
	instructorPrefix = "Course Instructor:"
	lessonLinkPrefix = "Lesson Link:"
)

// lessonText is one parsed body segment: the course preamble (Number == nil)
// or a single lesson's text.
type lessonText struct {
	Number *int
	Text   string
}

// ParseCourseDocument parses the three-line course header plus lesson-marked
// body text and splits it into overlapping, context-prefixed chunks.
// A missing title line is a hard failure; everything else degrades to body
// content.
func ParseCourseDocument(text string, cfg types.Config) (types.Course, []types.Chunk, error) {
	lines := strings.Split(text, "\n")

	course, bodyStart, err := parseHeader(lines)
	if err != nil {
		return types.Course{}, nil, err
	}

	segments := parseLessons(&course, lines[bodyStart:])
	chunks := buildChunks(course.Title, segments, cfg)

	return course, chunks, nil
}

// ReadCourseDocument is the file-based entry point used by the loader.
func ReadCourseDocument(path string, cfg types.Config) (types.Course, []types.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Course{}, nil, fmt.Errorf("read course document: %w", err)
	}
	return ParseCourseDocument(string(data), cfg)
}

// parseHeader consumes up to three leading non-empty lines: title (required),
// link and instructor (optional; an unrecognized prefix means the line already
// belongs to the body). Returns the index of the first body line.
func parseHeader(lines []string) (types.Course, int, error) {
	course := types.Course{}
	i := 0

	next := func() (string, bool) {
		for i < len(lines) {
			line := strings.TrimSpace(lines[i])
			if line != "" {
				return line, true
			}
			i++
		}
		return "", false
	}

	line, ok := next()
	if !ok || !strings.HasPrefix(line, titlePrefix) {
		return course, 0, fmt.Errorf("missing %q line, document cannot be attributed to a course", titlePrefix)
	}
	course.Title = strings.TrimSpace(strings.TrimPrefix(line, titlePrefix))
	if course.Title == "" {
		return course, 0, fmt.Errorf("empty course title")
	}
	i++

	if line, ok = next(); ok && strings.HasPrefix(line, linkPrefix) {
		course.Link = strings.TrimSpace(strings.TrimPrefix(line, linkPrefix))
		i++
	} else {
		return course, i, nil
	}

	if line, ok = next(); ok && strings.HasPrefix(line, instructorPrefix) {
		course.Instructor = strings.TrimSpace(strings.TrimPrefix(line, instructorPrefix))
		i++
	}

	return course, i, nil
}

// parseLessons splits the body on "Lesson <n>: <title>" markers, filling the
// course's lesson list in order of appearance. Text ahead of the first marker
// is course-level preamble.
func parseLessons(course *types.Course, lines []string) []lessonText {
	var segments []lessonText
	var current *lessonText
	var buf []string

	flush := func() {
		if current == nil && len(buf) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		if current != nil {
			current.Text = text
			segments = append(segments, *current)
		} else if text != "" {
			segments = append(segments, lessonText{Text: text})
		}
		buf = nil
	}

	for idx := 0; idx < len(lines); idx++ {
		line := strings.TrimSpace(lines[idx])

		if m := lessonMarker.FindStringSubmatch(line); m != nil {
			flush()
			number, _ := strconv.Atoi(m[1])
			lesson := types.Lesson{Number: number, Title: strings.TrimSpace(m[2])}

			// An optional "Lesson Link:" line directly after the marker.
			if idx+1 < len(lines) {
				nextLine := strings.TrimSpace(lines[idx+1])
				if strings.HasPrefix(nextLine, lessonLinkPrefix) {
					lesson.Link = strings.TrimSpace(strings.TrimPrefix(nextLine, lessonLinkPrefix))
					idx++
				}
			}

			course.Lessons = append(course.Lessons, lesson)
			n := number
			current = &lessonText{Number: &n}
			continue
		}

		buf = append(buf, line)
	}
	flush()

	return segments
}

// buildChunks packs every segment into budget-sized chunks and prefixes each
// with its course/lesson context. Indices run sequentially across the whole
// course.
func buildChunks(courseTitle string, segments []lessonText, cfg types.Config) []types.Chunk {
	var chunks []types.Chunk
	index := 0

	for _, seg := range segments {
		var prefix string
		if seg.Number != nil {
			prefix = fmt.Sprintf("Course %s Lesson %d content: ", courseTitle, *seg.Number)
		} else {
			prefix = fmt.Sprintf("Course %s content: ", courseTitle)
		}

		for _, piece := range ChunkText(seg.Text, cfg.ChunkSize, cfg.ChunkOverlap) {
			chunk := types.Chunk{
				Content:     prefix + piece,
				CourseTitle: courseTitle,
				Index:       index,
			}
			if seg.Number != nil {
				n := *seg.Number
				chunk.LessonNumber = &n
			}
			chunks = append(chunks, chunk)
			index++
		}
	}

	return chunks
}

// ChunkText greedily packs sentences into chunks of at most chunkSize
// characters, starting each new chunk with the trailing sentences of the
// previous one up to overlap characters.
func ChunkText(text string, chunkSize, overlap int) []string {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	i := 0
	for i < len(sentences) {
		var piece []string
		size := 0
		j := i
		for j < len(sentences) {
			add := len(sentences[j])
			if size > 0 {
				add++ // joining space
			}
			if size+add > chunkSize && size > 0 {
				break
			}
			size += add
			piece = append(piece, sentences[j])
			j++
		}
		chunks = append(chunks, strings.Join(piece, " "))
		if j >= len(sentences) {
			break
		}

		// Backtrack into the trailing sentences of this chunk until the
		// overlap budget is covered.
		k := j
		overlapSize := 0
		for k > i && overlapSize < overlap {
			overlapSize += len(sentences[k-1]) + 1
			k--
		}
		if k <= i {
			k = j // a single oversized sentence, no room to overlap
		}
		i = k
	}
	return chunks
}

// SplitSentences splits on '.', '!' or '?' only when the punctuation is
// followed by whitespace and an uppercase letter, or ends the text.
// Abbreviations like "e.g." followed by a lowercase continuation stay intact.
func SplitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}

	runes := []rune(text)
	var sentences []string
	start := 0

	for idx := 0; idx < len(runes); idx++ {
		r := runes[idx]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		j := idx + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == idx+1 && j < len(runes) {
			continue // no whitespace after the punctuation
		}
		if j < len(runes) && !unicode.IsUpper(runes[j]) {
			continue
		}
		sentence := strings.TrimSpace(string(runes[start : idx+1]))
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = j
		idx = j - 1
	}

	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}
