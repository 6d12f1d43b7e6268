package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"courserag/app/tool"
	"courserag/types"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkoukk/tiktoken-go"
)

// Static system prompt, built once. The model answers general questions from
// its own knowledge and reaches for the search tool only for course-specific
// content, without narrating the search process.
const systemPrompt = `You are an AI assistant specialized in course materials and educational content with access to a search tool for course information.

Tool Usage Guidelines:
- Use the search tool only for questions about specific course content or detailed educational materials
- One search per query maximum
- Synthesize search results into accurate, fact-based responses
- If the search yields no results, state this clearly without offering alternatives

Response Protocol:
- General knowledge questions: answer using existing knowledge without searching
- Course-specific questions: search first, then answer
- No meta-commentary: provide direct answers only, no reasoning process or search explanations

All responses must be brief, concise, educational and clear.
Provide only the direct answer to what was asked.`

const defaultModel = "claude-sonnet-4-20250514"

// messageService is the slice of the Anthropic client the generator uses.
// The concrete anthropic.MessageService satisfies it.
type messageService interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Generator drives the bounded tool-calling loop: one model call with the
// tool schema, at most one tool round-trip, then a terminal model call.
type Generator struct {
	messages  messageService
	model     string
	maxTokens int64
}

func NewGenerator() *Generator {
	client := anthropic.NewClient(option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")))

	model := os.Getenv("ANTHROPIC_MODEL")
	if model == "" {
		model = defaultModel
	}

	return &Generator{
		messages:  &client.Messages,
		model:     model,
		maxTokens: 800,
	}
}

// Generate answers a user query, optionally with prior conversation text and
// a tool registry. It returns the answer together with the sources produced
// by this turn's tool execution (empty when no tool was invoked).
//
// A model-service failure is surfaced as is, without retry. An unregistered
// tool name fails the turn loudly.
func (g *Generator) Generate(ctx context.Context, query, history string, reg *tool.Registry) (string, []types.Source, error) {
	start := time.Now()
	defer func() {
		log.Printf("[AGENT] answer took %v", time.Since(start))
	}()

	system := systemPrompt
	if history != "" {
		system = fmt.Sprintf("%s\n\nPrevious conversation:\n%s", systemPrompt, history)
	}

	if count, err := countTokens(system + query); err == nil {
		log.Printf("[AGENT] prompt size: %d tokens", count)
	}

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(query)),
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(g.model),
		MaxTokens:   g.maxTokens,
		Temperature: anthropic.Float(0),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages:    messages,
		Tools:       reg.Definitions(),
	}

	resp, err := g.messages.New(ctx, params)
	if err != nil {
		return "", nil, fmt.Errorf("model call failed: %w", err)
	}

	if resp.StopReason != anthropic.StopReasonToolUse {
		answer, err := textOf(resp)
		return answer, nil, err
	}

	// Tool round-trip: execute every requested tool, then one more model
	// call without the tool schema so the model must produce a terminal
	// answer.
	messages = append(messages, resp.ToParam())

	var results []anthropic.ContentBlockParamUnion
	var sources []types.Source
	for _, block := range resp.Content {
		tu, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok {
			continue
		}
		text, src, err := reg.Execute(ctx, tu.Name, json.RawMessage(tu.Input))
		if err != nil {
			return "", nil, fmt.Errorf("tool %q: %w", tu.Name, err)
		}
		log.Printf("[AGENT] tool %s returned %d chars, %d sources", tu.Name, len(text), len(src))
		sources = append(sources, src...)
		results = append(results, anthropic.NewToolResultBlock(tu.ID, text, false))
	}
	if len(results) > 0 {
		messages = append(messages, anthropic.NewUserMessage(results...))
	}

	params.Messages = messages
	params.Tools = nil

	final, err := g.messages.New(ctx, params)
	if err != nil {
		return "", nil, fmt.Errorf("model call failed: %w", err)
	}

	answer, err := textOf(final)
	if err != nil {
		return "", nil, err
	}
	return answer, sources, nil
}

func textOf(msg *anthropic.Message) (string, error) {
	var b strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no text in model response")
	}
	return b.String(), nil
}

func countTokens(text string) (int, error) {
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}
