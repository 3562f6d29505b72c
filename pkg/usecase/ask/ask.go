package ask

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/adapter"
	"github.com/m-mizutani/quakead/pkg/tool"
	"github.com/m-mizutani/quakead/pkg/utils/logging"
	"google.golang.org/genai"
)

//go:embed prompt/system.md
var systemPromptRaw string

var systemPromptTmpl = template.Must(template.New("system").Parse(systemPromptRaw))

const DefaultMaxRounds = 8

var ErrTooManyRounds = goerr.New("model kept calling functions")

// UseCase answers free-form questions with Gemini calling bridge tools
type UseCase struct {
	gemini    adapter.Gemini
	registry  *tool.Registry
	maxRounds int
}

type Option func(*UseCase)

func WithMaxRounds(n int) Option {
	return func(u *UseCase) {
		if n > 0 {
			u.maxRounds = n
		}
	}
}

func New(gemini adapter.Gemini, registry *tool.Registry, opts ...Option) *UseCase {
	u := &UseCase{
		gemini:    gemini,
		registry:  registry,
		maxRounds: DefaultMaxRounds,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// ToolCall records one function call made while answering.
type ToolCall struct {
	Name  string
	Args  map[string]any
	Error string
}

type Answer struct {
	Text  string
	Calls []ToolCall
}

// Ask runs the function calling loop until the model answers without
// calling a function, or the round limit is reached.
func (u *UseCase) Ask(ctx context.Context, question string) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, goerr.New("question is empty")
	}

	var buf bytes.Buffer
	if err := systemPromptTmpl.Execute(&buf, map[string]any{
		"MaxRounds":   u.maxRounds,
		"ToolPrompts": u.registry.Prompts(ctx),
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute system prompt template")
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(buf.String(), ""),
		Tools:             u.registry.Specs(),
	}
	contents := []*genai.Content{
		genai.NewContentFromText(question, genai.RoleUser),
	}

	logger := logging.From(ctx)
	answer := &Answer{}

	for round := 0; round < u.maxRounds; round++ {
		resp, err := u.gemini.GenerateContent(ctx, contents, config)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to generate content", goerr.V("round", round))
		}
		if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return nil, goerr.New("invalid response structure from gemini", goerr.V("round", round))
		}

		content := resp.Candidates[0].Content
		contents = append(contents, content)

		var texts []string
		var responses []*genai.Part
		for _, part := range content.Parts {
			if part.Text != "" && !part.Thought {
				texts = append(texts, part.Text)
			}
			if part.FunctionCall == nil {
				continue
			}

			call := ToolCall{Name: part.FunctionCall.Name, Args: part.FunctionCall.Args}
			logger.Debug("function call", "name", call.Name, "args", call.Args, "round", round)

			funcResp, err := u.registry.Execute(ctx, *part.FunctionCall)
			if err != nil {
				logger.Warn("function call failed", "name", call.Name, "error", err)
				call.Error = err.Error()
				funcResp = &genai.FunctionResponse{
					ID:       part.FunctionCall.ID,
					Name:     part.FunctionCall.Name,
					Response: map[string]any{"error": err.Error()},
				}
			}
			answer.Calls = append(answer.Calls, call)
			responses = append(responses, &genai.Part{FunctionResponse: funcResp})
		}

		if len(responses) == 0 {
			answer.Text = strings.TrimSpace(strings.Join(texts, ""))
			return answer, nil
		}
		contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: responses})
	}

	return nil, goerr.Wrap(ErrTooManyRounds, "no answer within the round limit",
		goerr.V("max_rounds", u.maxRounds))
}
