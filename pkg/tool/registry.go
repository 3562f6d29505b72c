package tool

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

var ErrToolNotFound = goerr.New("tool not found")

// Tool is a set of functions offered to Gemini.
type Tool interface {
	// Spec declares the functions. nil means the tool has nothing to offer.
	Spec() *genai.Tool

	// Execute answers one call of a declared function.
	Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error)

	// Prompt is appended to the system prompt, may be empty.
	Prompt(ctx context.Context) string
}

// Registry manages available tools for the LLM
type Registry struct {
	tools    map[string]Tool
	allTools []Tool
	specs    []*genai.Tool
}

// New creates a new tool registry with the given tools. A function name
// declared by more than one tool resolves to the first one.
func New(tools ...Tool) *Registry {
	r := &Registry{
		tools:    make(map[string]Tool),
		allTools: tools,
	}

	for _, t := range tools {
		spec := t.Spec()
		if spec == nil || len(spec.FunctionDeclarations) == 0 {
			continue
		}
		r.specs = append(r.specs, spec)
		for _, fd := range spec.FunctionDeclarations {
			if _, exists := r.tools[fd.Name]; !exists {
				r.tools[fd.Name] = t
			}
		}
	}

	return r
}

// Specs returns all tool specifications in registration order
func (r *Registry) Specs() []*genai.Tool {
	return r.specs
}

// Names returns every declared function name
func (r *Registry) Names() []string {
	var names []string
	for _, spec := range r.specs {
		for _, fd := range spec.FunctionDeclarations {
			names = append(names, fd.Name)
		}
	}
	return names
}

// Prompts returns all tool prompts concatenated
func (r *Registry) Prompts(ctx context.Context) string {
	var prompts []string
	for _, t := range r.allTools {
		if prompt := t.Prompt(ctx); prompt != "" {
			prompts = append(prompts, prompt)
		}
	}
	return strings.Join(prompts, "\n\n")
}

// Execute runs the tool with the given function call
func (r *Registry) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	tool, ok := r.tools[fc.Name]
	if !ok {
		return nil, goerr.Wrap(ErrToolNotFound, "tool not found", goerr.V("name", fc.Name))
	}

	return tool.Execute(ctx, fc)
}
