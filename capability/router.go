// Package capability implements the rule-based dispatcher that classifies
// raw user text into a capability label and applies the matching prompt
// template before delegating to the agent client.
package capability

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Label identifies the capability selected for an input.
type Label int

const (
	AnswerQuestion Label = iota
	Summarize
	Translate
	GenerateCode
	Fallback
)

func (l Label) String() string {
	switch l {
	case AnswerQuestion:
		return "answer_question"
	case Summarize:
		return "summarize_text"
	case Translate:
		return "translate_text"
	case GenerateCode:
		return "generate_code"
	default:
		return "fallback"
	}
}

var (
	summarizeKeywords = []string{"summarize", "summary", "summarization"}
	translateKeywords = []string{"translate", "translation", "in spanish", "in french"}
	codeKeywords      = []string{"code", "function", "script", "program", "programming"}
)

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// Classify derives the capability label from raw user input using
// case-insensitive substring matching. First match wins; anything
// unrecognized is a general question.
func Classify(input string) Label {
	text := strings.ToLower(input)

	switch {
	case containsAny(text, summarizeKeywords):
		return Summarize
	case containsAny(text, translateKeywords):
		return Translate
	case containsAny(text, codeKeywords):
		return GenerateCode
	default:
		return AnswerQuestion
	}
}

// TargetLanguage picks the translation target from the input. Spanish is
// the default; a French phrase overrides it and a German phrase overrides
// both, so an input naming several languages resolves to the last checked.
func TargetLanguage(input string) string {
	text := strings.ToLower(input)

	language := "Spanish"
	if strings.Contains(text, "in french") {
		language = "French"
	}
	if strings.Contains(text, "in german") {
		language = "German"
	}
	return language
}

// summarizeTarget extracts the text to summarize: everything after the
// first occurrence of "summarize", or the whole input when the keyword is
// absent or trails the input.
func summarizeTarget(input string) string {
	lower := strings.ToLower(input)
	idx := strings.Index(lower, "summarize")
	if idx < 0 {
		return input
	}
	remainder := strings.TrimSpace(input[idx+len("summarize"):])
	if remainder == "" {
		return input
	}
	return remainder
}

// Agent is the invocation dependency of the router.
type Agent interface {
	Invoke(ctx context.Context, userInput, systemPrompt string) (string, error)
}

// Router classifies user input and delegates to the agent with a
// capability-specific system prompt and input transformation. Failures
// are degraded into chat-style text rather than propagated as errors.
type Router struct {
	agent        Agent
	systemPrompt string
	logger       *zap.Logger
}

// NewRouter creates a router around the given agent. systemPrompt is the
// base system prompt every capability augments.
func NewRouter(a Agent, systemPrompt string, logger *zap.Logger) *Router {
	return &Router{
		agent:        a,
		systemPrompt: systemPrompt,
		logger:       logger,
	}
}

// Process classifies the input, applies the capability's prompt template,
// and returns the model's text. Any error from handling is converted into
// a user-facing message.
func (r *Router) Process(ctx context.Context, userInput string) string {
	label := Classify(userInput)

	r.logger.Debug("classified input",
		zap.Stringer("capability", label),
		zap.Int("input_length", len(userInput)),
	)

	text, err := r.Handle(ctx, label, userInput)
	if err != nil {
		r.logger.Error("capability handler failed",
			zap.Stringer("capability", label),
			zap.Error(err),
		)
		return fmt.Sprintf("I encountered an error while processing your request: %s", err)
	}
	return text
}

// Handle runs the handler for the given label. The switch is exhaustive
// with Fallback as the mandatory final arm, so labels added by future
// extensions degrade to the generic handler instead of failing.
func (r *Router) Handle(ctx context.Context, label Label, userInput string) (string, error) {
	switch label {
	case AnswerQuestion:
		system := r.systemPrompt + "\nAnswer the user's question accurately and concisely."
		return r.agent.Invoke(ctx, userInput, system)

	case Summarize:
		system := r.systemPrompt + "\nYou are tasked with summarizing text. Create a concise summary that captures the main points."
		prompt := fmt.Sprintf("Please summarize the following text:\n\n%s", summarizeTarget(userInput))
		return r.agent.Invoke(ctx, prompt, system)

	case Translate:
		system := r.systemPrompt + "\nYou are a skilled translator. Translate the text accurately while preserving meaning."
		prompt := fmt.Sprintf("Translate the following text to %s:\n\n%s", TargetLanguage(userInput), userInput)
		return r.agent.Invoke(ctx, prompt, system)

	case GenerateCode:
		system := r.systemPrompt + "\nYou are an expert programmer. Generate clean, efficient, and well-commented code based on the requirements."
		prompt := fmt.Sprintf("Generate code for the following requirement:\n\n%s\n\nPlease include comments and explain any non-obvious parts.", userInput)
		return r.agent.Invoke(ctx, prompt, system)

	default:
		system := r.systemPrompt + "\nRespond helpfully to the user's input."
		return r.agent.Invoke(ctx, userInput, system)
	}
}
