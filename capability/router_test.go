package capability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// captureAgent records the last invocation and replays a canned reply.
type captureAgent struct {
	lastInput  string
	lastSystem string
	reply      string
	err        error
}

func (a *captureAgent) Invoke(ctx context.Context, userInput, systemPrompt string) (string, error) {
	a.lastInput = userInput
	a.lastSystem = systemPrompt
	return a.reply, a.err
}

func TestClassify(t *testing.T) {
	tests := []struct {
		input string
		want  Label
	}{
		{"Summarize this article for me", Summarize},
		{"can you give me a SUMMARY of the meeting", Summarize},
		{"Translate hello world", Translate},
		{"say good morning in spanish", Translate},
		{"how do you say cat in french", Translate},
		{"write a function that reverses a string", GenerateCode},
		{"give me a python script", GenerateCode},
		{"what is the capital of Peru", AnswerQuestion},
		{"", AnswerQuestion},
		// Summarize keywords win over later categories.
		{"summarize this code", Summarize},
		// Translate beats code.
		{"translate this program comment", Translate},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.input))
		})
	}
}

func TestTargetLanguage(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"translate hello", "Spanish"},
		{"translate hello in French", "French"},
		{"translate hello in German", "German"},
		// German is checked last and wins when both appear.
		{"say this in french or in german", "German"},
		{"say this in german or in french", "German"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, TargetLanguage(tt.input))
		})
	}
}

func TestSummarizeTarget(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"text after keyword", "summarize The quick brown fox", "The quick brown fox"},
		{"mixed case keyword", "Please Summarize this long report", "this long report"},
		{"keyword absent", "a plain request", "a plain request"},
		{"keyword trails input", "please summarize", "please summarize"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, summarizeTarget(tt.input))
		})
	}
}

func TestProcessAnswerQuestion(t *testing.T) {
	agent := &captureAgent{reply: "Lima"}
	r := NewRouter(agent, "Base prompt.", zaptest.NewLogger(t))

	got := r.Process(context.Background(), "what is the capital of Peru")
	assert.Equal(t, "Lima", got)
	assert.Equal(t, "what is the capital of Peru", agent.lastInput)
	assert.Equal(t, "Base prompt.\nAnswer the user's question accurately and concisely.", agent.lastSystem)
}

func TestProcessSummarize(t *testing.T) {
	agent := &captureAgent{reply: "short version"}
	r := NewRouter(agent, "Base prompt.", zaptest.NewLogger(t))

	got := r.Process(context.Background(), "summarize The quick brown fox jumps")
	assert.Equal(t, "short version", got)
	assert.Equal(t, "Please summarize the following text:\n\nThe quick brown fox jumps", agent.lastInput)
	assert.Equal(t, "Base prompt.\nYou are tasked with summarizing text. Create a concise summary that captures the main points.", agent.lastSystem)
}

func TestProcessTranslate(t *testing.T) {
	agent := &captureAgent{reply: "bonjour"}
	r := NewRouter(agent, "Base prompt.", zaptest.NewLogger(t))

	got := r.Process(context.Background(), "translate hello in french")
	assert.Equal(t, "bonjour", got)
	assert.Equal(t, "Translate the following text to French:\n\ntranslate hello in french", agent.lastInput)
	assert.Equal(t, "Base prompt.\nYou are a skilled translator. Translate the text accurately while preserving meaning.", agent.lastSystem)
}

func TestProcessGenerateCode(t *testing.T) {
	agent := &captureAgent{reply: "def f(): pass"}
	r := NewRouter(agent, "Base prompt.", zaptest.NewLogger(t))

	got := r.Process(context.Background(), "write a function that reverses a string")
	assert.Equal(t, "def f(): pass", got)
	assert.Equal(t, "Generate code for the following requirement:\n\nwrite a function that reverses a string\n\nPlease include comments and explain any non-obvious parts.", agent.lastInput)
	assert.Equal(t, "Base prompt.\nYou are an expert programmer. Generate clean, efficient, and well-commented code based on the requirements.", agent.lastSystem)
}

func TestProcessDegradesErrors(t *testing.T) {
	agent := &captureAgent{err: errors.New("Error (ThrottlingException): slow down")}
	r := NewRouter(agent, "Base prompt.", zaptest.NewLogger(t))

	got := r.Process(context.Background(), "what time is it")
	assert.Equal(t, "I encountered an error while processing your request: Error (ThrottlingException): slow down", got)
}

func TestHandleFallback(t *testing.T) {
	agent := &captureAgent{reply: "ok"}
	r := NewRouter(agent, "Base prompt.", zaptest.NewLogger(t))

	got, err := r.Handle(context.Background(), Fallback, "anything")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, "anything", agent.lastInput)
	assert.Equal(t, "Base prompt.\nRespond helpfully to the user's input.", agent.lastSystem)
}

func TestLabelString(t *testing.T) {
	assert.Equal(t, "answer_question", AnswerQuestion.String())
	assert.Equal(t, "summarize_text", Summarize.String())
	assert.Equal(t, "translate_text", Translate.String())
	assert.Equal(t, "generate_code", GenerateCode.String())
	assert.Equal(t, "fallback", Fallback.String())
}
