// Package agent implements the Bedrock agent client: a registry of
// model-family profiles that translate a uniform (input, system prompt)
// pair into each family's native request JSON and extract the generated
// text back out of each family's response shape, plus the client that
// performs the InvokeModel round-trip.
package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Input carries the uniform parameters for one invocation. It is built
// fresh per call and consumed by a profile's encoder.
type Input struct {
	UserInput    string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	TopP         float64
}

// Profile pairs the request encoder and response decoder for one model
// family. Profiles are immutable and selected by the first matching
// predicate over the model id.
type Profile struct {
	// Name identifies the family ("claude", "titan", ...)
	Name string

	// Match reports whether this profile handles the given model id
	Match func(modelID string) bool

	// Encode builds the family's native request body
	Encode func(in Input) ([]byte, error)

	// Decode extracts the generated text from the family's response body.
	// Decoding is total: missing fields degrade to the empty string.
	Decode func(raw []byte) string
}

// message is the chat message shape shared by the Claude and Mistral
// request formats.
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicVersion is the Bedrock API version string required in
// Claude-family request bodies.
const anthropicVersion = "bedrock-2023-05-31"

type claudeRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      float64   `json:"temperature"`
	TopP             float64   `json:"top_p"`
	Messages         []message `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

type titanRequest struct {
	InputText            string              `json:"inputText"`
	TextGenerationConfig titanGenerationConf `json:"textGenerationConfig"`
}

type titanGenerationConf struct {
	MaxTokenCount int      `json:"maxTokenCount"`
	Temperature   float64  `json:"temperature"`
	TopP          float64  `json:"topP"`
	StopSequences []string `json:"stopSequences"`
}

type titanResponse struct {
	Results []struct {
		OutputText string `json:"outputText"`
	} `json:"results"`
}

type llamaRequest struct {
	Prompt      string  `json:"prompt"`
	MaxGenLen   int     `json:"max_gen_len"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type llamaResponse struct {
	Generation string `json:"generation"`
}

type mistralRequest struct {
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p"`
}

type genericRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// chatMessages builds the messages array shared by the Claude and Mistral
// formats: an optional system-role message followed by the user message.
func chatMessages(in Input) []message {
	var msgs []message
	if in.SystemPrompt != "" {
		msgs = append(msgs, message{Role: "system", Content: in.SystemPrompt})
	}
	return append(msgs, message{Role: "user", Content: in.UserInput})
}

// titanPrompt renders the Human/Assistant transcript Titan models expect.
// The system prompt block is omitted entirely when absent.
func titanPrompt(in Input) string {
	if in.SystemPrompt != "" {
		return fmt.Sprintf("%s\n\nHuman: %s\n\nAssistant:", in.SystemPrompt, in.UserInput)
	}
	return fmt.Sprintf("Human: %s\n\nAssistant:", in.UserInput)
}

// llamaPrompt renders the tag-delimited prompt Llama models expect.
func llamaPrompt(in Input) string {
	if in.SystemPrompt != "" {
		return fmt.Sprintf("<system>\n%s\n</system>\n\n<user>\n%s\n</user>\n\n<assistant>", in.SystemPrompt, in.UserInput)
	}
	return fmt.Sprintf("<user>\n%s\n</user>\n\n<assistant>", in.UserInput)
}

// stringifyPayload renders an unrecognized response body as text. The raw
// JSON is compacted so the result is stable regardless of upstream
// formatting.
func stringifyPayload(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return strings.TrimSpace(string(raw))
	}
	return buf.String()
}

func matchSubstring(substr string) func(string) bool {
	return func(modelID string) bool {
		return strings.Contains(modelID, substr)
	}
}

// profiles is the ordered registry. Lookup is first-match-wins, and the
// generic profile matches everything, so lookup never fails.
var profiles = []Profile{
	{
		Name:  "claude",
		Match: matchSubstring("claude"),
		Encode: func(in Input) ([]byte, error) {
			return json.Marshal(claudeRequest{
				AnthropicVersion: anthropicVersion,
				MaxTokens:        in.MaxTokens,
				Temperature:      in.Temperature,
				TopP:             in.TopP,
				Messages:         chatMessages(in),
			})
		},
		Decode: func(raw []byte) string {
			var resp claudeResponse
			if err := json.Unmarshal(raw, &resp); err != nil || len(resp.Content) == 0 {
				return ""
			}
			return resp.Content[0].Text
		},
	},
	{
		Name:  "titan",
		Match: matchSubstring("titan"),
		Encode: func(in Input) ([]byte, error) {
			return json.Marshal(titanRequest{
				InputText: titanPrompt(in),
				TextGenerationConfig: titanGenerationConf{
					MaxTokenCount: in.MaxTokens,
					Temperature:   in.Temperature,
					TopP:          in.TopP,
					StopSequences: []string{},
				},
			})
		},
		Decode: func(raw []byte) string {
			var resp titanResponse
			if err := json.Unmarshal(raw, &resp); err != nil || len(resp.Results) == 0 {
				return ""
			}
			return resp.Results[0].OutputText
		},
	},
	{
		Name:  "llama",
		Match: matchSubstring("llama"),
		Encode: func(in Input) ([]byte, error) {
			return json.Marshal(llamaRequest{
				Prompt:      llamaPrompt(in),
				MaxGenLen:   in.MaxTokens,
				Temperature: in.Temperature,
				TopP:        in.TopP,
			})
		},
		Decode: func(raw []byte) string {
			var resp llamaResponse
			if err := json.Unmarshal(raw, &resp); err != nil {
				return ""
			}
			return resp.Generation
		},
	},
	{
		Name:  "mistral",
		Match: matchSubstring("mistral"),
		Encode: func(in Input) ([]byte, error) {
			return json.Marshal(mistralRequest{
				Messages:    chatMessages(in),
				MaxTokens:   in.MaxTokens,
				Temperature: in.Temperature,
				TopP:        in.TopP,
			})
		},
		// Mistral responses have no dedicated extraction rule; the whole
		// payload is rendered as text, same as the generic profile.
		Decode: stringifyPayload,
	},
	{
		Name:  "generic",
		Match: func(string) bool { return true },
		Encode: func(in Input) ([]byte, error) {
			return json.Marshal(genericRequest{
				Prompt:      in.UserInput,
				MaxTokens:   in.MaxTokens,
				Temperature: in.Temperature,
				TopP:        in.TopP,
			})
		},
		Decode: stringifyPayload,
	},
}

// ProfileFor returns the first profile whose predicate matches the model
// id. The generic profile is the terminal match.
func ProfileFor(modelID string) Profile {
	for _, p := range profiles {
		if p.Match(modelID) {
			return p
		}
	}
	// Unreachable: the generic profile matches everything.
	return profiles[len(profiles)-1]
}
