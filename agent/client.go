package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/moraine-llm/moraine/circuitbreaker"
	"github.com/moraine-llm/moraine/config"
)

// ErrorKind classifies a failed model invocation.
type ErrorKind string

const (
	KindAccessDenied  ErrorKind = "access_denied"
	KindValidation    ErrorKind = "validation"
	KindQuotaExceeded ErrorKind = "quota_exceeded"
	KindThrottling    ErrorKind = "throttling"
	KindModelNotReady ErrorKind = "model_not_ready"
	KindUnknown       ErrorKind = "unknown"
)

// InvocationError is the typed error returned when the remote model call
// fails. It carries the remote error code and message plus, when
// available, the AWS request id for diagnostics. Invocation errors are
// never retried; callers either propagate them or degrade them into the
// formatted text returned by Error.
type InvocationError struct {
	Kind      ErrorKind
	Code      string
	Message   string
	RequestID string
}

// Error renders the user-visible form of a failed invocation, matching
// the text relayed to clients when the failure is degraded to a chat
// response.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("Error (%s): %s", e.Code, e.Message)
}

// errorKindByCode maps AWS error codes to invocation error kinds.
var errorKindByCode = map[string]ErrorKind{
	"AccessDeniedException":         KindAccessDenied,
	"ValidationException":           KindValidation,
	"ServiceQuotaExceededException": KindQuotaExceeded,
	"ThrottlingException":           KindThrottling,
	"ModelNotReadyException":        KindModelNotReady,
}

// classifyError turns any error from the Bedrock call into an
// InvocationError, extracting the AWS error code, message, and request id
// when present.
func classifyError(err error) *InvocationError {
	invErr := &InvocationError{
		Kind:    KindUnknown,
		Code:    "Unknown",
		Message: err.Error(),
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		invErr.Code = apiErr.ErrorCode()
		invErr.Message = apiErr.ErrorMessage()
		if kind, ok := errorKindByCode[invErr.Code]; ok {
			invErr.Kind = kind
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		invErr.RequestID = respErr.ServiceRequestID()
	}

	return invErr
}

// BedrockInvoker abstracts the Bedrock InvokeModel call for testing.
type BedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Client owns one Bedrock model id and region. It encodes requests through
// the model's profile, performs the InvokeModel round-trip, and decodes
// the response. A client is safe for concurrent use; it holds no mutable
// state.
type Client struct {
	invoker  BedrockInvoker
	profile  Profile
	cfg      config.BedrockConfig
	breaker  *circuitbreaker.CircuitBreaker
	onResult func(model, outcome string)
	logger   *zap.Logger
}

// NewClient builds a client backed by the real Bedrock runtime. AWS
// credentials come from the configured key=value credentials file when
// set, otherwise from the default chain. Missing or unresolvable
// credentials fail construction: the process must not proceed to serve
// requests without them.
func NewClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Bedrock.Region),
	}

	if cfg.Bedrock.CredentialsFile != "" {
		creds, err := config.ReadCredentialsFile(cfg.Bedrock.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("load credentials: %w", err)
		}
		logger.Info("using credentials file",
			zap.String("path", cfg.Bedrock.CredentialsFile),
			zap.String("access_key", creds.MaskedAccessKey()),
		)
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		return nil, fmt.Errorf("no AWS credentials available: %w", err)
	}

	if cfg.Bedrock.VerifyModelAccess {
		VerifyModelAccess(ctx, bedrock.NewFromConfig(awsCfg), cfg.Bedrock.ModelID, logger)
	}

	client := NewClientWithInvoker(bedrockruntime.NewFromConfig(awsCfg), cfg.Bedrock, logger)

	logger.Info("Bedrock client initialized",
		zap.String("region", cfg.Bedrock.Region),
		zap.String("model", cfg.Bedrock.ModelID),
		zap.String("profile", client.profile.Name),
	)

	return client, nil
}

// NewClientWithInvoker builds a client around a pre-configured invoker.
// Used directly by tests.
func NewClientWithInvoker(invoker BedrockInvoker, cfg config.BedrockConfig, logger *zap.Logger) *Client {
	return &Client{
		invoker: invoker,
		profile: ProfileFor(cfg.ModelID),
		cfg:     cfg,
		logger:  logger,
	}
}

// SetBreaker installs a circuit breaker around the remote call. When the
// circuit is open, invocations fail fast with an InvocationError instead
// of reaching Bedrock.
func (c *Client) SetBreaker(breaker *circuitbreaker.CircuitBreaker) {
	c.breaker = breaker
}

// SetInvocationHook installs a callback observing every invocation
// outcome ("success" or the invocation error kind). Used to feed metrics.
func (c *Client) SetInvocationHook(f func(model, outcome string)) {
	c.onResult = f
}

// ModelID returns the model id this client invokes.
func (c *Client) ModelID() string {
	return c.cfg.ModelID
}

// Invoke sends the user input (and optional system prompt) to the model
// and returns the generated text. Failures return a typed
// *InvocationError; nothing is retried.
func (c *Client) Invoke(ctx context.Context, userInput, systemPrompt string) (string, error) {
	body, err := c.profile.Encode(Input{
		UserInput:    userInput,
		SystemPrompt: systemPrompt,
		MaxTokens:    c.cfg.MaxTokens,
		Temperature:  c.cfg.Temperature,
		TopP:         c.cfg.TopP,
	})
	if err != nil {
		return "", fmt.Errorf("encode request for %s: %w", c.cfg.ModelID, err)
	}

	c.logger.Debug("invoking model",
		zap.String("model", c.cfg.ModelID),
		zap.String("profile", c.profile.Name),
		zap.Int("body_size", len(body)),
	)

	var out *bedrockruntime.InvokeModelOutput
	call := func() error {
		var callErr error
		out, callErr = c.invoker.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(c.cfg.ModelID),
			Body:        body,
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
		})
		return callErr
	}

	if c.breaker != nil {
		err = c.breaker.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		invErr := classifyError(err)
		if c.onResult != nil {
			c.onResult(c.cfg.ModelID, string(invErr.Kind))
		}
		c.logger.Error("model invocation failed",
			zap.String("model", c.cfg.ModelID),
			zap.String("kind", string(invErr.Kind)),
			zap.String("code", invErr.Code),
			zap.String("message", invErr.Message),
			zap.String("aws_request_id", invErr.RequestID),
		)
		return "", invErr
	}

	if c.onResult != nil {
		c.onResult(c.cfg.ModelID, "success")
	}
	return c.profile.Decode(out.Body), nil
}

// InvokeText is like Invoke but degrades invocation errors into their
// formatted text form, so callers relay a chat-style error message instead
// of failing the request. Unexpected errors still propagate.
func (c *Client) InvokeText(ctx context.Context, userInput, systemPrompt string) (string, error) {
	text, err := c.Invoke(ctx, userInput, systemPrompt)
	if err != nil {
		var invErr *InvocationError
		if errors.As(err, &invErr) {
			return invErr.Error(), nil
		}
		return "", err
	}
	return text, nil
}
