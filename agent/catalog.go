package agent

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"go.uber.org/zap"
)

// ModelLister abstracts the Bedrock control-plane ListFoundationModels
// call for testing.
type ModelLister interface {
	ListFoundationModels(ctx context.Context, params *bedrock.ListFoundationModelsInput, optFns ...func(*bedrock.Options)) (*bedrock.ListFoundationModelsOutput, error)
}

// VerifyModelAccess probes the account's foundation-model catalog and logs
// whether the configured model is available, suggesting an accessible
// same-family model when it is not. The probe is diagnostic only: it runs
// once at startup and its failure never blocks serving.
func VerifyModelAccess(ctx context.Context, lister ModelLister, modelID string, logger *zap.Logger) {
	out, err := lister.ListFoundationModels(ctx, &bedrock.ListFoundationModelsInput{})
	if err != nil {
		logger.Warn("could not list available models; this may indicate a missing bedrock:ListFoundationModels permission",
			zap.Error(err),
		)
		return
	}

	available := make([]string, 0, len(out.ModelSummaries))
	found := false
	for _, summary := range out.ModelSummaries {
		id := aws.ToString(summary.ModelId)
		available = append(available, id)
		if id == modelID {
			found = true
		}
	}

	if found {
		logger.Info("configured model is available",
			zap.String("model", modelID),
			zap.Int("catalog_size", len(available)),
		)
		return
	}

	logger.Warn("configured model is not in the account's available models",
		zap.String("model", modelID),
		zap.Int("catalog_size", len(available)),
	)

	// Suggest an accessible model from the same family.
	family := ProfileFor(modelID).Name
	if family == "generic" {
		return
	}
	for _, id := range available {
		if strings.Contains(strings.ToLower(id), family) {
			logger.Warn("consider using an accessible model from the same family",
				zap.String("suggestion", id),
			)
			return
		}
	}
}
