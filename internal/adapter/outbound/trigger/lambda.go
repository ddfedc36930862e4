package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/i2y/apiportal/internal/domain"
)

// LambdaAPI is the subset of the Lambda client used by Lambda.
type LambdaAPI interface {
	Invoke(ctx context.Context, in *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// Lambda invokes the rebuild function synchronously.
type Lambda struct {
	client   LambdaAPI
	function string
	logger   *slog.Logger
}

// NewLambda creates a trigger invoking function.
func NewLambda(client LambdaAPI, function string, logger *slog.Logger) *Lambda {
	return &Lambda{
		client:   client,
		function: function,
		logger:   logger.With("component", "lambda_trigger", "function", function),
	}
}

// Trigger invokes the function with RequestResponse semantics. Function errors
// reported in the response are returned as errors.
func (t *Lambda) Trigger(ctx context.Context) error {
	payload, err := json.Marshal(domain.RebuildRequest{Action: domain.RebuildActionName})
	if err != nil {
		return fmt.Errorf("failed to encode rebuild request: %w", err)
	}
	out, err := t.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(t.function),
		InvocationType: types.InvocationTypeRequestResponse,
		Payload:        payload,
	})
	if err != nil {
		t.logger.Error("Rebuild invoke failed", slog.Any("error", err))
		return fmt.Errorf("failed to invoke %s: %w", t.function, err)
	}
	if out.FunctionError != nil {
		t.logger.Error("Rebuild function reported an error",
			slog.String("function_error", aws.ToString(out.FunctionError)),
			slog.String("payload", string(out.Payload)))
		return fmt.Errorf("rebuild function %s failed (%s): %s", t.function, aws.ToString(out.FunctionError), out.Payload)
	}
	if out.StatusCode < 200 || out.StatusCode > 299 {
		return fmt.Errorf("rebuild function %s returned status %d", t.function, out.StatusCode)
	}

	var summary domain.RebuildSummary
	if err := json.Unmarshal(out.Payload, &summary); err == nil {
		t.logger.Debug("Remote rebuild finished",
			slog.Int("usage_plans", summary.UsagePlans),
			slog.Int("managed_apis", summary.ManagedAPIs),
			slog.Int("generic", summary.Generic))
	}
	return nil
}
