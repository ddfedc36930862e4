package apigw

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	"github.com/aws/aws-sdk-go-v2/service/apigateway/types"

	"github.com/i2y/apiportal/internal/domain"
)

// pageSize is the largest page API Gateway accepts.
const pageSize int32 = 500

// API is the subset of the API Gateway client used by Gateway.
type API interface {
	GetRestApis(ctx context.Context, in *apigateway.GetRestApisInput, optFns ...func(*apigateway.Options)) (*apigateway.GetRestApisOutput, error)
	GetStages(ctx context.Context, in *apigateway.GetStagesInput, optFns ...func(*apigateway.Options)) (*apigateway.GetStagesOutput, error)
	GetUsagePlans(ctx context.Context, in *apigateway.GetUsagePlansInput, optFns ...func(*apigateway.Options)) (*apigateway.GetUsagePlansOutput, error)
	GetExport(ctx context.Context, in *apigateway.GetExportInput, optFns ...func(*apigateway.Options)) (*apigateway.GetExportOutput, error)
}

// Gateway implements usecase.Gateway against Amazon API Gateway REST APIs.
type Gateway struct {
	client API
	logger *slog.Logger
}

// New creates a Gateway backed by client.
func New(client API, logger *slog.Logger) *Gateway {
	return &Gateway{
		client: client,
		logger: logger.With("component", "apigateway"),
	}
}

// ListRestAPIs follows the position token until every REST API is returned.
func (g *Gateway) ListRestAPIs(ctx context.Context) ([]domain.RestAPI, error) {
	var apis []domain.RestAPI
	var position *string
	for {
		out, err := g.client.GetRestApis(ctx, &apigateway.GetRestApisInput{
			Limit:    aws.Int32(pageSize),
			Position: position,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get rest apis: %w", err)
		}
		for _, item := range out.Items {
			apis = append(apis, domain.RestAPI{ID: aws.ToString(item.Id), Name: aws.ToString(item.Name)})
		}
		if aws.ToString(out.Position) == "" {
			break
		}
		position = out.Position
	}
	g.logger.Debug("Listed rest apis", slog.Int("count", len(apis)))
	return apis, nil
}

// ListStages returns the stage names deployed for apiID.
func (g *Gateway) ListStages(ctx context.Context, apiID string) ([]string, error) {
	out, err := g.client.GetStages(ctx, &apigateway.GetStagesInput{RestApiId: aws.String(apiID)})
	if err != nil {
		return nil, fmt.Errorf("failed to get stages for %s: %w", apiID, err)
	}
	stages := make([]string, 0, len(out.Item))
	for _, s := range out.Item {
		stages = append(stages, aws.ToString(s.StageName))
	}
	return stages, nil
}

// ListUsagePlans follows the position token until every usage plan is returned.
func (g *Gateway) ListUsagePlans(ctx context.Context) ([]domain.UsagePlan, error) {
	var plans []domain.UsagePlan
	var position *string
	for {
		out, err := g.client.GetUsagePlans(ctx, &apigateway.GetUsagePlansInput{
			Limit:    aws.Int32(pageSize),
			Position: position,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get usage plans: %w", err)
		}
		for _, item := range out.Items {
			plans = append(plans, toUsagePlan(item))
		}
		if aws.ToString(out.Position) == "" {
			break
		}
		position = out.Position
	}
	g.logger.Debug("Listed usage plans", slog.Int("count", len(plans)))
	return plans, nil
}

// ExportDocument exports the OpenAPI 3 description of a deployed stage with the
// gateway integration extensions that mark it as managed.
func (g *Gateway) ExportDocument(ctx context.Context, apiID, stage string) ([]byte, error) {
	out, err := g.client.GetExport(ctx, &apigateway.GetExportInput{
		RestApiId:  aws.String(apiID),
		StageName:  aws.String(stage),
		ExportType: aws.String("oas30"),
		Accepts:    aws.String("application/json"),
		Parameters: map[string]string{"extensions": "apigateway"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export %s stage %s: %w", apiID, stage, err)
	}
	if len(out.Body) == 0 {
		return nil, fmt.Errorf("export of %s stage %s returned an empty document", apiID, stage)
	}
	return out.Body, nil
}

func toUsagePlan(item types.UsagePlan) domain.UsagePlan {
	plan := domain.UsagePlan{
		ID:   aws.ToString(item.Id),
		Name: aws.ToString(item.Name),
	}
	if item.Throttle != nil {
		plan.Throttle = &domain.Throttle{
			RateLimit:  item.Throttle.RateLimit,
			BurstLimit: item.Throttle.BurstLimit,
		}
	}
	if item.Quota != nil {
		plan.Quota = &domain.Quota{
			Limit:  item.Quota.Limit,
			Offset: item.Quota.Offset,
			Period: string(item.Quota.Period),
		}
	}
	for _, s := range item.ApiStages {
		plan.APIStages = append(plan.APIStages, domain.APIStage{
			APIID: aws.ToString(s.ApiId),
			Stage: aws.ToString(s.Stage),
		})
	}
	return plan
}
