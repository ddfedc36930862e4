package apigw_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	"github.com/aws/aws-sdk-go-v2/service/apigateway/types"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/apiportal/internal/adapter/outbound/apigw"
	"github.com/i2y/apiportal/internal/domain"
)

// fakeAPI pages its fixtures one item per call.
type fakeAPI struct {
	apis      []types.RestApi
	stages    map[string][]string
	plans     []types.UsagePlan
	export    []byte
	exportErr error
	exportIn  *apigateway.GetExportInput
	planCalls int
	restCalls int
}

func page(position *string, n int) (int, *string) {
	i := 0
	if position != nil {
		i, _ = strconv.Atoi(*position)
	}
	if i+1 < n {
		return i, aws.String(strconv.Itoa(i + 1))
	}
	return i, nil
}

func (f *fakeAPI) GetRestApis(_ context.Context, in *apigateway.GetRestApisInput, _ ...func(*apigateway.Options)) (*apigateway.GetRestApisOutput, error) {
	f.restCalls++
	if len(f.apis) == 0 {
		return &apigateway.GetRestApisOutput{}, nil
	}
	i, next := page(in.Position, len(f.apis))
	return &apigateway.GetRestApisOutput{Items: f.apis[i : i+1], Position: next}, nil
}

func (f *fakeAPI) GetStages(_ context.Context, in *apigateway.GetStagesInput, _ ...func(*apigateway.Options)) (*apigateway.GetStagesOutput, error) {
	names, ok := f.stages[aws.ToString(in.RestApiId)]
	if !ok {
		return nil, errors.New("not found")
	}
	out := &apigateway.GetStagesOutput{}
	for _, n := range names {
		out.Item = append(out.Item, types.Stage{StageName: aws.String(n)})
	}
	return out, nil
}

func (f *fakeAPI) GetUsagePlans(_ context.Context, in *apigateway.GetUsagePlansInput, _ ...func(*apigateway.Options)) (*apigateway.GetUsagePlansOutput, error) {
	f.planCalls++
	if len(f.plans) == 0 {
		return &apigateway.GetUsagePlansOutput{}, nil
	}
	i, next := page(in.Position, len(f.plans))
	return &apigateway.GetUsagePlansOutput{Items: f.plans[i : i+1], Position: next}, nil
}

func (f *fakeAPI) GetExport(_ context.Context, in *apigateway.GetExportInput, _ ...func(*apigateway.Options)) (*apigateway.GetExportOutput, error) {
	f.exportIn = in
	if f.exportErr != nil {
		return nil, f.exportErr
	}
	return &apigateway.GetExportOutput{Body: f.export}, nil
}

func newGateway(f *fakeAPI) *apigw.Gateway {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return apigw.New(f, logger)
}

func TestGateway_ListRestAPIsFollowsPosition(t *testing.T) {
	f := &fakeAPI{apis: []types.RestApi{
		{Id: aws.String("a1"), Name: aws.String("Pets")},
		{Id: aws.String("b2"), Name: aws.String("Orders")},
		{Id: aws.String("c3")},
	}}

	got, err := newGateway(f).ListRestAPIs(context.Background())
	require.NoError(t, err)

	want := []domain.RestAPI{{ID: "a1", Name: "Pets"}, {ID: "b2", Name: "Orders"}, {ID: "c3"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListRestAPIs mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, f.restCalls)
}

func TestGateway_ListStages(t *testing.T) {
	f := &fakeAPI{stages: map[string][]string{"a1": {"prod", "dev"}}}
	gw := newGateway(f)

	got, err := gw.ListStages(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, []string{"prod", "dev"}, got)

	_, err = gw.ListStages(context.Background(), "missing")
	assert.Error(t, err)
}

func TestGateway_ListUsagePlansMapsLimits(t *testing.T) {
	f := &fakeAPI{plans: []types.UsagePlan{
		{
			Id:        aws.String("p1"),
			Name:      aws.String("Basic"),
			Throttle:  &types.ThrottleSettings{BurstLimit: 10, RateLimit: 5.5},
			Quota:     &types.QuotaSettings{Limit: 1000, Offset: 0, Period: types.QuotaPeriodTypeMonth},
			ApiStages: []types.ApiStage{{ApiId: aws.String("a1"), Stage: aws.String("prod")}},
		},
		{Id: aws.String("p2"), Name: aws.String("Empty")},
	}}

	got, err := newGateway(f).ListUsagePlans(context.Background())
	require.NoError(t, err)

	want := []domain.UsagePlan{
		{
			ID:        "p1",
			Name:      "Basic",
			Throttle:  &domain.Throttle{RateLimit: 5.5, BurstLimit: 10},
			Quota:     &domain.Quota{Limit: 1000, Offset: 0, Period: "MONTH"},
			APIStages: []domain.APIStage{{APIID: "a1", Stage: "prod"}},
		},
		{ID: "p2", Name: "Empty"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListUsagePlans mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, f.planCalls)
}

func TestGateway_ExportDocument(t *testing.T) {
	assert := assert.New(t)
	f := &fakeAPI{export: []byte(`{"openapi":"3.0.1"}`)}
	gw := newGateway(f)

	body, err := gw.ExportDocument(context.Background(), "a1", "prod")
	require.NoError(t, err)
	assert.Equal(`{"openapi":"3.0.1"}`, string(body))
	assert.Equal("oas30", aws.ToString(f.exportIn.ExportType))
	assert.Equal("apigateway", f.exportIn.Parameters["extensions"])
	assert.Equal("prod", aws.ToString(f.exportIn.StageName))

	f.export = nil
	_, err = gw.ExportDocument(context.Background(), "a1", "prod")
	assert.Error(err, "empty export is rejected")

	f.exportErr = errors.New("NotFoundException")
	_, err = gw.ExportDocument(context.Background(), "a1", "prod")
	assert.ErrorContains(err, "NotFoundException")
}
