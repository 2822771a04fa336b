package metrics

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (f *fakeCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestCloudWatchRegistryEmit(t *testing.T) {
	fake := &fakeCloudWatch{}
	r := NewCloudWatchRegistry(zap.NewExample(), fake).(*cloudwatchRegistry)

	spec := &MetricSpec{
		Namespace: "TipcBench",
		Metric:    "Ips",
		Unit:      types.StandardUnitCountSecond,
	}
	for i := 0; i < batchSize+5; i++ {
		r.Record(spec, float64(i), map[string]string{"model_name": "cylinder2d_unsteady_bs1_fp32_DP"})
	}
	require.Equal(t, batchSize+5, r.registered())

	require.NoError(t, r.Emit())

	// batched into ceil(25/20) requests, registry drained
	require.Len(t, fake.inputs, 2)
	assert.Len(t, fake.inputs[0].MetricData, batchSize)
	assert.Len(t, fake.inputs[1].MetricData, 5)
	assert.Equal(t, "TipcBench", aws.ToString(fake.inputs[0].Namespace))
	assert.Equal(t, "Ips", aws.ToString(fake.inputs[0].MetricData[0].MetricName))
	assert.Equal(t, types.StandardUnitCountSecond, fake.inputs[0].MetricData[0].Unit)
	require.Len(t, fake.inputs[0].MetricData[0].Dimensions, 1)
	assert.Equal(t, "model_name", aws.ToString(fake.inputs[0].MetricData[0].Dimensions[0].Name))
	assert.Equal(t, 0, r.registered())
}

func TestCloudWatchRegistryEmitError(t *testing.T) {
	fake := &fakeCloudWatch{err: assert.AnError}
	r := NewCloudWatchRegistry(zap.NewExample(), fake).(*cloudwatchRegistry)

	r.Record(&MetricSpec{Namespace: "TipcBench", Metric: "Ips"}, 1.0, nil)
	require.Error(t, r.Emit())
	// failed emits keep the registry intact for a retry
	assert.Equal(t, 1, r.registered())
}

func TestNoopRegistry(t *testing.T) {
	r := NewNoopMetricRegistry()
	r.Record(&MetricSpec{Namespace: "TipcBench", Metric: "Ips"}, 1.0, nil)
	require.NoError(t, r.Emit())
}
