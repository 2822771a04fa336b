package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// PutMetricData caps MetricData at 1000 datums per request; batch
// conservatively to keep request sizes small.
const batchSize = 20

// cloudwatchAPI is the subset of the CloudWatch client the registry uses.
type cloudwatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// NewCloudWatchRegistry creates a new metric registry that will emit values using the specified cloudwatch client
func NewCloudWatchRegistry(lg *zap.Logger, cw cloudwatchAPI) MetricRegistry {
	return &cloudwatchRegistry{
		lg:              lg,
		cw:              cw,
		lock:            &sync.Mutex{},
		dataByNamespace: make(map[string][]*cloudwatchMetricDatum),
	}
}

type cloudwatchRegistry struct {
	lg              *zap.Logger
	cw              cloudwatchAPI
	lock            *sync.Mutex
	dataByNamespace map[string][]*cloudwatchMetricDatum
}

type cloudwatchMetricDatum struct {
	spec       *MetricSpec
	value      float64
	dimensions map[string]string
	timestamp  time.Time
}

func (r *cloudwatchRegistry) Record(spec *MetricSpec, value float64, dimensions map[string]string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.dataByNamespace[spec.Namespace] = append(r.dataByNamespace[spec.Namespace], &cloudwatchMetricDatum{
		spec:       spec,
		value:      value,
		dimensions: dimensions,
		timestamp:  time.Now(),
	})
}

func (r *cloudwatchRegistry) Emit() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	for namespace, data := range r.dataByNamespace {
		for i := 0; i < len(data); {
			var metricData []types.MetricDatum
			for j := 0; j < batchSize && i < len(data); j++ {
				datum := data[i]
				var dimensions []types.Dimension
				for key, val := range datum.dimensions {
					dimensions = append(dimensions, types.Dimension{
						Name:  aws.String(key),
						Value: aws.String(val),
					})
				}
				metricData = append(metricData, types.MetricDatum{
					MetricName: aws.String(datum.spec.Metric),
					Unit:       datum.spec.Unit,
					Value:      aws.Float64(datum.value),
					Dimensions: dimensions,
					Timestamp:  &datum.timestamp,
				})
				i++
			}
			_, err := r.cw.PutMetricData(context.TODO(), &cloudwatch.PutMetricDataInput{
				Namespace:  aws.String(namespace),
				MetricData: metricData,
			})
			if err != nil {
				var apiErr smithy.APIError
				if errors.As(err, &apiErr) {
					r.lg.Warn("failed to put metric data",
						zap.String("namespace", namespace),
						zap.String("error-code", apiErr.ErrorCode()),
						zap.String("error-message", apiErr.ErrorMessage()),
					)
				}
				return err
			}
		}
		r.lg.Info("emitted metrics", zap.Int("metrics", len(data)), zap.String("namespace", namespace))
	}
	r.dataByNamespace = make(map[string][]*cloudwatchMetricDatum)
	return nil
}

func (r *cloudwatchRegistry) registered() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	registered := 0
	for _, data := range r.dataByNamespace {
		registered += len(data)
	}
	return registered
}
