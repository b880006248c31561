// file: telemetry/metrics.go

package telemetry

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/aws/aws-sdk-go/service/cloudwatch/cloudwatchiface"
	"go-button-wars/logger"
)

// DefaultMetricsNamespace groups the game's CloudWatch metrics.
const DefaultMetricsNamespace = "ButtonWars"

// MetricsSink turns events into CloudWatch metrics. Publish only queues a
// datum; Run ships the queue.
type MetricsSink struct {
	client    cloudwatchiface.CloudWatchAPI
	namespace string
	queue     chan *cloudwatch.MetricDatum
	now       func() time.Time
}

// NewCloudWatchSink builds a sink on the default AWS session.
func NewCloudWatchSink(namespace string) (*MetricsSink, error) {
	sess, err := session.NewSession()
	if err != nil {
		return nil, err
	}
	return NewMetricsSink(cloudwatch.New(sess), namespace), nil
}

// NewMetricsSink wraps client.
func NewMetricsSink(client cloudwatchiface.CloudWatchAPI, namespace string) *MetricsSink {
	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}
	return &MetricsSink{
		client:    client,
		namespace: namespace,
		queue:     make(chan *cloudwatch.MetricDatum, 128),
		now:       time.Now,
	}
}

// Publish implements Sink.
func (m *MetricsSink) Publish(ev Event) {
	for _, d := range m.datums(ev) {
		select {
		case m.queue <- d:
		default:
			logger.Warn().Str("metric", aws.StringValue(d.MetricName)).Msg("[MetricsSink.Publish] Queue full, dropping metric")
		}
	}
}

// PublishConnections records the telemetry client count.
func (m *MetricsSink) PublishConnections(count int) {
	m.Publish(Event{Type: "connections", Time: m.now(), Data: map[string]interface{}{"count": count}})
}

func (m *MetricsSink) datums(ev Event) []*cloudwatch.MetricDatum {
	ts := ev.Time
	if ts.IsZero() {
		ts = m.now()
	}
	switch ev.Type {
	case EventRound:
		ms, _ := ev.Data["responseMs"].(int64)
		winner, _ := ev.Data["winner"].(string)
		return []*cloudwatch.MetricDatum{
			datum("ResponseTimeMs", float64(ms), cloudwatch.StandardUnitMilliseconds, ts, "Player", winner),
			datum("RoundsPlayed", 1, cloudwatch.StandardUnitCount, ts, "", ""),
		}
	case EventMatchResult:
		winner, _ := ev.Data["winner"].(string)
		return []*cloudwatch.MetricDatum{datum("MatchesCompleted", 1, cloudwatch.StandardUnitCount, ts, "Player", winner)}
	case EventLongPress:
		return []*cloudwatch.MetricDatum{datum("LongPressWarnings", 1, cloudwatch.StandardUnitCount, ts, "", "")}
	case EventFailSafe:
		return []*cloudwatch.MetricDatum{datum("FailSafeArmed", 1, cloudwatch.StandardUnitCount, ts, "", "")}
	case "connections":
		n, _ := ev.Data["count"].(int)
		return []*cloudwatch.MetricDatum{datum("TelemetryConnections", float64(n), cloudwatch.StandardUnitCount, ts, "", "")}
	}
	return nil
}

func datum(name string, value float64, unit string, ts time.Time, dimName, dimValue string) *cloudwatch.MetricDatum {
	d := &cloudwatch.MetricDatum{
		MetricName: aws.String(name),
		Timestamp:  aws.Time(ts),
		Value:      aws.Float64(value),
		Unit:       aws.String(unit),
	}
	if dimName != "" && dimValue != "" {
		d.Dimensions = []*cloudwatch.Dimension{{Name: aws.String(dimName), Value: aws.String(dimValue)}}
	}
	return d
}

// Run ships queued metrics until ctx ends.
func (m *MetricsSink) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d := <-m.queue:
			m.put(ctx, d)
		}
	}
}

func (m *MetricsSink) put(ctx context.Context, d *cloudwatch.MetricDatum) {
	_, err := m.client.PutMetricDataWithContext(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []*cloudwatch.MetricDatum{d},
	})
	if err != nil {
		logger.Error().Err(err).Str("metric", aws.StringValue(d.MetricName)).Msg("[MetricsSink.put] CloudWatch metric failed")
	}
}
