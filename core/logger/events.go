package logger

import "go.uber.org/zap"

// Field keys for sync run events. Every event a run emits carries a topic
// and a code; metric is attached when the event reports a count or a
// duration.
const (
	KeyTopic  = "topic"
	KeyCode   = "code"
	KeyMetric = "metric"
)

// Topic tags an event with its subject area (e.g. "SCHEMA", "DELETES").
func Topic(topic string) zap.Field {
	return zap.String(KeyTopic, topic)
}

// Code tags an event with its outcome code (e.g. "COMPLETED", "MISMATCH").
func Code(code string) zap.Field {
	return zap.String(KeyCode, code)
}

// Metric attaches a numeric measurement to an event.
func Metric(value float64) zap.Field {
	return zap.Float64(KeyMetric, value)
}
