// Package metrics is the metric facade used by the session layer. Metrics are
// addressed by group and name and created on first use.
package metrics

// Value represents a metric value as a float64.
type Value float64

// Dimension represents metric dimensions as key-value pairs, such as the
// reason a connection was rejected.
type Dimension map[string]string
