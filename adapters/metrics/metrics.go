// Package metrics provides Prometheus metrics for schema stores.
package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "fieldschema"

// Collector holds all Prometheus metrics for fieldschema.
type Collector struct {
	// Schema metrics
	MutationsTotal *prometheus.CounterVec
	FieldsTotal    *prometheus.GaugeVec

	// Value validation metrics
	ValueChecks *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates a collector registered on its own registry.
func New(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg, namespace)
}

// NewWithRegistry creates a collector registered with reg. gatherer is used
// by WriteText and may be nil.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer, namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Collector{
		MutationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schema_mutations_total",
				Help:      "Schema operations attempted, by outcome",
			},
			[]string{"module", "op", "outcome"},
		),
		FieldsTotal: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "schema_fields",
				Help:      "Current number of fields in a module",
			},
			[]string{"module"},
		),

		ValueChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "value_checks_total",
				Help:      "Record validations run against a module schema",
			},
			[]string{"module", "outcome"},
		),

		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of configuration reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of failed configuration reloads",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_last_reload_timestamp_seconds",
				Help:      "Timestamp of the last successful configuration reload",
			},
		),

		gatherer: gatherer,
	}
}

// Mutation implements ports.MutationMetrics.
func (c *Collector) Mutation(module, op, outcome string) {
	c.MutationsTotal.WithLabelValues(module, op, outcome).Inc()
}

// Fields implements ports.MutationMetrics.
func (c *Collector) Fields(module string, n int) {
	c.FieldsTotal.WithLabelValues(module).Set(float64(n))
}

// ValueCheck counts one record validation.
func (c *Collector) ValueCheck(module string, valid bool) {
	outcome := "valid"
	if !valid {
		outcome = "invalid"
	}
	c.ValueChecks.WithLabelValues(module, outcome).Inc()
}

// WriteText writes every gathered metric in the Prometheus text format.
func (c *Collector) WriteText(w io.Writer) error {
	if c.gatherer == nil {
		return nil
	}
	families, err := c.gatherer.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
