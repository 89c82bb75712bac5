/*
Package observability binds engine lifecycle hooks to Prometheus metrics and
structured logs.

Both are plain domain.LifecycleHooks values and can be combined with
domain.ComposeHooks:

	metrics, _ := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := domain.ComposeHooks(metrics.Hooks(), observability.LogHooks(logger))
*/
package observability
