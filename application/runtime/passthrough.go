package runtime

import (
	"github.com/frenb/accelent/domain/core/entities"
	"github.com/frenb/accelent/domain/core/valueobjects"
)

// dataSourceRuntime emits the configured content, or the input when the
// node has no content of its own.
type dataSourceRuntime struct {
	applier
}

func newDataSourceRuntime(store NodeStore, cfg Config) *dataSourceRuntime {
	return &dataSourceRuntime{applier{store: store, kind: entities.KindDataSource, metrics: cfg.Metrics, logger: cfg.Logger}}
}

func (r *dataSourceRuntime) Kind() entities.Kind { return entities.KindDataSource }

func (r *dataSourceRuntime) Trigger(node entities.Node) {
	output := node.Config.Content()
	if output == "" {
		output = node.Input
	}
	if r.apply(node, entities.StringPtr(output), entities.StatusResolved) {
		r.metrics.RecordExecution(string(r.kind), string(entities.StatusResolved), 0)
	}
}

func (r *dataSourceRuntime) Forget(valueobjects.NodeID) {}
func (r *dataSourceRuntime) Close()                     {}

// displayRuntime shows its input unchanged
type displayRuntime struct {
	applier
}

func newDisplayRuntime(store NodeStore, cfg Config) *displayRuntime {
	return &displayRuntime{applier{store: store, kind: entities.KindDisplay, metrics: cfg.Metrics, logger: cfg.Logger}}
}

func (r *displayRuntime) Kind() entities.Kind { return entities.KindDisplay }

func (r *displayRuntime) Trigger(node entities.Node) {
	if r.apply(node, entities.StringPtr(node.Input), entities.StatusResolved) {
		r.metrics.RecordExecution(string(r.kind), string(entities.StatusResolved), 0)
	}
}

func (r *displayRuntime) Forget(valueobjects.NodeID) {}
func (r *displayRuntime) Close()                     {}
