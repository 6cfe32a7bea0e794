package runtime

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/frenb/accelent/application/ports"
	"github.com/frenb/accelent/domain/core/entities"
	"github.com/frenb/accelent/domain/core/valueobjects"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RowsFromInput turns a JSON array or object into document rows. Arrays
// keep their element order; objects become {key, value} rows sorted by
// key. ok is false for anything else.
func RowsFromInput(input string) (rows []ports.Row, ok bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, false
	}

	var decoded interface{}
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return nil, false
	}

	switch v := decoded.(type) {
	case []interface{}:
		rows = make([]ports.Row, 0, len(v))
		for _, elem := range v {
			if obj, isObj := elem.(map[string]interface{}); isObj {
				rows = append(rows, ports.Row(obj))
				continue
			}
			rows = append(rows, ports.Row{"value": elem})
		}
		return rows, true
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rows = make([]ports.Row, 0, len(keys))
		for _, k := range keys {
			rows = append(rows, ports.Row{"key": k, "value": v[k]})
		}
		return rows, true
	}
	return nil, false
}

// spreadsheetRuntime sends structured input to the document service and
// outputs the document URL. Input that is not a JSON array or object
// leaves the node in the no_data state.
type spreadsheetRuntime struct {
	applier
	documents ports.DocumentService

	mu       sync.Mutex
	inflight map[valueobjects.NodeID]uint64
	closed   bool
	wg       sync.WaitGroup
}

func newSpreadsheetRuntime(store NodeStore, cfg Config) *spreadsheetRuntime {
	return &spreadsheetRuntime{
		applier:   applier{store: store, kind: entities.KindSpreadsheet, metrics: cfg.Metrics, logger: cfg.Logger},
		documents: cfg.Documents,
		inflight:  make(map[valueobjects.NodeID]uint64),
	}
}

func (r *spreadsheetRuntime) Kind() entities.Kind { return entities.KindSpreadsheet }

func (r *spreadsheetRuntime) Trigger(node entities.Node) {
	if strings.TrimSpace(node.Input) == "" {
		r.apply(node, nil, entities.StatusIdle)
		return
	}

	rows, ok := RowsFromInput(node.Input)
	if !ok {
		r.apply(node, nil, entities.StatusNoData)
		return
	}

	r.mu.Lock()
	if rev, running := r.inflight[node.ID]; r.closed || (running && rev == node.Revision) {
		r.mu.Unlock()
		return
	}
	r.inflight[node.ID] = node.Revision
	r.wg.Add(1)
	r.mu.Unlock()

	done := func() {
		r.mu.Lock()
		if r.inflight[node.ID] == node.Revision {
			delete(r.inflight, node.ID)
		}
		r.mu.Unlock()
		r.wg.Done()
	}

	if !r.setStatus(node, entities.StatusExecuting) {
		done()
		return
	}

	go func() {
		defer done()
		r.execute(node, rows)
	}()
}

func (r *spreadsheetRuntime) execute(node entities.Node, rows []ports.Row) {
	ctx, span := tracer.Start(context.Background(), "runtime.Spreadsheet",
		trace.WithAttributes(
			attribute.String("node.id", node.ID.String()),
			attribute.Int("spreadsheet.rows", len(rows)),
		),
	)
	defer span.End()

	title := node.Label
	if cfg, ok := node.Config.(entities.SpreadsheetConfig); ok && cfg.Title != "" {
		title = cfg.Title
	}

	var (
		url string
		err error
	)
	if r.documents == nil {
		err = errDocumentsMissing
	} else {
		url, err = r.documents.CreateDocument(ctx, title, rows)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("Document creation failed",
			zap.String("nodeID", node.ID.String()),
			zap.Error(err),
		)
		r.metrics.RecordExecution(string(r.kind), string(entities.StatusFailed), 0)
		r.apply(node, entities.StringPtr(ErrorOutput(err)), entities.StatusFailed)
		return
	}

	r.metrics.RecordExecution(string(r.kind), string(entities.StatusResolved), 0)
	r.apply(node, entities.StringPtr(url), entities.StatusResolved)
}

func (r *spreadsheetRuntime) Forget(id valueobjects.NodeID) {
	r.mu.Lock()
	delete(r.inflight, id)
	r.mu.Unlock()
}

func (r *spreadsheetRuntime) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
}
