package runtime

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/frenb/accelent/application/ports"
	"github.com/frenb/accelent/domain/core/entities"
	"github.com/frenb/accelent/domain/core/valueobjects"
	"github.com/jellydator/ttlcache/v3"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// InputMarker is replaced with the node's input in a prompt template
const InputMarker = "INPUT"

// BuildPrompt substitutes the input into a template. Templates without the
// marker get the input appended.
func BuildPrompt(template, input string) string {
	if strings.Contains(template, InputMarker) {
		return strings.ReplaceAll(template, InputMarker, input)
	}
	if input == "" {
		return template
	}
	return template + "\n\n" + input
}

type promptTimer struct {
	timer clockwork.Timer
	gen   uint64
}

// promptRuntime calls the text generator once a node's prompt and input
// have been stable for the debounce window. Results are memoised by
// (prompt, input) so a settled pair is never generated twice.
//
//	Idle -> Pending (debounce) -> Executing -> Resolved | Failed
type promptRuntime struct {
	applier
	generator ports.TextGenerator
	clock     clockwork.Clock
	delay     time.Duration

	mu       sync.Mutex
	timers   map[valueobjects.NodeID]*promptTimer
	inflight map[string][]valueobjects.NodeID
	gen      uint64
	closed   bool
	wg       sync.WaitGroup

	memo *ttlcache.Cache[string, string]
}

func newPromptRuntime(store NodeStore, cfg Config) *promptRuntime {
	return &promptRuntime{
		applier:   applier{store: store, kind: entities.KindPrompt, metrics: cfg.Metrics, logger: cfg.Logger},
		generator: cfg.Generator,
		clock:     cfg.Clock,
		delay:     cfg.PromptDebounce,
		timers:    make(map[valueobjects.NodeID]*promptTimer),
		inflight:  make(map[string][]valueobjects.NodeID),
		memo: ttlcache.New(
			ttlcache.WithTTL[string, string](ttlcache.NoTTL),
			ttlcache.WithCapacity[string, string](cfg.MemoCapacity),
		),
	}
}

func (r *promptRuntime) Kind() entities.Kind { return entities.KindPrompt }

func promptKey(node entities.Node) string {
	return entities.ContentFingerprint(node.Config.Content(), node.Input)
}

// Trigger restarts the node's quiet period
func (r *promptRuntime) Trigger(node entities.Node) {
	if strings.TrimSpace(node.Config.Content()) == "" {
		r.cancelTimer(node.ID)
		r.apply(node, nil, entities.StatusIdle)
		return
	}

	// a settled pair resolves immediately from the memo
	if item := r.memo.Get(promptKey(node)); item != nil {
		r.cancelTimer(node.ID)
		r.apply(node, entities.StringPtr(item.Value()), entities.StatusResolved)
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if t, ok := r.timers[node.ID]; ok {
		t.timer.Stop()
	}
	r.gen++
	gen := r.gen
	id := node.ID
	r.timers[id] = &promptTimer{
		gen:   gen,
		timer: r.clock.AfterFunc(r.delay, func() { r.fire(id, gen) }),
	}
	r.mu.Unlock()

	r.setStatus(node, entities.StatusPending)
}

func (r *promptRuntime) cancelTimer(id valueobjects.NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[id]; ok {
		t.timer.Stop()
		delete(r.timers, id)
	}
}

func (r *promptRuntime) Forget(id valueobjects.NodeID) {
	r.cancelTimer(id)
}

func (r *promptRuntime) Close() {
	r.mu.Lock()
	r.closed = true
	for id, t := range r.timers {
		t.timer.Stop()
		delete(r.timers, id)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *promptRuntime) fire(id valueobjects.NodeID, gen uint64) {
	r.mu.Lock()
	t, ok := r.timers[id]
	if !ok || t.gen != gen || r.closed {
		r.mu.Unlock()
		return
	}
	delete(r.timers, id)
	r.mu.Unlock()

	// read the node as it is now, not as it was when the timer started
	node, err := r.store.Node(id)
	if err != nil || node.HasOutput() || node.Kind() != entities.KindPrompt {
		return
	}

	key := promptKey(node)
	if item := r.memo.Get(key); item != nil {
		r.apply(node, entities.StringPtr(item.Value()), entities.StatusResolved)
		return
	}

	r.mu.Lock()
	if waiters, running := r.inflight[key]; running {
		// the running call resolves every node waiting on this pair
		r.inflight[key] = append(waiters, id)
		r.mu.Unlock()
		r.setStatus(node, entities.StatusExecuting)
		return
	}
	r.inflight[key] = []valueobjects.NodeID{id}
	r.wg.Add(1)
	r.mu.Unlock()

	r.setStatus(node, entities.StatusExecuting)

	go func() {
		defer r.wg.Done()
		r.execute(node, key)
	}()
}

func (r *promptRuntime) execute(node entities.Node, key string) {
	ctx, span := tracer.Start(context.Background(), "runtime.Prompt",
		trace.WithAttributes(
			attribute.String("node.id", node.ID.String()),
			attribute.Int("prompt.input_length", len(node.Input)),
		),
	)
	defer span.End()

	start := r.clock.Now()
	text, err := r.generate(ctx, BuildPrompt(node.Config.Content(), node.Input))
	elapsed := r.clock.Since(start)

	r.mu.Lock()
	waiters := r.inflight[key]
	delete(r.inflight, key)
	r.mu.Unlock()

	output, status := text, entities.StatusResolved
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("Prompt generation failed",
			zap.String("nodeID", node.ID.String()),
			zap.Error(err),
		)
		output, status = ErrorOutput(err), entities.StatusFailed
	} else {
		r.memo.Set(key, text, ttlcache.DefaultTTL)
	}
	r.metrics.RecordExecution(string(r.kind), string(status), elapsed.Seconds())

	for _, id := range waiters {
		r.resolve(id, key, output, status)
	}
}

// resolve applies a finished result to a node that still holds the pair it
// was computed for. A node that moved on has its own timer running.
func (r *promptRuntime) resolve(id valueobjects.NodeID, key, output string, status entities.NodeStatus) {
	current, err := r.store.Node(id)
	if err != nil || current.HasOutput() || current.Kind() != entities.KindPrompt {
		return
	}
	if promptKey(current) != key {
		r.metrics.RecordStaleResult(string(r.kind))
		return
	}
	r.cancelTimer(id)
	r.apply(current, entities.StringPtr(output), status)
}

func (r *promptRuntime) generate(ctx context.Context, prompt string) (string, error) {
	if r.generator == nil {
		return "", errGeneratorMissing
	}
	return r.generator.Generate(ctx, prompt)
}
