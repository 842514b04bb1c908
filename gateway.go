package chathistory

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Storage keys. The layout is shared with earlier clients of the same
// medium, so the names are part of the wire contract.
const (
	threadsKey       = "chatThreadsV1"
	currentThreadKey = "currentThreadIdV1"
)

// downsampleParallelism bounds concurrent image recompression during a save.
const downsampleParallelism = 4

// SaveOutcome reports which rung of the degradation ladder a save
// ended on.
type SaveOutcome int

const (
	// SaveFull means the complete trimmed state was persisted.
	SaveFull SaveOutcome = iota

	// SaveEmergency means full persistence failed and only the active
	// thread was persisted.
	SaveEmergency

	// SaveCleared means even emergency persistence failed and the
	// stored state was deleted. The next load starts fresh.
	SaveCleared
)

// String returns the outcome name.
func (o SaveOutcome) String() string {
	switch o {
	case SaveFull:
		return "full"
	case SaveEmergency:
		return "emergency"
	case SaveCleared:
		return "cleared"
	}
	return "unknown"
}

// Degraded reports whether the save persisted less than the full state.
func (o SaveOutcome) Degraded() bool {
	return o != SaveFull
}

// Gateway is the sole component that touches the storage medium. It
// serializes the thread collection under the configured byte budget and
// degrades gracefully when the medium fails: trim harder, then persist
// only the active thread, then clear storage entirely.
type Gateway struct {
	kv     KV
	limits Limits
	logger *slog.Logger
}

// NewGateway creates a gateway over the given storage medium.
func NewGateway(kv KV, limits Limits, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		kv:     kv,
		limits: limits.withDefaults(),
		logger: logger,
	}
}

// Save persists the thread collection. It trims to the configured
// ceilings, downsamples image attachments, and falls back through the
// degradation ladder on failure. Save never returns an error; the
// outcome tells callers how much state survived.
func (g *Gateway) Save(ctx context.Context, threads []Thread) SaveOutcome {
	trimmed := cloneThreads(trimAll(threads, g.limits.MaxThreads, g.limits.MaxMessages))
	g.downsampleAll(trimmed)

	data, err := json.Marshal(trimmed)
	if err != nil {
		g.logger.Warn("serializing threads failed", "error", err)
		return g.degrade(ctx, threads)
	}

	if int64(len(data)) > g.limits.ByteBudget {
		// Still over budget after regular trimming: apply the hard caps
		// and persist whatever that yields without re-checking size.
		trimmed = trimAll(trimmed, hardCapThreads, hardCapMessages)
		data, err = json.Marshal(trimmed)
		if err != nil {
			g.logger.Warn("serializing hard-trimmed threads failed", "error", err)
			return g.degrade(ctx, threads)
		}
	}

	if err := g.kv.Set(ctx, threadsKey, string(data)); err != nil {
		g.logger.Warn("writing threads failed", "error", err)
		return g.degrade(ctx, threads)
	}
	return SaveFull
}

// degrade runs the emergency rungs of the ladder: persist only the
// active thread, and clear storage if that fails too.
func (g *Gateway) degrade(ctx context.Context, threads []Thread) SaveOutcome {
	currentID := g.CurrentThreadID(ctx)
	for _, t := range threads {
		if t.ID != currentID {
			continue
		}
		single := []Thread{TrimMessages(t, g.limits.MaxMessages)}
		data, err := json.Marshal(single)
		if err != nil {
			break
		}
		if err := g.kv.Set(ctx, threadsKey, string(data)); err != nil {
			g.logger.Warn("emergency save failed", "error", err)
			break
		}
		g.logger.Warn("persisted active thread only", "threadId", t.ID)
		return SaveEmergency
	}

	if err := g.kv.Delete(ctx, threadsKey); err != nil {
		g.logger.Warn("clearing stored threads failed", "error", err)
	}
	g.logger.Warn("cleared stored threads after persistence failure")
	return SaveCleared
}

// Load reads the persisted thread collection. A missing, corrupt, or
// empty record is discarded and replaced by a single freshly seeded
// thread. Load does not re-apply trimming; bounding the store is a
// save-time responsibility.
func (g *Gateway) Load(ctx context.Context) []Thread {
	raw, ok, err := g.kv.Get(ctx, threadsKey)
	if err != nil {
		g.logger.Warn("reading threads failed", "error", err)
		return []Thread{NewThread()}
	}
	if !ok {
		return []Thread{NewThread()}
	}

	var threads []Thread
	if err := json.Unmarshal([]byte(raw), &threads); err != nil || len(threads) == 0 {
		g.logger.Warn("discarding corrupt thread data", "error", err)
		if derr := g.kv.Delete(ctx, threadsKey); derr != nil {
			g.logger.Warn("deleting corrupt thread data failed", "error", derr)
		}
		return []Thread{NewThread()}
	}
	return threads
}

// CurrentThreadID returns the persisted active thread ID, or empty when
// none is recorded.
func (g *Gateway) CurrentThreadID(ctx context.Context) string {
	id, _, err := g.kv.Get(ctx, currentThreadKey)
	if err != nil {
		g.logger.Warn("reading current thread id failed", "error", err)
		return ""
	}
	return id
}

// SetCurrentThreadID persists the active thread ID.
func (g *Gateway) SetCurrentThreadID(ctx context.Context, id string) error {
	return g.kv.Set(ctx, currentThreadKey, id)
}

// Usage approximates the total bytes consumed in the storage medium by
// summing the lengths of every key and value it holds, not just this
// store's own keys.
func (g *Gateway) Usage(ctx context.Context) int64 {
	keys, err := g.kv.Keys(ctx)
	if err != nil {
		g.logger.Warn("listing storage keys failed", "error", err)
		return 0
	}

	var total int64
	for _, k := range keys {
		v, ok, err := g.kv.Get(ctx, k)
		if err != nil || !ok {
			continue
		}
		total += int64(len(k) + len(v))
	}
	return total
}

// NearLimit reports whether storage usage exceeds the configured
// fraction of the byte budget. The store compresses new images
// proactively once this trips.
func (g *Gateway) NearLimit(ctx context.Context) bool {
	return float64(g.Usage(ctx)) > g.limits.NearLimitRatio*float64(g.limits.ByteBudget)
}

// ExportAll serializes the given threads as pretty-printed JSON with no
// trimming or size bounding. Intended for user-initiated download, not
// for the bounded store.
func (g *Gateway) ExportAll(threads []Thread) ([]byte, error) {
	data, err := json.MarshalIndent(threads, "", "  ")
	if err != nil {
		return nil, NewStorageError("exporting threads", err)
	}
	return data, nil
}

// ImportAll parses exported data. Any top-level JSON array is accepted;
// anything else yields ErrInvalidImport.
func (g *Gateway) ImportAll(data []byte) ([]Thread, error) {
	var threads []Thread
	if err := json.Unmarshal(data, &threads); err != nil {
		return nil, ErrInvalidImport
	}
	return threads, nil
}

// downsampleAll recompresses every image attachment in place. Messages
// are independent, so they are processed in parallel.
func (g *Gateway) downsampleAll(threads []Thread) {
	eg := new(errgroup.Group)
	eg.SetLimit(downsampleParallelism)

	for i := range threads {
		for j := range threads[i].Messages {
			msg := &threads[i].Messages[j]
			if len(msg.Images) == 0 {
				continue
			}
			eg.Go(func() error {
				for k, img := range msg.Images {
					msg.Images[k] = Downsample(img, g.limits.ImageMaxDim, g.limits.ImageQuality)
				}
				return nil
			})
		}
	}
	_ = eg.Wait()
}

// cloneThreads deep-copies message and image slices so a save never
// mutates the caller's in-memory state.
func cloneThreads(threads []Thread) []Thread {
	out := make([]Thread, len(threads))
	copy(out, threads)
	for i := range out {
		msgs := make([]Message, len(out[i].Messages))
		copy(msgs, out[i].Messages)
		for j := range msgs {
			if len(msgs[j].Images) > 0 {
				imgs := make([]string, len(msgs[j].Images))
				copy(imgs, msgs[j].Images)
				msgs[j].Images = imgs
			}
		}
		out[i].Messages = msgs
	}
	return out
}
