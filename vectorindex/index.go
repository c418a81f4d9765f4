package vectorindex

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/agentflow/skillcore/smcerr"
)

// SearchResult is one hit from Query, with score in [0,1] where
// score = 1 - cosine_distance.
type SearchResult struct {
	Name  string
	Score float64
}

// SkillText is the minimal payload the index needs to (re)compute an
// embedding for a skill: its name, tier and the text to embed.
type SkillText struct {
	Name      string
	SkillType string
	Text      string
}

// Config configures an Index.
type Config struct {
	Dim         int
	MaxElements int
	HNSW        HNSWConfig
	IndexPath   string // <storage_dir>/index/skills.index
	MappingPath string // <storage_dir>/index/skills_mapping
	Logger      *zap.Logger
}

// Index is a persistent, lazily-initialized ANN index over skill text
// embeddings, keyed by skill name.
type Index struct {
	cfg    Config
	logger *zap.Logger

	mu sync.RWMutex

	embedder    Embedder
	embedderErr error // set once lazy construction has been attempted and failed

	graph *hnswGraph

	nameToSlot map[string]int
	slotToName map[int]string
	slotType   map[int]string
	deleted    map[int]bool
	nextSlot   int
}

// New returns an Index that defers embedder and graph construction until
// the first operation that needs them.
func New(cfg Config) *Index {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxElements <= 0 {
		cfg.MaxElements = 10_000
	}
	return &Index{
		cfg:        cfg,
		logger:     logger.With(zap.String("component", "vectorindex")),
		nameToSlot: make(map[string]int),
		slotToName: make(map[int]string),
		slotType:   make(map[int]string),
		deleted:    make(map[int]bool),
	}
}

// ensureReady lazily constructs the embedder and graph. Once construction
// has been attempted and failed, the index degrades permanently to a no-op
// for the lifetime of this instance.
func (idx *Index) ensureReady() error {
	if idx.embedderErr != nil {
		return idx.embedderErr
	}
	if idx.embedder != nil {
		return nil
	}
	idx.embedder = NewHashingEmbedder(idx.cfg.Dim)
	if idx.graph == nil {
		hnswCfg := idx.cfg.HNSW
		if hnswCfg.M == 0 {
			hnswCfg = DefaultHNSWConfig()
		}
		idx.graph = newHNSWGraph(hnswCfg)
	}
	return nil
}

func liveText(t SkillText) string {
	return t.Name + "\n" + t.SkillType + "\n" + t.Text
}

// Add upserts a skill's embedding into the index.
func (idx *Index) Add(ctx context.Context, entry SkillText) error {
	return idx.upsert(ctx, entry)
}

// Update is an alias of Add: both are idempotent upserts.
func (idx *Index) Update(ctx context.Context, entry SkillText) error {
	return idx.upsert(ctx, entry)
}

func (idx *Index) upsert(ctx context.Context, entry SkillText) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.ensureReady(); err != nil {
		return smcerr.New(smcerr.CodeVectorUnavailable, "embedding backend unavailable").WithCause(err)
	}

	vec, err := idx.embedder.Embed(liveText(entry))
	if err != nil {
		return smcerr.New(smcerr.CodeVectorUnavailable, "embed skill text").WithCause(err)
	}

	if slot, ok := idx.nameToSlot[entry.Name]; ok {
		idx.graph.remove(slot)
		delete(idx.deleted, slot)
		idx.graph.insert(slot, vec)
		idx.slotType[slot] = entry.SkillType
		return nil
	}

	// Remove already drops a name from nameToSlot, so its size is the live count.
	liveCount := len(idx.nameToSlot)
	if liveCount >= idx.cfg.MaxElements {
		return smcerr.Newf(smcerr.CodeCapacityExceeded, "vector index is at capacity (%d elements)", idx.cfg.MaxElements)
	}

	slot := idx.nextSlot
	idx.nextSlot++
	idx.nameToSlot[entry.Name] = slot
	idx.slotToName[slot] = entry.Name
	idx.slotType[slot] = entry.SkillType
	idx.graph.insert(slot, vec)
	return nil
}

// Remove marks a skill's slot deleted and drops its vector and edges from
// the HNSW graph. The slot id is not reused, and its bookkeeping entries
// stay until a subsequent Rebuild reclaims them.
func (idx *Index) Remove(name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	slot, ok := idx.nameToSlot[name]
	if !ok {
		return
	}
	idx.deleted[slot] = true
	if idx.graph != nil {
		idx.graph.remove(slot)
	}
	delete(idx.nameToSlot, name)
}

// Query returns at most k results ordered by descending score. If
// skillTypeFilter is non-empty, only that tier is returned; filtering
// happens after retrieval so the index over-fetches internally.
func (idx *Index) Query(ctx context.Context, text string, k int, skillTypeFilter string) ([]SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ensureReady mutates idx.embedder/idx.graph on first use, so Query takes
	// the write lock rather than RLock even though it otherwise only reads —
	// two concurrent first queries must not race on that lazy construction.
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.ensureReady(); err != nil {
		idx.logger.Warn("vector query skipped: embedding backend unavailable")
		return nil, nil
	}

	vec, err := idx.embedder.Embed(text)
	if err != nil {
		idx.logger.Warn("vector query skipped: embed failed", zap.Error(err))
		return nil, nil
	}

	searchK := k
	if skillTypeFilter != "" {
		searchK = k * 3
	}
	ef := idx.cfg.HNSW.EfSearch
	if ef == 0 {
		ef = DefaultHNSWConfig().EfSearch
	}

	hits := idx.graph.search(vec, searchK, ef)
	results := make([]SearchResult, 0, k)
	for _, h := range hits {
		if idx.deleted[h.slot] {
			continue
		}
		name, ok := idx.slotToName[h.slot]
		if !ok {
			continue
		}
		if skillTypeFilter != "" && idx.slotType[h.slot] != skillTypeFilter {
			continue
		}
		score := 1 - h.dist
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		results = append(results, SearchResult{Name: name, Score: score})
		if len(results) >= k {
			break
		}
	}
	return results, nil
}

// Rebuild discards the current graph and reconstructs it from scratch,
// swapping in the new state atomically so concurrent readers never observe
// a partial rebuild.
func (idx *Index) Rebuild(ctx context.Context, all []SkillText) error {
	fresh := New(idx.cfg)
	for _, entry := range all {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fresh.upsert(ctx, entry); err != nil && smcerr.GetCode(err) != smcerr.CodeVectorUnavailable {
			return err
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.embedder = fresh.embedder
	idx.embedderErr = fresh.embedderErr
	idx.graph = fresh.graph
	idx.nameToSlot = fresh.nameToSlot
	idx.slotToName = fresh.slotToName
	idx.slotType = fresh.slotType
	idx.deleted = fresh.deleted
	idx.nextSlot = fresh.nextSlot

	idx.logger.Info("vector index rebuilt", zap.Int("live_skills", len(idx.nameToSlot)))
	return nil
}

// persistedState is the on-disk representation used by Save/Load.
type persistedState struct {
	Dim        int                  `json:"dim"`
	NextSlot   int                  `json:"next_slot"`
	NameToSlot map[string]int       `json:"name_to_slot"`
	SlotType   map[int]string       `json:"slot_type"`
	Deleted    map[int]bool         `json:"deleted"`
	Vectors    map[int][]float64    `json:"vectors"`
	Graph      map[int]map[int][]int `json:"graph"`
	EntryPoint int                  `json:"entry_point"`
	HasEntry   bool                 `json:"has_entry"`
	MaxLevel   int                  `json:"max_level"`
}

// Save persists the index graph and the name<->slot mapping to disk via an
// atomic write-then-rename so readers never observe a partial file.
func (idx *Index) Save() error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	state := persistedState{
		Dim:        idx.cfg.Dim,
		NextSlot:   idx.nextSlot,
		NameToSlot: idx.nameToSlot,
		SlotType:   idx.slotType,
		Deleted:    idx.deleted,
		Vectors:    map[int][]float64{},
		Graph:      map[int]map[int][]int{},
	}
	if idx.graph != nil {
		idx.graph.mu.RLock()
		for slot, vec := range idx.graph.vectors {
			state.Vectors[slot] = vec
		}
		for slot, levels := range idx.graph.graph {
			state.Graph[slot] = levels
		}
		state.EntryPoint = idx.graph.entryPoint
		state.HasEntry = idx.graph.hasEntry
		state.MaxLevel = idx.graph.maxLevel
		idx.graph.mu.RUnlock()
	}

	if err := writeAtomic(idx.cfg.IndexPath, state); err != nil {
		return smcerr.New(smcerr.CodeIOFailure, "save vector index").WithCause(err)
	}
	if err := writeAtomic(idx.cfg.MappingPath, mappingOnly(state)); err != nil {
		return smcerr.New(smcerr.CodeIOFailure, "save name/slot mapping").WithCause(err)
	}
	return nil
}

type mapping struct {
	NextSlot   int            `json:"next_slot"`
	NameToSlot map[string]int `json:"name_to_slot"`
	SlotType   map[int]string `json:"slot_type"`
	Deleted    map[int]bool   `json:"deleted"`
}

func mappingOnly(s persistedState) mapping {
	return mapping{NextSlot: s.NextSlot, NameToSlot: s.NameToSlot, SlotType: s.SlotType, Deleted: s.Deleted}
}

func writeAtomic(path string, v any) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load restores the index graph and mapping from disk. A missing file
// leaves the index empty rather than erroring; a present-but-corrupt file
// returns Corruption.
func (idx *Index) Load() error {
	if idx.cfg.IndexPath == "" {
		return nil
	}
	data, err := os.ReadFile(idx.cfg.IndexPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return smcerr.New(smcerr.CodeIOFailure, "read vector index").WithCause(err)
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return smcerr.New(smcerr.CodeCorruption, "vector index file is corrupt").WithCause(err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	hnswCfg := idx.cfg.HNSW
	if hnswCfg.M == 0 {
		hnswCfg = DefaultHNSWConfig()
	}
	g := newHNSWGraph(hnswCfg)
	g.vectors = state.Vectors
	g.graph = state.Graph
	g.entryPoint = state.EntryPoint
	g.hasEntry = state.HasEntry
	g.maxLevel = state.MaxLevel

	idx.embedder = NewHashingEmbedder(idx.cfg.Dim)
	idx.graph = g
	idx.nameToSlot = state.NameToSlot
	idx.slotType = state.SlotType
	idx.deleted = state.Deleted
	idx.nextSlot = state.NextSlot
	idx.slotToName = make(map[int]string, len(state.NameToSlot))
	for name, slot := range state.NameToSlot {
		idx.slotToName[slot] = name
	}
	return nil
}

// Size returns the number of live (non-deleted) slots.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.nameToSlot)
}
