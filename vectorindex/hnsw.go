package vectorindex

import (
	"container/heap"
	"math"
	"math/rand"
	"sync"
)

// HNSWConfig tunes the graph construction and search.
type HNSWConfig struct {
	M              int // max neighbors per node per layer
	EfConstruction int // candidate list size while inserting
	EfSearch       int // candidate list size while querying
	MaxLevel       int
	Ml             float64 // level-generation normalization factor
}

// DefaultHNSWConfig returns the documented defaults: M=16, ef_construction=200, ef_search=50.
func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{
		M:              16,
		EfConstruction: 200,
		EfSearch:       50,
		MaxLevel:       16,
		Ml:             1 / math.Log(2),
	}
}

type heapItem struct {
	slot int
	dist float64
}

// minHeap pops the smallest distance first; used to grow the candidate frontier.
type minHeap []heapItem

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)         { *h = append(*h, x.(heapItem)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// maxHeap pops the largest distance first; used to keep the best-so-far
// result set bounded to ef candidates.
type maxHeap []heapItem

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)         { *h = append(*h, x.(heapItem)) }
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// hnswGraph is a from-scratch HNSW-family approximate nearest-neighbor
// graph over cosine distance, keyed by dense integer slot ids so it can sit
// underneath a separate name<->slot mapping layer.
type hnswGraph struct {
	mu sync.RWMutex

	cfg HNSWConfig

	vectors    map[int][]float64
	graph      map[int]map[int][]int // slot -> level -> neighbor slots
	entryPoint int
	hasEntry   bool
	maxLevel   int

	rng *rand.Rand
}

func newHNSWGraph(cfg HNSWConfig) *hnswGraph {
	return &hnswGraph{
		cfg:     cfg,
		vectors: make(map[int][]float64),
		graph:   make(map[int]map[int][]int),
		rng:     rand.New(rand.NewSource(1)), // deterministic level assignment
	}
}

func (g *hnswGraph) size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.vectors)
}

func (g *hnswGraph) distance(a, b []float64) float64 {
	return 1 - cosineSimilarity(a, b)
}

func (g *hnswGraph) randomLevel() int {
	level := 0
	for g.rng.Float64() < 1.0/g.cfg.Ml && level < g.cfg.MaxLevel {
		level++
	}
	return level
}

// insert adds vec under slot, creating graph edges at every level up to a
// randomly assigned height.
func (g *hnswGraph) insert(slot int, vec []float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.vectors[slot] = vec
	level := g.randomLevel()
	g.graph[slot] = make(map[int][]int)
	for l := 0; l <= level; l++ {
		g.graph[slot][l] = nil
	}

	if !g.hasEntry {
		g.entryPoint = slot
		g.hasEntry = true
		g.maxLevel = level
		return
	}

	entry := g.entryPoint
	for l := g.maxLevel; l > level; l-- {
		entry = g.greedyClosest(entry, vec, l)
	}

	for l := min(level, g.maxLevel); l >= 0; l-- {
		candidates := g.searchLayer(vec, entry, g.cfg.EfConstruction, l)
		neighbors := g.selectNeighbors(candidates, g.cfg.M)
		g.graph[slot][l] = neighbors
		for _, n := range neighbors {
			g.graph[n][l] = g.selectNeighbors(append(g.neighborCandidates(n, l), heapItem{slot: slot, dist: g.distance(g.vectors[n], vec)}), g.cfg.M)
		}
		if len(candidates) > 0 {
			entry = candidates[0].slot
		}
	}

	if level > g.maxLevel {
		g.maxLevel = level
		g.entryPoint = slot
	}
}

func (g *hnswGraph) neighborCandidates(slot, level int) []heapItem {
	out := make([]heapItem, 0, len(g.graph[slot][level]))
	for _, n := range g.graph[slot][level] {
		out = append(out, heapItem{slot: n, dist: g.distance(g.vectors[slot], g.vectors[n])})
	}
	return out
}

func (g *hnswGraph) greedyClosest(from int, target []float64, level int) int {
	current := from
	improved := true
	for improved {
		improved = false
		best := g.distance(g.vectors[current], target)
		for _, n := range g.graph[current][level] {
			d := g.distance(g.vectors[n], target)
			if d < best {
				best = d
				current = n
				improved = true
			}
		}
	}
	return current
}

// searchLayer performs a best-first search over one level, bounded to ef
// candidates, returning results sorted by ascending distance.
func (g *hnswGraph) searchLayer(target []float64, entry int, ef int, level int) []heapItem {
	visited := map[int]bool{entry: true}
	candidates := &minHeap{{slot: entry, dist: g.distance(g.vectors[entry], target)}}
	heap.Init(candidates)
	results := &maxHeap{(*candidates)[0]}
	heap.Init(results)

	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(heapItem)
		if results.Len() >= ef && c.dist > (*results)[0].dist {
			break
		}
		for _, n := range g.graph[c.slot][level] {
			if visited[n] {
				continue
			}
			visited[n] = true
			d := g.distance(g.vectors[n], target)
			if results.Len() < ef || d < (*results)[0].dist {
				heap.Push(candidates, heapItem{slot: n, dist: d})
				heap.Push(results, heapItem{slot: n, dist: d})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]heapItem, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(heapItem)
	}
	return out
}

func (g *hnswGraph) selectNeighbors(candidates []heapItem, m int) []int {
	sorted := append([]heapItem(nil), candidates...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].dist < sorted[j-1].dist; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	if len(sorted) > m {
		sorted = sorted[:m]
	}
	out := make([]int, len(sorted))
	for i, c := range sorted {
		out[i] = c.slot
	}
	return out
}

// search returns up to k nearest slots to query, best first.
func (g *hnswGraph) search(query []float64, k, ef int) []heapItem {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.hasEntry {
		return nil
	}
	if ef < k {
		ef = k
	}

	entry := g.entryPoint
	for l := g.maxLevel; l > 0; l-- {
		entry = g.greedyClosest(entry, query, l)
	}
	candidates := g.searchLayer(query, entry, ef, 0)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// remove deletes a slot's vector and edges. HNSW graphs do not shrink
// gracefully in place; skill removal is expected to be followed by a
// rebuild for compaction (see index.go).
func (g *hnswGraph) remove(slot int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.vectors, slot)
	delete(g.graph, slot)
	for _, levels := range g.graph {
		for l, neighbors := range levels {
			filtered := neighbors[:0]
			for _, n := range neighbors {
				if n != slot {
					filtered = append(filtered, n)
				}
			}
			levels[l] = filtered
		}
	}
	if g.entryPoint == slot {
		g.hasEntry = false
		for s := range g.vectors {
			g.entryPoint = s
			g.hasEntry = true
			break
		}
	}
}
