package validator

import (
	"hash/fnv"
	"slices"
	"strings"

	"github.com/aretw0/triagem/pkg/domain"
)

// CyclePath is the ordered list of step ids forming a loop. The last id
// repeats the first.
type CyclePath []string

// String renders the path as "a → b → a".
func (p CyclePath) String() string {
	return strings.Join(p, " → ")
}

type frame struct {
	id      string
	hash    uint64
	targets []string
	next    int
}

type memoKey struct {
	id   string
	hash uint64
}

// DetectCycles walks the flow depth-first from its entry step and reports
// every path that revisits a step already on the current path. Traversal stops
// at the repeated step on that branch. Identical cycles are reported once.
// Cycles reachable only through guards the initial context does not satisfy
// are not reported.
func DetectCycles(flow *domain.Flow, opts ...Option) []CyclePath {
	if flow == nil || flow.EntryStepID == "" {
		return nil
	}
	cfg := newConfig(opts)

	var (
		cycles []CyclePath
		seen   = make(map[string]bool)
		memo   = make(map[memoKey]struct{})
		onPath = make(map[string]int)
		path   []string
		stack  []*frame
	)

	enter := func(id string, parentHash uint64) {
		if idx, ok := onPath[id]; ok {
			cycle := append(slices.Clone(path[idx:]), id)
			if key := strings.Join(cycle, "\x00"); !seen[key] {
				seen[key] = true
				cycles = append(cycles, cycle)
			}
			return
		}

		key := memoKey{id: id, hash: parentHash}
		if _, done := memo[key]; done {
			return
		}
		memo[key] = struct{}{}

		step, ok := flow.Step(id)
		if !ok {
			return
		}
		onPath[id] = len(path)
		path = append(path, id)
		stack = append(stack, &frame{
			id:      id,
			hash:    extend(parentHash, id),
			targets: cfg.targets(flow, step),
		})
	}

	enter(flow.EntryStepID, extend(0, ""))
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next < len(top.targets) {
			target := top.targets[top.next]
			top.next++
			enter(target, top.hash)
			continue
		}
		stack = stack[:len(stack)-1]
		path = path[:len(path)-1]
		delete(onPath, top.id)
	}
	return cycles
}

// extend hashes a path prefix with one more step id.
func extend(prefix uint64, id string) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(prefix >> (8 * i))
	}
	h.Write(buf[:])
	h.Write([]byte(id))
	return h.Sum64()
}
