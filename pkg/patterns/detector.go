package patterns

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/soundprediction/ontoscore/pkg/ontology"
	"github.com/soundprediction/ontoscore/pkg/types"
)

const (
	// MaxHopsLimit is the hard ceiling on traversal depth.
	MaxHopsLimit = 3
	// DefaultMaxVisited is the default visited-node budget.
	DefaultMaxVisited = 500
)

// Detector evaluates the pattern library over bounded neighborhoods read
// from the ontology store.
type Detector struct {
	store      *ontology.Store
	library    []Pattern
	maxHops    int
	maxVisited int
	logger     *slog.Logger
}

// Config sizes a Detector.
type Config struct {
	// MaxHops bounds traversal depth; clamped to MaxHopsLimit.
	MaxHops int
	// MaxVisited bounds how many objects one detection may touch.
	MaxVisited int
}

// NewDetector creates a detector over the given store and library. A nil
// library means DefaultLibrary.
func NewDetector(store *ontology.Store, library []Pattern, cfg Config, logger *slog.Logger) *Detector {
	if library == nil {
		library = DefaultLibrary()
	}
	sort.Slice(library, func(i, j int) bool { return library[i].ID < library[j].ID })
	maxHops := cfg.MaxHops
	if maxHops <= 0 || maxHops > MaxHopsLimit {
		maxHops = MaxHopsLimit
	}
	maxVisited := cfg.MaxVisited
	if maxVisited <= 0 {
		maxVisited = DefaultMaxVisited
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		store:      store,
		library:    library,
		maxHops:    maxHops,
		maxVisited: maxVisited,
		logger:     logger,
	}
}

// Library returns the detector's patterns in evaluation order.
func (d *Detector) Library() []Pattern { return d.library }

// neighborhood is the bounded local subgraph detection runs against.
type neighborhood struct {
	origin string
	// out maps object id to its outgoing links, sorted by link id.
	out map[string][]*types.Link
	// in maps object id to its incoming links, sorted by link id.
	in        map[string][]*types.Link
	truncated bool
	visited   int
}

// DetectPatterns traverses the origin's neighborhood up to the configured
// hop and visited budgets and matches it against the library. Exceeding
// the budget truncates deterministically; the partial result carries
// Truncated=true rather than an error.
func (d *Detector) DetectPatterns(ctx context.Context, objectID string, asOf time.Time) (*Result, error) {
	g, err := d.collect(ctx, objectID, asOf)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, p := range d.library {
		matches = append(matches, d.evaluate(p, g)...)
	}

	// Deduplicate by canonical edge-set key, then order by
	// (pattern id, key) for run-to-run determinism.
	seen := make(map[string]struct{}, len(matches))
	out := matches[:0]
	for _, m := range matches {
		id := m.PatternID + "|" + m.key
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PatternID != out[j].PatternID {
			return out[i].PatternID < out[j].PatternID
		}
		return out[i].key < out[j].key
	})

	if g.truncated {
		d.logger.Warn("pattern detection truncated",
			"object_id", objectID, "visited", g.visited, "budget", d.maxVisited)
	}
	return &Result{Matches: out, Truncated: g.truncated, Visited: g.visited}, nil
}

// collect runs a deterministic breadth-first expansion from the origin,
// stopping at the hop bound or the visited budget.
func (d *Detector) collect(ctx context.Context, objectID string, asOf time.Time) (*neighborhood, error) {
	origin, err := d.store.GetObject(ctx, objectID, asOf)
	if err != nil {
		return nil, err
	}

	g := &neighborhood{
		origin: origin.ID,
		out:    make(map[string][]*types.Link),
		in:     make(map[string][]*types.Link),
	}
	seen := map[string]struct{}{origin.ID: {}}
	frontier := []string{origin.ID}
	g.visited = 1

	for depth := 0; depth < d.maxHops && len(frontier) > 0; depth++ {
		sort.Strings(frontier)
		var next []string
		for _, id := range frontier {
			for link, err := range d.store.GetLinks(ctx, id, ontology.LinkQuery{AsOf: asOf}) {
				if err != nil {
					return nil, err
				}
				g.addLink(link)
				other := link.Other(id)
				if _, ok := seen[other]; ok {
					continue
				}
				if g.visited >= d.maxVisited {
					g.truncated = true
					continue
				}
				seen[other] = struct{}{}
				g.visited++
				next = append(next, other)
			}
		}
		frontier = next
	}

	for _, links := range g.out {
		sort.Slice(links, func(i, j int) bool { return links[i].ID < links[j].ID })
	}
	for _, links := range g.in {
		sort.Slice(links, func(i, j int) bool { return links[i].ID < links[j].ID })
	}
	return g, nil
}

func (g *neighborhood) addLink(link *types.Link) {
	for _, existing := range g.out[link.SourceID] {
		if existing.ID == link.ID {
			return
		}
	}
	g.out[link.SourceID] = append(g.out[link.SourceID], link)
	g.in[link.TargetID] = append(g.in[link.TargetID], link)
}

func (d *Detector) evaluate(p Pattern, g *neighborhood) []Match {
	switch {
	case len(p.Shape.Cycle) > 0:
		return matchCycles(p, g)
	case len(p.Shape.Pair) == 2:
		return matchPairs(p, g)
	case p.Shape.Bridge != nil:
		return matchBridges(p, g)
	}
	return nil
}

// matchCycles finds directed simple cycles through the origin whose edges
// all carry one of the pattern's types, up to the pattern's hop bound.
func matchCycles(p Pattern, g *neighborhood) []Match {
	allowed := make(map[types.LinkType]struct{}, len(p.Shape.Cycle))
	for _, t := range p.Shape.Cycle {
		allowed[t] = struct{}{}
	}
	maxHops := p.MaxHops
	if maxHops <= 0 || maxHops > MaxHopsLimit {
		maxHops = MaxHopsLimit
	}

	var matches []Match
	var path []*types.Link
	onPath := map[string]struct{}{g.origin: {}}

	var walk func(at string)
	walk = func(at string) {
		for _, link := range g.out[at] {
			if _, ok := allowed[link.Type]; !ok {
				continue
			}
			if link.TargetID == g.origin && len(path) >= 1 {
				cycle := append(append([]*types.Link(nil), path...), link)
				matches = append(matches, newMatch(p, cycle))
				continue
			}
			if len(path)+1 >= maxHops {
				continue
			}
			if _, ok := onPath[link.TargetID]; ok {
				continue
			}
			onPath[link.TargetID] = struct{}{}
			path = append(path, link)
			walk(link.TargetID)
			path = path[:len(path)-1]
			delete(onPath, link.TargetID)
		}
	}
	walk(g.origin)
	return matches
}

// matchPairs finds object pairs carrying both of the pattern's types in
// the same direction, with the origin as one endpoint.
func matchPairs(p Pattern, g *neighborhood) []Match {
	first, second := p.Shape.Pair[0], p.Shape.Pair[1]

	var matches []Match
	scan := func(links []*types.Link) {
		byPair := make(map[string]map[types.LinkType]*types.Link)
		for _, link := range links {
			if link.Type != first && link.Type != second {
				continue
			}
			pairKey := link.SourceID + ">" + link.TargetID
			if byPair[pairKey] == nil {
				byPair[pairKey] = make(map[types.LinkType]*types.Link)
			}
			if _, ok := byPair[pairKey][link.Type]; !ok {
				byPair[pairKey][link.Type] = link
			}
		}
		for _, found := range byPair {
			a, okA := found[first]
			b, okB := found[second]
			if okA && okB {
				matches = append(matches, newMatch(p, []*types.Link{a, b}))
			}
		}
	}

	incident := append(append([]*types.Link(nil), g.out[g.origin]...), g.in[g.origin]...)
	scan(incident)
	return matches
}

// matchBridges finds bridge edges from the origin to a peer where both
// ends anchor to a common third object.
func matchBridges(p Pattern, g *neighborhood) []Match {
	shape := p.Shape.Bridge

	anchorsOf := func(id string) map[string]*types.Link {
		anchors := make(map[string]*types.Link)
		for _, link := range g.out[id] {
			if link.Type == shape.AnchorType {
				anchors[link.TargetID] = link
			}
		}
		return anchors
	}

	var matches []Match
	bridges := append(append([]*types.Link(nil), g.out[g.origin]...), g.in[g.origin]...)
	for _, bridge := range bridges {
		if bridge.Type != shape.BridgeType {
			continue
		}
		peer := bridge.Other(g.origin)
		originAnchors := anchorsOf(g.origin)
		for anchor, peerLink := range anchorsOf(peer) {
			if anchor == g.origin || anchor == peer {
				continue
			}
			originLink, ok := originAnchors[anchor]
			if !ok {
				continue
			}
			matches = append(matches, newMatch(p, []*types.Link{bridge, originLink, peerLink}))
		}
	}
	return matches
}

// newMatch builds a Match with product-combined confidence and a
// canonical sorted edge key.
func newMatch(p Pattern, edges []*types.Link) Match {
	ids := make([]string, len(edges))
	confidence := 1.0
	for i, link := range edges {
		ids[i] = link.ID
		confidence *= link.Confidence
	}
	canonical := append([]string(nil), ids...)
	sort.Strings(canonical)
	return Match{
		PatternID:    p.ID,
		Confidence:   confidence,
		Multiplier:   p.Multiplier,
		MatchedEdges: ids,
		key:          strings.Join(canonical, ","),
	}
}
