// Package binder maps caller-declared customizable parts onto the mesh nodes of a loaded graph by name.
package binder

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-figure/common"
	"github.com/Carmen-Shannon/oxy-figure/engine/scene"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// minSuggestionSimilarity is the lowest Levenshtein similarity at which a mesh name is offered as a hint
// for an unmatched part.
const minSuggestionSimilarity = 0.4

// Part is a customizable region declared by the calling context.
type Part struct {
	// ID identifies the part. It is also the default match pattern.
	ID string

	// Match overrides the default case-insensitive substring match on ID.
	Match func(nodeName string) bool

	// Color is the part's initial color.
	Color common.Color

	// BasePriceDelta is carried for the host's pricing and never interpreted here.
	BasePriceDelta float64
}

// Matches reports whether a mesh node name belongs to the part. A part with an empty ID and no Match
// function matches nothing.
func (p Part) Matches(nodeName string) bool {
	if p.Match != nil {
		return p.Match(nodeName)
	}
	if p.ID == "" {
		return false
	}
	return strings.Contains(strings.ToLower(nodeName), strings.ToLower(p.ID))
}

// Binding associates a part with the mesh nodes of one graph that satisfy it.
type Binding struct {
	PartID string
	Nodes  []*scene.Node
}

// Empty reports whether the part bound no nodes.
func (b Binding) Empty() bool {
	return len(b.Nodes) == 0
}

// DiagnosticKind classifies a non-fatal binding observation.
type DiagnosticKind string

const (
	// DiagAmbiguous marks a node matched by more than one part; the first declared part keeps it.
	DiagAmbiguous DiagnosticKind = DiagnosticKind(common.ErrAmbiguousBinding)

	// DiagUnmatched marks a part that bound no node.
	DiagUnmatched DiagnosticKind = "UNMATCHED_PART"

	// DiagEmptyID marks a part declared without an ID.
	DiagEmptyID DiagnosticKind = "EMPTY_PART_ID"

	// DiagDuplicate marks a part whose ID repeats an earlier declaration; the later one is ignored.
	DiagDuplicate DiagnosticKind = "DUPLICATE_PART"
)

// Diagnostic describes one non-fatal binding observation.
type Diagnostic struct {
	Kind   DiagnosticKind
	PartID string

	// Node is the contested node for DiagAmbiguous.
	Node *scene.Node

	// Losers are the parts that also matched Node, in declaration order.
	Losers []string

	// Suggestion is the most similar mesh node name for DiagUnmatched, if any is close.
	Suggestion string
}

// String renders the diagnostic for logs.
func (d Diagnostic) String() string {
	switch d.Kind {
	case DiagAmbiguous:
		return fmt.Sprintf("node %q (#%d) matches parts %s; %q wins",
			d.Node.Name, d.Node.Index, strings.Join(append([]string{d.PartID}, d.Losers...), ", "), d.PartID)
	case DiagUnmatched:
		if d.Suggestion != "" {
			return fmt.Sprintf("part %q matches no mesh node (closest: %q)", d.PartID, d.Suggestion)
		}
		return fmt.Sprintf("part %q matches no mesh node", d.PartID)
	case DiagEmptyID:
		return "part declared without an id"
	case DiagDuplicate:
		return fmt.Sprintf("part %q declared more than once", d.PartID)
	}
	return string(d.Kind)
}

// Err returns the diagnostic as a structured error, for hosts that report diagnostics through error channels.
func (d Diagnostic) Err() error {
	return common.NewError(common.ErrorCode(d.Kind), d.String())
}

// Result is the outcome of binding a part list to a graph.
type Result struct {
	// Bindings holds one entry per declared part with a non-empty, unique ID, in declaration order.
	Bindings []Binding

	Diagnostics []Diagnostic
}

// Binding returns the binding of a part by ID.
func (r Result) Binding(partID string) (Binding, bool) {
	for _, b := range r.Bindings {
		if b.PartID == partID {
			return b, true
		}
	}
	return Binding{}, false
}

// Ambiguous returns only the ambiguity diagnostics.
func (r Result) Ambiguous() []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Kind == DiagAmbiguous {
			out = append(out, d)
		}
	}
	return out
}

// Bind assigns every mesh node of g to at most one part. Nodes are visited in depth-first authored order
// and parts are tried in declaration order; the first matching part wins and any further matches are
// reported as DiagAmbiguous. Bind reads names only and never touches materials.
//
// Parameters:
//   - g: the graph to bind
//   - parts: the declared parts
//
// Returns:
//   - Result: the bindings and diagnostics
func Bind(g scene.Graph, parts []Part) Result {
	var res Result
	index := make(map[string]int, len(parts))
	active := make([]Part, 0, len(parts))

	for _, p := range parts {
		if p.ID == "" {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{Kind: DiagEmptyID})
			continue
		}
		if _, dup := index[p.ID]; dup {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{Kind: DiagDuplicate, PartID: p.ID})
			continue
		}
		index[p.ID] = len(res.Bindings)
		res.Bindings = append(res.Bindings, Binding{PartID: p.ID})
		active = append(active, p)
	}
	if g == nil {
		return res
	}

	meshNodes := g.MeshNodes()
	for _, n := range meshNodes {
		winner := -1
		var losers []string
		for i, p := range active {
			if !p.Matches(n.Name) {
				continue
			}
			if winner < 0 {
				winner = i
				continue
			}
			losers = append(losers, p.ID)
		}
		if winner < 0 {
			continue
		}
		res.Bindings[winner].Nodes = append(res.Bindings[winner].Nodes, n)
		if len(losers) > 0 {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Kind:   DiagAmbiguous,
				PartID: active[winner].ID,
				Node:   n,
				Losers: losers,
			})
		}
	}

	for _, b := range res.Bindings {
		if b.Empty() {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Kind:       DiagUnmatched,
				PartID:     b.PartID,
				Suggestion: suggest(b.PartID, meshNodes),
			})
		}
	}
	return res
}

// suggest returns the mesh node name most similar to id, or "" when nothing is close.
func suggest(id string, nodes []*scene.Node) string {
	lev := metrics.NewLevenshtein()
	lev.CaseSensitive = false

	best, bestScore := "", minSuggestionSimilarity
	for _, n := range nodes {
		if n.Name == "" {
			continue
		}
		if s := strutil.Similarity(id, n.Name, lev); s >= bestScore {
			best, bestScore = n.Name, s
		}
	}
	return best
}
