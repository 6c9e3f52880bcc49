// SPDX-License-Identifier: MPL-2.0

package dag

import (
	"errors"
	"slices"
	"testing"
)

func TestTopologicalSort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		nodes []string
		edges [][2]string
		want  []string
	}{
		{name: "empty graph", want: nil},
		{name: "single node", nodes: []string{"Owml"}, want: []string{"Owml"}},
		{
			name:  "chain",
			edges: [][2]string{{"Lib.Core", "Lib.Ext"}, {"Lib.Ext", "Mod.App"}},
			want:  []string{"Lib.Core", "Lib.Ext", "Mod.App"},
		},
		{
			name:  "independent nodes sort by identity",
			nodes: []string{"Zed.Mod", "Alpha.Mod", "Mid.Mod"},
			want:  []string{"Alpha.Mod", "Mid.Mod", "Zed.Mod"},
		},
		{
			name: "diamond breaks ties by identity",
			edges: [][2]string{
				{"Base", "Right"}, {"Base", "Left"},
				{"Left", "Top"}, {"Right", "Top"},
			},
			want: []string{"Base", "Left", "Right", "Top"},
		},
		{
			name:  "newly ready node competes with older ready nodes",
			nodes: []string{"C"},
			edges: [][2]string{{"A", "B"}, {"D", "E"}},
			want:  []string{"A", "B", "C", "D", "E"},
		},
		{
			name:  "duplicate edges",
			edges: [][2]string{{"A", "B"}, {"A", "B"}},
			want:  []string{"A", "B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := New()
			for _, n := range tt.nodes {
				g.AddNode(n)
			}
			for _, e := range tt.edges {
				g.AddEdge(e[0], e[1])
			}
			order, err := g.TopologicalSort()
			if err != nil {
				t.Fatalf("TopologicalSort() error = %v", err)
			}
			if !slices.Equal(order, tt.want) {
				t.Errorf("TopologicalSort() = %v, want %v", order, tt.want)
			}
		})
	}
}

func TestTopologicalSort_Deterministic(t *testing.T) {
	t.Parallel()

	build := func(reverse bool) []string {
		g := New()
		names := []string{"E", "D", "C", "B", "A"}
		if reverse {
			slices.Reverse(names)
		}
		for _, n := range names {
			g.AddEdge("Root", n)
		}
		order, err := g.TopologicalSort()
		if err != nil {
			t.Fatalf("TopologicalSort() error = %v", err)
		}
		return order
	}

	if a, b := build(false), build(true); !slices.Equal(a, b) {
		t.Errorf("order depends on insertion: %v vs %v", a, b)
	}
}

func TestTopologicalSort_Cycles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		edges   [][2]string
		minSize int
	}{
		{name: "two nodes", edges: [][2]string{{"A", "B"}, {"B", "A"}}, minSize: 2},
		{name: "self loop", edges: [][2]string{{"A", "A"}}, minSize: 1},
		{name: "three nodes", edges: [][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}}, minSize: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := New()
			for _, e := range tt.edges {
				g.AddEdge(e[0], e[1])
			}
			_, err := g.TopologicalSort()
			var cycleErr *CycleError
			if !errors.As(err, &cycleErr) {
				t.Fatalf("expected *CycleError, got %T: %v", err, err)
			}
			if len(cycleErr.Cycle) < tt.minSize {
				t.Errorf("Cycle = %v, want at least %d nodes", cycleErr.Cycle, tt.minSize)
			}
		})
	}
}

func TestCycleError_Message(t *testing.T) {
	t.Parallel()
	err := &CycleError{Cycle: []string{"A", "B"}}
	if got, want := err.Error(), "dependency cycle detected: A -> B"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
