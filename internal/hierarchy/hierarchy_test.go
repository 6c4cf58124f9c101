package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type node struct{ id, manager string }

func graphOf(nodes ...node) Graph {
	return Build(nodes, func(n node) string { return n.id }, func(n node) string { return n.manager })
}

func TestReports_BreadthFirst(t *testing.T) {
	g := graphOf(
		node{"ceo", ""},
		node{"cto", "ceo"},
		node{"cfo", "ceo"},
		node{"eng1", "cto"},
		node{"eng2", "cto"},
		node{"intern", "eng1"},
	)

	assert.Equal(t, []string{"cto", "cfo", "eng1", "eng2", "intern"}, Reports(g, "ceo"))
	assert.Equal(t, []string{"eng1", "eng2", "intern"}, Reports(g, "cto"))
	assert.Empty(t, Reports(g, "intern"))
	assert.Empty(t, Reports(g, "unknown"))
	assert.False(t, HasCycle(g))
}

func TestReports_CycleTerminates(t *testing.T) {
	g := graphOf(
		node{"a", "c"},
		node{"b", "a"},
		node{"c", "b"},
		node{"d", "b"},
	)

	got := Reports(g, "a")
	assert.ElementsMatch(t, []string{"b", "c", "d"}, got)
	assert.NotContains(t, got, "a")
	assert.True(t, HasCycle(g))
}

func TestReports_SelfManaged(t *testing.T) {
	g := graphOf(node{"x", "x"}, node{"y", "x"})
	assert.Equal(t, []string{"y"}, Reports(g, "x"))
	assert.True(t, HasCycle(g))
}
