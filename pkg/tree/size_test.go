package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stselect/stselect/pkg/models"
)

func file(name string, size int64) *models.Node {
	n := &models.Node{Name: name, Type: models.TypeFile}
	n.SetSize(size)
	return n
}

func TestAggregateSize_Complete(t *testing.T) {
	root := &models.Node{Name: "root", Type: models.TypeDirectory, Children: []*models.Node{
		file("a", 10),
		{Name: "d", Type: models.TypeDirectory, Children: []*models.Node{
			file("b", 5),
			{Name: "empty", Type: models.TypeDirectory, Children: []*models.Node{}},
		}},
	}}

	size, complete := AggregateSize(root)
	assert.EqualValues(t, 15, size)
	assert.True(t, complete)
	assert.True(t, root.SizeComplete)
	assert.EqualValues(t, 5, *Find(root.Children, "d").Size)
	assert.True(t, Find(root.Children, "d/empty").SizeComplete)
}

func TestAggregateSize_IncompleteWhenAnyDescendantLacksData(t *testing.T) {
	cases := map[string]*models.Node{
		"file without size":  {Name: "x", Type: models.TypeFile},
		"unloaded directory": {Name: "x", Type: models.TypeDirectory},
		"unknown type":       {Name: "x"},
	}
	for name, missing := range cases {
		root := &models.Node{Name: "root", Type: models.TypeDirectory, Children: []*models.Node{
			file("a", 10),
			{Name: "d", Type: models.TypeDirectory, Children: []*models.Node{
				file("b", 5),
				missing,
			}},
		}}

		size, complete := AggregateSize(root)
		assert.False(t, complete, name)
		assert.False(t, root.SizeComplete, name)
		assert.False(t, Find(root.Children, "d").SizeComplete, name)
		assert.True(t, Find(root.Children, "a").SizeComplete, name)
		assert.EqualValues(t, 15, size, "%s: known sizes still summed", name)
	}
}

func TestMissingSizes(t *testing.T) {
	nodes := []*models.Node{
		file("a", 1),
		{Name: "b", Type: models.TypeFile},
		{Name: "d", Type: models.TypeDirectory, Children: []*models.Node{
			{Name: "c", Type: models.TypeFile},
		}},
	}
	assert.Equal(t, []string{"b", "d/c"}, MissingSizes(nodes))
}
