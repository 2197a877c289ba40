package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/spawnpool/pkg/poolerrors"
)

func TestInstantiateClonesPrototype(t *testing.T) {
	s := New()
	root := s.NewNode("root", nil)
	proto := s.NewPrototype("Bullet")

	clone, err := s.Instantiate(proto, root)
	require.NoError(t, err)

	assert.Equal(t, "Bullet(Clone)", clone.String())
	assert.False(t, s.Active(clone), "clone inherits inactive prototype state")
	assert.Same(t, root, s.Parent(clone))
	assert.Same(t, proto, s.Prototype(clone))
	assert.Equal(t, []*Node{clone}, s.Children(root))
	assert.Equal(t, 1, s.Clones(proto))
	assert.Equal(t, 3, s.Alive())
}

func TestSetParentMovesNode(t *testing.T) {
	s := New()
	root := s.NewNode("root", nil)
	hud := s.NewNode("hud", root)
	item := s.NewNode("item", root)

	require.NoError(t, s.SetParent(item, hud))
	assert.Equal(t, []*Node{hud}, s.Children(root))
	assert.Equal(t, []*Node{item}, s.Children(hud))

	require.NoError(t, s.SetParent(item, nil))
	assert.Nil(t, s.Parent(item))
	assert.Empty(t, s.Children(hud))

	err := s.SetParent(root, hud)
	assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeValidation))
}

func TestActiveInHierarchy(t *testing.T) {
	s := New()
	root := s.NewNode("root", nil)
	child := s.NewNode("child", root)

	assert.True(t, s.ActiveInHierarchy(child))
	require.NoError(t, s.SetActive(root, false))
	assert.True(t, s.Active(child))
	assert.False(t, s.ActiveInHierarchy(child))
}

func TestDestroyIsRecursive(t *testing.T) {
	s := New()
	root := s.NewNode("root", nil)
	parent := s.NewNode("parent", root)
	child := s.NewNode("child", parent)

	require.NoError(t, s.Destroy(parent))

	assert.True(t, s.Destroyed(parent))
	assert.True(t, s.Destroyed(child))
	assert.Empty(t, s.Children(root))
	assert.Equal(t, 1, s.Alive())

	// Already gone through its ancestor or a previous call.
	assert.NoError(t, s.Destroy(child))
	assert.NoError(t, s.Destroy(parent))
	assert.Equal(t, 1, s.Alive())
	assert.True(t, poolerrors.IsType(s.Destroy(nil), poolerrors.ErrorTypeValidation))

	err := s.SetActive(child, true)
	assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeValidation))
	_, err = s.Instantiate(parent, root)
	assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeValidation))
}
