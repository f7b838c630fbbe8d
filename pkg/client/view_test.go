package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNavigatorFlow(t *testing.T) {
	n := NewNavigator()
	view, ticket := n.Current()
	assert.Equal(t, ViewMenu, view)
	assert.Empty(t, ticket)

	require.NoError(t, n.Go(ViewCreate, ""))
	require.NoError(t, n.Go(ViewChat, "t-1"))
	view, ticket = n.Current()
	assert.Equal(t, ViewChat, view)
	assert.Equal(t, "t-1", ticket)

	n.Back()
	view, ticket = n.Current()
	assert.Equal(t, ViewList, view)
	assert.Empty(t, ticket)

	n.Back()
	view, _ = n.Current()
	assert.Equal(t, ViewMenu, view)
}

func TestNavigatorRejectsInvalidMoves(t *testing.T) {
	n := NewNavigator()
	assert.ErrorIs(t, n.Go(ViewChat, "t-1"), ErrInvalidNavigation)

	require.NoError(t, n.Go(ViewList, ""))
	assert.ErrorIs(t, n.Go(ViewChat, ""), ErrInvalidNavigation)
	assert.ErrorIs(t, n.Go(ViewCreate, ""), ErrInvalidNavigation)

	view, _ := n.Current()
	assert.Equal(t, ViewList, view)
}
