package client

import (
	"errors"
	"fmt"
	"sync"
)

// View is a screen of an interactive ticket front end. It is local navigation state and has no
// relation to a ticket's lifecycle status.
type View string

const (
	ViewMenu   View = "menu"
	ViewCreate View = "create"
	ViewList   View = "list"
	ViewChat   View = "chat"
)

// ErrInvalidNavigation is returned for a move the navigator does not allow.
var ErrInvalidNavigation = errors.New("invalid navigation")

var navigation = map[View][]View{
	ViewMenu:   {ViewCreate, ViewList},
	ViewCreate: {ViewMenu, ViewChat},
	ViewList:   {ViewMenu, ViewChat},
	ViewChat:   {ViewList, ViewMenu},
}

// Navigator tracks which view is showing and, in chat, which ticket is open.
type Navigator struct {
	mu       sync.Mutex
	current  View
	ticketID string
}

// NewNavigator starts at the menu.
func NewNavigator() *Navigator {
	return &Navigator{current: ViewMenu}
}

// Current returns the active view and the open ticket id, if any.
func (n *Navigator) Current() (View, string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current, n.ticketID
}

// Go moves to view. Entering chat requires the ticket to open; every other view clears it.
func (n *Navigator) Go(to View, ticketID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !canNavigate(n.current, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidNavigation, n.current, to)
	}
	if to == ViewChat && ticketID == "" {
		return fmt.Errorf("%w: chat needs a ticket", ErrInvalidNavigation)
	}
	n.current = to
	n.ticketID = ""
	if to == ViewChat {
		n.ticketID = ticketID
	}
	return nil
}

// Back returns to the previous level: chat goes to list, anything else to the menu.
func (n *Navigator) Back() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == ViewChat {
		n.current = ViewList
	} else {
		n.current = ViewMenu
	}
	n.ticketID = ""
}

func canNavigate(from, to View) bool {
	for _, next := range navigation[from] {
		if next == to {
			return true
		}
	}
	return false
}
