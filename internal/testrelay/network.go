// Package testrelay provides an in-memory relay network for exercising
// fetch and publish sessions without sockets.
package testrelay

import (
	"context"
	"fmt"
	"sync"

	"git.home.luguber.info/inful/nostrbackup/internal/relay"
)

// Behavior plays the relay side of one connection. It returns when the
// exchange is over; returning does not close the connection, call Hangup for that.
type Behavior func(ctx context.Context, p *Peer)

// Network maps relay URLs to behaviors and implements relay.Dialer.
// URLs without a behavior refuse connections.
type Network struct {
	mu        sync.Mutex
	behaviors map[string]Behavior
	dials     []string
	active    int
	maxActive int
	peers     map[string][]*Peer
}

// NewNetwork creates an empty network.
func NewNetwork() *Network {
	return &Network{
		behaviors: make(map[string]Behavior),
		peers:     make(map[string][]*Peer),
	}
}

// Handle registers the behavior for url.
func (n *Network) Handle(url string, b Behavior) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.behaviors[url] = b
}

// Dial implements relay.Dialer.
func (n *Network) Dial(ctx context.Context, url string) (relay.Conn, error) {
	n.mu.Lock()
	n.dials = append(n.dials, url)
	b, ok := n.behaviors[url]
	if !ok {
		n.mu.Unlock()
		return nil, fmt.Errorf("dial %s: connection refused", url)
	}
	n.active++
	if n.active > n.maxActive {
		n.maxActive = n.active
	}
	n.mu.Unlock()

	c := newConn(func() {
		n.mu.Lock()
		n.active--
		n.mu.Unlock()
	})
	p := &Peer{URL: url, conn: c}

	n.mu.Lock()
	n.peers[url] = append(n.peers[url], p)
	n.mu.Unlock()

	peerCtx, cancel := context.WithCancel(context.Background())
	go func() {
		<-c.closed
		cancel()
	}()
	go b(peerCtx, p)
	return c, nil
}

// Dials returns every dialled URL in dial order, refused ones included.
func (n *Network) Dials() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.dials...)
}

// MaxConcurrent returns the highest number of simultaneously open connections.
func (n *Network) MaxConcurrent() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.maxActive
}

// Active returns the number of connections the client has not closed yet.
func (n *Network) Active() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}

// Peers returns the relay-side peers created for url.
func (n *Network) Peers(url string) []*Peer {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*Peer(nil), n.peers[url]...)
}
