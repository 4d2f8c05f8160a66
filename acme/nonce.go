package acme

import (
	"context"
	"fmt"
	"sync"

	"github.com/acmed/acmed/transport"
)

// NoncePool is a bounded FIFO of unused Replay-Nonce values for one
// endpoint, minted on demand from the directory's newNonce URL (spec.md
// §4.3).
type NoncePool struct {
	client  *transport.Client
	newURL  string
	maxSize int

	mu     sync.Mutex
	nonces []string
	seen   map[string]bool
}

// NewNoncePool constructs a pool backed by client, minting against newURL.
// maxSize bounds how many unused nonces are retained; 0 means unbounded.
func NewNoncePool(client *transport.Client, newURL string, maxSize int) *NoncePool {
	return &NoncePool{
		client:  client,
		newURL:  newURL,
		maxSize: maxSize,
		seen:    make(map[string]bool),
	}
}

// Take pops a nonce, minting a fresh one via HEAD newNonce if the pool is
// empty.
func (p *NoncePool) Take(ctx context.Context) (string, error) {
	p.mu.Lock()
	if len(p.nonces) > 0 {
		n := p.nonces[0]
		p.nonces = p.nonces[1:]
		delete(p.seen, n)
		p.mu.Unlock()
		return n, nil
	}
	p.mu.Unlock()

	resp, err := p.client.Head(ctx, p.newURL)
	if err != nil {
		return "", fmt.Errorf("acme: mint nonce: %w", err)
	}
	n := resp.Header("Replay-Nonce")
	if n == "" {
		return "", fmt.Errorf("acme: mint nonce: newNonce response carried no Replay-Nonce header")
	}
	return n, nil
}

// Push returns an unused nonce to the pool, most often one captured from a
// response's Replay-Nonce header. Duplicates are discarded.
func (p *NoncePool) Push(nonce string) {
	if nonce == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seen[nonce] {
		return
	}
	if p.maxSize > 0 && len(p.nonces) >= p.maxSize {
		return
	}
	p.seen[nonce] = true
	p.nonces = append(p.nonces, nonce)
}
