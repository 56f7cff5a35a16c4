package testutil

import (
	"context"
	"fmt"
	"sync"

	"herdshare-backend/internal/infrastructure/payments"
)

// Gateway is an in-memory payments.Gateway that records every call.
type Gateway struct {
	mu        sync.Mutex
	next      int
	Created   []payments.IntentRequest
	Cancelled []string
	Refunded  []string
	CreateErr error
}

func (g *Gateway) CreateIntent(_ context.Context, req payments.IntentRequest) (*payments.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CreateErr != nil {
		return nil, g.CreateErr
	}
	g.next++
	g.Created = append(g.Created, req)
	id := fmt.Sprintf("pi_test_%d", g.next)
	return &payments.Intent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (g *Gateway) CancelIntent(_ context.Context, intentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Cancelled = append(g.Cancelled, intentID)
	return nil
}

func (g *Gateway) Refund(_ context.Context, intentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Refunded = append(g.Refunded, intentID)
	return nil
}
