package sse

import (
	"context"
	"sync"

	"ms-checkout/internal/models"
)

// SettlementEventEmitter manages SSE connections for payment settlement
// events. Frontends waiting on a checkout subscribe by order ID and receive
// the result the moment the confirmation lands.
type SettlementEventEmitter struct {
	orderClients     map[string][]chan models.PaymentResult
	orderClientMutex sync.RWMutex
}

func NewSettlementEventEmitter() *SettlementEventEmitter {
	return &SettlementEventEmitter{
		orderClients: make(map[string][]chan models.PaymentResult),
	}
}

// SubscribeToOrder adds a client waiting on one order's settlement.
func (e *SettlementEventEmitter) SubscribeToOrder(ctx context.Context, orderID string) chan models.PaymentResult {
	clientChan := make(chan models.PaymentResult, 10)

	e.orderClientMutex.Lock()
	e.orderClients[orderID] = append(e.orderClients[orderID], clientChan)
	e.orderClientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeOrderClient(orderID, clientChan)
	}()

	return clientChan
}

// NotifySettled broadcasts a settlement result to every client watching the
// order. Sends are non-blocking; a slow client misses the event rather than
// stalling the settlement path.
func (e *SettlementEventEmitter) NotifySettled(result models.PaymentResult) {
	// Sends happen under the read lock: unsubscribe closes channels under the
	// write lock, so a send can never race a close. The sends are
	// non-blocking, so the lock is held only briefly.
	e.orderClientMutex.RLock()
	defer e.orderClientMutex.RUnlock()

	for _, clientChan := range e.orderClients[result.OrderID] {
		select {
		case clientChan <- result:
		default:
		}
	}
}

func (e *SettlementEventEmitter) removeOrderClient(orderID string, clientChan chan models.PaymentResult) {
	e.orderClientMutex.Lock()
	defer e.orderClientMutex.Unlock()

	clients := e.orderClients[orderID]
	for i, ch := range clients {
		if ch == clientChan {
			e.orderClients[orderID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.orderClients[orderID]) == 0 {
		delete(e.orderClients, orderID)
	}
}

// GetOrderClientCount returns the number of clients watching an order.
func (e *SettlementEventEmitter) GetOrderClientCount(orderID string) int {
	e.orderClientMutex.RLock()
	defer e.orderClientMutex.RUnlock()
	return len(e.orderClients[orderID])
}
