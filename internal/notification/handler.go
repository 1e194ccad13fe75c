package notification

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/allocation/internal/domain"
	"github.com/example/allocation/internal/infrastructure/kafka"
)

// Sender is the slice of the email service the notifier needs.
type Sender interface {
	SendAllocationConfirmation(to, orderID, sku, batchRef string, qty int) error
}

// Handler turns published BatchAllocated events into confirmation emails.
// It runs out of process, fed by the Kafka topic the bus publishes to.
type Handler struct {
	sender Sender
	inbox  string // destination for confirmations
}

// NewHandler creates a new notification handler
func NewHandler(sender Sender, inbox string) *Handler {
	return &Handler{sender: sender, inbox: inbox}
}

// HandleEnvelope processes one event envelope from Kafka.
func (h *Handler) HandleEnvelope(ctx context.Context, envelope kafka.Envelope) error {
	if envelope.EventType != domain.EventBatchAllocated {
		return nil
	}

	var e domain.BatchAllocated
	if err := json.Unmarshal(envelope.Data, &e); err != nil {
		log.Printf("[Notifier] failed to unmarshal BatchAllocated: %v", err)
		return err
	}

	log.Printf("[Notifier] order %s: %d x %s allocated to %s", e.OrderID, e.Qty, e.Sku, e.BatchRef)
	return h.sender.SendAllocationConfirmation(h.inbox, e.OrderID, e.Sku, e.BatchRef, e.Qty)
}
