package notification

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/example/allocation/internal/domain"
	"github.com/example/allocation/internal/infrastructure/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentConfirmation struct {
	To, OrderID, Sku, BatchRef string
	Qty                        int
}

type fakeSender struct {
	sent []sentConfirmation
}

func (s *fakeSender) SendAllocationConfirmation(to, orderID, sku, batchRef string, qty int) error {
	s.sent = append(s.sent, sentConfirmation{to, orderID, sku, batchRef, qty})
	return nil
}

func envelopeFor(t *testing.T, event domain.Event) kafka.Envelope {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Envelope{ID: "test-id", EventType: event.EventName(), Data: data}
}

func TestHandleEnvelope_BatchAllocated(t *testing.T) {
	sender := &fakeSender{}
	handler := NewHandler(sender, "orders@example.com")

	err := handler.HandleEnvelope(context.Background(), envelopeFor(t, domain.BatchAllocated{
		OrderID: "order-001", Sku: "RED-CHAIR", Qty: 10, BatchRef: "batch-001",
	}))

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, sentConfirmation{
		To: "orders@example.com", OrderID: "order-001", Sku: "RED-CHAIR", BatchRef: "batch-001", Qty: 10,
	}, sender.sent[0])
}

func TestHandleEnvelope_IgnoresOtherEvents(t *testing.T) {
	sender := &fakeSender{}
	handler := NewHandler(sender, "orders@example.com")

	err := handler.HandleEnvelope(context.Background(), envelopeFor(t, domain.OutOfStock{Sku: "RED-CHAIR"}))

	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestHandleEnvelope_BadPayload(t *testing.T) {
	sender := &fakeSender{}
	handler := NewHandler(sender, "orders@example.com")

	err := handler.HandleEnvelope(context.Background(), kafka.Envelope{
		ID:        "test-id",
		EventType: domain.EventBatchAllocated,
		Data:      json.RawMessage(`{not json`),
	})

	assert.Error(t, err)
	assert.Empty(t, sender.sent)
}
