package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/example/allocation/internal/domain"
)

var ErrUnknownCommand = errors.New("no handler registered for command")

// Message is either a domain.Command or a domain.Event.
type Message any

type CommandHandler func(ctx context.Context, cmd domain.Command, uow UnitOfWork) (any, error)

type EventHandler func(ctx context.Context, event domain.Event, uow UnitOfWork) error

// MessageBus drives messages through their handlers. Commands have exactly
// one handler and their failures surface to the caller; events have any
// number of handlers and each failure is logged and swallowed, because an
// event reaction must never corrupt the outcome of the command that caused
// it. Events produced while handling a message are appended to the queue
// and processed in turn.
type MessageBus struct {
	commandHandlers map[string]CommandHandler
	eventHandlers   map[string][]EventHandler
}

// NewMessageBus builds a bus from explicit handler registries. The
// registries are fixed at construction so tests can wire independent buses.
func NewMessageBus(
	commandHandlers map[string]CommandHandler,
	eventHandlers map[string][]EventHandler,
) *MessageBus {
	return &MessageBus{
		commandHandlers: commandHandlers,
		eventHandlers:   eventHandlers,
	}
}

// Handle processes msg and everything it spawns, FIFO, until the queue is
// empty. It returns the results of every command handled. A command
// failure aborts the dispatch immediately and abandons the rest of the
// queue; results accumulated up to that point are returned with the error.
func (b *MessageBus) Handle(ctx context.Context, msg Message, uow UnitOfWork) ([]any, error) {
	var results []any
	queue := []Message{msg}

	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]

		switch m := m.(type) {
		case domain.Command:
			result, err := b.handleCommand(ctx, m, &queue, uow)
			if err != nil {
				return results, err
			}
			results = append(results, result)
		case domain.Event:
			b.handleEvent(ctx, m, &queue, uow)
		default:
			return results, fmt.Errorf("unknown message type %T", m)
		}
	}

	return results, nil
}

func (b *MessageBus) handleCommand(ctx context.Context, cmd domain.Command, queue *[]Message, uow UnitOfWork) (any, error) {
	handler, ok := b.commandHandlers[cmd.CommandName()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.CommandName())
	}

	result, err := handler(ctx, cmd, uow)
	if err != nil {
		return nil, err
	}
	for _, event := range uow.CollectNewEvents() {
		*queue = append(*queue, event)
	}
	return result, nil
}

func (b *MessageBus) handleEvent(ctx context.Context, event domain.Event, queue *[]Message, uow UnitOfWork) {
	for _, handler := range b.eventHandlers[event.EventName()] {
		if err := handler(ctx, event, uow); err != nil {
			log.Printf("[Bus] error handling event %s: %v", event.EventName(), err)
		}
		// Harvest even after a failure: events recorded before the
		// handler gave up still happened.
		for _, e := range uow.CollectNewEvents() {
			*queue = append(*queue, e)
		}
	}
}
