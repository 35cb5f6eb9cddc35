package amqp

import (
	"context"
	"fmt"

	"github.com/splitterhq/balances/internal/calculator"
	"github.com/splitterhq/balances/internal/money"
	"github.com/splitterhq/balances/internal/service"
)

// EventHandler turns broker events into ledger appends, routed through the
// dispatcher so each group's events apply through its single writer.
type EventHandler struct {
	ledger     *service.LedgerService
	dispatcher *service.Dispatcher
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(ledger *service.LedgerService, dispatcher *service.Dispatcher) *EventHandler {
	return &EventHandler{ledger: ledger, dispatcher: dispatcher}
}

// HandleExpenseCreated resolves the event's shares (splitting equally when
// asked to) and records the expense split.
func (h *EventHandler) HandleExpenseCreated(ctx context.Context, msg *ExpenseCreatedMessage) error {
	shares, err := h.resolveShares(msg)
	if err != nil {
		return rejectf("resolve shares for expense %s: %w", msg.ExpenseID, err)
	}

	return h.dispatcher.Do(ctx, msg.GroupID, func(ctx context.Context) error {
		_, err := h.ledger.RecordExpenseSplit(ctx, msg.GroupID, msg.PaidBy, shares, msg.ExpenseID, msg.Description)
		return err
	})
}

// HandleSettlementRecorded records the settlement payment.
func (h *EventHandler) HandleSettlementRecorded(ctx context.Context, msg *SettlementRecordedMessage) error {
	amount, err := money.FromString(msg.Amount, msg.Currency)
	if err != nil {
		return rejectf("settlement %s amount: %w", msg.SettlementID, err)
	}

	return h.dispatcher.Do(ctx, msg.GroupID, func(ctx context.Context) error {
		_, err := h.ledger.RecordSettlement(ctx, msg.GroupID, msg.FromUserID, msg.ToUserID, amount, msg.SettlementID, "Settlement payment")
		return err
	})
}

func (h *EventHandler) resolveShares(msg *ExpenseCreatedMessage) (map[string]money.Money, error) {
	switch msg.SplitType {
	case SplitEqual:
		total, err := money.FromString(msg.Amount, msg.Currency)
		if err != nil {
			return nil, err
		}
		return calculator.EvenSplit(total, msg.Participants)
	case SplitExact:
		shares := make(map[string]money.Money, len(msg.Shares))
		for _, s := range msg.Shares {
			amount, err := money.FromString(s.Amount, msg.Currency)
			if err != nil {
				return nil, fmt.Errorf("share for %s: %w", s.UserID, err)
			}
			shares[s.UserID] = amount
		}
		return shares, nil
	default:
		return nil, fmt.Errorf("unknown split type %q", msg.SplitType)
	}
}
