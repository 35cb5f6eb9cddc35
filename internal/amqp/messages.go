// Package amqp consumes balance-affecting events from the message broker and
// feeds them into the engine. Delivery is at-least-once; the ledger's
// idempotent appends make redelivery harmless.
package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Split modes carried by expense events.
const (
	SplitEqual = "EQUAL"
	SplitExact = "EXACT"
)

// ShareMessage is one participant's share inside an expense event.
type ShareMessage struct {
	UserID string `json:"user_id"`
	Amount string `json:"amount"`
}

// ExpenseCreatedMessage mirrors the expense service's created event. With
// SplitEqual the amount is divided across Participants; with SplitExact the
// Shares carry explicit per-user amounts.
type ExpenseCreatedMessage struct {
	ExpenseID    string         `json:"expense_id"`
	GroupID      string         `json:"group_id"`
	Description  string         `json:"description"`
	Amount       string         `json:"amount"`
	Currency     string         `json:"currency"`
	PaidBy       string         `json:"paid_by"`
	SplitType    string         `json:"split_type"`
	Participants []string       `json:"participants,omitempty"`
	Shares       []ShareMessage `json:"shares,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Validate reports whether the message can possibly be processed. Failing
// messages are rejected without requeue; redelivery cannot fix them.
func (m *ExpenseCreatedMessage) Validate() error {
	if m.ExpenseID == "" || m.GroupID == "" || m.PaidBy == "" {
		return fmt.Errorf("expense event missing expense, group or payer ID")
	}
	if m.Currency == "" {
		return fmt.Errorf("expense event %s has no currency", m.ExpenseID)
	}
	switch m.SplitType {
	case SplitEqual:
		if len(m.Participants) == 0 {
			return fmt.Errorf("equal-split expense %s has no participants", m.ExpenseID)
		}
		if m.Amount == "" {
			return fmt.Errorf("equal-split expense %s has no amount", m.ExpenseID)
		}
	case SplitExact:
		if len(m.Shares) == 0 {
			return fmt.Errorf("exact-split expense %s has no shares", m.ExpenseID)
		}
	default:
		return fmt.Errorf("expense event %s has unknown split type %q", m.ExpenseID, m.SplitType)
	}
	return nil
}

// SettlementRecordedMessage mirrors the settlement service's recorded event:
// FromUserID paid ToUserID the amount.
type SettlementRecordedMessage struct {
	SettlementID string    `json:"settlement_id"`
	GroupID      string    `json:"group_id"`
	FromUserID   string    `json:"from_user_id"`
	ToUserID     string    `json:"to_user_id"`
	Amount       string    `json:"amount"`
	Currency     string    `json:"currency"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate reports whether the message can possibly be processed.
func (m *SettlementRecordedMessage) Validate() error {
	if m.SettlementID == "" || m.GroupID == "" || m.FromUserID == "" || m.ToUserID == "" {
		return fmt.Errorf("settlement event missing IDs")
	}
	if m.Amount == "" || m.Currency == "" {
		return fmt.Errorf("settlement event %s has no amount", m.SettlementID)
	}
	return nil
}

// ExpenseCreatedFromJSON decodes an expense event payload.
func ExpenseCreatedFromJSON(data []byte) (*ExpenseCreatedMessage, error) {
	var msg ExpenseCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SettlementRecordedFromJSON decodes a settlement event payload.
func SettlementRecordedFromJSON(data []byte) (*SettlementRecordedMessage, error) {
	var msg SettlementRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
