package store

import (
	"context"

	"github.com/amishk599/jobpilot/internal/model"
)

// NopLedger is a no-op ledger used in dry-run mode. It never records
// anything, so every job looks new on each run.
type NopLedger struct{}

func NewNopLedger() *NopLedger { return &NopLedger{} }

func (NopLedger) Append(context.Context, model.ApplicationRecord) error { return nil }
func (NopLedger) HasRecord(string) (bool, error)                        { return false, nil }
func (NopLedger) Records() ([]model.ApplicationRecord, error)           { return nil, nil }
