package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunStatus represents how a simulation run ended
type RunStatus string

const (
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// ItemType represents the type of item in the unified table
type ItemType string

const (
	ItemTypeRun      ItemType = "RUN"
	ItemTypeSnapshot ItemType = "SNAPSHOT"
)

// UnifiedItem represents a single item in the unified DynamoDB table
type UnifiedItem struct {
	PK        string    `json:"pk" dynamodbav:"pk"`     // Partition key
	SK        string    `json:"sk" dynamodbav:"sk"`     // Sort key
	Type      ItemType  `json:"type" dynamodbav:"type"` // Item type
	Data      string    `json:"data" dynamodbav:"data"` // JSON data
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// RunSummary represents one simulation run
type RunSummary struct {
	RunID        string          `json:"run_id"`
	Status       RunStatus       `json:"status"`
	Start        time.Time       `json:"start"`
	End          time.Time       `json:"end"`
	StartingCash decimal.Decimal `json:"starting_cash"`
	FinalValue   decimal.Decimal `json:"final_value"`
	Days         int             `json:"days"`
	Executed     int             `json:"executed"`
	Dropped      int             `json:"dropped"`
	ErrorKind    string          `json:"error_kind,omitempty"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SnapshotRecord is the stored form of one daily ledger snapshot
type SnapshotRecord struct {
	Date       time.Time        `json:"date"`
	Cash       decimal.Decimal  `json:"cash"`
	Longs      decimal.Decimal  `json:"longs"`
	Shorts     decimal.Decimal  `json:"shorts"`
	TotalValue decimal.Decimal  `json:"total_value"`
	Leverage   decimal.Decimal  `json:"leverage"`
	Holdings   map[string]int64 `json:"holdings,omitempty"`
}
