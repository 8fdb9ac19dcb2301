/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator struct tags; handlers run
  them through the shared Validate instance before touching the engine.
  Amounts travel as decimal strings to keep monetary precision across the
  wire.

SEE ALSO:
  - handlers.go: Uses these types
  - engine/types.go: The domain shapes these project
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/cashflow-engine/engine"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// MovementDTO represents a confirmed movement in API responses. Status is
// the read-time effective status (overdue is derived, never stored);
// StoredStatus carries the persisted value for clients that need it.
type MovementDTO struct {
	ID           string   `json:"id"`
	Direction    string   `json:"direction"`
	Date         string   `json:"date"`
	Time         string   `json:"time"`
	Description  string   `json:"description"`
	Amount       string   `json:"amount"`
	Category     string   `json:"category"`
	Status       string   `json:"status"`
	StoredStatus string   `json:"stored_status"`
	Reconciled   bool     `json:"reconciled"`
	Source       string   `json:"source"`
	SourceID     string   `json:"source_id,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Attachments  []string `json:"attachments,omitempty"`
	CreatedAt    string   `json:"created_at,omitempty"`
	UpdatedAt    string   `json:"updated_at,omitempty"`
	CreatedBy    string   `json:"created_by,omitempty"`
	UpdatedBy    string   `json:"updated_by,omitempty"`
}

// PendingEntryDTO represents a live staging entry.
type PendingEntryDTO struct {
	ID          string `json:"id"`
	Direction   string `json:"direction"`
	Source      string `json:"source"`
	SourceID    string `json:"source_id,omitempty"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Selected    bool   `json:"selected"`
	StagedAt    string `json:"staged_at,omitempty"`
}

// RawFactDTO is a candidate fact as a collaborator submits it.
type RawFactDTO struct {
	Direction   string `json:"direction" validate:"required,oneof=inflow outflow"`
	SourceID    string `json:"source_id" validate:"required"`
	Date        string `json:"date" validate:"required"`
	Description string `json:"description"`
	Amount      string `json:"amount" validate:"required"`
	Category    string `json:"category"`
}

// CollectRequest is a batch of candidate facts for the staging path.
type CollectRequest struct {
	Source string       `json:"source" validate:"required,oneof=Management Payroll Budget Project CSV-Import Excel-Import System"`
	Facts  []RawFactDTO `json:"facts" validate:"required,min=1,dive"`
}

// CollectResponse reports how many entries were actually inserted.
type CollectResponse struct {
	Inserted int `json:"inserted"`
}

// PostDirectRequest is a single finalized fact for the direct path.
type PostDirectRequest struct {
	Source string     `json:"source" validate:"required,oneof=Management Payroll Budget Project CSV-Import Excel-Import System"`
	Fact   RawFactDTO `json:"fact" validate:"required"`
}

// PromoteRequest names the staging entries to confirm.
type PromoteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

// PromoteResponse reports how many movements were created.
type PromoteResponse struct {
	Promoted int `json:"promoted"`
}

// PurgeResponse reports how many processed entries were removed.
type PurgeResponse struct {
	Removed int `json:"removed"`
}

// ManualMovementRequest creates or updates an operator-entered movement.
type ManualMovementRequest struct {
	Direction   string   `json:"direction" validate:"required,oneof=inflow outflow"`
	Date        string   `json:"date" validate:"required"`
	Time        string   `json:"time"`
	Description string   `json:"description"`
	Amount      string   `json:"amount" validate:"required"`
	Category    string   `json:"category"`
	Status      string   `json:"status" validate:"omitempty,oneof=paid pending"`
	Tags        []string `json:"tags"`
	Attachments []string `json:"attachments"`
	Actor       string   `json:"actor"`
}

// SelectRequest toggles operator intent on a staging entry.
type SelectRequest struct {
	Selected bool `json:"selected"`
}

// InitialBalanceRequest sets the opening balance scalar.
type InitialBalanceRequest struct {
	InitialBalance string `json:"initial_balance" validate:"required"`
}

// BalanceDTO is the headline numbers block.
type BalanceDTO struct {
	InitialBalance string `json:"initial_balance"`
	CurrentBalance string `json:"current_balance"`
	Projection     string `json:"projection"`
	AsOf           string `json:"as_of"`
}

// AggregateDTO is a period aggregate plus the interval it covers.
type AggregateDTO struct {
	Period           string `json:"period"`
	Start            string `json:"start,omitempty"`
	End              string `json:"end,omitempty"`
	InflowTotal      string `json:"inflow_total"`
	OutflowTotal     string `json:"outflow_total"`
	NetTotal         string `json:"net_total"`
	PaidInflowTotal  string `json:"paid_inflow_total"`
	PaidOutflowTotal string `json:"paid_outflow_total"`
	MovementCount    int    `json:"movement_count"`
}

// CategoryTotalDTO is one bucket of a category distribution.
type CategoryTotalDTO struct {
	Category string `json:"category"`
	Total    string `json:"total"`
	Count    int    `json:"count"`
}

// MonthTotalDTO is one bucket of a monthly series.
type MonthTotalDTO struct {
	Year         int    `json:"year"`
	Month        int    `json:"month"`
	InflowTotal  string `json:"inflow_total"`
	OutflowTotal string `json:"outflow_total"`
	NetTotal     string `json:"net_total"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toMovementDTO(m engine.Movement, today engine.Date) MovementDTO {
	return MovementDTO{
		ID:           string(m.ID),
		Direction:    string(m.Direction),
		Date:         m.Date.String(),
		Time:         m.Time.String(),
		Description:  m.Description,
		Amount:       m.Amount.String(),
		Category:     m.Category,
		Status:       string(m.EffectiveStatus(today)),
		StoredStatus: string(m.Status),
		Reconciled:   m.Reconciled,
		Source:       string(m.Source),
		SourceID:     m.SourceID,
		Tags:         m.Tags,
		Attachments:  m.Attachments,
		CreatedAt:    formatTimestamp(m.CreatedAt),
		UpdatedAt:    formatTimestamp(m.UpdatedAt),
		CreatedBy:    m.CreatedBy,
		UpdatedBy:    m.UpdatedBy,
	}
}

func toMovementDTOs(movements []engine.Movement, today engine.Date) []MovementDTO {
	dtos := make([]MovementDTO, len(movements))
	for i, m := range movements {
		dtos[i] = toMovementDTO(m, today)
	}
	return dtos
}

func toPendingEntryDTO(p engine.PendingEntry) PendingEntryDTO {
	return PendingEntryDTO{
		ID:          string(p.ID),
		Direction:   string(p.Direction),
		Source:      string(p.Source),
		SourceID:    p.SourceID,
		Date:        p.Date.String(),
		Description: p.Description,
		Amount:      p.Amount.String(),
		Category:    p.Category,
		Selected:    p.Selected,
		StagedAt:    formatTimestamp(p.StagedAt),
	}
}

func toAggregateDTO(p engine.Period, interval engine.Interval, agg engine.PeriodAggregate) AggregateDTO {
	dto := AggregateDTO{
		Period:           string(p),
		InflowTotal:      agg.InflowTotal.String(),
		OutflowTotal:     agg.OutflowTotal.String(),
		NetTotal:         agg.NetTotal.String(),
		PaidInflowTotal:  agg.PaidInflowTotal.String(),
		PaidOutflowTotal: agg.PaidOutflowTotal.String(),
		MovementCount:    agg.MovementCount,
	}
	if !interval.Start.IsZero() {
		dto.Start = interval.Start.String()
	}
	if !interval.End.IsZero() {
		dto.End = interval.End.String()
	}
	return dto
}

// toRawFact converts a validated DTO. A malformed date or amount survives
// conversion as a zero value; the engine's coercion rules repair both.
func toRawFact(dto RawFactDTO) engine.RawFact {
	date, _ := engine.ParseDate(dto.Date)
	amount, err := decimal.NewFromString(dto.Amount)
	if err != nil {
		amount = decimal.Zero
	}
	return engine.RawFact{
		Direction:   engine.Direction(dto.Direction),
		SourceID:    dto.SourceID,
		Date:        date,
		Description: dto.Description,
		Amount:      amount,
		Category:    dto.Category,
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
