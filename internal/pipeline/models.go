package pipeline

import "github.com/ManuSanchez02/telegram-expenses-bot/internal/common"

// Fields is the engine output. Each field is nil when the engine could not
// determine it.
type Fields struct {
	Description *string  `json:"description"`
	Amount      *float64 `json:"price"`
	Category    *string  `json:"category"`
}

// present counts the non-nil fields.
func (f Fields) present() int {
	n := 0
	if f.Description != nil {
		n++
	}
	if f.Amount != nil {
		n++
	}
	if f.Category != nil {
		n++
	}
	return n
}

// Expense is a fully extracted expense. Amount is passed through as the
// engine returned it: no rounding, no sign check.
type Expense struct {
	Description string
	Amount      float64
	Category    Category
}

// Outcome names the variant of a Result.
type Outcome string

const (
	OutcomeComplete   Outcome = "complete"
	OutcomeIncomplete Outcome = "incomplete"
	OutcomeInvalid    Outcome = "invalid"
)

// Result is the classified extraction: exactly one of Complete, Incomplete
// or Invalid. Callers type-switch on it.
type Result interface {
	Outcome() Outcome
	isResult()
}

// Complete carries the extracted expense.
type Complete struct {
	Expense Expense
}

// Incomplete means some, but not all, fields were found.
type Incomplete struct {
	Fields Fields
}

// Invalid means the text does not describe an expense.
type Invalid struct{}

func (Complete) Outcome() Outcome   { return OutcomeComplete }
func (Incomplete) Outcome() Outcome { return OutcomeIncomplete }
func (Invalid) Outcome() Outcome    { return OutcomeInvalid }

func (Complete) isResult()   {}
func (Incomplete) isResult() {}
func (Invalid) isResult()    {}

// Reason returns the client-facing reason code.
func (Incomplete) Reason() string { return ReasonIncomplete }

// Reason returns the client-facing reason code.
func (Invalid) Reason() string { return ReasonInvalid }

// Err returns common.ErrIncompleteExtraction.
func (Incomplete) Err() error { return common.ErrIncompleteExtraction }

// Err returns common.ErrInvalidExtraction.
func (Invalid) Err() error { return common.ErrInvalidExtraction }
