package pipeline

// Reason codes returned to clients when an extraction is rejected.
const (
	// ReasonIncomplete is sent when the text names an expense but lacks
	// the description, the amount or the category.
	ReasonIncomplete = "incomplete_expense"

	// ReasonInvalid is sent when the text does not describe an expense.
	ReasonInvalid = "invalid_expense"
)

// Model output field names.
const (
	fieldDescription = "description"
	fieldPrice       = "price"
	fieldCategory    = "category"
)
