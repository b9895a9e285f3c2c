package submission

import "time"

const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
)

// Outcome is the delivery result for one destination type. Failures carry
// the error text and when the final attempt happened; successes carry
// neither.
type Outcome struct {
	Success   bool       `json:"success"`
	Error     string     `json:"error,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

func Succeeded() Outcome {
	return Outcome{Success: true}
}

func Failed(err error, at time.Time) Outcome {
	return Outcome{Success: false, Error: err.Error(), Timestamp: &at}
}

type Submission struct {
	ID          string
	ConnectorID string
	Payload     map[string]any
	Outcomes    map[string]Outcome
	Status      string
	CreatedAt   time.Time
}
