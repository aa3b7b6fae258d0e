package eventbus

// Event types published by the tracking pipeline.
const (
	TypeIterationDone = "poller.iteration_done"
	TypeItemFound     = "poller.item_found"
	TypeItemSent      = "poller.item_sent"
	TypeSendFailed    = "poller.send_failed"
	TypeCriteriaSet   = "tracker.criteria_set"
	TypeCleared       = "tracker.cleared"
	TypeConfigApplied = "config.applied"
)

// IterationDone summarizes one polling iteration.
type IterationDone struct {
	Matched int
	New     int
	Sent    int
	Failed  int
	Err     string
}

// ItemFound is published once per newly seen qualifying item.
type ItemFound struct {
	ID        string
	Name      string
	Price     int64
	Reduction float64
}
