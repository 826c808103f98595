package domain

// Status is the terminal classification of one article.
type Status int

const (
	StatusPublished Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPublished:
		return "published"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stable reason labels attached to outcomes.
const (
	ReasonPublished          = "published"
	ReasonDuplicate          = "duplicate"
	ReasonCollision          = "collision"
	ReasonExistsUnmarked     = "exists_unmarked"
	ReasonExtractionNotFound = "extraction_not_found"
	ReasonValidationRejected = "validation_rejected"
	ReasonFetchFailed        = "fetch_failed"
	ReasonEmptyTranslation   = "empty_translation"
	ReasonWriteFailed        = "write_failed"
	ReasonInvalidArticle     = "invalid_article"
	ReasonPanic              = "panic"
	ReasonCancelled          = "cancelled"
)

// State is a step of the per-article state machine.
type State int

const (
	StateFetched State = iota
	StateExtracted
	StateValidated
	StateLinkedPre
	StateTranslated
	StateLinkedPost
	StatePublishChecked
	StateDone
)

func (s State) String() string {
	switch s {
	case StateFetched:
		return "fetched"
	case StateExtracted:
		return "extracted"
	case StateValidated:
		return "validated"
	case StateLinkedPre:
		return "linked_pre"
	case StateTranslated:
		return "translated"
	case StateLinkedPost:
		return "linked_post"
	case StatePublishChecked:
		return "publish_checked"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of processing one article.
type Outcome struct {
	Status Status
	Reason string
	// State is the last state reached before the outcome was decided.
	State  State
	Record *PublishRecord
	Err    error
}

// Published builds a successful outcome.
func Published(rec *PublishRecord) Outcome {
	return Outcome{Status: StatusPublished, Reason: ReasonPublished, State: StateDone, Record: rec}
}

// Skipped builds an expected, non-error outcome.
func Skipped(reason string, state State, err error) Outcome {
	return Outcome{Status: StatusSkipped, Reason: reason, State: state, Err: err}
}

// Failed builds an error outcome.
func Failed(reason string, state State, err error) Outcome {
	return Outcome{Status: StatusFailed, Reason: reason, State: state, Err: err}
}
