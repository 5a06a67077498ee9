package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateTransaction OutboxAggregateType = "transaction"
	AggregateReview      OutboxAggregateType = "review"
	AggregateListing     OutboxAggregateType = "listing"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateTransaction,
	AggregateReview,
	AggregateListing,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventTransactionCreated   OutboxEventType = "transaction_created"
	EventTransactionCompleted OutboxEventType = "transaction_completed"
	EventTransactionCancelled OutboxEventType = "transaction_cancelled"
	EventReviewSubmitted      OutboxEventType = "review_submitted"
	EventListingCreated       OutboxEventType = "listing_created"
	EventListingWithdrawn     OutboxEventType = "listing_withdrawn"
	EventListingDeleted       OutboxEventType = "listing_deleted"
)

var validOutboxEventTypes = []OutboxEventType{
	EventTransactionCreated,
	EventTransactionCompleted,
	EventTransactionCancelled,
	EventReviewSubmitted,
	EventListingCreated,
	EventListingWithdrawn,
	EventListingDeleted,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason records why the relay gave up on an event.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts: transient publish failures exhausted the
	// retry budget.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable: the event can never be published as is,
	// for example an unknown event type or an undecodable payload.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	switch r {
	case OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable:
		return true
	}
	return false
}
