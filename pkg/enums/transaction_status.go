package enums

import "fmt"

// TransactionStatus tracks one buyer's negotiation over one listing.
type TransactionStatus string

const (
	// TransactionStatusPending is reserved for multi-step negotiation and is
	// never produced by the create flow.
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusInProgress TransactionStatus = "in_progress"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusCancelled  TransactionStatus = "cancelled"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusInProgress,
	TransactionStatusCompleted,
	TransactionStatusCancelled,
}

// OpenTransactionStatuses lists the statuses that hold a listing reservation.
var OpenTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusInProgress,
}

var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending:    {TransactionStatusInProgress, TransactionStatusCancelled},
	TransactionStatusInProgress: {TransactionStatusCompleted, TransactionStatusCancelled},
}

// String implements fmt.Stringer.
func (s TransactionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TransactionStatus.
func (s TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsOpen reports whether the transaction still holds its listing.
func (s TransactionStatus) IsOpen() bool {
	return s == TransactionStatusPending || s == TransactionStatusInProgress
}

// IsTerminal reports whether the transaction is immutable.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusCancelled
}

// CanTransition reports whether from → to is a legal transaction move.
func (s TransactionStatus) CanTransition(to TransactionStatus) bool {
	for _, next := range transactionTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseTransactionStatus converts raw input into TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}

// TransactionRole narrows transaction lists to one side of the trade.
type TransactionRole string

const (
	TransactionRoleAny    TransactionRole = ""
	TransactionRoleBuyer  TransactionRole = "buyer"
	TransactionRoleSeller TransactionRole = "seller"
)

// ParseTransactionRole accepts buyer, seller, or an empty value meaning both.
func ParseTransactionRole(value string) (TransactionRole, error) {
	switch TransactionRole(value) {
	case TransactionRoleAny, TransactionRoleBuyer, TransactionRoleSeller:
		return TransactionRole(value), nil
	default:
		return "", fmt.Errorf("invalid transaction role %q", value)
	}
}
