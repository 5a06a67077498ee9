package enums

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition marks a status move that the transition tables do
// not allow.
var ErrIllegalTransition = errors.New("illegal status transition")

// CheckListingTransition returns an error wrapping ErrIllegalTransition when
// from → to is not a legal listing move.
func CheckListingTransition(from, to ListingStatus) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("listing %s -> %s: %w", from, to, ErrIllegalTransition)
	}
	return nil
}

// CheckTransactionTransition is CheckListingTransition for transactions.
func CheckTransactionTransition(from, to TransactionStatus) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("transaction %s -> %s: %w", from, to, ErrIllegalTransition)
	}
	return nil
}
