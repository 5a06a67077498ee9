package admin

import (
	"github.com/koseken/game-trading/internal/transactions"
	"github.com/koseken/game-trading/internal/users"
)

// RecentTransactionsLimit is how many transactions the dashboard shows.
const RecentTransactionsLimit = 10

type StatsDTO struct {
	Users              int64                         `json:"users"`
	Listings           int64                         `json:"listings"`
	Transactions       int64                         `json:"transactions"`
	TransactionsToday  int64                         `json:"transactions_today"`
	RecentTransactions []transactions.TransactionDTO `json:"recent_transactions"`
}

type UserList struct {
	Items []users.UserDTO `json:"items"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
	Total int64           `json:"total"`
}
