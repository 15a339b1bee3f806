package tqldb

// TxState is the connection's transaction-state enum. It only ever moves
// None -> Active -> None; a double-begin or an empty commit/rollback must
// error without touching SQLite at all.
type TxState int

const (
	TxNone TxState = iota
	TxActive
)

func (s TxState) String() string {
	if s == TxActive {
		return "Active"
	}
	return "None"
}
