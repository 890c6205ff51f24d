package store

import (
	"encoding/binary"
	"time"
)

// Local Store keys are flat byte strings under a small set of namespaces,
// the same "everything is bytes under a sorted key space" approach the
// teacher uses for chain data. Namespaces are single ASCII words so prefix
// scans stay readable in debug output.
const (
	nsUser        = "user"
	nsAccount     = "account"
	nsPot         = "pot"
	nsPotByID     = "pot_by_id"
	nsCategory    = "category"
	nsTxn         = "txn"
	nsTxnByID     = "txn_by_id"
	nsBillsTxn    = "bills_txn"
	nsRule        = "rule"
	nsRuleByID    = "rule_by_id"
	nsIntent      = "intent"
	sep      byte = 0x00
)

func k(parts ...string) []byte {
	out := make([]byte, 0, 64)
	for i, p := range parts {
		if i > 0 {
			out = append(out, sep)
		}
		out = append(out, p...)
	}
	return out
}

// timeKey encodes t as 8 big-endian bytes so lexicographic byte order
// matches chronological order, letting pebble's native iteration order
// serve "ordered by created" queries without an in-memory sort.
func timeKey(t time.Time) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(t.UTC().UnixNano()))
	return b
}

func keyUser(userID string) []byte { return k(nsUser, userID) }

func keyAccount(userID, accountID string) []byte { return k(nsAccount, userID, accountID) }

func accountPrefix(userID string) []byte { return k(nsAccount, userID, "") }

func keyPot(userID, accountID, potID string) []byte { return k(nsPot, userID, accountID, potID) }

func potPrefix(userID, accountID string) []byte { return k(nsPot, userID, accountID, "") }

func keyPotByID(potID string) []byte { return k(nsPotByID, potID) }

func keyCategory(userID, potID, category string) []byte {
	return k(nsCategory, userID, potID, category)
}

func categoryPotPrefix(userID, potID string) []byte { return k(nsCategory, userID, potID, "") }

func categoryUserPrefix(userID string) []byte { return k(nsCategory, userID, "") }

// keyTxn composes account + created + id so the default forward iteration
// order is exactly (created asc, id asc) and reverse iteration gives
// (created desc, id desc), matching the cursor semantics in spec.md §4.2.
func keyTxn(userID, accountID string, created time.Time, id string) []byte {
	return append(append(k(nsTxn, userID, accountID, ""), timeKey(created)...), append([]byte{sep}, id...)...)
}

func txnAccountPrefix(userID, accountID string) []byte { return k(nsTxn, userID, accountID, "") }

func keyTxnByID(userID, txnID string) []byte { return k(nsTxnByID, userID, txnID) }

func keyBillsTxn(userID, potID string, created time.Time, txnID string) []byte {
	return append(append(k(nsBillsTxn, userID, potID, ""), timeKey(created)...), append([]byte{sep}, txnID...)...)
}

func billsTxnPotPrefix(userID, potID string) []byte { return k(nsBillsTxn, userID, potID, "") }

func keyRule(userID, ruleID string) []byte { return k(nsRule, userID, ruleID) }

func rulePrefix(userID string) []byte { return k(nsRule, userID, "") }

func keyRuleByID(ruleID string) []byte { return k(nsRuleByID, ruleID) }

func keyIntent(userID, intentID string) []byte { return k(nsIntent, userID, intentID) }

func intentPrefix(userID string) []byte { return k(nsIntent, userID, "") }
