package models

import (
	"math/rand"
	"strconv"
	"time"
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = idAlphabet[rand.Intn(len(idAlphabet))]
	}
	return string(b)
}

// NewSyncItemID returns a queue-item id of the form sync_<unixmilli>_<suffix>.
// The millisecond prefix keeps ids roughly sortable by creation time.
func NewSyncItemID() string {
	return "sync_" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + randomSuffix(9)
}

// NewTransactionID returns a transaction id of the form txn_<unixmilli>_<suffix>.
// It doubles as the human-facing payment reference.
func NewTransactionID() string {
	return "txn_" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + randomSuffix(9)
}

// NewKYCDocumentID returns a document id of the form doc_<unixmilli>_<suffix>.
func NewKYCDocumentID() string {
	return "doc_" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + randomSuffix(9)
}
