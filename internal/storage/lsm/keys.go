package lsm

import "fmt"

// Key layout:
//
//	account/<number>                 account row
//	tx/<sequence>                    transaction leg
//	acctx/<number>/<sequence>        copy of the leg, per account
//	customer/<id>                    customer row with back-references
//	meta/sequence                    last assigned sequence
//
// Numeric parts are zero padded so byte order is numeric order.
const (
	accountPrefix  = "account/"
	txPrefix       = "tx/"
	historyPrefix  = "acctx/"
	customerPrefix = "customer/"
)

var sequenceKey = []byte("meta/sequence")

func accountKey(number string) []byte { return []byte(accountPrefix + number) }

func txKey(seq int64) []byte { return []byte(fmt.Sprintf("%s%020d", txPrefix, seq)) }

func historyKey(number string, seq int64) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d", historyPrefix, number, seq))
}

func historyPrefixFor(number string) []byte { return []byte(historyPrefix + number + "/") }

func customerKey(id int64) []byte { return []byte(fmt.Sprintf("%s%020d", customerPrefix, id)) }

// upperBound is the first key after every key starting with prefix.
func upperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
