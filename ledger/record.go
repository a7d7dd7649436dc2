package ledger

import (
	"encoding/binary"
	"errors"
	"time"
)

const recordVersion = 1

// maxAccountIDLen bounds the length-prefixed account ID field.
const maxAccountIDLen = 255

// ErrCorruptRecord is returned when a stored ledger entry cannot be decoded.
var ErrCorruptRecord = errors.New("ledger record corrupt")

// Record is one ledger entry: the account a refresh token was minted for
// and the instant its signed lifetime ends.
type Record struct {
	AccountID string
	ExpiresAt time.Time
}

// encodeRecord serializes a record as:
//
//	[1]version [8]expiresAtUnix(be) [1]idLen [idLen]accountID
func encodeRecord(r Record) ([]byte, error) {
	if len(r.AccountID) == 0 || len(r.AccountID) > maxAccountIDLen {
		return nil, errors.New("invalid account id length")
	}

	buf := make([]byte, 0, 10+len(r.AccountID))
	buf = append(buf, recordVersion)
	buf = binary.BigEndian.AppendUint64(buf, uint64(r.ExpiresAt.Unix()))
	buf = append(buf, byte(len(r.AccountID)))
	buf = append(buf, r.AccountID...)
	return buf, nil
}

func decodeRecord(data []byte) (Record, error) {
	if len(data) < 11 {
		return Record{}, ErrCorruptRecord
	}
	if data[0] != recordVersion {
		return Record{}, ErrCorruptRecord
	}

	expires := int64(binary.BigEndian.Uint64(data[1:9]))
	idLen := int(data[9])
	if idLen == 0 || len(data) != 10+idLen {
		return Record{}, ErrCorruptRecord
	}

	return Record{
		AccountID: string(data[10 : 10+idLen]),
		ExpiresAt: time.Unix(expires, 0).UTC(),
	}, nil
}
