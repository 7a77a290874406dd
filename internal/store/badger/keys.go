package badger

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Key prefixes. Index values hold a big-endian entity ID.
const (
	personPrefix        = "per:"
	personCNICPrefix    = "percnic:"
	personNamePrefix    = "pername:"
	facultyPrefix       = "fac:"
	facultyCodePrefix   = "faccode:"
	facultyPersonPrefix = "facper:"
	designationPrefix   = "des:"
	qualificationPrefix = "qual:"
	runPrefix           = "run:"
	auditPrefix         = "aud:"
	auditTimePrefix     = "audts:"

	personIDSeq        = "perseq"
	facultyIDSeq       = "facseq"
	designationIDSeq   = "desseq"
	qualificationIDSeq = "qualseq"
	auditIDSeq         = "audseq"
)

func idBytes(id int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

func bytesID(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("index value has %d bytes, want 8", len(b))
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func withID(prefix string, id int64) []byte {
	return append([]byte(prefix), idBytes(id)...)
}

func makePersonKey(id int64) []byte  { return withID(personPrefix, id) }
func makeFacultyKey(id int64) []byte { return withID(facultyPrefix, id) }

func makePersonCNICKey(indexed string) []byte {
	return []byte(personCNICPrefix + indexed)
}

func makeFacultyCodeKey(code string) []byte {
	return []byte(facultyCodePrefix + code)
}

func makeFacultyPersonKey(personID int64) []byte {
	return withID(facultyPersonPrefix, personID)
}

func makeDesignationKey(key string) []byte {
	return []byte(designationPrefix + key)
}

// makePartialPersonNameKey is the composite (name, date of birth) prefix.
// Names compare case-insensitively.
func makePartialPersonNameKey(first string, last pgtype.Text, dob pgtype.Date) []byte {
	l := "\x00"
	if last.Valid {
		l = strings.ToLower(last.String)
	}
	return []byte(fmt.Sprintf("%s%s\x1f%s\x1f%s\x1f", personNamePrefix, strings.ToLower(first), l, dob.Time.Format(time.DateOnly)))
}

func makePersonNameKey(first string, last pgtype.Text, dob pgtype.Date, id int64) []byte {
	return append(makePartialPersonNameKey(first, last, dob), idBytes(id)...)
}

func makePartialQualificationKey(personID int64) []byte {
	return withID(qualificationPrefix, personID)
}

func makeQualificationKey(personID, id int64) []byte {
	return append(makePartialQualificationKey(personID), idBytes(id)...)
}

// makeRunKey orders runs by start time.
func makeRunKey(startedAt time.Time, runID string) []byte {
	key := append([]byte(runPrefix), idBytes(startedAt.UnixMicro())...)
	return append(key, runID...)
}

func makePartialAuditKey(runID string) []byte {
	return []byte(auditPrefix + runID + ":")
}

func makeAuditKey(runID string, id int64) []byte {
	return append(makePartialAuditKey(runID), idBytes(id)...)
}

// makeAuditTimeKey indexes audit rows by creation time for retention.
// The value is the audit key.
func makeAuditTimeKey(createdAt time.Time, id int64) []byte {
	key := append([]byte(auditTimePrefix), idBytes(createdAt.UnixMicro())...)
	return append(key, idBytes(id)...)
}

func makePartialAuditTimeKey(before time.Time) []byte {
	return append([]byte(auditTimePrefix), idBytes(before.UnixMicro())...)
}
