package format

import (
	"errors"
	"log"
)

// CorruptionLog observes corruption events. The codecs stay pure and only
// return typed errors; scanners and stores report each corrupt region
// through a sink so every event is logged exactly once with the record kind
// and the violated condition.
type CorruptionLog interface {
	Corruption(record, detail string)
}

// NopCorruptionLog discards events.
type NopCorruptionLog struct{}

// Corruption implements CorruptionLog.
func (NopCorruptionLog) Corruption(string, string) {}

// StdCorruptionLog writes one line per event through the standard logger.
type StdCorruptionLog struct{}

// Corruption implements CorruptionLog.
func (StdCorruptionLog) Corruption(record, detail string) {
	log.Printf("corruption detected record=%q detail=%q", record, detail)
}

// CorruptionDetail extracts the record kind and condition from a codec
// error for sink reporting. Non-format errors report as a stream failure.
func CorruptionDetail(err error) (record, detail string) {
	var fe *FormatError
	if errors.As(err, &fe) {
		return fe.Record, fe.Msg
	}
	return "stream", err.Error()
}
