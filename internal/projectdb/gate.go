package projectdb

import (
	"time"

	"projectdb-go/internal/envelope"
)

// CheckConflict is the optimistic-concurrency gate. Backends call it with
// the stored date of an existing item before updating it. The write may
// proceed when overwrite is set, when the client sent no date, or when
// the stored date is not newer than the client's.
func CheckConflict(it *envelope.Item, stored time.Time, opts SaveOptions) error {
	if opts.Overwrite || opts.ClientDate.IsZero() {
		return nil
	}
	if !stored.UTC().After(opts.ClientDate.UTC()) {
		return nil
	}
	return Errorf(KindConflict,
		"the %s item %q could not be saved: item of type %q with uuid %q has been modified in the database (%s) after its last retrieval by the client (%s)",
		it.Type, it.SimpleName, it.Type, it.UUID,
		envelope.FormatDate(stored), envelope.FormatDate(opts.ClientDate))
}
