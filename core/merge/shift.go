package merge

import (
	"strconv"

	"github.com/FocuswithJustin/eafmerge/core/eaf"
	"github.com/FocuswithJustin/eafmerge/core/errors"
)

// Shift adds offsetMs to every aligned time slot of doc. Slots without a
// TIME_VALUE are left as they are.
func Shift(doc *eaf.Document, offsetMs int64) error {
	if offsetMs < 0 {
		return errors.NewValidation("offset", "negative offset "+strconv.FormatInt(offsetMs, 10))
	}
	if offsetMs == 0 {
		return nil
	}
	for _, s := range doc.TimeOrder() {
		if v, ok := s.Value(); ok {
			s.SetValue(v + offsetMs)
		}
	}
	return nil
}
