// Package eventlog moves committed ledger events out of the outbox to their
// consumers, in log order and at least once.
package eventlog

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"receiptledger/internal/ledger/models"
	dErrors "receiptledger/pkg/domain-errors"
)

// Header names carried on every published record.
const (
	HeaderKind     = "event-kind"
	HeaderSequence = "event-sequence"
)

// Encode renders ev as the JSON wire form.
func Encode(ev *models.Event) ([]byte, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event %d: %w", ev.Sequence, err)
	}
	return raw, nil
}

// Decode parses the JSON wire form. Malformed payloads and events without an
// id, kind or sequence are reported as bad_request.
func Decode(raw []byte) (*models.Event, error) {
	var ev models.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed event payload")
	}
	switch {
	case ev.Sequence == 0:
		return nil, dErrors.New(dErrors.CodeBadRequest, "event has no sequence")
	case ev.Kind == "":
		return nil, dErrors.New(dErrors.CodeBadRequest, "event has no kind")
	case ev.ID == uuid.Nil:
		return nil, dErrors.New(dErrors.CodeBadRequest, "event has no id")
	}
	return &ev, nil
}

func sequenceHeader(seq uint64) string {
	return strconv.FormatUint(seq, 10)
}
