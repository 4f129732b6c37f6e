// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"fmt"
	"path/filepath"

	"github.com/pdiddy/citegraph/internal/timeline"
)

// Audit compares the raw payload log of a harvest directory with its
// checkpoint table. Payloads are appended before the table is persisted, so
// a consistent directory has at least one payload per completed work.
type Audit struct {
	Payloads  int
	Completed int
	Failed    int
	Shapes    map[timeline.Shape]int
}

// Missing returns how many completed works have no payload in the raw log.
func (a Audit) Missing() int {
	if a.Payloads >= a.Completed {
		return 0
	}
	return a.Completed - a.Payloads
}

// Consistent reports whether every completed work can have a payload.
func (a Audit) Consistent() bool { return a.Missing() == 0 }

// AuditDir reads the ledger and raw log in dir and classifies every
// payload by the timeline shape it carries.
func AuditDir(dir string) (Audit, error) {
	ledger, err := Load(dir)
	if err != nil {
		return Audit{}, err
	}
	a := Audit{Shapes: make(map[timeline.Shape]int)}
	a.Completed, a.Failed = ledger.Len()

	raw := NewRawLog(filepath.Join(dir, RawLogFile))
	err = raw.Each(func(_ int, payload []byte) error {
		_, shape := timeline.ExtractShape(payload, 0)
		a.Shapes[shape]++
		a.Payloads++
		return nil
	})
	if err != nil {
		return a, fmt.Errorf("auditing %s: %w", raw.Path(), err)
	}
	return a, nil
}
