// Package extract turns raw OCR scan text into structured medicine
// records. The pipeline is five pure stages: normalize, scan for
// candidates, classify, validate against the reference set, assemble.
// No stage touches the clock, does I/O, or logs; given the same input
// the package returns deeply equal output, so callers own identity and
// persistence concerns.
package extract

import (
	"fmt"

	"github.com/mediscan/mediscan/constants"
	"github.com/mediscan/mediscan/internal/common"
	"github.com/mediscan/mediscan/internal/entity"
	"github.com/mediscan/mediscan/internal/reference"
)

// Extractor runs the extraction pipeline with a fixed configuration and
// reference set. Safe for concurrent use.
type Extractor struct {
	cfg Config
	ref *reference.Set
}

// New builds an Extractor. Zero-value config fields fall back to
// defaults; a nil reference set falls back to the builtin one.
func New(cfg Config, ref *reference.Set) *Extractor {
	cfg.applyDefaults()
	if ref == nil {
		ref = reference.BuiltinSet()
	}
	return &Extractor{cfg: cfg, ref: ref}
}

// Result is the outcome of one extraction run. Dropped counts candidates
// and fields discarded below confidence floors or left unassignable.
type Result struct {
	Records []entity.MedicineRecord
	Dropped int
}

// Extract runs the full pipeline over one scan. Records come back in
// scan-unit order with zero IDs; the caller assigns identity.
func (e *Extractor) Extract(scan entity.RawScan) (*Result, error) {
	st, ok := constants.CanonicalizeScanType(string(scan.Type))
	if !ok {
		return nil, common.NewAppError("INVALID_SCAN_TYPE",
			fmt.Sprintf("unsupported scan type %q", scan.Type), common.ErrInvalidScanType)
	}
	scan.Type = st

	norm, err := NormalizeScan(scan)
	if err != nil {
		return nil, err
	}

	cands, droppedLow := ScanCandidates(norm, e.cfg)
	fields, droppedUnassigned := Classify(norm, cands, e.cfg)
	fields = Validate(fields, e.ref, e.cfg)

	records, err := Assemble(norm, fields, e.cfg)
	if err != nil {
		return nil, err
	}
	return &Result{
		Records: records,
		Dropped: droppedLow + droppedUnassigned,
	}, nil
}

// Config returns the effective configuration, defaults applied.
func (e *Extractor) Config() Config {
	return e.cfg
}
