package mapping

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"claimpoint/internal"
	"claimpoint/internal/logging"
	"claimpoint/internal/sheets"
)

// Phase is the mapping dialog state.
type Phase int

const (
	PhaseClosed Phase = iota
	PhaseMapping
	PhaseReview
)

func (p Phase) String() string {
	switch p {
	case PhaseClosed:
		return "closed"
	case PhaseMapping:
		return "mapping"
	case PhaseReview:
		return "review"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

type Side string

const (
	SideSource Side = "source"
	SideTarget Side = "target"
)

type action string

const (
	actionOpen     action = "open"
	actionComplete action = "complete"
	actionReopen   action = "reopen"
	actionClose    action = "close"
)

var phaseTransitions = map[Phase]map[action]Phase{
	PhaseClosed:  {actionOpen: PhaseMapping, actionClose: PhaseClosed},
	PhaseMapping: {actionOpen: PhaseMapping, actionComplete: PhaseReview, actionClose: PhaseClosed},
	PhaseReview:  {actionOpen: PhaseMapping, actionReopen: PhaseMapping, actionClose: PhaseClosed},
}

var ErrInvalidTransition = errors.New("invalid mapping dialog transition")

// DuplicateTarget reports a canonical field that more than one source column maps to.
type DuplicateTarget struct {
	Sheet   string
	Target  string
	Sources []string
}

// Session tracks the source-to-canonical pairings made while one workbook is being mapped.
type Session struct {
	mu sync.Mutex

	phase       Phase
	workbook    *sheets.Workbook
	activeSheet string
	pending     string
	hasPending  bool
	columns     map[string][]string
	mappings    SheetMappings

	fields      []string
	onDuplicate func(DuplicateTarget)
	logger      *zap.Logger
}

func NewSession(logger *zap.Logger) *Session {
	fields := make([]string, 0, len(internal.CanonicalFields))
	for _, f := range internal.CanonicalFields {
		fields = append(fields, string(f))
	}
	return &Session{
		phase:  PhaseClosed,
		fields: fields,
		logger: logging.OrNop(logger),
	}
}

// OnDuplicateTarget registers a hook fired whenever a commit leaves a canonical field
// mapped from more than one source column. The commit itself is never refused.
// fn runs with the session locked and must not call back into it.
func (s *Session) OnDuplicateTarget(fn func(DuplicateTarget)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDuplicate = fn
}

func (s *Session) transition(a action) error {
	next, ok := phaseTransitions[s.phase][a]
	if !ok {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, a, s.phase)
	}
	s.phase = next
	return nil
}

// Open starts mapping a freshly decoded workbook, discarding any previous state. The first
// sheet becomes active; a header extraction failure is returned but leaves the session open.
func (s *Session) Open(wb *sheets.Workbook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if wb == nil || len(wb.SheetNames) == 0 {
		return internal.NewValidationError("workbook", "no sheets to map")
	}
	if err := s.transition(actionOpen); err != nil {
		return err
	}

	s.workbook = wb
	s.columns = map[string][]string{}
	s.mappings = SheetMappings{}
	for _, name := range wb.SheetNames {
		s.mappings[name] = &ColumnMapping{}
	}
	s.pending, s.hasPending = "", false
	return s.activate(wb.SheetNames[0])
}

// SelectSheet switches the active sheet, extracting its columns on first use.
func (s *Session) SelectSheet(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseClosed {
		return fmt.Errorf("%w: select sheet while closed", ErrInvalidTransition)
	}
	if !s.workbook.HasSheet(name) {
		return fmt.Errorf("%w: %s", sheets.ErrUnknownSheet, name)
	}
	s.pending, s.hasPending = "", false
	return s.activate(name)
}

func (s *Session) activate(name string) error {
	s.activeSheet = name
	if _, cached := s.columns[name]; cached {
		return nil
	}
	columns, err := sheets.ExtractColumns(s.workbook, name)
	if err != nil {
		s.logger.Warn("column extraction failed", zap.String("sheet", name), zap.Error(err))
		return err
	}
	s.columns[name] = columns
	s.logger.Debug("columns extracted", zap.String("sheet", name), zap.Int("columns", len(columns)))
	return nil
}

// Pick handles one click on either list. A source click sets (or replaces) the pending
// source. A target click commits pending→target for the active sheet and clears pending;
// without a pending source it does nothing. committed reports whether a pair was written.
func (s *Session) Pick(column string, side Side) (committed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseMapping {
		return false, fmt.Errorf("%w: pick while %s", ErrInvalidTransition, s.phase)
	}

	switch side {
	case SideSource:
		if !slices.Contains(s.columns[s.activeSheet], column) {
			return false, internal.NewValidationError("source", fmt.Sprintf("unknown column %q in sheet %q", column, s.activeSheet))
		}
		s.pending, s.hasPending = column, true
		return false, nil
	case SideTarget:
		if !slices.Contains(s.fields, column) {
			return false, internal.NewValidationError("target", fmt.Sprintf("unknown canonical field %q", column))
		}
		if !s.hasPending {
			return false, nil
		}
		s.commit(s.activeSheet, s.pending, column)
		s.pending, s.hasPending = "", false
		return true, nil
	default:
		return false, internal.NewValidationError("side", fmt.Sprintf("unknown side %q", side))
	}
}

func (s *Session) commit(sheet, source, target string) {
	m := s.mappings[sheet]
	if m == nil {
		m = &ColumnMapping{}
		s.mappings[sheet] = m
	}
	m.Set(source, target)

	sources := m.SourcesFor(target)
	if len(sources) > 1 {
		s.logger.Warn("canonical field mapped more than once",
			zap.String("sheet", sheet), zap.String("target", target), zap.Strings("sources", sources))
		if s.onDuplicate != nil {
			s.onDuplicate(DuplicateTarget{Sheet: sheet, Target: target, Sources: sources})
		}
	}
}

// Complete moves the dialog to review; partial mappings are allowed.
func (s *Session) Complete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(actionComplete)
}

// Reopen returns from review to mapping with all pairs kept.
func (s *Session) Reopen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(actionReopen)
}

// Close discards the workbook and every pair.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.transition(actionClose)
	s.workbook = nil
	s.activeSheet = ""
	s.pending, s.hasPending = "", false
	s.columns = nil
	s.mappings = nil
}

// Finalize returns a deep copy of every sheet's mapping.
func (s *Session) Finalize() SheetMappings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mappings.Clone()
}

// DuplicateTargets lists canonical fields mapped from more than one source in sheet.
func (s *Session) DuplicateTargets(sheet string) []DuplicateTarget {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.mappings[sheet]
	var out []DuplicateTarget
	seen := map[string]bool{}
	for _, p := range m.Pairs() {
		if seen[p.Target] {
			continue
		}
		seen[p.Target] = true
		if sources := m.SourcesFor(p.Target); len(sources) > 1 {
			out = append(out, DuplicateTarget{Sheet: sheet, Target: p.Target, Sources: sources})
		}
	}
	return out
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) ActiveSheet() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeSheet
}

func (s *Session) SheetNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workbook == nil {
		return nil
	}
	return slices.Clone(s.workbook.SheetNames)
}

// Columns are the active sheet's source labels.
func (s *Session) Columns() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.columns[s.activeSheet])
}

func (s *Session) Fields() []string {
	return slices.Clone(s.fields)
}

func (s *Session) Pending() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, s.hasPending
}

// Mapping returns a copy of one sheet's pairs.
func (s *Session) Mapping(sheet string) *ColumnMapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mappings[sheet].Clone()
}
