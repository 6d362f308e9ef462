package intake

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"claimpoint/internal"
	"claimpoint/internal/logging"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateSubmissionValidated
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateSubmissionValidated:
		return "submission-validated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type event string

const (
	eventStart     event = "start"
	eventEdit      event = "edit"
	eventValidated event = "validated"
	eventSubmitted event = "submitted"
	eventFailed    event = "failed"
	eventCancel    event = "cancel"
)

var transitions = map[State]map[event]State{
	StateClosed: {
		eventStart:  StateOpen,
		eventCancel: StateClosed,
	},
	StateOpen: {
		eventStart:     StateOpen,
		eventEdit:      StateOpen,
		eventValidated: StateSubmissionValidated,
		eventCancel:    StateClosed,
	},
	StateSubmissionValidated: {
		eventSubmitted: StateClosed,
		eventFailed:    StateOpen,
		eventCancel:    StateClosed,
	},
}

// Form is a snapshot of the intake fields.
type Form struct {
	Policyholder       string
	ClaimAdministrator string
	TemplateName       string
	PaidFrom           *time.Time
	PaidTo             *time.Time
	ReceivedDate       *time.Time
	Description        string
	File               *internal.FileRef
}

// Controller drives the claim-file intake form.
type Controller struct {
	mu sync.Mutex

	state State
	gen   uint64
	form  Form

	policies []internal.Policy
	admins   []string

	submitter Submitter
	logger    *zap.Logger
}

func NewController(submitter Submitter, logger *zap.Logger) *Controller {
	return &Controller{
		state:     StateClosed,
		submitter: submitter,
		logger:    logging.OrNop(logger).Named("intake"),
	}
}

func (c *Controller) fire(e event) error {
	next, ok := transitions[c.state][e]
	if !ok {
		return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, e, c.state)
	}
	c.state = next
	return nil
}

// LoadPolicies replaces the policy reference data from the policies table.
func (c *Controller) LoadPolicies(ctx context.Context, store internal.RecordStore) error {
	policies, err := FetchPolicies(ctx, store)
	if err != nil {
		c.logger.Error("policy load failed", zap.Error(err))
		return err
	}
	c.SetPolicies(policies)
	c.logger.Debug("policies loaded", zap.Int("count", len(policies)))
	return nil
}

func (c *Controller) SetPolicies(policies []internal.Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policies = slices.Clone(policies)
}

// Policyholders lists the selectable policyholder names.
func (c *Controller) Policyholders() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.policies))
	for _, p := range c.policies {
		names = append(names, p.Name)
	}
	return names
}

// Start opens a fresh form. Starting an open form clears it.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fire(eventStart); err != nil {
		return err
	}
	c.reset()
	return nil
}

// Cancel closes the form and drops its fields. Nothing is written anywhere.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.fire(eventCancel)
	c.reset()
}

func (c *Controller) reset() {
	c.form = Form{}
	c.admins = nil
	c.gen++
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Generation changes whenever the form is started, cancelled or submitted. Async work
// captures it before suspending and hands it back to Apply.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *Controller) Form() Form {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.form
	if f.File != nil {
		file := *f.File
		f.File = &file
	}
	return f
}

// AdministratorOptions are the administrators of the selected policyholder.
func (c *Controller) AdministratorOptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.admins)
}

// Edit is one field change, run with the controller locked.
type Edit func(c *Controller) error

// Policyholder selects a policyholder, recomputes the administrator options and clears the
// selected administrator.
func Policyholder(name string) Edit {
	return func(c *Controller) error {
		name = strings.TrimSpace(name)
		if name == "" {
			c.form.Policyholder = ""
			c.form.ClaimAdministrator = ""
			c.admins = nil
			return nil
		}
		idx := slices.IndexFunc(c.policies, func(p internal.Policy) bool { return p.Name == name })
		if idx < 0 {
			return internal.NewValidationError("policyholder", fmt.Sprintf("unknown policyholder %q", name))
		}
		c.form.Policyholder = name
		c.form.ClaimAdministrator = ""
		c.admins = slices.Clone(c.policies[idx].Administrators)
		return nil
	}
}

// Administrator selects one of the current administrator options.
func Administrator(name string) Edit {
	return func(c *Controller) error {
		if name != "" && !slices.Contains(c.admins, name) {
			return internal.NewValidationError("claim_administrator",
				fmt.Sprintf("%q is not an administrator of %q", name, c.form.Policyholder))
		}
		c.form.ClaimAdministrator = name
		return nil
	}
}

func Template(name string) Edit {
	return func(c *Controller) error {
		c.form.TemplateName = strings.TrimSpace(name)
		return nil
	}
}

func PaidFrom(t time.Time) Edit {
	return func(c *Controller) error {
		c.form.PaidFrom = dateOnly(t)
		return nil
	}
}

func PaidTo(t time.Time) Edit {
	return func(c *Controller) error {
		c.form.PaidTo = dateOnly(t)
		return nil
	}
}

// ReceivedDate sets the optional received date; nil clears it.
func ReceivedDate(t *time.Time) Edit {
	return func(c *Controller) error {
		if t == nil {
			c.form.ReceivedDate = nil
			return nil
		}
		c.form.ReceivedDate = dateOnly(*t)
		return nil
	}
}

func Description(text string) Edit {
	return func(c *Controller) error {
		c.form.Description = text
		return nil
	}
}

// File sets the uploaded file reference; a blank name clears it.
func File(ref internal.FileRef) Edit {
	return func(c *Controller) error {
		if strings.TrimSpace(ref.Name) == "" {
			c.form.File = nil
			return nil
		}
		c.form.File = &ref
		return nil
	}
}

func dateOnly(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// Edit applies edits in order while the form is open. It stops at the first failing edit;
// earlier edits stay applied.
func (c *Controller) Edit(edits ...Edit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.edit(edits)
}

// Apply is Edit for results of async work started at generation gen. It returns ErrStale
// without touching the form when the form has moved on.
func (c *Controller) Apply(gen uint64, edits ...Edit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		c.logger.Debug("dropping stale edit", zap.Uint64("generation", gen), zap.Uint64("current", c.gen))
		return ErrStale
	}
	return c.edit(edits)
}

func (c *Controller) edit(edits []Edit) error {
	if _, ok := transitions[c.state][eventEdit]; !ok {
		return fmt.Errorf("%w: edit while %s", ErrInvalidTransition, c.state)
	}
	for _, e := range edits {
		if err := e(c); err != nil {
			return err
		}
	}
	return c.fire(eventEdit)
}

func (c *Controller) SelectPolicyholder(name string) error {
	return c.Edit(Policyholder(name))
}

func (c *Controller) SelectAdministrator(name string) error {
	return c.Edit(Administrator(name))
}

func (c *Controller) SelectTemplate(name string) error {
	return c.Edit(Template(name))
}

func (c *Controller) SetPaidRange(from, to time.Time) error {
	return c.Edit(PaidFrom(from), PaidTo(to))
}

func (c *Controller) SetFile(ref internal.FileRef) error {
	return c.Edit(File(ref))
}

// validate checks required fields, then the paid date range.
func (c *Controller) validate() error {
	f := c.form
	var missing []string
	if f.Policyholder == "" {
		missing = append(missing, "policyholder")
	}
	if f.ClaimAdministrator == "" {
		missing = append(missing, "claim_administrator")
	}
	if f.TemplateName == "" {
		missing = append(missing, "template")
	}
	if f.PaidFrom == nil {
		missing = append(missing, "paid_from")
	}
	if f.PaidTo == nil {
		missing = append(missing, "paid_to")
	}
	if f.File == nil {
		missing = append(missing, "file")
	}
	if len(missing) > 0 {
		return &MissingFieldError{Fields: missing}
	}
	if f.PaidFrom.After(*f.PaidTo) {
		return &InvalidDateRangeError{From: *f.PaidFrom, To: *f.PaidTo}
	}
	return nil
}

// Upload validates the form and hands the batch to the submitter. On success the form
// closes; on a submitter failure it reopens with its fields intact.
func (c *Controller) Upload(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.state != StateOpen {
		state := c.state
		c.mu.Unlock()
		return "", fmt.Errorf("%w: upload while %s", ErrInvalidTransition, state)
	}
	if err := c.validate(); err != nil {
		c.mu.Unlock()
		return "", err
	}
	if c.submitter == nil {
		c.mu.Unlock()
		return "", fmt.Errorf("intake: no submitter configured")
	}
	_ = c.fire(eventValidated)
	gen := c.gen
	batch := c.batch()
	c.mu.Unlock()

	id, err := c.submitter.Submit(ctx, batch)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state != StateSubmissionValidated {
		c.logger.Warn("submission finished after the form moved on",
			zap.String("policyholder", batch.Policyholder), zap.Error(err))
		if err != nil {
			return "", internal.NewPersistenceError("submit", internal.TableClaimBatches, err)
		}
		return id, nil
	}
	if err != nil {
		_ = c.fire(eventFailed)
		c.logger.Error("claim batch submission failed", zap.String("policyholder", batch.Policyholder), zap.Error(err))
		return "", internal.NewPersistenceError("submit", internal.TableClaimBatches, err)
	}
	_ = c.fire(eventSubmitted)
	c.reset()
	c.logger.Info("claim batch submitted", zap.String("id", id), zap.String("template", batch.TemplateName))
	return id, nil
}

func (c *Controller) batch() internal.ClaimBatch {
	f := c.form
	b := internal.ClaimBatch{
		Policyholder:       f.Policyholder,
		ClaimAdministrator: f.ClaimAdministrator,
		TemplateName:       f.TemplateName,
		PaidFrom:           *f.PaidFrom,
		PaidTo:             *f.PaidTo,
		Description:        f.Description,
		File:               *f.File,
	}
	if f.ReceivedDate != nil {
		d := *f.ReceivedDate
		b.ReceivedDate = &d
	}
	return b
}
