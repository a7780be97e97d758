// Package assessment runs timed, multi-section final tests: section
// sequencing, per-section answer buffering, forced submission on timeout
// and payload assembly for the Submitter.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/prepcoach/internal/content"
	"github.com/abhisek/prepcoach/internal/logger"
)

// Phase represents where the controller is in the test.
type Phase int

const (
	PhaseIntro      Phase = iota // Section introduction, before answering
	PhaseAnswering               // Answering the current section
	PhaseSubmitting              // Payload built, waiting for the Submitter
	PhaseSubmitted               // Submitter acknowledged
)

func (p Phase) String() string {
	switch p {
	case PhaseIntro:
		return "intro"
	case PhaseAnswering:
		return "answering"
	case PhaseSubmitting:
		return "submitting"
	case PhaseSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Controller drives one assessment session. All methods are safe for
// concurrent use; the clock expires from its own goroutine.
type Controller struct {
	mu sync.Mutex

	sessionID string
	stageID   string
	sections  []Section
	submitter Submitter
	clock     *Clock
	clockOpts []ClockOption
	log       *logger.Logger
	now       func() time.Time

	onSubmitted func(*Result)

	phase        Phase
	sectionIndex int
	questionIdx  int
	answers      map[content.QuestionType]map[string]string

	reason     SubmitReason
	submission *Submission
	inFlight   bool
	result     *Result
	err        error
	closed     bool

	// baseCtx is used for the forced submit fired by the clock.
	baseCtx context.Context
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithControllerLogger sets the logger.
func WithControllerLogger(l *logger.Logger) ControllerOption {
	return func(c *Controller) { c.log = l }
}

// WithOnSubmitted registers a callback run after a successful submission,
// outside the controller's lock.
func WithOnSubmitted(fn func(*Result)) ControllerOption {
	return func(c *Controller) { c.onSubmitted = fn }
}

// WithClockOptions passes options to the session clock.
func WithClockOptions(opts ...ClockOption) ControllerOption {
	return func(c *Controller) { c.clockOpts = append(c.clockOpts, opts...) }
}

// WithNow overrides the time source used to stamp submissions.
func WithNow(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// NewController creates a session in PhaseIntro on the first section. The
// clock does not run until Start. A non-positive duration uses the default
// final test duration.
func NewController(stageID string, questions []content.Question, duration time.Duration, sub Submitter, opts ...ControllerOption) (*Controller, error) {
	if sub == nil {
		return nil, errors.New("assessment: nil submitter")
	}
	sections := BuildSections(questions)
	if len(sections) == 0 {
		return nil, errors.New("assessment: no questions")
	}
	if duration <= 0 {
		duration = content.DefaultFinalTestDuration
	}

	c := &Controller{
		sessionID: uuid.New().String(),
		stageID:   stageID,
		sections:  sections,
		submitter: sub,
		now:       time.Now,
		phase:     PhaseIntro,
		answers:   make(map[content.QuestionType]map[string]string, len(sections)),
		baseCtx:   context.Background(),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = logger.OrNop(c.log).With("component", "assessment", "session_id", c.sessionID, "stage_id", stageID)
	c.clock = NewClock(duration, c.expire, c.clockOpts...)
	return c, nil
}

// Start runs the countdown. A forced submit on expiry uses ctx; cancelling
// ctx stops the clock.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()
	c.clock.Start(ctx)
	c.log.Info("assessment started", "sections", len(c.sections), "seconds", c.clock.Remaining())
}

// Tick advances the countdown by one second. Start calls it once per
// second; callers driving their own timer may call it directly.
func (c *Controller) Tick() int {
	return c.clock.Tick()
}

// Continue leaves the section intro and starts answering.
func (c *Controller) Continue() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkPhaseLocked("continue", PhaseIntro); err != nil {
		return err
	}
	c.phase = PhaseAnswering
	c.questionIdx = 0
	return nil
}

// Next moves to the next question in the section. It reports false when
// already on the last question.
func (c *Controller) Next() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkPhaseLocked("next", PhaseAnswering); err != nil {
		return false, err
	}
	if c.questionIdx >= len(c.sections[c.sectionIndex].Questions)-1 {
		return false, nil
	}
	c.questionIdx++
	return true, nil
}

// Back moves to the previous question in the section. It reports false
// when already on the first question.
func (c *Controller) Back() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkPhaseLocked("back", PhaseAnswering); err != nil {
		return false, err
	}
	if c.questionIdx == 0 {
		return false, nil
	}
	c.questionIdx--
	return true, nil
}

// SelectAnswer buffers the answer for one item of the current section. An
// empty answer clears it.
func (c *Controller) SelectAnswer(questionID, itemID, answer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkPhaseLocked("select answer", PhaseAnswering); err != nil {
		return err
	}
	sec := c.sections[c.sectionIndex]
	if !sec.hasItem(questionID, itemID) {
		return fmt.Errorf("%w: %s/%s in section %s", ErrUnknownItem, questionID, itemID, sec.Type)
	}
	buf := c.answers[sec.Type]
	if buf == nil {
		buf = make(map[string]string)
		c.answers[sec.Type] = buf
	}
	if answer == "" {
		delete(buf, itemID)
		return nil
	}
	buf[itemID] = answer
	return nil
}

// SubmitSection closes the current section. It moves to the next section's
// intro, or submits the test after the last section.
func (c *Controller) SubmitSection(ctx context.Context) error {
	c.mu.Lock()
	if err := c.checkPhaseLocked("submit section", PhaseAnswering); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.sectionIndex < len(c.sections)-1 {
		c.sectionIndex++
		c.questionIdx = 0
		c.phase = PhaseIntro
		c.mu.Unlock()
		return nil
	}
	sub := c.beginSubmitLocked(ReasonVoluntary)
	c.mu.Unlock()
	return c.send(ctx, sub)
}

// SubmitAll submits the whole test from any section.
func (c *Controller) SubmitAll(ctx context.Context) error {
	c.mu.Lock()
	if err := c.checkPhaseLocked("submit all", PhaseIntro, PhaseAnswering); err != nil {
		c.mu.Unlock()
		return err
	}
	sub := c.beginSubmitLocked(ReasonVoluntary)
	c.mu.Unlock()
	return c.send(ctx, sub)
}

// Retry resends a submission that previously failed.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	if err := c.checkPhaseLocked("retry", PhaseSubmitting); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.inFlight || c.err == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: retry while a submission is pending", ErrWrongPhase)
	}
	c.inFlight = true
	sub := c.submission
	c.mu.Unlock()
	return c.send(ctx, sub)
}

// Close tears the session down and stops the clock. Later actions return
// ErrClosed and a pending expiry never fires.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.clock.Stop()
	if c.phase != PhaseSubmitted {
		c.log.Info("assessment abandoned", "phase", c.phase)
	}
}

// expire is the clock's callback. The forced submit cannot be refused: it
// takes whatever answers are buffered.
func (c *Controller) expire() {
	c.mu.Lock()
	if c.closed || (c.phase != PhaseIntro && c.phase != PhaseAnswering) {
		c.mu.Unlock()
		return
	}
	sub := c.beginSubmitLocked(ReasonTimeout)
	ctx := c.baseCtx
	c.mu.Unlock()

	c.log.Info("time expired, forcing submission")
	_ = c.send(ctx, sub)
}

// beginSubmitLocked enters PhaseSubmitting, stops the clock and assembles
// the payload.
func (c *Controller) beginSubmitLocked(reason SubmitReason) *Submission {
	c.phase = PhaseSubmitting
	c.reason = reason
	c.clock.Stop()
	c.inFlight = true
	c.err = nil
	c.submission = &Submission{
		SessionID:   c.sessionID,
		StageID:     c.stageID,
		Reason:      reason,
		Sections:    assemble(c.sections, c.answers),
		SubmittedAt: c.now().UTC(),
	}
	return c.submission
}

// send hands the payload to the Submitter without holding the lock.
func (c *Controller) send(ctx context.Context, sub *Submission) error {
	res, err := c.submitter.SubmitAssessment(ctx, sub)

	c.mu.Lock()
	c.inFlight = false
	if err != nil {
		c.err = &SubmitError{Reason: sub.Reason, Err: err}
		serr := c.err
		c.mu.Unlock()
		c.log.Warn("assessment submission failed", "reason", sub.Reason, "error", err)
		return serr
	}
	c.phase = PhaseSubmitted
	c.result = res
	c.err = nil
	cb := c.onSubmitted
	c.mu.Unlock()

	c.log.Info("assessment submitted", "reason", sub.Reason, "score", res.Score, "passed", res.Passed)
	if cb != nil {
		cb(res)
	}
	return nil
}

func (c *Controller) checkPhaseLocked(action string, allowed ...Phase) error {
	if c.closed {
		return ErrClosed
	}
	for _, p := range allowed {
		if c.phase == p {
			return nil
		}
	}
	return fmt.Errorf("%w: %s during %s", ErrWrongPhase, action, c.phase)
}

// SessionID returns the session's unique id.
func (c *Controller) SessionID() string { return c.sessionID }

// StageID returns the stage under test.
func (c *Controller) StageID() string { return c.stageID }

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// RemainingSeconds returns the seconds left on the clock.
func (c *Controller) RemainingSeconds() int {
	return c.clock.Remaining()
}

// Sections returns the section layout.
func (c *Controller) Sections() []Section {
	return c.sections
}

// CurrentSection returns the active section and its index.
func (c *Controller) CurrentSection() (Section, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sections[c.sectionIndex], c.sectionIndex
}

// CurrentQuestion returns the question being answered and its index within
// the section.
func (c *Controller) CurrentQuestion() (content.Question, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sections[c.sectionIndex].Questions[c.questionIdx], c.questionIdx
}

// Answer returns the buffered answer for an item of the current section.
func (c *Controller) Answer(itemID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answers[c.sections[c.sectionIndex].Type][itemID]
}

// Answered returns how many items have a buffered answer, out of all items.
func (c *Controller) Answered() (answered, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.sections {
		total += s.ItemCount()
		answered += len(c.answers[s.Type])
	}
	return answered, total
}

// Reason returns why the test was submitted; empty before submission.
func (c *Controller) Reason() SubmitReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Submission returns the assembled payload, or nil before submission.
func (c *Controller) Submission() *Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submission
}

// Result returns the graded result once submitted.
func (c *Controller) Result() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Err returns the last submission error, cleared by a successful retry.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
