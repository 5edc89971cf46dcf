// Package flow implements the question submission flow behind every user
// surface: relevance gate, audience phrasing, one call to the answer service
// and the display state that results.
//
// A Flow is driven by one event loop at a time and is not safe for
// concurrent use. The in-flight request is tracked with a busy flag, which
// rejects re-entrant submissions instead of serializing them.
package flow

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"tax-assistant/internal/domain"
	"tax-assistant/internal/relevance"
)

const (
	MsgEmptyInput       = "Please enter a question"
	MsgOffTopic         = "This appears to be a non-tax related question. Please ask a question about taxes, deductions, credits, audits, or other tax-related topics."
	MsgLoading          = "Processing your tax question..."
	MsgUnknownError     = "An unknown error occurred"
	MsgInitialNote      = "Please enter a tax-related question about deductions, credits, compliance, or other tax matters."
	MsgBusinessNote     = "Enter any business or client tax-related question to get started."
	MsgStudentNote      = "Enter any student or education-related tax question to get started."
	BusinessPlaceholder = "Enter your business tax-related question here..."
	StudentPlaceholder  = "Enter your student tax-related question here..."

	studentPrefix = "As a student, "
	errorPrefix   = "Error: "
)

// Answerer sends a finalized prompt to the answer service.
type Answerer interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Flow owns the question text, the audience mode and the display region.
type Flow struct {
	answerer Answerer
	logger   *slog.Logger
	observe  func(Display)

	question    string
	mode        domain.AudienceMode
	placeholder string
	display     Display
	busy        bool
}

type Option func(*Flow)

// WithMode preselects the audience mode without replacing the initial note.
func WithMode(mode domain.AudienceMode) Option {
	return func(f *Flow) {
		f.mode, f.placeholder = normalizeMode(mode)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Flow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithObserver registers fn to be called after every display change.
func WithObserver(fn func(Display)) Option {
	return func(f *Flow) {
		f.observe = fn
	}
}

// New returns a Flow in the initial instructional state.
func New(answerer Answerer, opts ...Option) *Flow {
	f := &Flow{
		answerer:    answerer,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		mode:        domain.AudienceBusiness,
		placeholder: BusinessPlaceholder,
		display:     Display{State: StateIdle, Category: CategoryNote, Text: MsgInitialNote},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Flow) Question() string            { return f.question }
func (f *Flow) Mode() domain.AudienceMode   { return f.mode }
func (f *Flow) Placeholder() string         { return f.placeholder }
func (f *Flow) Display() Display            { return f.display }
func (f *Flow) Busy() bool                  { return f.busy }
func (f *Flow) SetQuestion(question string) { f.question = question }

// ClassifyRelevance reports whether question is about taxes.
func ClassifyRelevance(question string) bool {
	return relevance.IsTaxRelated(question)
}

// BuildFinalPrompt prefixes student questions that do not already mention
// being a student.
func BuildFinalPrompt(question string, mode domain.AudienceMode) string {
	if mode == domain.AudienceStudent && !strings.Contains(strings.ToLower(question), "student") {
		return studentPrefix + question
	}
	return question
}

// Submit validates the current question and, if it passes, asks the answer
// service. Validation failures never reach the network.
func (f *Flow) Submit(ctx context.Context) (string, error) {
	if f.busy {
		return "", ErrBusy
	}

	question := strings.TrimSpace(f.question)
	if question == "" {
		f.setDisplay(Display{State: StateRejected, Category: CategoryAlert, Text: MsgEmptyInput})
		return "", &SubmissionError{Kind: EmptyInput, Message: MsgEmptyInput}
	}
	if !ClassifyRelevance(question) {
		f.setDisplay(Display{State: StateRejected, Category: CategoryError, Text: MsgOffTopic})
		return "", &SubmissionError{Kind: OffTopic, Message: MsgOffTopic}
	}

	prompt := BuildFinalPrompt(question, f.mode)

	f.busy = true
	defer func() { f.busy = false }()
	f.setDisplay(Display{State: StateAwaitingResponse, Category: CategoryLoading, Text: MsgLoading})

	answer, err := f.answerer.Ask(ctx, prompt)
	if err != nil {
		serr := classify(err)
		f.logger.WarnContext(ctx, "submission failed", "kind", serr.Kind.String(), "err", err)
		f.setDisplay(Display{State: StateError, Category: CategoryError, Text: errorPrefix + serr.Message})
		return "", serr
	}

	f.setDisplay(Display{State: StateSuccess, Category: CategorySuccess, Text: answer})
	return answer, nil
}

// Reset clears the question and the display region.
func (f *Flow) Reset() {
	f.question = ""
	f.setDisplay(Display{State: StateIdle})
}

// OnAudienceModeChange switches the mode, updates the placeholder and shows
// the mode's instructional note. Any value other than student selects
// business. The question text is left alone.
func (f *Flow) OnAudienceModeChange(mode domain.AudienceMode) {
	f.mode, f.placeholder = normalizeMode(mode)
	note := MsgBusinessNote
	if f.mode == domain.AudienceStudent {
		note = MsgStudentNote
	}
	f.setDisplay(Display{State: StateIdle, Category: CategoryNote, Text: note})
}

func (f *Flow) setDisplay(d Display) {
	f.display = d
	if f.observe != nil {
		f.observe(d)
	}
}

func normalizeMode(mode domain.AudienceMode) (domain.AudienceMode, string) {
	if mode == domain.AudienceStudent {
		return domain.AudienceStudent, StudentPlaceholder
	}
	return domain.AudienceBusiness, BusinessPlaceholder
}
