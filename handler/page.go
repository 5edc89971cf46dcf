package handler

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"tax-assistant/internal/domain"
	"tax-assistant/internal/flow"
	"tax-assistant/internal/integrations/answerservice"
	"tax-assistant/internal/usecase"
)

//go:embed templates/index.html
var templateFS embed.FS

const (
	actionSubmit = "submit"
	actionCancel = "cancel"
	actionMode   = "mode"
)

type pageData struct {
	Student     bool
	Placeholder string
	Question    string
	Category    flow.Category
	State       string
	Body        template.HTML
}

func parsePage() (*template.Template, error) {
	t, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("handler: parse page template: %w", err)
	}
	return t, nil
}

// localAnswerer runs the flow against the use case in-process and reports
// failures with the same status errors the HTTP client produces.
type localAnswerer struct {
	uc ChatUseCase
}

func (a localAnswerer) Ask(ctx context.Context, prompt string) (string, error) {
	answer, err := a.uc.Answer(ctx, prompt)
	if err == nil {
		return answer, nil
	}
	status := http.StatusInternalServerError
	var uerr *usecase.Error
	if errors.As(err, &uerr) {
		status = uerr.HTTPStatus()
	}
	return "", &answerservice.StatusError{
		StatusCode: status,
		StatusText: http.StatusText(status),
		Body:       err.Error(),
	}
}

// handlePage renders the question form. Each POST replays one user event
// (submit, cancel or mode change) on a fresh flow seeded from the form.
func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	mode, err := domain.ParseAudienceMode(r.PostForm.Get("mode"))
	if err != nil {
		mode = domain.DefaultAudience
	}
	f := flow.New(localAnswerer{uc: h.uc},
		flow.WithMode(mode),
		flow.WithLogger(h.logger.With("correlation_id", correlationFrom(r.Context()))),
	)
	f.SetQuestion(r.PostForm.Get("question"))

	if r.Method == http.MethodPost {
		switch lastValue(r.PostForm["action"]) {
		case actionCancel:
			f.Reset()
		case actionMode:
			f.OnAudienceModeChange(mode)
		default:
			// Submission failures are already reflected in the display.
			_, _ = f.Submit(r.Context())
		}
	}

	d := f.Display()
	data := pageData{
		Student:     f.Mode() == domain.AudienceStudent,
		Placeholder: f.Placeholder(),
		Question:    f.Question(),
		Category:    d.Category,
		State:       d.State.String(),
		Body:        d.HTML(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.page.Execute(w, data); err != nil {
		h.logger.ErrorContext(r.Context(), "render page", "err", err)
	}
}

// lastValue returns the last non-empty value. The page sends action both from
// the clicked button and from the hidden field the script fills in.
func lastValue(vals []string) string {
	for i := len(vals) - 1; i >= 0; i-- {
		if vals[i] != "" {
			return vals[i]
		}
	}
	return ""
}
