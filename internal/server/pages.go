package server

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"taskboard/internal/board"
	"taskboard/internal/domain"
	"taskboard/internal/engine"
	"taskboard/internal/status"
)

//go:embed templates/*.html
var templatesFS embed.FS

type pages struct {
	deps
	tmpl *template.Template
}

func newPages(d deps) (*pages, error) {
	tmpl, err := template.New("base").Funcs(template.FuncMap{
		"trim": strings.TrimSpace,
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &pages{deps: d, tmpl: tmpl}, nil
}

func (p *pages) register(r chi.Router) {
	r.Get("/", p.handleList)
	r.Get("/tasks/{id}/edit", p.handleEdit)
	r.Post("/tasks/{id}/edit", p.handleSave)
	r.Get("/chat", p.handleChat)
	r.Post("/chat/{session}", p.handleChatSend)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "ok")
	})
}

func (p *pages) writeHTMLTemplate(w http.ResponseWriter, code int, name string, data any) {
	var b strings.Builder
	if err := p.tmpl.ExecuteTemplate(&b, name, data); err != nil {
		p.log.Error("render template failed", "template", name, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, b.String())
}

type cardVM struct {
	ID            string
	Title         string
	Description   template.HTML
	DueLabel      string
	Assignee      string
	CreatedLabel  string
	StatusLabel   string
	StatusColor   string
	PriorityLabel string
	PriorityColor string
	EditURL       string
	ChatURL       string
}

func newCardVM(t domain.Task, filter string) cardVM {
	vm := cardVM{
		ID:            t.ID,
		Title:         t.Title,
		Description:   renderMarkdownHTML(t.Description),
		DueLabel:      "No due date",
		Assignee:      t.Assignee(),
		StatusLabel:   status.Label(t.Status),
		StatusColor:   status.Color(t.Status),
		PriorityLabel: status.PriorityLabel(t.Priority),
		PriorityColor: status.PriorityColor(t.Priority),
		EditURL:       "/tasks/" + url.PathEscape(t.ID) + "/edit?filter=" + url.QueryEscape(filter),
		ChatURL:       "/chat?action=update&taskId=" + url.QueryEscape(t.ID),
	}
	if t.DueDate != nil {
		vm.DueLabel = longDate(*t.DueDate)
	}
	if t.CreatedAt != nil {
		vm.CreatedLabel = longDate(*t.CreatedAt)
	}
	return vm
}

// longDate renders t like "January 2nd, 2024".
func longDate(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s %d%s, %d", t.Month(), t.Day(), ordinal(t.Day()), t.Year())
}

func ordinal(day int) string {
	if day%100 >= 11 && day%100 <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}

type filterVM struct {
	Value  string
	Label  string
	Count  int
	Active bool
}

type listVM struct {
	Filter  string
	Filters []filterVM
	Cards   []cardVM
	Failed  bool
}

func (p *pages) handleList(w http.ResponseWriter, r *http.Request) {
	view := board.NewListView(p.Engine, p.log)
	view.SetFilter(r.URL.Query().Get("filter"))
	err := view.Refresh(r.Context())

	vm := listVM{Filter: view.Filter(), Failed: err != nil}
	all := view.Tasks()
	for _, opt := range status.Filters() {
		vm.Filters = append(vm.Filters, filterVM{
			Value:  opt.Value,
			Label:  opt.Label,
			Count:  len(board.FilterTasks(all, opt.Value)),
			Active: opt.Value == vm.Filter,
		})
	}
	for _, t := range view.Visible() {
		vm.Cards = append(vm.Cards, newCardVM(t, vm.Filter))
	}
	p.writeHTMLTemplate(w, http.StatusOK, "list.html", vm)
}

type editVM struct {
	Card            cardVM
	Draft           board.Draft
	DueValue        string
	Filter          string
	StatusOptions   []status.Option
	PriorityOptions []status.Option
	Saving          bool
	Error           string
}

func (p *pages) newEditVM(ed *board.CardEditor, d board.Draft, filter, errMsg string) editVM {
	vm := editVM{
		Card:            newCardVM(ed.Task(), filter),
		Draft:           d,
		Filter:          filter,
		StatusOptions:   withCurrent(status.Options(), d.Status, status.Label),
		PriorityOptions: withCurrent(status.PriorityOptions(), d.Priority, status.PriorityLabel),
		Saving:          ed.Saving(),
		Error:           errMsg,
	}
	if d.DueDate != nil {
		vm.DueValue = d.DueDate.UTC().Format("2006-01-02")
	}
	return vm
}

// withCurrent keeps a stored value selectable when it is not a standard
// option.
func withCurrent(opts []status.Option, current string, label func(string) string) []status.Option {
	if current == "" {
		return opts
	}
	for _, o := range opts {
		if o.Value == current {
			return opts
		}
	}
	return append(opts, status.Option{Value: current, Label: label(current)})
}

type errorVM struct {
	Title   string
	Message string
}

func (p *pages) renderError(w http.ResponseWriter, err error) {
	if engine.IsNotFound(err) {
		p.writeHTMLTemplate(w, http.StatusNotFound, "error.html", errorVM{Title: "Task not found", Message: "The task may have been removed."})
		return
	}
	p.writeHTMLTemplate(w, http.StatusBadGateway, "error.html", errorVM{Title: "Failed to load task", Message: "The task store is unavailable. Please try again."})
}

func (p *pages) handleEdit(w http.ResponseWriter, r *http.Request) {
	ed := board.NewCardEditor(p.Engine, p.Guard, p.log)
	if err := ed.Load(r.Context(), chi.URLParam(r, "id")); err != nil {
		p.renderError(w, err)
		return
	}
	filter := r.URL.Query().Get("filter")
	p.writeHTMLTemplate(w, http.StatusOK, "edit.html", p.newEditVM(ed, ed.Draft(), filter, ""))
}

func (p *pages) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	ed := board.NewCardEditor(p.Engine, p.Guard, p.log)
	if err := ed.Load(r.Context(), chi.URLParam(r, "id")); err != nil {
		p.renderError(w, err)
		return
	}
	filter := r.PostForm.Get("filter")
	if !status.ValidFilter(filter) {
		filter = status.FilterAll
	}
	d := board.Draft{
		Status:     r.PostForm.Get("status"),
		Priority:   r.PostForm.Get("priority"),
		AssignedTo: r.PostForm.Get("assigned_to"),
	}
	if raw := strings.TrimSpace(r.PostForm.Get("due_date")); raw != "" {
		due, err := domain.ParseDate(raw)
		if err != nil {
			p.writeHTMLTemplate(w, http.StatusBadRequest, "edit.html", p.newEditVM(ed, d, filter, "Invalid due date."))
			return
		}
		d.DueDate = &due
	}
	ed.OnSaved = func(t domain.Task) {
		p.log.Debug("task saved", "task", t.ID, "status", t.Status)
	}
	if _, err := ed.Save(r.Context(), d); err != nil {
		code, msg := http.StatusBadGateway, "Failed to save task. Please try again."
		switch {
		case errors.Is(err, board.ErrSaveInFlight):
			code, msg = http.StatusConflict, "This task is already being saved."
		case engine.IsNotFound(err):
			code, msg = http.StatusNotFound, "Task not found."
		}
		p.writeHTMLTemplate(w, code, "edit.html", p.newEditVM(ed, d, filter, msg))
		return
	}
	http.Redirect(w, r, "/?filter="+url.QueryEscape(filter), http.StatusSeeOther)
}

// chatVM.SessionID is empty until the first send; the form then posts to
// /chat/new carrying the seed parameters.
type chatVM struct {
	SessionID  string
	Action     string
	TaskID     string
	Heading    string
	Input      string
	Transcript []domain.Message
	Sending    bool
	Error      string
}

func newChatVM(s *board.ChatSession, errMsg string) chatVM {
	return chatVM{
		SessionID:  s.ID,
		Heading:    s.Heading(),
		Input:      s.Input(),
		Transcript: s.Transcript(),
		Sending:    s.Sending(),
		Error:      errMsg,
	}
}

const newChatSession = "new"

func (p *pages) handleChat(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s := p.Sessions.Preview(r.Context(), q.Get("action"), q.Get("taskId"))
	vm := newChatVM(s, "")
	vm.SessionID = ""
	vm.Action = s.Action
	vm.TaskID = s.TaskID
	p.writeHTMLTemplate(w, http.StatusOK, "chat.html", vm)
}

func (p *pages) handleChatSend(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	var s *board.ChatSession
	if id := chi.URLParam(r, "session"); id == newChatSession {
		s = p.Sessions.Start(r.Context(), r.PostForm.Get("action"), r.PostForm.Get("taskId"))
	} else {
		var err error
		if s, err = p.Sessions.Get(id); err != nil {
			p.writeHTMLTemplate(w, http.StatusNotFound, "error.html", errorVM{Title: "Chat not found", Message: "Start a new chat from the task board."})
			return
		}
	}
	if _, err := s.Send(r.Context(), r.PostForm.Get("message")); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, board.ErrSendInFlight) {
			code = http.StatusConflict
		}
		p.writeHTMLTemplate(w, code, "chat.html", newChatVM(s, "Please wait for the previous message to finish."))
		return
	}
	p.writeHTMLTemplate(w, http.StatusOK, "chat.html", newChatVM(s, ""))
}
