// Package tui is the terminal form for one intake session. It drives the same
// session operations as the HTTP routes and renders the aggregator's state.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gabriel-vasile/mimetype"

	"visaintake/internal/intake/aggregator"
	"visaintake/internal/intake/models"
	"visaintake/internal/intake/session"

	dErrors "visaintake/pkg/domain-errors"
)

// refreshInterval redraws the screen so debounced validity shows up without a keypress.
const refreshInterval = 250 * time.Millisecond

// Service is the slice of the session service the form needs.
type Service interface {
	Get(id string) (*session.Session, error)
	AddTraveler(ctx context.Context, sid string) (int, error)
	RemoveTraveler(ctx context.Context, sid string, tid int) error
	UpdateTraveler(ctx context.Context, sid string, tid int, fields map[string]string) error
	SetDocument(ctx context.Context, sid string, tid int, key string, file models.File) error
	ClearDocument(ctx context.Context, sid string, tid int, key string) error
	Submit(ctx context.Context, sid string) (aggregator.Submission, error)
}

type rowKind int

const (
	rowField rowKind = iota
	rowVisaType
	rowDocument
)

type row struct {
	kind  rowKind
	key   string
	label string
}

var identityRows = []row{
	{kind: rowField, key: models.FieldGivenName, label: "Given name"},
	{kind: rowField, key: models.FieldSurname, label: "Surname"},
	{kind: rowField, key: models.FieldPhones, label: "Phones"},
	{kind: rowField, key: models.FieldEmail, label: "Email"},
	{kind: rowField, key: models.FieldAddress, label: "Address"},
	{kind: rowField, key: models.FieldNotes, label: "Notes"},
	{kind: rowVisaType, key: models.FieldVisaType, label: "Visa type"},
}

type tickMsg time.Time

type submitFinishedMsg struct {
	submission aggregator.Submission
	err        error
}

// Option customizes a Model.
type Option func(*Model)

// WithFileReader replaces os.ReadFile for attaching documents.
func WithFileReader(read func(path string) ([]byte, error)) Option {
	return func(m *Model) {
		if read != nil {
			m.readFile = read
		}
	}
}

// Model is the bubbletea model for one session.
type Model struct {
	svc      Service
	sid      string
	readFile func(string) ([]byte, error)

	traveler int
	cursor   int
	editing  bool
	input    textinput.Model

	submitting bool
	status     string
	err        error
	width      int
}

// New builds a form over session sid.
func New(svc Service, sid string, opts ...Option) *Model {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 512

	m := &Model{
		svc:      svc,
		sid:      sid,
		readFile: os.ReadFile,
		traveler: models.PrimaryTravelerID,
		input:    input,
		status:   "ctrl+s submit · ctrl+n add traveler · ctrl+x remove · tab next traveler · q quit",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init starts the refresh ticker.
func (m *Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles one message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tickMsg:
		return m, tick()
	case submitFinishedMsg:
		m.submitting = false
		if msg.err != nil {
			m.setErr(msg.err)
			return m, nil
		}
		m.err = nil
		m.status = fmt.Sprintf("submitted %s: %d travelers, %d attachments",
			msg.submission.ID, msg.submission.Travelers, msg.submission.Attachments)
		m.traveler = models.PrimaryTravelerID
		m.cursor = 0
		return m, nil
	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateBrowsing(msg)
	}
	return m, nil
}

func (m *Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.stopEditing()
		return m, nil
	case "enter":
		m.commit(m.input.Value())
		m.stopEditing()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx := context.Background()
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.rows())-1 {
			m.cursor++
		}
	case "tab":
		m.selectTraveler(1)
	case "shift+tab":
		m.selectTraveler(-1)
	case "ctrl+n":
		id, err := m.svc.AddTraveler(ctx, m.sid)
		if err != nil {
			m.setErr(err)
			break
		}
		m.traveler, m.cursor = id, 0
		m.ok(fmt.Sprintf("traveler %d added", id))
	case "ctrl+x":
		if err := m.svc.RemoveTraveler(ctx, m.sid, m.traveler); err != nil {
			m.setErr(err)
			break
		}
		m.ok(fmt.Sprintf("traveler %d removed", m.traveler))
		m.selectTraveler(-1)
	case "left", "right":
		if r, ok := m.currentRow(); ok && r.kind == rowVisaType {
			step := 1
			if msg.String() == "left" {
				step = -1
			}
			m.cycleVisaType(step)
		}
	case "enter":
		m.startEditing()
	case "delete", "backspace":
		if r, ok := m.currentRow(); ok && r.kind == rowDocument {
			if err := m.svc.ClearDocument(ctx, m.sid, m.traveler, r.key); err != nil {
				m.setErr(err)
				break
			}
			m.ok(r.label + " cleared")
		}
	case "ctrl+s":
		if m.submitting {
			break
		}
		m.submitting = true
		m.status = "submitting..."
		return m, m.submit()
	}
	return m, nil
}

func (m *Model) submit() tea.Cmd {
	svc, sid := m.svc, m.sid
	return func() tea.Msg {
		sub, err := svc.Submit(context.Background(), sid)
		return submitFinishedMsg{submission: sub, err: err}
	}
}

func (m *Model) startEditing() {
	r, ok := m.currentRow()
	if !ok {
		return
	}
	switch r.kind {
	case rowVisaType:
		m.cycleVisaType(1)
		return
	case rowDocument:
		m.input.Placeholder = "path to file"
		m.input.SetValue("")
	default:
		m.input.Placeholder = r.label
		m.input.SetValue(m.fieldValue(r.key))
	}
	m.input.CursorEnd()
	m.input.Focus()
	m.editing = true
}

func (m *Model) stopEditing() {
	m.editing = false
	m.input.Blur()
	m.input.SetValue("")
}

func (m *Model) commit(value string) {
	r, ok := m.currentRow()
	if !ok {
		return
	}
	ctx := context.Background()
	if r.kind == rowDocument {
		m.attach(ctx, r, value)
		return
	}
	if err := m.svc.UpdateTraveler(ctx, m.sid, m.traveler, map[string]string{r.key: value}); err != nil {
		m.setErr(err)
		return
	}
	m.ok(r.label + " updated")
}

func (m *Model) attach(ctx context.Context, r row, path string) {
	if path == "" {
		return
	}
	data, err := m.readFile(path)
	if err != nil {
		m.setErr(dErrors.Wrap(err, dErrors.CodeInvalidInput, "could not read "+path))
		return
	}
	file := &models.LocalFile{
		FileName:    filepath.Base(path),
		ContentType: mimetype.Detect(data).String(),
		Data:        data,
	}
	if err := m.svc.SetDocument(ctx, m.sid, m.traveler, r.key, file); err != nil {
		m.setErr(err)
		return
	}
	m.ok(r.label + " attached")
}

func (m *Model) cycleVisaType(step int) {
	rec, ok := m.record()
	if !ok {
		return
	}
	idx := -1
	for i, vt := range models.VisaTypes {
		if vt == rec.VisaType {
			idx = i
		}
	}
	n := len(models.VisaTypes)
	next := models.VisaTypes[((idx+step)%n+n)%n]
	if idx < 0 && step < 0 {
		next = models.VisaTypes[n-1]
	}
	if err := m.svc.UpdateTraveler(context.Background(), m.sid, m.traveler,
		map[string]string{models.FieldVisaType: string(next)}); err != nil {
		m.setErr(err)
		return
	}
	m.ok("visa type " + string(next))
}

// selectTraveler moves to the next or previous traveler, wrapping around.
// When the current traveler is gone it falls back to the nearest lower id.
func (m *Model) selectTraveler(step int) {
	ids := m.ids()
	if len(ids) == 0 {
		return
	}
	m.cursor = 0
	for i, id := range ids {
		if id == m.traveler {
			m.traveler = ids[((i+step)%len(ids)+len(ids))%len(ids)]
			return
		}
	}
	next := ids[0]
	for _, id := range ids {
		if id < m.traveler {
			next = id
		}
	}
	m.traveler = next
}

func (m *Model) ok(status string) {
	m.err = nil
	m.status = status
}

func (m *Model) setErr(err error) {
	m.err = err
	m.status = ""
}

func (m *Model) aggregator() *aggregator.Aggregator {
	sess, err := m.svc.Get(m.sid)
	if err != nil {
		return nil
	}
	return sess.Aggregator()
}

func (m *Model) ids() []int {
	agg := m.aggregator()
	if agg == nil {
		return nil
	}
	return agg.IDs()
}

func (m *Model) record() (models.TravelerRecord, bool) {
	agg := m.aggregator()
	if agg == nil {
		return models.TravelerRecord{}, false
	}
	form, ok := agg.Traveler(m.traveler)
	if !ok {
		return models.TravelerRecord{}, false
	}
	return form.Values(), true
}

func (m *Model) rows() []row {
	rows := append([]row(nil), identityRows...)
	rec, ok := m.record()
	if !ok {
		return rows
	}
	for _, slot := range rec.Documents.All() {
		d := slot.Descriptor()
		rows = append(rows, row{kind: rowDocument, key: d.FieldKey, label: d.Label})
	}
	return rows
}

func (m *Model) currentRow() (row, bool) {
	rows := m.rows()
	if m.cursor >= len(rows) {
		m.cursor = len(rows) - 1
	}
	if m.cursor < 0 {
		return row{}, false
	}
	return rows[m.cursor], true
}

func (m *Model) fieldValue(key string) string {
	rec, ok := m.record()
	if !ok {
		return ""
	}
	id := rec.Identity
	switch key {
	case models.FieldGivenName:
		return id.GivenName
	case models.FieldSurname:
		return id.Surname
	case models.FieldPhones:
		return joinPhones(id.Phones)
	case models.FieldEmail:
		return id.Email
	case models.FieldAddress:
		return id.Address
	case models.FieldNotes:
		return id.Notes
	}
	return ""
}
