// Package tui provides the terminal front end for neuralnotes
package tui

import (
	"context"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/james-see/neuralnotes/pkg/config"
	"github.com/james-see/neuralnotes/pkg/rbm"
	"github.com/james-see/neuralnotes/pkg/session"
)

// Synth-inspired color scheme
var (
	acidGreen  = lipgloss.Color("#39FF14")
	acidYellow = lipgloss.Color("#FFFF00")
	silverGray = lipgloss.Color("#C0C0C0")
	darkGray   = lipgloss.Color("#333333")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(acidGreen).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(silverGray).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(acidGreen).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(acidYellow).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(acidGreen).
			Padding(1, 2)
)

// State represents the current TUI screen
type State int

const (
	StateMenu State = iota
	StateTrain
	StateGenerate
	StatePicker
)

// MenuItem represents a main menu option
type MenuItem struct {
	Title       string
	Description string
	Screen      State
}

var menuItems = []MenuItem{
	{Title: "Train", Description: "Load a MIDI directory and train a new model", Screen: StateTrain},
	{Title: "Generate", Description: "Sample new MIDI files from a trained model", Screen: StateGenerate},
	{Title: "Exit", Description: "Exit the application", Screen: StateMenu},
}

type action int

const (
	actNone action = iota
	actChooseData
	actLoadData
	actChooseSave
	actToggleSave
	actTrain
	actChooseModel
	actChooseOutput
	actGenerate
	actBack
)

// item is one focusable row: a text field or an action
type item struct {
	field  config.Field
	action action
}

var (
	trainFields    = []config.Field{config.FieldTimesteps, config.FieldEpochs, config.FieldLearnRate, config.FieldHiddenNodes}
	generateFields = []config.Field{config.FieldSampleCount, config.FieldTickScale}

	trainActions    = []action{actChooseData, actLoadData, actChooseSave, actToggleSave, actTrain, actBack}
	generateActions = []action{actChooseModel, actChooseOutput, actGenerate, actBack}
)

var fieldLabels = map[config.Field]string{
	config.FieldTimesteps:   "Timesteps",
	config.FieldEpochs:      "Epochs",
	config.FieldLearnRate:   "Learn rate",
	config.FieldHiddenNodes: "Hidden nodes",
	config.FieldSampleCount: "Samples",
	config.FieldTickScale:   "Tick scale",
}

// pickTarget is what the file picker is choosing
type pickTarget int

const (
	pickTrainDir pickTarget = iota
	pickSaveDir
	pickModel
	pickSampleDir
)

// Model represents the TUI model
type Model struct {
	session *session.Session

	state     State
	menuIndex int
	focus     int
	inputs    map[config.Field]textinput.Model

	picker   filepicker.Model
	target   pickTarget
	returnTo State

	spinner spinner.Model
	busy    bool
	notice  string

	trainDir  string
	saveDir   string
	saveModel bool
	modelPath string
	sampleDir string

	lastTrain *session.TrainReport
	lastGen   *session.GenerateReport

	width  int
	height int
}

type loadDoneMsg struct {
	loaded int
	err    error
}

type trainDoneMsg struct {
	report *session.TrainReport
	err    error
}

type generateDoneMsg struct {
	report *session.GenerateReport
	err    error
}

// New creates a new TUI model driving s
func New(s *session.Session) Model {
	conf := s.Config()

	inputs := make(map[config.Field]textinput.Model)
	for _, f := range append(append([]config.Field{}, trainFields...), generateFields...) {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 12
		in.Width = 12
		in.SetValue(conf.Get(f))
		inputs[f] = in
	}

	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()
	fp.SetHeight(10)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(acidGreen)

	return Model{
		session: s,
		state:   StateMenu,
		inputs:  inputs,
		picker:  fp,
		spinner: sp,
	}
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) items() []item {
	var fields []config.Field
	var actions []action
	switch m.state {
	case StateTrain:
		fields, actions = trainFields, trainActions
	case StateGenerate:
		fields, actions = generateFields, generateActions
	}
	items := make([]item, 0, len(fields)+len(actions))
	for _, f := range fields {
		items = append(items, item{field: f})
	}
	for _, a := range actions {
		items = append(items, item{action: a})
	}
	return items
}

func (m Model) fields() []config.Field {
	switch m.state {
	case StateTrain:
		return trainFields
	case StateGenerate:
		return generateFields
	}
	return nil
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.picker.SetHeight(max(msg.Height-16, 4))
		return m, nil

	case tea.KeyMsg:
		if m.state == StatePicker {
			return m.updatePicker(msg)
		}
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.state {
		case StateMenu:
			return m.updateMenu(msg)
		case StateTrain, StateGenerate:
			return m.updateScreen(msg)
		}

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loadDoneMsg:
		m.busy = false
		m.notice = ""
		switch {
		case msg.err != nil:
			m.notice = msg.err.Error()
		case msg.loaded == 0:
			m.notice = "no usable MIDI files found"
		}
		return m, nil

	case trainDoneMsg:
		m.busy = false
		m.notice = ""
		m.lastTrain = msg.report
		if msg.err != nil {
			m.notice = msg.err.Error()
		}
		return m, nil

	case generateDoneMsg:
		m.busy = false
		m.notice = ""
		m.lastGen = msg.report
		if msg.err != nil {
			m.notice = msg.err.Error()
		}
		return m, nil
	}

	// Directory listings go to the picker, blinks to the focused input
	if m.state == StatePicker {
		return m.updatePicker(msg)
	}
	return m.updateInput(msg)
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case "down", "j":
		if m.menuIndex < len(menuItems)-1 {
			m.menuIndex++
		}
	case "enter":
		if m.menuIndex == len(menuItems)-1 {
			return m, tea.Quit
		}
		m.state = menuItems[m.menuIndex].Screen
		m.notice = ""
		cmd := m.setFocus(0)
		return m, cmd
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateScreen(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.items()

	switch msg.String() {
	case "esc":
		m.commit()
		m.blurAll()
		m.state = StateMenu
		return m, nil
	case "up", "shift+tab":
		m.commit()
		cmd := m.setFocus((m.focus - 1 + len(items)) % len(items))
		return m, cmd
	case "down", "tab":
		m.commit()
		cmd := m.setFocus((m.focus + 1) % len(items))
		return m, cmd
	case "enter":
		m.commit()
		current := items[m.focus]
		if current.action == actNone {
			cmd := m.setFocus((m.focus + 1) % len(items))
			return m, cmd
		}
		return m.perform(current.action)
	}

	return m.updateInput(msg)
}

func (m Model) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	items := m.items()
	if m.focus >= len(items) || items[m.focus].action != actNone {
		return m, nil
	}
	f := items[m.focus].field
	in, cmd := m.inputs[f].Update(msg)
	m.inputs[f] = in
	return m, cmd
}

// setFocus moves focus to row i, focusing its text field if it has one
func (m *Model) setFocus(i int) tea.Cmd {
	m.blurAll()
	m.focus = i
	items := m.items()
	if i >= len(items) || items[i].action != actNone {
		return nil
	}
	in := m.inputs[items[i].field]
	cmd := in.Focus()
	m.inputs[items[i].field] = in
	return cmd
}

func (m *Model) blurAll() {
	for f, in := range m.inputs {
		in.Blur()
		m.inputs[f] = in
	}
}

// commit applies the text fields of the current screen. Rejected text is
// replaced with the last valid value. Nothing is applied while a run is going.
func (m *Model) commit() {
	if m.busy {
		return
	}
	conf := m.session.Config()
	var rejected []string
	for _, f := range m.fields() {
		in := m.inputs[f]
		if in.Value() == conf.Get(f) {
			continue
		}
		if err := conf.Set(f, in.Value()); err != nil {
			in.SetValue(conf.Get(f))
			m.inputs[f] = in
			rejected = append(rejected, fieldLabels[f])
		}
	}
	if err := m.session.Configure(conf); err != nil {
		m.notice = err.Error()
		return
	}
	if len(rejected) > 0 {
		m.notice = "invalid " + strings.ToLower(strings.Join(rejected, ", ")) + ", kept previous value"
	}
}

func (m Model) perform(a action) (tea.Model, tea.Cmd) {
	if m.busy {
		switch a {
		case actLoadData, actTrain, actGenerate:
			m.notice = session.ErrBusy.Error()
			return m, nil
		}
	}

	switch a {
	case actBack:
		m.blurAll()
		m.state = StateMenu
		return m, nil
	case actToggleSave:
		m.saveModel = !m.saveModel
		return m, nil
	case actChooseData:
		return m.openPicker(pickTrainDir)
	case actChooseSave:
		return m.openPicker(pickSaveDir)
	case actChooseModel:
		return m.openPicker(pickModel)
	case actChooseOutput:
		return m.openPicker(pickSampleDir)
	case actLoadData:
		m.busy = true
		return m, tea.Batch(m.spinner.Tick, loadCorpus(m.session, m.trainDir))
	case actTrain:
		saveDir := ""
		if m.saveModel {
			saveDir = m.saveDir
		}
		m.busy = true
		return m, tea.Batch(m.spinner.Tick, train(m.session, saveDir))
	case actGenerate:
		m.busy = true
		return m, tea.Batch(m.spinner.Tick, generate(m.session, m.modelPath, m.sampleDir))
	}
	return m, nil
}

func (m Model) openPicker(target pickTarget) (tea.Model, tea.Cmd) {
	m.blurAll()
	m.target = target
	m.returnTo = m.state
	m.state = StatePicker

	m.picker.DirAllowed = false
	m.picker.FileAllowed = target == pickModel
	m.picker.AllowedTypes = nil
	if target == pickModel {
		m.picker.AllowedTypes = []string{".gob"}
	}
	return m, m.picker.Init()
}

func (m Model) updatePicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			m.state = m.returnTo
			return m, nil
		case "s":
			// choose the directory being shown
			m.choose(m.picker.CurrentDirectory)
			return m, nil
		case "ctrl+c":
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)

	if didSelect, path := m.picker.DidSelectFile(msg); didSelect {
		m.choose(path)
		return m, nil
	}
	return m, cmd
}

func (m *Model) choose(path string) {
	switch m.target {
	case pickTrainDir:
		m.trainDir = path
	case pickSaveDir:
		m.saveDir = path
		m.saveModel = true
	case pickModel:
		m.modelPath = path
	case pickSampleDir:
		m.sampleDir = path
	}
	m.state = m.returnTo
}

func loadCorpus(s *session.Session, dir string) tea.Cmd {
	return func() tea.Msg {
		n, err := s.LoadCorpus(context.Background(), dir)
		return loadDoneMsg{loaded: n, err: err}
	}
}

func train(s *session.Session, saveDir string) tea.Cmd {
	return func() tea.Msg {
		report, err := s.Train(context.Background(), session.TrainRequest{SaveDir: saveDir})
		return trainDoneMsg{report: report, err: err}
	}
}

func generate(s *session.Session, modelPath, outDir string) tea.Cmd {
	return func() tea.Msg {
		report, err := s.Generate(context.Background(), session.GenerateRequest{ModelPath: modelPath, OutDir: outDir})
		return generateDoneMsg{report: report, err: err}
	}
}

// modelLabel describes where Generate will read the model from
func (m Model) modelLabel() string {
	if m.modelPath != "" {
		return m.modelPath
	}
	return m.session.Config().ModelCacheDir + string(os.PathSeparator) + rbm.FileName
}

// Run starts the TUI application
func Run(s *session.Session) error {
	p := tea.NewProgram(New(s), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
