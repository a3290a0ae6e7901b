package tui

import (
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-see/neuralnotes/internal/fixture"
	"github.com/james-see/neuralnotes/pkg/config"
	"github.com/james-see/neuralnotes/pkg/session"
)

func newModel(t *testing.T) (Model, *session.Session) {
	root := t.TempDir()
	conf := config.Default()
	conf.Timesteps = 15
	conf.HiddenNodes = 8
	conf.Epochs = 1
	conf.MinLength = 32
	conf.MaxLength = -1
	conf.SampleCount = 2
	conf.Seed = 3
	conf.ModelCacheDir = filepath.Join(root, "cache")
	conf.SampleDir = filepath.Join(root, "samples")

	s, err := session.New(conf)
	require.NoError(t, err)
	return New(s), s
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m
}

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	down  = tea.KeyMsg{Type: tea.KeyDown}
	up    = tea.KeyMsg{Type: tea.KeyUp}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestMenuNavigation(t *testing.T) {
	m, _ := newModel(t)
	assert.Equal(t, StateMenu, m.state)

	m = press(t, m, enter)
	assert.Equal(t, StateTrain, m.state)
	assert.True(t, m.inputs[config.FieldTimesteps].Focused())

	m = press(t, m, esc, down, enter)
	assert.Equal(t, StateGenerate, m.state)
	assert.True(t, m.inputs[config.FieldSampleCount].Focused())

	m = press(t, m, esc)
	assert.Equal(t, StateMenu, m.state)
	for f, in := range m.inputs {
		assert.False(t, in.Focused(), f)
	}

	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestCommitFields(t *testing.T) {
	m, s := newModel(t)
	m = press(t, m, enter)

	in := m.inputs[config.FieldTimesteps]
	in.SetValue("")
	m.inputs[config.FieldTimesteps] = in
	m = press(t, m, runes("20"), down)
	assert.Equal(t, 20, s.Config().Timesteps)
	assert.Empty(t, m.notice)

	// epochs
	in = m.inputs[config.FieldEpochs]
	in.SetValue("lots")
	m.inputs[config.FieldEpochs] = in
	m = press(t, m, down)
	assert.Equal(t, 1, s.Config().Epochs)
	assert.Equal(t, "1", m.inputs[config.FieldEpochs].Value())
	assert.Contains(t, m.notice, "epochs")

	in = m.inputs[config.FieldLearnRate]
	in.SetValue("0.25")
	m.inputs[config.FieldLearnRate] = in
	m = press(t, m, up)
	assert.InDelta(t, 0.25, s.Config().LearnRate, 1e-9)
	assert.Equal(t, 1, m.focus)
}

func TestActions(t *testing.T) {
	m, s := newModel(t)
	m = press(t, m, enter)

	// Focus the save toggle: four fields then choose, load, choose save
	for m.focus != 7 {
		m = press(t, m, down)
	}
	assert.False(t, m.saveModel)
	m = press(t, m, enter)
	assert.True(t, m.saveModel)
	m = press(t, m, enter)
	assert.False(t, m.saveModel)

	// Choosing a directory with the picker
	m.picker.CurrentDirectory = t.TempDir()
	m = press(t, m, up, up, up, enter)
	assert.Equal(t, StatePicker, m.state)
	m = press(t, m, runes("s"))
	assert.Equal(t, StateTrain, m.state)
	assert.Equal(t, m.picker.CurrentDirectory, m.trainDir)

	m = press(t, m, down, enter)
	assert.True(t, m.busy)
	assert.Contains(t, m.View(), session.StatusNoData)

	next, _ := m.Update(loadCorpus(s, m.trainDir)())
	m = next.(Model)
	assert.False(t, m.busy)
	assert.Equal(t, session.StatusLoadFailed, s.TrainStatus())
	assert.NotEmpty(t, m.notice, "an empty directory has no data")

	m = press(t, m, esc)
	assert.Equal(t, StateMenu, m.state)
}

func TestTrainAndGenerate(t *testing.T) {
	m, s := newModel(t)
	dir := t.TempDir()
	fixture.Write(t, dir, "a.mid", fixture.SMF(t, 480, fixture.Notes(
		fixture.Note{Key: 60, On: 0, Off: 4680},
	)))

	next, _ := m.Update(loadCorpus(s, dir)())
	m = next.(Model)
	assert.Equal(t, 1, s.CorpusSize())

	next, _ = m.Update(train(s, "")())
	m = next.(Model)
	require.NotNil(t, m.lastTrain)
	assert.Empty(t, m.notice)
	assert.Equal(t, 2, m.lastTrain.Windows)

	m = press(t, m, down, enter)
	assert.Equal(t, StateGenerate, m.state)
	assert.Contains(t, m.View(), session.StatusReady)

	next, _ = m.Update(generate(s, "", "")())
	m = next.(Model)
	require.NotNil(t, m.lastGen)
	assert.Equal(t, 2, len(m.lastGen.Written)+m.lastGen.Skipped)
	assert.Contains(t, m.View(), session.StatusGenerated)
}

func TestBusyRejectsRuns(t *testing.T) {
	m, _ := newModel(t)
	m = press(t, m, enter)
	m.busy = true

	next, cmd := m.perform(actTrain)
	m = next.(Model)
	assert.Nil(t, cmd)
	assert.Equal(t, session.ErrBusy.Error(), m.notice)
}

func TestViewScreens(t *testing.T) {
	m, _ := newModel(t)
	assert.Contains(t, m.View(), "Train")

	m = press(t, m, enter)
	view := m.View()
	for _, label := range []string{"Timesteps", "Epochs", "Learn rate", "Hidden nodes", "Load training data"} {
		assert.Contains(t, view, label)
	}
	assert.True(t, strings.Contains(view, "[ ] Save model"))
}
