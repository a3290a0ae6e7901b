package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var actionLabels = map[action]string{
	actChooseData:   "Choose training directory",
	actLoadData:     "Load training data",
	actChooseSave:   "Choose model save directory",
	actTrain:        "Train",
	actChooseModel:  "Choose model",
	actChooseOutput: "Choose sample directory",
	actGenerate:     "Generate",
	actBack:         "Back",
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(asciiLogo())
	s.WriteString("\n")

	switch m.state {
	case StateMenu:
		s.WriteString(m.viewMenu())
	case StateTrain:
		s.WriteString(m.viewTrain())
	case StateGenerate:
		s.WriteString(m.viewGenerate())
	case StatePicker:
		s.WriteString(m.viewPicker())
	}

	s.WriteString("\n")
	switch m.state {
	case StateMenu:
		s.WriteString(helpStyle.Render("↑/↓: navigate • enter: select • q: quit"))
	case StatePicker:
		s.WriteString(helpStyle.Render("enter/l: open • h: up • s: use this directory • esc: cancel"))
	default:
		s.WriteString(helpStyle.Render("↑/↓/tab: move • enter: run • esc: menu • ctrl+c: quit"))
	}

	return s.String()
}

func (m Model) viewMenu() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" NEURAL NOTES "))
	s.WriteString("\n\n")

	for i, item := range menuItems {
		if i == m.menuIndex {
			s.WriteString(selectedStyle.Render(fmt.Sprintf("▸ %s", item.Title)))
			s.WriteString("\n")
			s.WriteString(lipgloss.NewStyle().Foreground(acidYellow).PaddingLeft(4).Render(item.Description))
		} else {
			s.WriteString(menuStyle.Render(fmt.Sprintf("  %s", item.Title)))
		}
		s.WriteString("\n")
	}

	return boxStyle.Render(s.String())
}

// viewItems renders the fields and actions of the current screen
func (m Model) viewItems(s *strings.Builder) {
	for i, it := range m.items() {
		cursor := "  "
		style := menuStyle
		if i == m.focus {
			cursor = "▸ "
			style = selectedStyle
		}

		var line string
		if it.action == actNone {
			line = fmt.Sprintf("%s%-13s %s", cursor, fieldLabels[it.field], m.inputs[it.field].View())
		} else {
			line = cursor + m.actionLabel(it.action)
		}
		s.WriteString(style.Render(line))
		s.WriteString("\n")
	}
}

func (m Model) actionLabel(a action) string {
	if a == actToggleSave {
		if m.saveModel && m.saveDir != "" {
			return "[x] Save model to " + m.saveDir
		}
		return "[ ] Save model to ---"
	}
	return actionLabels[a]
}

func (m Model) viewTrain() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" TRAIN "))
	s.WriteString("\n\n")
	m.viewItems(&s)

	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("Data:   %s\n", orDash(m.trainDir)))
	s.WriteString(fmt.Sprintf("Loaded: %d sequences\n", m.session.CorpusSize()))
	if r := m.lastTrain; r != nil {
		s.WriteString(fmt.Sprintf("Last run: %d epochs, %d updates, error %.4f\n", r.Epochs, r.Updates, r.ReconstructionError))
	}

	s.WriteString(m.viewStatus(m.session.TrainStatus()))
	return boxStyle.Render(s.String())
}

func (m Model) viewGenerate() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" GENERATE "))
	s.WriteString("\n\n")
	m.viewItems(&s)

	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("Model:  %s\n", m.modelLabel()))
	out := m.sampleDir
	if out == "" {
		out = m.session.Config().SampleDir
	}
	s.WriteString(fmt.Sprintf("Saving samples to %s\n", out))
	if r := m.lastGen; r != nil {
		s.WriteString(fmt.Sprintf("Last run: %d written, %d silent\n", len(r.Written), r.Skipped))
		for _, path := range r.Written {
			s.WriteString("  " + filepath.Base(path) + "\n")
		}
	}

	s.WriteString(m.viewStatus(m.session.GenerateStatus()))
	return boxStyle.Render(s.String())
}

func (m Model) viewStatus(status string) string {
	var s strings.Builder
	line := status
	if m.busy {
		line = m.spinner.View() + " " + status
	}
	s.WriteString(statusStyle.Render(line))
	if m.notice != "" {
		s.WriteString("\n")
		s.WriteString(errorStyle.Render("✗ " + m.notice))
	}
	return s.String()
}

func (m Model) viewPicker() string {
	var s strings.Builder

	title := " SELECT DIRECTORY "
	if m.target == pickModel {
		title = " SELECT MODEL "
	}
	s.WriteString(titleStyle.Render(title))
	s.WriteString("\n\n")
	s.WriteString(m.picker.CurrentDirectory)
	s.WriteString("\n\n")
	s.WriteString(m.picker.View())

	return s.String()
}

func orDash(s string) string {
	if s == "" {
		return "---"
	}
	return s
}

func asciiLogo() string {
	logo := `
  _   _                      _   _   _       _
 | \ | | ___ _   _ _ __ __ _| | | \ | | ___ | |_ ___  ___
 |  \| |/ _ \ | | | '__/ _' | | |  \| |/ _ \| __/ _ \/ __|
 | |\  |  __/ |_| | | | (_| | | | |\  | (_) | ||  __/\__ \
 |_| \_|\___|\__,_|_|  \__,_|_| |_| \_|\___/ \__\___||___/
`
	return lipgloss.NewStyle().Foreground(acidGreen).Render(logo)
}
