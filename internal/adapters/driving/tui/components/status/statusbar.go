// Package status provides the status bar of the chat TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/papersoul/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/papersoul/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/papersoul/internal/core/domain"
)

// State represents what the chat view is doing.
type State string

const (
	StateReady      State = "ready"
	StateGenerating State = "generating"
	StateError      State = "error"
	StateNotice     State = "notice"
)

// Bar displays the request stage, the memory switch and keybinding hints.
type Bar struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	state   State
	stage   domain.Stage
	message string
	memory  bool
	full    bool
	width   int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &Bar{
		styles: s,
		keymap: km,
		state:  StateReady,
		stage:  domain.StageIdle,
		width:  80,
	}
}

// View renders the status bar.
func (s *Bar) View() string {
	left := s.renderLeft()
	right := s.renderRight()

	padding := s.width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}

	return s.styles.StatusBar.Width(s.width).Render(
		left + strings.Repeat(" ", padding) + right,
	)
}

func (s *Bar) renderLeft() string {
	mem := "memory off"
	if s.memory {
		mem = "memory on"
	}
	mem = s.styles.Muted.Render("[" + mem + "] ")

	switch s.state {
	case StateGenerating:
		return mem + s.styles.Warning.Render(stageLabel(s.stage))
	case StateError:
		if s.message != "" {
			return mem + s.styles.Error.Render("Error: "+s.message)
		}
		return mem + s.styles.Error.Render("Error")
	case StateNotice:
		return mem + s.styles.Normal.Render(s.message)
	default:
		return mem + s.styles.Muted.Render("Ready")
	}
}

func stageLabel(stage domain.Stage) string {
	switch stage {
	case domain.StageRetrievingContext:
		return "Recalling the story..."
	case domain.StageGenerating:
		return "Replying..."
	case domain.StagePersisting:
		return "Saving..."
	case domain.StageExtracting:
		return "Remembering..."
	default:
		return "Working..."
	}
}

func (s *Bar) renderRight() string {
	var bindings []key.Binding
	switch {
	case s.full:
		for _, group := range s.keymap.FullHelp() {
			bindings = append(bindings, group...)
		}
	case s.state == StateGenerating:
		bindings = s.keymap.GeneratingHelp()
	default:
		bindings = s.keymap.ShortHelp()
	}

	hints := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return s.styles.Help.Render(strings.Join(hints, " | "))
}

// SetState sets the current state and clears any message.
func (s *Bar) SetState(state State) {
	s.state = state
	s.message = ""
}

// State returns the current state.
func (s *Bar) State() State {
	return s.state
}

// SetStage records the stage of the request in flight.
func (s *Bar) SetStage(stage domain.Stage) {
	s.stage = stage
}

// Stage returns the last recorded stage.
func (s *Bar) Stage() domain.Stage {
	return s.stage
}

// SetError switches to the error state with a message.
func (s *Bar) SetError(message string) {
	s.state = StateError
	s.message = message
}

// SetNotice shows an informational message.
func (s *Bar) SetNotice(message string) {
	s.state = StateNotice
	s.message = message
}

// Message returns the current message.
func (s *Bar) Message() string {
	return s.message
}

// SetMemory shows whether long-term memory is enabled.
func (s *Bar) SetMemory(on bool) {
	s.memory = on
}

// ToggleHelp switches between short and full hints.
func (s *Bar) ToggleHelp() {
	s.full = !s.full
}

// SetWidth sets the status bar width.
func (s *Bar) SetWidth(width int) {
	s.width = width
}

// Width returns the current width.
func (s *Bar) Width() int {
	return s.width
}
