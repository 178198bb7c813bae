package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dirmail/dirmail/internal/outreach"
)

// errPromptAborted is returned when the user cancels a prompt with
// Ctrl-C or Esc instead of answering it.
var errPromptAborted = errors.New("prompt cancelled")

// promptModel is a single-line numeric question. Enter on an empty
// input accepts the default; invalid input shows an error and keeps the
// prompt open.
type promptModel struct {
	input    textinput.Model
	question string
	validate func(string) (float64, error)
	def      float64
	value    float64
	done     bool
	aborted  bool
	errMsg   string
}

func newPromptModel(question string, def float64, validate func(string) (float64, error)) promptModel {
	ti := textinput.New()
	ti.Placeholder = strconv.FormatFloat(def, 'g', -1, 64)
	ti.CharLimit = 8
	ti.Width = 12
	ti.Focus()

	return promptModel{
		input:    ti,
		question: question,
		validate: validate,
		def:      def,
		value:    def,
	}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.aborted = true
			return m, tea.Quit
		case tea.KeyEnter:
			raw := strings.TrimSpace(m.input.Value())
			if raw == "" {
				m.value = m.def
				m.done = true
				return m, tea.Quit
			}
			v, err := m.validate(raw)
			if err != nil {
				m.errMsg = err.Error()
				return m, nil
			}
			m.value = v
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	var b strings.Builder
	b.WriteString(m.question + "\n")
	b.WriteString(m.input.View() + "\n")
	if m.errMsg != "" {
		b.WriteString(failedStyle.Render(m.errMsg) + "\n")
	}
	return b.String()
}

func parseCap(raw string) (float64, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("enter a whole number")
	}
	if n < 0 || n > outreach.MaxCap {
		return 0, fmt.Errorf("cap must be between 0 and %d", outreach.MaxCap)
	}
	return float64(n), nil
}

func parseJitter(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("enter a number")
	}
	if v < 0 {
		return 0, fmt.Errorf("jitter must be 0 or more")
	}
	return v, nil
}

// promptCap asks how many messages the run may send.
func promptCap(def int) (int, error) {
	question := fmt.Sprintf("How many messages may this run send? (0-%d, default %d)", outreach.MaxCap, def)
	v, err := runPrompt(newPromptModel(question, float64(def), parseCap))
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// promptJitter asks for the pacing jitter factor.
func promptJitter(def float64) (float64, error) {
	question := fmt.Sprintf("Jitter factor for pacing? (0 disables the delay, default %g)", def)
	return runPrompt(newPromptModel(question, def, parseJitter))
}

func runPrompt(m promptModel) (float64, error) {
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return 0, fmt.Errorf("prompt: %w", err)
	}
	pm, ok := final.(promptModel)
	if !ok || pm.aborted {
		return 0, errPromptAborted
	}
	return pm.value, nil
}
