package setup

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
)

// EnvFile is where the wizard stores answers.
const EnvFile = ".env"

type fieldDef struct {
	key         string
	label       string
	placeholder string
	required    bool
	secret      bool
	numeric     bool
}

var fieldDefs = []fieldDef{
	{key: "TELEGRAM_API_ID", label: "Telegram API ID", placeholder: "123456", required: true, numeric: true},
	{key: "TELEGRAM_API_HASH", label: "Telegram API Hash", placeholder: "abcdef123456...", required: true, secret: true},
	{key: "TELEGRAM_PHONE", label: "Phone number (first login)", placeholder: "+15551234567"},
	{key: "GEMINI_API_KEY", label: "Gemini API key", placeholder: "AIza...", secret: true},
	{key: "BOT_PIC_CHAT_ID", label: "Bot pictures chat ID", placeholder: "-1001234567890", numeric: true},
	{key: "REDIS_URL", label: "Redis URL (empty for the local file store)", placeholder: "redis://localhost:6379/0"},
}

// Model is the bubbletea state of the setup wizard.
type Model struct {
	current   int
	fields    []*field
	submitted bool
	err       error
	path      string
}

type field struct {
	fieldDef
	input textinput.Model
}

var (
	focusedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func NewSetup(path string) *Model {
	m := &Model{path: path}
	for _, def := range fieldDefs {
		ti := textinput.New()
		ti.Placeholder = def.placeholder
		if def.secret {
			ti.EchoMode = textinput.EchoPassword
		}
		if v := os.Getenv(def.key); v != "" {
			ti.SetValue(v)
		}
		m.fields = append(m.fields, &field{fieldDef: def, input: ti})
	}
	m.fields[0].input.Focus()
	return m
}

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "tab", "down":
			m.focus(m.current + 1)
			return m, nil
		case "shift+tab", "up":
			m.focus(m.current - 1)
			return m, nil
		case "enter":
			if m.current == len(m.fields)-1 {
				return m, m.submit
			}
			m.focus(m.current + 1)
			return m, nil
		}
	case submitMsg:
		m.submitted = true
		return m, tea.Quit
	case errorMsg:
		m.err = msg.err
		return m, nil
	}

	f := m.fields[m.current]
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return m, cmd
}

func (m *Model) focus(i int) {
	m.fields[m.current].input.Blur()
	m.current = (i + len(m.fields)) % len(m.fields)
	m.fields[m.current].input.Focus()
}

func (m *Model) View() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("gchat setup") + "\n\n")
	if m.err != nil {
		s.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n\n")
	}
	s.WriteString(mutedStyle.Render(fmt.Sprintf("Step %d of %d", m.current+1, len(m.fields))) + "\n\n")

	for i, f := range m.fields {
		switch {
		case i == m.current:
			s.WriteString(focusedStyle.Render("→ "+f.label) + "\n  " + f.input.View() + "\n")
		case f.input.Value() != "":
			s.WriteString(mutedStyle.Render("✓") + " " + f.label + "\n")
		case f.required:
			s.WriteString(mutedStyle.Render("○ "+f.label) + "\n")
		default:
			s.WriteString(mutedStyle.Render("◌ "+f.label+" (optional)") + "\n")
		}
	}
	s.WriteString("\n" + mutedStyle.Render("↑/↓ Navigate | Enter: Next | Ctrl+C: Quit"))
	return s.String()
}

type submitMsg struct{}

type errorMsg struct{ err error }

func (m *Model) submit() tea.Msg {
	values := make(map[string]string, len(m.fields))
	for _, f := range m.fields {
		values[f.key] = strings.TrimSpace(f.input.Value())
	}
	if err := validate(values); err != nil {
		return errorMsg{err}
	}
	if err := writeEnv(m.path, values); err != nil {
		return errorMsg{err}
	}
	return submitMsg{}
}

func validate(values map[string]string) error {
	for _, def := range fieldDefs {
		v := values[def.key]
		if def.required && v == "" {
			return fmt.Errorf("'%s' is required", def.label)
		}
		if v != "" && def.numeric {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				return fmt.Errorf("'%s' must be numeric", def.label)
			}
		}
	}
	return nil
}

// writeEnv merges values into the env file at path, keeping unrelated keys.
func writeEnv(path string, values map[string]string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read %s: %w", path, err)
		}
		env = map[string]string{}
	}
	for k, v := range values {
		if v == "" {
			continue
		}
		env[k] = v
		os.Setenv(k, v)
	}
	if err := godotenv.Write(env, path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// configured reports whether the credentials needed to start are present.
func configured() bool {
	for _, def := range fieldDefs {
		if def.required && os.Getenv(def.key) == "" {
			return false
		}
	}
	return true
}

// InteractiveSetup offers the wizard when Telegram credentials are missing.
func InteractiveSetup() error {
	if configured() {
		return nil
	}

	fmt.Print("\nRun configuration setup? (y/n): ")
	var response string
	fmt.Scanln(&response)
	if strings.ToLower(strings.TrimSpace(response)) != "y" {
		return nil
	}

	final, err := tea.NewProgram(NewSetup(EnvFile)).Run()
	if err != nil {
		return fmt.Errorf("setup wizard failed: %w", err)
	}
	if !final.(*Model).submitted {
		return errors.New("setup was cancelled")
	}
	return nil
}
