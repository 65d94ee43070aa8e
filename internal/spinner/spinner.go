// Package spinner shows a one-line progress indicator while the atlas builder
// runs. Builder output piped through Writer() replaces the status text, so the
// terminal shows the latest line instead of scrolling.
package spinner

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const defaultWidth = 80

var (
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	titleStyle   = lipgloss.NewStyle().Bold(true)
	statusStyle  = lipgloss.NewStyle().Faint(true)
)

// IsTerminal reports whether w is a terminal the spinner can redraw.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Spinner displays a title, the elapsed time, and the latest line written
// to Writer().
type Spinner struct {
	title   string
	reader  *io.PipeReader
	writer  *io.PipeWriter
	lineCh  chan string
	done    chan struct{}
	stop    sync.Once
	wg      sync.WaitGroup
	output  io.Writer
}

// New creates a Spinner that draws to output (os.Stderr when nil).
func New(output io.Writer, title string) *Spinner {
	if output == nil {
		output = os.Stderr
	}

	reader, writer := io.Pipe()
	return &Spinner{
		title:  title,
		reader: reader,
		writer: writer,
		lineCh: make(chan string, 100),
		done:   make(chan struct{}),
		output: output,
	}
}

// Writer returns the io.Writer that builder output should be copied to.
func (s *Spinner) Writer() io.Writer {
	return s.writer
}

// Start draws the spinner until Stop is called. It blocks, so run it in its
// own goroutine.
func (s *Spinner) Start() error {
	s.wg.Add(1)
	go s.readLines()

	width := defaultWidth
	if f, ok := s.output.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			width = w
		}
	}

	program := tea.NewProgram(newModel(s.title, s.lineCh, s.done, width, time.Now()),
		tea.WithOutput(s.output),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)

	_, err := program.Run()
	s.wg.Wait()

	return err
}

// Stop clears the spinner line. It is safe to call more than once.
func (s *Spinner) Stop() {
	s.stop.Do(func() {
		_ = s.writer.Close()
		close(s.done)
	})
}

func (s *Spinner) readLines() {
	defer s.wg.Done()
	defer s.reader.Close()

	scanner := bufio.NewScanner(s.reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case s.lineCh <- line:
		case <-s.done:
			return
		}
	}
}

type model struct {
	spinner  spinner.Model
	title    string
	status   string
	started  time.Time
	now      time.Time
	width    int
	lineCh   <-chan string
	done     <-chan struct{}
	quitting bool
}

type lineMsg string

func newModel(title string, lineCh <-chan string, done <-chan struct{}, width int, started time.Time) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return model{
		spinner: s,
		title:   title,
		started: started,
		now:     started,
		width:   width,
		lineCh:  lineCh,
		done:    done,
	}
}

// Init implements tea.Model.
//
//nolint:gocritic // hugeParam: tea.Model interface requires value receiver
func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForLine(m.lineCh, m.done))
}

// Update implements tea.Model.
//
//nolint:gocritic // hugeParam: tea.Model interface requires value receiver
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case lineMsg:
		m.status = string(msg)
		return m, waitForLine(m.lineCh, m.done)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.now = msg.Time
		return m, cmd

	case tea.QuitMsg:
		m.quitting = true
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
//
//nolint:gocritic // hugeParam: tea.Model interface requires value receiver
func (m model) View() string {
	if m.quitting {
		return ""
	}

	head := fmt.Sprintf("%s (%s)", m.title, m.elapsed())
	// spinner glyph, two spaces, and the separator
	room := m.width - len(head) - 5
	view := m.spinner.View() + " " + titleStyle.Render(head)
	if m.status != "" && room > 10 {
		view += " " + statusStyle.Render(truncate(m.status, room))
	}
	return view
}

func (m model) elapsed() time.Duration {
	return m.now.Sub(m.started).Truncate(time.Second)
}

// waitForLine delivers the next status line, or quits once done is closed.
func waitForLine(lineCh <-chan string, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case line := <-lineCh:
			return lineMsg(line)
		case <-done:
			return tea.Quit()
		}
	}
}

// truncate shortens s to maxWidth, ending with "..." when cut.
func truncate(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return ""
	}
	if len(s) <= maxWidth {
		return s
	}
	return s[:maxWidth-3] + "..."
}
