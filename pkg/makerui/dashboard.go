// Package makerui renders the live task dashboard: a Bubble Tea program
// driven by the engine's coalesced Notifier snapshots, in the teacher's
// tea.NewProgram idiom (pkg/console/spinner.go).
package makerui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/makercode/maker/pkg/console"
	"github.com/makercode/maker/pkg/engine/model"
)

// Dashboard is a Bubble Tea model that renders the active session's DAG
// as it progresses, exiting automatically once every step reaches a
// terminal status.
type Dashboard struct {
	snapshots <-chan model.Snapshot
	latest    model.Snapshot
	quit      func()
	done      bool
}

// New builds a Dashboard over a Subscribe() channel. quit is called once
// when the dashboard decides to exit (on completion or user interrupt),
// so the caller can release the subscription.
func New(snapshots <-chan model.Snapshot, quit func()) Dashboard {
	return Dashboard{snapshots: snapshots, quit: quit}
}

type snapshotMsg model.Snapshot

func (d Dashboard) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-d.snapshots
		if !ok {
			return snapshotMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (d Dashboard) Init() tea.Cmd {
	return d.waitForSnapshot()
}

func (d Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case snapshotMsg:
		d.latest = model.Snapshot(m)
		if d.sessionDone() {
			d.done = true
			if d.quit != nil {
				d.quit()
			}
			return d, tea.Quit
		}
		return d, d.waitForSnapshot()
	case tea.KeyMsg:
		if m.String() == "ctrl+c" || m.String() == "q" {
			if d.quit != nil {
				d.quit()
			}
			return d, tea.Quit
		}
	}
	return d, nil
}

func (d Dashboard) sessionDone() bool {
	session := d.latest.Sessions[d.latest.ActiveSessionID]
	if session == nil {
		return false
	}
	return session.AllTerminal() && !session.IsPlanning
}

func (d Dashboard) View() string {
	session := d.latest.Sessions[d.latest.ActiveSessionID]
	if session == nil {
		return "waiting for a task...\n"
	}

	var b strings.Builder
	b.WriteString(console.FormatSectionHeader(fmt.Sprintf("Task %s", session.TaskID)))
	b.WriteString("\n")
	b.WriteString(session.OriginalPrompt)
	b.WriteString("\n\n")

	total := session.TotalSteps()
	completed := session.CompletedSteps()
	if total > 0 {
		bar := console.NewProgressBar(int64(total))
		b.WriteString(bar.Update(int64(completed)))
		b.WriteString("\n\n")
	}

	rows := make([][]string, 0, total)
	for _, step := range session.Decomposition {
		rows = append(rows, []string{step.ID, string(step.Status), step.FileTarget, fmt.Sprintf("%.2f", step.RiskScore)})
	}
	b.WriteString(console.RenderTable(console.TableConfig{
		Title:   "Steps",
		Headers: []string{"ID", "Status", "Target", "Risk"},
		Rows:    rows,
	}))

	if session.ErrorCount > 0 {
		b.WriteString(console.FormatWarningMessage(fmt.Sprintf("%d error(s) recorded\n", session.ErrorCount)))
	}
	b.WriteString("\n(press q to detach)\n")
	return b.String()
}
