// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func newChatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open an interactive chat window",
		Long: `Open an interactive chat window against the dialog server.

Slash commands inside the chat:
  /reset    clear the conversation context
  /context  show the server's context summary
  /quit     leave the chat`,
		Run: runChatCommand,
	}
}

func runChatCommand(_ *cobra.Command, _ []string) {
	m := newChatModel(loadSessionID())
	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if cm, ok := final.(chatModel); ok && cm.sessionID != "" {
		saveSessionID(cm.sessionID)
	}
}

// =============================================================================
// Chat Model
// =============================================================================

var (
	userStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	noteStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	contextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// turnMsg delivers a finished background turn to the UI loop.
type turnMsg struct {
	resp turnResponse
	err  error
}

// resetMsg delivers a finished reset.
type resetMsg struct {
	resp resetResponse
	err  error
}

type chatModel struct {
	viewport  viewport.Model
	input     textinput.Model
	spin      spinner.Model
	sessionID string
	summary   string
	lines     []string
	waiting   bool
	ready     bool
}

func newChatModel(sessionID string) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask about a course..."
	ti.Focus()
	ti.CharLimit = 500

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return chatModel{
		input:     ti,
		spin:      sp,
		sessionID: sessionID,
		lines: []string{
			noteStyle.Render("Chatalogue - campus course assistant. /quit to leave."),
		},
	}
}

func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// Reserve two lines for the input and status row.
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-3)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 3
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.waiting {
				return m, nil
			}
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.SetValue("")
			return m.submit(text)
		}

	case turnMsg:
		m.waiting = false
		if msg.err != nil {
			m.appendLine(errStyle.Render("error: " + msg.err.Error()))
			return m, nil
		}
		m.sessionID = msg.resp.SessionID
		m.summary = msg.resp.ContextSummary
		m.appendLine(botStyle.Render("chatalogue: ") + msg.resp.Answer)
		return m, nil

	case resetMsg:
		m.waiting = false
		if msg.err != nil {
			m.appendLine(errStyle.Render("error: " + msg.err.Error()))
			return m, nil
		}
		m.summary = msg.resp.ContextSummary
		m.appendLine(noteStyle.Render("context cleared"))
		return m, nil

	case spinner.TickMsg:
		if m.waiting {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit handles one line of user input, slash commands included. The
// turn itself runs on a background command while the UI keeps animating
// the typing indicator.
func (m chatModel) submit(text string) (tea.Model, tea.Cmd) {
	switch text {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/context":
		summary := m.summary
		if summary == "" {
			summary = "No active context"
		}
		m.appendLine(contextStyle.Render("[" + summary + "]"))
		return m, nil
	case "/reset":
		if m.sessionID == "" {
			m.appendLine(noteStyle.Render("nothing to reset yet"))
			return m, nil
		}
		m.waiting = true
		id := m.sessionID
		return m, tea.Batch(m.spin.Tick, func() tea.Msg {
			resp, err := sendReset(id)
			return resetMsg{resp: resp, err: err}
		})
	}

	m.appendLine(userStyle.Render("you: ") + text)
	m.waiting = true
	id := m.sessionID
	return m, tea.Batch(m.spin.Tick, func() tea.Msg {
		resp, err := sendTurn(text, id)
		return turnMsg{resp: resp, err: err}
	})
}

func (m *chatModel) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.refresh()
}

func (m *chatModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func (m chatModel) View() string {
	if !m.ready {
		return "starting..."
	}
	status := ""
	if m.waiting {
		status = m.spin.View() + " typing..."
	}
	return m.viewport.View() + "\n" + m.input.View() + "\n" + noteStyle.Render(status)
}
