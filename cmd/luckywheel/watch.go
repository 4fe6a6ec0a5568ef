package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lox/luckywheel/internal/server"
)

// WatchCmd attaches a read-only terminal view to a running server
type WatchCmd struct {
	URL string `kong:"default='ws://localhost:8080/ws',help='WebSocket URL of the server'"`
}

func (c *WatchCmd) Run() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.URL, nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", c.URL, err)
	}
	defer conn.Close()

	// Spectators authenticate with a throwaway identity; it only exists
	// so the server will start streaming broadcast events.
	auth, err := server.NewMessage(server.MessageTypeAuth, server.AuthData{
		UserID: "spectator-" + uuid.New().String()[:8],
	}, time.Now())
	if err != nil {
		return err
	}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	p := tea.NewProgram(newWatchModel(), tea.WithAltScreen())

	go func() {
		for {
			var msg server.Message
			if err := conn.ReadJSON(&msg); err != nil {
				p.Send(disconnectedMsg{err: err})
				return
			}
			p.Send(serverMsg{msg: msg})
		}
	}()

	_, err = p.Run()
	return err
}

type serverMsg struct{ msg server.Message }
type disconnectedMsg struct{ err error }

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	phaseStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	winnerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	barStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	errMsgStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	borderStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 2)
	maxBarLength = 24
)

type watchModel struct {
	round        server.RoundUpdateData
	phase        server.PhaseUpdateData
	distribution server.BetDistributionData
	winner       *server.RoundWinnerData
	lastError    string
	disconnected bool
}

func newWatchModel() watchModel {
	return watchModel{}
}

func (m watchModel) Init() tea.Cmd { return nil }

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case disconnectedMsg:
		m.disconnected = true
		return m, nil

	case serverMsg:
		m.apply(msg.msg)
		return m, nil
	}
	return m, nil
}

func (m *watchModel) apply(msg server.Message) {
	switch msg.Type {
	case server.MessageTypeRoundUpdate:
		var data server.RoundUpdateData
		if json.Unmarshal(msg.Data, &data) == nil {
			m.round = data
			if data.Status == "BETTING" {
				// New betting window clears the last round's artifacts.
				m.winner = nil
				m.distribution = server.BetDistributionData{}
				m.lastError = ""
			}
		}

	case server.MessageTypePhaseUpdate:
		var data server.PhaseUpdateData
		if json.Unmarshal(msg.Data, &data) == nil {
			m.phase = data
		}

	case server.MessageTypeBetDistribution:
		var data server.BetDistributionData
		if json.Unmarshal(msg.Data, &data) == nil {
			m.distribution = data
		}

	case server.MessageTypeRoundWinner:
		var data server.RoundWinnerData
		if json.Unmarshal(msg.Data, &data) == nil {
			m.winner = &data
		}

	case server.MessageTypeError:
		var data server.ErrorData
		if json.Unmarshal(msg.Data, &data) == nil {
			m.lastError = fmt.Sprintf("%s: %s", data.Code, data.Message)
		}
	}
}

func (m watchModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("luckywheel"))
	b.WriteString("\n\n")

	if m.disconnected {
		b.WriteString(errMsgStyle.Render("disconnected from server"))
		b.WriteString("\n\n" + dimStyle.Render("press q to quit") + "\n")
		return borderStyle.Render(b.String())
	}

	if m.round.RoundNumber == 0 {
		b.WriteString(dimStyle.Render("waiting for round data..."))
		b.WriteString("\n\n" + dimStyle.Render("press q to quit") + "\n")
		return borderStyle.Render(b.String())
	}

	b.WriteString(fmt.Sprintf("round %d  %s",
		m.round.RoundNumber,
		phaseStyle.Render(m.round.Status)))
	if m.phase.SecondsRemaining > 0 && m.phase.RoundNumber == m.round.RoundNumber {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %ds", m.phase.SecondsRemaining)))
	}
	b.WriteString("\n\n")

	b.WriteString(m.renderDistribution())

	if m.winner != nil {
		b.WriteString("\n")
		b.WriteString(winnerStyle.Render(fmt.Sprintf("winner: %d (%s)", m.winner.Outcome, m.winner.Parity)))
		b.WriteString("\n")
	}
	if m.lastError != "" {
		b.WriteString("\n")
		b.WriteString(errMsgStyle.Render(m.lastError))
		b.WriteString("\n")
	}

	b.WriteString("\n" + dimStyle.Render("press q to quit") + "\n")
	return borderStyle.Render(b.String())
}

func (m watchModel) renderDistribution() string {
	if len(m.distribution.Distribution) == 0 {
		return dimStyle.Render("no wagers yet") + "\n"
	}

	maxCount := 0
	for _, stat := range m.distribution.Distribution {
		if stat.Count > maxCount {
			maxCount = stat.Count
		}
	}

	var b strings.Builder
	for _, stat := range m.distribution.Distribution {
		bar := ""
		if maxCount > 0 && stat.Count > 0 {
			width := stat.Count * maxBarLength / maxCount
			if width == 0 {
				width = 1
			}
			bar = barStyle.Render(strings.Repeat("█", width))
		}
		marker := " "
		if m.winner != nil && m.winner.Outcome == stat.Outcome {
			marker = winnerStyle.Render("★")
		}
		b.WriteString(fmt.Sprintf("%s %d %s %s\n",
			marker, stat.Outcome, bar, dimStyle.Render(fmt.Sprintf("%d bets / %s", stat.Count, stat.Amount))))
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("total: %d wagers, %s wagered",
		m.distribution.TotalWagers, m.distribution.TotalAmount)))
	b.WriteString("\n")
	return b.String()
}
