// Package tui は文書に対して音声付きで質問できるターミナルチャットを提供する
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/jinford/doc-voicebot/internal/core/ingestion"
	"github.com/jinford/doc-voicebot/internal/core/session"
)

// SessionService はチャット画面から使うセッション操作
type SessionService interface {
	Stage(sess *session.Session, data []byte, filename string) error
	ProcessDocument(ctx context.Context, sess *session.Session) (*ingestion.FileMeta, error)
	Ask(ctx context.Context, sess *session.Session, query string) (*session.Turn, error)
	Voice(ctx context.Context, sess *session.Session, audio []byte, filename string) (*session.Turn, error)
}

type processedMsg struct {
	meta *ingestion.FileMeta
	err  error
}

type turnMsg struct {
	turn *session.Turn
	err  error
}

type playedMsg struct {
	err error
}

// Model はチャット画面の Bubble Tea モデル
type Model struct {
	ctx     context.Context
	service SessionService
	session *session.Session
	audio   AudioSink
	play    bool

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	audioPaths map[uuid.UUID]string
	status     string
	busy       bool
	ready      bool
}

// Option は Model のオプション
type Option func(*Model)

// WithAudioSink は回答音声の保存先を設定する
func WithAudioSink(sink AudioSink) Option {
	return func(m *Model) {
		m.audio = sink
	}
}

// WithAutoPlay は回答音声を保存後に再生する
func WithAutoPlay(play bool) Option {
	return func(m *Model) {
		m.play = play
	}
}

// New は新しいチャットモデルを作成する
func New(ctx context.Context, service SessionService, sess *session.Session, opts ...Option) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "質問を入力して Enter（/load <pdf>, /process, /voice <audio>, /clear, /quit）"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	m := Model{
		ctx:        ctx,
		service:    service,
		session:    sess,
		input:      ti,
		viewport:   viewport.New(0, 0),
		spinner:    sp,
		audioPaths: make(map[uuid.UUID]string),
		status:     "PDF を /load で読み込み、/process で処理してください",
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init はカーソルの点滅を開始する
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update はキー入力と非同期処理の結果を反映する
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, fh := historyBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		// ヘッダー2行 + ステータス1行 + 入力欄
		vh := msg.Height - 3 - (ih + 1) - fh
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, vh)
		m.input.Width = max(10, msg.Width-6)
		m.refreshHistory()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.Type {
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			line := strings.TrimSpace(m.input.Value())
			if line == "" {
				return m, nil
			}
			m.input.SetValue("")
			return m.handleInput(line)
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case processedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "処理に失敗しました: " + msg.err.Error()
			return m, nil
		}
		m.status = "ベクトルデータベースに保存しました: " + msg.meta.String()
		return m, nil

	case turnMsg:
		m.busy = false
		return m.handleTurn(msg)

	case playedMsg:
		if msg.err != nil {
			m.status = "再生に失敗しました: " + msg.err.Error()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleInput(line string) (tea.Model, tea.Cmd) {
	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch command {
	case "/quit", "/exit":
		return m, tea.Quit

	case "/clear":
		m.session.Log().Clear()
		m.audioPaths = make(map[uuid.UUID]string)
		m.refreshHistory()
		m.status = "会話履歴を消去しました"
		return m, nil

	case "/load":
		data, err := os.ReadFile(arg)
		if err != nil {
			m.status = "ファイルを読み込めません: " + err.Error()
			return m, nil
		}
		if err := m.service.Stage(m.session, data, filepath.Base(arg)); err != nil {
			m.status = "アップロードに失敗しました: " + err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("%s を読み込みました。/process で処理してください", filepath.Base(arg))
		return m, nil

	case "/process":
		m.busy = true
		m.status = "PDF を処理しています..."
		return m, tea.Batch(m.processCmd(), m.spinner.Tick)

	case "/voice":
		data, err := os.ReadFile(arg)
		if err != nil {
			m.status = "音声ファイルを読み込めません: " + err.Error()
			return m, nil
		}
		m.busy = true
		m.status = fmt.Sprintf("%s を認識しています...", m.session.CaptureKey())
		return m, tea.Batch(m.voiceCmd(data, filepath.Base(arg)), m.spinner.Tick)
	}

	if strings.HasPrefix(command, "/") {
		m.status = "不明なコマンドです: " + command
		return m, nil
	}

	m.busy = true
	m.status = "回答を生成しています..."
	return m, tea.Batch(m.askCmd(line), m.spinner.Tick)
}

func (m Model) handleTurn(msg turnMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.status = "Error: " + msg.err.Error()
		return m, nil
	}
	if msg.turn == nil {
		m.status = "音声を認識できませんでした"
		return m, nil
	}
	if msg.turn.Record == nil {
		// 失敗した回答は履歴に残らないのでステータスに出す
		m.status = msg.turn.Text()
		return m, nil
	}

	m.status = "回答しました"
	var cmd tea.Cmd
	if m.audio != nil {
		path, err := m.audio.Save(*msg.turn.Record)
		if err != nil {
			m.status = "音声を保存できませんでした: " + err.Error()
		} else {
			m.audioPaths[msg.turn.Record.ID] = path
			if m.play {
				cmd = m.playCmd(path)
			}
		}
	}
	m.refreshHistory()
	return m, cmd
}

func (m Model) processCmd() tea.Cmd {
	ctx, svc, sess := m.ctx, m.service, m.session
	return func() tea.Msg {
		meta, err := svc.ProcessDocument(ctx, sess)
		return processedMsg{meta: meta, err: err}
	}
}

func (m Model) askCmd(query string) tea.Cmd {
	ctx, svc, sess := m.ctx, m.service, m.session
	return func() tea.Msg {
		turn, err := svc.Ask(ctx, sess, query)
		return turnMsg{turn: turn, err: err}
	}
}

func (m Model) voiceCmd(data []byte, filename string) tea.Cmd {
	ctx, svc, sess := m.ctx, m.service, m.session
	return func() tea.Msg {
		turn, err := svc.Voice(ctx, sess, data, filename)
		return turnMsg{turn: turn, err: err}
	}
}

func (m Model) playCmd(path string) tea.Cmd {
	ctx, sink := m.ctx, m.audio
	return func() tea.Msg {
		return playedMsg{err: sink.Play(ctx, path)}
	}
}

func (m *Model) refreshHistory() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m Model) renderHistory() string {
	records := m.session.Log().All()
	if len(records) == 0 {
		return mutedStyle.Render("まだ会話はありません")
	}

	var sb strings.Builder
	for i, r := range records {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(userStyle.Render("You: "))
		sb.WriteString(r.Query)
		sb.WriteString("\n")
		sb.WriteString(botStyle.Render("Bot: "))
		sb.WriteString(r.Answer)
		sb.WriteString("\n")
		if path, ok := m.audioPaths[r.ID]; ok {
			sb.WriteString(mutedStyle.Render("♪ " + path))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (m Model) header() string {
	title := titleStyle.Render("Document Voicebot")
	info := "文書: 未処理"
	if meta, ok := m.session.Document().Get(); ok {
		info = "文書: " + meta.String()
	}
	if upload, ok := m.session.Upload().Get(); ok && !m.session.Processed() {
		info += fmt.Sprintf("（未処理: %s）", upload.Name)
	}
	return title + "\n" + mutedStyle.Render(info+"  collection="+m.session.Collection())
}

// View は画面を描画する
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.header(),
		historyBoxStyle.Render(m.viewport.View()),
		inputBoxStyle.Render(m.input.View()),
		status,
	)
}

var (
	titleStyle      = lipgloss.NewStyle().Bold(true)
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	spinnerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	historyBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
