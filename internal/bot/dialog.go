package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dgallion1/docmap/internal/outline"
	"github.com/dgallion1/docmap/internal/parser"
	"github.com/dgallion1/docmap/internal/pipeline"
	"github.com/dgallion1/docmap/internal/session"
)

// Dialog steps.
const (
	StepIdle         = ""
	StepWaitingFile  = "waiting_for_file"
	StepWaitingTitle = "waiting_for_title"
	StepWaitingDepth = "waiting_for_depth"
	StepWaitingModel = "waiting_for_llm"
	StepProcessing   = "processing"
)

// State data keys.
const (
	keyFileID   = "file_id"
	keyFileName = "file_name"
	keyKind     = "kind"
	keyTitle    = "title"
	keyDepth    = "depth"
	keyModel    = "model"
)

const (
	textGreeting     = "Привет! Я превращаю документы и фото в интеллект-карты. Нажми «📄 Создать карту», чтобы начать."
	textMenu         = "Главное меню:"
	textCancelled    = "Сценарий отменён."
	textAskFile      = "Загрузи файл или фото документа."
	textNeedFile     = "Пожалуйста, загрузи файл или фото."
	textTooLarge     = "Файл слишком большой. Попробуй файл поменьше."
	textAskTitle     = "Файл принят. Введи название карты."
	textAskDepth     = "Выбери глубину анализа\n\nКратко: только ключевые идеи\nСредне: сбалансированная, с основными пунктами\nПодробно: подробная карта"
	textAskModel     = "Выбери модель LLM:"
	textAnalyzing    = "🧠 Анализирую документ..."
	textStructuring  = "🗺 Формирую структуру..."
	textSaving       = "☁️ Сохраняю..."
	textBusy         = "⏳ Карта ещё строится, подожди немного."
	textExtractError = "❌ Не удалось распознать документ. Попробуй ещё раз."
	textSaveError    = "❌ Не удалось сохранить карту. Попробуй ещё раз."
	textBackToMenu   = "Возврат в меню:"
	textHistoryEmpty = "История пуста."
	textHistory      = "📚 Твои карты:"
	textNotFound     = "Карта не найдена."
	textNoStructure  = "Нет данных по структуре."
	textInternal     = "Что-то пошло не так. Попробуй ещё раз."
)

// maxPreviewRunes keeps the result message under the chat message limit.
const maxPreviewRunes = 3500

// Pipeline is the part of pipeline.Service the dialog drives.
type Pipeline interface {
	Extract(ctx context.Context, in parser.Input) (string, error)
	Generate(ctx context.Context, text string, opts pipeline.Options) outline.Outline
	Publish(ctx context.Context, userID string, out outline.Outline, opts pipeline.Options) (session.MapRecord, error)
}

type DialogConfig struct {
	// WebsiteHost serves the mini app index page.
	WebsiteHost    string
	ModelLabels    []string
	MaxUploadBytes int64
}

// Dialog is the per-user conversation state machine.
type Dialog struct {
	pipe   Pipeline
	maps   session.MapStore
	states session.StateStore
	msg    Messenger
	log    *slog.Logger

	host      string
	models    []string
	maxUpload int64
	locks     *userLocks
}

func NewDialog(pipe Pipeline, maps session.MapStore, states session.StateStore, msg Messenger, cfg DialogConfig, log *slog.Logger) *Dialog {
	return &Dialog{
		pipe:      pipe,
		maps:      maps,
		states:    states,
		msg:       msg,
		log:       log,
		host:      cfg.WebsiteHost,
		models:    cfg.ModelLabels,
		maxUpload: cfg.MaxUploadBytes,
		locks:     newUserLocks(),
	}
}

func userKey(id int64) string { return strconv.FormatInt(id, 10) }

// Handle processes one update. Updates from the same user run one at a
// time; different users proceed independently. While a map is being built,
// plain messages are answered at once instead of queuing behind the lock.
func (d *Dialog) Handle(ctx context.Context, up Update) {
	log := d.log.With("user_id", up.UserID)
	if d.processing(ctx, log, up) {
		d.send(ctx, log, Message{ChatID: up.ChatID, Text: textBusy})
		return
	}

	unlock := d.locks.lock(up.UserID)
	defer unlock()

	if err := d.handle(ctx, log, up); err != nil {
		log.Error("update failed", "error", err)
		d.send(ctx, log, Message{ChatID: up.ChatID, Text: textInternal})
	}
}

func (d *Dialog) handle(ctx context.Context, log *slog.Logger, up Update) error {
	user := userKey(up.UserID)

	if up.Callback != nil {
		return d.handleCallback(ctx, log, up)
	}

	switch command(up.Text) {
	case "/start":
		return d.resetTo(ctx, log, up, textGreeting)
	case "/menu":
		return d.resetTo(ctx, log, up, textMenu)
	case "/cancel":
		return d.resetTo(ctx, log, up, textCancelled)
	}

	st, err := d.states.GetState(ctx, user)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	switch st.Step {
	case StepWaitingFile:
		return d.onFile(ctx, log, up)
	case StepWaitingTitle:
		return d.onTitle(ctx, log, up, st)
	case StepWaitingDepth:
		return d.onDepth(ctx, log, up, st)
	case StepWaitingModel:
		return d.onModel(ctx, log, up, st)
	case StepProcessing:
		d.send(ctx, log, Message{ChatID: up.ChatID, Text: textBusy})
		return nil
	}

	switch strings.TrimSpace(up.Text) {
	case btnCreate:
		if err := d.states.SetState(ctx, user, session.State{Step: StepWaitingFile}); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
		d.send(ctx, log, Message{ChatID: up.ChatID, Text: textAskFile, Keyboard: &Keyboard{Remove: true}})
	case btnHistory:
		return d.showHistory(ctx, log, up)
	}
	return nil
}

// processing reports whether up is a plain message from a user whose map
// is still being built. Commands and callbacks always go through.
func (d *Dialog) processing(ctx context.Context, log *slog.Logger, up Update) bool {
	if up.Callback != nil || command(up.Text) != "" {
		return false
	}
	st, err := d.states.GetState(ctx, userKey(up.UserID))
	if err != nil {
		log.Warn("peek state failed", "error", err)
		return false
	}
	return st.Step == StepProcessing
}

// command returns the leading /command of text without any @botname.
func command(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd)
}

func (d *Dialog) resetTo(ctx context.Context, log *slog.Logger, up Update, text string) error {
	user := userKey(up.UserID)
	if err := d.states.ClearState(ctx, user); err != nil {
		return fmt.Errorf("clear state: %w", err)
	}
	d.send(ctx, log, Message{ChatID: up.ChatID, Text: text, Keyboard: d.mainMenu(d.lastURL(ctx, log, user))})
	return nil
}

func (d *Dialog) onFile(ctx context.Context, log *slog.Logger, up Update) error {
	file, kind := up.Document, parser.KindDocument
	if file == nil {
		file, kind = up.Photo, parser.KindImage
	}
	if file == nil {
		d.send(ctx, log, Message{ChatID: up.ChatID, Text: textNeedFile})
		return nil
	}
	if d.maxUpload > 0 && file.Size > d.maxUpload {
		d.send(ctx, log, Message{ChatID: up.ChatID, Text: textTooLarge})
		return nil
	}

	next := session.State{Step: StepWaitingTitle, Data: map[string]string{
		keyFileID:   file.ID,
		keyFileName: file.Name,
		keyKind:     kind.String(),
	}}
	if err := d.states.SetState(ctx, userKey(up.UserID), next); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	log.Info("file accepted", "kind", kind.String(), "filename", file.Name, "size", file.Size)
	d.send(ctx, log, Message{ChatID: up.ChatID, Text: textAskTitle, Keyboard: titleKeyboard()})
	return nil
}

func (d *Dialog) onTitle(ctx context.Context, log *slog.Logger, up Update, st session.State) error {
	title := strings.TrimSpace(up.Text)
	if title == btnAutoTitle {
		title = ""
	}
	st = withData(st, StepWaitingDepth, keyTitle, title)
	if err := d.states.SetState(ctx, userKey(up.UserID), st); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	d.send(ctx, log, Message{ChatID: up.ChatID, Text: textAskDepth, Keyboard: column(outline.DepthLabels)})
	return nil
}

func (d *Dialog) onDepth(ctx context.Context, log *slog.Logger, up Update, st session.State) error {
	depth := outline.ParseDepth(up.Text)
	st = withData(st, StepWaitingModel, keyDepth, string(depth))
	if err := d.states.SetState(ctx, userKey(up.UserID), st); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	d.send(ctx, log, Message{ChatID: up.ChatID, Text: textAskModel, Keyboard: column(d.models)})
	return nil
}

func (d *Dialog) onModel(ctx context.Context, log *slog.Logger, up Update, st session.State) error {
	user := userKey(up.UserID)
	st = withData(st, StepProcessing, keyModel, strings.TrimSpace(up.Text))
	if err := d.states.SetState(ctx, user, st); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	defer func() {
		// The run may outlive a cancelled update context; the user must
		// not be left in processing.
		if err := d.states.ClearState(context.WithoutCancel(ctx), user); err != nil {
			log.Warn("clear state failed", "error", err)
		}
	}()

	opts := pipeline.Options{
		Depth: outline.Depth(st.Data[keyDepth]),
		Model: st.Data[keyModel],
		Title: st.Data[keyTitle],
	}
	log = log.With("depth", string(opts.Depth), "model", opts.Model)

	status, err := d.msg.Send(ctx, Message{ChatID: up.ChatID, Text: textAnalyzing, Keyboard: &Keyboard{Remove: true}})
	if err != nil {
		log.Warn("send status failed", "error", err)
	}

	in, err := d.loadInput(ctx, st)
	if err == nil {
		var text string
		text, err = d.pipe.Extract(ctx, in)
		if err == nil {
			return d.finish(ctx, log, up, status, text, opts)
		}
	}
	log.Error("extraction failed", "error", err)
	d.dropStatus(ctx, log, up.ChatID, status)
	d.send(ctx, log, Message{ChatID: up.ChatID, Text: textExtractError, Keyboard: d.mainMenu(d.lastURL(ctx, log, user))})
	return nil
}

func (d *Dialog) finish(ctx context.Context, log *slog.Logger, up Update, status int, text string, opts pipeline.Options) error {
	user := userKey(up.UserID)

	d.editStatus(ctx, log, up.ChatID, status, textStructuring)
	out := d.pipe.Generate(ctx, text, opts)

	d.editStatus(ctx, log, up.ChatID, status, textSaving)
	rec, err := d.pipe.Publish(ctx, user, out, opts)
	d.dropStatus(ctx, log, up.ChatID, status)
	if err != nil {
		log.Error("publish failed", "error", err)
		d.send(ctx, log, Message{ChatID: up.ChatID, Text: textSaveError, Keyboard: d.mainMenu(d.lastURL(ctx, log, user))})
		return nil
	}

	d.send(ctx, log, Message{
		ChatID:   up.ChatID,
		Text:     resultText(out),
		HTML:     true,
		Keyboard: d.openMapKeyboard(rec.URL),
	})
	d.send(ctx, log, Message{ChatID: up.ChatID, Text: textBackToMenu, Keyboard: d.mainMenu(rec.URL)})
	return nil
}

func (d *Dialog) loadInput(ctx context.Context, st session.State) (parser.Input, error) {
	fileID := st.Data[keyFileID]
	if fileID == "" {
		return parser.Input{}, nil
	}
	data, err := d.msg.Download(ctx, fileID)
	if err != nil {
		return parser.Input{}, fmt.Errorf("download file: %w", err)
	}
	return parser.Input{
		Data:     data,
		Filename: st.Data[keyFileName],
		Kind:     parser.ParseKind(st.Data[keyKind]),
	}, nil
}

func (d *Dialog) showHistory(ctx context.Context, log *slog.Logger, up Update) error {
	maps, err := d.maps.List(ctx, userKey(up.UserID))
	if err != nil {
		return fmt.Errorf("list maps: %w", err)
	}
	if len(maps) == 0 {
		d.send(ctx, log, Message{ChatID: up.ChatID, Text: textHistoryEmpty})
		return nil
	}
	d.send(ctx, log, Message{ChatID: up.ChatID, Text: textHistory, Keyboard: d.historyKeyboard(maps)})
	return nil
}

func (d *Dialog) handleCallback(ctx context.Context, log *slog.Logger, up Update) error {
	defer func() {
		if err := d.msg.AnswerCallback(ctx, up.Callback.ID); err != nil {
			log.Warn("answer callback failed", "error", err)
		}
	}()

	raw, ok := strings.CutPrefix(up.Callback.Data, openMapPrefix)
	if !ok {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		d.send(ctx, log, Message{ChatID: up.ChatID, Text: textNotFound})
		return nil
	}

	rec, err := d.maps.Get(ctx, userKey(up.UserID), id)
	if errors.Is(err, session.ErrNotFound) {
		d.send(ctx, log, Message{ChatID: up.ChatID, Text: textNotFound})
		return nil
	}
	if err != nil {
		return fmt.Errorf("get map: %w", err)
	}
	d.send(ctx, log, Message{ChatID: up.ChatID, Text: RecordText(rec)})
	return nil
}

// RecordText redisplays a stored map as an indented bullet list.
func RecordText(rec session.MapRecord) string {
	body := textNoStructure
	if lines := outline.Flatten(rec.Nodes, "• "); len(lines) > 0 {
		body = strings.Join(lines, "\n")
	}
	return fmt.Sprintf("🗺 %s\nГлубина: %s\n\n%s", rec.Title, outline.Depth(rec.Depth).Label(), body)
}

func resultText(out outline.Outline) string {
	return fmt.Sprintf("✅ <b>Карта готова: %s</b>\n\n<code>%s</code>",
		html.EscapeString(out.Title), html.EscapeString(clip(out.Markdown, maxPreviewRunes)))
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "\n…"
}

func withData(st session.State, step, key, value string) session.State {
	data := make(map[string]string, len(st.Data)+1)
	for k, v := range st.Data {
		data[k] = v
	}
	data[key] = value
	return session.State{Step: step, Data: data}
}

func (d *Dialog) lastURL(ctx context.Context, log *slog.Logger, user string) string {
	rec, err := d.maps.Last(ctx, user)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			log.Warn("load last map failed", "error", err)
		}
		return ""
	}
	return rec.URL
}

func (d *Dialog) send(ctx context.Context, log *slog.Logger, msg Message) {
	if _, err := d.msg.Send(ctx, msg); err != nil {
		log.Warn("send failed", "error", err)
	}
}

func (d *Dialog) editStatus(ctx context.Context, log *slog.Logger, chatID int64, id int, text string) {
	if id == 0 {
		return
	}
	if err := d.msg.Edit(ctx, chatID, id, text); err != nil {
		log.Debug("edit status failed", "error", err)
	}
}

func (d *Dialog) dropStatus(ctx context.Context, log *slog.Logger, chatID int64, id int) {
	if id == 0 {
		return
	}
	if err := d.msg.Delete(ctx, chatID, id); err != nil {
		log.Debug("delete status failed", "error", err)
	}
}
