package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docmap/internal/outline"
	"github.com/dgallion1/docmap/internal/parser"
	"github.com/dgallion1/docmap/internal/pipeline"
	"github.com/dgallion1/docmap/internal/session"
)

type fakeMessenger struct {
	mu       sync.Mutex
	sent     []Message
	edits    []string
	deleted  []int
	answered []string
	files    map[string][]byte
	nextID   int
}

func (f *fakeMessenger) Send(_ context.Context, msg Message) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	f.nextID++
	return f.nextID, nil
}

func (f *fakeMessenger) Edit(_ context.Context, _ int64, _ int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeMessenger) Delete(_ context.Context, _ int64, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeMessenger) Download(_ context.Context, id string) ([]byte, error) {
	data, ok := f.files[id]
	if !ok {
		return nil, errors.New("no such file")
	}
	return data, nil
}

func (f *fakeMessenger) AnswerCallback(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, id)
	return nil
}

func (f *fakeMessenger) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.Text)
	}
	return out
}

func (f *fakeMessenger) last() Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

type fakePipeline struct {
	maps       session.MapStore
	extractErr error
	onExtract  func()
	gotInput   parser.Input
	gotOpts    pipeline.Options
}

func (p *fakePipeline) Extract(_ context.Context, in parser.Input) (string, error) {
	if p.onExtract != nil {
		p.onExtract()
	}
	p.gotInput = in
	if p.extractErr != nil {
		return "", p.extractErr
	}
	return string(in.Data), nil
}

func (p *fakePipeline) Generate(_ context.Context, text string, opts pipeline.Options) outline.Outline {
	p.gotOpts = opts
	title := opts.Title
	if title == "" {
		title = "Авто"
	}
	return outline.New(title, []outline.Node{{Title: text, Children: []outline.Node{{Title: "<деталь>"}}}})
}

func (p *fakePipeline) Publish(ctx context.Context, userID string, out outline.Outline, opts pipeline.Options) (session.MapRecord, error) {
	rec := session.MapRecord{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     out.Title,
		Depth:     string(opts.Depth),
		Model:     opts.Model,
		Nodes:     out.Nodes,
		Markdown:  out.Markdown,
		URL:       "https://bucket.example/index.html?file=generated_maps%2Fx.md",
		CreatedAt: time.Now(),
	}
	return rec, p.maps.Put(ctx, rec)
}

func newTestDialog(t *testing.T) (*Dialog, *fakeMessenger, *fakePipeline, *session.Memory) {
	t.Helper()
	store := session.NewMemory()
	msg := &fakeMessenger{files: map[string][]byte{"f1": []byte("Главная тема")}}
	pipe := &fakePipeline{maps: store}
	d := NewDialog(pipe, store, store, msg, DialogConfig{
		WebsiteHost:    "site.example",
		ModelLabels:    []string{"YandexGPT", "GPT-4.1 mini"},
		MaxUploadBytes: 1024,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return d, msg, pipe, store
}

func text(s string) Update { return Update{UserID: 7, ChatID: 70, Text: s} }

func TestDialogFullFlow(t *testing.T) {
	ctx := context.Background()
	d, msg, pipe, store := newTestDialog(t)

	d.Handle(ctx, text("/start"))
	assert.Equal(t, textGreeting, msg.last().Text)

	d.Handle(ctx, text(btnCreate))
	assert.Equal(t, textAskFile, msg.last().Text)
	assert.True(t, msg.last().Keyboard.Remove)

	d.Handle(ctx, text("просто текст"))
	assert.Equal(t, textNeedFile, msg.last().Text)

	d.Handle(ctx, Update{UserID: 7, ChatID: 70, Document: &File{ID: "f1", Name: "notes.txt", Size: 20}})
	assert.Equal(t, textAskTitle, msg.last().Text)

	d.Handle(ctx, text("Моя карта"))
	assert.Equal(t, textAskDepth, msg.last().Text)
	require.Len(t, msg.last().Keyboard.Rows, 3)

	d.Handle(ctx, text("Подробно"))
	assert.Equal(t, textAskModel, msg.last().Text)

	d.Handle(ctx, text("GPT-4.1 mini"))

	assert.Equal(t, "notes.txt", pipe.gotInput.Filename)
	assert.Equal(t, parser.KindDocument, pipe.gotInput.Kind)
	assert.Equal(t, pipeline.Options{Depth: outline.DepthDetailed, Model: "GPT-4.1 mini", Title: "Моя карта"}, pipe.gotOpts)
	assert.Equal(t, []string{textStructuring, textSaving}, msg.edits)
	assert.NotEmpty(t, msg.deleted)

	texts := msg.texts()
	result := texts[len(texts)-2]
	assert.Contains(t, result, "<b>Карта готова: Моя карта</b>")
	assert.Contains(t, result, "&lt;деталь&gt;")
	assert.Equal(t, textBackToMenu, texts[len(texts)-1])

	st, err := store.GetState(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, StepIdle, st.Step)

	maps, err := store.List(ctx, "7")
	require.NoError(t, err)
	require.Len(t, maps, 1)
	assert.Equal(t, "detailed", maps[0].Depth)
}

func TestDialogAutoTitleAndPhoto(t *testing.T) {
	ctx := context.Background()
	d, msg, pipe, _ := newTestDialog(t)

	d.Handle(ctx, text(btnCreate))
	d.Handle(ctx, Update{UserID: 7, ChatID: 70, Photo: &File{ID: "f1", Name: "f1.jpg", Size: 10}})
	d.Handle(ctx, text(btnAutoTitle))
	d.Handle(ctx, text("Кратко"))
	d.Handle(ctx, text("YandexGPT"))

	assert.Equal(t, parser.KindImage, pipe.gotInput.Kind)
	assert.Empty(t, pipe.gotOpts.Title)
	assert.Equal(t, outline.DepthBrief, pipe.gotOpts.Depth)
	assert.Equal(t, textBackToMenu, msg.last().Text)
}

func TestDialogRejectsLargeFile(t *testing.T) {
	ctx := context.Background()
	d, msg, _, store := newTestDialog(t)

	d.Handle(ctx, text(btnCreate))
	d.Handle(ctx, Update{UserID: 7, ChatID: 70, Document: &File{ID: "big", Name: "big.pdf", Size: 4096}})
	assert.Equal(t, textTooLarge, msg.last().Text)

	st, err := store.GetState(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, StepWaitingFile, st.Step)
}

func TestDialogExtractionError(t *testing.T) {
	ctx := context.Background()
	d, msg, pipe, store := newTestDialog(t)
	pipe.extractErr = errors.New("ocr down")

	d.Handle(ctx, text(btnCreate))
	d.Handle(ctx, Update{UserID: 7, ChatID: 70, Document: &File{ID: "f1", Name: "a.pdf", Size: 1}})
	d.Handle(ctx, text("t"))
	d.Handle(ctx, text("Средне"))
	d.Handle(ctx, text("YandexGPT"))

	assert.Equal(t, textExtractError, msg.last().Text)
	maps, err := store.List(ctx, "7")
	require.NoError(t, err)
	assert.Empty(t, maps)

	st, err := store.GetState(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, StepIdle, st.Step)
}

func TestDialogCancelResetsState(t *testing.T) {
	ctx := context.Background()
	d, msg, _, store := newTestDialog(t)

	d.Handle(ctx, text(btnCreate))
	d.Handle(ctx, text("/cancel"))
	assert.Equal(t, textCancelled, msg.last().Text)
	menu := msg.last().Keyboard
	require.Len(t, menu.Rows, 3)
	assert.Equal(t, "https://site.example/index.html", menu.Rows[2][0].WebAppURL)

	st, err := store.GetState(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, StepIdle, st.Step)

	d.Handle(ctx, text("/menu@docmap_bot"))
	assert.Equal(t, textMenu, msg.last().Text)
}

func TestDialogBusyWhileProcessing(t *testing.T) {
	ctx := context.Background()
	d, msg, _, store := newTestDialog(t)
	require.NoError(t, store.SetState(ctx, "7", session.State{Step: StepProcessing}))

	d.Handle(ctx, text("привет"))
	assert.Equal(t, textBusy, msg.last().Text)
}

// ctxStates fails state writes once the context is done, like a network
// backend would.
type ctxStates struct {
	session.StateStore
}

func (s ctxStates) SetState(ctx context.Context, userID string, st session.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.StateStore.SetState(ctx, userID, st)
}

func (s ctxStates) ClearState(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.StateStore.ClearState(ctx, userID)
}

func advanceToModel(t *testing.T, ctx context.Context, d *Dialog) {
	t.Helper()
	d.Handle(ctx, text(btnCreate))
	d.Handle(ctx, Update{UserID: 7, ChatID: 70, Document: &File{ID: "f1", Name: "notes.txt", Size: 20}})
	d.Handle(ctx, text("Заметки"))
	d.Handle(ctx, text("Кратко"))
}

func TestDialogClearsStateWhenContextCancelledMidRun(t *testing.T) {
	store := session.NewMemory()
	msg := &fakeMessenger{files: map[string][]byte{"f1": []byte("тема")}}
	pipe := &fakePipeline{maps: store}
	d := NewDialog(pipe, store, ctxStates{store}, msg, DialogConfig{WebsiteHost: "site.example"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	advanceToModel(t, ctx, d)

	pipe.onExtract = cancel
	d.Handle(ctx, text("YandexGPT"))

	st, err := store.GetState(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, StepIdle, st.Step)
}

func TestDialogAnswersBusyWithoutWaitingForRun(t *testing.T) {
	ctx := context.Background()
	d, msg, pipe, _ := newTestDialog(t)
	advanceToModel(t, ctx, d)

	entered := make(chan struct{})
	release := make(chan struct{})
	pipe.onExtract = func() {
		close(entered)
		<-release
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Handle(ctx, text("YandexGPT"))
	}()
	<-entered

	d.Handle(ctx, text("ну что там?"))
	assert.Contains(t, msg.texts(), textBusy)

	close(release)
	<-done
	assert.Equal(t, textBackToMenu, msg.last().Text)
}

func TestDialogIgnoresUnknownIdleText(t *testing.T) {
	d, msg, _, _ := newTestDialog(t)
	d.Handle(context.Background(), text("что это"))
	assert.Empty(t, msg.texts())
}

func TestDialogHistoryAndCallback(t *testing.T) {
	ctx := context.Background()
	d, msg, _, store := newTestDialog(t)

	d.Handle(ctx, text(btnHistory))
	assert.Equal(t, textHistoryEmpty, msg.last().Text)

	rec := session.MapRecord{
		ID:     uuid.New(),
		UserID: "7",
		Title:  "План",
		Depth:  "brief",
		Nodes:  []outline.Node{{Title: "Цели", Children: []outline.Node{{Title: "Рост"}}}},
		URL:    "https://x.example/m.md",
	}
	require.NoError(t, store.Put(ctx, rec))

	d.Handle(ctx, text(btnHistory))
	last := msg.last()
	assert.Equal(t, textHistory, last.Text)
	require.True(t, last.Keyboard.Inline)
	require.Len(t, last.Keyboard.Rows, 1)
	row := last.Keyboard.Rows[0]
	require.Len(t, row, 2)
	assert.Equal(t, "https://x.example/m.md", row[0].WebAppURL)
	assert.Equal(t, openMapPrefix+rec.ID.String(), row[1].Data)

	d.Handle(ctx, Update{UserID: 7, ChatID: 70, Callback: &Callback{ID: "cb1", Data: row[1].Data}})
	assert.Equal(t, "🗺 План\nГлубина: Кратко\n\n• Цели\n  • Рост", msg.last().Text)
	assert.Equal(t, []string{"cb1"}, msg.answered)

	d.Handle(ctx, Update{UserID: 7, ChatID: 70, Callback: &Callback{ID: "cb2", Data: openMapPrefix + uuid.NewString()}})
	assert.Equal(t, textNotFound, msg.last().Text)

	// Other users cannot open the record.
	d.Handle(ctx, Update{UserID: 8, ChatID: 80, Callback: &Callback{ID: "cb3", Data: row[1].Data}})
	assert.Equal(t, textNotFound, msg.last().Text)
}

func TestRecordTextWithoutNodes(t *testing.T) {
	got := RecordText(session.MapRecord{Title: "Пусто", Depth: "balanced"})
	assert.Equal(t, "🗺 Пусто\nГлубина: Средне\n\nНет данных по структуре.", got)
}

func TestUserLocksSerializeAndRelease(t *testing.T) {
	l := newUserLocks()
	var mu sync.Mutex
	active, peak := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.lock(1)
			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, peak)
	assert.Equal(t, 0, l.size())
}

func TestReplyMarkup(t *testing.T) {
	assert.Nil(t, replyMarkup(nil))

	inline := replyMarkup(&Keyboard{Inline: true, Rows: [][]Button{{{Text: "a", WebAppURL: "https://x"}, {Text: "b", Data: "d"}}}})
	kb, ok := inline.(inlineKeyboard)
	require.True(t, ok)
	require.NotNil(t, kb.InlineKeyboard[0][0].WebApp)
	assert.Equal(t, "https://x", kb.InlineKeyboard[0][0].WebApp.URL)
	assert.Equal(t, "d", kb.InlineKeyboard[0][1].CallbackData)

	reply := replyMarkup(&Keyboard{Rows: [][]Button{{{Text: "c"}}}})
	rk, ok := reply.(replyKeyboard)
	require.True(t, ok)
	assert.True(t, rk.ResizeKeyboard)
	assert.Nil(t, rk.Keyboard[0][0].WebApp)
}
