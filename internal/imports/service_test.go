package imports_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gbp-politico/backend/internal/eleitores"
	"github.com/gbp-politico/backend/internal/imports"
	"github.com/gbp-politico/backend/internal/ingest"
	"github.com/gbp-politico/backend/internal/models"
	"github.com/gbp-politico/backend/internal/uploadhistory"
)

type fakeHistory struct {
	mu            sync.Mutex
	runs          map[uuid.UUID]*models.UploadHistory
	progress      []models.Progress
	expired       int64
	failSuccess   error
	failProgress  error
	errorMessages []string
	markErrCtxErr error
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{runs: map[uuid.UUID]*models.UploadHistory{}}
}

func (f *fakeHistory) FindSuccess(_ context.Context, empresaID uuid.UUID, fileName string) (*models.UploadHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.runs {
		if h.EmpresaID == empresaID && h.ArquivoNome == fileName && h.Status == models.UploadSuccess {
			return h, nil
		}
	}
	return nil, nil
}

func (f *fakeHistory) ExpireStale(_ context.Context, empresaID uuid.UUID, fileName string, before time.Time, message string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, h := range f.runs {
		if h.EmpresaID == empresaID && h.ArquivoNome == fileName && h.Status == models.UploadInProgress && h.UpdatedAt.Before(before) {
			h.Status = models.UploadError
			h.ErroMensagem = &message
			n++
		}
	}
	f.expired += n
	return n, nil
}

func (f *fakeHistory) Create(_ context.Context, empresaID uuid.UUID, fileName string) (*models.UploadHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.runs {
		if h.EmpresaID == empresaID && h.ArquivoNome == fileName && h.Status == models.UploadInProgress {
			return nil, uploadhistory.ErrLocked
		}
	}
	now := time.Now().UTC()
	h := &models.UploadHistory{ID: uuid.New(), EmpresaID: empresaID, ArquivoNome: fileName,
		Status: models.UploadInProgress, CreatedAt: now, UpdatedAt: now}
	f.runs[h.ID] = h
	return h, nil
}

func (f *fakeHistory) GetByID(_ context.Context, empresaID, id uuid.UUID) (*models.UploadHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.runs[id]
	if !ok || h.EmpresaID != empresaID {
		return nil, uploadhistory.ErrNotFound
	}
	return h, nil
}

func (f *fakeHistory) ListSuccess(_ context.Context, empresaID uuid.UUID) ([]*models.UploadHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []*models.UploadHistory
	for _, h := range f.runs {
		if h.EmpresaID == empresaID && h.Status == models.UploadSuccess {
			list = append(list, h)
		}
	}
	return list, nil
}

// owned returns the run only when it belongs to empresaID, like the empresa_id filter in SQL.
func (f *fakeHistory) owned(empresaID, id uuid.UUID) *models.UploadHistory {
	h, ok := f.runs[id]
	if !ok || h.EmpresaID != empresaID {
		return nil
	}
	return h
}

func (f *fakeHistory) UpdateProgress(_ context.Context, empresaID, id uuid.UUID, total, processed int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failProgress != nil {
		return f.failProgress
	}
	h := f.owned(empresaID, id)
	if h == nil {
		return nil
	}
	h.RegistrosTotal, h.RegistrosProcessados = total, processed
	f.progress = append(f.progress, models.NewProgress(total, processed))
	return nil
}

func (f *fakeHistory) SetObjectKey(_ context.Context, empresaID, id uuid.UUID, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h := f.owned(empresaID, id); h != nil {
		h.ObjectKey = &key
	}
	return nil
}

func (f *fakeHistory) MarkSuccess(_ context.Context, empresaID, id uuid.UUID, total, processed, failed int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSuccess != nil {
		return f.failSuccess
	}
	h := f.owned(empresaID, id)
	if h == nil || h.Status != models.UploadInProgress {
		return uploadhistory.ErrNotRunning
	}
	h.Status = models.UploadSuccess
	h.RegistrosTotal, h.RegistrosProcessados, h.RegistrosErro = total, processed, failed
	return nil
}

func (f *fakeHistory) MarkError(ctx context.Context, empresaID, id uuid.UUID, message string, total, processed int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markErrCtxErr = ctx.Err()
	h := f.owned(empresaID, id)
	if h == nil || h.Status != models.UploadInProgress {
		return uploadhistory.ErrNotRunning
	}
	h.Status = models.UploadError
	h.ErroMensagem = &message
	h.RegistrosTotal, h.RegistrosProcessados = total, processed
	f.errorMessages = append(f.errorMessages, message)
	return nil
}

func (f *fakeHistory) run(id uuid.UUID) *models.UploadHistory {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs[id]
}

type fakeRecords struct {
	mu       sync.Mutex
	batches  [][]models.Eleitor
	failAt   int // 1-based batch number that fails; 0 never fails
	onInsert func(batch int)
	inTx     bool
	rolled   bool
}

func (f *fakeRecords) InsertBatch(_ context.Context, rows []models.Eleitor) (int64, error) {
	f.mu.Lock()
	n := len(f.batches) + 1
	if f.failAt == n {
		f.mu.Unlock()
		return 0, errors.New("connection reset")
	}
	f.batches = append(f.batches, append([]models.Eleitor(nil), rows...))
	hook := f.onInsert
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return int64(len(rows)), nil
}

func (f *fakeRecords) InTx(_ context.Context, fn func(eleitores.BatchWriter) error) error {
	f.inTx = true
	if err := fn(f); err != nil {
		f.mu.Lock()
		f.batches = nil
		f.rolled = true
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeRecords) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

type fakeNotifier struct {
	mu       sync.Mutex
	progress []models.Progress
	statuses []models.UploadStatus
}

func (f *fakeNotifier) ImportProgress(_, _ uuid.UUID, p models.Progress) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, p)
}

func (f *fakeNotifier) HistoryChanged(_, _ uuid.UUID, status models.UploadStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
}

func csvRows(n int) string {
	var b strings.Builder
	b.WriteString("nome,cpf,telefone,cidade\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Eleitor %d,123.456.789-%02d,(81) 3333-%04d,Recife\n", i, i%100, i)
	}
	return b.String()
}

// planilhaRows writes the header layout campaign offices export.
func planilhaRows(n int) string {
	var b strings.Builder
	b.WriteString("Nome,CPF,Data Nascimento,WhatsApp\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Eleitor %d,123.456.789-%02d,%02d/03/1990,(81) 99999-%04d\n", i, i%100, i%28+1, i)
	}
	return b.String()
}

func newService(h *fakeHistory, r *fakeRecords, n imports.Notifier, cfg imports.Config) *imports.Service {
	return imports.NewService(h, r, n, cfg, zap.NewNop())
}

func TestImportWritesBatchesAndReportsProgress(t *testing.T) {
	t.Parallel()

	h, r, n := newFakeHistory(), &fakeRecords{}, &fakeNotifier{}
	svc := newService(h, r, n, imports.Config{BatchSize: 100})
	empresaID := uuid.New()

	res, err := svc.Import(context.Background(), empresaID, "base.csv", strings.NewReader(planilhaRows(250)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(r.batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(r.batches))
	}
	sizes := []int{len(r.batches[0]), len(r.batches[1]), len(r.batches[2])}
	if sizes[0] != 100 || sizes[1] != 100 || sizes[2] != 50 {
		t.Fatalf("expected batch sizes 100/100/50, got %v", sizes)
	}

	wantPercents := []int{40, 80, 100}
	if len(n.progress) != len(wantPercents) {
		t.Fatalf("expected %d progress events, got %d", len(wantPercents), len(n.progress))
	}
	for i, p := range n.progress {
		if p.Percent != wantPercents[i] || p.Total != 250 {
			t.Fatalf("progress %d: expected %d%% of 250, got %+v", i, wantPercents[i], p)
		}
	}

	run := h.run(res.Run.ID)
	if run.Status != models.UploadSuccess {
		t.Fatalf("expected success, got %s", run.Status)
	}
	if run.RegistrosTotal != 250 || run.RegistrosProcessados != 250 {
		t.Fatalf("expected 250/250, got %d/%d", run.RegistrosTotal, run.RegistrosProcessados)
	}
	if res.Run.Batches != 3 {
		t.Fatalf("expected 3 batches on result, got %d", res.Run.Batches)
	}

	first := r.batches[0][0]
	if first.EmpresaID != empresaID || first.UploadID == nil || *first.UploadID != res.Run.ID {
		t.Fatalf("expected records stamped with empresa and run, got %+v", first.EleitorFields)
	}
	if first.Nome != "Eleitor 0" || first.CPF != "12345678900" || first.Whatsapp != "81999990000" {
		t.Fatalf("expected mapped columns, got nome=%q cpf=%q whatsapp=%q", first.Nome, first.CPF, first.Whatsapp)
	}
	if first.Nascimento == nil || first.Nascimento.Format("2006-01-02") != "1990-03-01" {
		t.Fatalf("expected nascimento 1990-03-01, got %v", first.Nascimento)
	}
	last := r.batches[2][49]
	if last.Nascimento == nil || last.Nascimento.Format("2006-01-02") != "1990-03-26" {
		t.Fatalf("expected nascimento 1990-03-26 on last row, got %v", last.Nascimento)
	}
	if res.Run.RowsWithIssues != 0 {
		t.Fatalf("expected clean rows, got %d with issues", res.Run.RowsWithIssues)
	}
	if got := n.statuses; len(got) != 2 || got[0] != models.UploadInProgress || got[1] != models.UploadSuccess {
		t.Fatalf("expected in_progress then success, got %v", got)
	}
}

func TestBatchCountIsCeiling(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct{ rows, batch, want int }{
		{1, 100, 1},
		{100, 100, 1},
		{101, 100, 2},
		{7, 3, 3},
	} {
		h, r := newFakeHistory(), &fakeRecords{}
		svc := newService(h, r, nil, imports.Config{BatchSize: tc.batch})
		if _, err := svc.Import(context.Background(), uuid.New(), "f.csv", strings.NewReader(csvRows(tc.rows))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(r.batches) != tc.want {
			t.Fatalf("%d rows / %d: expected %d batches, got %d", tc.rows, tc.batch, tc.want, len(r.batches))
		}
		if r.total() != tc.rows {
			t.Fatalf("expected %d records written, got %d", tc.rows, r.total())
		}
	}
}

func TestDuplicateFileRejected(t *testing.T) {
	t.Parallel()

	h, r := newFakeHistory(), &fakeRecords{}
	svc := newService(h, r, nil, imports.Config{})
	empresaID := uuid.New()
	ctx := context.Background()

	if _, err := svc.Import(ctx, empresaID, "base.csv", strings.NewReader(csvRows(2))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runsBefore := len(h.runs)

	if _, err := svc.Preview(ctx, empresaID, "base.csv", strings.NewReader(csvRows(2))); !errors.Is(err, imports.ErrDuplicateFile) {
		t.Fatalf("expected ErrDuplicateFile on preview, got %v", err)
	}
	if _, err := svc.Import(ctx, empresaID, "base.csv", strings.NewReader(csvRows(2))); !errors.Is(err, imports.ErrDuplicateFile) {
		t.Fatalf("expected ErrDuplicateFile on import, got %v", err)
	}
	if len(h.runs) != runsBefore {
		t.Fatalf("expected no new run, got %d runs", len(h.runs))
	}

	if _, err := svc.Preview(ctx, uuid.New(), "base.csv", strings.NewReader(csvRows(2))); err != nil {
		t.Fatalf("expected another empresa to be allowed, got %v", err)
	}
}

func TestBeginRejectsConcurrentRun(t *testing.T) {
	t.Parallel()

	h := newFakeHistory()
	svc := newService(h, &fakeRecords{}, nil, imports.Config{})
	empresaID := uuid.New()

	if _, err := svc.Begin(context.Background(), empresaID, "base.csv"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Begin(context.Background(), empresaID, "base.csv"); !errors.Is(err, imports.ErrImportInProgress) {
		t.Fatalf("expected ErrImportInProgress, got %v", err)
	}
}

func TestBeginExpiresStaleRun(t *testing.T) {
	t.Parallel()

	h := newFakeHistory()
	svc := newService(h, &fakeRecords{}, nil, imports.Config{StaleAfter: time.Minute})
	empresaID := uuid.New()

	stale, err := svc.Begin(context.Background(), empresaID, "base.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.run(stale.ID).UpdatedAt = time.Now().Add(-time.Hour)

	fresh, err := svc.Begin(context.Background(), empresaID, "base.csv")
	if err != nil {
		t.Fatalf("expected stale run to be replaced, got %v", err)
	}
	if fresh.ID == stale.ID {
		t.Fatalf("expected a new run")
	}
	old := h.run(stale.ID)
	if old.Status != models.UploadError || *old.ErroMensagem != models.MessageAbandoned {
		t.Fatalf("expected stale run relabeled, got %+v", old)
	}
}

func TestWriteFailureMarksRunError(t *testing.T) {
	t.Parallel()

	h, r, n := newFakeHistory(), &fakeRecords{failAt: 2}, &fakeNotifier{}
	svc := newService(h, r, n, imports.Config{BatchSize: 100})

	_, err := svc.Import(context.Background(), uuid.New(), "base.csv", strings.NewReader(csvRows(250)))
	if err == nil {
		t.Fatalf("expected error")
	}

	var run *models.UploadHistory
	for _, hr := range h.runs {
		run = hr
	}
	if run.Status != models.UploadError {
		t.Fatalf("expected error status, got %s", run.Status)
	}
	if run.ErroMensagem == nil || !strings.Contains(*run.ErroMensagem, "connection reset") {
		t.Fatalf("expected captured cause, got %v", run.ErroMensagem)
	}
	if run.RegistrosProcessados != 100 {
		t.Fatalf("expected first batch counted, got %d", run.RegistrosProcessados)
	}
	if n.statuses[len(n.statuses)-1] != models.UploadError {
		t.Fatalf("expected error notification, got %v", n.statuses)
	}
}

func TestAtomicWriteRollsBack(t *testing.T) {
	t.Parallel()

	h, r := newFakeHistory(), &fakeRecords{failAt: 3}
	svc := newService(h, r, nil, imports.Config{BatchSize: 100, Atomic: true})

	if _, err := svc.Import(context.Background(), uuid.New(), "base.csv", strings.NewReader(csvRows(250))); err == nil {
		t.Fatalf("expected error")
	}
	if !r.inTx || !r.rolled {
		t.Fatalf("expected transaction rollback")
	}
	for _, run := range h.runs {
		if run.RegistrosProcessados != 0 {
			t.Fatalf("expected 0 processed after rollback, got %d", run.RegistrosProcessados)
		}
	}
}

func TestStatusUpdateFailureIsWarning(t *testing.T) {
	t.Parallel()

	h, r := newFakeHistory(), &fakeRecords{}
	h.failSuccess = errors.New("db gone")
	svc := newService(h, r, nil, imports.Config{})

	res, err := svc.Import(context.Background(), uuid.New(), "base.csv", strings.NewReader(csvRows(5)))
	if err != nil {
		t.Fatalf("expected success with warning, got %v", err)
	}
	if res.Warning == "" {
		t.Fatalf("expected warning")
	}
	if r.total() != 5 {
		t.Fatalf("expected records kept, got %d", r.total())
	}
}

func TestProgressPersistFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	h, r := newFakeHistory(), &fakeRecords{}
	h.failProgress = errors.New("timeout")
	svc := newService(h, r, nil, imports.Config{BatchSize: 2})

	res, err := svc.Import(context.Background(), uuid.New(), "base.csv", strings.NewReader(csvRows(5)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.run(res.Run.ID).Status != models.UploadSuccess {
		t.Fatalf("expected success")
	}
}

func TestCancellationMarksRunCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newFakeHistory()
	r := &fakeRecords{onInsert: func(batch int) {
		if batch == 1 {
			cancel()
		}
	}}
	svc := newService(h, r, nil, imports.Config{BatchSize: 100})

	_, err := svc.Import(ctx, uuid.New(), "base.csv", strings.NewReader(csvRows(250)))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(r.batches) != 1 {
		t.Fatalf("expected writing to stop after 1 batch, got %d", len(r.batches))
	}
	if len(h.errorMessages) != 1 || h.errorMessages[0] != models.MessageCancelled {
		t.Fatalf("expected cancelled message, got %v", h.errorMessages)
	}
	if h.markErrCtxErr != nil {
		t.Fatalf("expected status update on a live context, got %v", h.markErrCtxErr)
	}
}

func TestPreviewShowsFirstRows(t *testing.T) {
	t.Parallel()

	svc := newService(newFakeHistory(), &fakeRecords{}, nil, imports.Config{PreviewRows: 3})

	p, err := svc.Preview(context.Background(), uuid.New(), "dir/base.csv", strings.NewReader(csvRows(10)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.FileName != "base.csv" {
		t.Fatalf("expected base name, got %q", p.FileName)
	}
	if len(p.Rows) != 3 || p.TotalRows != 10 {
		t.Fatalf("expected 3 of 10 rows, got %d of %d", len(p.Rows), p.TotalRows)
	}
}

func TestParseRejectsHeaderOnlyFile(t *testing.T) {
	t.Parallel()

	svc := newService(newFakeHistory(), &fakeRecords{}, nil, imports.Config{})
	if _, err := svc.Parse(strings.NewReader("nome,cpf\n")); !errors.Is(err, imports.ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}
	if _, err := svc.Parse(strings.NewReader("")); !errors.Is(err, ingest.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestResumeRequiresInProgressRun(t *testing.T) {
	t.Parallel()

	h := newFakeHistory()
	svc := newService(h, &fakeRecords{}, nil, imports.Config{})
	empresaID := uuid.New()
	ctx := context.Background()

	run, err := svc.Begin(ctx, empresaID, "base.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resumed, err := svc.Resume(ctx, empresaID, run.ID)
	if err != nil || resumed.FileName != "base.csv" {
		t.Fatalf("expected resumable run, got %+v, %v", resumed, err)
	}

	table, err := svc.Parse(strings.NewReader(csvRows(1)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Write(ctx, resumed, table.RawRows()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Resume(ctx, empresaID, run.ID); !errors.Is(err, imports.ErrRunNotActive) {
		t.Fatalf("expected ErrRunNotActive, got %v", err)
	}
	if _, err := svc.Resume(ctx, uuid.New(), run.ID); !errors.Is(err, imports.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestNilLoggerDefaultsToNop(t *testing.T) {
	t.Parallel()

	h, r := newFakeHistory(), &fakeRecords{}
	svc := imports.NewService(h, r, nil, imports.Config{}, nil)

	if _, err := svc.Import(context.Background(), uuid.New(), "base.csv", strings.NewReader(csvRows(3))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.failAt = 2
	if _, err := svc.Import(context.Background(), uuid.New(), "falha.csv", strings.NewReader(csvRows(3))); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPreviewDefaultsToThreeRows(t *testing.T) {
	t.Parallel()

	for _, rows := range []int{0, -1} {
		svc := newService(newFakeHistory(), &fakeRecords{}, nil, imports.Config{PreviewRows: rows})
		p, err := svc.Preview(context.Background(), uuid.New(), "base.csv", strings.NewReader(csvRows(10)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(p.Rows) != 3 {
			t.Fatalf("PreviewRows %d: expected 3 rows, got %d", rows, len(p.Rows))
		}
	}
}

func TestPreviewRejectsHeaderOnlyFile(t *testing.T) {
	t.Parallel()

	svc := newService(newFakeHistory(), &fakeRecords{}, nil, imports.Config{})
	if _, err := svc.Preview(context.Background(), uuid.New(), "base.csv", strings.NewReader("nome,cpf\n")); !errors.Is(err, imports.ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}
}

func TestDuplicateCheckedBeforeParse(t *testing.T) {
	t.Parallel()

	h := newFakeHistory()
	svc := newService(h, &fakeRecords{}, nil, imports.Config{})
	empresaID := uuid.New()
	ctx := context.Background()

	if _, err := svc.Import(ctx, empresaID, "base.csv", strings.NewReader(csvRows(2))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, body := range []string{"nome,cpf\n", ""} {
		if _, err := svc.Preview(ctx, empresaID, "base.csv", strings.NewReader(body)); !errors.Is(err, imports.ErrDuplicateFile) {
			t.Fatalf("preview %q: expected ErrDuplicateFile, got %v", body, err)
		}
		if _, err := svc.Import(ctx, empresaID, "base.csv", strings.NewReader(body)); !errors.Is(err, imports.ErrDuplicateFile) {
			t.Fatalf("import %q: expected ErrDuplicateFile, got %v", body, err)
		}
	}
}

func TestStatusUpdatesScopedToRunEmpresa(t *testing.T) {
	t.Parallel()

	h, r := newFakeHistory(), &fakeRecords{}
	svc := newService(h, r, nil, imports.Config{BatchSize: 2})
	ctx := context.Background()

	run, err := svc.Begin(ctx, uuid.New(), "base.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	owner := run.EmpresaID
	run.EmpresaID = uuid.New()

	if err := svc.AttachSource(ctx, run, "imports/base.csv"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	table, err := svc.Parse(strings.NewReader(csvRows(5)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := svc.Write(ctx, run, table.RawRows())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Warning == "" {
		t.Fatalf("expected warning when the status update matches no run")
	}

	stored := h.run(run.ID)
	if stored.EmpresaID != owner || stored.Status != models.UploadInProgress {
		t.Fatalf("expected run untouched by another empresa, got %+v", stored)
	}
	if stored.ObjectKey != nil || stored.RegistrosProcessados != 0 {
		t.Fatalf("expected no object key or progress from another empresa, got %+v", stored)
	}

	if err := svc.Abort(ctx, run, errors.New("boom")); err == nil {
		t.Fatalf("expected wrapped cause")
	}
	if h.run(run.ID).Status != models.UploadInProgress {
		t.Fatalf("expected abort from another empresa to leave the run in progress")
	}
}
