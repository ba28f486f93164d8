package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rory-hayes/payslip-buddy-ai/constants"
	"github.com/rory-hayes/payslip-buddy-ai/internal/anomaly"
	"github.com/rory-hayes/payslip-buddy-ai/internal/common"
	"github.com/rory-hayes/payslip-buddy-ai/internal/extract"
	"github.com/rory-hayes/payslip-buddy-ai/internal/llm"
	"github.com/rory-hayes/payslip-buddy-ai/internal/merge"
	"github.com/rory-hayes/payslip-buddy-ai/internal/repository"
)

// fakeStore is an in-memory pipeline.Store for executor tests. Guarded by a
// mutex so worker tests can drive it from several goroutines.
type fakeStore struct {
	mu        sync.Mutex
	jobs      map[string]*repository.Job
	files     map[string]*repository.File
	payslips  []repository.Payslip
	anomalies []anomaly.Anomaly
	events    []string
	enqueued  []constants.JobKind
	nextID    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:  map[string]*repository.Job{},
		files: map[string]*repository.File{},
	}
}

func (f *fakeStore) addJob(kind constants.JobKind, userID, fileID string, meta map[string]any) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addJobLocked(kind, userID, fileID, meta)
}

func (f *fakeStore) addJobLocked(kind constants.JobKind, userID, fileID string, meta map[string]any) string {
	f.nextID++
	id := fmt.Sprintf("job-%d", f.nextID)
	f.jobs[id] = &repository.Job{
		ID: id, UserID: userID, FileID: fileID,
		Kind: kind, Status: constants.JobQueued, Meta: meta,
	}
	return id
}

func (f *fakeStore) GetJob(_ context.Context, jobID string) (*repository.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeStore) ClaimJob(_ context.Context, jobID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok || j.Status != constants.JobQueued {
		return false, nil
	}
	j.Status = constants.JobRunning
	return true, nil
}

func (f *fakeStore) FinishJob(_ context.Context, jobID string, status constants.JobStatus, meta map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.jobs[jobID]
	j.Status = status
	j.Meta = meta
	return nil
}

func (f *fakeStore) FailJob(_ context.Context, jobID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.jobs[jobID]
	j.Status = constants.JobFailed
	j.Error = message
	return nil
}

func (f *fakeStore) EnqueueJob(_ context.Context, userID, fileID string, kind constants.JobKind, meta map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, kind)
	return f.addJobLocked(kind, userID, fileID, meta), nil
}

func (f *fakeStore) NextQueuedJobs(_ context.Context, limit int) ([]repository.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Job
	for _, j := range f.jobs {
		if j.Status == constants.JobQueued && len(out) < limit {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (f *fakeStore) GetFile(_ context.Context, fileID string) (*repository.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[fileID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return file, nil
}

func (f *fakeStore) ListFilePaths(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, file := range f.files {
		if file.UserID == userID {
			out = append(out, file.StoragePath)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteFiles(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, file := range f.files {
		if file.UserID == userID {
			delete(f.files, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) InsertPayslip(_ context.Context, p *repository.Payslip) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == "" {
		p.ID = fmt.Sprintf("payslip-%d", len(f.payslips)+1)
	}
	if p.CreatedAt == "" {
		p.CreatedAt = fmt.Sprintf("2024-03-%02dT00:00:00Z", len(f.payslips)+1)
	}
	f.payslips = append(f.payslips, *p)
	return p.ID, nil
}

func (f *fakeStore) GetPayslipByFile(_ context.Context, fileID string) (*repository.Payslip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.payslips {
		if f.payslips[i].FileID == fileID {
			return &f.payslips[i], nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeStore) PayslipHistory(_ context.Context, userID, beforeCreatedAt string, limit int) ([]repository.Payslip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Payslip
	for i := len(f.payslips) - 1; i >= 0 && len(out) < limit; i-- {
		p := f.payslips[i]
		if p.UserID != userID {
			continue
		}
		if beforeCreatedAt != "" && p.CreatedAt >= beforeCreatedAt {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) ListPayslips(_ context.Context, userID string) ([]repository.Payslip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Payslip
	for _, p := range f.payslips {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) DeletePayslips(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.payslips))
	f.payslips = nil
	return n, nil
}

func (f *fakeStore) InsertAnomaly(_ context.Context, userID, payslipID string, a anomaly.Anomaly) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.anomalies = append(f.anomalies, a)
	return nil
}

func (f *fakeStore) DeleteAnomalies(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.anomalies))
	f.anomalies = nil
	return n, nil
}

func (f *fakeStore) AppendEvent(_ context.Context, userID, eventType string, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	return nil
}

func (f *fakeStore) DeleteEvents(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.events))
	f.events = nil
	return n, nil
}

func (f *fakeStore) DeleteUsage(_ context.Context, userID string) (int64, error) { return 0, nil }

func (f *fakeStore) BuildDossier(_ context.Context, userID string) (*repository.Dossier, error) {
	return &repository.Dossier{}, nil
}

// Collaborator fakes.

type fakeSource struct {
	data map[string][]byte
}

func (s *fakeSource) Fetch(_ context.Context, path string) ([]byte, error) {
	data, ok := s.data[path]
	if !ok {
		return nil, common.ErrNotFound
	}
	return data, nil
}

type fakeText struct {
	text string
}

func (f fakeText) Extract(context.Context, []byte) (extract.Text, error) {
	return extract.Text{Raw: f.text, HasText: strings.TrimSpace(f.text) != ""}, nil
}

type fakeOCR struct {
	text   string
	called bool
}

func (f *fakeOCR) ExtractOCR(context.Context, []byte, extract.OCROptions) (string, error) {
	f.called = true
	return f.text, nil
}

type fakeVision struct {
	payload *llm.Extraction
	err     error
	called  bool
}

func (f *fakeVision) ExtractPayslip(context.Context, llm.ExtractRequest) (*llm.Extraction, llm.Usage, error) {
	f.called = true
	return f.payload, llm.Usage{}, f.err
}

const richText = `ACME LTD   HMRC Copy
Gross Pay   2,000.00
Net Pay     1,400.00
Income Tax  400.00
National Insurance 150.00
Pension     50.00
Tax Code: 1257L
Paid in GBP`

func newExtractExecutor(store *fakeStore) (*ExtractExecutor, *fakeOCR, *fakeVision) {
	store.files["f1"] = &repository.File{ID: "f1", UserID: "u1", StoragePath: "u1/payslip.pdf"}
	ocr := &fakeOCR{}
	vision := &fakeVision{}
	return &ExtractExecutor{
		Store:      store,
		Source:     &fakeSource{data: map[string][]byte{"u1/payslip.pdf": []byte("%PDF-1.7")}},
		Scanner:    NoopScanner{},
		Text:       fakeText{text: richText},
		OCR:        ocr,
		Vision:     vision,
		Dispatcher: &QueueDispatcher{Store: store},
	}, ocr, vision
}

func TestExtractJobNativeOnly(t *testing.T) {
	store := newFakeStore()
	exec, ocr, vision := newExtractExecutor(store)
	vision.err = errors.New("provider down")
	jobID := store.addJob(constants.JobExtract, "u1", "f1", nil)

	if err := exec.Run(context.Background(), jobID); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	job := store.jobs[jobID]
	if job.Status != constants.JobDone {
		t.Fatalf("status = %s (error %q), want done", job.Status, job.Error)
	}
	if ocr.called {
		t.Fatal("OCR must not run when the text layer is rich")
	}
	if len(store.payslips) != 1 {
		t.Fatalf("payslips = %d, want 1", len(store.payslips))
	}
	p := store.payslips[0]
	if p.Record.ConfidenceOverall != 0.90 {
		t.Fatalf("confidence = %v, want the native score 0.90", p.Record.ConfidenceOverall)
	}
	if p.ReviewRequired {
		t.Fatal("a clean native extraction must not need review")
	}
	if len(store.enqueued) != 1 || store.enqueued[0] != constants.JobDetectAnomalies {
		t.Fatalf("follow-up jobs = %v, want one detect_anomalies", store.enqueued)
	}
	if len(store.events) != 1 || store.events[0] != "extract_complete" {
		t.Fatalf("events = %v", store.events)
	}
	if job.Meta["llm_used"] != false {
		t.Fatalf("llm_used = %v, want false after degradation", job.Meta["llm_used"])
	}
}

func TestExtractJobLLMConfidencePassesThrough(t *testing.T) {
	store := newFakeStore()
	exec, _, vision := newExtractExecutor(store)
	vision.payload = &llm.Extraction{
		Country:           "UK",
		Currency:          "GBP",
		Gross:             2000,
		Net:               1400,
		TaxIncome:         400,
		NiPrsi:            150,
		PensionEmployee:   50,
		ConfidenceOverall: 0.93,
	}
	jobID := store.addJob(constants.JobExtract, "u1", "f1", nil)

	if err := exec.Run(context.Background(), jobID); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := store.payslips[0].Record.ConfidenceOverall; got != 0.93 {
		t.Fatalf("confidence = %v, want the payload's 0.93 verbatim", got)
	}
}

func TestExtractJobSpendCapDegrades(t *testing.T) {
	store := newFakeStore()
	exec, _, vision := newExtractExecutor(store)
	vision.err = llm.ErrSpendCapExceeded
	jobID := store.addJob(constants.JobExtract, "u1", "f1", nil)

	if err := exec.Run(context.Background(), jobID); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	job := store.jobs[jobID]
	if job.Status != constants.JobDone {
		t.Fatalf("status = %s, the cap must degrade, not fail", job.Status)
	}
	if job.Meta["llm_used"] != false {
		t.Fatal("llm_used must be false when the cap blocked the call")
	}
}

func TestExtractJobOCRFallback(t *testing.T) {
	store := newFakeStore()
	exec, ocr, vision := newExtractExecutor(store)
	exec.Text = fakeText{text: ""} // scanned document, no text layer
	ocr.text = richText
	vision.err = errors.New("disabled for this test")
	jobID := store.addJob(constants.JobExtract, "u1", "f1", nil)

	if err := exec.Run(context.Background(), jobID); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !ocr.called {
		t.Fatal("OCR must run when the text layer is empty")
	}
	job := store.jobs[jobID]
	if job.Meta["used_ocr"] != true {
		t.Fatalf("used_ocr = %v, want true", job.Meta["used_ocr"])
	}
	p := store.payslips[0]
	if p.Record.ConfidenceOverall != 0.90 {
		t.Fatalf("confidence = %v, want 0.90 for six OCR-derived fields", p.Record.ConfidenceOverall)
	}
}

func TestExtractJobIdempotentOnTerminalJob(t *testing.T) {
	store := newFakeStore()
	exec, _, _ := newExtractExecutor(store)
	jobID := store.addJob(constants.JobExtract, "u1", "f1", nil)
	store.jobs[jobID].Status = constants.JobDone

	if err := exec.Run(context.Background(), jobID); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(store.payslips) != 0 {
		t.Fatal("a terminal job must not re-persist")
	}
	if len(store.enqueued) != 0 {
		t.Fatal("a terminal job must not re-dispatch")
	}
}

func TestExtractJobMissingFileFails(t *testing.T) {
	store := newFakeStore()
	exec, _, _ := newExtractExecutor(store)
	jobID := store.addJob(constants.JobExtract, "u1", "missing", nil)

	if err := exec.Run(context.Background(), jobID); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	job := store.jobs[jobID]
	if job.Status != constants.JobFailed || job.Error != "File not found" {
		t.Fatalf("unexpected job: %+v", job)
	}
}

type rejectScanner struct{}

func (rejectScanner) Scan(context.Context, []byte) error { return common.ErrMalicious }

func TestExtractJobMaliciousFileFails(t *testing.T) {
	store := newFakeStore()
	exec, _, _ := newExtractExecutor(store)
	exec.Scanner = rejectScanner{}
	jobID := store.addJob(constants.JobExtract, "u1", "f1", nil)

	if err := exec.Run(context.Background(), jobID); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	job := store.jobs[jobID]
	if job.Status != constants.JobFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if len(store.payslips) != 0 {
		t.Fatal("nothing must be persisted for a rejected file")
	}
}

func TestAnomalyJob(t *testing.T) {
	store := newFakeStore()
	fnet := func(v float64) *float64 { return &v }
	for i, net := range []float64{2200, 2200} {
		store.payslips = append(store.payslips, repository.Payslip{
			ID: fmt.Sprintf("old-%d", i), UserID: "u1", FileID: fmt.Sprintf("old-f%d", i),
			Record:    repositoryRecord("ACME", fnet(net), fnet(50), "1257L"),
			CreatedAt: fmt.Sprintf("2024-01-%02dT00:00:00Z", i+1),
		})
	}
	store.payslips = append(store.payslips, repository.Payslip{
		ID: "current", UserID: "u1", FileID: "f-current",
		Record:    repositoryRecord("ACME", fnet(1900), fnet(0), "1257L"),
		CreatedAt: "2024-02-01T00:00:00Z",
	})

	exec := &AnomalyExecutor{Store: store}
	jobID := store.addJob(constants.JobDetectAnomalies, "u1", "f-current", nil)
	if err := exec.Run(context.Background(), jobID); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	job := store.jobs[jobID]
	if job.Status != constants.JobDone {
		t.Fatalf("status = %s (error %q)", job.Status, job.Error)
	}
	if len(store.anomalies) != 2 {
		t.Fatalf("anomalies = %+v, want net drop and missing pension", store.anomalies)
	}
	if store.anomalies[0].Type != constants.AnomalyNetDrop || store.anomalies[1].Type != constants.AnomalyMissingPension {
		t.Fatalf("unexpected findings: %+v", store.anomalies)
	}
	if job.Meta["anomalies"] != 2 {
		t.Fatalf("meta = %v", job.Meta)
	}
	if len(store.events) != 1 || store.events[0] != "anomalies_detected" {
		t.Fatalf("events = %v", store.events)
	}
}

func TestAnomalyJobPayslipMissing(t *testing.T) {
	store := newFakeStore()
	exec := &AnomalyExecutor{Store: store}
	jobID := store.addJob(constants.JobDetectAnomalies, "u1", "no-such-file", nil)

	if err := exec.Run(context.Background(), jobID); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if store.jobs[jobID].Status != constants.JobFailed {
		t.Fatalf("status = %s, want failed", store.jobs[jobID].Status)
	}
}

func repositoryRecord(employer string, net, pension *float64, taxCode string) merge.Record {
	return merge.Record{
		EmployerName:    employer,
		Net:             net,
		PensionEmployee: pension,
		TaxCode:         taxCode,
	}
}
