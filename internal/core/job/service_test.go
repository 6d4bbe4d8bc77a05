package job

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/polyscribe/polyscribe/internal/core/event"
	"github.com/polyscribe/polyscribe/internal/core/model"
)

type memStore struct {
	jobs  map[string]*model.Job
	files []*model.JobFile
}

func newMemStore() *memStore { return &memStore{jobs: map[string]*model.Job{}} }

func (s *memStore) CreateJob(_ context.Context, job *model.Job) error {
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *memStore) CreateJobFile(_ context.Context, file *model.JobFile) error {
	copied := *file
	s.files = append(s.files, &copied)
	return nil
}

func (s *memStore) GetJob(_ context.Context, jobID string) (*model.Job, error) {
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s not found", jobID)
	}
	copied := *job
	return &copied, nil
}

func (s *memStore) ListJobs(context.Context, int, int) ([]model.Job, error) { return nil, nil }

func (s *memStore) ListJobFiles(_ context.Context, jobID string) ([]model.JobFile, error) {
	var out []model.JobFile
	for _, f := range s.files {
		if f.JobID == jobID {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (s *memStore) ListArtifacts(context.Context, string) ([]model.Artifact, error) {
	return nil, nil
}

func (s *memStore) CancelJob(_ context.Context, jobID string) (bool, error) {
	job, ok := s.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return false, nil
	}
	job.Status = model.StatusCancelled
	return true, nil
}

type fakeDispatcher struct {
	enqueued []string
	fail     bool
}

func (d *fakeDispatcher) EnqueueJob(_ context.Context, jobID string) error {
	if d.fail {
		return errors.New("queue unavailable")
	}
	d.enqueued = append(d.enqueued, jobID)
	return nil
}

type fakeRunner struct{ runs []string }

func (r *fakeRunner) Run(_ context.Context, jobID string) error {
	r.runs = append(r.runs, jobID)
	return nil
}

type fixedThreshold int

func (t fixedThreshold) SyncSizeThresholdMB(context.Context) int { return int(t) }

func newService(store Store, dispatcher Dispatcher, runner SyncRunner, thresholdMB int) *Service {
	return NewService(store, dispatcher, runner, fixedThreshold(thresholdMB), event.NewBus(), nil)
}

func validRequest() CreateRequest {
	return CreateRequest{
		Provider:       "whisper-server",
		Model:          "small",
		SourceLanguage: "auto",
		SyncPreferred:  true,
	}
}

func smallInput() []Input {
	return []Input{{Name: "a.wav", Source: "upload", SizeBytes: 1024, StoragePath: "uploads/x/y/a.wav"}}
}

func TestCreateSmallSingleFileRunsInline(t *testing.T) {
	store := newMemStore()
	dispatcher := &fakeDispatcher{}
	runner := &fakeRunner{}
	svc := newService(store, dispatcher, runner, 10)

	job, err := svc.Create(context.Background(), validRequest(), smallInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if len(dispatcher.enqueued) != 0 {
		t.Errorf("small sync-preferred job should not be enqueued, got %v", dispatcher.enqueued)
	}
	if len(runner.runs) != 1 || runner.runs[0] != job.ID {
		t.Errorf("runs = %v, want [%s]", runner.runs, job.ID)
	}
	if len(store.files) != 1 || store.files[0].Status != model.StatusQueued {
		t.Errorf("files = %+v", store.files)
	}
}

func TestCreateQueuesWhenAsyncPreferredOrLarge(t *testing.T) {
	cases := []struct {
		name   string
		req    CreateRequest
		inputs []Input
	}{
		{
			name: "async preferred",
			req: func() CreateRequest {
				r := validRequest()
				r.SyncPreferred = false
				return r
			}(),
			inputs: smallInput(),
		},
		{
			name: "multiple files",
			req:  validRequest(),
			inputs: []Input{
				{Name: "a.wav", Source: "upload", SizeBytes: 10, StoragePath: "p1"},
				{Name: "b.wav", Source: "upload", SizeBytes: 10, StoragePath: "p2"},
			},
		},
		{
			name:   "over threshold",
			req:    validRequest(),
			inputs: []Input{{Name: "big.wav", Source: "upload", SizeBytes: 50 * 1024 * 1024, StoragePath: "p"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			dispatcher := &fakeDispatcher{}
			runner := &fakeRunner{}
			svc := newService(store, dispatcher, runner, 10)

			job, err := svc.Create(context.Background(), tc.req, tc.inputs)
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if len(dispatcher.enqueued) != 1 || dispatcher.enqueued[0] != job.ID {
				t.Errorf("enqueued = %v", dispatcher.enqueued)
			}
			if len(runner.runs) != 0 {
				t.Errorf("runner should not run when enqueue succeeds, runs = %v", runner.runs)
			}
		})
	}
}

func TestCreateFallsBackToInlineWhenEnqueueFails(t *testing.T) {
	store := newMemStore()
	dispatcher := &fakeDispatcher{fail: true}
	runner := &fakeRunner{}
	svc := newService(store, dispatcher, runner, 10)

	req := validRequest()
	req.SyncPreferred = false
	job, err := svc.Create(context.Background(), req, smallInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(runner.runs) != 1 || runner.runs[0] != job.ID {
		t.Errorf("runs = %v, want inline fallback run", runner.runs)
	}
}

func TestCreateValidation(t *testing.T) {
	store := newMemStore()
	svc := newService(store, &fakeDispatcher{}, &fakeRunner{}, 10)
	ctx := context.Background()

	if _, err := svc.Create(ctx, validRequest(), nil); err == nil {
		t.Error("zero inputs must be rejected")
	}

	req := validRequest()
	req.Formats = []string{"docx"}
	if _, err := svc.Create(ctx, req, smallInput()); err == nil {
		t.Error("unknown format must be rejected")
	}

	req = validRequest()
	req.Model = "nova-3"
	if _, err := svc.Create(ctx, req, smallInput()); err == nil {
		t.Error("wrong model for provider must be rejected")
	}

	req = validRequest()
	req.DiarizationEnabled = true
	if _, err := svc.Create(ctx, req, smallInput()); err == nil {
		t.Error("diarization on unsupporting model must be rejected")
	}
}

func TestCreateAppliesDefaultAndDedupedFormats(t *testing.T) {
	store := newMemStore()
	svc := newService(store, &fakeDispatcher{}, &fakeRunner{}, 10)
	ctx := context.Background()

	job, err := svc.Create(ctx, validRequest(), smallInput())
	if err != nil {
		t.Fatal(err)
	}
	got := store.jobs[job.ID].Options.Formats
	if len(got) != 2 || got[0] != "json" || got[1] != "txt" {
		t.Errorf("default formats = %v", got)
	}

	req := validRequest()
	req.Formats = []string{"srt", "json", "srt", "vtt"}
	job, err = svc.Create(ctx, req, smallInput())
	if err != nil {
		t.Fatal(err)
	}
	got = store.jobs[job.ID].Options.Formats
	want := []string{"srt", "json", "vtt"}
	if len(got) != len(want) {
		t.Fatalf("formats = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("formats[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCreatePersistsSubmittedOptions(t *testing.T) {
	store := newMemStore()
	svc := newService(store, &fakeDispatcher{}, &fakeRunner{}, 10)

	req := validRequest()
	req.TimestampGranularity = "word"
	req.VerboseOutput = true
	job, err := svc.Create(context.Background(), req, smallInput())
	if err != nil {
		t.Fatal(err)
	}

	opts := store.jobs[job.ID].Options
	if opts.TimestampGranularity != "word" {
		t.Errorf("timestamp granularity = %q, want word", opts.TimestampGranularity)
	}
	if !opts.VerboseOutput {
		t.Error("verbose output flag not persisted")
	}
}

func TestCancelKeepsQueuedFilesUntouched(t *testing.T) {
	store := newMemStore()
	svc := newService(store, &fakeDispatcher{}, &fakeRunner{}, 10)
	ctx := context.Background()

	req := validRequest()
	req.SyncPreferred = false
	job, err := svc.Create(ctx, req, smallInput())
	if err != nil {
		t.Fatal(err)
	}

	cancelled, err := svc.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != model.StatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}
	for _, f := range store.files {
		if f.Status != model.StatusQueued {
			t.Errorf("file %s status = %s, want queued", f.ID, f.Status)
		}
	}
}
