package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/detectq/internal/core"
	"github.com/target/detectq/internal/domain/model"
	apperrors "github.com/target/detectq/internal/errors"
	"github.com/target/detectq/internal/mocks"
	"github.com/target/detectq/internal/testutil"
)

type dispatcherFixture struct {
	store      *mocks.MockObjectStore
	queue      *mocks.MockJobQueue
	acceptance *mocks.MockAcceptanceStore
	svc        *DispatcherService
}

func newDispatcherFixture(t *testing.T, withAcceptance bool) *dispatcherFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &dispatcherFixture{
		store: mocks.NewMockObjectStore(ctrl),
		queue: mocks.NewMockJobQueue(ctrl),
	}
	opts := DispatcherServiceOptions{
		Store:  f.store,
		Queue:  f.queue,
		Config: DispatcherConfig{KeyPrefix: "photos/", MaxPayloadBytes: 1024},
		Now:    testutil.FixedTimeFunc(testutil.TestTime()),
		NewID:  func() string { return "fixed" },
	}
	if withAcceptance {
		f.acceptance = mocks.NewMockAcceptanceStore(ctrl)
		opts.Acceptance = f.acceptance
	}
	svc, err := NewDispatcherService(opts)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func storedRef(req core.PutObjectRequest) model.PayloadRef {
	return model.PayloadRef{Bucket: "bucket", Key: req.Key}
}

func TestNewDispatcherService_RequiresCollaborators(t *testing.T) {
	_, err := NewDispatcherService(DispatcherServiceOptions{})
	require.Error(t, err)

	ctrl := gomock.NewController(t)
	_, err = NewDispatcherService(DispatcherServiceOptions{Store: mocks.NewMockObjectStore(ctrl)})
	require.Error(t, err)
}

func TestDispatcherService_Submit_Success(t *testing.T) {
	f := newDispatcherFixture(t, false)
	ctx := context.Background()
	req := testutil.NewWorkRequest().WithCallerRef("chat 42").Build()

	var put core.PutObjectRequest
	f.store.EXPECT().Put(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, r core.PutObjectRequest) (model.PayloadRef, error) {
			put = r
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			assert.Equal(t, req.Payload, body)
			return storedRef(r), nil
		})

	var enqueued model.JobDescriptor
	f.queue.EXPECT().Enqueue(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, job model.JobDescriptor) error {
			enqueued = job
			return nil
		})

	handle, err := f.svc.Submit(ctx, req)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(handle.JobID, "-fixed"))
	assert.Len(t, strings.TrimSuffix(handle.JobID, "-fixed"), 16)
	assert.Equal(t, model.AcknowledgementText, handle.Acknowledgement)
	assert.Equal(t, "photos/chat_42/"+handle.JobID+".jpg", put.Key)
	assert.Equal(t, "image/jpeg", put.ContentType)
	assert.Equal(t, int64(len(req.Payload)), put.Size)

	assert.Equal(t, handle.JobID, enqueued.JobID)
	assert.Equal(t, handle.PayloadRef, enqueued.PayloadRef)
	assert.Equal(t, "chat 42", enqueued.CallerRef)
	assert.Equal(t, testutil.TestTime().UTC(), enqueued.EnqueuedAt)
}

func TestDispatcherService_Submit_InvalidRequest(t *testing.T) {
	tests := []struct {
		name  string
		req   *model.WorkRequest
		field string
	}{
		{name: "nil request", req: nil, field: "request"},
		{name: "empty payload", req: testutil.NewWorkRequest().WithPayload(nil).Build(), field: "payload"},
		{name: "oversize payload", req: testutil.NewWorkRequest().WithPayload(make([]byte, 2048)).Build(), field: "payload"},
		{name: "missing caller", req: testutil.NewWorkRequest().WithCallerRef(" ").Build(), field: "caller_ref"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatcherFixture(t, false)
			// No EXPECT calls: any store or queue interaction fails the test.
			_, err := f.svc.Submit(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, tt.field, apperrors.GetField(err))
		})
	}
}

func TestDispatcherService_Submit_StorageFailureDoesNotEnqueue(t *testing.T) {
	f := newDispatcherFixture(t, true)
	f.acceptance.EXPECT().MarkAccepted(gomock.Any(), gomock.Any()).Return(nil)
	f.store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(model.PayloadRef{}, errors.New("s3 down"))
	f.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Times(0)

	_, err := f.svc.Submit(context.Background(), testutil.NewWorkRequest().Build())
	require.Error(t, err)
	assert.True(t, apperrors.IsStorage(err))
}

func TestDispatcherService_Submit_QueueFailure(t *testing.T) {
	f := newDispatcherFixture(t, false)
	f.store.EXPECT().Put(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, r core.PutObjectRequest) (model.PayloadRef, error) { return storedRef(r), nil }).Times(2)
	f.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(errors.New("sqs down"))

	_, err := f.svc.Submit(context.Background(), testutil.NewWorkRequest().Build())
	require.Error(t, err)
	assert.True(t, apperrors.IsQueue(err))

	// A descriptor the queue rejects is still a queue failure: the payload
	// was already stored, so the request did have side effects.
	f.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).
		Return(apperrors.Wrap(errors.New("too large"), apperrors.ErrCodeValidation, "invalid job descriptor"))

	_, err = f.svc.Submit(context.Background(), testutil.NewWorkRequest().Build())
	require.Error(t, err)
	assert.True(t, apperrors.IsQueue(err))
	assert.False(t, apperrors.IsValidation(err))
}

func TestDispatcherService_Submit_AcceptanceMarker(t *testing.T) {
	t.Run("written before upload", func(t *testing.T) {
		f := newDispatcherFixture(t, true)
		mark := f.acceptance.EXPECT().MarkAccepted(gomock.Any(), gomock.Any()).Return(nil)
		put := f.store.EXPECT().Put(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, r core.PutObjectRequest) (model.PayloadRef, error) { return storedRef(r), nil }).After(mark)
		f.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil).After(put)

		_, err := f.svc.Submit(context.Background(), testutil.NewWorkRequest().Build())
		require.NoError(t, err)
	})

	t.Run("failure rejects submission before anything is stored", func(t *testing.T) {
		f := newDispatcherFixture(t, true)
		f.acceptance.EXPECT().MarkAccepted(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))
		f.store.EXPECT().Put(gomock.Any(), gomock.Any()).Times(0)
		f.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Times(0)

		handle, err := f.svc.Submit(context.Background(), testutil.NewWorkRequest().Build())
		require.Error(t, err)
		assert.Nil(t, handle)
		assert.True(t, apperrors.IsStorage(err))
	})
}

// memoryAcceptance is an in-memory AcceptanceStore that can fail writes.
type memoryAcceptance struct {
	mu       sync.Mutex
	accepted map[string]bool
	failMark error
}

func (m *memoryAcceptance) MarkAccepted(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failMark != nil {
		return m.failMark
	}
	if m.accepted == nil {
		m.accepted = map[string]bool{}
	}
	m.accepted[jobID] = true
	return nil
}

func (m *memoryAcceptance) IsAccepted(_ context.Context, jobID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accepted[jobID], nil
}

func TestDispatcherService_HandlesNeverResolveToNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockObjectStore(ctrl)
	queue := mocks.NewMockJobQueue(ctrl)
	results := mocks.NewMockResultStore(ctrl)
	acceptance := &memoryAcceptance{}

	resolver, err := NewResultResolverService(ResultResolverServiceOptions{Results: results, Acceptance: acceptance})
	require.NoError(t, err)
	dispatcher, err := NewDispatcherService(DispatcherServiceOptions{
		Store:      store,
		Queue:      queue,
		Acceptance: acceptance,
		Config:     DispatcherConfig{MaxPayloadBytes: 1024},
	})
	require.NoError(t, err)

	results.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, false, nil).AnyTimes()
	store.EXPECT().Put(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, r core.PutObjectRequest) (model.PayloadRef, error) { return storedRef(r), nil }).AnyTimes()
	queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, job model.JobDescriptor) error {
			res, err := resolver.Resolve(ctx, job.JobID)
			require.NoError(t, err)
			assert.Equal(t, model.ResolutionPending, res.Status, "job id resolvable while enqueue is in flight")
			return nil
		}).AnyTimes()

	handle, err := dispatcher.Submit(context.Background(), testutil.NewWorkRequest().Build())
	require.NoError(t, err)
	res, err := resolver.Resolve(context.Background(), handle.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.ResolutionPending, res.Status)

	acceptance.mu.Lock()
	acceptance.failMark = errors.New("redis down")
	acceptance.mu.Unlock()
	handle, err = dispatcher.Submit(context.Background(), testutil.NewWorkRequest().Build())
	require.Error(t, err)
	assert.True(t, apperrors.IsStorage(err))
	assert.Nil(t, handle)
}

func TestDispatcherService_Submit_CallerRefMetadataIsASCII(t *testing.T) {
	f := newDispatcherFixture(t, false)
	req := testutil.NewWorkRequest().WithCallerRef("Zoë 42").Build()

	var put core.PutObjectRequest
	f.store.EXPECT().Put(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, r core.PutObjectRequest) (model.PayloadRef, error) {
			put = r
			return storedRef(r), nil
		})
	var enqueued model.JobDescriptor
	f.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, job model.JobDescriptor) error {
			enqueued = job
			return nil
		})

	_, err := f.svc.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Zo%C3%AB+42", put.Metadata["caller-ref"])
	for _, r := range put.Metadata["caller-ref"] {
		assert.Less(t, r, rune(0x80))
	}
	assert.Equal(t, "Zoë 42", enqueued.CallerRef)
}

func TestDispatcherService_Submit_ConcurrentIDsAreUnique(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockObjectStore(ctrl)
	queue := mocks.NewMockJobQueue(ctrl)
	store.EXPECT().Put(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, r core.PutObjectRequest) (model.PayloadRef, error) { return storedRef(r), nil }).AnyTimes()
	queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	svc := MustNewDispatcherService(DispatcherServiceOptions{Store: store, Queue: queue})

	const n = 32
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Identical payloads on purpose: the random suffix must still separate them.
			h, err := svc.Submit(context.Background(), testutil.NewWorkRequest().Build())
			if err == nil {
				ids <- h.JobID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate job id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestObjectKeyHelpers(t *testing.T) {
	assert.Equal(t, ".png", extensionFor("image/png"))
	assert.Equal(t, ".jpg", extensionFor("image/jpeg"))
	assert.Equal(t, ".bin", extensionFor("application/octet-stream"))

	assert.Equal(t, "a_b_c", sanitizeKeySegment("a/b c"))
	assert.Equal(t, "anonymous", sanitizeKeySegment(".."))
	assert.Equal(t, "-1001_42", sanitizeKeySegment("-1001:42"))

	svc := &DispatcherService{cfg: DispatcherConfig{}}
	assert.Equal(t, "caller/id.bin", svc.objectKey("caller", "id", "text/plain"))
}

func TestDispatcherService_JobIDDigest(t *testing.T) {
	svc := &DispatcherService{newID: func() string { return "x" }, now: time.Now}
	a := svc.jobID([]byte("one"))
	b := svc.jobID([]byte("two"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, svc.jobID([]byte("one")))
}
