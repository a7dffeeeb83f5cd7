package httpx

import (
	"context"
	"errors"

	domainauth "github.com/target/detectq/internal/domain/auth"
	"github.com/target/detectq/internal/domain/model"
	apperrors "github.com/target/detectq/internal/errors"
)

type fakeSubmitter struct {
	got    *model.WorkRequest
	handle *model.TrackingHandle
	err    error
}

func (f *fakeSubmitter) Submit(_ context.Context, req *model.WorkRequest) (*model.TrackingHandle, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return f.handle, nil
}

type fakeExtractor struct {
	req *model.WorkRequest
	err error
}

func (f *fakeExtractor) Extract([]byte) (*model.WorkRequest, error) { return f.req, f.err }

type fakeResolver struct {
	gotID string
	res   *model.Resolution
	err   error
}

func (f *fakeResolver) Resolve(_ context.Context, jobID string) (*model.Resolution, error) {
	f.gotID = jobID
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type fakeMonitor struct {
	status model.MonitorStatus
	ok     bool
}

func (f fakeMonitor) Healthy() (model.MonitorStatus, bool) { return f.status, f.ok }

type fakeVerifier struct {
	valid string
}

func (f fakeVerifier) Verify(_ context.Context, raw string) (domainauth.Principal, error) {
	if raw != f.valid {
		return domainauth.Principal{}, errors.New("signature mismatch")
	}
	return domainauth.Principal{Subject: "svc-uploader"}, nil
}

func testHandle() *model.TrackingHandle {
	return &model.TrackingHandle{
		JobID:           "abc123-fixed",
		PayloadRef:      model.PayloadRef{Bucket: "photos-bucket", Key: "photos/42/abc123-fixed.jpg"},
		Acknowledgement: model.AcknowledgementText,
	}
}

func timeoutErr() error {
	return apperrors.Wrap(context.DeadlineExceeded, apperrors.ErrCodeTimeout, "result lookup timed out")
}
