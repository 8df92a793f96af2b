package interaction

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/timtro-cloud/timtro/internal/domain"
)

type mockRecorder struct {
	err   error
	calls int

	roomID    string
	listingID string
	viewerID  string
}

func (m *mockRecorder) RecordView(_ context.Context, roomID, listingID, viewerID string) error {
	m.calls++
	m.roomID, m.listingID, m.viewerID = roomID, listingID, viewerID
	return m.err
}

func TestRecordView_TrimsAndDelegates(t *testing.T) {
	rec := &mockRecorder{}
	svc := New(rec, zap.NewNop())

	if err := svc.RecordView(context.Background(), " room-1 ", " lst-1 ", ""); err != nil {
		t.Fatalf("RecordView: %v", err)
	}
	if rec.roomID != "room-1" || rec.listingID != "lst-1" || rec.viewerID != "" {
		t.Fatalf("recorded = %q %q %q", rec.roomID, rec.listingID, rec.viewerID)
	}
}

func TestRecordView_EmptyRoomID(t *testing.T) {
	rec := &mockRecorder{}
	svc := New(rec, zap.NewNop())

	err := svc.RecordView(context.Background(), "  ", "lst-1", "v1")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want invalid input", err)
	}
	if rec.calls != 0 {
		t.Fatalf("recorder calls = %d", rec.calls)
	}
}

func TestRecordView_RecorderErrorPropagates(t *testing.T) {
	rec := &mockRecorder{err: errors.New("counters down")}
	svc := New(rec, zap.NewNop())

	if err := svc.RecordView(context.Background(), "room-1", "", ""); err == nil {
		t.Fatal("expected error")
	}
}
