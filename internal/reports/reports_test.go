package reports_test

import (
	"context"
	"testing"
	"time"

	"anonchat/backend/internal/errs"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/reports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeReportStore struct {
	saved       []*models.Report
	history     []models.ChatLog
	recentCount int64
}

func (f *fakeReportStore) SaveReport(ctx context.Context, report *models.Report) error {
	f.saved = append(f.saved, report)
	return nil
}

func (f *fakeReportStore) GetChatHistory(ctx context.Context, roomID string) ([]models.ChatLog, error) {
	return f.history, nil
}

func (f *fakeReportStore) CountRecentReports(ctx context.Context, reportedID int64, since time.Time) (int64, error) {
	return f.recentCount, nil
}

type fakeRooms struct {
	partner *models.User
	room    *models.Room
	err     error
}

func (f *fakeRooms) Partner(ctx context.Context, userID int64) (*models.User, *models.Room, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.partner, f.room, nil
}

type mockReportNotifier struct {
	mock.Mock
}

func (m *mockReportNotifier) MirrorReport(ctx context.Context, reporter, reported *models.User, room *models.Room, report *models.Report) {
	m.Called(ctx, reporter, reported, room, report)
}

func (m *mockReportNotifier) FlagRepeatOffender(ctx context.Context, reported *models.User, count int64) {
	m.Called(ctx, reported, count)
}

func TestFileSavesSnapshotAndMirrors(t *testing.T) {
	reporter := &models.User{UserID: 1, Language: "en"}
	reported := &models.User{UserID: 2, Language: "en"}
	room := &models.Room{RoomID: "room-1", User1ID: 1, User2ID: 2, Active: true}

	store := &fakeReportStore{
		history: []models.ChatLog{
			{RoomID: "room-1", SenderID: 2, ContentType: models.ContentText, Text: "buy my stuff"},
			{RoomID: "room-1", SenderID: 1, ContentType: models.ContentText, Text: "no thanks"},
		},
		recentCount: 1,
	}
	notifier := &mockReportNotifier{}
	notifier.On("MirrorReport", mock.Anything, reporter, reported, room, mock.Anything).Return()
	svc := reports.NewService(store, &fakeRooms{partner: reported, room: room}, notifier)

	report, err := svc.File(context.Background(), reporter)
	require.NoError(t, err)

	require.Len(t, store.saved, 1)
	assert.Equal(t, "room-1", report.RoomID)
	assert.Equal(t, int64(1), report.ReporterID)
	assert.Equal(t, int64(2), report.ReportedID)
	assert.Contains(t, report.ChatHistory, "buy my stuff", "snapshot should carry the transcript")
	notifier.AssertCalled(t, "MirrorReport", mock.Anything, reporter, reported, room, report)
	notifier.AssertNotCalled(t, "FlagRepeatOffender", mock.Anything, mock.Anything, mock.Anything)
}

func TestFileWithoutRoom(t *testing.T) {
	store := &fakeReportStore{}
	notifier := &mockReportNotifier{}
	svc := reports.NewService(store, &fakeRooms{err: &errs.NotFound{What: "room"}}, notifier)

	_, err := svc.File(context.Background(), &models.User{UserID: 1})
	assert.True(t, errs.IsNotFound(err))
	assert.Empty(t, store.saved)
	notifier.AssertNotCalled(t, "MirrorReport", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFileFlagsAtThresholdOnly(t *testing.T) {
	reporter := &models.User{UserID: 1, Language: "en"}
	reported := &models.User{UserID: 2, Language: "en"}
	room := &models.Room{RoomID: "room-1", User1ID: 1, User2ID: 2, Active: true}

	for _, tt := range []struct {
		name    string
		count   int64
		flagged bool
	}{
		{"below threshold", 4, false},
		{"at threshold", 5, true},
		{"past threshold", 6, false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeReportStore{recentCount: tt.count}
			notifier := &mockReportNotifier{}
			notifier.On("MirrorReport", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()
			notifier.On("FlagRepeatOffender", mock.Anything, reported, tt.count).Return()
			svc := reports.NewService(store, &fakeRooms{partner: reported, room: room}, notifier)

			_, err := svc.File(context.Background(), reporter)
			require.NoError(t, err)

			if tt.flagged {
				notifier.AssertCalled(t, "FlagRepeatOffender", mock.Anything, reported, tt.count)
			} else {
				notifier.AssertNotCalled(t, "FlagRepeatOffender", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}
