package service

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-timetable-api/internal/dto"
	"github.com/noah-isme/uni-timetable-api/internal/models"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
	"github.com/noah-isme/uni-timetable-api/pkg/export"
	"github.com/noah-isme/uni-timetable-api/pkg/storage"
)

type timetableSourceStub struct {
	snapshot *TimetableSnapshot
}

func (s timetableSourceStub) ProposalSnapshot(_ context.Context, id string) (*TimetableSnapshot, error) {
	if id != "proposal-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	return s.snapshot, nil
}

func (s timetableSourceStub) RunSnapshot(_ context.Context, id string) (*TimetableSnapshot, error) {
	if id != "run-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule run not found")
	}
	return s.snapshot, nil
}

func exportSnapshot() *TimetableSnapshot {
	input := twoGroupInput()
	return &TimetableSnapshot{
		Title: "Timetable semester 1 v1 (draft)",
		Input: input,
		Assignments: []models.Assignment{
			{ID: "a1", ModuleID: "M1", SessionType: models.SessionLecture, GroupID: "G1", LecturerID: "L1", RoomID: "R1", Day: 1, Start: models.MustClock("09:00"), End: models.MustClock("10:00")},
			{ID: "a2", ModuleID: "M2", SessionType: models.SessionLecture, GroupID: "G2", LecturerID: "L2", RoomID: "R1", Day: 1, Start: models.MustClock("10:00"), End: models.MustClock("11:00")},
		},
	}
}

func newExportServiceForTest(t *testing.T) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}
	return NewExportService(timetableSourceStub{snapshot: exportSnapshot()}, store, signer, cfg, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
}

func readExport(t *testing.T, svc *ExportService, url string) []byte {
	t.Helper()
	token := url[strings.LastIndex(url, "/")+1:]
	_, relPath, _, err := svc.ParseToken(token, false)
	require.NoError(t, err)
	file, err := svc.Open(relPath)
	require.NoError(t, err)
	defer file.Close()
	payload, err := io.ReadAll(file)
	require.NoError(t, err)
	return payload
}

func TestExportServiceExportProposalCSV(t *testing.T) {
	svc := newExportServiceForTest(t)

	result, err := svc.ExportProposal(context.Background(), "proposal-1", dto.ExportTimetableRequest{Format: "csv"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rows)
	assert.Contains(t, result.URL, "/api/v1/export/")

	lines := strings.Split(strings.TrimSpace(string(readExport(t, svc, result.URL))), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Day,Start,End,Module,Session,Group,Lecturer,Room", lines[0])
	assert.Equal(t, "MONDAY,09:00,10:00,CS101 Programming,lecture,CS-1A,Dr. Ada,101", lines[1])
}

func TestExportServiceExportRunViewFilter(t *testing.T) {
	svc := newExportServiceForTest(t)

	result, err := svc.ExportRun(context.Background(), "run-1", dto.ExportTimetableRequest{Format: "csv", View: "lecturer", EntityID: "L2"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rows)
	assert.Contains(t, string(readExport(t, svc, result.URL)), "Dr. Grace")
}

func TestExportServiceExportPDF(t *testing.T) {
	svc := newExportServiceForTest(t)

	result, err := svc.ExportRun(context.Background(), "run-1", dto.ExportTimetableRequest{Format: "pdf", View: "room", EntityID: "R1"})
	require.NoError(t, err)
	assert.Equal(t, "pdf", result.Format)
	assert.True(t, strings.HasPrefix(string(readExport(t, svc, result.URL)), "%PDF"))
}

func TestExportServiceValidation(t *testing.T) {
	svc := newExportServiceForTest(t)

	_, err := svc.ExportProposal(context.Background(), "proposal-1", dto.ExportTimetableRequest{Format: "xlsx"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.ExportProposal(context.Background(), "proposal-1", dto.ExportTimetableRequest{Format: "csv", View: "group"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.ExportProposal(context.Background(), "missing", dto.ExportTimetableRequest{Format: "csv"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestBuildTimetableDatasetFallsBackToIDs(t *testing.T) {
	snapshot := exportSnapshot()
	snapshot.Input = models.SchedulingInput{}

	dataset, subtitle := buildTimetableDataset(snapshot, "group", "G2")
	require.Len(t, dataset.Rows, 1)
	assert.Equal(t, "M2", dataset.Rows[0]["Module"])
	assert.Equal(t, "L2", dataset.Rows[0]["Lecturer"])
	assert.Equal(t, "Group G2", subtitle)
}

func TestExportServiceResolveDownload(t *testing.T) {
	svc := newExportServiceForTest(t)

	result, err := svc.ExportProposal(context.Background(), "proposal-1", dto.ExportTimetableRequest{Format: "csv", View: "group", EntityID: "G1"})
	require.NoError(t, err)

	download, err := svc.ResolveDownload(result.URL[strings.LastIndex(result.URL, "/")+1:])
	require.NoError(t, err)
	defer download.File.Close()
	assert.True(t, strings.HasPrefix(download.Filename, "timetable_proposal-1_group_G1_"))
	assert.True(t, strings.HasSuffix(download.Filename, ".csv"))
	assert.Equal(t, "text/csv", download.ContentType)
	assert.Greater(t, download.SizeBytes, int64(0))

	_, err = svc.ResolveDownload("not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceResolveDownloadExpired(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Second)
	svc := NewExportService(timetableSourceStub{snapshot: exportSnapshot()}, store, signer, ExportConfig{APIPrefix: "/api/v1"}, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())

	result, err := svc.ExportProposal(context.Background(), "proposal-1", dto.ExportTimetableRequest{Format: "csv"})
	require.NoError(t, err)
	token := result.URL[strings.LastIndex(result.URL, "/")+1:]
	_, relPath, _, err := svc.ParseToken(token, false)
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	_, err = svc.ResolveDownload(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrExpired.Code, appErrors.FromError(err).Code)
	_, err = svc.Open(relPath)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
