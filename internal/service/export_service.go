package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-timetable-api/internal/dto"
	"github.com/noah-isme/uni-timetable-api/internal/models"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
	"github.com/noah-isme/uni-timetable-api/pkg/export"
	"github.com/noah-isme/uni-timetable-api/pkg/storage"
)

type timetableSource interface {
	ProposalSnapshot(ctx context.Context, proposalID string) (*TimetableSnapshot, error)
	RunSnapshot(ctx context.Context, runID string) (*TimetableSnapshot, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, opts export.PDFOptions) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportService renders timetables and hands out signed download links.
type ExportService struct {
	source    timetableSource
	storage   fileStorage
	csv       csvRenderer
	pdf       pdfRenderer
	signer    *storage.SignedURLSigner
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

var timetableHeaders = []string{"Day", "Start", "End", "Module", "Session", "Group", "Lecturer", "Room"}

// NewExportService constructs an ExportService.
func NewExportService(source timetableSource, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		source:    source,
		storage:   storage,
		csv:       csv,
		pdf:       pdf,
		signer:    signer,
		validator: validator.New(),
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// ExportProposal renders a live proposal.
func (s *ExportService) ExportProposal(ctx context.Context, proposalID string, req dto.ExportTimetableRequest) (*dto.ExportTimetableResponse, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	snapshot, err := s.source.ProposalSnapshot(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	return s.export(proposalID, snapshot, req)
}

// ExportRun renders a stored schedule run.
func (s *ExportService) ExportRun(ctx context.Context, runID string, req dto.ExportTimetableRequest) (*dto.ExportTimetableResponse, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	snapshot, err := s.source.RunSnapshot(ctx, runID)
	if err != nil {
		return nil, err
	}
	return s.export(runID, snapshot, req)
}

// ExportDownload is an opened export ready to stream.
type ExportDownload struct {
	File        *os.File
	Filename    string
	ContentType string
	SizeBytes   int64
	ExpiresAt   time.Time
}

// ResolveDownload validates a signed token and opens the file it points at.
func (s *ExportService) ResolveDownload(token string) (*ExportDownload, error) {
	_, relPath, expiresAt, err := s.ParseToken(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			s.discardExpired(token)
			return nil, appErrors.Clone(appErrors.ErrExpired, "download link expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid download token")
	}
	file, err := s.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file")
	}
	contentType := "text/csv"
	if strings.HasSuffix(relPath, ".pdf") {
		contentType = "application/pdf"
	}
	return &ExportDownload{
		File:        file,
		Filename:    filepath.Base(relPath),
		ContentType: contentType,
		SizeBytes:   info.Size(),
		ExpiresAt:   expiresAt,
	}, nil
}

// discardExpired removes the file behind an expired link ahead of the periodic sweep.
func (s *ExportService) discardExpired(token string) {
	_, relPath, _, err := s.ParseToken(token, true)
	if err != nil {
		return
	}
	if err := s.storage.Delete(relPath); err != nil {
		s.logger.Warn("failed to delete expired export", zap.String("path", relPath), zap.Error(err))
	}
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (ownerID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) validate(req dto.ExportTimetableRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	if req.View != "" && req.View != "all" && req.EntityID == "" {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("entityId is required for the %s view", req.View))
	}
	return nil
}

func (s *ExportService) export(ownerID string, snapshot *TimetableSnapshot, req dto.ExportTimetableRequest) (*dto.ExportTimetableResponse, error) {
	dataset, subtitle := buildTimetableDataset(snapshot, req.View, req.EntityID)

	var (
		payload []byte
		err     error
	)
	switch req.Format {
	case "csv":
		payload, err = s.csv.Render(dataset)
	case "pdf":
		payload, err = s.pdf.Render(dataset, export.PDFOptions{Title: snapshot.Title, Subtitle: subtitle, Landscape: true})
	default:
		err = fmt.Errorf("unsupported format %s", req.Format)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable")
	}

	relPath, err := s.storage.Save(s.buildFilename(ownerID, req), payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(ownerID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export url")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Info("timetable exported",
		zap.String("owner_id", ownerID),
		zap.String("format", req.Format),
		zap.String("path", relPath),
		zap.Int("rows", len(dataset.Rows)),
	)
	return &dto.ExportTimetableResponse{
		URL:       fmt.Sprintf("%s/export/%s", prefix, token),
		Format:    req.Format,
		Rows:      len(dataset.Rows),
		ExpiresAt: expiresAt,
	}, nil
}

func (s *ExportService) buildFilename(ownerID string, req dto.ExportTimetableRequest) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	view := req.View
	if view == "" {
		view = "all"
	}
	if req.EntityID != "" && view != "all" {
		view = view + "_" + sanitizeFilename(req.EntityID)
	}
	return fmt.Sprintf("timetable_%s_%s_%s.%s", sanitizeFilename(ownerID), view, timestamp, req.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

// buildTimetableDataset flattens assignments into rows, optionally restricted to one entity.
func buildTimetableDataset(snapshot *TimetableSnapshot, view, entityID string) (export.Dataset, string) {
	labels := newEntityLabels(snapshot.Input)
	dataset := export.Dataset{Headers: timetableHeaders}
	for _, a := range snapshot.Assignments {
		if !inView(a, view, entityID) {
			continue
		}
		dataset.Append(
			models.DayName(a.Day),
			a.Start.String(),
			a.End.String(),
			labels.module(a.ModuleID),
			strings.ToLower(string(a.SessionType)),
			labels.group(a.GroupID),
			labels.lecturer(a.LecturerID),
			labels.room(a.RoomID),
		)
	}

	subtitle := "All sessions"
	switch view {
	case "group":
		subtitle = "Group " + labels.group(entityID)
	case "lecturer":
		subtitle = "Lecturer " + labels.lecturer(entityID)
	case "room":
		subtitle = "Room " + labels.room(entityID)
	}
	return dataset, subtitle
}

func inView(a models.Assignment, view, entityID string) bool {
	switch view {
	case "group":
		return a.GroupID == entityID
	case "lecturer":
		return a.LecturerID == entityID
	case "room":
		return a.RoomID == entityID
	default:
		return true
	}
}

type entityLabels struct {
	modules   map[string]string
	groups    map[string]string
	lecturers map[string]string
	rooms     map[string]string
}

func newEntityLabels(input models.SchedulingInput) entityLabels {
	labels := entityLabels{
		modules:   make(map[string]string, len(input.Modules)),
		groups:    make(map[string]string, len(input.Groups)),
		lecturers: make(map[string]string, len(input.Lecturers)),
		rooms:     make(map[string]string, len(input.Rooms)),
	}
	for _, m := range input.Modules {
		switch {
		case m.Code != "" && m.Name != "":
			labels.modules[m.ID] = m.Code + " " + m.Name
		case m.Code != "":
			labels.modules[m.ID] = m.Code
		case m.Name != "":
			labels.modules[m.ID] = m.Name
		}
	}
	for _, g := range input.Groups {
		if g.Name != "" {
			labels.groups[g.ID] = g.Name
		}
	}
	for _, l := range input.Lecturers {
		if l.Name != "" {
			labels.lecturers[l.ID] = l.Name
		}
	}
	for _, r := range input.Rooms {
		if r.Name != "" {
			labels.rooms[r.ID] = r.Name
		}
	}
	return labels
}

func labelOr(labels map[string]string, id string) string {
	if label, ok := labels[id]; ok {
		return label
	}
	return id
}

func (l entityLabels) module(id string) string   { return labelOr(l.modules, id) }
func (l entityLabels) group(id string) string    { return labelOr(l.groups, id) }
func (l entityLabels) lecturer(id string) string { return labelOr(l.lecturers, id) }
func (l entityLabels) room(id string) string     { return labelOr(l.rooms, id) }
