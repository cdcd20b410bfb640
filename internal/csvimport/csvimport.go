package csvimport

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ksred/options-tracker/internal/trading"
	"github.com/ksred/options-tracker/internal/types"
	"github.com/ksred/options-tracker/pkg/date"
	"github.com/ksred/options-tracker/pkg/response"
	"github.com/rs/zerolog/log"
)

// TradeWriter persists one imported row. The opening trade and its optional
// expiry outcome must be written atomically.
type TradeWriter interface {
	CreateTradeWithOutcome(ctx context.Context, req trading.TradeCreate, outcome types.Action, batchID string) ([]uint, error)
}

const maxPreviewRows = 10

// Service previews and imports broker CSV exports
type Service struct {
	writer TradeWriter
	cfg    Config
}

// NewService creates a new import service writing through writer
func NewService(writer TradeWriter, cfg Config) *Service {
	if cfg.PreviewRows <= 0 || cfg.PreviewRows > maxPreviewRows {
		cfg.PreviewRows = maxPreviewRows
	}
	return &Service{
		writer: writer,
		cfg:    cfg,
	}
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	return reader
}

func readHeader(reader *csv.Reader) ([]string, error) {
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, types.NewValidationError("file", "is empty")
	}
	if err != nil {
		return nil, types.NewValidationError("file", fmt.Sprintf("unreadable header: %v", err))
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}
	if len(columns) > 0 {
		columns[0] = strings.TrimPrefix(columns[0], "\ufeff")
	}
	return columns, nil
}

func rowMap(columns, record []string) map[string]string {
	row := make(map[string]string, len(columns))
	for i, col := range columns {
		if i < len(record) {
			row[col] = record[i]
		} else {
			row[col] = ""
		}
	}
	return row
}

// Preview reads the header, the first rows and the row count, and suggests a column mapping
func (s *Service) Preview(r io.Reader) (*Preview, error) {
	reader := newReader(r)
	columns, err := readHeader(reader)
	if err != nil {
		return nil, err
	}

	preview := &Preview{
		Columns:          columns,
		Rows:             []map[string]string{},
		SuggestedMapping: DetectMapping(columns),
	}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if err != nil && !errors.As(err, &perr) {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}

		preview.RowCount++
		if len(preview.Rows) < s.cfg.PreviewRows && err == nil {
			preview.Rows = append(preview.Rows, rowMap(columns, record))
		}
	}
	return preview, nil
}

// Process imports every row it can and reports the rest. Rows are independent:
// a bad row is skipped with an error message and never stops the batch.
// An empty mapping is replaced by the detected one.
func (s *Service) Process(ctx context.Context, r io.Reader, mapping ColumnMapping) (*types.ImportResult, error) {
	reader := newReader(r)
	columns, err := readHeader(reader)
	if err != nil {
		return nil, err
	}

	if mapping.isEmpty() {
		mapping = DetectMapping(columns)
	}
	if err := mapping.validate(columns); err != nil {
		return nil, err
	}

	defaultYear := s.cfg.DefaultYear
	if defaultYear == 0 {
		defaultYear = date.Today().Year()
	}

	result := &types.ImportResult{
		Errors:  []string{},
		BatchID: uuid.New().String(),
	}
	logger := log.With().
		Str("service", "csvimport").
		Str("batch_id", result.BatchID).
		Logger()

	fail := func(line int, reason string) {
		result.TotalErrors++
		if s.cfg.MaxReportedErrors > 0 && len(result.Errors) >= s.cfg.MaxReportedErrors {
			return
		}
		result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", line, reason))
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			fail(perr.StartLine, perr.Err.Error())
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)

		req, outcome, err := convertRow(rowMap(columns, record), mapping, defaultYear)
		if err != nil {
			fail(line, err.Error())
			continue
		}

		if _, err := s.writer.CreateTradeWithOutcome(ctx, req, outcome, result.BatchID); err != nil {
			if ve, ok := types.IsValidation(err); ok {
				fail(line, describeValidation(ve))
				continue
			}
			logger.Error().Err(err).Int("line", line).Msg("failed to import row")
			fail(line, "could not be saved")
			continue
		}
		result.Imported++
	}

	logger.Info().
		Int("imported", result.Imported).
		Int("errors", result.TotalErrors).
		Msg("csv import finished")

	return result, nil
}

func describeValidation(ve *types.ValidationError) string {
	parts := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return strings.Join(parts, "; ")
}

// GinHandlers contains HTTP handlers for import endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for import endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// PreviewHandler handles multipart POST requests with a "file" field
func (h *GinHandlers) PreviewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		file, ok := uploadedFile(c)
		if !ok {
			return
		}
		defer file.Close()

		preview, err := h.service.Preview(file)
		response.Handle(c, preview, err)
	}
}

// ProcessHandler handles multipart POST requests with a "file" field and an
// optional "mapping" field holding the column mapping as JSON
func (h *GinHandlers) ProcessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var mapping ColumnMapping
		if raw := c.PostForm("mapping"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
				response.BadRequest(c, "mapping must be a JSON object")
				return
			}
		}

		file, ok := uploadedFile(c)
		if !ok {
			return
		}
		defer file.Close()

		result, err := h.service.Process(c.Request.Context(), file, mapping)
		response.Handle(c, result, err)
	}
}

func uploadedFile(c *gin.Context) (io.ReadCloser, bool) {
	header, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "A CSV file is required in the 'file' field")
		return nil, false
	}
	file, err := header.Open()
	if err != nil {
		response.BadRequest(c, "Uploaded file could not be read")
		return nil, false
	}
	return file, true
}
