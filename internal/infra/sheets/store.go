package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"quiz-gate-service/internal/domain"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

const (
	headerRange  = "Sheet1!A1:F1"
	appendRange  = "Sheet1!A:F"
	contactRange = "Contact!A:C"
)

// ClientSource yields an authorised HTTP client per call.
type ClientSource interface {
	Client(ctx context.Context) (*http.Client, error)
}

// Store appends registrations and contact messages to a Google spreadsheet.
type Store struct {
	auth          ClientSource
	spreadsheetID string
	opts          []option.ClientOption
	log           *zap.Logger
}

// NewStore builds a sheet store. Extra client options (e.g. option.WithEndpoint) are
// passed to every Sheets service it creates.
func NewStore(auth ClientSource, spreadsheetID string, logger *zap.Logger, opts ...option.ClientOption) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{auth: auth, spreadsheetID: spreadsheetID, opts: opts, log: logger}
}

// EnsureHeader writes the header row when the first row of Sheet1 is empty.
func (s *Store) EnsureHeader(ctx context.Context) error {
	srv, err := s.service(ctx)
	if err != nil {
		return err
	}
	resp, err := srv.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return wrap("read sheet header", err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	_, err = srv.Spreadsheets.Values.Update(s.spreadsheetID, headerRange, &sheetsapi.ValueRange{
		Values: [][]interface{}{toCells(domain.SheetHeader)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return wrap("write sheet header", err)
	}
	s.log.Info("registration sheet header initialised", zap.String("spreadsheet_id", s.spreadsheetID))
	return nil
}

func (s *Store) Append(ctx context.Context, reg domain.Registration) error {
	return s.appendRow(ctx, appendRange, reg.Row())
}

func (s *Store) AppendContact(ctx context.Context, msg domain.ContactMessage) error {
	return s.appendRow(ctx, contactRange, msg.Row())
}

func (s *Store) appendRow(ctx context.Context, rng string, row []string) error {
	srv, err := s.service(ctx)
	if err != nil {
		return err
	}
	_, err = srv.Spreadsheets.Values.Append(s.spreadsheetID, rng, &sheetsapi.ValueRange{
		Values: [][]interface{}{toCells(row)},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return wrap("append to "+rng, err)
	}
	return nil
}

func (s *Store) service(ctx context.Context) (*sheetsapi.Service, error) {
	client, err := s.auth.Client(ctx)
	if err != nil {
		return nil, err
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, s.opts...)
	srv, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return srv, nil
}

// wrap keeps transport errors intact for classification and flags API rejections.
func wrap(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: sheets api status %d: %w", op, apiErr.Code, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func toCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}
