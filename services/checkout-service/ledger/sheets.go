package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsConfig holds the OAuth client and target spreadsheet.
type SheetsConfig struct {
	ClientID        string
	ClientSecret    string
	RefreshToken    string
	SpreadsheetID   string
	SheetName       string
	WritesPerMinute int
}

// Configured reports whether every credential needed to write is present.
func (c SheetsConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != "" && c.SpreadsheetID != ""
}

type valuesClient interface {
	Rows(ctx context.Context, spreadsheetID, rng string) ([][]string, error)
	Append(ctx context.Context, spreadsheetID, rng string, row []interface{}) error
}

// SheetsLedger writes rows to a Google spreadsheet. Writes are throttled to
// stay under the Sheets API per-minute quota.
type SheetsLedger struct {
	values        valuesClient
	spreadsheetID string
	sheetName     string
	limiter       *rate.Limiter
	logger        *zap.Logger

	// serializes the check-then-append for one process
	mu sync.Mutex
}

// NewSheetsLedger authenticates with a stored refresh token.
func NewSheetsLedger(ctx context.Context, cfg SheetsConfig, logger *zap.Logger, opts ...option.ClientOption) (*SheetsLedger, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("sheets ledger: missing credentials or spreadsheet id")
	}
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{sheets.SpreadsheetsScope},
	}
	ts := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	svc, err := sheets.NewService(ctx, append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("sheets ledger: %w", err)
	}
	return newSheetsLedger(&sheetsValues{svc: svc}, cfg, logger), nil
}

func newSheetsLedger(values valuesClient, cfg SheetsConfig, logger *zap.Logger) *SheetsLedger {
	name := cfg.SheetName
	if name == "" {
		name = "Sheet1"
	}
	perMinute := cfg.WritesPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	return &SheetsLedger{
		values:        values,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     name,
		limiter:       rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 5),
		logger:        logger,
	}
}

func (l *SheetsLedger) AppendOrder(ctx context.Context, order *models.Order) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Reads count against the quota too.
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("ledger throttle: %w", err)
	}
	// Columns O and P: order_ref, payment_ref.
	rows, err := l.values.Rows(ctx, l.spreadsheetID, l.rng("O:P"))
	if err != nil {
		return fmt.Errorf("read payment refs: %w", err)
	}
	for _, row := range rows {
		if len(row) < 2 || strings.TrimPrefix(row[1], "'") != order.PaymentRef {
			continue
		}
		l.logger.Info("Ledger row already present",
			zap.String("order_ref", order.OrderRef),
			zap.String("existing_order_ref", row[0]),
			zap.String("payment_ref", order.PaymentRef))
		return &DuplicateError{OrderRef: row[0]}
	}

	if err := l.append(ctx, OrderRow(order)); err != nil {
		return err
	}
	l.logger.Info("Order appended to ledger",
		zap.String("order_ref", order.OrderRef),
		zap.String("payment_ref", order.PaymentRef),
		zap.Int64("total", order.Totals.Total))
	return nil
}

func (l *SheetsLedger) AppendDesignRequest(ctx context.Context, sub *models.DesignSubmission) error {
	if err := l.append(ctx, DesignRequestRow(sub)); err != nil {
		return err
	}
	l.logger.Info("Design request appended to ledger", zap.String("email", sub.Request.Email), zap.Int("images", len(sub.Images)))
	return nil
}

func (l *SheetsLedger) append(ctx context.Context, row []interface{}) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("ledger throttle: %w", err)
	}
	if err := l.values.Append(ctx, l.spreadsheetID, l.rng("A:Q"), row); err != nil {
		return fmt.Errorf("append ledger row: %w", err)
	}
	return nil
}

func (l *SheetsLedger) rng(cols string) string {
	return l.sheetName + "!" + cols
}

type sheetsValues struct {
	svc *sheets.Service
}

// Rows returns every row of rng as strings. Sheets omits trailing empty cells,
// so rows may be shorter than the range.
func (s *sheetsValues) Rows(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		out = append(out, cells)
	}
	return out, nil
}

func (s *sheetsValues) Append(ctx context.Context, spreadsheetID, rng string, row []interface{}) error {
	_, err := s.svc.Spreadsheets.Values.Append(spreadsheetID, rng, &sheets.ValueRange{Values: [][]interface{}{row}}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}
