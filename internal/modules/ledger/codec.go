package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aristath/fundledger/internal/domain"
)

// Columns is the canonical column order of the ledger file
var Columns = []string{
	"tx_id",
	"trade_date",
	"fund_code",
	"amount",
	"shares",
	"type",
	"status",
	"confirm_date",
	"expected_valuation_date",
	"expected_confirm_date",
	"valuation_kind",
	"submitted_at",
	"cutoff",
	"created_at",
	"updated_at",
}

// Row is one ledger line. Extra holds values of columns this version does not know,
// keyed by header name, so they survive a rewrite. Invalid rows keep their raw
// record and are written back verbatim.
type Row struct {
	Tx    domain.Transaction
	Extra map[string]string
	Raw   []string
	Err   error
}

// Valid reports whether the row parsed cleanly
func (r Row) Valid() bool {
	return r.Err == nil
}

// Table is the decoded ledger document
type Table struct {
	Header []string // canonical columns followed by unknown ones in file order
	Rows   []Row
}

// Transactions returns the valid rows' transactions in file order
func (t *Table) Transactions() []domain.Transaction {
	out := make([]domain.Transaction, 0, len(t.Rows))
	for _, r := range t.Rows {
		if r.Valid() {
			out = append(out, r.Tx)
		}
	}
	return out
}

// Invalid returns the rows that failed validation
func (t *Table) Invalid() []Row {
	var out []Row
	for _, r := range t.Rows {
		if !r.Valid() {
			out = append(out, r)
		}
	}
	return out
}

// Codec reads and writes the flat CSV ledger
type Codec struct {
	loc *time.Location
}

// NewCodec creates a codec interpreting dates in loc
func NewCodec(loc *time.Location) *Codec {
	if loc == nil {
		loc = time.Local
	}
	return &Codec{loc: loc}
}

// Decode parses a ledger document. Empty input yields an empty table.
// Malformed rows are kept with Err set to a *domain.ValidationError.
func (c *Codec) Decode(content []byte) (*Table, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	table := &Table{Header: append([]string(nil), Columns...)}
	if len(bytes.TrimSpace(content)) == 0 {
		return table, nil
	}

	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read ledger header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		index[name] = i
		if !isKnownColumn(name) && name != "" {
			table.Header = append(table.Header, name)
		}
	}
	for _, required := range []string{"tx_id", "trade_date", "fund_code", "type", "status"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("ledger header missing column %q: %w", required, domain.ErrValidation)
		}
	}

	line := 1
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read ledger line %d: %w", line, err)
		}
		if isBlank(record) {
			continue
		}

		get := func(col string) string {
			if i, ok := index[col]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}

		row := Row{Raw: remap(record, header, table.Header)}
		row.Tx, row.Err = c.parseTransaction(line, get)
		for _, name := range table.Header[len(Columns):] {
			if v := get(name); v != "" {
				if row.Extra == nil {
					row.Extra = make(map[string]string)
				}
				row.Extra[name] = v
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// Encode renders the table with the canonical columns first
func (c *Codec) Encode(table *Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := table.Header
	if len(header) < len(Columns) {
		header = append([]string(nil), Columns...)
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write ledger header: %w", err)
	}

	for _, row := range table.Rows {
		var record []string
		if row.Valid() {
			record = c.formatTransaction(row.Tx)
			for _, name := range header[len(Columns):] {
				record = append(record, row.Extra[name])
			}
		} else {
			record = make([]string, len(header))
			copy(record, row.Raw)
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write ledger row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush ledger: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Codec) parseTransaction(line int, get func(string) string) (domain.Transaction, error) {
	invalid := func(field, value string, err error) error {
		return &domain.ValidationError{Row: line, Field: field, Value: value, Err: err}
	}

	tx := domain.Transaction{
		ID:       get("tx_id"),
		FundCode: get("fund_code"),
		Type:     domain.TransactionType(get("type")),
		Status:   domain.TransactionStatus(get("status")),
	}
	if tx.ID == "" {
		return tx, invalid("tx_id", "", nil)
	}
	if tx.FundCode == "" {
		return tx, invalid("fund_code", "", nil)
	}
	if !tx.Type.Valid() {
		return tx, invalid("type", string(tx.Type), nil)
	}
	if !tx.Status.Valid() {
		return tx, invalid("status", string(tx.Status), nil)
	}

	var err error
	if tx.TradeDate, err = domain.ParseDate(get("trade_date"), c.loc); err != nil {
		return tx, invalid("trade_date", get("trade_date"), err)
	}
	if tx.Amount, err = parseDecimal(get("amount")); err != nil {
		return tx, invalid("amount", get("amount"), err)
	}
	if tx.Amount.IsNegative() {
		return tx, invalid("amount", get("amount"), errors.New("must not be negative"))
	}
	if tx.Shares, err = parseDecimal(get("shares")); err != nil {
		return tx, invalid("shares", get("shares"), err)
	}

	if v := get("confirm_date"); v != "" {
		d, err := domain.ParseDate(v, c.loc)
		if err != nil {
			return tx, invalid("confirm_date", v, err)
		}
		tx.ConfirmDate = &d
	}
	for _, f := range []struct {
		col string
		dst *time.Time
	}{
		{"expected_valuation_date", &tx.ExpectedValuationDate},
		{"expected_confirm_date", &tx.ExpectedConfirmDate},
	} {
		if v := get(f.col); v != "" {
			if *f.dst, err = domain.ParseDate(v, c.loc); err != nil {
				return tx, invalid(f.col, v, err)
			}
		}
	}
	for _, f := range []struct {
		col string
		dst *time.Time
	}{
		{"submitted_at", &tx.SubmittedAt},
		{"created_at", &tx.CreatedAt},
		{"updated_at", &tx.UpdatedAt},
	} {
		if v := get(f.col); v != "" {
			if *f.dst, err = domain.ParseDateTime(v, c.loc); err != nil {
				return tx, invalid(f.col, v, err)
			}
		}
	}

	switch kind := domain.ValuationKind(get("valuation_kind")); kind {
	case "":
		tx.ValuationKind = domain.ValuationEstimate
	case domain.ValuationEstimate, domain.ValuationOfficial:
		tx.ValuationKind = kind
	default:
		return tx, invalid("valuation_kind", string(kind), nil)
	}

	switch flag := domain.CutoffFlag(get("cutoff")); flag {
	case "", domain.PreCutoff, domain.PostCutoff:
		tx.Cutoff = flag
	default:
		return tx, invalid("cutoff", string(flag), nil)
	}

	return tx, nil
}

func (c *Codec) formatTransaction(tx domain.Transaction) []string {
	confirm := ""
	if tx.ConfirmDate != nil {
		confirm = domain.FormatDate(*tx.ConfirmDate)
	}
	return []string{
		tx.ID,
		domain.FormatDate(tx.TradeDate),
		tx.FundCode,
		formatDecimal(tx.Amount),
		formatDecimal(tx.Shares),
		string(tx.Type),
		string(tx.Status),
		confirm,
		domain.FormatDate(tx.ExpectedValuationDate),
		domain.FormatDate(tx.ExpectedConfirmDate),
		string(tx.ValuationKind),
		c.formatDateTime(tx.SubmittedAt),
		string(tx.Cutoff),
		c.formatDateTime(tx.CreatedAt),
		c.formatDateTime(tx.UpdatedAt),
	}
}

func (c *Codec) formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(c.loc).Format(domain.DateTimeLayout)
}

// formatDecimal writes at least two places and never drops precision the value carries
func formatDecimal(d decimal.Decimal) string {
	places := int32(2)
	if exp := -d.Exponent(); exp > places {
		places = exp
	}
	return d.StringFixed(places)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
}

func isKnownColumn(name string) bool {
	for _, c := range Columns {
		if c == name {
			return true
		}
	}
	return false
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// remap reorders a raw record from the file's header order into the output header order
func remap(record, from, to []string) []string {
	pos := make(map[string]int, len(from))
	for i, name := range from {
		pos[strings.TrimSpace(name)] = i
	}
	out := make([]string, len(to))
	for i, name := range to {
		if j, ok := pos[name]; ok && j < len(record) {
			out[i] = record[j]
		}
	}
	return out
}
