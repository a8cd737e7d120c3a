// Package matches turns raw match-history rows into an ordered match sequence.
//
// The source feed is a spreadsheet range where each row carries, by column:
// 0 = date, 2 = player 1, 4 = winner marker, 5 = player 2. Other columns are
// ignored.
package matches

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/okian/ladder/internal/domain/model"
)

// Column layout of the match-history feed.
const (
	colDate    = 0
	colPlayer1 = 2
	colWinner  = 4
	colPlayer2 = 5
	minColumns = 6

	player1Marker = "Player 1"
	player2Marker = "Player 2"
)

// Policy decides what a malformed row does to the whole parse.
type Policy int

const (
	// PolicySkip drops malformed rows and reports them in Result.Skipped.
	PolicySkip Policy = iota
	// PolicyFail aborts the parse on the first malformed row.
	PolicyFail
)

// String returns the configuration spelling of the policy.
func (p Policy) String() string {
	switch p {
	case PolicySkip:
		return "skip"
	case PolicyFail:
		return "fail"
	default:
		return "unknown"
	}
}

// ParsePolicy maps a configuration value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return PolicySkip, nil
	case "fail":
		return PolicyFail, nil
	default:
		return PolicySkip, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// DefaultDateLayouts are the formats a spreadsheet export commonly produces.
var DefaultDateLayouts = []string{
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Result is the outcome of a parse.
type Result struct {
	Matches []model.Match // ascending by OccurredAt, stable for equal timestamps
	Skipped []RowError    // rows dropped under PolicySkip
}

// Parser converts rows to matches.
type Parser struct {
	policy       Policy
	strictWinner bool
	layouts      []string
	loc          *time.Location
}

// NewParser creates a parser with configuration options.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		policy:  PolicySkip,
		layouts: DefaultDateLayouts,
		loc:     time.UTC,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Parse builds a match sequence from rows with a one-off parser.
func Parse(ctx context.Context, rows [][]string, opts ...Option) (Result, error) {
	return NewParser(opts...).Parse(ctx, rows)
}

// Parse maps every non-blank row to exactly one match and sorts the result by
// time. rows is never modified.
func (p *Parser) Parse(ctx context.Context, rows [][]string) (Result, error) {
	res := Result{Matches: make([]model.Match, 0, len(rows))}

	for i, row := range rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, fmt.Errorf("parse cancelled: %w", err)
			}
		}
		if blank(row) {
			continue
		}

		m, rowErr := p.parseRow(i, row)
		if rowErr != nil {
			if p.policy == PolicyFail {
				return Result{}, rowErr
			}
			res.Skipped = append(res.Skipped, *rowErr)
			continue
		}
		res.Matches = append(res.Matches, m)
	}

	sort.SliceStable(res.Matches, func(i, j int) bool {
		return res.Matches[i].OccurredAt.Before(res.Matches[j].OccurredAt)
	})

	return res, nil
}

func (p *Parser) parseRow(idx int, row []string) (model.Match, *RowError) {
	if len(row) < minColumns {
		return model.Match{}, &RowError{Index: idx, Reason: fmt.Sprintf("expected at least %d columns, got %d", minColumns, len(row)), Err: ErrMalformedRow}
	}

	occurredAt, err := p.parseDate(row[colDate])
	if err != nil {
		return model.Match{}, &RowError{Index: idx, Reason: fmt.Sprintf("unparseable date %q", row[colDate]), Err: ErrMalformedRow}
	}

	p1 := strings.TrimSpace(row[colPlayer1])
	p2 := strings.TrimSpace(row[colPlayer2])
	switch {
	case p1 == "":
		return model.Match{}, &RowError{Index: idx, Reason: "missing player 1", Err: ErrMalformedRow}
	case p2 == "":
		return model.Match{}, &RowError{Index: idx, Reason: "missing player 2", Err: ErrMalformedRow}
	case p1 == p2:
		return model.Match{}, &RowError{Index: idx, Reason: fmt.Sprintf("player %q cannot play themselves", p1), Err: ErrMalformedRow}
	}

	winner, ok := p.parseWinner(row[colWinner])
	if !ok {
		return model.Match{}, &RowError{Index: idx, Reason: fmt.Sprintf("winner marker %q", row[colWinner]), Err: ErrUnknownWinner}
	}

	return model.Match{
		Player1:    p1,
		Player2:    p2,
		Winner:     winner,
		OccurredAt: occurredAt,
	}, nil
}

func (p *Parser) parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrMalformedRow
	}
	var lastErr error
	for _, layout := range p.layouts {
		t, err := time.ParseInLocation(layout, s, p.loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func (p *Parser) parseWinner(s string) (model.Winner, bool) {
	if s == player1Marker {
		return model.Player1, true
	}
	if !p.strictWinner || s == player2Marker {
		return model.Player2, true
	}
	return 0, false
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Window keeps matches played after now-maxAge. A non-positive maxAge keeps
// everything. The input slice is not modified.
func Window(ms []model.Match, now time.Time, maxAge time.Duration) []model.Match {
	if maxAge <= 0 {
		return ms
	}
	cutoff := now.Add(-maxAge)
	out := make([]model.Match, 0, len(ms))
	for _, m := range ms {
		if m.OccurredAt.After(cutoff) {
			out = append(out, m)
		}
	}
	return out
}

// Players returns every participant in ms, sorted and de-duplicated.
func Players(ms []model.Match) []string {
	seen := make(map[string]struct{}, len(ms))
	for _, m := range ms {
		seen[m.Player1] = struct{}{}
		seen[m.Player2] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
