package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	ModeCash  PaymentMode = "cash"
	ModeUPI   PaymentMode = "upi"
	ModeCard  PaymentMode = "card"
	ModeOther PaymentMode = "other"
)

// ModeAll disables the payment mode filter.
const ModeAll = "all"

// MinStatsYear is the earliest year the stats period selector accepts.
const MinStatsYear = 2000

type (
	PaymentMode string

	// EntryID is the server-assigned identifier. The service may send it as a
	// number or a string; it is kept as text either way.
	EntryID string

	Credentials struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	Entry struct {
		ID       EntryID     `json:"eid"`
		Owner    string      `json:"username,omitempty"`
		Name     string      `json:"name"`
		Type     string      `json:"type"`
		Quantity int         `json:"quantity"`
		Price    Money       `json:"price"`
		Mode     PaymentMode `json:"mode"`
		Note     string      `json:"note,omitempty"`
		Date     string      `json:"date,omitempty"` // server-assigned, opaque
	}

	// EntryDraft is the unsaved candidate submitted to the create endpoint.
	EntryDraft struct {
		Name     string      `json:"name"`
		Type     string      `json:"type"`
		Quantity int         `json:"quantity"`
		Price    Money       `json:"price"`
		Note     string      `json:"note"`
		Mode     PaymentMode `json:"mode"`
	}

	FilterCriteria struct {
		SearchTerm string
		Mode       string // ModeAll or a PaymentMode value
	}

	Period struct {
		Month int
		Year  int
	}

	StatsSnapshot struct {
		Month             int   `json:"month"`
		Year              int   `json:"year"`
		TotalSpent        Money `json:"totalSpent"`
		AverageDailySpent Money `json:"averageDailySpent"`
		HighestExpense    Money `json:"highestExpense"`
	}
)

var (
	ErrEmptyUsername   = errors.New("username is required")
	ErrEmptyPassword   = errors.New("password is required")
	ErrEmptyName       = errors.New("entry name is required")
	ErrEmptyType       = errors.New("entry type is required")
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrInvalidPrice    = errors.New("price must not be negative")
	ErrInvalidMode     = errors.New("invalid payment mode")
	ErrInvalidMonth    = errors.New("month must be between 1 and 12")
	ErrInvalidYear     = fmt.Errorf("year must be %d or later", MinStatsYear)
	ErrEmptyEntryID    = errors.New("entry id is required")
)

// Modes lists the payment modes in display order.
func Modes() []PaymentMode {
	return []PaymentMode{ModeCash, ModeUPI, ModeCard, ModeOther}
}

// ParsePaymentMode matches s case-insensitively against the known modes.
func ParsePaymentMode(s string) (PaymentMode, error) {
	m := PaymentMode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", ErrInvalidMode
	}
	return m, nil
}

func (m PaymentMode) Valid() bool {
	return slices.Contains(Modes(), m)
}

func (m PaymentMode) String() string {
	return string(m)
}

func (id EntryID) String() string {
	return string(id)
}

// UnmarshalJSON accepts both JSON strings and numbers.
func (id *EntryID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = EntryID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode entry id: %w", err)
	}
	*id = EntryID(n.String())
	return nil
}

func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return ErrEmptyUsername
	}
	if c.Password == "" {
		return ErrEmptyPassword
	}
	return nil
}

// LineTotal is quantity * price. It is never stored.
// UnmarshalJSON decodes an entry leniently: quantity may be a number, a
// numeric string or null. Anything that is not a whole number decodes to 0
// so one odd field never fails the whole listing.
func (e *Entry) UnmarshalJSON(data []byte) error {
	type plain Entry
	aux := struct {
		*plain
		Quantity json.RawMessage `json:"quantity"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("decode entry: %w", err)
	}
	e.Quantity = decodeQuantity(aux.Quantity)
	return nil
}

func decodeQuantity(raw json.RawMessage) int {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return 0
	}
	if text[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		text = strings.TrimSpace(s)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0
	}
	return int(f)
}

func (e Entry) LineTotal() Money {
	return Money{Cents: int64(e.Quantity) * e.Price.Cents}
}

// NewDraft returns a draft holding the form defaults.
func NewDraft() EntryDraft {
	return EntryDraft{Quantity: 1, Mode: ModeCash}
}

func (d EntryDraft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(d.Type) == "" {
		return ErrEmptyType
	}
	if d.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if d.Price.Cents < 0 {
		return ErrInvalidPrice
	}
	if !d.Mode.Valid() {
		return ErrInvalidMode
	}
	return nil
}

// NoFilter is the identity criteria.
func NoFilter() FilterCriteria {
	return FilterCriteria{Mode: ModeAll}
}

// IsIdentity reports whether the criteria let every entry through.
func (c FilterCriteria) IsIdentity() bool {
	return c.SearchTerm == "" && (c.Mode == "" || strings.EqualFold(c.Mode, ModeAll))
}

// CurrentPeriod returns the month and year of t.
func CurrentPeriod(t time.Time) Period {
	return Period{Month: int(t.Month()), Year: t.Year()}
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return ErrInvalidMonth
	}
	if p.Year < MinStatsYear {
		return ErrInvalidYear
	}
	return nil
}

func (p Period) String() string {
	return strconv.Itoa(p.Month) + "/" + strconv.Itoa(p.Year)
}

// Period returns the key the snapshot was computed for.
func (s StatsSnapshot) Period() Period {
	return Period{Month: s.Month, Year: s.Year}
}
