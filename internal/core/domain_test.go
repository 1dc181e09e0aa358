package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestCredentialsValidate(t *testing.T) {
	cases := []struct {
		c    Credentials
		want error
	}{
		{Credentials{Username: "alice", Password: "pw1"}, nil},
		{Credentials{Username: "", Password: "pw1"}, ErrEmptyUsername},
		{Credentials{Username: "   ", Password: "pw1"}, ErrEmptyUsername},
		{Credentials{Username: "alice", Password: ""}, ErrEmptyPassword},
	}
	for i, tc := range cases {
		if err := tc.c.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d: got %v, want %v", i, err, tc.want)
		}
	}
}

func TestDraftValidate(t *testing.T) {
	good := EntryDraft{Name: "Coffee", Type: "Food", Quantity: 2, Price: Money{Cents: 350}, Mode: ModeCash}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	free := good
	free.Price = Money{}
	if err := free.Validate(); err != nil {
		t.Fatalf("zero price should be valid, got %v", err)
	}

	cases := []struct {
		mutate func(*EntryDraft)
		want   error
	}{
		{func(d *EntryDraft) { d.Name = " " }, ErrEmptyName},
		{func(d *EntryDraft) { d.Type = "" }, ErrEmptyType},
		{func(d *EntryDraft) { d.Quantity = 0 }, ErrInvalidQuantity},
		{func(d *EntryDraft) { d.Price = Money{Cents: -1} }, ErrInvalidPrice},
		{func(d *EntryDraft) { d.Mode = "bitcoin" }, ErrInvalidMode},
	}
	for i, tc := range cases {
		d := good
		tc.mutate(&d)
		if err := d.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d: got %v, want %v", i, err, tc.want)
		}
	}
}

func TestNewDraftDefaults(t *testing.T) {
	d := NewDraft()
	if d.Quantity != 1 || d.Price.Cents != 0 || d.Mode != ModeCash || d.Name != "" || d.Type != "" || d.Note != "" {
		t.Fatalf("unexpected defaults: %+v", d)
	}
}

func TestParsePaymentMode(t *testing.T) {
	for _, in := range []string{"cash", "UPI", " Card ", "other"} {
		if _, err := ParsePaymentMode(in); err != nil {
			t.Errorf("ParsePaymentMode(%q): %v", in, err)
		}
	}
	if _, err := ParsePaymentMode("all"); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("all is a filter value, not a mode")
	}
}

func TestEntryDecode(t *testing.T) {
	body := `[
		{"eid": 42, "name": "Coffee", "type": "Food", "quantity": 2, "price": 3.5, "mode": "cash", "date": "2024-03-01"},
		{"eid": "a1b2", "name": "Bus", "type": "Travel", "mode": "upi"}
	]`
	var entries []Entry
	if err := json.Unmarshal([]byte(body), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entries[0].ID != "42" || entries[1].ID != "a1b2" {
		t.Fatalf("unexpected ids: %q %q", entries[0].ID, entries[1].ID)
	}
	if got := entries[0].LineTotal().String(); got != "7.00" {
		t.Fatalf("line total = %s, want 7.00", got)
	}
	if got := entries[1].LineTotal().Cents; got != 0 {
		t.Fatalf("missing quantity and price should total 0, got %d", got)
	}
}

func TestEntryDecodeLenientQuantity(t *testing.T) {
	tests := []struct {
		quantity string
		want     int
	}{
		{`2`, 2},
		{`2.0`, 2},
		{`"3"`, 3},
		{`" 4 "`, 4},
		{`null`, 0},
		{`""`, 0},
		{`"two"`, 0},
		{`2.5`, 0},
		{`1e20`, 0},
		{`true`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.quantity, func(t *testing.T) {
			body := `[{"eid": 1, "name": "Coffee", "quantity": ` + tt.quantity + `, "price": 3.5, "mode": "cash"},
				{"eid": 2, "name": "Tea", "quantity": 1, "price": 2, "mode": "cash"}]`
			var entries []Entry
			if err := json.Unmarshal([]byte(body), &entries); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if entries[0].Quantity != tt.want {
				t.Errorf("quantity = %d, want %d", entries[0].Quantity, tt.want)
			}
			if entries[0].Name != "Coffee" || entries[0].ID != "1" || entries[0].Price.Cents != 350 {
				t.Errorf("other fields lost: %+v", entries[0])
			}
			if entries[1].Quantity != 1 || entries[1].Name != "Tea" {
				t.Errorf("second entry = %+v", entries[1])
			}
		})
	}
}

func TestPeriod(t *testing.T) {
	p := CurrentPeriod(time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC))
	if p != (Period{Month: 3, Year: 2024}) {
		t.Fatalf("unexpected period %+v", p)
	}
	if p.String() != "3/2024" {
		t.Fatalf("unexpected string %q", p.String())
	}

	cases := []struct {
		p    Period
		want error
	}{
		{Period{Month: 1, Year: 2000}, nil},
		{Period{Month: 12, Year: 2030}, nil},
		{Period{Month: 0, Year: 2024}, ErrInvalidMonth},
		{Period{Month: 13, Year: 2024}, ErrInvalidMonth},
		{Period{Month: 5, Year: 1999}, ErrInvalidYear},
	}
	for _, tc := range cases {
		if err := tc.p.Validate(); !errors.Is(err, tc.want) {
			t.Errorf("%+v: got %v, want %v", tc.p, err, tc.want)
		}
	}
}

func TestFilterCriteriaIsIdentity(t *testing.T) {
	if !NoFilter().IsIdentity() {
		t.Fatal("NoFilter should be the identity")
	}
	if !(FilterCriteria{}).IsIdentity() {
		t.Fatal("zero criteria should be the identity")
	}
	if (FilterCriteria{Mode: "cash"}).IsIdentity() {
		t.Fatal("mode filter is not the identity")
	}
}
