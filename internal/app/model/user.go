package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CollectionUsers holds one UserRecord document per principal, keyed by principal id
const CollectionUsers = "users"

// document field names
const (
	FieldUsername = "username"
	FieldEmail    = "email"
	FieldBalance  = "balance"
	FieldIsAdmin  = "isAdmin"
)

type UserRecord struct {
	ID       string          `json:"id"`
	Username string          `json:"username"`
	Email    string          `json:"email"`
	Balance  decimal.Decimal `json:"-"`
	IsAdmin  bool            `json:"-"`
}

// MarshalJSON implements the json.Marshaler interface.
func (u UserRecord) MarshalJSON() ([]byte, error) {
	o := struct {
		ID       string  `json:"id"`
		Username string  `json:"username"`
		Email    string  `json:"email"`
		Balance  float64 `json:"balance"`
	}{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Balance:  u.Balance.InexactFloat64(),
	}

	return json.Marshal(o)
}

// Matches reports whether the lowercased term is a substring of email or username
func (u UserRecord) Matches(term string) bool {
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(u.Email), term) ||
		strings.Contains(strings.ToLower(u.Username), term)
}

// Document renders the record's profile fields. isAdmin is never written from here.
func (u UserRecord) Document() Document {
	return Document{
		FieldUsername: u.Username,
		FieldEmail:    u.Email,
		FieldBalance:  json.Number(u.Balance.String()),
	}
}

// UserRecordFromDocument reads a stored document leniently: missing or mistyped
// fields fall back to zero values. IsAdmin is set only for a boolean true.
func UserRecordFromDocument(id string, d Document) *UserRecord {
	u := &UserRecord{ID: id}
	u.Username, _ = d[FieldUsername].(string)
	u.Email, _ = d[FieldEmail].(string)
	u.Balance = d.Decimal(FieldBalance)
	if v, ok := d[FieldIsAdmin].(bool); ok && v {
		u.IsAdmin = true
	}
	return u
}

// Document is a schemaless record as kept by the document store
type Document map[string]interface{}

// DocumentSnapshot is a document together with its key
type DocumentSnapshot struct {
	ID   string
	Data Document
}

// Decimal reads numeric field, zero when absent or not numeric
func (d Document) Decimal(field string) decimal.Decimal {
	var raw string
	switch v := d[field].(type) {
	case json.Number:
		raw = v.String()
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case decimal.Decimal:
		return v
	case string:
		raw = v
	default:
		return decimal.Zero
	}

	res, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return res
}

// DecodeDocument parses stored JSON keeping numbers exact
func DecodeDocument(b []byte) (Document, error) {
	d := Document{}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}
	return d, nil
}
