package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/now"
)

// Meta carries the identity and optimistic-lock version of every stored entity.
type Meta struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Meta) GetID() string      { return m.ID }
func (m *Meta) GetVersion() int64  { return m.Version }
func (m *Meta) SetVersion(v int64) { m.Version = v }

// Touch stamps UpdatedAt, and CreatedAt on first write.
func (m *Meta) Touch(t time.Time) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = t
	}
	m.UpdatedAt = t
}

// DateLayout is the ISO-8601 calendar date format used on the wire.
const DateLayout = "2006-01-02"

// Date is a calendar date without time-of-day semantics. It is always
// anchored at midnight UTC so comparisons never depend on the zone of the caller.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day.
func NewDate(t time.Time) Date {
	d := now.With(t).BeginningOfDay()
	return Date{Time: time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)}
}

// DateOf builds a Date from its parts.
func DateOf(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO-8601 calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{Time: t}, nil
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Role of an authenticated caller.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleAgent Role = "agent"
)

// Actor identifies who performs an operation.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsAdmin returns true if the actor holds the administrator role
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type actorKey struct{}

// WithActor attaches the acting user to ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the acting user stored by WithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

// RequestInfo describes the client a request came from.
type RequestInfo struct {
	IP        string
	UserAgent string
}

type requestInfoKey struct{}

// WithRequestInfo attaches client details to ctx for the audit trail.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFromContext returns the client details stored by WithRequestInfo.
func RequestInfoFromContext(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}
