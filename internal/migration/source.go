package migration

import (
	"context"
	"iter"
	"time"
)

// LegacyUser is one row of the legacy relational users table. The
// numeric ID exists only to join side tables; the target identity is
// the username.
type LegacyUser struct {
	ID          int64
	Username    string
	FirstName   string
	LastName    string
	Email       string
	Password    string
	IsStaff     bool
	IsActive    bool
	IsSuperuser bool
	LastLogin   *time.Time
	DateJoined  time.Time
}

// Source produces a finite sequence of legacy rows. Count must be
// answerable before iteration; it sizes the progress reporting.
type Source interface {
	Count(ctx context.Context) (int, error)
	Users(ctx context.Context) iter.Seq2[LegacyUser, error]
}

// attributes projects the row into the attribute map the merge chain
// starts from. The numeric id is carried along and dropped again when
// attributes are applied to the target record.
func (u LegacyUser) attributes() map[string]any {
	return map[string]any{
		"id":           u.ID,
		"username":     u.Username,
		"first_name":   u.FirstName,
		"last_name":    u.LastName,
		"email":        u.Email,
		"password":     u.Password,
		"is_staff":     u.IsStaff,
		"is_active":    u.IsActive,
		"is_superuser": u.IsSuperuser,
		"last_login":   u.LastLogin,
		"date_joined":  u.DateJoined,
	}
}
