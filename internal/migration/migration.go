package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/couchdir/couchdir/internal/directory"
	"github.com/couchdir/couchdir/types"
)

// ProfileFunc fetches the optional profile side-record for a legacy row
// and returns its attribute contribution. Any failure means that row's
// profile contribution is empty; it never aborts the run.
type ProfileFunc func(ctx context.Context, row LegacyUser) (map[string]any, error)

// OverrideFunc returns caller-supplied attributes with the highest
// precedence in the merge chain.
type OverrideFunc func(row LegacyUser) map[string]any

// ProgressFunc is invoked after every row, success or failure, with the
// zero-based index just processed and the total known up front.
type ProgressFunc func(index, total int)

// Status classifies one row's outcome.
type Status string

const (
	StatusMigrated  Status = "migrated"
	StatusDuplicate Status = "duplicate"
	StatusFailed    Status = "failed"
)

// RowResult records the outcome of one migrated row.
type RowResult struct {
	Username string `json:"username"`
	Status   Status `json:"status"`
	Error    string `json:"error,omitempty"`
}

// Report accumulates per-row outcomes for a whole run. The caller
// decides whether any failures constitute a failed run.
type Report struct {
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Total      int         `json:"total"`
	Rows       []RowResult `json:"rows"`
}

func (r *Report) count(s Status) int {
	n := 0
	for _, row := range r.Rows {
		if row.Status == s {
			n++
		}
	}
	return n
}

func (r *Report) Migrated() int   { return r.count(StatusMigrated) }
func (r *Report) Duplicates() int { return r.count(StatusDuplicate) }
func (r *Report) Failed() int     { return r.count(StatusFailed) }

// Options configures one run. All fields are optional.
type Options struct {
	Profile   ProfileFunc
	Overrides OverrideFunc
	Progress  ProgressFunc

	// OnRow observes each finished row; used to publish outcome events.
	OnRow func(index, total int, result RowResult)
}

// Migrator upserts legacy rows into the directory keyed by username.
// Rows are processed strictly sequentially: the directory's
// check-then-write is not safe to interleave for the same username or
// email without external coordination.
type Migrator struct {
	dir    *directory.Directory
	logger *slog.Logger
}

func New(dir *directory.Directory, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Migrator{dir: dir, logger: logger}
}

// Run migrates every row of source into the directory.
//
// A row's duplicate or store failure is recorded in the report and the
// run continues; only a failure of the source itself aborts, returning
// the partial report. Running twice over an unchanged source converges:
// existing records are updated in place, never duplicated.
func (m *Migrator) Run(ctx context.Context, source Source, opts Options) (*Report, error) {
	total, err := source.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count legacy users: %w", err)
	}

	report := &Report{
		StartedAt: time.Now().UTC(),
		Total:     total,
	}

	index := 0
	for row, err := range source.Users(ctx) {
		if err != nil {
			report.FinishedAt = time.Now().UTC()
			return report, fmt.Errorf("read legacy users: %w", err)
		}

		result := m.migrateRow(ctx, row, opts)
		report.Rows = append(report.Rows, result)

		if result.Status == StatusMigrated {
			m.logger.Info("migrated user", "username", result.Username, "index", index, "total", total)
		} else {
			m.logger.Warn("row not migrated", "username", result.Username, "status", result.Status, "error", result.Error)
		}

		if opts.OnRow != nil {
			opts.OnRow(index, total, result)
		}
		if opts.Progress != nil {
			opts.Progress(index, total)
		}
		index++
	}

	report.FinishedAt = time.Now().UTC()
	return report, nil
}

func (m *Migrator) migrateRow(ctx context.Context, row LegacyUser, opts Options) RowResult {
	result := RowResult{Username: row.Username}

	// Merge order, low to high precedence: base row, profile, overrides.
	data := row.attributes()
	if opts.Profile != nil {
		profile, err := opts.Profile(ctx, row)
		if err != nil {
			m.logger.Warn("profile unavailable", "username", row.Username, "error", err)
		} else {
			maps.Copy(data, profile)
		}
	}
	if opts.Overrides != nil {
		maps.Copy(data, opts.Overrides(row))
	}

	for key := range data {
		if internalField(key) {
			delete(data, key)
		}
	}

	target, err := m.dir.Lookup(ctx, row.Username)
	switch {
	case err == nil:
		// Reuse the stored identity; attributes are overwritten in place.
	case errors.Is(err, directory.ErrNotFound):
		target = types.NewUser(row.Username)
	default:
		result.Status = StatusFailed
		result.Error = err.Error()
		return result
	}

	applyAttributes(target, data)

	if err := m.dir.Save(ctx, target); err != nil {
		if errors.Is(err, directory.ErrDuplicateUsername) || errors.Is(err, directory.ErrDuplicateEmail) {
			result.Status = StatusDuplicate
		} else {
			result.Status = StatusFailed
		}
		result.Error = err.Error()
		return result
	}

	result.Status = StatusMigrated
	return result
}

// internalField marks attributes that must never reach the target:
// private fields of the legacy model and the profile join key.
func internalField(key string) bool {
	return strings.HasPrefix(key, "_") || key == "user_id"
}

// applyAttributes writes the merged attributes onto the target record.
// Fixed-schema keys are assigned with type coercion; anything else goes
// into the Extra bag. The numeric id is never assigned: identity is
// derived solely from the username.
func applyAttributes(u *types.User, data map[string]any) {
	for key, value := range data {
		switch key {
		case "id":
		case "username":
			if s, ok := asString(value); ok {
				u.Username = s
			}
		case "first_name":
			if s, ok := asString(value); ok {
				u.FirstName = s
			}
		case "last_name":
			if s, ok := asString(value); ok {
				u.LastName = s
			}
		case "email":
			if s, ok := asString(value); ok {
				u.Email = s
			}
		case "password":
			if s, ok := asString(value); ok {
				u.Password = s
			}
		case "is_staff":
			if b, ok := value.(bool); ok {
				u.IsStaff = b
			}
		case "is_active":
			if b, ok := value.(bool); ok {
				u.IsActive = b
			}
		case "is_superuser":
			if b, ok := value.(bool); ok {
				u.IsSuperuser = b
			}
		case "last_login":
			u.LastLogin = asTimePtr(value)
		case "date_joined":
			if t := asTimePtr(value); t != nil {
				u.DateJoined = *t
			}
		default:
			// Reserved keys are rejected by SetExtra and dropped.
			_ = u.SetExtra(key, value)
		}
	}
}

func asString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}

func asTimePtr(value any) *time.Time {
	switch v := value.(type) {
	case *time.Time:
		return v
	case time.Time:
		return &v
	default:
		return nil
	}
}
