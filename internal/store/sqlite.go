package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/masterscarnivals/sidelinesync/internal/model"
)

//go:embed schema.sql
var schema string

const dayFormat = "2006-01-02"

// SQLite is the file-backed EventStore used in real deployments
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed creates) the carnival database at path
func OpenSQLite(path string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

const carnivalColumns = `id, title, date, state,
	address1, address2, address3, address4,
	maps_url, schedule_details,
	organiser_name, organiser_phone, organiser_email,
	facebook, website, logo_url, registration_link,
	is_active, is_manually_entered, claimed_at, created_by_user_id,
	last_mysideline_sync`

func (s *SQLite) FindByKey(ctx context.Context, key Key) (*model.StoredEvent, error) {
	ev, err := s.findExact(ctx, key)
	if err == ErrNotFound && key.Day != nil {
		ev, err = s.findExact(ctx, key.WithoutDay())
	}
	return ev, err
}

func (s *SQLite) findExact(ctx context.Context, key Key) (*model.StoredEvent, error) {
	query := "SELECT " + carnivalColumns + " FROM carnivals WHERE norm_title = ? AND state = ? AND date "
	args := []any{key.NormTitle, key.State}
	if key.Day != nil {
		query += "= ?"
		args = append(args, key.Day.Format(dayFormat))
	} else {
		query += "IS NULL"
	}

	row := s.db.QueryRowContext(ctx, query, args...)
	ev, err := scanCarnival(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find by key: %w", err)
	}
	if err := s.loadFieldEdits(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *SQLite) loadFieldEdits(ctx context.Context, ev *model.StoredEvent) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT field, updated_at FROM carnival_field_edits WHERE carnival_id = ?", ev.ID)
	if err != nil {
		return fmt.Errorf("load field edits: %w", err)
	}
	defer rows.Close()

	ev.FieldUpdatedAt = make(map[string]time.Time)
	for rows.Next() {
		var field, at string
		if err := rows.Scan(&field, &at); err != nil {
			return fmt.Errorf("scan field edit: %w", err)
		}
		ts, err := time.Parse(time.RFC3339, at)
		if err != nil {
			continue
		}
		ev.FieldUpdatedAt[field] = ts
	}
	return rows.Err()
}

func (s *SQLite) Insert(ctx context.Context, ev *model.NormalisedEvent, now time.Time) (int64, error) {
	addr := paddedAddress(ev.AddressParts)
	res, err := s.db.ExecContext(ctx, `INSERT INTO carnivals
		(title, norm_title, date, state,
		 address1, address2, address3, address4,
		 maps_url, schedule_details,
		 organiser_name, organiser_phone, organiser_email,
		 facebook, website, logo_url, registration_link,
		 is_active, is_manually_entered, last_mysideline_sync)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		ev.Title, NormaliseTitle(ev.Title), dayOrNull(ev.Date), ev.State,
		addr[0], addr[1], addr[2], addr[3],
		ev.MapsURL, ev.ScheduleDetails,
		ev.Organiser.Name, ev.Organiser.Phone, ev.Organiser.Email,
		ev.Social.Facebook, ev.Social.Website, ev.LogoURL, ev.RegistrationLink,
		boolInt(ev.IsActive), now.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("insert carnival: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLite) UpdateWhole(ctx context.Context, id int64, ev *model.NormalisedEvent, now time.Time) error {
	addr := paddedAddress(ev.AddressParts)
	res, err := s.db.ExecContext(ctx, `UPDATE carnivals SET
		title = ?, norm_title = ?, date = ?, state = ?,
		address1 = ?, address2 = ?, address3 = ?, address4 = ?,
		maps_url = ?, schedule_details = ?,
		organiser_name = ?, organiser_phone = ?, organiser_email = ?,
		facebook = ?, website = ?, logo_url = ?, registration_link = ?,
		is_active = ?,
		last_mysideline_sync = CASE
			WHEN last_mysideline_sync IS NULL OR last_mysideline_sync < ? THEN ?
			ELSE last_mysideline_sync END
		WHERE id = ?`,
		ev.Title, NormaliseTitle(ev.Title), dayOrNull(ev.Date), ev.State,
		addr[0], addr[1], addr[2], addr[3],
		ev.MapsURL, ev.ScheduleDetails,
		ev.Organiser.Name, ev.Organiser.Phone, ev.Organiser.Email,
		ev.Social.Facebook, ev.Social.Website, ev.LogoURL, ev.RegistrationLink,
		boolInt(ev.IsActive),
		now.UTC().Format(time.RFC3339), now.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("update carnival: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// fieldColumns maps canonical field names to the columns they own
var fieldColumns = map[string][]string{
	model.FieldTitle:          {"title", "norm_title"},
	model.FieldDate:           {"date"},
	model.FieldState:          {"state"},
	model.FieldAddress:        {"address1", "address2", "address3", "address4"},
	model.FieldMapsURL:        {"maps_url"},
	model.FieldSchedule:       {"schedule_details"},
	model.FieldOrganiserName:  {"organiser_name"},
	model.FieldOrganiserPhone: {"organiser_phone"},
	model.FieldOrganiserEmail: {"organiser_email"},
	model.FieldFacebook:       {"facebook"},
	model.FieldWebsite:        {"website"},
	model.FieldLogoURL:        {"logo_url"},
	model.FieldIsActive:       {"is_active"},
	model.FieldRegistration:   {"registration_link"},
}

func fieldValues(ev *model.NormalisedEvent, field string) []any {
	addr := paddedAddress(ev.AddressParts)
	switch field {
	case model.FieldTitle:
		return []any{ev.Title, NormaliseTitle(ev.Title)}
	case model.FieldDate:
		return []any{dayOrNull(ev.Date)}
	case model.FieldState:
		return []any{ev.State}
	case model.FieldAddress:
		return []any{addr[0], addr[1], addr[2], addr[3]}
	case model.FieldMapsURL:
		return []any{ev.MapsURL}
	case model.FieldSchedule:
		return []any{ev.ScheduleDetails}
	case model.FieldOrganiserName:
		return []any{ev.Organiser.Name}
	case model.FieldOrganiserPhone:
		return []any{ev.Organiser.Phone}
	case model.FieldOrganiserEmail:
		return []any{ev.Organiser.Email}
	case model.FieldFacebook:
		return []any{ev.Social.Facebook}
	case model.FieldWebsite:
		return []any{ev.Social.Website}
	case model.FieldLogoURL:
		return []any{ev.LogoURL}
	case model.FieldIsActive:
		return []any{boolInt(ev.IsActive)}
	case model.FieldRegistration:
		return []any{ev.RegistrationLink}
	}
	return nil
}

func (s *SQLite) UpdateClaimed(ctx context.Context, id int64, ev *model.NormalisedEvent, claimedAt, now time.Time) (fields []string, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, "SELECT "+carnivalColumns+" FROM carnivals WHERE id = ?", id)
	stored, err := scanCarnival(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load carnival: %w", err)
	}
	if err := loadFieldEditsTx(ctx, tx, stored); err != nil {
		return nil, err
	}

	fields = ClaimSafeFields(stored, ev, claimedAt)
	set := ""
	var args []any
	for _, field := range fields {
		for i, col := range fieldColumns[field] {
			if set != "" {
				set += ", "
			}
			set += col + " = ?"
			args = append(args, fieldValues(ev, field)[i])
		}
	}
	if set != "" {
		set += ", "
	}
	set += `last_mysideline_sync = CASE
		WHEN last_mysideline_sync IS NULL OR last_mysideline_sync < ? THEN ?
		ELSE last_mysideline_sync END`
	syncAt := now.UTC().Format(time.RFC3339)
	args = append(args, syncAt, syncAt, id)

	if _, err := tx.ExecContext(ctx, "UPDATE carnivals SET "+set+" WHERE id = ?", args...); err != nil {
		return nil, fmt.Errorf("update claimed carnival: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return append(fields, model.FieldLastSync), nil
}

func loadFieldEditsTx(ctx context.Context, tx *sql.Tx, ev *model.StoredEvent) error {
	rows, err := tx.QueryContext(ctx,
		"SELECT field, updated_at FROM carnival_field_edits WHERE carnival_id = ?", ev.ID)
	if err != nil {
		return fmt.Errorf("load field edits: %w", err)
	}
	defer rows.Close()

	ev.FieldUpdatedAt = make(map[string]time.Time)
	for rows.Next() {
		var field, at string
		if err := rows.Scan(&field, &at); err != nil {
			return fmt.Errorf("scan field edit: %w", err)
		}
		if ts, perr := time.Parse(time.RFC3339, at); perr == nil {
			ev.FieldUpdatedAt[field] = ts
		}
	}
	return rows.Err()
}

// MarkUserEdit records a user edit timestamp for a field, as the web
// application does; kept here so admin tooling and tests share one path.
func (s *SQLite) MarkUserEdit(ctx context.Context, id int64, field string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO carnival_field_edits (carnival_id, field, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (carnival_id, field) DO UPDATE SET updated_at = excluded.updated_at`,
		id, field, at.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("mark user edit: %w", err)
	}
	return nil
}

// Claim performs the one-way ownership transition on an imported record
func (s *SQLite) Claim(ctx context.Context, id int64, userID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE carnivals
		SET claimed_at = ?, created_by_user_id = ?
		WHERE id = ? AND claimed_at IS NULL AND is_manually_entered = 0`,
		at.UTC().Format(time.RFC3339), userID, id)
	if err != nil {
		return fmt.Errorf("claim carnival: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("carnival %d cannot be claimed", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCarnival(row rowScanner) (*model.StoredEvent, error) {
	var (
		ev                        model.StoredEvent
		date, claimedAt, lastSync sql.NullString
		a1, a2, a3, a4            string
		isActive, isManual        int
	)
	err := row.Scan(&ev.ID, &ev.Title, &date, &ev.State,
		&a1, &a2, &a3, &a4,
		&ev.MapsURL, &ev.ScheduleDetails,
		&ev.Organiser.Name, &ev.Organiser.Phone, &ev.Organiser.Email,
		&ev.Social.Facebook, &ev.Social.Website, &ev.LogoURL, &ev.RegistrationLink,
		&isActive, &isManual, &claimedAt, &ev.CreatedByUserID,
		&lastSync)
	if err != nil {
		return nil, err
	}

	ev.IsActive = isActive != 0
	ev.IsManuallyEntered = isManual != 0
	for _, part := range []string{a1, a2, a3, a4} {
		if part != "" {
			ev.AddressParts = append(ev.AddressParts, part)
		}
	}
	if date.Valid {
		if d, perr := time.ParseInLocation(dayFormat, date.String, time.UTC); perr == nil {
			ev.Date = &d
		}
	}
	if claimedAt.Valid {
		if t, perr := time.Parse(time.RFC3339, claimedAt.String); perr == nil {
			ev.ClaimedAt = &t
		}
	}
	if lastSync.Valid {
		if t, perr := time.Parse(time.RFC3339, lastSync.String); perr == nil {
			ev.LastMySidelineSync = &t
		}
	}
	return &ev, nil
}

func paddedAddress(parts []string) [4]string {
	var out [4]string
	for i := 0; i < len(parts) && i < 4; i++ {
		out[i] = parts[i]
	}
	return out
}

func dayOrNull(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(dayFormat)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
