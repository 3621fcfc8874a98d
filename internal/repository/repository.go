// Package repository stores submitted sync events in a relational
// database: every event as a row in "logs", and work and leave as rows in
// "shifts" for timesheet queries.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Tiliavir/shift-clock/internal/model"
)

// LogRow is one submitted event.
type LogRow struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserName    string    `gorm:"size:191;index" json:"user_name"`
	Action      string    `gorm:"size:64" json:"action"`
	ClientTime  time.Time `gorm:"index" json:"client_time"`
	LocalString string    `gorm:"size:32" json:"local_string"`
	CreatedAt   time.Time `json:"created_at"`
}

func (LogRow) TableName() string { return "logs" }

// ShiftRow is a work shift or leave day. Work rows are opened by a clock
// in and closed by the next clock out of the same user.
type ShiftRow struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserName        string     `gorm:"size:191;index" json:"user_name"`
	Kind            string     `gorm:"size:64" json:"type"`
	ClockIn         time.Time  `gorm:"index" json:"clock_in"`
	ClockOut        *time.Time `json:"clock_out"`
	DurationMinutes int        `json:"duration_minutes"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (ShiftRow) TableName() string { return "shifts" }

// ErrUnsupportedDriver is returned by Open for an unknown driver name.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Open connects to driver ("mysql" or "sqlite") and migrates the schema.
func Open(driver, dsn string, verbose bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	logMode := gormlogger.Silent
	if verbose {
		logMode = gormlogger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(logMode)})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if err := db.AutoMigrate(&LogRow{}, &ShiftRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Repository is the query surface used by the server.
type Repository interface {
	RecordEvent(ctx context.Context, ev model.SyncEvent) error
	Report(ctx context.Context, start, end time.Time, name string) ([]ShiftRow, error)
	RecentLogs(ctx context.Context, limit int) ([]LogRow, error)
}

type gormRepository struct {
	db           *gorm.DB
	leaveMinutes map[string]int
}

// New returns a Repository over db. leaveMinutes credits leave rows by
// action name; unknown leave actions are stored with zero minutes.
func New(db *gorm.DB, leaveMinutes map[string]int) Repository {
	if leaveMinutes == nil {
		leaveMinutes = map[string]int{string(model.KindPaidOff): 480}
	}
	return &gormRepository{db: db, leaveMinutes: leaveMinutes}
}

// ParseClientTime reads the event timestamp, an ISO-8601 instant.
func ParseClientTime(ts string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(ts))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", ts, err)
	}
	return t.UTC(), nil
}

func (r *gormRepository) RecordEvent(ctx context.Context, ev model.SyncEvent) error {
	at, err := ParseClientTime(ev.Timestamp)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(ev.Name)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&LogRow{
			UserName:    name,
			Action:      ev.Action,
			ClientTime:  at,
			LocalString: ev.LocalTime,
		}).Error; err != nil {
			return fmt.Errorf("insert log: %w", err)
		}

		switch ev.Action {
		case model.ActionClockIn:
			return tx.Create(&ShiftRow{UserName: name, Kind: string(model.KindWork), ClockIn: at}).Error
		case model.ActionClockOut:
			var open ShiftRow
			err := tx.Where("user_name = ? AND kind = ? AND clock_out IS NULL AND clock_in <= ?", name, string(model.KindWork), at).
				Order("clock_in DESC").
				First(&open).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// The clock in never arrived; the log row is all we have.
				return nil
			}
			if err != nil {
				return fmt.Errorf("find open shift: %w", err)
			}
			out := at
			return tx.Model(&open).Updates(map[string]any{
				"clock_out":        &out,
				"duration_minutes": int(at.Sub(open.ClockIn) / time.Minute),
			}).Error
		default:
			return tx.Create(&ShiftRow{
				UserName:        name,
				Kind:            ev.Action,
				ClockIn:         at,
				DurationMinutes: r.leaveMinutes[ev.Action],
			}).Error
		}
	})
}

func (r *gormRepository) Report(ctx context.Context, start, end time.Time, name string) ([]ShiftRow, error) {
	q := r.db.WithContext(ctx).
		Where("clock_in >= ? AND clock_in <= ?", start.UTC(), end.UTC()).
		Order("clock_in ASC")
	if name = strings.TrimSpace(name); name != "" {
		q = q.Where("LOWER(user_name) = LOWER(?)", name)
	}
	rows := []ShiftRow{}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query shifts: %w", err)
	}
	return rows, nil
}

func (r *gormRepository) RecentLogs(ctx context.Context, limit int) ([]LogRow, error) {
	rows := []LogRow{}
	err := r.db.WithContext(ctx).
		Order("client_time DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	return rows, nil
}
