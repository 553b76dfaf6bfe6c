// Package spotlog persists reception reports to a SQLite journal.
//
// The journal is append-mostly: the engine writes each accepted spot from a
// background task, and consumers query the journal for history that outlives
// the in-memory spot store. The database uses the pure Go SQLite driver, so
// the journal works without cgo.
package spotlog

import (
	"database/sql"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/simplyequipped/js8call-interface/js8"
)

// pathSeparator joins the relay path callsigns into a single column.
const pathSeparator = ">"

// spotRecord is the journal row for one accepted spot.
type spotRecord struct {
	ID          uint      `gorm:"primaryKey"`
	MessageID   string    `gorm:"size:32"`
	Origin      string    `gorm:"size:16;index"`
	Destination string    `gorm:"size:16"`
	Grid        string    `gorm:"size:8"`
	SNR         int
	Dial        int64
	Freq        int64
	Offset      int64
	Cmd         string `gorm:"size:16"`
	Value       string
	Path        string
	Speed       int
	Profile     string `gorm:"size:64"`
	Distance    int
	Bearing     int
	HeardAt     time.Time `gorm:"index"`
}

func (spotRecord) TableName() string { return "spots" }

func newSpotRecord(spot *js8.Spot) *spotRecord {
	return &spotRecord{
		MessageID:   spot.MessageID,
		Origin:      spot.Origin,
		Destination: spot.Destination,
		Grid:        spot.Grid,
		SNR:         spot.SNR,
		Dial:        spot.Dial,
		Freq:        spot.Freq,
		Offset:      spot.Offset,
		Cmd:         spot.Cmd,
		Value:       spot.Value,
		Path:        strings.Join(spot.Path, pathSeparator),
		Speed:       int(spot.Speed),
		Profile:     spot.Profile,
		Distance:    spot.Distance,
		Bearing:     spot.Bearing,
		HeardAt:     spot.Time,
	}
}

func (r *spotRecord) spot() *js8.Spot {
	spot := &js8.Spot{
		MessageID:   r.MessageID,
		Origin:      r.Origin,
		Destination: r.Destination,
		Grid:        r.Grid,
		SNR:         r.SNR,
		Dial:        r.Dial,
		Freq:        r.Freq,
		Offset:      r.Offset,
		Cmd:         r.Cmd,
		Value:       r.Value,
		Speed:       js8.Speed(r.Speed),
		Profile:     r.Profile,
		Distance:    r.Distance,
		Bearing:     r.Bearing,
		Time:        r.HeardAt,
	}

	if r.Path != "" {
		spot.Path = strings.Split(r.Path, pathSeparator)
	}

	return spot
}

// Journal is a persistent store of accepted spots backed by a SQLite
// database file. All methods are safe for concurrent use.
type Journal struct {
	db *gorm.DB
}

// Open opens or creates the journal database at path and migrates its
// schema.
func Open(path string) (*Journal, error) {
	dialector := sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path,
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if err := configureSQLite(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if err := db.AutoMigrate(&spotRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

// configureSQLite applies pragmas suited to a single-writer append log.
func configureSQLite(sqlDB *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=memory",
	}

	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return err
		}
	}

	return nil
}

// Append writes one spot to the journal.
func (j *Journal) Append(spot *js8.Spot) error {
	return j.db.Create(newSpotRecord(spot)).Error
}

// AppendBatch writes a batch of spots in a single transaction.
func (j *Journal) AppendBatch(spots []*js8.Spot) error {
	if len(spots) == 0 {
		return nil
	}

	records := make([]*spotRecord, 0, len(spots))
	for _, spot := range spots {
		records = append(records, newSpotRecord(spot))
	}

	return j.db.Create(records).Error
}

// Recent returns the most recently heard spots, newest first. A limit of 0
// returns all spots.
func (j *Journal) Recent(limit int) ([]*js8.Spot, error) {
	return j.query(j.db.Order("heard_at DESC"), limit)
}

// ByOrigin returns spots heard from the given callsign, newest first.
func (j *Journal) ByOrigin(origin string, limit int) ([]*js8.Spot, error) {
	return j.query(j.db.Where("origin = ?", origin).Order("heard_at DESC"), limit)
}

// Since returns spots heard at or after the given time, newest first.
func (j *Journal) Since(t time.Time, limit int) ([]*js8.Spot, error) {
	return j.query(j.db.Where("heard_at >= ?", t).Order("heard_at DESC"), limit)
}

func (j *Journal) query(tx *gorm.DB, limit int) ([]*js8.Spot, error) {
	if limit > 0 {
		tx = tx.Limit(limit)
	}

	var records []spotRecord
	if err := tx.Find(&records).Error; err != nil {
		return nil, err
	}

	spots := make([]*js8.Spot, 0, len(records))
	for i := range records {
		spots = append(spots, records[i].spot())
	}

	return spots, nil
}

// Count returns the number of journaled spots.
func (j *Journal) Count() (int64, error) {
	var count int64
	err := j.db.Model(&spotRecord{}).Count(&count).Error

	return count, err
}

// Prune deletes spots heard more than maxAge ago and returns the number of
// rows removed.
func (j *Journal) Prune(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	result := j.db.Where("heard_at < ?", cutoff).Delete(&spotRecord{})

	return result.RowsAffected, result.Error
}

// Close closes the journal database.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
