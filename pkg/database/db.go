package database

import (
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// EmployeeRecord represents the employees table
type EmployeeRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"not null"`
	Position  string    `gorm:"not null;index"`
	Phone     string
	Email     string
	Address   string
	Image     string
	CreatedAt time.Time
}

func (EmployeeRecord) TableName() string { return "employees" }

// ShiftRecord represents the shifts table. Date holds yyyy-MM-dd so that
// range queries stay lexicographic and timezone free.
type ShiftRecord struct {
	ID         uint   `gorm:"primaryKey"`
	EmployeeID uint   `gorm:"not null;index"`
	Date       string `gorm:"not null;index"`
	ShiftType  string `gorm:"not null"`
	TimeIn     *time.Time
	TimeOut    *time.Time
	CreatedAt  time.Time
}

func (ShiftRecord) TableName() string { return "shifts" }

// TallyRecord represents the attendance_tallies table
type TallyRecord struct {
	ID         uint   `gorm:"primaryKey"`
	EmployeeID uint   `gorm:"uniqueIndex:idx_employee_date;not null"`
	Date       string `gorm:"uniqueIndex:idx_employee_date;not null"`
	ClockIns   int    `gorm:"default:0"`
	ClockOuts  int    `gorm:"default:0"`
}

func (TallyRecord) TableName() string { return "attendance_tallies" }

// MemoryPath opens a private in-memory sqlite database
const MemoryPath = ":memory:"

// Options selects the database backend
type Options struct {
	URL  string // postgres DSN; empty means sqlite
	Path string // sqlite file
}

// Open connects to the configured database and migrates the schema
func Open(opts Options) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	if opts.URL != "" {
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  opts.URL,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	} else {
		dbPath := opts.Path
		if dbPath == "" {
			dbPath = "shiftboard.db"
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	}
	if err != nil {
		return nil, err
	}

	if opts.URL == "" && opts.Path == MemoryPath {
		// every pooled connection would otherwise see its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&EmployeeRecord{}, &ShiftRecord{}, &TallyRecord{}); err != nil {
		return nil, err
	}
	return db, nil
}

// InitDB is Open for process start-up: it exits on failure
func InitDB(opts Options) *gorm.DB {
	db, err := Open(opts)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	return db
}
