package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store persists raw metadata between sessions so a restart does not have
// to download it again. Implementations must be safe for concurrent use.
type Store interface {
	// Load returns the metadata stored under key, or ErrNotStored.
	Load(ctx context.Context, key Key) ([]byte, error)
	// Save stores metadata under key, replacing what was stored before.
	Save(ctx context.Context, key Key, raw []byte) error
}

// ErrNotStored is returned by Store.Load for unknown keys.
var ErrNotStored = errors.New("metadata not stored")

// MetadataRecord is the database row of one runtime's metadata.
type MetadataRecord struct {
	GenesisHash string    `gorm:"column:genesis_hash;primaryKey"`
	SpecVersion uint32    `gorm:"column:spec_version;primaryKey;autoIncrement:false"`
	Data        []byte    `gorm:"column:data;not null"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (MetadataRecord) TableName() string {
	return "runtime_metadata"
}

// GormStore keeps metadata in a SQL database through gorm.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore wraps db and migrates the metadata table.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&MetadataRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate metadata table: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Load(ctx context.Context, key Key) ([]byte, error) {
	var rec MetadataRecord
	err := s.db.WithContext(ctx).
		Where("genesis_hash = ? AND spec_version = ?", key.Genesis, key.SpecVersion).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotStored
	} else if err != nil {
		return nil, fmt.Errorf("failed to load metadata %s: %w", key, err)
	}
	return rec.Data, nil
}

func (s *GormStore) Save(ctx context.Context, key Key, raw []byte) error {
	rec := MetadataRecord{
		GenesisHash: key.Genesis,
		SpecVersion: key.SpecVersion,
		Data:        raw,
		CreatedAt:   time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "genesis_hash"}, {Name: "spec_version"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "created_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save metadata %s: %w", key, err)
	}
	return nil
}

// DatabaseConfig selects the database of a GormStore.
//
// To connect to Postgresql fill out the connection fields or URL. For
// sqlite only the driver is needed; the database lives in memory unless a
// Name (file path) is given.
type DatabaseConfig struct {
	URL      string `env:"SUBSTRATE_METADATA_DB_URL" env-default:""`
	Name     string `env:"SUBSTRATE_METADATA_DB_NAME" env-default:""`
	Schema   string `env:"SUBSTRATE_METADATA_DB_SCHEMA" env-default:""`
	Driver   string `env:"SUBSTRATE_METADATA_DB_DRIVER" env-default:"none" validate:"oneof=none sqlite postgres"`
	Username string `env:"SUBSTRATE_METADATA_DB_USERNAME" env-default:"postgres"`
	Password string `env:"SUBSTRATE_METADATA_DB_PASSWORD" env-default:""`
	Host     string `env:"SUBSTRATE_METADATA_DB_HOST" env-default:"localhost"`
	Port     string `env:"SUBSTRATE_METADATA_DB_PORT" env-default:"5432"`
}

// ParseConnectionString turns a "file:" sqlite path or a postgres URI into
// a DatabaseConfig.
func ParseConnectionString(connStr string) (DatabaseConfig, error) {
	if strings.HasPrefix(connStr, "file:") {
		parts := strings.SplitN(connStr[5:], "?", 2)
		return DatabaseConfig{Name: parts[0], Driver: "sqlite"}, nil
	}

	parsedURL, err := url.Parse(connStr)
	if err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid connection string: %w", err)
	}
	if parsedURL.Scheme != "postgres" && parsedURL.Scheme != "postgresql" {
		return DatabaseConfig{}, fmt.Errorf("unsupported scheme: %s", parsedURL.Scheme)
	}

	cnf := DatabaseConfig{
		Driver: "postgres",
		Name:   strings.TrimPrefix(parsedURL.Path, "/"),
		Host:   parsedURL.Hostname(),
		Port:   parsedURL.Port(),
		Schema: parsedURL.Query().Get("search_path"),
	}
	if cnf.Port == "" {
		cnf.Port = "5432"
	} else if _, err := strconv.Atoi(cnf.Port); err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid port: %s", cnf.Port)
	}
	if user := parsedURL.User; user != nil {
		cnf.Username = user.Username()
		cnf.Password, _ = user.Password()
	}
	return cnf, nil
}

// ConnectToDB opens the database cnf describes. A "none" driver yields a
// nil DB and no error.
func ConnectToDB(cnf DatabaseConfig) (*gorm.DB, error) {
	if cnf.URL != "" {
		parsed, err := ParseConnectionString(cnf.URL)
		if err != nil {
			return nil, err
		}
		cnf = parsed
	}

	switch cnf.Driver {
	case "none":
		return nil, nil
	case "postgres":
		return connectToPostgresql(cnf)
	case "sqlite", "":
		return connectToSqlite(cnf)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cnf.Driver)
	}
}

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
}

func connectToPostgresql(cnf DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		cnf.Username, cnf.Password, cnf.Host, cnf.Port, cnf.Name,
	)
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	if cnf.Schema == "" {
		return db, nil
	}

	// Tables are created in the schema through the search path.
	if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %q", cnf.Schema)).Error; err != nil {
		return nil, fmt.Errorf("error while creating schema: %w", err)
	}
	return gorm.Open(postgres.Open(dsn+" search_path="+cnf.Schema), gormConfig())
}

func connectToSqlite(cnf DatabaseConfig) (*gorm.DB, error) {
	dsn := "file::memory:?cache=shared"
	if cnf.Name != "" {
		dsn = fmt.Sprintf("file:%s?cache=shared", cnf.Name)
	}
	return gorm.Open(sqlite.Open(dsn), gormConfig())
}
