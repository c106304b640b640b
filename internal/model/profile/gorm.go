package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// record is the persisted row behind a Profile.
type record struct {
	PlayerID    int64  `gorm:"primaryKey;autoIncrement:false"`
	Name        string `gorm:"not null;default:''"`
	GamesPlayed int    `gorm:"not null;default:0"`
	GamesWon    int    `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (record) TableName() string { return "player_profiles" }

func (r record) profile() Profile {
	return Profile{
		PlayerID:    r.PlayerID,
		Name:        r.Name,
		GamesPlayed: r.GamesPlayed,
		GamesWon:    r.GamesWon,
		UpdatedAt:   r.UpdatedAt,
	}
}

// GormStore implements Store on a relational database.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db and migrates the profile table.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("migrate player_profiles: %w", err)
	}
	return &GormStore{db: db}, nil
}

const (
	maxRetries    = 3
	retryInterval = 5 * time.Second
)

// OpenPostgres connects to PostgreSQL, retrying a few times while the
// database comes up.
func OpenPostgres(dsn string, logger *zap.Logger) (*gorm.DB, error) {
	var err error
	for i := 0; i <= maxRetries; i++ {
		var db *gorm.DB
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err == nil {
			return db, nil
		}
		logger.Warn("database connection retry", zap.Int("retry", i), zap.Error(err))
		if i < maxRetries {
			time.Sleep(retryInterval)
		}
	}
	return nil, fmt.Errorf("connect database: %w", err)
}

// Upsert creates the profile or refreshes its name.
func (s *GormStore) Upsert(ctx context.Context, playerID int64, name string) error {
	rec := record{PlayerID: playerID, Name: strings.TrimSpace(name)}
	update := []string{"updated_at"}
	if rec.Name != "" {
		update = append(update, "name")
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}},
		DoUpdates: clause.AssignmentColumns(update),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("upsert profile %d: %w", playerID, err)
	}
	return nil
}

// RecordGame counts one finished game for the player.
func (s *GormStore) RecordGame(ctx context.Context, playerID int64, won bool) error {
	wins := 0
	if won {
		wins = 1
	}
	res := s.db.WithContext(ctx).Model(&record{}).Where("player_id = ?", playerID).Updates(map[string]any{
		"games_played": gorm.Expr("games_played + ?", 1),
		"games_won":    gorm.Expr("games_won + ?", wins),
	})
	if res.Error != nil {
		return fmt.Errorf("record game for %d: %w", playerID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DisplayName returns the stored name of the player.
func (s *GormStore) DisplayName(ctx context.Context, playerID int64) (string, error) {
	p, err := s.FindByID(ctx, playerID)
	if err != nil {
		return "", err
	}
	if p.Name == "" {
		return "", ErrNotFound
	}
	return p.Name, nil
}

// FindByID looks up a profile by player id.
func (s *GormStore) FindByID(ctx context.Context, playerID int64) (Profile, error) {
	var rec record
	err := s.db.WithContext(ctx).Where("player_id = ?", playerID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("find profile %d: %w", playerID, err)
	}
	return rec.profile(), nil
}
