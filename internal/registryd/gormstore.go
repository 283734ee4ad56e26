package registryd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormStore persists rooms in Postgres. Used when REGISTRY_DATABASE_URL is
// set; deployments that can tolerate losing in-flight signaling on restart
// run the memory store instead.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(databaseURL string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Room{}); err != nil {
		return nil, fmt.Errorf("migrate rooms table: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Create(ctx context.Context, rec Room) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}},
			UpdateAll: true,
		}).
		Create(&rec).Error
}

func (s *GormStore) Get(ctx context.Context, roomID string) (Room, error) {
	var rec Room
	err := s.db.WithContext(ctx).First(&rec, "room_id = ?", roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Room{}, ErrNotFound
	}
	if err != nil {
		return Room{}, err
	}
	if time.Now().After(rec.expiresAt()) {
		return Room{}, ErrNotFound
	}
	return rec, nil
}

func (s *GormStore) SetOffer(ctx context.Context, roomID, offer string) error {
	return s.updateColumn(ctx, roomID, "host_offer", offer)
}

func (s *GormStore) SetAnswer(ctx context.Context, roomID, answer string) error {
	return s.updateColumn(ctx, roomID, "guest_answer", answer)
}

func (s *GormStore) updateColumn(ctx context.Context, roomID, column, value string) error {
	res := s.db.WithContext(ctx).Model(&Room{}).
		Where("room_id = ?", roomID).
		Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, roomID string) error {
	return s.db.WithContext(ctx).Delete(&Room{}, "room_id = ?", roomID).Error
}

func (s *GormStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res := s.db.WithContext(ctx).
		Where("created_at + make_interval(secs => ttl) < ?", now).
		Delete(&Room{})
	return int(res.RowsAffected), res.Error
}
