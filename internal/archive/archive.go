// Package archive keeps a record of every session that was replaced by a new
// game.
package archive

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/storyteller-backend/internal/engine"
)

type PlayerRecord struct {
	Name            string   `json:"name"`
	Character       string   `json:"character"`
	Alignment       string   `json:"alignment"`
	IsAlive         bool     `json:"is_alive"`
	HasUsedDeadVote bool     `json:"has_used_dead_vote"`
	StatusEffects   []string `json:"status_effects"`
}

type Record struct {
	ID          uint           `gorm:"primaryKey"`
	Script      string         `gorm:"size:64;not null;index"`
	PlayerCount int            `gorm:"not null"`
	Players     []PlayerRecord `gorm:"serializer:json;type:jsonb;not null"`
	ArchivedAt  time.Time      `gorm:"not null;index"`
}

func (Record) TableName() string { return "session_archives" }

// Archiver writes finished sessions to Postgres. A nil *Archiver is valid and
// discards everything.
type Archiver struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func New(db *gorm.DB, log *zap.Logger) *Archiver {
	return &Archiver{db: db, log: log.Named("archive"), now: time.Now}
}

// Open connects to dsn and migrates the archive table. An empty dsn yields a
// nil Archiver.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*Archiver, error) {
	if dsn == "" {
		return nil, nil
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	a := New(db, log)
	if err := a.Migrate(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archiver) Migrate(ctx context.Context) error {
	if a == nil {
		return nil
	}
	if err := a.db.WithContext(ctx).AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("migrate archive: %w", err)
	}
	return nil
}

// Save stores g. Sessions without players are not worth keeping and are
// skipped.
func (a *Archiver) Save(ctx context.Context, g *engine.Game) error {
	if a == nil || g == nil || len(g.Players) == 0 {
		return nil
	}
	rec := a.record(g)
	if err := a.insert(ctx, &rec).Error; err != nil {
		return fmt.Errorf("archive session: %w", err)
	}
	a.log.Info("session archived",
		zap.Uint("id", rec.ID),
		zap.String("script", rec.Script),
		zap.Int("players", len(rec.Players)))
	return nil
}

func (a *Archiver) insert(ctx context.Context, rec *Record) *gorm.DB {
	return a.db.WithContext(ctx).Create(rec)
}

// Recent returns up to limit archived sessions, newest first.
func (a *Archiver) Recent(ctx context.Context, limit int) ([]Record, error) {
	if a == nil {
		return nil, nil
	}
	var recs []Record
	err := a.db.WithContext(ctx).Order("archived_at DESC").Limit(limit).Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	return recs, nil
}

func (a *Archiver) record(g *engine.Game) Record {
	rec := Record{
		PlayerCount: g.PlayerCount,
		Players:     make([]PlayerRecord, 0, len(g.Players)),
		ArchivedAt:  a.now().UTC(),
	}
	if g.Script != nil {
		rec.Script = g.Script.Name
	}
	for _, p := range g.Players {
		pr := PlayerRecord{
			Name:            p.Name,
			Alignment:       string(p.Alignment),
			IsAlive:         p.IsAlive,
			HasUsedDeadVote: p.HasUsedDeadVote,
			StatusEffects:   append([]string{}, p.StatusEffects...),
		}
		if p.Character != nil {
			pr.Character = p.Character.Name
		}
		rec.Players = append(rec.Players, pr)
	}
	return rec
}

func (a *Archiver) Close() error {
	if a == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return sqlDB.Close()
}
