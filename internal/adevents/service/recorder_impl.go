package service

import (
	"context"
	"time"

	"github.com/adlanelabs/adlane/internal/adevents/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Recorder struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

type RecorderParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

func NewRecorder(p RecorderParam) domain.Recorder {
	return &Recorder{
		db:    p.DB,
		log:   p.Log.Named("adevents.recorder"),
		genID: p.GenID,
	}
}

func (r *Recorder) Record(ctx context.Context, adID snowflake.ID, code domain.EventCode, detail string) {
	event := domain.AdEvent{
		ID:        r.genID.Generate(),
		AdID:      adID,
		Code:      code,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&event).Error; err != nil {
		r.log.Error("ad event append failed",
			zap.String("ad_id", adID.String()),
			zap.String("code", string(code)),
			zap.Error(err),
		)
	}
}

func (r *Recorder) ListByAd(ctx context.Context, adID snowflake.ID, limit int) ([]domain.AdEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []domain.AdEvent
	err := r.db.WithContext(ctx).Model(&domain.AdEvent{}).
		Where("ad_id = ?", adID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
