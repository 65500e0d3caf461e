package model

import (
	"context"
	"fmt"
	"time"

	"github.com/levietanh/gitstar-crawler/cfg"
	"github.com/levietanh/gitstar-crawler/pkg/db"
	"github.com/levietanh/gitstar-crawler/pkg/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Release is one row of the releases table, keyed by the upstream release
// id so re-ingestion updates in place.
type Release struct {
	Model
	ID        int64     `json:"id" gorm:"column:id;primaryKey;autoIncrement:false"`
	TagName   string    `json:"tag_name" gorm:"column:tag_name;type:varchar(255)"`
	Content   string    `json:"content" gorm:"column:content;type:mediumtext;not null"`
	RepoID    int       `json:"repo_id" gorm:"column:repo_id;not null;index:idx_repo_id"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;not null"`
}

func NewRelease(config *cfg.Config, logger log.Logger, mysql *db.Mysql) (*Release, error) {
	return &Release{
		Model: Model{
			Config: config,
			Logger: logger,
			Mysql:  mysql,
		},
	}, nil
}

func (r *Release) TableName() string {
	return "releases"
}

// releaseConflict makes release writes idempotent on the upstream id: a
// duplicate id refreshes the tag and content only.
var releaseConflict = clause.OnConflict{
	Columns:   []clause.Column{{Name: "id"}},
	DoUpdates: clause.AssignmentColumns([]string{"tag_name", "content"}),
}

// UpsertBatch persists a cleaned release batch for one repository. The
// whole batch goes through a single transaction; on failure nothing is
// persisted and the error is returned for the caller to log and skip.
func (r *Release) UpsertBatch(releases []Release, repoID int) error {
	ctx := context.Background()

	if len(releases) == 0 {
		return nil
	}

	gdb, err := r.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	now := time.Now()
	rows := make([]Release, 0, len(releases))
	for _, rel := range releases {
		rel.RepoID = repoID
		if rel.CreatedAt.IsZero() {
			rel.CreatedAt = now
		}
		rows = append(rows, rel)
	}

	err = gdb.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(releaseConflict).CreateInBatches(rows, 100).Error
	})
	if err != nil {
		r.Logger.Error(ctx, "Failed to upsert %d releases for repo %d: %v", len(rows), repoID, err)
		return err
	}
	return nil
}
