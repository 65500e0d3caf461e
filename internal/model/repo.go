package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/levietanh/gitstar-crawler/cfg"
	"github.com/levietanh/gitstar-crawler/pkg/db"
	"github.com/levietanh/gitstar-crawler/pkg/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repo is one row of the repositories table. full_name is the natural key;
// re-ingesting the same repository updates the mutable columns in place.
type Repo struct {
	Model
	ID          int       `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	User        string    `json:"user" gorm:"column:user;type:varchar(255);not null"`
	Name        string    `json:"name" gorm:"column:name;type:varchar(255);not null"`
	FullName    string    `json:"full_name" gorm:"column:full_name;type:varchar(255);not null;uniqueIndex:unique_full_name"`
	Rank        *int      `json:"rank" gorm:"column:rank;index:idx_rank"`
	Stars       *int      `json:"stars" gorm:"column:stars;index:idx_stars"`
	Description string    `json:"description" gorm:"column:description;type:text"`
	Language    string    `json:"language" gorm:"column:language;type:varchar(100);index:idx_language"`
	AvatarUrl   *string   `json:"avatar_url" gorm:"column:avatar_url;type:varchar(2048)"`
	RepoUrl     *string   `json:"repo_url" gorm:"column:repo_url;type:varchar(2048)"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at;not null"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at;not null"`
}

func NewRepo(config *cfg.Config, logger log.Logger, mysql *db.Mysql) (*Repo, error) {
	return &Repo{
		Model: Model{
			Config: config,
			Logger: logger,
			Mysql:  mysql,
		},
	}, nil
}

func (r *Repo) TableName() string {
	return "repositories"
}

// repoConflict makes repository writes idempotent on the natural key: a
// duplicate full_name updates the mutable columns in place.
var repoConflict = clause.OnConflict{
	Columns: []clause.Column{{Name: "full_name"}},
	DoUpdates: clause.AssignmentColumns([]string{
		"rank", "stars", "description", "language", "avatar_url", "repo_url", "updated_at",
	}),
}

// Upsert inserts the repository or, when the full_name already exists,
// updates the mutable columns. It returns the row's identifier.
func (r *Repo) Upsert(repo *Repo) (int, error) {
	ctx := context.Background()

	gdb, err := r.Mysql.Db()
	if err != nil {
		return 0, fmt.Errorf("failed to get database connection: %w", err)
	}

	repo.User = TruncateString(repo.User, 255)
	repo.Name = TruncateString(repo.Name, 255)
	repo.FullName = TruncateString(repo.FullName, 255)
	now := time.Now()
	if repo.CreatedAt.IsZero() {
		repo.CreatedAt = now
	}
	repo.UpdatedAt = now

	err = gdb.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(repoConflict).Create(repo).Error
	})
	if err != nil {
		r.Logger.Error(ctx, "Failed to upsert repo %s: %v", repo.FullName, err)
		return 0, err
	}

	// An on-conflict update does not report the existing row id reliably,
	// so resolve it by the natural key.
	id, ok, err := r.IDByFullName(repo.FullName)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("repo %s missing after upsert", repo.FullName)
	}
	return id, nil
}

// IDByFullName resolves a repository's row id by its "owner/name" key.
func (r *Repo) IDByFullName(fullName string) (int, bool, error) {
	gdb, err := r.Mysql.Db()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get database connection: %w", err)
	}

	var row Repo
	err = gdb.Select("id").Where("full_name = ?", fullName).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return row.ID, true, nil
}

// All returns every persisted repository.
func (r *Repo) All() ([]Repo, error) {
	gdb, err := r.Mysql.Db()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	var repos []Repo
	if err := gdb.Find(&repos).Error; err != nil {
		return nil, err
	}
	return repos, nil
}

// CreateBatch upserts repositories delivered through the Kafka pipeline.
func (r *Repo) CreateBatch(repoMessages []RepoMessage) error {
	gdb, err := r.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	repos := make([]Repo, 0, len(repoMessages))
	now := time.Now()

	for _, msg := range repoMessages {
		repos = append(repos, Repo{
			User:        msg.User,
			Name:        msg.Name,
			FullName:    msg.FullName,
			Rank:        msg.Rank,
			Stars:       msg.Stars,
			Description: msg.Description,
			Language:    msg.Language,
			AvatarUrl:   msg.AvatarUrl,
			RepoUrl:     msg.RepoUrl,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	return gdb.Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(repoConflict).CreateInBatches(repos, 100)

		if result.Error != nil {
			return fmt.Errorf("failed to batch upsert repositories: %w", result.Error)
		}
		return nil
	})
}
