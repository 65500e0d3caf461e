package model

import (
	"github.com/levietanh/gitstar-crawler/cfg"
	"github.com/levietanh/gitstar-crawler/pkg/db"
	"github.com/levietanh/gitstar-crawler/pkg/log"
)

type Model struct {
	Config *cfg.Config `gorm:"-" json:"-"`
	Logger log.Logger  `gorm:"-" json:"-"`
	Mysql  *db.Mysql   `gorm:"-" json:"-"`
}
