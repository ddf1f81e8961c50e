package persistence

import (
	"gorm.io/gorm"

	"ReqGraph/internal/modules/rag/domain/graph"
)

// Migrate 建表，节点表与边表一起迁移
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&graph.Document{},
		&graph.Chunk{},
		&graph.Requirement{},
		&graph.Actor{},
		&graph.Action{},
		&graph.Object{},
		&graph.Result{},
		&graph.Entity{},

		&graph.Contains{},
		&graph.DescribedBy{},
		&graph.References{},
		&graph.Implements{},
		&graph.Mentions{},
		&graph.Performs{},
		&graph.Commits{},
		&graph.OnWhatPerformed{},
		&graph.Expects{},
	)
}
