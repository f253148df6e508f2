package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/oriadata/orgmaster/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(

		// Controlled vocabularies
		&domain.Source{},
		&domain.IDScheme{},
		&domain.RelationshipType{},
		&domain.Postcode{},

		// Entity master + mastered attribute tables
		&domain.ExternalOrg{},
		&domain.OrgAlias{},
		&domain.OrgRelationship{},
		&domain.OrgCorrelation{},
		&domain.OrgLocation{},
		&domain.MergeEvent{},

		// Feed audit
		&domain.IngestBatch{},
		&domain.IngestRecord{},
	); err != nil {
		return err
	}
	return EnsureIndexes(db)
}

// EnsureIndexes creates the partial unique indexes GORM tags cannot express:
// at most one open row (valid_end IS NULL) per semantic key. These indexes
// are the storage-level backstop behind the single-open invariant; the
// aggregates additionally serialize writers with open-row FOR UPDATE locks.
func EnsureIndexes(db *gorm.DB) error {
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_open_external_org
		   ON master_external_org (org_id) WHERE valid_end IS NULL;`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_open_org_alias
		   ON master_external_org_alias (external_org, alias, lang) WHERE valid_end IS NULL;`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_open_org_rel
		   ON master_rel_external_external (ext1, ext2, rel) WHERE valid_end IS NULL;`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_open_org_other_id
		   ON master_external_org_other_id (master_id, other_id, scheme) WHERE valid_end IS NULL;`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_open_org_postcode
		   ON master_external_org_postcode (external_org, postcode) WHERE valid_end IS NULL;`,
		`CREATE INDEX IF NOT EXISTS ix_open_other_id_lookup
		   ON master_external_org_other_id (scheme, other_id) WHERE valid_end IS NULL;`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("ensure index: %w", err)
		}
	}
	return nil
}
