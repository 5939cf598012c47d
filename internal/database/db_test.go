package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitializeCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "capture.db")

	db, err := Initialize(path)
	require.NoError(t, err)

	for _, table := range []string{"cases", "hearings", "pending_filings", "expert_exams", "parties", "case_parties", "timelines", "capture_logs", "raw_logs"} {
		require.True(t, db.Migrator().HasTable(table), table)
	}
	require.True(t, db.Migrator().HasIndex(&Case{}, "idx_cases_lookup"))

	// running migrations twice is harmless
	require.NoError(t, Migrate(db))
}

func TestInitializeReopensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.db")

	db, err := Initialize(path)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	db, err = Initialize(path)
	require.NoError(t, err)
	for _, idx := range []struct {
		model any
		name  string
	}{
		{&Case{}, "idx_cases_lookup"},
		{&CaptureLog{}, "idx_capture_logs_created"},
		{&Hearing{}, "idx_hearings_starts_at"},
		{&PendingFiling{}, "idx_pending_filings_deadline"},
	} {
		require.True(t, db.Migrator().HasIndex(idx.model, idx.name), idx.name)
	}
}

func TestCaseNaturalKeyIsUnique(t *testing.T) {
	db, err := OpenMemory()
	require.NoError(t, err)

	row := Case{ExternalID: 10, Court: "TRT3", Instance: "primeiro_grau", CaseNumber: "0001-20"}
	require.NoError(t, db.Create(&row).Error)

	dup := row
	dup.ID = 0
	require.Error(t, db.Create(&dup).Error)

	other := row
	other.ID = 0
	other.Instance = "segundo_grau"
	require.NoError(t, db.Create(&other).Error)
}

func TestCompareFieldsMatchColumns(t *testing.T) {
	db, err := OpenMemory()
	require.NoError(t, err)

	models := []interface {
		CompareFields() map[string]any
	}{
		&Case{}, &Hearing{}, &PendingFiling{}, &ExpertExam{}, &Party{}, &PartyRepresentative{}, &CaseParty{},
	}

	for _, m := range models {
		for column := range m.CompareFields() {
			require.True(t, db.Migrator().HasColumn(m, column), "%T.%s", m, column)
		}
	}
}
