package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/voicecheck/voicecheck/internal/access"
	"github.com/voicecheck/voicecheck/internal/models"
	"github.com/voicecheck/voicecheck/internal/repository"
)

func setupCompanyService(t *testing.T) *CompanyService {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.Company{},
		&models.CSVImportMapping{},
		&models.Dialog{},
	)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	return NewCompanyService(repository.NewCompanyRepository(db), testLogger())
}

func TestCompanyService_CreateAndDuplicate(t *testing.T) {
	svc := setupCompanyService(t)

	company, err := svc.Create(access.OwnerTypeUser, "u1", "u1", CompanyInput{
		Name:  "Acme LLC",
		TaxID: "7701234567",
		Phone: "+7 900 000-00-00",
	})
	require.NoError(t, err)
	require.NotEmpty(t, company.ID)
	require.NotNil(t, company.TaxID)
	require.Equal(t, "7701234567", *company.TaxID)

	_, err = svc.Create(access.OwnerTypeUser, "u1", "u1", CompanyInput{Name: "Acme LLC"})
	require.ErrorIs(t, err, ErrCompanyExists)

	// Same name in another scope is fine.
	_, err = svc.Create(access.OwnerTypeUser, "u2", "u2", CompanyInput{Name: "Acme LLC"})
	require.NoError(t, err)
}

func TestGuessMapping(t *testing.T) {
	mapping := GuessMapping([]string{"Company Name", "ИНН", "Phone", "Deal Size"})

	require.Equal(t, "name", mapping["Company Name"])
	require.Equal(t, "tax_id", mapping["ИНН"])
	require.Equal(t, "phone", mapping["Phone"])
	_, mapped := mapping["Deal Size"]
	require.False(t, mapped)
}

func TestCompanyService_ImportCSV(t *testing.T) {
	svc := setupCompanyService(t)

	csvData := strings.Join([]string{
		"Name,ИНН,Phone,Deal Size",
		"Acme LLC,7701234567,+7 900 000-00-00,50000",
		"Globex,,+7 911 111-11-11,",
		",123,,",
	}, "\n")

	report, err := svc.ImportCSV(access.OwnerTypeUser, "u1", "u1", strings.NewReader(csvData), nil, "")
	require.NoError(t, err)
	require.Equal(t, 2, report.Created)
	require.Equal(t, 0, report.Updated)
	require.Equal(t, 1, report.Skipped)
	require.Len(t, report.Errors, 1)
	require.Contains(t, report.Errors[0], "missing company name")

	companies, total, err := svc.List(repository.CompanyFilter{
		OwnerType: access.OwnerTypeUser,
		OwnerID:   "u1",
		Page:      1,
		PageSize:  20,
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)

	var acme *models.Company
	for i := range companies {
		if companies[i].Name == "Acme LLC" {
			acme = &companies[i]
		}
	}
	require.NotNil(t, acme)
	require.Equal(t, "50000", acme.CustomFields["Deal Size"])
}

func TestCompanyService_ImportCSV_UpdatesByTaxID(t *testing.T) {
	svc := setupCompanyService(t)

	_, err := svc.Create(access.OwnerTypeUser, "u1", "u1", CompanyInput{
		Name:  "Old Name",
		TaxID: "7701234567",
	})
	require.NoError(t, err)

	csvData := "Name,ИНН\nAcme Renamed,7701234567\n"
	report, err := svc.ImportCSV(access.OwnerTypeUser, "u1", "u1", strings.NewReader(csvData), nil, "")
	require.NoError(t, err)
	require.Equal(t, 0, report.Created)
	require.Equal(t, 1, report.Updated)
}

func TestCompanyService_ImportCSV_RequiresNameColumn(t *testing.T) {
	svc := setupCompanyService(t)

	csvData := "Phone\n+7 900 000-00-00\n"
	_, err := svc.ImportCSV(access.OwnerTypeUser, "u1", "u1", strings.NewReader(csvData), nil, "")
	require.ErrorIs(t, err, ErrCSVNameRequired)
}

func TestCompanyService_ImportCSV_SavesMapping(t *testing.T) {
	svc := setupCompanyService(t)

	csvData := "Name\nAcme LLC\n"
	_, err := svc.ImportCSV(access.OwnerTypeUser, "u1", "u1", strings.NewReader(csvData), nil, "quarterly import")
	require.NoError(t, err)

	mappings, err := svc.ListMappings(access.OwnerTypeUser, "u1")
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	require.Equal(t, "quarterly import", mappings[0].Name)
}
