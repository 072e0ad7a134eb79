package services

import (
	"strings"
	"testing"

	"stormcloud/config"
	"stormcloud/database"
	"stormcloud/models"
	"stormcloud/repositories"
	"stormcloud/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// testEnv wires every service against an in-memory database and a
// throwaway storage root.
type testEnv struct {
	cfg     *config.Config
	backend storage.Backend

	accountRepo *repositories.AccountRepository
	fileRepo    *repositories.FileRepository
	shareRepo   *repositories.ShareRepository
	auditRepo   *repositories.AuditRepository
	cmsRepo     *repositories.ContentMappingRepository

	quota  *QuotaService
	files  *FileService
	dirs   *DirectoryService
	search *SearchService
	shares *ShareService
	bulk   *BulkService
	cms    *CMSService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	require.NoError(t, database.ConnectSQLite(":memory:"))
	require.NoError(t, database.Migrate())

	backend, err := storage.NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	cfg := config.Default()

	env := &testEnv{
		cfg:         cfg,
		backend:     backend,
		accountRepo: repositories.NewAccountRepository(),
		fileRepo:    repositories.NewFileRepository(),
		shareRepo:   repositories.NewShareRepository(),
		auditRepo:   repositories.NewAuditRepository(),
		cmsRepo:     repositories.NewContentMappingRepository(),
	}

	auditor := NewAuditor(env.auditRepo, zerolog.Nop())
	env.quota = NewQuotaService(env.accountRepo)
	env.files = NewFileService(cfg, backend, env.fileRepo, env.accountRepo, env.quota, auditor)
	env.dirs = NewDirectoryService(cfg, backend, env.fileRepo, auditor)
	env.search = NewSearchService(cfg, env.fileRepo)
	env.shares = NewShareService(cfg, backend, env.shareRepo, env.fileRepo, auditor)
	env.bulk = NewBulkService(cfg, env.files, env.accountRepo, nil)
	env.cms = NewCMSService(cfg, backend, env.cmsRepo, env.fileRepo)
	return env
}

func (e *testEnv) createAccount(t *testing.T, username string, quotaBytes int64) *models.Account {
	t.Helper()
	account := &models.Account{
		Username:          username,
		PasswordHash:      "unused",
		StorageQuotaBytes: quotaBytes,
		CanUpload:         true,
		CanDelete:         true,
		CanMove:           true,
		CanOverwrite:      true,
		CanCreateShares:   true,
	}
	require.NoError(t, e.accountRepo.Create(account))
	return account
}

func (e *testEnv) createOrg(t *testing.T, name string, quotaBytes int64) *models.Organization {
	t.Helper()
	org := &models.Organization{Name: name, StorageQuotaBytes: quotaBytes}
	require.NoError(t, database.DB.Create(org).Error)
	return org
}

func (e *testEnv) op(account *models.Account) OpContext {
	return OpContext{Actor: account, Target: account, IPAddress: "127.0.0.1"}
}

func (e *testEnv) upload(t *testing.T, account *models.Account, path, content string) *FileDetails {
	t.Helper()
	details, err := e.files.Upload(e.op(account), account, path,
		strings.NewReader(content), int64(len(content)))
	require.NoError(t, err)
	return details
}

func (e *testEnv) mkdir(t *testing.T, account *models.Account, path string) {
	t.Helper()
	_, err := e.dirs.Create(e.op(account), account, path)
	require.NoError(t, err)
}

// reload refreshes an account from the database, organization included.
func (e *testEnv) reload(t *testing.T, account *models.Account) *models.Account {
	t.Helper()
	fresh, err := e.accountRepo.GetByID(account.ID)
	require.NoError(t, err)
	return fresh
}
