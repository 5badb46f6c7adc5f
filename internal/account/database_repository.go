package account

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sqliteDialector "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	errEmptyDatabaseURL    = errors.New("account_store.empty_database_url")
	errSQLiteEmptyPath     = errors.New("account_store.sqlite.empty_path")
	errSQLiteInvalidURL    = errors.New("account_store.sqlite.invalid_url")
	errUnsupportedNoScheme = errors.New("account_store.unsupported_no_scheme")
)

// DatabaseRepository persists accounts and profiles using GORM.
type DatabaseRepository struct {
	db          *gorm.DB
	driverLabel string
}

// Driver exposes the selected database driver label.
func (repository *DatabaseRepository) Driver() string {
	return repository.driverLabel
}

type accountRecord struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Username    string    `gorm:"column:username;size:100;uniqueIndex;not null"`
	Password    string    `gorm:"column:password;not null;default:''"`
	Name        string    `gorm:"column:name;size:100;not null;default:''"`
	PhoneNumber string    `gorm:"column:phone_number;size:15;not null;default:''"`
	Provider    string    `gorm:"column:provider;size:16;not null;index:idx_account_provider"`
	ProviderID  string    `gorm:"column:provider_id;size:128;not null;default:'';index:idx_account_provider"`
	Role        string    `gorm:"column:role;size:16;not null"`
	IsActive    bool      `gorm:"column:is_active;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (accountRecord) TableName() string {
	return "account"
}

type profileRecord struct {
	ID              int64      `gorm:"column:id;primaryKey;autoIncrement"`
	AccountID       int64      `gorm:"column:account_id;uniqueIndex;not null"`
	Nickname        string     `gorm:"column:nickname;size:20;uniqueIndex;not null"`
	ProfileImageURL string     `gorm:"column:profile_image_url;size:500;not null;default:''"`
	Phone           string     `gorm:"column:phone;size:15;not null;default:''"`
	BirthDate       *time.Time `gorm:"column:birth_date"`
	Gender          string     `gorm:"column:gender;size:8;not null;default:''"`
	Bio             string     `gorm:"column:bio;size:500;not null;default:''"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (profileRecord) TableName() string {
	return "account_profile"
}

// NewDatabaseRepository opens the database named by databaseURL and migrates the schema.
func NewDatabaseRepository(ctx context.Context, databaseURL string) (*DatabaseRepository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("account_store.open: %w", errEmptyDatabaseURL)
	}
	dialector, driverLabel, err := resolveDialector(databaseURL)
	if err != nil {
		return nil, err
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if openErr != nil {
		return nil, fmt.Errorf("account_store.open.%s: %w", driverLabel, openErr)
	}
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(&accountRecord{}, &profileRecord{}); migrateErr != nil {
		return nil, fmt.Errorf("account_store.migrate.%s: %w", driverLabel, migrateErr)
	}
	return &DatabaseRepository{
		db:          gormDB,
		driverLabel: driverLabel,
	}, nil
}

// Close releases the underlying connection pool.
func (repository *DatabaseRepository) Close() error {
	sqlDB, err := repository.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateAccount inserts a new account and returns it with its assigned id.
func (repository *DatabaseRepository) CreateAccount(ctx context.Context, account Account) (Account, error) {
	record := accountToRecord(account)
	record.ID = 0
	if err := repository.db.WithContext(ctx).Create(&record).Error; err != nil {
		return Account{}, repository.wrapWrite("create_account", err, ErrUsernameTaken)
	}
	return recordToAccount(record), nil
}

// SaveAccount overwrites an existing account row.
func (repository *DatabaseRepository) SaveAccount(ctx context.Context, account Account) (Account, error) {
	record := accountToRecord(account)
	result := repository.db.WithContext(ctx).Model(&accountRecord{}).Where("id = ?", record.ID).Select("*").Omit("id", "created_at").Updates(&record)
	if result.Error != nil {
		return Account{}, repository.wrapWrite("save_account", result.Error, ErrUsernameTaken)
	}
	if result.RowsAffected == 0 {
		return Account{}, fmt.Errorf("account_store.save_account.%s: %w", repository.driverLabel, ErrAccountNotFound)
	}
	return repository.FindAccountByID(ctx, record.ID)
}

// FindAccountByID loads an account by primary key.
func (repository *DatabaseRepository) FindAccountByID(ctx context.Context, accountID int64) (Account, error) {
	return repository.takeAccount(ctx, "find_account_by_id", "id = ?", accountID)
}

// FindAccountByUsername loads an account by username regardless of its active flag.
func (repository *DatabaseRepository) FindAccountByUsername(ctx context.Context, username string) (Account, error) {
	return repository.takeAccount(ctx, "find_account_by_username", "username = ?", username)
}

// FindActiveAccountByUsername loads an active account by username.
func (repository *DatabaseRepository) FindActiveAccountByUsername(ctx context.Context, username string) (Account, error) {
	return repository.takeAccount(ctx, "find_active_account_by_username", "username = ? AND is_active = ?", username, true)
}

// FindAccountByProvider loads the account linked to a provider identity.
func (repository *DatabaseRepository) FindAccountByProvider(ctx context.Context, provider AuthProvider, providerID string) (Account, error) {
	return repository.takeAccount(ctx, "find_account_by_provider", "provider = ? AND provider_id = ?", string(provider), providerID)
}

// ListAccounts returns every account ordered by id.
func (repository *DatabaseRepository) ListAccounts(ctx context.Context) ([]Account, error) {
	return repository.listAccounts(ctx, "list_accounts", repository.db.WithContext(ctx))
}

// ListInactiveAccounts returns deactivated accounts ordered by id.
func (repository *DatabaseRepository) ListInactiveAccounts(ctx context.Context) ([]Account, error) {
	return repository.listAccounts(ctx, "list_inactive_accounts", repository.db.WithContext(ctx).Where("is_active = ?", false))
}

// UsernameExists reports whether the username is registered.
func (repository *DatabaseRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := repository.db.WithContext(ctx).Model(&accountRecord{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, fmt.Errorf("account_store.username_exists.%s: %w", repository.driverLabel, err)
	}
	return count > 0, nil
}

// DeleteAccount removes the account and its profile together.
func (repository *DatabaseRepository) DeleteAccount(ctx context.Context, accountID int64) error {
	err := repository.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", accountID).Delete(&profileRecord{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", accountID).Delete(&accountRecord{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrAccountNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("account_store.delete_account.%s: %w", repository.driverLabel, err)
	}
	return nil
}

// CreateProfile inserts a profile for an existing account.
func (repository *DatabaseRepository) CreateProfile(ctx context.Context, profile Profile) (Profile, error) {
	record := profileToRecord(profile)
	record.ID = 0
	if err := repository.db.WithContext(ctx).Create(&record).Error; err != nil {
		conflict := ErrNicknameTaken
		if isUniqueViolation(err) && repository.profileExists(ctx, record.AccountID) {
			conflict = ErrProfileExists
		}
		return Profile{}, repository.wrapWrite("create_profile", err, conflict)
	}
	return recordToProfile(record), nil
}

func (repository *DatabaseRepository) profileExists(ctx context.Context, accountID int64) bool {
	var count int64
	if err := repository.db.WithContext(ctx).Model(&profileRecord{}).Where("account_id = ?", accountID).Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}

// SaveProfile overwrites the profile row of profile.AccountID.
func (repository *DatabaseRepository) SaveProfile(ctx context.Context, profile Profile) (Profile, error) {
	record := profileToRecord(profile)
	result := repository.db.WithContext(ctx).Model(&profileRecord{}).Where("account_id = ?", record.AccountID).Select("*").Omit("id", "account_id", "created_at").Updates(&record)
	if result.Error != nil {
		return Profile{}, repository.wrapWrite("save_profile", result.Error, ErrNicknameTaken)
	}
	if result.RowsAffected == 0 {
		return Profile{}, fmt.Errorf("account_store.save_profile.%s: %w", repository.driverLabel, ErrProfileNotFound)
	}
	return repository.FindProfileByAccountID(ctx, record.AccountID)
}

// FindProfileByAccountID loads the profile of an account.
func (repository *DatabaseRepository) FindProfileByAccountID(ctx context.Context, accountID int64) (Profile, error) {
	return repository.takeProfile(ctx, "find_profile_by_account_id", "account_id = ?", accountID)
}

// FindProfileByNickname loads a profile by its exact nickname.
func (repository *DatabaseRepository) FindProfileByNickname(ctx context.Context, nickname string) (Profile, error) {
	return repository.takeProfile(ctx, "find_profile_by_nickname", "nickname = ?", nickname)
}

// SearchProfilesByNickname returns profiles whose nickname contains keyword.
func (repository *DatabaseRepository) SearchProfilesByNickname(ctx context.Context, keyword string) ([]Profile, error) {
	var records []profileRecord
	pattern := "%" + escapeLike(keyword) + "%"
	if err := repository.db.WithContext(ctx).Where("nickname LIKE ? ESCAPE '\\'", pattern).Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("account_store.search_profiles.%s: %w", repository.driverLabel, err)
	}
	profiles := make([]Profile, 0, len(records))
	for _, record := range records {
		profiles = append(profiles, recordToProfile(record))
	}
	return profiles, nil
}

// NicknameExists reports whether any profile uses the nickname.
func (repository *DatabaseRepository) NicknameExists(ctx context.Context, nickname string) (bool, error) {
	var count int64
	if err := repository.db.WithContext(ctx).Model(&profileRecord{}).Where("nickname = ?", nickname).Count(&count).Error; err != nil {
		return false, fmt.Errorf("account_store.nickname_exists.%s: %w", repository.driverLabel, err)
	}
	return count > 0, nil
}

// DeleteProfile removes the profile of an account.
func (repository *DatabaseRepository) DeleteProfile(ctx context.Context, accountID int64) error {
	result := repository.db.WithContext(ctx).Where("account_id = ?", accountID).Delete(&profileRecord{})
	if result.Error != nil {
		return fmt.Errorf("account_store.delete_profile.%s: %w", repository.driverLabel, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("account_store.delete_profile.%s: %w", repository.driverLabel, ErrProfileNotFound)
	}
	return nil
}

func (repository *DatabaseRepository) takeAccount(ctx context.Context, operation string, query string, arguments ...any) (Account, error) {
	var record accountRecord
	err := repository.db.WithContext(ctx).Where(query, arguments...).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Account{}, fmt.Errorf("account_store.%s.%s: %w", operation, repository.driverLabel, ErrAccountNotFound)
		}
		return Account{}, fmt.Errorf("account_store.%s.%s: %w", operation, repository.driverLabel, err)
	}
	return recordToAccount(record), nil
}

func (repository *DatabaseRepository) takeProfile(ctx context.Context, operation string, query string, arguments ...any) (Profile, error) {
	var record profileRecord
	err := repository.db.WithContext(ctx).Where(query, arguments...).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Profile{}, fmt.Errorf("account_store.%s.%s: %w", operation, repository.driverLabel, ErrProfileNotFound)
		}
		return Profile{}, fmt.Errorf("account_store.%s.%s: %w", operation, repository.driverLabel, err)
	}
	return recordToProfile(record), nil
}

func (repository *DatabaseRepository) listAccounts(ctx context.Context, operation string, query *gorm.DB) ([]Account, error) {
	var records []accountRecord
	if err := query.Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("account_store.%s.%s: %w", operation, repository.driverLabel, err)
	}
	accounts := make([]Account, 0, len(records))
	for _, record := range records {
		accounts = append(accounts, recordToAccount(record))
	}
	return accounts, nil
}

func (repository *DatabaseRepository) wrapWrite(operation string, err error, conflict error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("account_store.%s.%s: %w", operation, repository.driverLabel, conflict)
	}
	return fmt.Errorf("account_store.%s.%s: %w", operation, repository.driverLabel, err)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint") || strings.Contains(message, "duplicate key")
}

func escapeLike(keyword string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(keyword)
}

func accountToRecord(account Account) accountRecord {
	return accountRecord{
		ID:          account.ID,
		Username:    account.Username,
		Password:    account.PasswordRecord,
		Name:        account.Name,
		PhoneNumber: account.PhoneNumber,
		Provider:    string(account.Provider),
		ProviderID:  account.ProviderID,
		Role:        string(account.Role),
		IsActive:    account.Active,
		CreatedAt:   account.CreatedAt,
		UpdatedAt:   account.UpdatedAt,
	}
}

func recordToAccount(record accountRecord) Account {
	return Account{
		ID:             record.ID,
		Username:       record.Username,
		PasswordRecord: record.Password,
		Name:           record.Name,
		PhoneNumber:    record.PhoneNumber,
		Provider:       AuthProvider(record.Provider),
		ProviderID:     record.ProviderID,
		Role:           Role(record.Role),
		Active:         record.IsActive,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
}

func profileToRecord(profile Profile) profileRecord {
	return profileRecord{
		ID:              profile.ID,
		AccountID:       profile.AccountID,
		Nickname:        profile.Nickname,
		ProfileImageURL: profile.ProfileImageURL,
		Phone:           profile.Phone,
		BirthDate:       profile.BirthDate,
		Gender:          string(profile.Gender),
		Bio:             profile.Bio,
		CreatedAt:       profile.CreatedAt,
		UpdatedAt:       profile.UpdatedAt,
	}
}

func recordToProfile(record profileRecord) Profile {
	return Profile{
		ID:              record.ID,
		AccountID:       record.AccountID,
		Nickname:        record.Nickname,
		ProfileImageURL: record.ProfileImageURL,
		Phone:           record.Phone,
		BirthDate:       record.BirthDate,
		Gender:          Gender(record.Gender),
		Bio:             record.Bio,
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
	}
}

func resolveDialector(databaseURL string) (gorm.Dialector, string, error) {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("account_store.parse_url: %w", err)
	}
	if parsed.Scheme == "" {
		return nil, "", fmt.Errorf("account_store.dialect: %w", errUnsupportedNoScheme)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return postgres.Open(databaseURL), "postgres", nil
	case "sqlite", "sqlite3":
		dsn, dsnErr := buildSQLiteDSN(parsed)
		if dsnErr != nil {
			return nil, "", fmt.Errorf("account_store.sqlite: %w", dsnErr)
		}
		return sqliteDialector.Open(dsn), "sqlite", nil
	default:
		return nil, "", fmt.Errorf("account_store.dialect.%s: %w", strings.ToLower(parsed.Scheme), ErrUnsupportedDialect)
	}
}

func buildSQLiteDSN(parsed *url.URL) (string, error) {
	if parsed == nil {
		return "", errSQLiteInvalidURL
	}
	var builder strings.Builder
	switch {
	case parsed.Opaque != "":
		builder.WriteString(parsed.Opaque)
	case parsed.Host != "":
		builder.WriteString(parsed.Host)
		if parsed.Path != "" {
			if !strings.HasPrefix(parsed.Path, "/") {
				builder.WriteString("/")
			}
			builder.WriteString(parsed.Path)
		}
	default:
		builder.WriteString(parsed.Path)
	}
	if builder.Len() == 0 {
		return "", errSQLiteEmptyPath
	}
	if parsed.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(parsed.RawQuery)
	}
	return builder.String(), nil
}
