// Package sqlite implements a SQLite persistence driver using GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/vitolahq/vitola/internal/store"
)

func init() {
	store.Register("sqlite", NewDriver)
}

// Options holds sqlite driver settings from DriverConfig.Options.
type Options struct {
	// File is the database file name inside DataDir. Defaults to vitola.db.
	File string `mapstructure:"file"`
	// BusyTimeoutMS is the SQLite busy timeout. Defaults to 5000.
	BusyTimeoutMS int `mapstructure:"busy_timeout_ms"`
}

// Driver implements store.Store backed by SQLite.
type Driver struct {
	dataDir string
	file    string
	busyMS  int

	mu     sync.RWMutex
	db     *gorm.DB
	closed bool
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Store, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}

	var opts Options
	if cfg.Options != nil {
		if err := mapstructure.Decode(cfg.Options, &opts); err != nil {
			return nil, fmt.Errorf("invalid sqlite driver options: %w", err)
		}
	}
	if opts.File == "" {
		opts.File = "vitola.db"
	}
	if opts.BusyTimeoutMS <= 0 {
		opts.BusyTimeoutMS = 5000
	}

	return &Driver{
		dataDir: cfg.DataDir,
		file:    opts.File,
		busyMS:  opts.BusyTimeoutMS,
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Init opens the database and migrates the schema.
func (d *Driver) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	dsn := filepath.Join(d.dataDir, d.file) + "?_busy_timeout=" + strconv.Itoa(d.busyMS)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(
		&store.User{},
		&store.Humidor{},
		&store.Cigar{},
		&store.Share{},
		&store.PublicToken{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	d.db = db
	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || d.db == nil {
		d.closed = true
		return nil
	}
	d.closed = true

	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping reports whether the database is reachable.
func (d *Driver) Ping(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed || d.db == nil {
		return store.ErrClosed
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// conn returns the database handle, or ErrClosed after Close.
func (d *Driver) conn(ctx context.Context) (*gorm.DB, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed || d.db == nil {
		return nil, store.ErrClosed
	}
	return d.db.WithContext(ctx), nil
}

// translate maps GORM errors onto store errors.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return store.ErrAlreadyExists
	default:
		return err
	}
}

// UserStore implementation

func (d *Driver) CreateUser(ctx context.Context, user *store.User) error {
	db, err := d.conn(ctx)
	if err != nil {
		return err
	}
	return translate(db.Create(user).Error)
}

func (d *Driver) GetUser(ctx context.Context, id string) (*store.User, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	var user store.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (d *Driver) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	var user store.User
	if err := db.First(&user, "username = ?", username).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (d *Driver) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	var user store.User
	if err := db.First(&user, "email = ? COLLATE NOCASE", email).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (d *Driver) ListUsers(ctx context.Context, offset, limit int) ([]*store.User, int, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := db.Model(&store.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := db.Order("created_at DESC, id ASC").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	var users []*store.User
	if err := q.Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, int(total), nil
}

func (d *Driver) UpdateUser(ctx context.Context, user *store.User) error {
	db, err := d.conn(ctx)
	if err != nil {
		return err
	}
	var existing store.User
	if err := db.First(&existing, "id = ?", user.ID).Error; err != nil {
		return translate(err)
	}
	return translate(db.Save(user).Error)
}

func (d *Driver) DeleteUser(ctx context.Context, id string) error {
	db, err := d.conn(ctx)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		var user store.User
		if err := tx.First(&user, "id = ?", id).Error; err != nil {
			return translate(err)
		}

		var humidorIDs []string
		if err := tx.Model(&store.Humidor{}).Where("owner_id = ?", id).Pluck("id", &humidorIDs).Error; err != nil {
			return err
		}
		if len(humidorIDs) > 0 {
			if err := tx.Where("container_id IN ?", humidorIDs).Delete(&store.Share{}).Error; err != nil {
				return err
			}
			if err := tx.Where("container_id IN ?", humidorIDs).Delete(&store.PublicToken{}).Error; err != nil {
				return err
			}
		}
		// Covers contained cigars and wish-list items alike.
		if err := tx.Where("owner_id = ?", id).Delete(&store.Cigar{}).Error; err != nil {
			return err
		}
		if err := tx.Where("owner_id = ?", id).Delete(&store.Humidor{}).Error; err != nil {
			return err
		}
		if err := tx.Where("grantee_user_id = ?", id).Delete(&store.Share{}).Error; err != nil {
			return err
		}
		return tx.Delete(&store.User{}, "id = ?", id).Error
	})
}

// HumidorStore implementation

func (d *Driver) CreateHumidor(ctx context.Context, humidor *store.Humidor) error {
	db, err := d.conn(ctx)
	if err != nil {
		return err
	}
	return translate(db.Create(humidor).Error)
}

func (d *Driver) GetHumidor(ctx context.Context, id string) (*store.Humidor, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	var humidor store.Humidor
	if err := db.First(&humidor, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &humidor, nil
}

func (d *Driver) ListHumidorsByOwner(ctx context.Context, ownerID string) ([]*store.Humidor, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	var humidors []*store.Humidor
	if err := db.Where("owner_id = ?", ownerID).
		Order("created_at ASC, id ASC").
		Find(&humidors).Error; err != nil {
		return nil, err
	}
	return humidors, nil
}

func (d *Driver) UpdateHumidor(ctx context.Context, humidor *store.Humidor) error {
	db, err := d.conn(ctx)
	if err != nil {
		return err
	}
	var existing store.Humidor
	if err := db.First(&existing, "id = ?", humidor.ID).Error; err != nil {
		return translate(err)
	}
	return translate(db.Save(humidor).Error)
}

func (d *Driver) DeleteHumidor(ctx context.Context, id string) error {
	db, err := d.conn(ctx)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		var humidor store.Humidor
		if err := tx.First(&humidor, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		if err := tx.Where("humidor_id = ?", id).Delete(&store.Cigar{}).Error; err != nil {
			return err
		}
		if err := tx.Where("container_id = ?", id).Delete(&store.Share{}).Error; err != nil {
			return err
		}
		if err := tx.Where("container_id = ?", id).Delete(&store.PublicToken{}).Error; err != nil {
			return err
		}
		return tx.Delete(&store.Humidor{}, "id = ?", id).Error
	})
}

// CigarStore implementation

func (d *Driver) CreateCigar(ctx context.Context, cigar *store.Cigar) error {
	db, err := d.conn(ctx)
	if err != nil {
		return err
	}
	return translate(db.Create(cigar).Error)
}

func (d *Driver) GetCigar(ctx context.Context, id string) (*store.Cigar, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	var cigar store.Cigar
	if err := db.First(&cigar, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &cigar, nil
}

func (d *Driver) ListCigarsByHumidor(ctx context.Context, humidorID string) ([]*store.Cigar, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	var cigars []*store.Cigar
	if err := db.Where("humidor_id = ?", humidorID).
		Order("name ASC, id ASC").
		Find(&cigars).Error; err != nil {
		return nil, err
	}
	return cigars, nil
}

func (d *Driver) ListWishList(ctx context.Context, ownerID string) ([]*store.Cigar, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	var cigars []*store.Cigar
	if err := db.Where("owner_id = ? AND humidor_id IS NULL", ownerID).
		Order("name ASC, id ASC").
		Find(&cigars).Error; err != nil {
		return nil, err
	}
	return cigars, nil
}

func (d *Driver) CountCigarsByHumidor(ctx context.Context, humidorID string) (int, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := db.Model(&store.Cigar{}).Where("humidor_id = ?", humidorID).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (d *Driver) UpdateCigar(ctx context.Context, cigar *store.Cigar) error {
	db, err := d.conn(ctx)
	if err != nil {
		return err
	}
	var existing store.Cigar
	if err := db.First(&existing, "id = ?", cigar.ID).Error; err != nil {
		return translate(err)
	}
	return translate(db.Save(cigar).Error)
}

func (d *Driver) DeleteCigar(ctx context.Context, id string) error {
	db, err := d.conn(ctx)
	if err != nil {
		return err
	}
	res := db.Delete(&store.Cigar{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ShareStore implementation

func (d *Driver) UpsertShare(ctx context.Context, share *store.Share) error {
	db, err := d.conn(ctx)
	if err != nil {
		return err
	}
	// On conflict only the level and issuer move; created_at stays.
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "container_id"}, {Name: "grantee_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"permission_level", "granted_by",
		}),
	}).Create(share).Error
}

func (d *Driver) GetShare(ctx context.Context, containerID, granteeID string) (*store.Share, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	var share store.Share
	if err := db.First(&share, "container_id = ? AND grantee_user_id = ?", containerID, granteeID).Error; err != nil {
		return nil, translate(err)
	}
	return &share, nil
}

func (d *Driver) DeleteShare(ctx context.Context, containerID, granteeID string) error {
	db, err := d.conn(ctx)
	if err != nil {
		return err
	}
	res := db.Where("container_id = ? AND grantee_user_id = ?", containerID, granteeID).Delete(&store.Share{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *Driver) ListSharesByContainer(ctx context.Context, containerID string) ([]*store.Share, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	var shares []*store.Share
	if err := db.Where("container_id = ?", containerID).
		Order("created_at ASC, grantee_user_id ASC").
		Find(&shares).Error; err != nil {
		return nil, err
	}
	return shares, nil
}

func (d *Driver) ListSharesByGrantee(ctx context.Context, granteeID string) ([]*store.Share, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	var shares []*store.Share
	if err := db.Where("grantee_user_id = ?", granteeID).
		Order("created_at ASC, container_id ASC").
		Find(&shares).Error; err != nil {
		return nil, err
	}
	return shares, nil
}

// TokenStore implementation

func (d *Driver) CreateToken(ctx context.Context, token *store.PublicToken) error {
	db, err := d.conn(ctx)
	if err != nil {
		return err
	}
	return translate(db.Create(token).Error)
}

func (d *Driver) GetToken(ctx context.Context, tokenID string) (*store.PublicToken, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	var token store.PublicToken
	if err := db.First(&token, "token_id = ?", tokenID).Error; err != nil {
		return nil, translate(err)
	}
	return &token, nil
}

func (d *Driver) ListTokensByContainer(ctx context.Context, containerID string) ([]*store.PublicToken, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	var tokens []*store.PublicToken
	if err := db.Where("container_id = ?", containerID).
		Order("created_at DESC, token_id ASC").
		Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

func (d *Driver) UpdateToken(ctx context.Context, token *store.PublicToken) error {
	db, err := d.conn(ctx)
	if err != nil {
		return err
	}
	var existing store.PublicToken
	if err := db.First(&existing, "token_id = ?", token.TokenID).Error; err != nil {
		return translate(err)
	}
	return translate(db.Save(token).Error)
}

func (d *Driver) RevokeTokensByContainer(ctx context.Context, containerID string) (int, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return 0, err
	}
	res := db.Model(&store.PublicToken{}).
		Where("container_id = ? AND revoked = ?", containerID, false).
		Update("revoked", true)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// Transferrer implementation

func (d *Driver) TransferOwnership(ctx context.Context, fromUserID, toUserID, humidorID string) (store.TransferResult, error) {
	var result store.TransferResult
	db, err := d.conn(ctx)
	if err != nil {
		return result, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var humidorIDs []string
		if humidorID != "" {
			var humidor store.Humidor
			if err := tx.First(&humidor, "id = ? AND owner_id = ?", humidorID, fromUserID).Error; err != nil {
				return translate(err)
			}
			humidorIDs = []string{humidorID}
		} else {
			if err := tx.Model(&store.Humidor{}).Where("owner_id = ?", fromUserID).Pluck("id", &humidorIDs).Error; err != nil {
				return err
			}
		}
		if len(humidorIDs) == 0 {
			return nil
		}

		var cigarCount int64
		if err := tx.Model(&store.Cigar{}).Where("humidor_id IN ?", humidorIDs).Count(&cigarCount).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := tx.Model(&store.Humidor{}).Where("id IN ?", humidorIDs).
			Updates(map[string]any{"owner_id": toUserID, "updated_at": now}).Error; err != nil {
			return err
		}
		if err := tx.Model(&store.Cigar{}).Where("humidor_id IN ?", humidorIDs).
			Updates(map[string]any{"owner_id": toUserID, "updated_at": now}).Error; err != nil {
			return err
		}
		if err := tx.Where("container_id IN ?", humidorIDs).Delete(&store.Share{}).Error; err != nil {
			return err
		}

		result.Humidors = len(humidorIDs)
		result.Cigars = int(cigarCount)
		return nil
	})
	if err != nil {
		return store.TransferResult{}, err
	}
	return result, nil
}

// Compile-time interface check
var _ store.Store = (*Driver)(nil)
