// Package json implements a JSON file-based persistence driver.
// It uses atomic writes (temp file + fsync + rename) and in-process locking.
// All entities live in one file so multi-entity operations (ownership
// transfer, cascading deletes) commit or fail as a single rename.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"

	"github.com/vitolahq/vitola/internal/store"
)

func init() {
	store.Register("json", NewDriver)
}

// Options holds json driver settings from DriverConfig.Options.
type Options struct {
	// File is the data file name inside DataDir. Defaults to vitola.json.
	File string `mapstructure:"file"`
}

type dataFile struct {
	Users    map[string]*store.User        `json:"users"`
	Humidors map[string]*store.Humidor     `json:"humidors"`
	Cigars   map[string]*store.Cigar       `json:"cigars"`
	Shares   map[string]*store.Share       `json:"shares"` // keyed by containerID:granteeID
	Tokens   map[string]*store.PublicToken `json:"tokens"` // keyed by tokenID
}

// Driver implements store.Store using a single JSON file.
type Driver struct {
	dataDir  string
	fileName string
	mu       sync.RWMutex
	closed   bool

	data dataFile

	// Secondary index: username -> user id
	usernameIndex map[string]string
}

// NewDriver creates a new JSON driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Store, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for json driver")
	}

	var opts Options
	if cfg.Options != nil {
		if err := mapstructure.Decode(cfg.Options, &opts); err != nil {
			return nil, fmt.Errorf("invalid json driver options: %w", err)
		}
	}
	if opts.File == "" {
		opts.File = "vitola.json"
	}

	return &Driver{
		dataDir:       cfg.DataDir,
		fileName:      opts.File,
		data:          newDataFile(),
		usernameIndex: make(map[string]string),
	}, nil
}

func newDataFile() dataFile {
	return dataFile{
		Users:    make(map[string]*store.User),
		Humidors: make(map[string]*store.Humidor),
		Cigars:   make(map[string]*store.Cigar),
		Shares:   make(map[string]*store.Share),
		Tokens:   make(map[string]*store.PublicToken),
	}
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "json"
}

// Init loads data from the JSON file.
func (d *Driver) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	if err := d.loadFile(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load data file: %w", err)
	}

	d.rebuildIndexes()
	return nil
}

// Close releases resources.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Ping reports whether the store is usable.
func (d *Driver) Ping(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return store.ErrClosed
	}
	return nil
}

func (d *Driver) loadFile() error {
	path := filepath.Join(d.dataDir, d.fileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded dataFile
	if err := json.Unmarshal(raw, &loaded); err != nil {
		return err
	}
	// Guard against missing sections in hand-edited files.
	if loaded.Users == nil {
		loaded.Users = make(map[string]*store.User)
	}
	if loaded.Humidors == nil {
		loaded.Humidors = make(map[string]*store.Humidor)
	}
	if loaded.Cigars == nil {
		loaded.Cigars = make(map[string]*store.Cigar)
	}
	if loaded.Shares == nil {
		loaded.Shares = make(map[string]*store.Share)
	}
	if loaded.Tokens == nil {
		loaded.Tokens = make(map[string]*store.PublicToken)
	}
	d.data = loaded
	return nil
}

// saveFile atomically writes the data file.
// Pattern: write to temp file, fsync, rename.
func (d *Driver) saveFile() error {
	path := filepath.Join(d.dataDir, d.fileName)
	tempPath := path + ".tmp"

	jsonData, err := json.MarshalIndent(d.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(jsonData); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// rebuildIndexes rebuilds secondary indexes from primary data.
func (d *Driver) rebuildIndexes() {
	d.usernameIndex = make(map[string]string)
	for id, user := range d.data.Users {
		d.usernameIndex[user.Username] = id
	}
}

// shareKey creates the lookup key for a share pair.
func shareKey(containerID, granteeID string) string {
	return containerID + ":" + granteeID
}

// UserStore implementation

// CreateUser creates a new user. Username and email must be unique.
func (d *Driver) CreateUser(ctx context.Context, user *store.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	if _, exists := d.data.Users[user.ID]; exists {
		return store.ErrAlreadyExists
	}
	if _, taken := d.usernameIndex[user.Username]; taken {
		return store.ErrAlreadyExists
	}
	for _, existing := range d.data.Users {
		if strings.EqualFold(existing.Email, user.Email) {
			return store.ErrAlreadyExists
		}
	}

	cp := *user
	d.data.Users[user.ID] = &cp
	d.usernameIndex[user.Username] = user.ID
	return d.saveFile()
}

// GetUser retrieves a user by id.
func (d *Driver) GetUser(ctx context.Context, id string) (*store.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	user, ok := d.data.Users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

// GetUserByUsername retrieves a user by username.
func (d *Driver) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	id, ok := d.usernameIndex[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	user, ok := d.data.Users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (d *Driver) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	for _, user := range d.data.Users {
		if strings.EqualFold(user.Email, email) {
			cp := *user
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

// ListUsers returns a page of users ordered by CreatedAt descending.
func (d *Driver) ListUsers(ctx context.Context, offset, limit int) ([]*store.User, int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, 0, store.ErrClosed
	}

	all := make([]*store.User, 0, len(d.data.Users))
	for _, user := range d.data.Users {
		cp := *user
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	total := len(all)
	if offset >= total {
		return []*store.User{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// UpdateUser updates an existing user.
func (d *Driver) UpdateUser(ctx context.Context, user *store.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	current, exists := d.data.Users[user.ID]
	if !exists {
		return store.ErrNotFound
	}
	if id, taken := d.usernameIndex[user.Username]; taken && id != user.ID {
		return store.ErrAlreadyExists
	}
	for id, existing := range d.data.Users {
		if id != user.ID && strings.EqualFold(existing.Email, user.Email) {
			return store.ErrAlreadyExists
		}
	}

	if current.Username != user.Username {
		delete(d.usernameIndex, current.Username)
		d.usernameIndex[user.Username] = user.ID
	}
	cp := *user
	d.data.Users[user.ID] = &cp
	return d.saveFile()
}

// DeleteUser removes a user and cascades owned data and incoming shares.
func (d *Driver) DeleteUser(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	user, exists := d.data.Users[id]
	if !exists {
		return store.ErrNotFound
	}

	for humidorID, humidor := range d.data.Humidors {
		if humidor.OwnerID != id {
			continue
		}
		d.deleteHumidorCascadeLocked(humidorID)
	}
	// Wish-list items and any remaining cigars owned by the user.
	for cigarID, cigar := range d.data.Cigars {
		if cigar.OwnerID == id {
			delete(d.data.Cigars, cigarID)
		}
	}
	// Shares granted to the user on other people's humidors.
	for key, share := range d.data.Shares {
		if share.GranteeUserID == id {
			delete(d.data.Shares, key)
		}
	}

	delete(d.usernameIndex, user.Username)
	delete(d.data.Users, id)
	return d.saveFile()
}

// HumidorStore implementation

// CreateHumidor creates a new humidor.
func (d *Driver) CreateHumidor(ctx context.Context, humidor *store.Humidor) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	if _, exists := d.data.Humidors[humidor.ID]; exists {
		return store.ErrAlreadyExists
	}
	cp := *humidor
	d.data.Humidors[humidor.ID] = &cp
	return d.saveFile()
}

// GetHumidor retrieves a humidor by id.
func (d *Driver) GetHumidor(ctx context.Context, id string) (*store.Humidor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	humidor, ok := d.data.Humidors[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *humidor
	return &cp, nil
}

// ListHumidorsByOwner returns the owner's humidors ordered by CreatedAt.
func (d *Driver) ListHumidorsByOwner(ctx context.Context, ownerID string) ([]*store.Humidor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	humidors := make([]*store.Humidor, 0)
	for _, humidor := range d.data.Humidors {
		if humidor.OwnerID == ownerID {
			cp := *humidor
			humidors = append(humidors, &cp)
		}
	}
	sort.Slice(humidors, func(i, j int) bool {
		if !humidors[i].CreatedAt.Equal(humidors[j].CreatedAt) {
			return humidors[i].CreatedAt.Before(humidors[j].CreatedAt)
		}
		return humidors[i].ID < humidors[j].ID
	})
	return humidors, nil
}

// UpdateHumidor updates an existing humidor.
func (d *Driver) UpdateHumidor(ctx context.Context, humidor *store.Humidor) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	if _, exists := d.data.Humidors[humidor.ID]; !exists {
		return store.ErrNotFound
	}
	cp := *humidor
	d.data.Humidors[humidor.ID] = &cp
	return d.saveFile()
}

// DeleteHumidor removes a humidor, its cigars, shares and tokens.
func (d *Driver) DeleteHumidor(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	if _, exists := d.data.Humidors[id]; !exists {
		return store.ErrNotFound
	}
	d.deleteHumidorCascadeLocked(id)
	return d.saveFile()
}

// deleteHumidorCascadeLocked removes a humidor and dependent rows.
// Caller holds the write lock.
func (d *Driver) deleteHumidorCascadeLocked(id string) {
	for cigarID, cigar := range d.data.Cigars {
		if cigar.HumidorID != nil && *cigar.HumidorID == id {
			delete(d.data.Cigars, cigarID)
		}
	}
	for key, share := range d.data.Shares {
		if share.ContainerID == id {
			delete(d.data.Shares, key)
		}
	}
	for tokenID, token := range d.data.Tokens {
		if token.ContainerID == id {
			delete(d.data.Tokens, tokenID)
		}
	}
	delete(d.data.Humidors, id)
}

// CigarStore implementation

// CreateCigar creates a new cigar.
func (d *Driver) CreateCigar(ctx context.Context, cigar *store.Cigar) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	if _, exists := d.data.Cigars[cigar.ID]; exists {
		return store.ErrAlreadyExists
	}
	cp := *cigar
	d.data.Cigars[cigar.ID] = &cp
	return d.saveFile()
}

// GetCigar retrieves a cigar by id.
func (d *Driver) GetCigar(ctx context.Context, id string) (*store.Cigar, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	cigar, ok := d.data.Cigars[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *cigar
	return &cp, nil
}

// ListCigarsByHumidor returns the humidor's cigars ordered by name.
func (d *Driver) ListCigarsByHumidor(ctx context.Context, humidorID string) ([]*store.Cigar, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	cigars := make([]*store.Cigar, 0)
	for _, cigar := range d.data.Cigars {
		if cigar.HumidorID != nil && *cigar.HumidorID == humidorID {
			cp := *cigar
			cigars = append(cigars, &cp)
		}
	}
	sortCigarsByName(cigars)
	return cigars, nil
}

// ListWishList returns the user's container-less cigars ordered by name.
func (d *Driver) ListWishList(ctx context.Context, ownerID string) ([]*store.Cigar, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	cigars := make([]*store.Cigar, 0)
	for _, cigar := range d.data.Cigars {
		if cigar.HumidorID == nil && cigar.OwnerID == ownerID {
			cp := *cigar
			cigars = append(cigars, &cp)
		}
	}
	sortCigarsByName(cigars)
	return cigars, nil
}

func sortCigarsByName(cigars []*store.Cigar) {
	sort.Slice(cigars, func(i, j int) bool {
		if cigars[i].Name != cigars[j].Name {
			return cigars[i].Name < cigars[j].Name
		}
		return cigars[i].ID < cigars[j].ID
	})
}

// CountCigarsByHumidor counts the cigars in a humidor.
func (d *Driver) CountCigarsByHumidor(ctx context.Context, humidorID string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return 0, store.ErrClosed
	}
	count := 0
	for _, cigar := range d.data.Cigars {
		if cigar.HumidorID != nil && *cigar.HumidorID == humidorID {
			count++
		}
	}
	return count, nil
}

// UpdateCigar updates an existing cigar.
func (d *Driver) UpdateCigar(ctx context.Context, cigar *store.Cigar) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	if _, exists := d.data.Cigars[cigar.ID]; !exists {
		return store.ErrNotFound
	}
	cp := *cigar
	d.data.Cigars[cigar.ID] = &cp
	return d.saveFile()
}

// DeleteCigar deletes a cigar.
func (d *Driver) DeleteCigar(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	if _, exists := d.data.Cigars[id]; !exists {
		return store.ErrNotFound
	}
	delete(d.data.Cigars, id)
	return d.saveFile()
}

// ShareStore implementation

// UpsertShare inserts or overwrites the share for its pair.
func (d *Driver) UpsertShare(ctx context.Context, share *store.Share) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	key := shareKey(share.ContainerID, share.GranteeUserID)
	cp := *share
	if existing, ok := d.data.Shares[key]; ok {
		// Keep the original grant time; only the level and issuer move.
		cp.CreatedAt = existing.CreatedAt
	}
	d.data.Shares[key] = &cp
	return d.saveFile()
}

// GetShare retrieves the share for a (container, grantee) pair.
func (d *Driver) GetShare(ctx context.Context, containerID, granteeID string) (*store.Share, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	share, ok := d.data.Shares[shareKey(containerID, granteeID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *share
	return &cp, nil
}

// DeleteShare removes the share for a pair.
func (d *Driver) DeleteShare(ctx context.Context, containerID, granteeID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	key := shareKey(containerID, granteeID)
	if _, exists := d.data.Shares[key]; !exists {
		return store.ErrNotFound
	}
	delete(d.data.Shares, key)
	return d.saveFile()
}

// ListSharesByContainer returns shares ordered by CreatedAt ascending.
func (d *Driver) ListSharesByContainer(ctx context.Context, containerID string) ([]*store.Share, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	shares := make([]*store.Share, 0)
	for _, share := range d.data.Shares {
		if share.ContainerID == containerID {
			cp := *share
			shares = append(shares, &cp)
		}
	}
	sort.Slice(shares, func(i, j int) bool {
		if !shares[i].CreatedAt.Equal(shares[j].CreatedAt) {
			return shares[i].CreatedAt.Before(shares[j].CreatedAt)
		}
		return shares[i].GranteeUserID < shares[j].GranteeUserID
	})
	return shares, nil
}

// ListSharesByGrantee returns the user's incoming shares.
func (d *Driver) ListSharesByGrantee(ctx context.Context, granteeID string) ([]*store.Share, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	shares := make([]*store.Share, 0)
	for _, share := range d.data.Shares {
		if share.GranteeUserID == granteeID {
			cp := *share
			shares = append(shares, &cp)
		}
	}
	sort.Slice(shares, func(i, j int) bool {
		if !shares[i].CreatedAt.Equal(shares[j].CreatedAt) {
			return shares[i].CreatedAt.Before(shares[j].CreatedAt)
		}
		return shares[i].ContainerID < shares[j].ContainerID
	})
	return shares, nil
}

// TokenStore implementation

// CreateToken creates a new public token.
func (d *Driver) CreateToken(ctx context.Context, token *store.PublicToken) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	if _, exists := d.data.Tokens[token.TokenID]; exists {
		return store.ErrAlreadyExists
	}
	cp := *token
	d.data.Tokens[token.TokenID] = &cp
	return d.saveFile()
}

// GetToken retrieves a public token by id.
func (d *Driver) GetToken(ctx context.Context, tokenID string) (*store.PublicToken, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	token, ok := d.data.Tokens[tokenID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *token
	return &cp, nil
}

// ListTokensByContainer returns all tokens for a container, newest first.
func (d *Driver) ListTokensByContainer(ctx context.Context, containerID string) ([]*store.PublicToken, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, store.ErrClosed
	}
	tokens := make([]*store.PublicToken, 0)
	for _, token := range d.data.Tokens {
		if token.ContainerID == containerID {
			cp := *token
			tokens = append(tokens, &cp)
		}
	}
	sort.Slice(tokens, func(i, j int) bool {
		if !tokens[i].CreatedAt.Equal(tokens[j].CreatedAt) {
			return tokens[i].CreatedAt.After(tokens[j].CreatedAt)
		}
		return tokens[i].TokenID < tokens[j].TokenID
	})
	return tokens, nil
}

// UpdateToken updates an existing public token.
func (d *Driver) UpdateToken(ctx context.Context, token *store.PublicToken) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}
	if _, exists := d.data.Tokens[token.TokenID]; !exists {
		return store.ErrNotFound
	}
	cp := *token
	d.data.Tokens[token.TokenID] = &cp
	return d.saveFile()
}

// RevokeTokensByContainer revokes every token of a container.
func (d *Driver) RevokeTokensByContainer(ctx context.Context, containerID string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, store.ErrClosed
	}
	revoked := 0
	for _, token := range d.data.Tokens {
		if token.ContainerID == containerID && !token.Revoked {
			token.Revoked = true
			revoked++
		}
	}
	if revoked == 0 {
		return 0, nil
	}
	return revoked, d.saveFile()
}

// Transferrer implementation

// TransferOwnership moves humidors (and their cigars) between users and
// drops all shares on the moved humidors. The in-memory state is rolled
// back if the data file cannot be written, so a failed transfer leaves
// nothing behind.
func (d *Driver) TransferOwnership(ctx context.Context, fromUserID, toUserID, humidorID string) (store.TransferResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var result store.TransferResult
	if d.closed {
		return result, store.ErrClosed
	}

	moved := make(map[string]*store.Humidor)
	if humidorID != "" {
		humidor, ok := d.data.Humidors[humidorID]
		if !ok || humidor.OwnerID != fromUserID {
			return result, store.ErrNotFound
		}
		moved[humidorID] = humidor
	} else {
		for id, humidor := range d.data.Humidors {
			if humidor.OwnerID == fromUserID {
				moved[id] = humidor
			}
		}
	}

	// Stage the mutation so a failed save can be undone in place.
	var touchedCigars []*store.Cigar
	var droppedShares map[string]*store.Share

	for _, humidor := range moved {
		humidor.OwnerID = toUserID
	}
	for _, cigar := range d.data.Cigars {
		if cigar.HumidorID == nil {
			continue
		}
		if _, ok := moved[*cigar.HumidorID]; ok {
			cigar.OwnerID = toUserID
			touchedCigars = append(touchedCigars, cigar)
		}
	}
	droppedShares = make(map[string]*store.Share)
	for key, share := range d.data.Shares {
		if _, ok := moved[share.ContainerID]; ok {
			droppedShares[key] = share
			delete(d.data.Shares, key)
		}
	}

	if err := d.saveFile(); err != nil {
		for _, humidor := range moved {
			humidor.OwnerID = fromUserID
		}
		for _, cigar := range touchedCigars {
			cigar.OwnerID = fromUserID
		}
		for key, share := range droppedShares {
			d.data.Shares[key] = share
		}
		return store.TransferResult{}, err
	}

	result.Humidors = len(moved)
	result.Cigars = len(touchedCigars)
	return result, nil
}

// Compile-time interface check
var _ store.Store = (*Driver)(nil)
