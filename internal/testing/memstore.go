package testing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eleven-am/todoapp/internal/models"
	"github.com/eleven-am/todoapp/internal/orm"
	"github.com/eleven-am/todoapp/internal/store"
)

// MemoryStore is an in-memory store.Transactional that mirrors the
// PostgreSQL schema: unique usernames, uk_categories_user_name, foreign
// keys and ON DELETE CASCADE. Transactions work on a copy that replaces
// the live data only on success.
type MemoryStore struct {
	mu   *sync.Mutex
	data *memData
	inTx bool

	// StaleNameLookups makes FindCategoryByName miss every row, the way a
	// lookup does when a concurrent request inserts the same name first.
	StaleNameLookups bool
}

type memData struct {
	nextID     int64
	tick       int64
	users      map[int64]models.User
	categories map[int64]models.Category
	items      map[int64]models.TodoItem
}

var _ store.Transactional = (*MemoryStore)(nil)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu: &sync.Mutex{},
		data: &memData{
			users:      make(map[int64]models.User),
			categories: make(map[int64]models.Category),
			items:      make(map[int64]models.TodoItem),
		},
	}
}

func (d *memData) clone() *memData {
	c := &memData{
		nextID:     d.nextID,
		tick:       d.tick,
		users:      make(map[int64]models.User, len(d.users)),
		categories: make(map[int64]models.Category, len(d.categories)),
		items:      make(map[int64]models.TodoItem, len(d.items)),
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.categories {
		c.categories[k] = v
	}
	for k, v := range d.items {
		c.items[k] = v
	}
	return c
}

func (d *memData) id() int64 {
	d.nextID++
	return d.nextID
}

// now returns strictly increasing timestamps so creation order is observable
func (d *memData) now() time.Time {
	d.tick++
	return epoch.Add(time.Duration(d.tick) * time.Second)
}

func (s *MemoryStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func notFound(op, table string) error {
	return &orm.Error{Op: op, Table: table, Err: orm.ErrNotFound}
}

// WithTransaction runs fn against a private copy of the data
func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(store.Repositories) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &MemoryStore{
		mu:               s.mu,
		data:             s.data.clone(),
		inTx:             true,
		StaleNameLookups: s.StaleNameLookups,
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Counts reports how many rows each table holds
func (s *MemoryStore) Counts() (users, categories, items int) {
	defer s.lock()()
	return len(s.data.users), len(s.data.categories), len(s.data.items)
}

func (s *MemoryStore) ListCategories(ctx context.Context, ownerID int64) ([]models.Category, error) {
	defer s.lock()()

	result := make([]models.Category, 0)
	for _, c := range s.data.categories {
		if c.UserID == ownerID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *MemoryStore) GetCategory(ctx context.Context, ownerID, id int64) (*models.Category, error) {
	defer s.lock()()

	c, ok := s.data.categories[id]
	if !ok || c.UserID != ownerID {
		return nil, notFound("first", "categories")
	}
	return &c, nil
}

func (s *MemoryStore) FindCategoryByName(ctx context.Context, ownerID int64, name string) (*models.Category, error) {
	defer s.lock()()

	if s.StaleNameLookups {
		return nil, notFound("first", "categories")
	}
	for _, c := range s.data.categories {
		if c.UserID == ownerID && c.Name == name {
			found := c
			return &found, nil
		}
	}
	return nil, notFound("first", "categories")
}

func (s *MemoryStore) nameTaken(ownerID int64, name string, exceptID int64) bool {
	for _, c := range s.data.categories {
		if c.UserID == ownerID && c.Name == name && c.ID != exceptID {
			return true
		}
	}
	return false
}

func (s *MemoryStore) CreateCategory(ctx context.Context, category *models.Category) error {
	defer s.lock()()

	if _, ok := s.data.users[category.UserID]; !ok {
		return &orm.Error{Op: "create", Table: "categories", Err: orm.ErrForeignKey, Constraint: "fk_categories_user"}
	}
	if s.nameTaken(category.UserID, category.Name, 0) {
		return &orm.Error{Op: "create", Table: "categories", Err: orm.ErrDuplicateKey, Constraint: "uk_categories_user_name"}
	}

	category.ID = s.data.id()
	s.data.categories[category.ID] = *category
	return nil
}

func (s *MemoryStore) RenameCategory(ctx context.Context, ownerID, id int64, name string) error {
	defer s.lock()()

	c, ok := s.data.categories[id]
	if !ok || c.UserID != ownerID {
		return &orm.Error{Op: "update", Table: "categories", Err: orm.ErrNotFound}
	}
	if s.nameTaken(ownerID, name, id) {
		return &orm.Error{Op: "update", Table: "categories", Err: orm.ErrDuplicateKey, Constraint: "uk_categories_user_name"}
	}
	c.Name = name
	s.data.categories[id] = c
	return nil
}

func (s *MemoryStore) DeleteCategory(ctx context.Context, ownerID, id int64) error {
	defer s.lock()()

	c, ok := s.data.categories[id]
	if !ok || c.UserID != ownerID {
		return &orm.Error{Op: "delete", Table: "categories", Err: orm.ErrNotFound}
	}
	delete(s.data.categories, id)
	for itemID, item := range s.data.items {
		if item.CategoryID == id {
			delete(s.data.items, itemID)
		}
	}
	return nil
}

func (s *MemoryStore) ownsItem(ownerID int64, item models.TodoItem) bool {
	c, ok := s.data.categories[item.CategoryID]
	return ok && c.UserID == ownerID
}

func (s *MemoryStore) ListItems(ctx context.Context, ownerID, categoryID int64) ([]models.TodoItem, error) {
	defer s.lock()()

	result := make([]models.TodoItem, 0)
	for _, item := range s.data.items {
		if item.CategoryID == categoryID && s.ownsItem(ownerID, item) {
			result = append(result, item)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func (s *MemoryStore) GetItem(ctx context.Context, ownerID, id int64) (*models.TodoItem, error) {
	defer s.lock()()

	item, ok := s.data.items[id]
	if !ok || !s.ownsItem(ownerID, item) {
		return nil, notFound("first", "todo_items")
	}
	return &item, nil
}

func (s *MemoryStore) CreateItem(ctx context.Context, item *models.TodoItem) error {
	defer s.lock()()

	if _, ok := s.data.categories[item.CategoryID]; !ok {
		return &orm.Error{Op: "create", Table: "todo_items", Err: orm.ErrForeignKey, Constraint: "fk_todo_items_category"}
	}
	item.ID = s.data.id()
	item.Done = false
	item.CreatedAt = s.data.now()
	s.data.items[item.ID] = *item
	return nil
}

func (s *MemoryStore) UpdateItem(ctx context.Context, ownerID int64, item *models.TodoItem, columns ...string) error {
	defer s.lock()()

	current, ok := s.data.items[item.ID]
	if !ok || !s.ownsItem(ownerID, current) {
		return &orm.Error{Op: "update", Table: "todo_items", Err: orm.ErrNotFound}
	}
	if len(columns) == 0 {
		columns = []string{"name", "done", "category_id"}
	}

	for _, column := range columns {
		switch column {
		case "name":
			current.Name = item.Name
		case "done":
			current.Done = item.Done
		case "category_id":
			if _, ok := s.data.categories[item.CategoryID]; !ok {
				return &orm.Error{Op: "update", Table: "todo_items", Err: orm.ErrForeignKey, Constraint: "fk_todo_items_category"}
			}
			current.CategoryID = item.CategoryID
		default:
			return &orm.Error{Op: "update", Table: "todo_items", Column: column, Err: orm.ErrInvalidStruct}
		}
	}
	s.data.items[item.ID] = current
	return nil
}

func (s *MemoryStore) DeleteItem(ctx context.Context, ownerID, id int64) error {
	defer s.lock()()

	item, ok := s.data.items[id]
	if !ok || !s.ownsItem(ownerID, item) {
		return &orm.Error{Op: "delete", Table: "todo_items", Err: orm.ErrNotFound}
	}
	delete(s.data.items, id)
	return nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	defer s.lock()()

	for _, u := range s.data.users {
		if u.Username == user.Username {
			return &orm.Error{Op: "create", Table: "users", Err: orm.ErrDuplicateKey, Constraint: "uk_users_username"}
		}
	}
	user.ID = s.data.id()
	user.CreatedAt = s.data.now()
	s.data.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	defer s.lock()()

	u, ok := s.data.users[id]
	if !ok {
		return nil, notFound("first", "users")
	}
	return &u, nil
}

func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	defer s.lock()()

	for _, u := range s.data.users {
		if u.Username == username {
			found := u
			return &found, nil
		}
	}
	return nil, notFound("first", "users")
}

func (s *MemoryStore) UsernameTaken(ctx context.Context, username string, exceptID int64) (bool, error) {
	defer s.lock()()

	for id, u := range s.data.users {
		if id != exceptID && u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) UpdateUser(ctx context.Context, user *models.User, columns ...string) error {
	defer s.lock()()

	current, ok := s.data.users[user.ID]
	if !ok {
		return &orm.Error{Op: "update", Table: "users", Err: orm.ErrNotFound}
	}
	if len(columns) == 0 {
		columns = []string{"username", "password_hash"}
	}

	for _, column := range columns {
		switch column {
		case "username":
			for id, u := range s.data.users {
				if id != user.ID && u.Username == user.Username {
					return &orm.Error{Op: "update", Table: "users", Err: orm.ErrDuplicateKey, Constraint: "uk_users_username"}
				}
			}
			current.Username = user.Username
		case "password_hash":
			current.PasswordHash = user.PasswordHash
		default:
			return &orm.Error{Op: "update", Table: "users", Column: column, Err: orm.ErrInvalidStruct}
		}
	}
	s.data.users[user.ID] = current
	return nil
}
