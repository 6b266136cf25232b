package repositories

import (
	"errors"

	"github.com/anonto42/nano-midea/moments/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository defines the interface for user profile operations
type UserRepository interface {
	UpsertUser(user *models.User) error
	CreateUserIfMissing(user *models.User) error
	GetUserByID(id string) (*models.User, error)
}

// PostgresUserRepository implements UserRepository for PostgreSQL
type PostgresUserRepository struct {
	db *gorm.DB
}

func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// UpsertUser stores the profile keyed by the identity provider's user id.
func (r *PostgresUserRepository) UpsertUser(user *models.User) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "avatar_ref", "updated_at"}),
	}).Create(user).Error
}

// CreateUserIfMissing inserts the profile unless the id already exists. An
// existing row, including its edited name and avatar, is left alone.
func (r *PostgresUserRepository) CreateUserIfMissing(user *models.User) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(user).Error
}

func (r *PostgresUserRepository) GetUserByID(id string) (*models.User, error) {
	var user models.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
