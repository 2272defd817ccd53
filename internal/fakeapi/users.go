package fakeapi

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/classroom-portal/credentials"
	"golang.org/x/crypto/bcrypt"
)

var (
	errUserExists   = errors.New("user exists")
	errUserNotFound = errors.New("not found")
)

type user struct {
	credentials.Identity
	passwordHash string
}

// userRepo keys teachers by id and civil id.
type userRepo struct {
	cost     int
	lock     sync.RWMutex
	users    map[string]*user
	civilIDs map[string]string // civil id -> user id
}

func newUserRepo(cost int) *userRepo {
	return &userRepo{
		cost:     cost,
		users:    make(map[string]*user),
		civilIDs: make(map[string]string),
	}
}

func (ur *userRepo) Create(identity credentials.Identity, password string) (*credentials.Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), ur.cost)
	if err != nil {
		return nil, err
	}

	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.civilIDs[identity.CivilID]; ok {
		return nil, errUserExists
	}
	now := NowTimeFunc()
	identity.ID = uuid.NewString()
	identity.IsActive = true
	identity.CreatedAt = now
	identity.UpdatedAt = now

	ur.users[identity.ID] = &user{Identity: identity, passwordHash: string(hash)}
	ur.civilIDs[identity.CivilID] = identity.ID
	return &identity, nil
}

// Authenticate returns the active user matching civilID and password.
func (ur *userRepo) Authenticate(civilID, password string) (*credentials.Identity, error) {
	ur.lock.RLock()
	u, ok := ur.users[ur.civilIDs[civilID]]
	ur.lock.RUnlock()

	if !ok || !u.IsActive {
		return nil, errUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.passwordHash), []byte(password)); err != nil {
		return nil, errUserNotFound
	}
	identity := u.Identity
	return &identity, nil
}

func (ur *userRepo) GetByID(id string) (*credentials.Identity, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	u, ok := ur.users[id]
	if !ok || !u.IsActive {
		return nil, errUserNotFound
	}
	identity := u.Identity
	return &identity, nil
}
