// Package auth manages accounts and the CLI session.
package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/valutatrade/valutahub/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const (
	accountsFileName = "accounts.json"
	sessionFileName  = "session.json"

	minPasswordLen = 4
)

// Service persists accounts and the active session under a data directory.
type Service struct {
	accountsPath string
	sessionPath  string
}

type session struct {
	Username string    `json:"username"`
	IssuedAt time.Time `json:"issued_at"`
}

// New creates the auth service, ensuring the data directory exists.
func New(dir string) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create auth dir")
	}

	return &Service{
		accountsPath: filepath.Join(dir, accountsFileName),
		sessionPath:  filepath.Join(dir, sessionFileName),
	}, nil
}

// Register creates a new account. Usernames are unique; passwords must be at
// least four characters.
func (s *Service) Register(username, password string) (domain.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.Account{}, errors.New("username must not be empty")
	}
	if len(password) < minPasswordLen {
		return domain.Account{}, errors.Errorf("password must be at least %d characters", minPasswordLen)
	}

	accounts, err := s.loadAccounts()
	if err != nil {
		return domain.Account{}, err
	}
	if _, exists := accounts[username]; exists {
		return domain.Account{}, errors.Wrapf(domain.ErrUserExists, "username %q", username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Account{}, errors.Wrap(err, "hash password")
	}

	account := domain.Account{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	accounts[username] = account

	if err := s.saveAccounts(accounts); err != nil {
		return domain.Account{}, err
	}

	return account, nil
}

// Authenticate verifies credentials. Unknown user and wrong password return
// the same domain.ErrAuthenticationFailure so usernames cannot be probed.
func (s *Service) Authenticate(username, password string) (domain.Account, error) {
	accounts, err := s.loadAccounts()
	if err != nil {
		return domain.Account{}, err
	}

	account, ok := accounts[strings.TrimSpace(username)]
	if !ok {
		return domain.Account{}, domain.ErrAuthenticationFailure
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return domain.Account{}, domain.ErrAuthenticationFailure
	}

	return account, nil
}

// Account looks up a registered account by username.
func (s *Service) Account(username string) (domain.Account, error) {
	accounts, err := s.loadAccounts()
	if err != nil {
		return domain.Account{}, err
	}

	account, ok := accounts[username]
	if !ok {
		return domain.Account{}, errors.Wrapf(domain.ErrUserNotFound, "username %q", username)
	}

	return account, nil
}

// Login authenticates and persists the session so subsequent CLI invocations
// act as this user.
func (s *Service) Login(username, password string) (domain.Account, error) {
	account, err := s.Authenticate(username, password)
	if err != nil {
		return domain.Account{}, err
	}

	payload, err := json.MarshalIndent(session{Username: account.Username, IssuedAt: time.Now()}, "", "  ")
	if err != nil {
		return domain.Account{}, errors.Wrap(err, "encode session")
	}
	if err := os.WriteFile(s.sessionPath, payload, 0o600); err != nil {
		return domain.Account{}, errors.Wrap(err, "persist session")
	}

	return account, nil
}

// Logout removes the persisted session. Logging out twice is not an error.
func (s *Service) Logout() error {
	if err := os.Remove(s.sessionPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "remove session")
	}
	return nil
}

// CurrentUser returns the logged-in username, or domain.ErrNotLoggedIn.
func (s *Service) CurrentUser() (string, error) {
	payload, err := os.ReadFile(s.sessionPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", domain.ErrNotLoggedIn
		}
		return "", errors.Wrap(err, "read session")
	}

	var sess session
	if err := json.Unmarshal(payload, &sess); err != nil || sess.Username == "" {
		return "", domain.ErrNotLoggedIn
	}

	return sess.Username, nil
}

func (s *Service) loadAccounts() (map[string]domain.Account, error) {
	payload, err := os.ReadFile(s.accountsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]domain.Account), nil
		}
		return nil, errors.Wrap(err, "read accounts")
	}
	if len(payload) == 0 {
		return make(map[string]domain.Account), nil
	}

	var accounts map[string]domain.Account
	if err := json.Unmarshal(payload, &accounts); err != nil {
		return nil, errors.Wrap(err, "decode accounts")
	}

	return accounts, nil
}

func (s *Service) saveAccounts(accounts map[string]domain.Account) error {
	payload, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode accounts")
	}

	tmp := s.accountsPath + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return errors.Wrap(err, "write accounts temp file")
	}
	if err := os.Rename(tmp, s.accountsPath); err != nil {
		return errors.Wrap(err, "persist accounts")
	}

	return nil
}
