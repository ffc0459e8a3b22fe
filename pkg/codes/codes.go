// Package codes stores short-lived one-shot verification codes in
// Redis. A code can be consumed exactly once; consumption is atomic so
// two concurrent verify calls cannot both succeed.
package codes

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/commune-hq/commune/pkg/config"
)

const (
	DefaultTTL   = 5 * time.Minute
	signupPrefix = "signup:code:"
)

var ErrCodeMismatch = errors.New("verification code invalid or expired")

type Store struct {
	client *redis.Client
}

// NewFromConfig returns nil when Redis is disabled; a nil Store means
// e-mail verification is off.
func NewFromConfig() (*Store, error) {
	conf := config.GetConfig().Redis
	if !conf.Enable {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:         conf.Addr,
		Password:     conf.Password,
		DB:           conf.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// IssueSignupCode generates a 6-digit code and stores it under the
// e-mail address, replacing any earlier code.
func (s *Store) IssueSignupCode(ctx context.Context, email string) (string, error) {
	code, err := randomCode()
	if err != nil {
		return "", err
	}
	key := signupPrefix + email
	if err := s.client.Set(ctx, key, code, DefaultTTL).Err(); err != nil {
		return "", err
	}
	return code, nil
}

// ConsumeSignupCode verifies and deletes the code in one round trip.
// The GET and DEL run in a Lua script so the code cannot be replayed.
func (s *Store) ConsumeSignupCode(ctx context.Context, email, code string) error {
	script := `
local val = redis.call("GET", KEYS[1])
if not val or val ~= ARGV[1] then
  return 0
end
redis.call("DEL", KEYS[1])
return 1
`
	res := s.client.Eval(ctx, script, []string{signupPrefix + email}, code)
	if err := res.Err(); err != nil {
		return err
	}
	ok, _ := res.Int()
	if ok != 1 {
		return ErrCodeMismatch
	}
	return nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
