package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	jwtExpiry        = 24 * time.Hour
	bcryptCost       = 12
	loginRateWindow  = 60 * time.Second
	maxLoginAttempts = 10

	settingJWTSecret     = "jwt_secret"
	settingAdminPassHash = "admin_pass_hash"
)

// Auth guards the map-management API. Players join games anonymously; only
// the administrator authenticates.
type Auth struct {
	store     Store
	jwtSecret []byte

	rateMu  sync.Mutex
	rateMap map[string]*rateEntry
}

type rateEntry struct {
	Count   int
	ResetAt time.Time
}

// NewAuth creates the auth handler, bootstrapping the admin password when
// the store has none
func NewAuth(store Store, defaultPassword string) (*Auth, error) {
	a := &Auth{
		store:     store,
		jwtSecret: loadOrCreateSecret(store),
		rateMap:   make(map[string]*rateEntry),
	}
	hash, err := store.GetSetting(settingAdminPassHash)
	if err != nil {
		return nil, err
	}
	if hash == "" {
		if err := a.SetPassword(defaultPassword); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// loadOrCreateSecret loads the JWT secret from storage, or generates and
// persists a new one
func loadOrCreateSecret(store Store) []byte {
	if store != nil {
		if h, err := store.GetSetting(settingJWTSecret); err == nil && h != "" {
			if b, err := hex.DecodeString(h); err == nil && len(b) == 32 {
				return b
			}
		}
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("failed to generate JWT secret: " + err.Error())
	}
	if store != nil {
		if err := store.SetSetting(settingJWTSecret, hex.EncodeToString(secret)); err != nil {
			log.Printf("warning: could not persist JWT secret: %v", err)
		}
	}
	return secret
}

// SetPassword replaces the admin password
func (a *Auth) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return err
	}
	return a.store.SetSetting(settingAdminPassHash, string(hash))
}

// Login checks the admin password and returns a JWT
func (a *Auth) Login(password, ip string) (string, error) {
	if !a.checkRate(ip) {
		return "", fmt.Errorf("too many login attempts, try again later")
	}
	hash, err := a.store.GetSetting(settingAdminPassHash)
	if err != nil {
		return "", fmt.Errorf("database error")
	}
	if hash == "" {
		return "", fmt.Errorf("invalid password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", fmt.Errorf("invalid password")
	}
	return a.generateToken()
}

// ValidateToken verifies an admin JWT
func (a *Auth) ValidateToken(tokenStr string) error {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return fmt.Errorf("invalid token")
	}
	if role, _ := claims["role"].(string); role != "admin" {
		return fmt.Errorf("invalid token claims")
	}
	return nil
}

func (a *Auth) generateToken() (string, error) {
	claims := jwt.MapClaims{
		"role": "admin",
		"exp":  time.Now().Add(jwtExpiry).Unix(),
		"iat":  time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

func (a *Auth) checkRate(ip string) bool {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	now := time.Now()
	entry, ok := a.rateMap[ip]
	if !ok || now.After(entry.ResetAt) {
		a.rateMap[ip] = &rateEntry{Count: 1, ResetAt: now.Add(loginRateWindow)}
		return true
	}
	entry.Count++
	return entry.Count <= maxLoginAttempts
}
