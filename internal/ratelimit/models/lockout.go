// Package models holds the login lockout records and policy.
package models

import (
	"strings"
	"time"
)

// Config is the lockout policy: AttemptsPerWindow failures inside Window lock
// the key for LockDuration.
type Config struct {
	AttemptsPerWindow int
	Window            time.Duration
	LockDuration      time.Duration
}

func DefaultConfig() Config {
	return Config{
		AttemptsPerWindow: 5,
		Window:            15 * time.Minute,
		LockDuration:      15 * time.Minute,
	}
}

// Key identifies one (account, client address) pair. Locking the pair rather
// than the account keeps a remote attacker from locking out the owner.
type Key string

func NewKey(identifier, ip string) Key {
	return Key("login:" + strings.ToLower(strings.TrimSpace(identifier)) + ":" + ip)
}

func (k Key) String() string { return string(k) }

// Lockout is the failure record for one key.
type Lockout struct {
	Key         Key
	Failures    int
	WindowStart time.Time
	LockedUntil *time.Time
}

// IsLockedAt reports whether the lock is still in force at now.
func (l *Lockout) IsLockedAt(now time.Time) bool {
	return l != nil && l.LockedUntil != nil && now.Before(*l.LockedUntil)
}

// WindowExpiredAt reports whether the failure window has lapsed at now.
func (l *Lockout) WindowExpiredAt(now time.Time, window time.Duration) bool {
	return !now.Before(l.WindowStart.Add(window))
}

// ShouldLock reports whether the failure count reached the policy limit.
func (l *Lockout) ShouldLock(cfg Config) bool {
	return cfg.AttemptsPerWindow > 0 && l.Failures >= cfg.AttemptsPerWindow
}

// LockedError is returned while a key is locked.
type LockedError struct {
	Wait time.Duration
}

func (e *LockedError) Error() string {
	return "login locked for " + e.Wait.Round(time.Second).String()
}

// RetryAfter tells the transport when to try again.
func (e *LockedError) RetryAfter() time.Duration { return e.Wait }
