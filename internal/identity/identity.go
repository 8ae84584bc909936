// Package identity manages the local peer's persistent profile: its
// generated display name and avatar, stored so the peer looks the same
// across runs.
package identity

import (
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/DDME36/PurrDrop/internal/signal"
)

// Profile is the persisted local identity. PeerID is generated once and
// announced on every connection, so this device stays the same peer across
// reconnects and restarts.
type Profile struct {
	ID        uint `gorm:"primaryKey"`
	PeerID    string
	Name      string
	Emoji     string
	Color     string
	CreatedAt int64
	UpdatedAt int64
}

var adjectives = []string{
	"Sleepy", "Curious", "Fluffy", "Bouncy", "Gentle", "Sneaky",
	"Cozy", "Swift", "Dapper", "Mellow", "Plucky", "Whiskered",
}

var critters = []string{
	"Tabby", "Calico", "Siamese", "Bengal", "Sphynx", "Ragdoll",
	"Manx", "Bobtail", "Persian", "Burmese", "Ocicat", "Tomcat",
}

var emojis = []string{
	"🐱", "😸", "😺", "🐈", "🙀", "😻", "🐾", "🦁", "🐯", "😽",
}

var colors = []string{
	"#e06c75", "#98c379", "#e5c07b", "#61afef", "#c678dd", "#56b6c2",
}

// Generate rolls a fresh random profile.
func Generate() Profile {
	now := time.Now().Unix()
	return Profile{
		PeerID:    uuid.NewString(),
		Name:      fmt.Sprintf("%s %s", adjectives[rand.Intn(len(adjectives))], critters[rand.Intn(len(critters))]),
		Emoji:     emojis[rand.Intn(len(emojis))],
		Color:     colors[rand.Intn(len(colors))],
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DeviceLabel describes this machine for the peer list, e.g. "linux (fern)".
func DeviceLabel() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return runtime.GOOS
	}
	return fmt.Sprintf("%s (%s)", runtime.GOOS, host)
}

// PeerInfo builds the announcement for this profile.
func (p Profile) PeerInfo(peerID string) signal.PeerInfo {
	return signal.PeerInfo{
		ID:     peerID,
		Name:   p.Name,
		Device: DeviceLabel(),
		Avatar: signal.Avatar{
			Kind:  "cat",
			Color: p.Color,
			Emoji: p.Emoji,
			OS:    runtime.GOOS,
		},
	}
}

// Store persists the single local profile.
type Store struct {
	db *gorm.DB
}

// NewStore migrates the profile table and returns a store over db.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Profile{}); err != nil {
		return nil, fmt.Errorf("migrate profile table: %w", err)
	}
	return &Store{db: db}, nil
}

// Load returns the stored profile, generating and saving one on first run.
func (s *Store) Load() (Profile, error) {
	var p Profile
	err := s.db.First(&p).Error
	if err == nil {
		// Rows saved before the peer id column existed get one now.
		if p.PeerID == "" {
			p.PeerID = uuid.NewString()
			if err := s.db.Save(&p).Error; err != nil {
				return Profile{}, fmt.Errorf("backfill peer id: %w", err)
			}
		}
		return p, nil
	}
	if err != gorm.ErrRecordNotFound {
		return Profile{}, fmt.Errorf("load profile: %w", err)
	}

	p = Generate()
	if err := s.db.Create(&p).Error; err != nil {
		return Profile{}, fmt.Errorf("save generated profile: %w", err)
	}
	return p, nil
}

// Rename updates the stored display name.
func (s *Store) Rename(p *Profile, name string) error {
	p.Name = name
	p.UpdatedAt = time.Now().Unix()
	return s.db.Save(p).Error
}

// SetEmoji updates the stored avatar emoji.
func (s *Store) SetEmoji(p *Profile, emoji string) error {
	p.Emoji = emoji
	p.UpdatedAt = time.Now().Unix()
	return s.db.Save(p).Error
}
