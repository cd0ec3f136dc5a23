package profile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Gender 孩子的性别分类。
type Gender string

const (
	GenderBoy   Gender = "boy"
	GenderGirl  Gender = "girl"
	GenderOther Gender = "other"
)

// 年龄范围（含）。
const (
	MinAge = 0
	MaxAge = 18
)

var (
	ErrNameRequired  = errors.New("profile name is required")
	ErrAgeOutOfRange = fmt.Errorf("profile age must be between %d and %d", MinAge, MaxAge)
	ErrInvalidGender = errors.New("profile gender must be boy, girl or other")
)

// Profile captures one child the parent is asking about. Profiles are immutable once created.
type Profile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Age         int       `json:"age"`
	Gender      Gender    `json:"gender"`
	Temperament string    `json:"temperament,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Input is the form payload used to create a profile.
type Input struct {
	Name        string `json:"name"`
	Age         int    `json:"age"`
	Gender      Gender `json:"gender"`
	Temperament string `json:"temperament"`
}

// Valid reports whether g is one of the enumerated categories.
func (g Gender) Valid() bool {
	switch g {
	case GenderBoy, GenderGirl, GenderOther:
		return true
	default:
		return false
	}
}

// Validate 校验表单输入。
func (in Input) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrNameRequired
	}
	if in.Age < MinAge || in.Age > MaxAge {
		return ErrAgeOutOfRange
	}
	if !in.Gender.Valid() {
		return ErrInvalidGender
	}
	return nil
}

// New builds a Profile with a fresh identifier from validated input.
func New(in Input) (Profile, error) {
	if err := in.Validate(); err != nil {
		return Profile{}, err
	}

	return Profile{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Age:         in.Age,
		Gender:      in.Gender,
		Temperament: strings.TrimSpace(in.Temperament),
		CreatedAt:   time.Now().UTC(),
	}, nil
}
