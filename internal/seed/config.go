package seed

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

// PermissionSeed is one catalog entry to ensure during bootstrap.
type PermissionSeed struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// UserSeed is one principal to ensure during bootstrap, together with the
// roles it should hold.
type UserSeed struct {
	Email     string   `json:"email" validate:"required,email"`
	Password  string   `json:"password" validate:"required,min=8"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Gender    string   `json:"gender"`
	Country   string   `json:"country"`
	Phone     string   `json:"phone"`
	Roles     []string `json:"roles"`
}

// Config enumerates everything the bootstrap seeder establishes. It is
// injected by the host; nothing in it is compiled in.
type Config struct {
	Roles       []string         `json:"roles" validate:"dive,required"`
	Permissions []PermissionSeed `json:"permissions" validate:"dive"`
	Users       []UserSeed       `json:"users" validate:"dive"`

	// ElevatedRole names the role whose seeded members receive the
	// ElevatedGrants set as direct grants.
	ElevatedRole   string   `json:"elevatedRole"`
	ElevatedGrants []string `json:"elevatedGrants"`

	// SuperAdminEmail identifies the account that receives every permission
	// currently in the catalog during the final phase. It must match a
	// seeded (or pre-existing) user for the phase to have effect.
	SuperAdminEmail string `json:"superAdminEmail" validate:"omitempty,email"`
}

// Validate checks the configuration before seeding runs.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("seed: invalid config: %w", err)
	}
	return nil
}

// LoadFile reads and validates a JSON seed configuration.
func LoadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("seed: read config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("seed: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
