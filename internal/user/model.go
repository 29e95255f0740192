package user

import "lattice-backend/internal/metadata"

// ModelName is the logical name the user module registers with.
const ModelName = "users"

// Account statuses.
const (
	StatusInactive = 0 // new account, not activated yet
	StatusActive   = 1
	StatusLocked   = 2 // locked, but the account's resources stay available
)

// PublicFields is the projection feature callers may read.
var PublicFields = []string{"id", "username", "email", "status", "first_name", "last_name"}

// Model returns the users model descriptor. Password is internal-only: it
// never appears in a public projection. Username and email are unique and
// probed by the uniqueness validator before writes.
func Model() *metadata.Model {
	return &metadata.Model{
		Name:       ModelName,
		SoftDelete: true,
		Fields: []metadata.Field{
			{
				Name: "username", Type: metadata.TypeString,
				Required: true, Unique: true, MaxLen: 254,
				Check:    `value matches "^[a-zA-Z0-9._]+$" && len(value) >= 3`,
				CheckMsg: "Username must contain only letters, numbers, dots and underscores, and be at least 3 characters.",
			},
			{
				Name: "email", Type: metadata.TypeString,
				Required: true, Unique: true, MaxLen: 255,
				Check:    `value matches "^[^@ ]+@[^@ ]+\\.[^@ ]+$"`,
				CheckMsg: "The email address you entered is not a valid email address.",
			},
			{
				Name: "password", Type: metadata.TypeString,
				Required: true, Internal: true, MaxLen: 60,
			},
			{
				Name: "status", Type: metadata.TypeInt,
				Default:  StatusInactive,
				Check:    `value >= 0 && value <= 2`,
				CheckMsg: "The status value you entered is not valid.",
			},
			{
				Name: "first_name", Type: metadata.TypeString,
				Default: "No", MaxLen: 128,
				Check:    `value matches "^[A-Za-z '-]+$"`,
				CheckMsg: "First name must contain only letters, spaces, hyphens and apostrophes.",
			},
			{
				Name: "last_name", Type: metadata.TypeString,
				Default: "Name", MaxLen: 128,
				Check:    `value matches "^[A-Za-z '-]+$"`,
				CheckMsg: "Last name must contain only letters, spaces, hyphens and apostrophes.",
			},
		},
		Match: map[string]string{
			"username":   metadata.MatchContains,
			"email":      metadata.MatchContains,
			"first_name": metadata.MatchContains,
			"last_name":  metadata.MatchContains,
			"status":     metadata.MatchExact,
		},
		UniqueCheck: []string{"username", "email"},
	}
}

// Register adds the users model to the registry. Called once at startup.
func Register(reg *metadata.Registry) error {
	return reg.Register(Model())
}
