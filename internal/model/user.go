package model

import "time"

// User is a registered account. Username is the unique key; Token is the
// most recently issued credential and the only one that verifies.
type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Token        string    `json:"-"`
	SavedSets    []string  `json:"savedSets"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile is the public view of a user.
type Profile struct {
	Username  string   `json:"username"`
	SavedSets []string `json:"savedSets"`
}

// Profile maps the stored record to its public form. Credentials never leave
// the server through this type.
func (u *User) Profile() Profile {
	saved := u.SavedSets
	if saved == nil {
		saved = []string{}
	}
	return Profile{Username: u.Username, SavedSets: saved}
}

// SaveReason classifies the outcome of saving a set to a user's list.
type SaveReason string

const (
	SaveOK          SaveReason = "ok"
	SaveSetMissing  SaveReason = "set_missing"
	SaveUserMissing SaveReason = "user_missing"
	SaveFailed      SaveReason = "failed"
)

// SaveResult is the structured outcome of adding a set to a saved list.
type SaveResult struct {
	Success bool
	Reason  SaveReason
	Message string
	User    *User
	Err     error // underlying failure for SaveFailed, for logging only
}
