package model

import "time"

// Roles a user can hold. RoleUser is the base role every signup gets unless
// another one is requested.
const (
    RoleUser      = "user"
    RoleGuide     = "guide"
    RoleLeadGuide = "lead-guide"
    RoleAdmin     = "admin"
)

// Roles lists every valid role, in ascending privilege.
var Roles = []string{RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin}

// ValidRole reports whether r is one of Roles.
func ValidRole(r string) bool {
    for _, v := range Roles {
        if v == r {
            return true
        }
    }
    return false
}

// User is a row of the `users` table. The token columns hold keyed hashes of
// the values sent by email, never the raw tokens, and are excluded from JSON.
//
// Fields:
//  Active            – false once the user deleted their account; inactive
//                      users are invisible to every repository read.
//  PasswordChangedAt – tokens issued before this instant are stale.
type User struct {
    ID                       uint64     `json:"id"`                // users.id
    Name                     string     `json:"name"`              // users.name
    Email                    string     `json:"email"`             // users.email (lower-cased)
    Photo                    string     `json:"photo"`             // users.photo
    Role                     string     `json:"role"`              // users.role
    PasswordHash             string     `json:"-"`                 // users.password_hash
    PasswordChangedAt        *time.Time `json:"-"`                 // users.password_changed_at (nullable)
    PasswordResetToken       *string    `json:"-"`                 // users.password_reset_token (nullable)
    PasswordResetExpires     *time.Time `json:"-"`                 // users.password_reset_expires (nullable)
    EmailVerificationToken   *string    `json:"-"`                 // users.email_verification_token (nullable)
    EmailVerificationExpires *time.Time `json:"-"`                 // users.email_verification_expires (nullable)
    Active                   bool       `json:"-"`                 // users.active
    EmailVerified            bool       `json:"emailVerified"`     // users.email_verified
    CreatedAt                time.Time  `json:"createdAt"`         // users.created_at
}
