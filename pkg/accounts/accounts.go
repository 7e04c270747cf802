// Package accounts holds the fixed pool of demo shop test identities and the
// assignment of parallel workers to them.
package accounts

// Role is the shop-side account tier.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
	RolePremium Role = "premium"
	RoleVIP     Role = "vip"
)

// Account is one test identity. Username is its identity.
type Account struct {
	Username    string `json:"username" yaml:"username"`
	Password    string `json:"password" yaml:"password"`
	Role        Role   `json:"role" yaml:"role"`
	DisplayName string `json:"name" yaml:"name"`
}

// defaultPool order defines round-robin assignment and must not change
// between runs.
var defaultPool = []Account{
	{Username: "admin", Password: "AdminPass", Role: RoleAdmin, DisplayName: "Administrator"},
	{Username: "student", Password: "Password123", Role: RoleStudent, DisplayName: "Student User"},
	{Username: "testuser1", Password: "Password123", Role: RolePremium, DisplayName: "Premium User 1"},
	{Username: "testuser2", Password: "Password123", Role: RolePremium, DisplayName: "Premium User 2"},
	{Username: "testuser3", Password: "Password123", Role: RoleVIP, DisplayName: "VIP User 3"},
	{Username: "testuser4", Password: "Password123", Role: RoleVIP, DisplayName: "VIP User 4"},
}

// DefaultPool returns a copy of the built-in account pool.
func DefaultPool() []Account {
	pool := make([]Account, len(defaultPool))
	copy(pool, defaultPool)
	return pool
}

// Usernames lists the usernames of pool in order.
func Usernames(pool []Account) []string {
	names := make([]string, len(pool))
	for i, a := range pool {
		names[i] = a.Username
	}
	return names
}

// Find returns the account with the given username.
func Find(pool []Account, username string) (Account, bool) {
	for _, a := range pool {
		if a.Username == username {
			return a, true
		}
	}
	return Account{}, false
}
