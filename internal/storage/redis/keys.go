package redis

import (
	"fmt"

	"github.com/mcoot/capitalduel/internal/model"
)

// Key prefix for all application data
const keyPrefix = "capitalduel"

// userKey returns the Redis key for a User
func userKey(username model.Username) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, username)
}

// usernameIndexKey returns the Redis key for the sorted set of all usernames.
// Every member has score 0 so lexicographic range queries work.
func usernameIndexKey() string {
	return fmt.Sprintf("%s:idx:usernames", keyPrefix)
}

// questionsKey returns the Redis key for a user's question bank
func questionsKey(username model.Username) string {
	return fmt.Sprintf("%s:questions:%s", keyPrefix, username)
}
