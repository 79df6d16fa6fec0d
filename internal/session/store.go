package session

// Store is the injected ephemeral key/value capability shared by the sign-in
// flow. SetIfAbsent must be atomic with respect to concurrent callers; it is
// the primitive the exchange lock is built on.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	SetIfAbsent(key, value string) bool
	Delete(keys ...string)
}
