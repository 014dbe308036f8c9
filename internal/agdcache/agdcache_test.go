package agdcache_test

// Constants used in tests.
const (
	key = "key"
	val = 123

	nonExistingKey = "nonExistingKey"
)
