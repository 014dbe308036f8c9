package agdservice_test

import "time"

// testTimeout is the timeout for common test operations.
const testTimeout = 1 * time.Second
