package store

import "time"

// nowFunc is swapped out in tests.
var nowFunc = time.Now
