package eventbus

import "time"

// nowFn is a seam for deterministic event timestamps in tests.
var nowFn = time.Now

func nowUTC() time.Time {
	return nowFn().UTC()
}
