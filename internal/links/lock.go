package links

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const lockStripes = 256

// stripedLock serializes work on the same link id. Different ids may share a
// stripe, which only costs some parallelism.
type stripedLock struct {
	stripes [lockStripes]sync.Mutex
}

func (l *stripedLock) Lock(id string) (unlock func()) {
	m := &l.stripes[xxhash.Sum64String(id)%lockStripes]
	m.Lock()
	return m.Unlock
}
