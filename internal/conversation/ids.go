package conversation

import (
	"fmt"
	"sync"
	"time"
)

// IDIssuer mints session IDs that are unique within the process. IDs keep
// the SessionIDLayout prefix; a second session minted in the same second
// gets a "_2" suffix, the third "_3", and so on.
type IDIssuer struct {
	mu     sync.Mutex
	issued map[string]struct{}
}

// NewIDIssuer returns an issuer with nothing issued.
func NewIDIssuer() *IDIssuer {
	return &IDIssuer{issued: make(map[string]struct{})}
}

// defaultIssuer is shared by every History not given its own issuer.
var defaultIssuer = NewIDIssuer()

// Issue returns an unused ID for the second containing t.
func (i *IDIssuer) Issue(t time.Time) string {
	i.mu.Lock()
	defer i.mu.Unlock()

	base := t.Format(SessionIDLayout)
	id := base
	for n := 2; ; n++ {
		if _, taken := i.issued[id]; !taken {
			break
		}
		id = fmt.Sprintf("%s_%d", base, n)
	}
	i.issued[id] = struct{}{}
	return id
}

// Reserve marks an ID that came from elsewhere, such as a loaded session,
// so it is never issued again.
func (i *IDIssuer) Reserve(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.issued[id] = struct{}{}
}
