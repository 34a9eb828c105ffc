package xmldb

import (
	"strings"

	"github.com/google/uuid"
	"github.com/maruel/ksid"
)

// maxUIDAttempts bounds the retries on a UID collision.
const maxUIDAttempts = 32

func newRecordUID() string {
	return strings.ToUpper(uuid.NewString())
}

func newContainerUID() string {
	return ksid.NewID().String()
}

// uniqueUID returns a UID absent from taken and adds it to taken.
func (e *Engine) uniqueUID(op string, taken map[string]struct{}) (string, error) {
	for range maxUIDAttempts {
		uid := e.newUID()
		if _, dup := taken[uid]; dup || uid == "" {
			continue
		}
		taken[uid] = struct{}{}
		return uid, nil
	}
	return "", errorf(op, ErrUIDExhausted, "no unique identifier after %d attempts", maxUIDAttempts)
}

// nextEID returns the smallest EID absent from used and adds it to used.
func nextEID(used map[uint32]struct{}) uint32 {
	var eid uint32
	for {
		if _, ok := used[eid]; !ok {
			used[eid] = struct{}{}
			return eid
		}
		eid++
	}
}
