package mockhsm

import (
	"sync"

	"github.com/backkem/yubihsm/pkg/command"
	"github.com/backkem/yubihsm/pkg/crypto"
)

type objectKey struct {
	typ command.ObjectType
	id  uint16
}

type object struct {
	info command.ObjectInfo
	key  []byte
}

// objectStore holds the objects on the device.
type objectStore struct {
	objects map[objectKey]*object
	mu      sync.Mutex
}

func newObjectStore() *objectStore {
	return &objectStore{objects: make(map[objectKey]*object)}
}

func (s *objectStore) get(typ command.ObjectType, id uint16) (*object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[objectKey{typ, id}]
	return o, ok
}

// put stores o. An id of 0 allocates the lowest free id. ok is false if
// the id is taken or no id is free.
func (s *objectStore) put(o *object) (id uint16, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id = o.info.ID
	if id == 0 {
		for candidate := uint16(1); candidate <= command.MaxObjectID; candidate++ {
			if _, taken := s.objects[objectKey{o.info.Type, candidate}]; !taken {
				id = candidate
				break
			}
		}
		if id == 0 {
			return 0, false
		}
	} else if _, taken := s.objects[objectKey{o.info.Type, id}]; taken {
		return 0, false
	}

	o.info.ID = id
	s.objects[objectKey{o.info.Type, id}] = o
	return id, true
}

func (s *objectStore) delete(typ command.ObjectType, id uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[objectKey{typ, id}]
	if !ok {
		return false
	}
	crypto.Zeroize(o.key)
	delete(s.objects, objectKey{typ, id})
	return true
}
