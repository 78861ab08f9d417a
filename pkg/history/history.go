// Package history caches the client's contacts and conversations on disk so
// the terminal client can show them before the server answers a list
// request. Data is kept in bbolt, one bucket per local login, with CBOR
// encoded records.
package history

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/ZentaChain/zentalk-chat/pkg/protocol"
	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"
)

var (
	messagesBucket = []byte("messages")
	contactsBucket = []byte("contacts")
	pendingBucket  = []byte("pending")
)

var ErrEmptyOwner = errors.New("history: empty owner login")

type messageRecord struct {
	ContactID uint64 `cbor:"1,keyasint"`
	SentByMe  bool   `cbor:"2,keyasint"`
	Text      string `cbor:"3,keyasint"`
}

type contactRecord struct {
	Name string `cbor:"1,keyasint"`
}

// Snapshot is everything cached for one login
type Snapshot struct {
	Contacts []protocol.Contact
	Messages []protocol.ChatMessage
}

// Store is the on-disk cache
type Store struct {
	db *bolt.DB
}

// Open opens or creates the cache file
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("history: failed to open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the cache file
func (s *Store) Close() error {
	return s.db.Close()
}

func idKey(id uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], id)
	return k[:]
}

// ownerBucket returns the named sub-bucket of owner. Write transactions
// create missing buckets; read transactions return nil.
func ownerBucket(tx *bolt.Tx, owner string, name []byte) (*bolt.Bucket, error) {
	if owner == "" {
		return nil, ErrEmptyOwner
	}

	if !tx.Writable() {
		root := tx.Bucket([]byte(owner))
		if root == nil {
			return nil, nil
		}
		return root.Bucket(name), nil
	}

	root, err := tx.CreateBucketIfNotExists([]byte(owner))
	if err != nil {
		return nil, err
	}
	return root.CreateBucketIfNotExists(name)
}

// SaveList stores a list reply. Confirmed messages replace their pending
// copies, so the pending bucket is emptied.
func (s *Store) SaveList(owner string, list protocol.ContactListReply) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		contacts, err := ownerBucket(tx, owner, contactsBucket)
		if err != nil {
			return err
		}
		for _, c := range list.Contacts {
			if err := putContact(contacts, c); err != nil {
				return err
			}
		}

		messages, err := ownerBucket(tx, owner, messagesBucket)
		if err != nil {
			return err
		}
		for _, m := range list.Messages {
			raw, err := cbor.Marshal(messageRecord{ContactID: m.ContactID, SentByMe: m.SentByMe, Text: m.Text})
			if err != nil {
				return err
			}
			if err := messages.Put(idKey(m.ID), raw); err != nil {
				return err
			}
		}

		root := tx.Bucket([]byte(owner))
		if root.Bucket(pendingBucket) != nil {
			if err := root.DeleteBucket(pendingBucket); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddContact stores one contact, typically after a found reply
func (s *Store) AddContact(owner string, c protocol.Contact) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		contacts, err := ownerBucket(tx, owner, contactsBucket)
		if err != nil {
			return err
		}
		return putContact(contacts, c)
	})
}

func putContact(b *bolt.Bucket, c protocol.Contact) error {
	raw, err := cbor.Marshal(contactRecord{Name: c.Name})
	if err != nil {
		return err
	}
	return b.Put(idKey(c.ID), raw)
}

// AddPending stores a message sent but not yet confirmed by a list reply
func (s *Store) AddPending(owner string, m protocol.ChatMessage) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		pending, err := ownerBucket(tx, owner, pendingBucket)
		if err != nil {
			return err
		}

		seq, err := pending.NextSequence()
		if err != nil {
			return err
		}

		raw, err := cbor.Marshal(messageRecord{ContactID: m.ContactID, SentByMe: m.SentByMe, Text: m.Text})
		if err != nil {
			return err
		}
		return pending.Put(idKey(seq), raw)
	})
}

// Load returns the cached contacts and messages in id order, pending
// messages last. Keys are big-endian ids so bucket order is id order.
func (s *Store) Load(owner string) (Snapshot, error) {
	var snap Snapshot

	err := s.db.View(func(tx *bolt.Tx) error {
		contacts, err := ownerBucket(tx, owner, contactsBucket)
		if err != nil {
			return err
		}
		if contacts != nil {
			err := contacts.ForEach(func(k, v []byte) error {
				var rec contactRecord
				if err := cbor.Unmarshal(v, &rec); err != nil {
					return fmt.Errorf("contact %x: %w", k, err)
				}
				snap.Contacts = append(snap.Contacts, protocol.Contact{ID: binary.BigEndian.Uint64(k), Name: rec.Name})
				return nil
			})
			if err != nil {
				return err
			}
		}

		for _, name := range [][]byte{messagesBucket, pendingBucket} {
			b, err := ownerBucket(tx, owner, name)
			if err != nil {
				return err
			}
			if b == nil {
				continue
			}

			pending := string(name) == string(pendingBucket)
			err = b.ForEach(func(k, v []byte) error {
				var rec messageRecord
				if err := cbor.Unmarshal(v, &rec); err != nil {
					return fmt.Errorf("message %x: %w", k, err)
				}
				m := protocol.ChatMessage{ContactID: rec.ContactID, SentByMe: rec.SentByMe, Text: rec.Text}
				if !pending {
					m.ID = binary.BigEndian.Uint64(k)
				}
				snap.Messages = append(snap.Messages, m)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	return snap, nil
}

// Timeline loads the cached messages into a fresh timeline
func (s *Store) Timeline(owner string) (*protocol.Timeline, error) {
	snap, err := s.Load(owner)
	if err != nil {
		return nil, err
	}

	tl := protocol.NewTimeline()
	tl.Merge(snap.Messages)
	return tl, nil
}
