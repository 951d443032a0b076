// Package storetest provides an in-memory core.Store for pipeline tests.
//
// The fake enforces the same constraints as the PostgreSQL schema (unique
// id_number and phone, crew foreign key, unique certificate number per crew)
// and models nested transactions as savepoints, so commit semantics can be
// exercised without a database.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JonMunkholm/CrewImport/internal/core"
	"github.com/JonMunkholm/CrewImport/internal/schema"
	"github.com/JonMunkholm/CrewImport/internal/validate"
)

// ErrTxDone is returned when a finished transaction is used again.
var ErrTxDone = errors.New("storetest: transaction already finished")

type crewRecord struct {
	id       int64
	idNumber string
	phone    string
}

// Store is an in-memory core.Store. The zero value is not usable; call New.
type Store struct {
	mu     sync.Mutex
	crew   []crewRecord
	certs  map[core.CertificateKey]bool
	nextID int64

	acquired int
	released int
	lookups  int

	// AcquireErr, when set, is returned by Acquire.
	AcquireErr error
	// LookupErr, when set, is returned by every lookup.
	LookupErr error
	// CommitErr, when set, is returned by the outermost Commit.
	CommitErr error
	// FailInsert, when set, is consulted before each insert.
	FailInsert func(entity schema.EntityType, row schema.Row) error
}

var _ core.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{certs: make(map[core.CertificateKey]bool), nextID: 1}
}

// AddCrew seeds a crew member and returns its id.
func (s *Store) AddCrew(idNumber, phone string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addCrewLocked(idNumber, phone)
}

func (s *Store) addCrewLocked(idNumber, phone string) int64 {
	id := s.nextID
	s.nextID++
	s.crew = append(s.crew, crewRecord{id: id, idNumber: idNumber, phone: phone})
	return id
}

// AddCertificate seeds a certificate.
func (s *Store) AddCertificate(number string, crewID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.certs[core.CertificateKey{Number: number, CrewID: crewID}] = true
}

// CrewCount returns the number of committed crew rows.
func (s *Store) CrewCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.crew)
}

// CertificateCount returns the number of committed certificate rows.
func (s *Store) CertificateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.certs)
}

// OpenConns returns connections acquired and not yet released.
func (s *Store) OpenConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired - s.released
}

// Acquisitions returns the total number of Acquire calls that succeeded.
func (s *Store) Acquisitions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired
}

// LookupCalls returns the number of lookup round trips served.
func (s *Store) LookupCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Acquire(ctx context.Context) (core.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AcquireErr != nil {
		return nil, s.AcquireErr
	}
	s.acquired++
	return &conn{s: s}, nil
}

type conn struct {
	s        *Store
	released bool
}

func (c *conn) Release() {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if c.released {
		panic("storetest: connection released twice")
	}
	c.released = true
	c.s.released++
}

func (c *conn) lookup() error {
	c.s.lookups++
	return c.s.LookupErr
}

func (c *conn) ExistingIDNumbers(ctx context.Context, idNumbers []string) (map[string]bool, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if err := c.lookup(); err != nil {
		return nil, err
	}
	want := toSet(idNumbers)
	out := make(map[string]bool)
	for _, r := range c.s.crew {
		if want[r.idNumber] {
			out[r.idNumber] = true
		}
	}
	return out, nil
}

func (c *conn) ExistingPhones(ctx context.Context, phones []string) (map[string]bool, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if err := c.lookup(); err != nil {
		return nil, err
	}
	want := toSet(phones)
	out := make(map[string]bool)
	for _, r := range c.s.crew {
		if want[r.phone] {
			out[r.phone] = true
		}
	}
	return out, nil
}

func (c *conn) ExistingCrewIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if err := c.lookup(); err != nil {
		return nil, err
	}
	want := toSet(ids)
	out := make(map[int64]bool)
	for _, r := range c.s.crew {
		if want[r.id] {
			out[r.id] = true
		}
	}
	return out, nil
}

func (c *conn) ExistingCertificates(ctx context.Context, keys []core.CertificateKey) (map[core.CertificateKey]bool, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if err := c.lookup(); err != nil {
		return nil, err
	}
	out := make(map[core.CertificateKey]bool)
	for _, k := range keys {
		if c.s.certs[k] {
			out[k] = true
		}
	}
	return out, nil
}

func (c *conn) Begin(ctx context.Context) (core.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &tx{s: c.s}, nil
}

type op struct {
	entity schema.EntityType
	row    schema.Row
}

// tx buffers inserts. Committing a nested tx moves its inserts to the parent;
// committing the outermost tx applies them to the store.
type tx struct {
	s      *Store
	parent *tx
	ops    []op
	done   bool
}

func (t *tx) Begin(ctx context.Context) (core.Tx, error) {
	if t.done {
		return nil, ErrTxDone
	}
	return &tx{s: t.s, parent: t}, nil
}

func (t *tx) Insert(ctx context.Context, entity schema.EntityType, row schema.Row) error {
	if t.done {
		return ErrTxDone
	}
	if t.s.FailInsert != nil {
		if err := t.s.FailInsert(entity, row); err != nil {
			return err
		}
	}

	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.checkLocked(t.pending(), op{entity: entity, row: row}); err != nil {
		return err
	}
	t.ops = append(t.ops, op{entity: entity, row: row})
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if t.parent != nil {
		t.parent.ops = append(t.parent.ops, t.ops...)
		return nil
	}

	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.s.CommitErr != nil {
		return t.s.CommitErr
	}
	for _, o := range t.ops {
		t.s.applyLocked(o)
	}
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.ops = nil
	return nil
}

// pending returns the inserts visible to t: its own and every ancestor's.
func (t *tx) pending() []op {
	var out []op
	for cur := t; cur != nil; cur = cur.parent {
		out = append(out, cur.ops...)
	}
	return out
}

func (s *Store) checkLocked(pending []op, next op) error {
	switch next.entity {
	case schema.Crew:
		idNumber, phone := next.row.Text("id_number"), next.row.Text("phone")
		for _, r := range s.crew {
			if r.idNumber == idNumber {
				return uniqueViolation("crew_info_id_number_key")
			}
			if r.phone == phone {
				return uniqueViolation("crew_info_phone_key")
			}
		}
		for _, p := range pending {
			if p.entity != schema.Crew {
				continue
			}
			if p.row.Text("id_number") == idNumber {
				return uniqueViolation("crew_info_id_number_key")
			}
			if p.row.Text("phone") == phone {
				return uniqueViolation("crew_info_phone_key")
			}
		}
		return nil

	case schema.Certificate:
		crewID, ok := validate.ParseID(next.row.Text("crew_id"))
		if !ok || !s.crewExistsLocked(crewID) {
			return errors.New(`insert or update on table "certificates" violates foreign key constraint "certificates_crew_id_fkey"`)
		}
		key := core.CertificateKey{Number: next.row.Text("certificate_number"), CrewID: crewID}
		if s.certs[key] {
			return uniqueViolation("certificates_certificate_number_crew_id_key")
		}
		for _, p := range pending {
			if p.entity != schema.Certificate {
				continue
			}
			id, _ := validate.ParseID(p.row.Text("crew_id"))
			if id == crewID && p.row.Text("certificate_number") == key.Number {
				return uniqueViolation("certificates_certificate_number_crew_id_key")
			}
		}
		return nil
	}
	return fmt.Errorf("storetest: unknown entity %q", next.entity)
}

func (s *Store) crewExistsLocked(id int64) bool {
	for _, r := range s.crew {
		if r.id == id {
			return true
		}
	}
	return false
}

func (s *Store) applyLocked(o op) {
	switch o.entity {
	case schema.Crew:
		s.addCrewLocked(o.row.Text("id_number"), o.row.Text("phone"))
	case schema.Certificate:
		id, _ := validate.ParseID(o.row.Text("crew_id"))
		s.certs[core.CertificateKey{Number: o.row.Text("certificate_number"), CrewID: id}] = true
	}
}

func uniqueViolation(constraint string) error {
	return fmt.Errorf("duplicate key value violates unique constraint %q", constraint)
}

func toSet[T comparable](vs []T) map[T]bool {
	out := make(map[T]bool, len(vs))
	for _, v := range vs {
		out[v] = true
	}
	return out
}
