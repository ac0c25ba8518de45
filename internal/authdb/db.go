package authdb

import (
	"fmt"
)

// DB is the in-memory account database loaded from passwd/group/shadow
// text, indexed by username for Login's lookups.
type DB struct {
	passwd map[string]PasswdEntry
	group  map[string]GroupEntry
	shadow map[string]ShadowEntry
}

// Load parses passwd, group, and shadow file contents into a DB.
func Load(passwdData, groupData, shadowData string) (*DB, error) {
	pw, err := ParsePasswd(passwdData)
	if err != nil {
		return nil, err
	}
	gr, err := ParseGroup(groupData)
	if err != nil {
		return nil, err
	}
	sh, err := ParseShadow(shadowData)
	if err != nil {
		return nil, err
	}

	db := &DB{
		passwd: make(map[string]PasswdEntry, len(pw)),
		group:  make(map[string]GroupEntry, len(gr)),
		shadow: make(map[string]ShadowEntry, len(sh)),
	}
	for _, e := range pw {
		db.passwd[e.Name] = e
	}
	for _, e := range gr {
		db.group[e.Name] = e
	}
	for _, e := range sh {
		db.shadow[e.Name] = e
	}
	return db, nil
}

// User looks up a passwd entry by name.
func (db *DB) User(name string) (PasswdEntry, bool) {
	e, ok := db.passwd[name]
	return e, ok
}

// Group looks up a group entry by name.
func (db *DB) Group(name string) (GroupEntry, bool) {
	e, ok := db.group[name]
	return e, ok
}

// Login verifies username/password against the loaded shadow database,
// per spec.md §6: a 100,000-round SHA-256 hash of salt+password must
// match the stored hash. An unknown user or a wrong password are both
// reported as the same generic failure, so a login attempt can't be
// used to enumerate valid usernames.
func (db *DB) Login(username, password string) error {
	if _, ok := db.passwd[username]; !ok {
		return fmt.Errorf("authdb: authentication failed")
	}
	sh, ok := db.shadow[username]
	if !ok {
		return fmt.Errorf("authdb: authentication failed")
	}
	if HashPassword(password, sh.Salt) != sh.Hash {
		return fmt.Errorf("authdb: authentication failed")
	}
	return nil
}
