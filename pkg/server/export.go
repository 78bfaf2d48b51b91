package server

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chatterd/chatterd/pkg/model"
	"github.com/chatterd/chatterd/pkg/store"
)

// userExport is the on-disk shape of one exported user. Salt and hash are
// hex so the file stays diffable and hand-editable.
type userExport struct {
	Username  string `yaml:"username"`
	Salt      string `yaml:"salt"`
	Hash      string `yaml:"hash"`
	CreatedAt string `yaml:"created_at,omitempty"`
}

type userExportFile struct {
	Users []userExport `yaml:"users"`
}

// ExportUsersYAML writes every user record to w as YAML, ordered by
// username. Passwords cannot be recovered from the export; only the salted
// hashes travel.
func ExportUsersYAML(st store.UserStore, w io.Writer) error {
	records, err := st.All()
	if err != nil {
		return fmt.Errorf("server: export users: %w", err)
	}

	out := userExportFile{Users: make([]userExport, 0, len(records))}
	for _, rec := range records {
		e := userExport{
			Username: rec.Username,
			Salt:     hex.EncodeToString(rec.Salt),
			Hash:     hex.EncodeToString(rec.Hash),
		}
		if !rec.CreatedAt.IsZero() {
			e.CreatedAt = rec.CreatedAt.UTC().Format(time.RFC3339)
		}
		out.Users = append(out.Users, e)
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("server: export users: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("server: export users: %w", err)
	}
	return nil
}

// ImportUsersYAML loads exported records into the store. Usernames already
// present are skipped, not overwritten; the count of imported records is
// returned.
func ImportUsersYAML(st store.UserStore, r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("server: import users: %w", err)
	}

	var in userExportFile
	if err := yaml.Unmarshal(data, &in); err != nil {
		return 0, fmt.Errorf("server: import users: %w", err)
	}

	imported := 0
	for _, e := range in.Users {
		salt, err := hex.DecodeString(e.Salt)
		if err != nil {
			return imported, fmt.Errorf("server: import user %q: bad salt: %w", e.Username, err)
		}
		hash, err := hex.DecodeString(e.Hash)
		if err != nil {
			return imported, fmt.Errorf("server: import user %q: bad hash: %w", e.Username, err)
		}

		rec := &model.UserRecord{Username: e.Username, Salt: salt, Hash: hash}
		if e.CreatedAt != "" {
			if ts, err := time.Parse(time.RFC3339, e.CreatedAt); err == nil {
				rec.CreatedAt = ts
			}
		}

		if err := st.Put(rec); err != nil {
			if errors.Is(err, store.ErrUserExists) {
				continue
			}
			return imported, fmt.Errorf("server: import user %q: %w", e.Username, err)
		}
		imported++
	}
	return imported, nil
}
