// Package fs implementa core.Store sobre archivos JSON en disco.
// Layout:
//
//	<root>/keys/<keyring>/<kid>.json
//	<root>/current_token.json
//	<root>/rotation_timer.json
//
// Garantías:
//   - Escritura atómica: write tmp → fsync → rename
//   - Expiración lazy: los records vencidos se filtran al listar y se
//     purgan oportunísticamente
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dropDatabas3/keysmith/internal/store/core"
	"github.com/dropDatabas3/keysmith/internal/util/atomicwrite"
)

type Store struct {
	root string
}

func New(root string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, "keys"), 0755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &Store{root: root}, nil
}

// keyringDir escapa el keyring para que cualquier string configurado sea un
// nombre de directorio válido.
func (s *Store) keyringDir(keyring string) string {
	return filepath.Join(s.root, "keys", url.PathEscape(keyring))
}

func (s *Store) PutKey(ctx context.Context, rec core.KeyRecord, ttl time.Duration) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal key record: %w", err)
	}
	path := filepath.Join(s.keyringDir(rec.Keyring), rec.KID+".json")
	return atomicwrite.AtomicWriteFile(path, b, 0600)
}

func (s *Store) ListKeys(ctx context.Context, keyring, pageToken string) ([]core.KeyRecord, string, error) {
	entries, err := os.ReadDir(s.keyringDir(keyring))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("read keyring dir: %w", err)
	}

	now := time.Now()
	var live []core.KeyRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.keyringDir(keyring), e.Name())
		b, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var rec core.KeyRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			continue
		}
		if rec.Expired(now) {
			// purge oportunista; el contrato solo exige no devolverlo
			_ = os.Remove(path)
			continue
		}
		live = append(live, rec)
	}
	sort.Slice(live, func(i, j int) bool { return live[i].KID < live[j].KID })

	var page []core.KeyRecord
	for _, rec := range live {
		if pageToken != "" && rec.KID <= pageToken {
			continue
		}
		page = append(page, rec)
		if len(page) == core.PageSize {
			break
		}
	}

	next := ""
	if len(page) == core.PageSize && page[len(page)-1].KID < live[len(live)-1].KID {
		next = page[len(page)-1].KID
	}
	return page, next, nil
}

func (s *Store) LoadCurrentToken(ctx context.Context) (*core.TokenRecord, error) {
	b, err := os.ReadFile(filepath.Join(s.root, "current_token.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	var rec core.TokenRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal current token: %w", err)
	}
	return &rec, nil
}

func (s *Store) SaveCurrentToken(ctx context.Context, rec core.TokenRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal current token: %w", err)
	}
	return atomicwrite.AtomicWriteFile(filepath.Join(s.root, "current_token.json"), b, 0600)
}

type timerFile struct {
	Handle string `json:"handle"`
}

func (s *Store) LoadTimerHandle(ctx context.Context) (string, error) {
	b, err := os.ReadFile(filepath.Join(s.root, "rotation_timer.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", core.ErrNotFound
		}
		return "", err
	}
	var tf timerFile
	if err := json.Unmarshal(b, &tf); err != nil || tf.Handle == "" {
		return "", core.ErrNotFound
	}
	return tf.Handle, nil
}

func (s *Store) SaveTimerHandle(ctx context.Context, handle string) error {
	b, err := json.Marshal(timerFile{Handle: handle})
	if err != nil {
		return err
	}
	return atomicwrite.AtomicWriteFile(filepath.Join(s.root, "rotation_timer.json"), b, 0600)
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := os.Stat(s.root)
	return err
}

func (s *Store) Close() error { return nil }
