package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"claimpoint/internal"
	"claimpoint/internal/logging"
	"claimpoint/internal/mapping"
)

// LastSavedKey is the metadata key holding the most recently saved template name.
const LastSavedKey = "templates.last_saved"

var ErrNotFound = errors.New("template not found")

// SavePolicy decides what happens when a template name is saved again.
type SavePolicy string

const (
	// AppendOnSave writes a new record every time; names may repeat.
	AppendOnSave SavePolicy = "append"
	// ReplaceOnSave removes earlier records with the same name first.
	ReplaceOnSave SavePolicy = "replace"
)

func ParseSavePolicy(value string) (SavePolicy, error) {
	switch SavePolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", AppendOnSave:
		return AppendOnSave, nil
	case ReplaceOnSave:
		return ReplaceOnSave, nil
	default:
		return "", fmt.Errorf("unknown template save policy %q", value)
	}
}

// Pointer is the durable client-side cell the last-saved name lives in.
type Pointer interface {
	SetMetadata(key, value string) error
	GetMetadata(key string) (*string, error)
}

type Template struct {
	ID        string
	Name      string
	Mappings  mapping.SheetMappings
	CreatedAt string
}

type Store struct {
	records internal.RecordStore
	pointer Pointer
	policy  SavePolicy
	logger  *zap.Logger

	saves singleflight.Group

	mu    sync.Mutex
	known []string
}

func NewStore(records internal.RecordStore, pointer Pointer, policy SavePolicy, logger *zap.Logger) (*Store, error) {
	if records == nil {
		return nil, errors.New("templates: record store is required")
	}
	if policy == "" {
		policy = AppendOnSave
	}
	if policy == ReplaceOnSave {
		if _, ok := records.(internal.RecordUpserter); !ok {
			return nil, fmt.Errorf("templates: %s policy needs a backend that can upsert", policy)
		}
	}
	return &Store{
		records: records,
		pointer: pointer,
		policy:  policy,
		logger:  logging.OrNop(logger).Named("templates"),
	}, nil
}

func (s *Store) Policy() SavePolicy {
	return s.policy
}

// Save persists mappings under name and returns the stored record's id. Concurrent saves of
// the same name and the same mappings share one backend write; different mappings each get
// their own. The write is not cancelled with ctx once started.
func (s *Store) Save(ctx context.Context, name string, mappings mapping.SheetMappings) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", internal.NewValidationError("template_name", "template name is required")
	}
	if mappings == nil {
		mappings = mapping.SheetMappings{}
	}
	blob, err := json.Marshal(mappings)
	if err != nil {
		return "", internal.NewValidationError("mappings", err.Error())
	}

	writeCtx := context.WithoutCancel(ctx)
	v, err, shared := s.saves.Do(saveKey(name, blob), func() (any, error) {
		return s.write(writeCtx, name, blob)
	})
	if shared {
		s.logger.Debug("template save shared with in-flight call", zap.String("name", name))
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func saveKey(name string, blob []byte) string {
	return name + "\x00" + string(blob)
}

func (s *Store) write(ctx context.Context, name string, blob []byte) (string, error) {
	record := internal.Record{
		"id":            uuid.NewString(),
		"template_name": name,
		"mappings":      json.RawMessage(blob),
	}

	var (
		stored internal.Record
		err    error
	)
	switch s.policy {
	case ReplaceOnSave:
		stored, err = s.records.(internal.RecordUpserter).Upsert(ctx, internal.TableClaimTemplates, "template_name", record)
	default:
		var rows []internal.Record
		rows, err = s.records.Insert(ctx, internal.TableClaimTemplates, []internal.Record{record})
		if err == nil && len(rows) > 0 {
			stored = rows[0]
		}
	}
	if err != nil {
		s.logger.Error("template save failed", zap.String("name", name), zap.Error(err))
		return "", internal.NewPersistenceError("save", internal.TableClaimTemplates, err)
	}

	id, _ := stored["id"].(string)
	if id == "" {
		id, _ = record["id"].(string)
	}

	if s.pointer != nil {
		if err := s.pointer.SetMetadata(LastSavedKey, name); err != nil {
			s.logger.Warn("last saved template pointer not updated", zap.String("name", name), zap.Error(err))
		}
	}

	s.mu.Lock()
	if s.policy == AppendOnSave || !slices.Contains(s.known, name) {
		s.known = append(s.known, name)
	}
	s.mu.Unlock()

	s.logger.Info("template saved", zap.String("name", name), zap.String("id", id), zap.String("policy", string(s.policy)))
	return id, nil
}

// List returns every persisted template name in storage order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.records.Fetch(ctx, internal.TableClaimTemplates)
	if err != nil {
		s.logger.Error("template list failed", zap.Error(err))
		return nil, internal.NewPersistenceError("list", internal.TableClaimTemplates, err)
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if name, ok := row["template_name"].(string); ok && name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		s.logger.Info("no templates saved")
	}

	s.mu.Lock()
	s.known = slices.Clone(names)
	s.mu.Unlock()
	return names, nil
}

// Get loads the most recently stored template called name.
func (s *Store) Get(ctx context.Context, name string) (Template, error) {
	rows, err := s.records.Fetch(ctx, internal.TableClaimTemplates)
	if err != nil {
		return Template{}, internal.NewPersistenceError("get", internal.TableClaimTemplates, err)
	}

	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if row["template_name"] != name {
			continue
		}
		mappings, err := mapping.ParseSheetMappings(row["mappings"])
		if err != nil {
			return Template{}, fmt.Errorf("template %q: %w", name, err)
		}
		t := Template{Name: name, Mappings: mappings}
		t.ID, _ = row["id"].(string)
		t.CreatedAt, _ = row["created_at"].(string)
		return t, nil
	}
	return Template{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// LastSaved reads the durable last-saved pointer.
func (s *Store) LastSaved() (string, bool) {
	if s.pointer == nil {
		return "", false
	}
	value, err := s.pointer.GetMetadata(LastSavedKey)
	if err != nil {
		s.logger.Warn("last saved template pointer unreadable", zap.Error(err))
		return "", false
	}
	if value == nil || *value == "" {
		return "", false
	}
	return *value, true
}

// Known is the in-session list of template names: the last List result plus later saves.
func (s *Store) Known() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.known)
}
