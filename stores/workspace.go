package stores

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	stripedmutex "github.com/nmvalera/striped-mutex"
	"github.com/puzpuzpuz/xsync/v3"
	log "github.com/sirupsen/logrus"
	"gopkg.in/guregu/null.v4"

	"storesync/db"
	"storesync/writebehind"
)

var (
	ErrResourceNotFound = errors.New("resource not found")
	ErrInvalidResource  = errors.New("invalid resource")
)

type Resource struct {
	Id          string      `json:"id"`
	WorkspaceId string      `json:"workspace_id"`
	Path        string      `json:"path"`
	Kind        string      `json:"kind"`
	Checksum    null.String `json:"checksum"`
	Size        int64       `json:"size"`
	UpdatedAt   int64       `json:"updated_at"`
	// DeletedAt is set, in unix seconds, when the resource is removed
	DeletedAt null.Int `json:"deleted_at"`
}

func (r Resource) toRow() db.ResourceRow {
	return db.ResourceRow{
		Id:          r.Id,
		WorkspaceId: r.WorkspaceId,
		Path:        r.Path,
		Kind:        r.Kind,
		Checksum:    r.Checksum,
		Size:        r.Size,
		UpdatedAt:   r.UpdatedAt,
		DeletedAt:   r.DeletedAt,
	}
}

type ResourceRepository interface {
	LoadResources(ctx context.Context) ([]db.ResourceRow, error)
	UpsertResource(ctx context.Context, row db.ResourceRow) error
}

// WorkspaceStore tracks the resources attached to each workspace. Removal is
// a tombstone write so the buffer squashes it with earlier syncs of the same
// resource.
type WorkspaceStore struct {
	resetMu   sync.RWMutex
	resources *xsync.MapOf[string, Resource]
	locks     *stripedmutex.StripedMutex
	buffer    *writebehind.Buffer[string, Resource]
	repo      ResourceRepository
	now       func() time.Time
}

func NewWorkspaceStore(repo ResourceRepository, opts BufferOptions) *WorkspaceStore {
	s := &WorkspaceStore{
		resources: xsync.NewMapOf[string, Resource](),
		locks:     stripedmutex.New(64),
		repo:      repo,
		now:       time.Now,
	}
	s.buffer = writebehind.NewBuffer(bufferConfig("workspace_resource", opts, s.persist,
		func(r Resource) string { return r.Id }))
	return s
}

func (s *WorkspaceStore) persist(ctx context.Context, r Resource) error {
	return s.repo.UpsertResource(ctx, r.toRow())
}

func (s *WorkspaceStore) Buffer() *writebehind.Buffer[string, Resource] {
	return s.buffer
}

func (s *WorkspaceStore) Init(ctx context.Context) error {
	rows, err := s.repo.LoadResources(ctx)
	if err != nil {
		return fmt.Errorf("load resources: %w", err)
	}

	s.resources.Clear()
	for _, row := range rows {
		s.resources.Store(row.Id, Resource{
			Id:          row.Id,
			WorkspaceId: row.WorkspaceId,
			Path:        row.Path,
			Kind:        row.Kind,
			Checksum:    row.Checksum,
			Size:        row.Size,
			UpdatedAt:   row.UpdatedAt,
		})
	}
	log.Infof("Workspace store loaded %d resources", len(rows))
	return nil
}

// Reset awaits a flush of every buffered write, then clears the store
func (s *WorkspaceStore) Reset(ctx context.Context) error {
	return ResetAll(ctx, false, s)
}

func (s *WorkspaceStore) ForceReset() {
	s.resetMu.Lock()
	defer s.resetMu.Unlock()
	s.clear()
}

func (s *WorkspaceStore) resetGuard() *sync.RWMutex {
	return &s.resetMu
}

func (s *WorkspaceStore) flush(ctx context.Context) error {
	return s.buffer.FlushSync(ctx)
}

func (s *WorkspaceStore) clear() {
	s.buffer.Reset()
	s.resources.Clear()
}

// Sync records the current state of a resource. An empty id is assigned.
func (s *WorkspaceStore) Sync(r Resource) (Resource, error) {
	if r.WorkspaceId == "" || r.Path == "" {
		return Resource{}, fmt.Errorf("%w: workspace id and path are required", ErrInvalidResource)
	}
	if r.Id == "" {
		r.Id = uuid.NewString()
	}
	if r.Kind == "" {
		r.Kind = "file"
	}
	r.DeletedAt = null.Int{}

	s.resetMu.RLock()
	defer s.resetMu.RUnlock()
	s.locks.Lock(r.Id)
	defer s.locks.Unlock(r.Id)

	r.UpdatedAt = s.now().UnixMilli()
	s.resources.Store(r.Id, r)
	s.buffer.Enqueue(r)
	return r, nil
}

// Remove drops the resource and buffers a tombstone stamped with the removal
// time
func (s *WorkspaceStore) Remove(id string) error {
	s.resetMu.RLock()
	defer s.resetMu.RUnlock()
	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	r, ok := s.resources.LoadAndDelete(id)
	if !ok {
		return ErrResourceNotFound
	}
	now := s.now()
	r.DeletedAt = null.IntFrom(now.Unix())
	r.UpdatedAt = now.UnixMilli()
	s.buffer.Enqueue(r)
	return nil
}

// ByWorkspace returns the live resources of a workspace sorted by path
func (s *WorkspaceStore) ByWorkspace(workspaceId string) []Resource {
	result := []Resource{}
	s.resources.Range(func(_ string, r Resource) bool {
		if r.WorkspaceId == workspaceId {
			result = append(result, r)
		}
		return true
	})
	slices.SortFunc(result, func(a, b Resource) int {
		return strings.Compare(a.Path, b.Path)
	})
	return result
}
