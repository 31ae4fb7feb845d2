package region

import (
	"container/list"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/multierr"
)

// DefaultCacheSize bounds the number of simultaneously open regions.
const DefaultCacheSize = 256

// ErrProviderClosed is returned by calls on a closed Provider.
var ErrProviderClosed = errors.New("region: provider is closed")

// Factory opens the regions of one directory.
type Factory interface {
	// Open returns the region for key, creating it if the factory writes.
	Open(key RegionKey) (Region, error)
	// Exists reports whether key is backed by anything on disk.
	Exists(key RegionKey) bool
	// List returns every region key present on disk, sorted.
	List() ([]RegionKey, error)
}

// FileFactory opens region files in Dir.
type FileFactory struct {
	Dir        string
	Layout     Layout
	SectorSize int
	// Write selects WriteRegion instead of ReadRegion.
	Write bool
}

// Open implements Factory.
func (f FileFactory) Open(key RegionKey) (Region, error) {
	path := filepath.Join(f.Dir, f.Layout.FileName(key))
	if f.Write {
		return NewWriteRegion(path, f.Layout.KeyCount(), f.SectorSize), nil
	}
	return OpenReadRegion(path, f.Layout.KeyCount(), f.SectorSize)
}

// Exists implements Factory.
func (f FileFactory) Exists(key RegionKey) bool {
	st, err := os.Stat(filepath.Join(f.Dir, f.Layout.FileName(key)))
	return err == nil && !st.IsDir()
}

// List implements Factory.
func (f FileFactory) List() ([]RegionKey, error) {
	return listKeys(f.Dir, func(de fs.DirEntry) (RegionKey, bool) {
		if de.IsDir() {
			return RegionKey{}, false
		}
		return f.Layout.ParseFileName(de.Name())
	})
}

// ExtFactory opens the ".ext" overflow directories in Dir.
type ExtFactory struct {
	Dir    string
	Layout Layout
}

// Open implements Factory.
func (f ExtFactory) Open(key RegionKey) (Region, error) {
	return NewExtRegion(filepath.Join(f.Dir, f.Layout.FileName(key)+extSuffix)), nil
}

// Exists implements Factory.
func (f ExtFactory) Exists(key RegionKey) bool {
	st, err := os.Stat(filepath.Join(f.Dir, f.Layout.FileName(key)+extSuffix))
	return err == nil && st.IsDir()
}

// List implements Factory.
func (f ExtFactory) List() ([]RegionKey, error) {
	return listKeys(f.Dir, func(de fs.DirEntry) (RegionKey, bool) {
		if !de.IsDir() || !strings.HasSuffix(de.Name(), extSuffix) {
			return RegionKey{}, false
		}
		return f.Layout.ParseFileName(strings.TrimSuffix(de.Name(), extSuffix))
	})
}

func listKeys(dir string, parse func(fs.DirEntry) (RegionKey, bool)) ([]RegionKey, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing regions in %s: %w", dir, err)
	}
	var keys []RegionKey
	for _, de := range entries {
		if k, ok := parse(de); ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	return keys, nil
}

// cachedRegion is one open region plus the lock that serializes access to it.
type cachedRegion struct {
	key    RegionKey
	lock   sync.RWMutex
	region Region
	refs   int // guarded by Provider.mu
}

// Provider caches open regions in LRU order and mediates access to each one
// with its own read/write lock: many concurrent readers or one writer.
//
// Regions in use are never evicted; while every cached region is in use the
// cache may temporarily exceed its bound.
type Provider struct {
	factory  Factory
	capacity int

	mu      sync.Mutex
	entries map[RegionKey]*list.Element
	lru     *list.List
	closed  bool
	errs    error // close errors from evictions
}

// NewProvider creates a Provider over factory holding at most capacity idle
// regions open.
//
// Precondition: factory must be non-nil.
// Postcondition: capacity <= 0 is replaced by DefaultCacheSize.
func NewProvider(factory Factory, capacity int) *Provider {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Provider{
		factory:  factory,
		capacity: capacity,
		entries:  make(map[RegionKey]*list.Element),
		lru:      list.New(),
	}
}

func (p *Provider) acquire(key RegionKey, create bool) (*cachedRegion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrProviderClosed
	}
	if elem, ok := p.entries[key]; ok {
		p.lru.MoveToFront(elem)
		cr := elem.Value.(*cachedRegion)
		cr.refs++
		return cr, nil
	}
	if !create && !p.factory.Exists(key) {
		return nil, nil
	}
	r, err := p.factory.Open(key)
	if err != nil {
		return nil, err
	}
	cr := &cachedRegion{key: key, region: r, refs: 1}
	p.entries[key] = p.lru.PushFront(cr)
	p.evictLocked()
	return cr, nil
}

func (p *Provider) release(cr *cachedRegion) {
	p.mu.Lock()
	cr.refs--
	p.evictLocked()
	p.mu.Unlock()
}

// evictLocked closes idle regions from the back of the LRU list until the
// cache fits its bound.
func (p *Provider) evictLocked() {
	for elem := p.lru.Back(); elem != nil && p.lru.Len() > p.capacity; {
		prev := elem.Prev()
		cr := elem.Value.(*cachedRegion)
		if cr.refs == 0 {
			p.lru.Remove(elem)
			delete(p.entries, cr.key)
			cr.lock.Lock()
			if err := cr.region.Close(); err != nil {
				p.errs = multierr.Append(p.errs, fmt.Errorf("evicting region %v: %w", cr.key, err))
			}
			cr.lock.Unlock()
		}
		elem = prev
	}
}

// GetOrCreate runs fn with exclusive access to the region for key, creating
// the region if needed.
func (p *Provider) GetOrCreate(key RegionKey, fn func(Region) error) error {
	cr, err := p.acquire(key, true)
	if err != nil {
		return err
	}
	defer p.release(cr)
	cr.lock.Lock()
	defer cr.lock.Unlock()
	return fn(cr.region)
}

// GetExisting runs fn with shared access to the region for key if it exists.
// It never creates a region.
//
// Postcondition: found is false and fn is not called when nothing backs key.
func (p *Provider) GetExisting(key RegionKey, fn func(Region) error) (found bool, err error) {
	cr, err := p.acquire(key, false)
	if err != nil || cr == nil {
		return false, err
	}
	defer p.release(cr)
	cr.lock.RLock()
	defer cr.lock.RUnlock()
	return true, fn(cr.region)
}

// UpdateExisting runs fn with exclusive access to the region for key if it
// exists. Like GetExisting it never creates a region.
func (p *Provider) UpdateExisting(key RegionKey, fn func(Region) error) (found bool, err error) {
	cr, err := p.acquire(key, false)
	if err != nil || cr == nil {
		return false, err
	}
	defer p.release(cr)
	cr.lock.Lock()
	defer cr.lock.Unlock()
	return true, fn(cr.region)
}

// ForEachRegion calls fn for every region key present on disk.
func (p *Provider) ForEachRegion(fn func(RegionKey) error) error {
	keys, err := p.factory.List()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := fn(k); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every open region. A failure on one region does not stop the
// others from closing; all failures are returned together.
//
// Postcondition: subsequent calls return ErrProviderClosed.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	errs := p.errs
	for elem := p.lru.Front(); elem != nil; elem = elem.Next() {
		cr := elem.Value.(*cachedRegion)
		cr.lock.Lock()
		if err := cr.region.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("closing region %v: %w", cr.key, err))
		}
		cr.lock.Unlock()
	}
	p.entries = nil
	p.lru.Init()
	return errs
}
