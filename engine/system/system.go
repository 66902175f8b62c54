// Package system is the top-level facade tying the codec, handle registry,
// geometry upload, skeleton evaluator, animator, and frame publisher
// together into the engine's consumed runtime API: acquire/release a model
// instance, drive the per-frame update, and publish bone palettes for the
// renderer to draw.
package system

import (
	"fmt"
	"log"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/kohi3d/kohi/common"
	"github.com/kohi3d/kohi/engine/animator"
	"github.com/kohi3d/kohi/engine/codec"
	"github.com/kohi3d/kohi/engine/geometry"
	"github.com/kohi3d/kohi/engine/handle"
	"github.com/kohi3d/kohi/engine/kerr"
	"github.com/kohi3d/kohi/engine/pool"
	"github.com/kohi3d/kohi/engine/profiler"
	"github.com/kohi3d/kohi/engine/publisher"
	"github.com/kohi3d/kohi/engine/renderer"
	"github.com/kohi3d/kohi/engine/skeleton"
)

// paletteElementSize is the byte size of one instance's bone palette:
// skeleton.PaletteCap 4x4 matrices of float32.
const paletteElementSize = uint64(skeleton.PaletteCap) * 16 * 4

// animationsGlobalBufferName is the SSBO the Frame Publisher writes, named
// per the runtime API surface in spec §6.
const animationsGlobalBufferName = "Kohi.StorageBuffer.AnimationsGlobal"

// Loader fetches a model asset's raw serialized bytes, given its name and
// package. This is the core's sole hook into the collaborator asset system
// (filesystem/VFS/importers are out of scope); the caller supplies
// whatever lookup makes sense for its application.
type Loader func(assetName, packageName string) ([]byte, error)

// OnLoaded is invoked exactly once per queued acquire, on the main thread,
// once its base's load either completes or fails. On failure both ids are
// handle.Invalid.
type OnLoaded func(baseID, instanceID uint16)

// GeometryDescriptor is the renderer-facing view of one submesh: its
// uploaded buffer ranges plus the bounding/material metadata a draw call
// needs, without exposing the raw CPU-side vertex/index bytes.
type GeometryDescriptor struct {
	Name         string
	MaterialName string
	MeshType     codec.MeshType
	VertexCount  uint32
	IndexCount   uint32
	Center       [3]float32
	ExtentsMin   [3]float32
	ExtentsMax   [3]float32
	Upload       geometry.Upload
}

// MaterialHandle is a placeholder identity for a per-submesh material
// instance; the material system itself is out of the core's scope (spec
// §1), so this is just the slot the application binds its own material
// state to.
type MaterialHandle uint32

// InvalidMaterial is the zero-value sentinel for an unset material handle.
const InvalidMaterial MaterialHandle = 0

type base struct {
	id          uint16
	assetName   string
	packageName string

	model      *codec.Model
	skel       *skeleton.Skeleton
	geometries []GeometryDescriptor
	generation uint32

	instances map[uint16]*instance
	queue     []queueEntry
}

type instance struct {
	instanceID uint16
	materials  []MaterialHandle

	anim         *animator.Animator
	paletteIndex uint32
	palette      skeleton.Palette
	animated     bool
}

type queueEntry struct {
	instanceID uint16
	onLoaded   OnLoaded
}

type loadResult struct {
	baseID uint16
	model  *codec.Model
	uploads []geometry.Result
	err    error
}

// System is the engine's top-level runtime facade: one per application,
// owning the handle registries, the global vertex/index/palette buffers,
// and the asynchronous asset-load pipeline.
type System struct {
	registry *handle.Registry
	bases    map[uint16]*base

	provider     renderer.Provider
	vertexBuffer renderer.Handle
	indexBuffer  renderer.Handle
	uploader     *geometry.Uploader

	palettePool *pool.Allocator
	pub         *publisher.Publisher

	loader      Loader
	workers     worker.DynamicWorkerPool
	loadResults chan loadResult

	globalTimeScale float32
	profiler        *profiler.Profiler
}

// Option configures optional System construction parameters.
type Option func(*systemConfig)

type systemConfig struct {
	globalTimeScale  float32
	workerCount      int
	queueCapacity    int
	workerTimeout    time.Duration
	vertexBufferSize uint64
	indexBufferSize  uint64
	profiling        bool
}

// WithGlobalTimeScale sets the system-wide animation playback speed
// multiplier applied on top of each instance's own time scale. Default 1.0.
func WithGlobalTimeScale(v float32) Option {
	return func(c *systemConfig) { c.globalTimeScale = v }
}

// WithWorkerCount overrides the number of goroutines in the asset-load
// worker pool. Defaults to max(runtime.NumCPU()-1, 1), matching the
// teacher's compute-pool sizing convention.
func WithWorkerCount(n int) Option {
	return func(c *systemConfig) { c.workerCount = n }
}

// WithQueueCapacity overrides the worker pool's task queue depth and the
// load-result channel's buffer size. Default 256.
func WithQueueCapacity(n int) Option {
	return func(c *systemConfig) { c.queueCapacity = n }
}

// WithVertexIndexBufferSizes overrides the global vertex/index
// renderbuffer capacities, in bytes. Defaults are 16 MiB each.
func WithVertexIndexBufferSizes(vertexSize, indexSize uint64) Option {
	return func(c *systemConfig) { c.vertexBufferSize = vertexSize; c.indexBufferSize = indexSize }
}

// WithProfiling enables once-per-second FPS/heap/instance-count logging
// from Update, via the profiler package.
func WithProfiling() Option {
	return func(c *systemConfig) { c.profiling = true }
}

// New constructs a System: global vertex/index/palette renderbuffers, the
// Frame Publisher, and the asynchronous asset-load worker pool.
//
// Parameters:
//   - provider: the renderer surface to allocate all global buffers on
//   - loader: fetches an asset's raw bytes by (asset_name, package_name)
//   - maxInstanceCount: the bone-palette pool's fixed capacity
//   - opts: optional construction overrides
//
// Returns:
//   - *System: the newly constructed runtime
//   - error: non-nil if any renderbuffer failed to create
func New(provider renderer.Provider, loader Loader, maxInstanceCount uint32, opts ...Option) (*System, error) {
	cfg := systemConfig{
		globalTimeScale:  1.0,
		workerCount:      max(runtime.NumCPU()-1, 1),
		queueCapacity:    256,
		workerTimeout:    1 * time.Second,
		vertexBufferSize: 16 << 20,
		indexBufferSize:  16 << 20,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	vb, err := provider.CreateRenderbuffer("Kohi.RenderBuffer.VertexGlobal", renderer.BufferTypeVertex, cfg.vertexBufferSize, 0)
	if err != nil {
		return nil, kerr.Wrap(kerr.ErrBackendAllocationFailed, fmt.Sprintf("system: create vertex buffer: %v", err))
	}
	ib, err := provider.CreateRenderbuffer("Kohi.RenderBuffer.IndexGlobal", renderer.BufferTypeIndex, cfg.indexBufferSize, 0)
	if err != nil {
		return nil, kerr.Wrap(kerr.ErrBackendAllocationFailed, fmt.Sprintf("system: create index buffer: %v", err))
	}

	palettePool := pool.New(paletteElementSize, maxInstanceCount)
	pub, err := publisher.New(provider, animationsGlobalBufferName, paletteElementSize, maxInstanceCount)
	if err != nil {
		return nil, err
	}

	s := &System{
		registry:        handle.New(),
		bases:           make(map[uint16]*base),
		provider:        provider,
		vertexBuffer:    vb,
		indexBuffer:     ib,
		uploader:        geometry.NewUploader(provider, vb, ib),
		palettePool:     palettePool,
		pub:             pub,
		loader:          loader,
		workers:         worker.NewDynamicWorkerPool(cfg.workerCount, cfg.queueCapacity, cfg.workerTimeout),
		loadResults:     make(chan loadResult, cfg.queueCapacity),
		globalTimeScale: cfg.globalTimeScale,
	}
	if cfg.profiling {
		s.profiler = profiler.NewProfiler(s.liveInstanceCount)
	}
	return s, nil
}

func (s *System) liveInstanceCount() int {
	n := 0
	for _, b := range s.bases {
		n += len(b.instances)
	}
	return n
}

// Acquire reserves a base slot for (assetName, packageName) if one does
// not already exist in any state, dispatches an asynchronous load for new
// bases, and reserves a new instance slot under it. If the base is already
// LOADED, onLoaded fires synchronously before Acquire returns; otherwise
// the instance is queued and onLoaded fires later from Update, once per
// spec §5's ordering guarantee — added to the queue before the instance id
// is returned to the caller.
//
// Parameters:
//   - assetName: the model asset's name
//   - packageName: the package the asset belongs to
//   - onLoaded: invoked exactly once when the base's load resolves; may be nil
//
// Returns:
//   - uint16: the base id
//   - uint16: the instance id
func (s *System) Acquire(assetName, packageName string, onLoaded OnLoaded) (uint16, uint16) {
	baseID, exists := s.registry.GetBaseID(assetName, packageName)

	b, tracked := s.bases[baseID]
	if !tracked {
		b = &base{id: baseID, assetName: assetName, packageName: packageName, instances: make(map[uint16]*instance)}
		s.bases[baseID] = b
	}
	if !exists {
		s.dispatchLoad(b)
	}

	instanceID, _ := s.registry.GetNewInstanceID(baseID)
	state, _ := s.registry.BaseState(baseID)

	if state == handle.BaseLoaded {
		s.finalizeInstance(b, instanceID)
		if onLoaded != nil {
			onLoaded(baseID, instanceID)
		}
	} else {
		b.queue = append(b.queue, queueEntry{instanceID: instanceID, onLoaded: onLoaded})
	}

	return baseID, instanceID
}

func (s *System) dispatchLoad(b *base) {
	if err := s.registry.SetBaseState(b.id, handle.BaseLoading); err != nil {
		log.Printf("system: dispatch load for base %d: %v", b.id, err)
		return
	}

	assetName, packageName := b.assetName, b.packageName
	baseID := b.id
	s.workers.SubmitTask(worker.Task{
		ID: int(baseID),
		Do: func() (any, error) {
			raw, err := s.loader(assetName, packageName)
			if err != nil {
				s.loadResults <- loadResult{baseID: baseID, err: err}
				return nil, nil
			}
			model, err := codec.Deserialize(raw)
			if err != nil {
				s.loadResults <- loadResult{baseID: baseID, err: err}
				return nil, nil
			}

			var uploads []geometry.Result
			if len(model.Submeshes) > 0 {
				uploads = s.uploader.UploadAll(model.Submeshes)
			}
			s.loadResults <- loadResult{baseID: baseID, model: model, uploads: uploads}
			return nil, nil
		},
	})
}

// Update drains completed asset loads in FIFO order, advances every
// PLAYING instance's animation clock and re-evaluates its bone palette,
// then publishes the whole palette pool to the mapped SSBO once. This is
// the core's single-threaded per-frame entry point.
//
// Parameters:
//   - deltaSeconds: elapsed time since the previous call
//
// Returns:
//   - error: non-nil only if the Frame Publisher's bulk copy failed
func (s *System) Update(deltaSeconds float32) error {
	if s.profiler != nil {
		s.profiler.Tick()
	}

	s.drainLoadResults()

	for _, b := range s.bases {
		for _, inst := range b.instances {
			if !inst.animated {
				continue
			}
			inst.anim.Update(deltaSeconds, s.globalTimeScale, &inst.palette)
			copy(s.palettePool.Element(inst.paletteIndex), common.SliceToBytes(inst.palette[:]))
		}
	}

	return s.pub.Publish(s.palettePool)
}

func (s *System) drainLoadResults() {
	for {
		select {
		case r := <-s.loadResults:
			s.applyLoadResult(r)
		default:
			return
		}
	}
}

func (s *System) applyLoadResult(r loadResult) {
	b, ok := s.bases[r.baseID]
	if !ok {
		return
	}

	if r.err != nil {
		log.Printf("system: base %d (%s/%s) failed to load: %v", r.baseID, b.assetName, b.packageName, r.err)
		if err := s.registry.SetBaseState(r.baseID, handle.BaseAcquired); err != nil {
			log.Printf("system: revert base %d to ACQUIRED after load failure: %v", r.baseID, err)
		}
		s.failQueue(b)
		return
	}

	b.model = r.model
	b.geometries = make([]GeometryDescriptor, len(r.model.Submeshes))
	for i, sm := range r.model.Submeshes {
		desc := GeometryDescriptor{
			Name: sm.Name, MaterialName: sm.MaterialName, MeshType: sm.MeshType,
			VertexCount: sm.VertexCount, IndexCount: sm.IndexCount,
			Center: sm.Center, ExtentsMin: sm.ExtentsMin, ExtentsMax: sm.ExtentsMax,
		}
		if i < len(r.uploads) && r.uploads[i].Err == nil {
			desc.Upload = r.uploads[i].Upload
			b.generation++
		} else if i < len(r.uploads) {
			log.Printf("system: base %d submesh %q geometry upload failed: %v", b.id, sm.Name, r.uploads[i].Err)
		}
		b.geometries[i] = desc
	}

	if r.model.IsAnimated() {
		b.skel = skeleton.New(r.model)
	}

	if err := s.registry.SetBaseState(r.baseID, handle.BaseLoaded); err != nil {
		log.Printf("system: mark base %d LOADED: %v", r.baseID, err)
		return
	}
	s.drainQueue(b)
}

func (s *System) drainQueue(b *base) {
	queue := b.queue
	b.queue = nil
	for _, entry := range queue {
		state, err := s.registry.InstanceState(b.id, entry.instanceID)
		if err != nil || state != handle.InstanceAcquired {
			continue // canceled by a release during LOADING
		}
		s.finalizeInstance(b, entry.instanceID)
		if entry.onLoaded != nil {
			entry.onLoaded(b.id, entry.instanceID)
		}
	}
}

func (s *System) failQueue(b *base) {
	queue := b.queue
	b.queue = nil
	for _, entry := range queue {
		if entry.onLoaded != nil {
			entry.onLoaded(handle.Invalid, handle.Invalid)
		}
	}
}

func (s *System) finalizeInstance(b *base, instanceID uint16) *instance {
	inst := &instance{instanceID: instanceID, materials: make([]MaterialHandle, len(b.geometries))}
	for i := range inst.materials {
		inst.materials[i] = InvalidMaterial
	}

	if b.model != nil && b.model.IsAnimated() {
		_, idx, err := s.palettePool.Allocate()
		if err != nil {
			log.Printf("system: bone palette pool exhausted allocating instance %d on base %d: %v", instanceID, b.id, err)
		} else {
			inst.animated = true
			inst.paletteIndex = idx
			inst.palette = skeleton.NewPalette()
			inst.anim = animator.New(b.model, b.skel, 1.0)
		}
	}

	b.instances[instanceID] = inst
	return inst
}

// Release returns an instance's slot, freeing its bone-palette allocation
// if animated. If this was the base's last instance, the base's geometry
// ranges are freed and its slot returns to UNINITIALIZED. Releasing a
// queued (still-LOADING) instance cancels its queue entry; its callback is
// never invoked.
//
// Parameters:
//   - baseID: the base the instance belongs to
//   - instanceID: the instance to release
//
// Returns:
//   - error: non-nil if baseID or instanceID is out of range
func (s *System) Release(baseID, instanceID uint16) error {
	b, ok := s.bases[baseID]
	if !ok {
		return kerr.Wrap(kerr.ErrIndexOutOfRange, fmt.Sprintf("system: release: unknown base %d", baseID))
	}

	if inst, ok := b.instances[instanceID]; ok {
		if inst.animated {
			s.palettePool.Free(inst.paletteIndex)
		}
		delete(b.instances, instanceID)
	} else {
		for i, entry := range b.queue {
			if entry.instanceID == instanceID {
				b.queue = append(b.queue[:i], b.queue[i+1:]...)
				break
			}
		}
	}

	last, err := s.registry.ReleaseInstance(baseID, instanceID)
	if err != nil {
		return err
	}
	if last {
		for _, g := range b.geometries {
			if g.Upload.VertexSize == 0 && g.Upload.IndexSize == 0 {
				continue
			}
			if err := s.uploader.FreeSubmesh(g.Upload); err != nil {
				log.Printf("system: free submesh %q geometry on base %d release: %v", g.Name, baseID, err)
			}
		}
		delete(s.bases, baseID)
		if err := s.registry.ReleaseBase(baseID); err != nil {
			log.Printf("system: release base %d: %v", baseID, err)
		}
	}

	return nil
}
