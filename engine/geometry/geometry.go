// Package geometry implements the upload stage between a decoded model's
// CPU-side submesh bytes and the renderer's global vertex/index buffers:
// allocating ranges, copying bytes into them, and tracking offsets so they
// can be freed again on release or on partial-load failure.
package geometry

import (
	"fmt"

	"github.com/kohi3d/kohi/engine/codec"
	"github.com/kohi3d/kohi/engine/kerr"
	"github.com/kohi3d/kohi/engine/renderer"
)

// Upload records the renderer-buffer ranges a single submesh occupies.
type Upload struct {
	VertexOffset uint64
	VertexSize   uint64
	IndexOffset  uint64
	IndexSize    uint64
}

// Uploader allocates and frees submesh geometry against a pair of global
// vertex/index renderbuffers.
type Uploader struct {
	provider     renderer.Provider
	vertexBuffer renderer.Handle
	indexBuffer  renderer.Handle
}

// NewUploader binds an Uploader to the global vertex and index buffers it
// will sub-allocate from.
//
// Parameters:
//   - provider: the renderer surface to allocate/free/load through
//   - vertexBuffer: the global vertex renderbuffer handle
//   - indexBuffer: the global index renderbuffer handle
//
// Returns:
//   - *Uploader: the newly created uploader
func NewUploader(provider renderer.Provider, vertexBuffer, indexBuffer renderer.Handle) *Uploader {
	return &Uploader{provider: provider, vertexBuffer: vertexBuffer, indexBuffer: indexBuffer}
}

// UploadSubmesh allocates a vertex range sized by sm's vertex bytes,
// uploads them, then does the same for the index bytes. If the index
// allocation or upload fails after the vertex range was already acquired,
// the vertex range is freed before returning — this submesh leaves no
// renderbuffer footprint on failure.
//
// Parameters:
//   - sm: the decoded submesh to upload
//
// Returns:
//   - Upload: the allocated ranges, valid only if err is nil
//   - error: non-nil if either allocation or upload failed
func (u *Uploader) UploadSubmesh(sm *codec.Submesh) (Upload, error) {
	vertexSize := uint64(len(sm.VertexData))
	vOff, err := u.provider.Allocate(u.vertexBuffer, vertexSize)
	if err != nil {
		return Upload{}, kerr.Wrap(kerr.ErrBackendAllocationFailed, fmt.Sprintf("geometry: submesh %q vertex allocate: %v", sm.Name, err))
	}
	if err := u.provider.LoadRange(u.vertexBuffer, vOff, vertexSize, sm.VertexData, false); err != nil {
		_ = u.provider.Free(u.vertexBuffer, vertexSize, vOff)
		return Upload{}, kerr.Wrap(kerr.ErrBackendAllocationFailed, fmt.Sprintf("geometry: submesh %q vertex upload: %v", sm.Name, err))
	}

	indexSize := uint64(len(sm.IndexData))
	iOff, err := u.provider.Allocate(u.indexBuffer, indexSize)
	if err != nil {
		_ = u.provider.Free(u.vertexBuffer, vertexSize, vOff)
		return Upload{}, kerr.Wrap(kerr.ErrBackendAllocationFailed, fmt.Sprintf("geometry: submesh %q index allocate: %v", sm.Name, err))
	}
	if err := u.provider.LoadRange(u.indexBuffer, iOff, indexSize, sm.IndexData, false); err != nil {
		_ = u.provider.Free(u.indexBuffer, indexSize, iOff)
		_ = u.provider.Free(u.vertexBuffer, vertexSize, vOff)
		return Upload{}, kerr.Wrap(kerr.ErrBackendAllocationFailed, fmt.Sprintf("geometry: submesh %q index upload: %v", sm.Name, err))
	}

	return Upload{VertexOffset: vOff, VertexSize: vertexSize, IndexOffset: iOff, IndexSize: indexSize}, nil
}

// FreeSubmesh returns up's ranges to the renderbuffer free pools, index
// range first and then vertex range, the reverse of acquisition order.
//
// Parameters:
//   - up: the upload to release
//
// Returns:
//   - error: non-nil if either free call failed
func (u *Uploader) FreeSubmesh(up Upload) error {
	if err := u.provider.Free(u.indexBuffer, up.IndexSize, up.IndexOffset); err != nil {
		return err
	}
	return u.provider.Free(u.vertexBuffer, up.VertexSize, up.VertexOffset)
}

// Result pairs a submesh's upload outcome with its source index, letting
// the caller (the model system) decide whether a partially-failed base's
// generation counter advances for that submesh.
type Result struct {
	SubmeshIndex int
	Upload       Upload
	Err          error
}

// UploadAll uploads every submesh in submeshes independently: a failure on
// one submesh does not prevent the others from being attempted, matching
// the spec's "a partial base is permitted" behavior. Results are returned
// in submesh order.
//
// Parameters:
//   - submeshes: the decoded submeshes to upload
//
// Returns:
//   - []Result: one entry per submesh, in order
func (u *Uploader) UploadAll(submeshes []codec.Submesh) []Result {
	results := make([]Result, len(submeshes))
	for i := range submeshes {
		up, err := u.UploadSubmesh(&submeshes[i])
		results[i] = Result{SubmeshIndex: i, Upload: up, Err: err}
	}
	return results
}
