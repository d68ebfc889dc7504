//go:build windows

package webgpu

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"
)

// upload creates a buffer of at least len(data) bytes, rounded up to align,
// holding a copy of data.
func (b *Backend) upload(data []byte, usage wgpu.BufferUsage, align uint64) *wgpu.Buffer {
	size := (uint64(len(data)) + align - 1) / align * align
	buf := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	//nolint:gosec // G103: the mapped range is exactly size bytes.
	copy(unsafe.Slice((*byte)(buf.GetMappedRange(0, size)), size), data)
	buf.Unmap()
	return buf
}

// download copies the first len(dst) bytes of src into dst through a
// mappable staging buffer.
func (b *Backend) download(src *wgpu.Buffer, dst []byte) error {
	size := uint64(len(dst))
	staging := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	enc := b.device.CreateCommandEncoder(nil)
	enc.CopyBufferToBuffer(src, 0, staging, 0, size)
	b.queue.Submit(enc.Finish(nil))

	if err := staging.MapAsync(b.device, wgpu.MapModeRead, 0, size); err != nil {
		return errors.Wrap(err, "map staging buffer")
	}
	//nolint:gosec // G103: the mapped range is exactly size bytes.
	copy(dst, unsafe.Slice((*byte)(staging.GetMappedRange(0, size)), size))
	staging.Unmap()
	return nil
}

// kernel describes one compute dispatch. Inputs are bound read-only at
// bindings 0..n-1, the destination at n and the uniform params at n+1.
// The destination buffer starts with the current contents of dst, so
// accumulating shaders may read it before writing.
type kernel struct {
	name    string
	code    string
	inputs  [][]byte
	dst     []byte
	params  []byte
	threads int // one invocation per destination element or row
}

// run dispatches k and copies the destination buffer back into k.dst.
func (b *Backend) run(k kernel) error {
	if k.threads == 0 || len(k.dst) == 0 {
		return nil
	}
	pipeline := b.compile(k.name, k.code)

	var entries []wgpu.BindGroupEntry
	bind := func(buf *wgpu.Buffer, size uint64) {
		//nolint:gosec // G115: at most a handful of bindings.
		entries = append(entries, wgpu.BufferBindingEntry(uint32(len(entries)), buf, 0, size))
	}
	for _, data := range k.inputs {
		in := b.upload(data, wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc, 4)
		defer in.Release()
		bind(in, uint64(len(data)))
	}
	out := b.upload(k.dst, wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc|wgpu.BufferUsageCopyDst, 4)
	defer out.Release()
	bind(out, uint64(len(k.dst)))
	uniform := b.upload(k.params, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst, 16)
	defer uniform.Release()
	bind(uniform, (uint64(len(k.params))+15)&^15)

	group := b.device.CreateBindGroupSimple(pipeline.GetBindGroupLayout(0), entries)
	defer group.Release()

	enc := b.device.CreateCommandEncoder(nil)
	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, group, nil)
	//nolint:gosec // G115: thread counts are tensor sizes.
	pass.DispatchWorkgroups(uint32((k.threads+workgroupSize-1)/workgroupSize), 1, 1)
	pass.End()
	b.queue.Submit(enc.Finish(nil))

	return b.download(out, k.dst)
}

// params packs uniform values as consecutive 32-bit little-endian words.
// Go ints become u32 and float32s keep their bit pattern.
type params []byte

func (p params) u32(v int) params {
	//nolint:gosec // G115: kernel sizes fit in u32
	return binary.LittleEndian.AppendUint32(p, uint32(v))
}

func (p params) f32(v float32) params {
	return binary.LittleEndian.AppendUint32(p, math.Float32bits(v))
}

// lengths packs a match window's per-row lengths as interleaved u32 pairs.
func lengths(len0, len1 []int) []byte {
	out := make(params, 0, 8*len(len0))
	for b := range len0 {
		out = out.u32(len0[b]).u32(len1[b])
	}
	return out
}
